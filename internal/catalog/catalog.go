// Package catalog loads the HSK word list. The list ships as one JSON
// file (complete.json) with per-entry level tags, word forms, and
// part-of-speech codes.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/iulspop/learn-chinese/internal/cards"
)

// posLabels maps abbreviated POS codes from complete.json to readable
// labels.
var posLabels = map[string]string{
	"a": "adjective", "ad": "adverb", "ag": "adjective morpheme",
	"an": "adjective-noun", "b": "distinguishing word", "c": "conjunction",
	"d": "adverb", "dg": "adverb morpheme", "e": "exclamation",
	"f": "directional word", "g": "morpheme", "h": "prefix",
	"i": "idiom", "j": "abbreviation", "k": "suffix",
	"l": "fixed expression", "m": "numeral", "n": "noun",
	"ng": "noun morpheme", "nr": "person name", "ns": "place name",
	"nt": "organization name", "nz": "other proper noun",
	"o": "onomatopoeia", "p": "preposition", "q": "measure word",
	"r": "pronoun", "s": "space/locality word", "t": "time word",
	"tg": "time morpheme", "u": "auxiliary", "v": "verb",
	"vd": "verb-adverb", "vg": "verb morpheme", "vn": "verb-noun",
	"w": "punctuation", "x": "non-morpheme character",
	"y": "modal particle", "z": "descriptive",
}

type rawEntry struct {
	Simplified string    `json:"simplified"`
	Level      []string  `json:"level"`
	POS        []string  `json:"pos"`
	Forms      []rawForm `json:"forms"`
}

type rawForm struct {
	Transcriptions struct {
		Pinyin string `json:"pinyin"`
	} `json:"transcriptions"`
	Meanings []string `json:"meanings"`
}

// File reads word entries from a complete.json file on disk.
type File struct {
	path string
	// levelCeiling keeps only entries at or below this HSK level; zero
	// admits any entry with a parseable new-<n> tag.
	levelCeiling int
}

// NewFile creates a catalog backed by the JSON file at path.
func NewFile(path string, levelCeiling int) *File {
	return &File{path: path, levelCeiling: levelCeiling}
}

// Items returns the in-scope words in file order. An entry is in scope
// when one of its level tags parses as new-<n> (within the ceiling, if
// set) and it has at least one form.
func (f *File) Items(ctx context.Context) ([]cards.LexicalItem, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var entries []rawEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	var items []cards.LexicalItem
	for _, entry := range entries {
		level, ok := scopedLevel(entry.Level, f.levelCeiling)
		if !ok {
			continue
		}
		if len(entry.Forms) == 0 {
			continue
		}
		form := entry.Forms[0]

		items = append(items, cards.LexicalItem{
			Simplified:   entry.Simplified,
			Pinyin:       form.Transcriptions.Pinyin,
			Meaning:      strings.Join(form.Meanings, "; "),
			Level:        level,
			PartOfSpeech: posLabel(entry.POS),
		})
	}
	return items, nil
}

// scopedLevel returns the first parseable new-<n> level within the
// ceiling.
func scopedLevel(tags []string, ceiling int) (int, bool) {
	for _, tag := range tags {
		n, ok := parseLevel(tag)
		if !ok {
			continue
		}
		if ceiling > 0 && n > ceiling {
			continue
		}
		return n, true
	}
	return 0, false
}

func parseLevel(tag string) (int, bool) {
	rest, found := strings.CutPrefix(tag, "new-")
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}

func posLabel(codes []string) string {
	if len(codes) == 0 {
		return ""
	}
	labels := make([]string, len(codes))
	for i, code := range codes {
		if label, ok := posLabels[code]; ok {
			labels[i] = label
		} else {
			labels[i] = code
		}
	}
	return strings.Join(labels, ", ")
}
