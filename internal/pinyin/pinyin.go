// Package pinyin renders Chinese text as tone-marked pinyin, in both the
// dictionary (citation) reading and the connected-speech reading with tone
// sandhi applied. Pure functions, no I/O.
package pinyin

import (
	"strings"
	"unicode"

	gopinyin "github.com/mozillazg/go-pinyin"
)

// Transcribe returns the citation-form and connected-speech pinyin for
// text, one space-separated syllable per rune, first letter upcased.
// Non-Chinese runes pass through unchanged. Empty input yields empty
// output for both forms.
func Transcribe(text string) (citation, connected string) {
	if text == "" {
		return "", ""
	}

	runes := []rune(text)

	args := gopinyin.NewArgs()
	args.Style = gopinyin.Tone
	args.Fallback = func(r rune, a gopinyin.Args) []string {
		return []string{string(r)}
	}

	converted := gopinyin.Pinyin(text, args)
	syllables := make([]string, 0, len(converted))
	for _, s := range converted {
		if len(s) > 0 {
			syllables = append(syllables, s[0])
		}
	}

	sandhi := applySandhi(runes, syllables)

	citation = capitalize(strings.Join(syllables, " "))
	connected = capitalize(strings.Join(sandhi, " "))
	return citation, connected
}

// applySandhi rewrites dictionary-tone syllables into their connected
// reading. runes carries the source characters in the same positions, so
// the 不 and 一 rules fire only for those characters. Rules applied:
//
//   - a run of third tones reads all but its last syllable as second tone
//   - 不 (bù) before a fourth tone reads bú
//   - 一 (yī) reads yí before a fourth tone, yì before first to third
func applySandhi(runes []rune, syllables []string) []string {
	if len(syllables) != len(runes) {
		// Alignment lost (should not happen with a one-rune fallback);
		// return the dictionary reading untouched.
		return syllables
	}

	out := make([]string, len(syllables))
	copy(out, syllables)
	// Dictionary tones drive every rule below; the rewritten tones never
	// feed back into the conditions, so 3-3-3 reads 2-2-3, not 3-2-3.
	tones := make([]int, len(syllables))
	for i, s := range syllables {
		tones[i] = toneOf(s)
	}

	for i := len(out) - 2; i >= 0; i-- {
		if tones[i] == 3 && tones[i+1] == 3 {
			out[i] = withTone(out[i], 2)
		}
	}

	for i := 0; i < len(out)-1; i++ {
		next := tones[i+1]
		switch runes[i] {
		case '不':
			if next == 4 {
				out[i] = withTone(out[i], 2)
			}
		case '一':
			if next == 4 {
				out[i] = withTone(out[i], 2)
			} else if next >= 1 && next <= 3 {
				out[i] = withTone(out[i], 4)
			}
		}
	}

	return out
}

// tonedVowels maps each base vowel to its four tone-marked forms.
var tonedVowels = map[rune][4]rune{
	'a': {'ā', 'á', 'ǎ', 'à'},
	'e': {'ē', 'é', 'ě', 'è'},
	'i': {'ī', 'í', 'ǐ', 'ì'},
	'o': {'ō', 'ó', 'ǒ', 'ò'},
	'u': {'ū', 'ú', 'ǔ', 'ù'},
	'ü': {'ǖ', 'ǘ', 'ǚ', 'ǜ'},
}

// toneOf reports the tone of a tone-marked syllable, 0 for neutral tone
// or non-pinyin text.
func toneOf(syllable string) int {
	for _, r := range syllable {
		for _, forms := range tonedVowels {
			for tone, form := range forms {
				if r == form {
					return tone + 1
				}
			}
		}
	}
	return 0
}

// withTone rewrites the tone-marked vowel of syllable to the given tone.
func withTone(syllable string, tone int) string {
	runes := []rune(syllable)
	for i, r := range runes {
		for _, forms := range tonedVowels {
			for _, form := range forms {
				if r == form {
					runes[i] = forms[tone-1]
					return string(runes)
				}
			}
		}
	}
	return syllable
}

func capitalize(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
