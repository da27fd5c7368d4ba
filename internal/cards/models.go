package cards

import (
	"context"
)

// Provenance records where a card's data came from.
type Provenance string

const (
	// SourceCatalog marks cards imported from the bundled HSK word list.
	SourceCatalog Provenance = "catalog"
	// SourceUser marks cards added by hand for words outside the list.
	SourceUser Provenance = "user"
	// SourceGenerated marks cards produced by the enrichment pipeline.
	SourceGenerated Provenance = "generated"
)

// LexicalItem is one entry of the HSK word list. Read-only input to the
// pipeline; the catalog is the source of truth for reading and meaning.
type LexicalItem struct {
	Simplified   string
	Pinyin       string
	Meaning      string
	Level        int
	PartOfSpeech string
}

// Record is the persisted enrichment output for one word, keyed by the
// simplified form. Media fields hold filenames inside the media store.
// SentenceSandhi is empty when the connected-speech reading matches the
// dictionary reading.
type Record struct {
	Simplified      string `json:"simplified"`
	Pinyin          string `json:"pinyin"`
	Meaning         string `json:"meaning"`
	PartOfSpeech    string `json:"partOfSpeech"`
	Audio           string `json:"audio"`
	Sentence        string `json:"sentence"`
	SentencePinyin  string `json:"sentencePinyin"`
	SentenceSandhi  string `json:"sentenceSandhi,omitempty"`
	SentenceMeaning string `json:"sentenceMeaning"`
	SentenceAudio   string `json:"sentenceAudio"`
	SentenceImage   string `json:"sentenceImage,omitempty"`

	Source Provenance `json:"source"`
}

// ItemSummary is the slice of a LexicalItem sent to the sentence generator.
type ItemSummary struct {
	Simplified string
	Pinyin     string
	Meaning    string
}

// Sentence is one generated sentence bundle returned by the sentence
// generator, keyed externally by simplified form.
type Sentence struct {
	Sentence    string
	Meaning     string
	ImagePrompt string
}

// Catalog is the read-only source of candidate words.
type Catalog interface {
	Items(ctx context.Context) ([]LexicalItem, error)
}

// RecordStore persists completed enrichment records. Upsert replaces the
// whole record for its key; partial field updates are never issued.
type RecordStore interface {
	GetAll(ctx context.Context) (map[string]Record, error)
	Upsert(ctx context.Context, rec Record) error
	Delete(ctx context.Context, simplified string) error
	MissingImages(ctx context.Context) ([]Record, error)
}

// MediaStore writes media artifacts under deterministic filenames.
type MediaStore interface {
	Write(name string, data []byte) error
	Exists(name string) bool
}

// SentenceGenerator produces example sentences for a batch of words in a
// single upstream call. Words absent from the result are misses, not errors.
type SentenceGenerator interface {
	GenerateSentences(ctx context.Context, items []ItemSummary) (map[string]Sentence, error)
	GenerateImagePrompts(ctx context.Context, entries []Record) (map[string]string, error)
}

// SpeechSynthesizer converts text to MP3 audio at a given fraction of
// natural speaking speed.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string, speakingRate float64) ([]byte, error)
}

// ImageSynthesizer renders an illustration for a prompt.
type ImageSynthesizer interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}
