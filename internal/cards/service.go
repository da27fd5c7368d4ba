package cards

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/iulspop/learn-chinese/internal/media"
	"github.com/iulspop/learn-chinese/internal/pinyin"
)

const (
	// DefaultBatchSize is the number of words per sentence-generation call.
	DefaultBatchSize = 20
	// DefaultWordRate is the speaking rate for single-word audio.
	DefaultWordRate = 0.85
	// DefaultSentenceRate is the speaking rate for sentence audio. Kept
	// slightly below the word rate on purpose; see DESIGN.md.
	DefaultSentenceRate = 0.80
	// DefaultPacing is the minimum spacing between items, to stay under
	// upstream rate limits.
	DefaultPacing = 500 * time.Millisecond
)

// Options configures a Service. Zero values fall back to the defaults above.
type Options struct {
	BatchSize    int
	WordRate     float64
	SentenceRate float64
	// Pacing spaces out per-item work. Zero disables pacing (tests).
	Pacing time.Duration
	// SkipImages disables image generation for all runs.
	SkipImages bool
	// MaxItems caps how many words a single run may process. Zero means
	// unlimited.
	MaxItems int
}

// RunOptions selects what a single enrichment pass covers.
type RunOptions struct {
	// Words restricts the pass to an explicit subset of simplified forms.
	Words []string
	// Limit truncates the missing set to at most this many words.
	Limit int
	// ForceRegenerate evicts existing records for Words before the scan,
	// so they are generated again. Requires a non-empty Words subset.
	ForceRegenerate bool
	// SkipImages disables image generation for this run only.
	SkipImages bool
}

// Service drives the enrichment pipeline: find words without records,
// generate sentences in batches, synthesize audio, illustrate, and commit
// one record per word. The record store is the only checkpoint; a word
// counts as done exactly when its record has been upserted, and every
// artifact is written before that upsert.
type Service struct {
	logger    *slog.Logger
	catalog   Catalog
	store     RecordStore
	media     MediaStore
	generator SentenceGenerator
	speech    SpeechSynthesizer
	images    ImageSynthesizer

	batchSize    int
	wordRate     float64
	sentenceRate float64
	skipImages   bool
	maxItems     int
	limiter      *rate.Limiter
}

// NewService constructs a Service around the injected collaborators.
// images may be nil when image generation is disabled.
func NewService(logger *slog.Logger, catalog Catalog, store RecordStore, mediaStore MediaStore,
	generator SentenceGenerator, speech SpeechSynthesizer, images ImageSynthesizer, opts Options) *Service {

	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.WordRate == 0 {
		opts.WordRate = DefaultWordRate
	}
	if opts.SentenceRate == 0 {
		opts.SentenceRate = DefaultSentenceRate
	}

	var limiter *rate.Limiter
	if opts.Pacing > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.Pacing), 1)
	}

	return &Service{
		logger:       logger,
		catalog:      catalog,
		store:        store,
		media:        mediaStore,
		generator:    generator,
		speech:       speech,
		images:       images,
		batchSize:    opts.BatchSize,
		wordRate:     opts.WordRate,
		sentenceRate: opts.SentenceRate,
		skipImages:   opts.SkipImages,
		maxItems:     opts.MaxItems,
		limiter:      limiter,
	}
}

// Missing returns the catalog items that have no record yet, in catalog
// order, after applying the subset and limit from opts. With
// ForceRegenerate set, subset words count as missing even when recorded.
func (s *Service) Missing(ctx context.Context, opts RunOptions) ([]LexicalItem, error) {
	items, err := s.catalog.Items(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	records, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}

	var subset map[string]bool
	if len(opts.Words) > 0 {
		subset = make(map[string]bool, len(opts.Words))
		for _, w := range opts.Words {
			subset[w] = true
		}
	}

	var missing []LexicalItem
	for _, item := range items {
		if subset != nil && !subset[item.Simplified] {
			continue
		}
		_, recorded := records[item.Simplified]
		if recorded && !(opts.ForceRegenerate && subset != nil) {
			continue
		}
		missing = append(missing, item)
	}

	if opts.Limit > 0 && len(missing) > opts.Limit {
		missing = missing[:opts.Limit]
	}
	if s.maxItems > 0 && len(missing) > s.maxItems {
		missing = missing[:s.maxItems]
	}
	return missing, nil
}

// Run starts an enrichment pass and returns a handle to its progress
// stream. Scanning happens before Run returns, so a catalog or store
// failure surfaces here; everything after runs in the background.
func (s *Service) Run(ctx context.Context, opts RunOptions) (*Run, error) {
	if opts.ForceRegenerate && len(opts.Words) == 0 {
		return nil, errors.New("force regeneration requires an explicit word subset")
	}

	missing, err := s.Missing(ctx, opts)
	if err != nil {
		return nil, err
	}

	if opts.ForceRegenerate {
		for _, item := range missing {
			if err := s.store.Delete(ctx, item.Simplified); err != nil {
				return nil, fmt.Errorf("evict record %s: %w", item.Simplified, err)
			}
		}
	}

	run, events := newRun(len(missing) + 2)
	go func() {
		err := s.enrich(ctx, events, missing, opts)
		if err != nil {
			s.logger.Error("enrichment run failed",
				slog.String("run_id", run.ID.String()),
				slog.String("error", err.Error()),
			)
		}
		run.finish(events, err)
	}()
	return run, nil
}

// enrich is the per-run worker. It emits at most one event per word plus
// one terminal event; events is buffered for exactly that, so sends never
// block.
func (s *Service) enrich(ctx context.Context, events chan<- Progress, missing []LexicalItem, opts RunOptions) error {
	total := len(missing)
	processed := 0
	generated := 0

	s.logger.Info("starting enrichment run", slog.Int("missing", total))

	for start := 0; start < total; start += s.batchSize {
		end := start + s.batchSize
		if end > total {
			end = total
		}
		batch := missing[start:end]

		summaries := make([]ItemSummary, len(batch))
		for i, item := range batch {
			summaries[i] = ItemSummary{
				Simplified: item.Simplified,
				Pinyin:     item.Pinyin,
				Meaning:    item.Meaning,
			}
		}

		sentences, err := s.generator.GenerateSentences(ctx, summaries)
		if err != nil {
			// Fatal: committed records from earlier batches stay; the
			// rest of the run is abandoned.
			err = fmt.Errorf("batch %d/%d: %w", start/s.batchSize+1, (total+s.batchSize-1)/s.batchSize, err)
			events <- Progress{Processed: processed, Total: total, Err: err.Error()}
			return err
		}

		for _, item := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			if s.limiter != nil {
				if err := s.limiter.Wait(ctx); err != nil {
					return err
				}
			}

			processed++
			sent, ok := sentences[item.Simplified]
			if !ok {
				s.logger.Warn("no sentence generated", slog.String("word", item.Simplified))
				events <- Progress{Processed: processed, Total: total, Word: item.Simplified, Skipped: true}
				continue
			}

			rec, err := s.enrichItem(ctx, item, sent, opts.SkipImages)
			if err != nil {
				if errors.Is(err, ErrSpeechSynthesis) {
					// Recoverable: no record written, the word stays
					// missing and is retried on the next run.
					events <- Progress{Processed: processed, Total: total, Word: item.Simplified, Err: err.Error()}
					continue
				}
				events <- Progress{Processed: processed, Total: total, Word: item.Simplified, Err: err.Error()}
				return err
			}

			if err := s.store.Upsert(ctx, rec); err != nil {
				return fmt.Errorf("upsert record %s: %w", item.Simplified, err)
			}
			generated++
			events <- Progress{Processed: processed, Total: total, Word: item.Simplified}
		}
	}

	s.logger.Info("enrichment run complete", slog.Int("generated", generated))
	events <- Progress{Processed: processed, Total: total, Complete: true, Generated: generated}
	return nil
}

// enrichItem generates all artifacts for one word and returns the record
// to commit. Artifacts are fully on disk before it returns, so the record
// never references a file that is not there yet.
func (s *Service) enrichItem(ctx context.Context, item LexicalItem, sent Sentence, skipImages bool) (Record, error) {
	citation, connected := pinyin.Transcribe(sent.Sentence)

	wordAudio, err := s.speech.Synthesize(ctx, item.Simplified, s.wordRate)
	if err != nil {
		return Record{}, fmt.Errorf("word audio for %s: %w", item.Simplified, err)
	}
	sentenceAudio, err := s.speech.Synthesize(ctx, sent.Sentence, s.sentenceRate)
	if err != nil {
		return Record{}, fmt.Errorf("sentence audio for %s: %w", item.Simplified, err)
	}

	var imageBytes []byte
	if !skipImages && !s.skipImages && s.images != nil {
		imageBytes, err = s.images.Generate(ctx, sent.ImagePrompt)
		if err != nil {
			// Non-fatal: the record completes without an illustration.
			s.logger.Warn("image generation failed",
				slog.String("word", item.Simplified),
				slog.String("error", err.Error()),
			)
			imageBytes = nil
		}
	}

	wordFile := media.Filename(item.Simplified, media.KindWord)
	sentenceFile := media.Filename(item.Simplified, media.KindSentence)

	if err := s.media.Write(wordFile, wordAudio); err != nil {
		return Record{}, fmt.Errorf("write word audio: %w", err)
	}
	if err := s.media.Write(sentenceFile, sentenceAudio); err != nil {
		return Record{}, fmt.Errorf("write sentence audio: %w", err)
	}

	imageFile := ""
	if len(imageBytes) > 0 {
		imageFile = media.Filename(item.Simplified, media.KindImage)
		if err := s.media.Write(imageFile, imageBytes); err != nil {
			return Record{}, fmt.Errorf("write image: %w", err)
		}
	}

	rec := Record{
		Simplified:      item.Simplified,
		Pinyin:          item.Pinyin,
		Meaning:         item.Meaning,
		PartOfSpeech:    item.PartOfSpeech,
		Audio:           wordFile,
		Sentence:        sent.Sentence,
		SentencePinyin:  citation,
		SentenceMeaning: sent.Meaning,
		SentenceAudio:   sentenceFile,
		SentenceImage:   imageFile,
		Source:          SourceGenerated,
	}
	if connected != citation {
		rec.SentenceSandhi = connected
	}
	return rec, nil
}

// RegenerateMissingImages runs the narrower pass over pipeline-generated
// records that have no illustration yet: one prompt batch per record
// batch, then one image call per record.
func (s *Service) RegenerateMissingImages(ctx context.Context) (*Run, error) {
	entries, err := s.store.MissingImages(ctx)
	if err != nil {
		return nil, fmt.Errorf("load records without images: %w", err)
	}

	run, events := newRun(len(entries) + 2)
	go func() {
		err := s.regenerateImages(ctx, events, entries)
		if err != nil {
			s.logger.Error("image regeneration failed",
				slog.String("run_id", run.ID.String()),
				slog.String("error", err.Error()),
			)
		}
		run.finish(events, err)
	}()
	return run, nil
}

func (s *Service) regenerateImages(ctx context.Context, events chan<- Progress, entries []Record) error {
	if s.images == nil {
		return fmt.Errorf("%w: image synthesizer not configured", ErrMissingConfig)
	}

	total := len(entries)
	processed := 0
	generated := 0

	for start := 0; start < total; start += s.batchSize {
		end := start + s.batchSize
		if end > total {
			end = total
		}
		batch := entries[start:end]

		prompts, err := s.generator.GenerateImagePrompts(ctx, batch)
		if err != nil {
			err = fmt.Errorf("image prompts batch %d: %w", start/s.batchSize+1, err)
			events <- Progress{Processed: processed, Total: total, Err: err.Error()}
			return err
		}

		for _, rec := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			if s.limiter != nil {
				if err := s.limiter.Wait(ctx); err != nil {
					return err
				}
			}

			processed++
			prompt, ok := prompts[rec.Simplified]
			if !ok {
				events <- Progress{Processed: processed, Total: total, Word: rec.Simplified, Skipped: true}
				continue
			}

			imageBytes, err := s.images.Generate(ctx, prompt)
			if err != nil {
				events <- Progress{Processed: processed, Total: total, Word: rec.Simplified, Err: err.Error()}
				continue
			}

			imageFile := media.Filename(rec.Simplified, media.KindImage)
			if err := s.media.Write(imageFile, imageBytes); err != nil {
				return fmt.Errorf("write image %s: %w", rec.Simplified, err)
			}

			rec.SentenceImage = imageFile
			if err := s.store.Upsert(ctx, rec); err != nil {
				return fmt.Errorf("upsert record %s: %w", rec.Simplified, err)
			}
			generated++
			events <- Progress{Processed: processed, Total: total, Word: rec.Simplified}
		}
	}

	events <- Progress{Processed: processed, Total: total, Complete: true, Generated: generated}
	return nil
}
