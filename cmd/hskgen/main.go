// Command hskgen runs the card enrichment pipeline: it finds HSK words
// without a card yet, generates an example sentence, pinyin, audio, and
// an illustration for each, and commits one record per word. Interrupted
// runs resume where they left off.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"github.com/joho/godotenv"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/iulspop/learn-chinese/internal/cards"
	"github.com/iulspop/learn-chinese/internal/catalog"
	"github.com/iulspop/learn-chinese/internal/config"
	"github.com/iulspop/learn-chinese/internal/image"
	"github.com/iulspop/learn-chinese/internal/llm"
	"github.com/iulspop/learn-chinese/internal/media"
	"github.com/iulspop/learn-chinese/internal/storage"
	"github.com/iulspop/learn-chinese/internal/tts"
	"github.com/iulspop/learn-chinese/migrations"
)

type flags struct {
	limit         int
	word          string
	regenerate    bool
	dryRun        bool
	skipImages    bool
	missingImages bool
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	if err := run(logger); err != nil {
		logger.Error("generation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	var f flags
	flag.IntVar(&f.limit, "limit", 0, "max words to generate (0 = all)")
	flag.StringVar(&f.word, "word", "", "generate a single word")
	flag.BoolVar(&f.regenerate, "regenerate", false, "force regenerate even if the word already has a card (use with -word)")
	flag.BoolVar(&f.dryRun, "dry-run", false, "list what would be generated without calling any service")
	flag.BoolVar(&f.skipImages, "skip-images", false, "skip image generation")
	flag.BoolVar(&f.missingImages, "missing-images", false, "generate images for cards that have none")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional .env next to the binary; real env wins.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := sql.Open("pgx", cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	if err := pingDB(ctx, db); err != nil {
		return err
	}
	if err := storage.RunMigrations(ctx, db, migrations.Files); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	repo := storage.NewCardRepository(db)
	words := catalog.NewFile(cfg.CatalogPath(), cfg.LevelCeiling)
	opts := cards.RunOptions{
		Limit:           f.limit,
		ForceRegenerate: f.regenerate,
		SkipImages:      f.skipImages,
	}
	if f.word != "" {
		opts.Words = []string{f.word}
	}

	if f.dryRun {
		return dryRun(ctx, logger, words, repo, opts, cfg)
	}

	if err := cfg.ValidateGeneration(f.skipImages); err != nil {
		return err
	}

	ttsClient, err := texttospeech.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("create tts client: %w", err)
	}
	defer ttsClient.Close()

	var images cards.ImageSynthesizer
	if !f.skipImages && !cfg.SkipImages {
		images = image.NewStabilityClient(logger, cfg.StabilityAPIKey, nil)
	}

	service := cards.NewService(
		logger,
		words,
		repo,
		media.NewStore(cfg.MediaDir()),
		llm.NewAnthropicClient(logger, cfg.AnthropicAPIKey, cfg.AnthropicModel, nil),
		tts.NewGoogleClient(logger, ttsClient, nil),
		images,
		cards.Options{
			BatchSize:    cfg.BatchSize,
			WordRate:     cfg.WordSpeakingRate,
			SentenceRate: cfg.SentenceSpeakingRate,
			Pacing:       cfg.Pacing,
			SkipImages:   cfg.SkipImages,
			MaxItems:     cfg.MaxItems,
		},
	)

	var run *cards.Run
	if f.missingImages {
		run, err = service.RegenerateMissingImages(ctx)
	} else {
		run, err = service.Run(ctx, opts)
	}
	if err != nil {
		return err
	}

	for event := range run.Events {
		printEvent(logger, event)
	}
	return run.Wait()
}

func dryRun(ctx context.Context, logger *slog.Logger, words cards.Catalog, repo cards.RecordStore, opts cards.RunOptions, cfg config.Config) error {
	service := cards.NewService(logger, words, repo, media.NewStore(cfg.MediaDir()),
		llm.NewStubClient(logger), tts.NewStubClient(), nil,
		cards.Options{BatchSize: cfg.BatchSize, MaxItems: cfg.MaxItems})

	missing, err := service.Missing(ctx, opts)
	if err != nil {
		return err
	}

	fmt.Printf("Would generate %d words:\n", len(missing))
	for _, item := range missing {
		parts := []string{fmt.Sprintf("%s (%s): %s", item.Simplified, item.Pinyin, item.Meaning)}
		if item.PartOfSpeech != "" {
			parts = append(parts, "["+item.PartOfSpeech+"]")
		}
		fmt.Println("  " + strings.Join(parts, " "))
	}
	return nil
}

func printEvent(logger *slog.Logger, event cards.Progress) {
	switch {
	case event.Complete:
		logger.Info("run complete", slog.Int("generated", event.Generated))
	case event.Err != "":
		logger.Warn("item failed",
			slog.String("word", event.Word),
			slog.String("error", event.Err),
			slog.Int("processed", event.Processed),
			slog.Int("total", event.Total),
		)
	case event.Skipped:
		logger.Warn("item skipped",
			slog.String("word", event.Word),
			slog.Int("processed", event.Processed),
			slog.Int("total", event.Total),
		)
	default:
		logger.Info("item done",
			slog.String("word", event.Word),
			slog.Int("processed", event.Processed),
			slog.Int("total", event.Total),
		)
	}
}

func pingDB(ctx context.Context, db *sql.DB) error {
	const (
		maxAttempts = 10
		baseDelay   = time.Second
	)

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pingCtx)
		cancel()

		if err == nil {
			return nil
		}

		// allow caller to abort early
		select {
		case <-ctx.Done():
			return fmt.Errorf("ping db: %w", err)
		case <-time.After(time.Duration(attempt) * baseDelay):
		}
	}

	return fmt.Errorf("ping db: %w", err)
}
