// Command server exposes the card collection and the enrichment pipeline
// over HTTP: start runs, follow their progress, list records, fetch media.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"github.com/joho/godotenv"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/iulspop/learn-chinese/internal/cards"
	"github.com/iulspop/learn-chinese/internal/catalog"
	"github.com/iulspop/learn-chinese/internal/config"
	apphttp "github.com/iulspop/learn-chinese/internal/http"
	"github.com/iulspop/learn-chinese/internal/image"
	"github.com/iulspop/learn-chinese/internal/llm"
	"github.com/iulspop/learn-chinese/internal/media"
	"github.com/iulspop/learn-chinese/internal/storage"
	"github.com/iulspop/learn-chinese/internal/tts"
	"github.com/iulspop/learn-chinese/migrations"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	if err := run(logger); err != nil {
		logger.Error("startup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	// ensure DB is reachable
	if err := pingDB(ctx, db); err != nil {
		return err
	}

	if err := storage.RunMigrations(ctx, db, migrations.Files); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	repo := storage.NewCardRepository(db)
	service, cleanup, err := buildService(ctx, logger, cfg, repo)
	if err != nil {
		return err
	}
	defer cleanup()

	handler := apphttp.NewServer(logger, service, repo, cfg.MediaDir())

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", server.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("shutdown server: %w", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	return nil
}

// buildService wires the enrichment service. Without generation
// credentials the server still comes up with stub clients, so records and
// media stay browsable; runs then produce placeholder content and log a
// warning.
func buildService(ctx context.Context, logger *slog.Logger, cfg config.Config, repo *storage.CardRepository) (*cards.Service, func(), error) {
	words := catalog.NewFile(cfg.CatalogPath(), cfg.LevelCeiling)
	store := media.NewStore(cfg.MediaDir())
	opts := cards.Options{
		BatchSize:    cfg.BatchSize,
		WordRate:     cfg.WordSpeakingRate,
		SentenceRate: cfg.SentenceSpeakingRate,
		Pacing:       cfg.Pacing,
		SkipImages:   cfg.SkipImages,
		MaxItems:     cfg.MaxItems,
	}

	if err := cfg.ValidateGeneration(false); err != nil {
		logger.Warn("generation credentials missing, using stub clients", slog.String("error", err.Error()))
		service := cards.NewService(logger, words, repo, store,
			llm.NewStubClient(logger), tts.NewStubClient(), image.NewStubClient(), opts)
		return service, func() {}, nil
	}

	ttsClient, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("create tts client: %w", err)
	}

	var images cards.ImageSynthesizer
	if !cfg.SkipImages {
		images = image.NewStabilityClient(logger, cfg.StabilityAPIKey, nil)
	}

	service := cards.NewService(logger, words, repo, store,
		llm.NewAnthropicClient(logger, cfg.AnthropicAPIKey, cfg.AnthropicModel, nil),
		tts.NewGoogleClient(logger, ttsClient, nil),
		images, opts)

	return service, func() { ttsClient.Close() }, nil
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
