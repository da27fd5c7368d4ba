package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/iulspop/learn-chinese/internal/cards"
)

// StubClient implements cards.SentenceGenerator with deterministic output
// for development without an API key.
type StubClient struct {
	logger *slog.Logger
}

// NewStubClient returns a stubbed sentence generator.
func NewStubClient(logger *slog.Logger) *StubClient {
	return &StubClient{logger: logger}
}

// GenerateSentences returns a fixed-pattern sentence for every word.
func (s *StubClient) GenerateSentences(ctx context.Context, items []cards.ItemSummary) (map[string]cards.Sentence, error) {
	result := make(map[string]cards.Sentence, len(items))
	for _, item := range items {
		result[item.Simplified] = cards.Sentence{
			Sentence:    fmt.Sprintf("我觉得%s很重要。", item.Simplified),
			Meaning:     fmt.Sprintf("I think %s is important.", item.Meaning),
			ImagePrompt: fmt.Sprintf("Simple icon representing %s", item.Meaning),
		}
	}

	s.logger.Debug("stub generated sentences", slog.Int("count", len(result)))
	return result, nil
}

// GenerateImagePrompts returns a fixed-pattern prompt for every record.
func (s *StubClient) GenerateImagePrompts(ctx context.Context, entries []cards.Record) (map[string]string, error) {
	result := make(map[string]string, len(entries))
	for _, e := range entries {
		result[e.Simplified] = fmt.Sprintf("Simple icon representing %s", e.Meaning)
	}
	return result, nil
}
