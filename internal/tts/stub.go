package tts

import (
	"context"
	"fmt"
)

// StubClient simulates speech synthesis for development.
type StubClient struct{}

// NewStubClient constructs StubClient.
func NewStubClient() *StubClient {
	return &StubClient{}
}

// Synthesize returns deterministic placeholder bytes for text.
func (s *StubClient) Synthesize(ctx context.Context, text string, speakingRate float64) ([]byte, error) {
	return []byte(fmt.Sprintf("ID3 stub audio %s @%.2f", text, speakingRate)), nil
}
