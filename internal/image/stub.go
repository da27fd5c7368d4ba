package image

import (
	"context"
)

// StubClient simulates image synthesis for development.
type StubClient struct{}

// NewStubClient constructs StubClient.
func NewStubClient() *StubClient {
	return &StubClient{}
}

// Generate returns deterministic placeholder bytes.
func (s *StubClient) Generate(ctx context.Context, prompt string) ([]byte, error) {
	return []byte("\xff\xd8\xff stub image: " + prompt), nil
}
