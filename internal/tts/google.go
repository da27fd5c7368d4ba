package tts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/cenkalti/backoff/v4"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/iulspop/learn-chinese/internal/cards"
)

const (
	defaultLanguageCode = "cmn-CN"
	defaultVoice        = "cmn-CN-Wavenet-C"
	maxRetries          = 4
)

// GoogleOptions configures optional client behavior.
type GoogleOptions struct {
	LanguageCode string
	Voice        string
}

// GoogleClient implements cards.SpeechSynthesizer over Google Cloud
// Text-to-Speech. Quota errors are retried with exponential backoff
// before being surfaced.
type GoogleClient struct {
	logger       *slog.Logger
	client       *texttospeech.Client
	languageCode string
	voice        string
}

// NewGoogleClient wraps an already-constructed texttospeech client.
func NewGoogleClient(logger *slog.Logger, client *texttospeech.Client, opts *GoogleOptions) *GoogleClient {
	if opts == nil {
		opts = &GoogleOptions{}
	}

	languageCode := opts.LanguageCode
	if languageCode == "" {
		languageCode = defaultLanguageCode
	}
	voice := opts.Voice
	if voice == "" {
		voice = defaultVoice
	}

	return &GoogleClient{
		logger:       logger,
		client:       client,
		languageCode: languageCode,
		voice:        voice,
	}
}

// Synthesize converts text to MP3 bytes at the given fraction of natural
// speaking speed.
func (c *GoogleClient) Synthesize(ctx context.Context, text string, speakingRate float64) ([]byte, error) {
	req := &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: c.languageCode,
			Name:         c.voice,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
			SpeakingRate:  speakingRate,
		},
	}

	var audio []byte
	operation := func() error {
		resp, err := c.client.SynthesizeSpeech(ctx, req)
		if err != nil {
			if status.Code(err) == codes.ResourceExhausted {
				c.logger.Warn("tts quota exhausted, retrying",
					slog.String("text", text),
					slog.String("error", err.Error()),
				)
				return err
			}
			return backoff.Permanent(err)
		}
		audio = resp.AudioContent
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, maxRetries), ctx)); err != nil {
		return nil, fmt.Errorf("%w: synthesize %q: %v", cards.ErrSpeechSynthesis, text, err)
	}

	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: empty audio for %q", cards.ErrSpeechSynthesis, text)
	}
	return audio, nil
}
