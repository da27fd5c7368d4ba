package image

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/iulspop/learn-chinese/internal/cards"
)

const (
	defaultStabilityEndpoint = "https://api.stability.ai/v2beta/stable-image/generate/sd3"
	defaultEngine            = "sd3.5-medium"
	stylePrefix              = "Simple flat illustration, clean modern style, no text or words: "
)

// StabilityOptions configures optional client behavior.
type StabilityOptions struct {
	BaseURL    string
	Engine     string
	HTTPClient *http.Client
}

// StabilityClient implements cards.ImageSynthesizer using Stability AI's
// stable-image API.
type StabilityClient struct {
	logger     *slog.Logger
	apiKey     string
	engine     string
	endpoint   string
	httpClient *http.Client
}

// NewStabilityClient creates a new Stability AI client.
func NewStabilityClient(logger *slog.Logger, apiKey string, opts *StabilityOptions) *StabilityClient {
	if opts == nil {
		opts = &StabilityOptions{}
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 60 * time.Second,
		}
	}

	engine := opts.Engine
	if engine == "" {
		engine = defaultEngine
	}

	endpoint := opts.BaseURL
	if endpoint == "" {
		endpoint = defaultStabilityEndpoint
	}

	return &StabilityClient{
		logger:     logger,
		apiKey:     apiKey,
		engine:     engine,
		endpoint:   endpoint,
		httpClient: httpClient,
	}
}

// Generate renders a JPEG illustration for prompt. Any failure wraps
// cards.ErrImageSynthesis; the orchestrator treats it as non-fatal.
func (c *StabilityClient) Generate(ctx context.Context, prompt string) ([]byte, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	fields := map[string]string{
		"prompt":        stylePrefix + prompt,
		"model":         c.engine,
		"output_format": "jpeg",
		"aspect_ratio":  "5:4",
	}
	for name, value := range fields {
		if err := form.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("%w: write form field: %v", cards.ErrImageSynthesis, err)
		}
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("%w: close form: %v", cards.ErrImageSynthesis, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", cards.ErrImageSynthesis, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "image/*")
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: call stability: %v", cards.ErrImageSynthesis, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("image generation failed",
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", string(detail)),
		)
		return nil, fmt.Errorf("%w: stability status=%d body=%s", cards.ErrImageSynthesis, resp.StatusCode, detail)
	}

	img, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read image: %v", cards.ErrImageSynthesis, err)
	}
	if len(img) == 0 {
		return nil, fmt.Errorf("%w: stability returned empty image", cards.ErrImageSynthesis)
	}
	return img, nil
}
