package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/iulspop/learn-chinese/internal/cards"
)

const (
	defaultAnthropicEndpoint = "https://api.anthropic.com/v1/messages"
	defaultAnthropicModel    = "claude-sonnet-4-20250514"
	defaultMaxTokens         = 4096
	anthropicVersion         = "2023-06-01"
)

// AnthropicOptions allows overriding HTTP behavior.
type AnthropicOptions struct {
	BaseURL    string
	HTTPClient *http.Client
	MaxTokens  int
}

// AnthropicClient implements cards.SentenceGenerator against the Anthropic
// Messages API.
type AnthropicClient struct {
	logger     *slog.Logger
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
	maxTokens  int
}

// NewAnthropicClient constructs a new AnthropicClient.
func NewAnthropicClient(logger *slog.Logger, apiKey, model string, opts *AnthropicOptions) *AnthropicClient {
	if opts == nil {
		opts = &AnthropicOptions{}
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 120 * time.Second,
		}
	}

	endpoint := opts.BaseURL
	if endpoint == "" {
		endpoint = defaultAnthropicEndpoint
	}

	if model == "" {
		model = defaultAnthropicModel
	}

	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	return &AnthropicClient{
		logger:     logger,
		apiKey:     apiKey,
		model:      model,
		endpoint:   endpoint,
		httpClient: httpClient,
		maxTokens:  maxTokens,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type sentenceJSON struct {
	Simplified      string `json:"simplified"`
	Sentence        string `json:"sentence"`
	SentenceMeaning string `json:"sentenceMeaning"`
	ImagePrompt     string `json:"imagePrompt"`
}

type imagePromptJSON struct {
	Simplified  string `json:"simplified"`
	ImagePrompt string `json:"imagePrompt"`
}

// GenerateSentences asks for one example sentence per word in a single
// call and returns the bundles keyed by simplified form. Words absent from
// the reply are simply absent from the map. Transport, API, and parse
// failures all wrap cards.ErrBatchGeneration.
func (c *AnthropicClient) GenerateSentences(ctx context.Context, items []cards.ItemSummary) (map[string]cards.Sentence, error) {
	var list strings.Builder
	for _, item := range items {
		fmt.Fprintf(&list, "- %s (%s): %s\n", item.Simplified, item.Pinyin, item.Meaning)
	}

	prompt := fmt.Sprintf(`Generate one natural example sentence for each Chinese word below.
Each sentence should be simple, practical, and appropriate for the word's HSK level.
Use the word naturally in context. Aim for 6-15 characters per sentence.

For each word, provide:
1. sentence: The example sentence in simplified Chinese
2. sentenceMeaning: English translation of the sentence
3. imagePrompt: A short visual description for illustration (10-20 words, no text/words in image). Focus on the WORD's core meaning rather than the sentence. Keep it iconic and simple.

Return ONLY a JSON array with objects having keys: simplified, sentence, sentenceMeaning, imagePrompt

Words:
%s`, list.String())

	content, err := c.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var parsed []sentenceJSON
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("%w: parse sentences: %v content=%s", cards.ErrBatchGeneration, err, truncate([]byte(content), 256))
	}

	result := make(map[string]cards.Sentence, len(parsed))
	for _, s := range parsed {
		simplified := strings.TrimSpace(s.Simplified)
		sentence := strings.TrimSpace(s.Sentence)
		if simplified == "" || sentence == "" {
			continue
		}
		result[simplified] = cards.Sentence{
			Sentence:    sentence,
			Meaning:     strings.TrimSpace(s.SentenceMeaning),
			ImagePrompt: strings.TrimSpace(s.ImagePrompt),
		}
	}

	c.logger.Debug("sentence batch generated",
		slog.Int("requested", len(items)),
		slog.Int("returned", len(result)),
	)
	return result, nil
}

// GenerateImagePrompts asks for a fresh illustration prompt per existing
// record, for the missing-images pass.
func (c *AnthropicClient) GenerateImagePrompts(ctx context.Context, entries []cards.Record) (map[string]string, error) {
	var list strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&list, "- %s: %s (%s)\n", e.Simplified, e.Sentence, e.SentenceMeaning)
	}

	prompt := fmt.Sprintf(`For each Chinese word below, generate a short visual description for illustration (10-20 words, no text/words in image).
Focus on the WORD's core meaning rather than the sentence. Keep it iconic and simple.

Return ONLY a JSON array with objects having keys: simplified, imagePrompt

Words:
%s`, list.String())

	content, err := c.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var parsed []imagePromptJSON
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("%w: parse image prompts: %v", cards.ErrBatchGeneration, err)
	}

	result := make(map[string]string, len(parsed))
	for _, p := range parsed {
		if p.Simplified == "" || p.ImagePrompt == "" {
			continue
		}
		result[p.Simplified] = p.ImagePrompt
	}
	return result, nil
}

func (c *AnthropicClient) complete(ctx context.Context, prompt string) (string, error) {
	reqPayload := messagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []message{
			{Role: "user", Content: prompt},
		},
	}

	body, err := json.Marshal(reqPayload)
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", cards.ErrBatchGeneration, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", cards.ErrBatchGeneration, err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: call anthropic: %v", cards.ErrBatchGeneration, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", cards.ErrBatchGeneration, err)
	}

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: anthropic status=%d body=%s", cards.ErrBatchGeneration, resp.StatusCode, truncate(respBody, 512))
	}

	var parsed messagesResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", cards.ErrBatchGeneration, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("%w: anthropic error: %s (%s)", cards.ErrBatchGeneration, parsed.Error.Message, parsed.Error.Type)
	}
	if len(parsed.Content) == 0 {
		return "", fmt.Errorf("%w: anthropic returned no content", cards.ErrBatchGeneration)
	}

	return stripCodeFence(parsed.Content[0].Text), nil
}

func stripCodeFence(v string) string {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "```") {
		v = strings.TrimPrefix(v, "```")
		if idx := strings.Index(v, "\n"); idx != -1 {
			v = v[idx+1:]
		}
		v = strings.TrimSuffix(v, "```")
	}
	return strings.TrimSpace(v)
}

func truncate(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "…"
}
