package llm

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iulspop/learn-chinese/internal/cards"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func anthropicReply(t *testing.T, text string) string {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"content": []map[string]string{{"type": "text", "text": text}},
	})
	require.NoError(t, err)
	return string(payload)
}

func TestGenerateSentencesParsesFencedJSON(t *testing.T) {
	reply := "```json\n[{\"simplified\":\"爱\",\"sentence\":\"我爱你。\",\"sentenceMeaning\":\"I love you.\",\"imagePrompt\":\"a red heart\"}]\n```"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.NotEmpty(t, r.Header.Get("anthropic-version"))
		io.WriteString(w, anthropicReply(t, reply))
	}))
	defer server.Close()

	client := NewAnthropicClient(discardLogger(), "test-key", "", &AnthropicOptions{BaseURL: server.URL})
	result, err := client.GenerateSentences(context.Background(), []cards.ItemSummary{
		{Simplified: "爱", Pinyin: "ài", Meaning: "to love"},
	})
	require.NoError(t, err)
	require.Len(t, result, 1)
	require.Equal(t, "我爱你。", result["爱"].Sentence)
	require.Equal(t, "I love you.", result["爱"].Meaning)
	require.Equal(t, "a red heart", result["爱"].ImagePrompt)
}

func TestGenerateSentencesTreatsAbsentWordAsMiss(t *testing.T) {
	reply := `[{"simplified":"爱","sentence":"我爱你。","sentenceMeaning":"I love you.","imagePrompt":"a heart"}]`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, anthropicReply(t, reply))
	}))
	defer server.Close()

	client := NewAnthropicClient(discardLogger(), "test-key", "", &AnthropicOptions{BaseURL: server.URL})
	result, err := client.GenerateSentences(context.Background(), []cards.ItemSummary{
		{Simplified: "爱", Pinyin: "ài", Meaning: "to love"},
		{Simplified: "国", Pinyin: "guó", Meaning: "country"},
	})
	require.NoError(t, err)
	require.Len(t, result, 1)
	_, ok := result["国"]
	require.False(t, ok)
}

func TestGenerateSentencesAPIErrorIsBatchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"type":"rate_limit_error","message":"slow down"}}`)
	}))
	defer server.Close()

	client := NewAnthropicClient(discardLogger(), "test-key", "", &AnthropicOptions{BaseURL: server.URL})
	_, err := client.GenerateSentences(context.Background(), []cards.ItemSummary{
		{Simplified: "爱", Pinyin: "ài", Meaning: "to love"},
	})
	require.ErrorIs(t, err, cards.ErrBatchGeneration)
}

func TestGenerateSentencesUnparseableReplyIsBatchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, anthropicReply(t, "Sorry, I cannot help with that."))
	}))
	defer server.Close()

	client := NewAnthropicClient(discardLogger(), "test-key", "", &AnthropicOptions{BaseURL: server.URL})
	_, err := client.GenerateSentences(context.Background(), []cards.ItemSummary{
		{Simplified: "爱", Pinyin: "ài", Meaning: "to love"},
	})
	require.ErrorIs(t, err, cards.ErrBatchGeneration)
}

func TestGenerateImagePrompts(t *testing.T) {
	reply := `[{"simplified":"爱","imagePrompt":"a red heart"},{"simplified":"国","imagePrompt":"a flag"}]`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, anthropicReply(t, reply))
	}))
	defer server.Close()

	client := NewAnthropicClient(discardLogger(), "test-key", "", &AnthropicOptions{BaseURL: server.URL})
	result, err := client.GenerateImagePrompts(context.Background(), []cards.Record{
		{Simplified: "爱", Sentence: "我爱你。", SentenceMeaning: "I love you."},
		{Simplified: "国", Sentence: "中国很大。", SentenceMeaning: "China is big."},
	})
	require.NoError(t, err)
	require.Equal(t, "a red heart", result["爱"])
	require.Equal(t, "a flag", result["国"])
}

func TestStubGeneratesEveryWord(t *testing.T) {
	client := NewStubClient(discardLogger())
	items := []cards.ItemSummary{
		{Simplified: "爱", Meaning: "to love"},
		{Simplified: "国", Meaning: "country"},
	}
	result, err := client.GenerateSentences(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, result, len(items))
	for _, item := range items {
		require.Contains(t, result[item.Simplified].Sentence, item.Simplified)
	}
}
