package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iulspop/learn-chinese/internal/cards"
	"github.com/iulspop/learn-chinese/internal/llm"
	"github.com/iulspop/learn-chinese/internal/media"
	"github.com/iulspop/learn-chinese/internal/tts"
)

type memCatalog struct {
	items []cards.LexicalItem
}

func (c *memCatalog) Items(ctx context.Context) ([]cards.LexicalItem, error) {
	return c.items, nil
}

type memStore struct {
	mu      sync.Mutex
	records map[string]cards.Record
}

func (s *memStore) GetAll(ctx context.Context) (map[string]cards.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]cards.Record, len(s.records))
	for k, v := range s.records {
		out[k] = v
	}
	return out, nil
}

func (s *memStore) Upsert(ctx context.Context, rec cards.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Simplified] = rec
	return nil
}

func (s *memStore) Delete(ctx context.Context, simplified string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, simplified)
	return nil
}

func (s *memStore) MissingImages(ctx context.Context) ([]cards.Record, error) {
	return nil, nil
}

func newTestServer(t *testing.T, items []cards.LexicalItem) (*httptest.Server, *memStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := &memStore{records: make(map[string]cards.Record)}
	service := cards.NewService(logger, &memCatalog{items: items}, store,
		media.NewStore(t.TempDir()),
		llm.NewStubClient(logger), tts.NewStubClient(), nil, cards.Options{})

	server := httptest.NewServer(NewServer(logger, service, store, t.TempDir()))
	t.Cleanup(server.Close)
	return server, store
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t, nil)

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRecordsEndpoint(t *testing.T) {
	server, store := newTestServer(t, nil)
	require.NoError(t, store.Upsert(context.Background(), cards.Record{Simplified: "爱", Source: cards.SourceGenerated}))

	resp, err := http.Get(server.URL + "/api/records")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Count   int            `json:"count"`
		Records []cards.Record `json:"records"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Equal(t, 1, payload.Count)
	require.Equal(t, "爱", payload.Records[0].Simplified)
}

func TestStartRunAndStreamEvents(t *testing.T) {
	server, store := newTestServer(t, []cards.LexicalItem{
		{Simplified: "爱", Pinyin: "ài", Meaning: "to love", Level: 1},
	})

	resp, err := http.Post(server.URL+"/api/runs", "application/json", bytes.NewReader(nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var started struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))
	require.NotEmpty(t, started.ID)

	events, err := http.Get(server.URL + "/api/runs/" + started.ID + "/events")
	require.NoError(t, err)
	defer events.Body.Close()
	require.Equal(t, "text/event-stream", events.Header.Get("Content-Type"))

	var progress []cards.Progress
	scanner := bufio.NewScanner(events.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event cards.Progress
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event))
		progress = append(progress, event)
	}

	require.NotEmpty(t, progress)
	last := progress[len(progress)-1]
	require.True(t, last.Complete)
	require.Equal(t, 1, last.Generated)

	records, err := store.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestRunEventsUnknownRun(t *testing.T) {
	server, _ := newTestServer(t, nil)

	resp, err := http.Get(server.URL + "/api/runs/1b671a64-40d5-491e-99b0-da01ff1f3341/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(server.URL + "/api/runs/not-a-uuid/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
