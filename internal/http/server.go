package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/iulspop/learn-chinese/internal/cards"
)

// Server wires the JSON API: starting enrichment runs, streaming their
// progress, listing records, and serving generated media.
type Server struct {
	logger  *slog.Logger
	service *cards.Service
	store   cards.RecordStore

	mu     sync.Mutex
	runs   map[uuid.UUID]*cards.Run
	active *cards.Run
}

// NewServer constructs a chi router implementing http.Handler. mediaDir is
// served read-only under /media/.
func NewServer(logger *slog.Logger, service *cards.Service, store cards.RecordStore, mediaDir string) http.Handler {
	srv := &Server{
		logger:  logger,
		service: service,
		store:   store,
		runs:    make(map[uuid.UUID]*cards.Run),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(mediaDir))))

	r.Get("/healthz", srv.handleHealth)
	r.Get("/api/records", srv.handleRecords)
	r.Post("/api/runs", srv.handleStartRun)
	r.Get("/api/runs/{id}/events", srv.handleRunEvents)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.GetAll(r.Context())
	if err != nil {
		s.serverError(w, err)
		return
	}

	list := make([]cards.Record, 0, len(records))
	for _, rec := range records {
		list = append(list, rec)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(list),
		"records": list,
	})
}

type startRunRequest struct {
	Words           []string `json:"words,omitempty"`
	Limit           int      `json:"limit,omitempty"`
	ForceRegenerate bool     `json:"forceRegenerate,omitempty"`
	SkipImages      bool     `json:"skipImages,omitempty"`
	// MissingImages selects the narrower illustration-only pass instead
	// of a full enrichment run.
	MissingImages bool `json:"missingImages,omitempty"`
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.clientError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.mu.Lock()
	if s.active != nil {
		s.mu.Unlock()
		s.clientError(w, http.StatusConflict, "a run is already in progress")
		return
	}

	// Runs outlive the request; cancellation is via process shutdown, not
	// client disconnect.
	ctx := context.WithoutCancel(r.Context())
	var run *cards.Run
	var err error
	if req.MissingImages {
		run, err = s.service.RegenerateMissingImages(ctx)
	} else {
		run, err = s.service.Run(ctx, cards.RunOptions{
			Words:           req.Words,
			Limit:           req.Limit,
			ForceRegenerate: req.ForceRegenerate,
			SkipImages:      req.SkipImages,
		})
	}
	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, cards.ErrMissingConfig) {
			s.clientError(w, http.StatusPreconditionFailed, err.Error())
			return
		}
		s.serverError(w, err)
		return
	}

	s.runs[run.ID] = run
	s.active = run
	s.mu.Unlock()

	go func() {
		run.Wait()
		s.mu.Lock()
		if s.active == run {
			s.active = nil
		}
		s.mu.Unlock()
	}()

	s.writeJSON(w, http.StatusAccepted, map[string]string{"id": run.ID.String()})
}

// handleRunEvents streams a run's progress as server-sent events. The
// stream has a single consumer; the first subscriber drains it.
func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.clientError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	s.mu.Lock()
	run, ok := s.runs[id]
	s.mu.Unlock()
	if !ok {
		s.clientError(w, http.StatusNotFound, "unknown run")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.serverError(w, errors.New("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-run.Events:
			if !open {
				if err := run.Wait(); err != nil {
					s.writeEvent(w, cards.Progress{Err: err.Error()})
					flusher.Flush()
				}
				return
			}
			s.writeEvent(w, event)
			flusher.Flush()
		}
	}
}

func (s *Server) writeEvent(w http.ResponseWriter, event cards.Progress) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal event", slog.String("error", err.Error()))
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response", slog.String("error", err.Error()))
	}
}

func (s *Server) serverError(w http.ResponseWriter, err error) {
	s.logger.Error("internal error", slog.String("error", err.Error()))
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func (s *Server) clientError(w http.ResponseWriter, status int, msg string) {
	http.Error(w, msg, status)
}
