package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rflorenc/facility-workbench/internal/screen"
)

// ListResources returns every resource schema.
func (s *Server) ListResources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Registry.All())
}

func (s *Server) screenFor(w http.ResponseWriter, r *http.Request) *screen.Screen {
	sc := s.Screens.Get(chi.URLParam(r, "id"))
	if sc == nil {
		writeError(w, http.StatusNotFound, "screen not found")
		return nil
	}
	return sc
}

// respond writes the screen view, or the error with the view attached.
func respond(w http.ResponseWriter, sc *screen.Screen, err error) {
	if err != nil {
		writeScreenError(w, sc, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, sc.View())
}

// MountScreen opens a screen for a resource and runs the initial fetch. A
// failed fetch still mounts the screen; the view carries the error state.
func (s *Server) MountScreen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Resource string `json:"resource"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	schema, err := s.Registry.Get(req.Resource)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	sc := screen.New(schema, s.Sources(schema), s.Notes, s.Options)
	s.Screens.Add(sc)
	if err := sc.Mount(r.Context()); err != nil {
		slog.Warn("screen_event", "event", "initial_fetch_failed", "screen", sc.ID(), "error", err)
	}
	writeJSON(w, http.StatusCreated, sc.View())
}

func (s *Server) GetScreen(w http.ResponseWriter, r *http.Request) {
	if sc := s.screenFor(w, r); sc != nil {
		writeJSON(w, http.StatusOK, sc.View())
	}
}

func (s *Server) CloseScreen(w http.ResponseWriter, r *http.Request) {
	if !s.Screens.Delete(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "screen not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Fetch failures are part of the view (state "error"), not an HTTP failure.
func respondAfterFetch(w http.ResponseWriter, sc *screen.Screen, err error) {
	if err != nil && statusFor(err) == http.StatusBadGateway {
		err = nil
	}
	respond(w, sc, err)
}

func (s *Server) RefreshScreen(w http.ResponseWriter, r *http.Request) {
	sc := s.screenFor(w, r)
	if sc == nil {
		return
	}
	respondAfterFetch(w, sc, sc.Refresh(r.Context()))
}

func (s *Server) SetSearch(w http.ResponseWriter, r *http.Request) {
	sc := s.screenFor(w, r)
	if sc == nil {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondAfterFetch(w, sc, sc.SetSearchText(r.Context(), req.Text))
}

func (s *Server) SetFilter(w http.ResponseWriter, r *http.Request) {
	sc := s.screenFor(w, r)
	if sc == nil {
		return
	}
	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondAfterFetch(w, sc, sc.SetFilter(r.Context(), req.Key, req.Value))
}

func (s *Server) ClearFilters(w http.ResponseWriter, r *http.Request) {
	sc := s.screenFor(w, r)
	if sc == nil {
		return
	}
	respondAfterFetch(w, sc, sc.ClearFilters(r.Context()))
}

func (s *Server) SetSort(w http.ResponseWriter, r *http.Request) {
	sc := s.screenFor(w, r)
	if sc == nil {
		return
	}
	var req struct {
		Field string `json:"field"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondAfterFetch(w, sc, sc.SetSort(r.Context(), req.Field))
}

func (s *Server) SetPage(w http.ResponseWriter, r *http.Request) {
	sc := s.screenFor(w, r)
	if sc == nil {
		return
	}
	var req struct {
		Page int `json:"page"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Page < 1 {
		writeError(w, http.StatusBadRequest, "page must be >= 1")
		return
	}
	respondAfterFetch(w, sc, sc.SetPage(r.Context(), req.Page))
}

// SweepIdle closes screens left unused for maxIdle, checking every interval,
// until ctx is done.
func (s *Server) SweepIdle(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Screens.Sweep(maxIdle); n > 0 {
				slog.Info("screen_event", "event", "idle_screens_closed", "count", n)
			}
		}
	}
}
