package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/wiresharks/claudecodex/internal/errors"
)

// Web API fetch limits. The viewer pages are bigger than agent polls, so
// the cap is looser than the MCP tool's.
const (
	defaultAPILimit = 200
	maxAPILimit     = 500
)

// --- Helpers ---

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	jsonResponse(w, status, map[string]string{"error": msg})
}

func queryInt64(r *http.Request, key string, def int64) (int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// --- Health ---

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": s.cfg.Version,
		"name":    s.cfg.Name,
	})
}

// --- Messages ---

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	s.metrics.IncAPIRequests()

	target := r.URL.Query().Get("target")
	if target == "" {
		jsonError(w, http.StatusBadRequest, "target query parameter is required")
		return
	}

	since, err := queryInt64(r, "since_id", 0)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "since_id must be an integer")
		return
	}
	if since < 0 {
		since = 0
	}

	limit, err := queryInt(r, "limit", defaultAPILimit)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxAPILimit {
		limit = maxAPILimit
	}

	msgs, err := s.store.FetchMessages(target, since, limit)
	if err != nil {
		if errors.IsNotFound(err) {
			jsonError(w, http.StatusNotFound, err.Error())
			return
		}
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	latest := since
	if len(msgs) > 0 {
		latest = msgs[len(msgs)-1].ID
	}
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"messages":  msgs,
		"latest_id": latest,
	})
}

// --- Channels ---

func (s *Server) handleChannels(w http.ResponseWriter, _ *http.Request) {
	s.metrics.IncAPIRequests()

	names := s.store.ListChannels()
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"channels": names,
		"count":    len(names),
	})
}

// --- Stats ---

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.metrics.IncAPIRequests()

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"name":           s.cfg.Name,
		"version":        s.cfg.Version,
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"store":          s.store.Stats(),
		"metrics":        s.metrics.GetSummary(),
		"mcp_sessions":   s.mcp.SessionCount(),
	})
}

// --- SSE events ---

func (s *Server) handleSSEEvents(w http.ResponseWriter, r *http.Request) {
	s.serveSSE(w, r, "")
}

func (s *Server) handleSSEEventsFiltered(w http.ResponseWriter, r *http.Request) {
	s.serveSSE(w, r, r.PathValue("target"))
}

func (s *Server) serveSSE(w http.ResponseWriter, r *http.Request, target string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		jsonError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	clientID := uuid.New().String()
	client := s.broker.Subscribe(r.Context(), clientID, target)

	s.metrics.IncSSEClients()
	defer s.metrics.DecSSEClients()

	data, _ := json.Marshal(map[string]string{"type": "connected", "client_id": clientID})
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()

	for ev := range client.Events {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}
