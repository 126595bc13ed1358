// Package server exposes the engine over a small local HTTP API so a web
// front end can read task status, request searches and receive refresh
// signals over a WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/five82/lookout/internal/engine"
	"github.com/five82/lookout/internal/logging"
	"github.com/five82/lookout/internal/state"
	"github.com/five82/lookout/internal/tasks"
)

const (
	shutdownTimeout = 5 * time.Second
	writeWait       = 10 * time.Second
	pingPeriod      = 30 * time.Second
	// refreshBuffer bounds queued refresh messages per socket; extra signals
	// are dropped since one pending refresh already covers them.
	refreshBuffer = 1
)

type handler struct {
	engine   *engine.Engine
	logger   *log.Logger
	upgrader websocket.Upgrader
	now      func() time.Time
}

// TaskStatus is the JSON form of a task's status.
type TaskStatus struct {
	EventID  int64      `json:"eventId"`
	Part     *string    `json:"part"`
	Status   string     `json:"status"`
	QueuedAt *time.Time `json:"queuedAt,omitempty"`
}

// FeedState summarises one polled feed.
type FeedState struct {
	HasData             bool       `json:"hasData"`
	LastSuccess         *time.Time `json:"lastSuccess,omitempty"`
	LastError           string     `json:"lastError,omitempty"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	Offline             bool       `json:"offline"`
}

// EngineState is the payload of GET /api/state.
type EngineState struct {
	PendingSearches int       `json:"pendingSearches"`
	ActiveSearches  int       `json:"activeSearches"`
	LocalPending    int       `json:"localPending"`
	Downloads       int       `json:"downloads"`
	SearchQueue     FeedState `json:"searchQueue"`
	DownloadQueue   FeedState `json:"downloadQueue"`
	Offline         bool      `json:"offline"`
}

type refreshMessage struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
}

type searchRequest struct {
	EventID int64   `json:"eventId"`
	Part    *string `json:"part"`
}

// New returns the router for the local API.
func New(eng *engine.Engine, logger *log.Logger) http.Handler {
	h := &handler{
		engine: eng,
		logger: logging.Component(logger, "server"),
		// Browsers on other local ports are expected clients.
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		now:      time.Now,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, h.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.handleState)
		r.Get("/refresh", h.handleRefresh)
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/status", h.handleStatus)
			r.Post("/search", h.handleSearch)
		})
	})
	return r
}

// ListenAndServe serves h on addr until ctx is cancelled, then shuts
// down gracefully.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, logger *log.Logger) error {
	logger = logging.Component(logger, "server")
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logger.Info("stopped")
		return nil
	}
}

func (h *handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	key, err := keyFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.taskStatus(key))
}

func (h *handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.EventID <= 0 {
		writeError(w, http.StatusBadRequest, "eventId must be positive")
		return
	}
	key := tasks.KeyFor(req.EventID, req.Part)

	err := h.engine.RequestSearch(r.Context(), key)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, h.taskStatus(key))
	case errors.Is(err, engine.ErrSearchOutstanding):
		writeJSON(w, http.StatusConflict, h.taskStatus(key))
	default:
		h.logger.Warn("search request failed", "key", key, "err", err)
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func (h *handler) handleState(w http.ResponseWriter, _ *http.Request) {
	snap := h.engine.Snapshot()
	writeJSON(w, http.StatusOK, EngineState{
		PendingSearches: snap.SearchQueue.PendingCount(),
		ActiveSearches:  snap.SearchQueue.ActiveCount(),
		LocalPending:    h.engine.LocalPending(),
		Downloads:       len(snap.Downloads),
		SearchQueue:     feedState(snap.SearchFeed),
		DownloadQueue:   feedState(snap.DownloadsFeed),
		Offline:         snap.IsOffline(),
	})
}

// handleRefresh upgrades to a WebSocket and pushes one message per refresh
// signal until the client goes away.
func (h *handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "err", err)
		return
	}
	defer func() { _ = conn.Close() }()

	signals := make(chan time.Time, refreshBuffer)
	unsubscribe := h.engine.SubscribeToRefresh(func() {
		select {
		case signals <- h.now():
		default:
		}
	})
	defer unsubscribe()

	// Reader goroutine notices client close; incoming messages are ignored.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	h.logger.Debug("refresh subscriber connected", "remote", r.RemoteAddr)
	for {
		select {
		case <-closed:
			h.logger.Debug("refresh subscriber disconnected", "remote", r.RemoteAddr)
			return
		case <-r.Context().Done():
			return
		case at := <-signals:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(refreshMessage{Type: "refresh", At: at.UTC()}); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (h *handler) taskStatus(key tasks.Key) TaskStatus {
	out := TaskStatus{
		EventID: key.EventID,
		Part:    key.PartPtr(),
		Status:  h.engine.Status(key).String(),
	}
	if at, ok := h.engine.QueuedAt(key); ok {
		at = at.UTC()
		out.QueuedAt = &at
	}
	return out
}

func keyFromQuery(r *http.Request) (tasks.Key, error) {
	q := r.URL.Query()
	raw := strings.TrimSpace(q.Get("event"))
	if raw == "" {
		return tasks.Key{}, errors.New("event query parameter required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return tasks.Key{}, errors.New("event must be a positive integer")
	}
	if q.Has("part") {
		return tasks.PartKey(id, q.Get("part")), nil
	}
	return tasks.EventKey(id), nil
}

func feedState(f state.FeedStatus) FeedState {
	out := FeedState{
		HasData:             f.HasData,
		ConsecutiveFailures: f.ConsecutiveFailures,
		Offline:             f.IsOffline(),
	}
	if !f.LastSuccess.IsZero() {
		at := f.LastSuccess.UTC()
		out.LastSuccess = &at
	}
	if f.LastError != nil {
		out.LastError = f.LastError.Error()
	}
	return out
}

func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
