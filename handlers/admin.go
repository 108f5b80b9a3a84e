package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"green-route-server/graphcache"
	"green-route-server/metrics"
	"green-route-server/models"
	"green-route-server/routing"

	"github.com/gorilla/mux"
)

const AdminTokenHeader = "X-Admin-Token"

// SnapshotAdmin is what the admin listener needs from the graph cache.
type SnapshotAdmin interface {
	Stats() graphcache.Stats
	Refresh(ctx context.Context) (*routing.Snapshot, error)
}

type AdminHandler struct {
	cache   SnapshotAdmin
	token   string
	timeout time.Duration
	log     *slog.Logger
}

// NewAdminHandler builds the ops surface. An empty token disables the
// refresh endpoint.
func NewAdminHandler(cache SnapshotAdmin, token string, timeout time.Duration, l *slog.Logger) *AdminHandler {
	if l == nil {
		l = slog.Default()
	}
	return &AdminHandler{cache: cache, token: token, timeout: timeout, log: l}
}

func (h *AdminHandler) RegisterRoutes(router *mux.Router) {
	router.Handle("/metrics", metrics.Handler()).Methods("GET")
	router.HandleFunc("/admin/snapshot", h.GetSnapshot).Methods("GET")
	router.HandleFunc("/admin/refresh", h.TriggerRefresh).Methods("POST")
}

func (h *AdminHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *AdminHandler) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	if h.token == "" {
		writeJSON(w, http.StatusForbidden, models.ApiError{Error: "refresh endpoint disabled"})
		return
	}
	got := r.Header.Get(AdminTokenHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
		writeJSON(w, http.StatusUnauthorized, models.ApiError{Error: "invalid admin token"})
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	snap, err := h.cache.Refresh(ctx)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, routing.ErrTransientUpstream) || errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}
		h.log.Warn("manual_refresh_failed", "status", status, "err", err)
		writeJSON(w, status, models.ApiError{Error: "refresh failed"})
		return
	}
	h.log.Info("manual_refresh_done", "version", snap.Version)
	writeJSON(w, http.StatusOK, models.RefreshResponse{Version: snap.Version, BuiltAt: snap.BuiltAt})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
