package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"green-route-server/metrics"
	"green-route-server/models"
	"green-route-server/routing"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidInput = "Invalid input"
	msgNoPath       = "No path found"
	msgInternal     = "Internal issues"
)

// SnapshotSource is the read side of the graph cache.
type SnapshotSource interface {
	Get(ctx context.Context) (*routing.Snapshot, error)
	Ready() bool
}

type RoutingHandler struct {
	source  SnapshotSource
	timeout time.Duration
	log     *slog.Logger
	find    func(s *routing.Snapshot, start, finish routing.Coordinate, tags []routing.Tag) (*routing.Route, error)
}

func NewRoutingHandler(source SnapshotSource, timeout time.Duration, l *slog.Logger) *RoutingHandler {
	if l == nil {
		l = slog.Default()
	}
	return &RoutingHandler{source: source, timeout: timeout, log: l, find: (*routing.Snapshot).FindRoute}
}

func (h *RoutingHandler) RegisterRoutes(r gin.IRouter) {
	r.POST("/routes/", h.CalculateRoute)
	r.GET("/health", h.Health)
}

type searchResult struct {
	route *routing.Route
	err   error
}

func (h *RoutingHandler) CalculateRoute(c *gin.Context) {
	start := time.Now()
	l := h.log.With("request_id", c.GetString("request_id"))

	var req models.RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, l, http.StatusBadRequest, "invalid", msgInvalidInput, err)
		return
	}
	from, err := req.Start.Coordinate("start")
	if err != nil {
		h.fail(c, l, http.StatusBadRequest, "invalid", msgInvalidInput, err)
		return
	}
	to, err := req.Finish.Coordinate("finish")
	if err != nil {
		h.fail(c, l, http.StatusBadRequest, "invalid", msgInvalidInput, err)
		return
	}

	// waits for the first snapshot for as long as the client stays connected
	if !h.source.Ready() {
		l.Info("route_waiting_for_snapshot")
	}
	snap, err := h.source.Get(c.Request.Context())
	if err != nil {
		h.fail(c, l, http.StatusInternalServerError, "error", msgInternal, err)
		return
	}

	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	tags := routing.ParseTags(req.Tags)

	// the search itself is not cancellable; a late result is dropped
	done := make(chan searchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- searchResult{err: fmt.Errorf("route search panic: %v: %w", r, routing.ErrInternal)}
			}
		}()
		route, err := h.find(snap, from, to, tags)
		done <- searchResult{route: route, err: err}
	}()

	var res searchResult
	select {
	case res = <-done:
	case <-ctx.Done():
		h.fail(c, l, http.StatusInternalServerError, "timeout", msgInternal, ctx.Err())
		return
	}

	switch {
	case res.err == nil:
	case errors.Is(res.err, routing.ErrInput):
		h.fail(c, l, http.StatusBadRequest, "invalid", msgInvalidInput, res.err)
		return
	case errors.Is(res.err, routing.ErrNotFound):
		h.fail(c, l, http.StatusNotFound, "not_found", msgNoPath, res.err)
		return
	default:
		h.fail(c, l, http.StatusInternalServerError, "error", msgInternal, res.err)
		return
	}

	elapsed := time.Since(start)
	metrics.RouteRequestsTotal.WithLabelValues("ok").Inc()
	metrics.RouteDurationMs.Observe(float64(elapsed.Milliseconds()))
	metrics.RouteLengthMeters.Observe(res.route.Length)
	l.Info("route_found",
		"snapshot", snap.Version,
		"tags", len(tags),
		"nodes", len(res.route.Nodes),
		"length_m", res.route.Length,
		"duration_ms", elapsed.Milliseconds(),
	)
	c.JSON(http.StatusOK, res.route.Result(req.Encoded))
}

func (h *RoutingHandler) fail(c *gin.Context, l *slog.Logger, status int, outcome, msg string, err error) {
	metrics.RouteRequestsTotal.WithLabelValues(outcome).Inc()
	if status >= http.StatusInternalServerError {
		l.Error("route_failed", "outcome", outcome, "err", err)
	} else {
		l.Info("route_rejected", "outcome", outcome, "err", err)
	}
	c.AbortWithStatusJSON(status, models.ApiError{Error: msg, RequestID: c.GetString("request_id")})
}

func (h *RoutingHandler) Health(c *gin.Context) {
	resp := models.HealthResponse{Status: "warming"}
	if h.source.Ready() {
		resp.Status = "healthy"
		if s, err := h.source.Get(c.Request.Context()); err == nil {
			resp.SnapshotVersion = s.Version
		}
	}
	c.JSON(http.StatusOK, resp)
}
