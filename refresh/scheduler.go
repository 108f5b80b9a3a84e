// Package refresh keeps the published snapshot current by rescoring dynamic
// data on a fixed interval.
package refresh

import (
	"context"
	"fmt"
	"time"

	"green-route-server/logger"
	"green-route-server/metrics"
	"green-route-server/preprocessing"
	"green-route-server/routing"
)

const DefaultInterval = 30 * time.Minute

// Builder is the part of the graph cache the scheduler drives.
type Builder interface {
	Get(ctx context.Context) (*routing.Snapshot, error)
	Refresh(ctx context.Context) (*routing.Snapshot, error)
}

type Scheduler struct {
	builder  Builder
	interval time.Duration
}

func New(builder Builder, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{builder: builder, interval: interval}
}

// Run builds the first snapshot, then refreshes every interval until ctx is
// cancelled. Only a failed first build is returned; later cycle failures are
// logged and the previous snapshot keeps serving.
func (s *Scheduler) Run(ctx context.Context) error {
	l := logger.L()
	start := time.Now()
	snap, err := s.builder.Get(ctx)
	if err != nil {
		return fmt.Errorf("initial snapshot: %w", err)
	}
	l.Info("refresh_initial_done", "version", snap.Version, "duration_ms", time.Since(start).Milliseconds(), "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			l.Info("refresh_stopped")
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single refresh cycle. Errors and panics never escape.
func (s *Scheduler) RunOnce(ctx context.Context) (err error) {
	l := logger.L()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refresh panic: %v: %w", r, routing.ErrInternal)
		}
		if err == nil {
			return
		}
		metrics.RefreshFailuresTotal.Inc()
		if preprocessing.IsTransient(err) {
			l.Warn("refresh_skipped", "err", err, "duration_ms", time.Since(start).Milliseconds())
			return
		}
		l.Error("refresh_failed", "err", err, "duration_ms", time.Since(start).Milliseconds())
	}()

	snap, err := s.builder.Refresh(ctx)
	if err != nil {
		return err
	}
	l.Info("refresh_done", "version", snap.Version, "duration_ms", time.Since(start).Milliseconds())
	return nil
}
