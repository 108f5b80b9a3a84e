// Package graphcache owns the published routing snapshot. The network, its
// indexes and the static feature columns are built once per process; each
// refresh rescores traffic and air quality and swaps in a new snapshot.
package graphcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"green-route-server/logger"
	"green-route-server/metrics"
	"green-route-server/preprocessing"
	"green-route-server/routing"

	"golang.org/x/sync/singleflight"
)

const buildKey = "snapshot"

type Options struct {
	NetworkFile string
	Sources     preprocessing.Sources
	Settings    preprocessing.Settings
	Store       WeightStore
}

// base is the part of a snapshot that never changes after the first build.
type base struct {
	graph  *routing.Graph
	coords *routing.CoordinateIndex
	edges  *routing.EdgeIndex
	scorer *preprocessing.Scorer
	static preprocessing.Columns
}

// Stats is a point-in-time view for status endpoints.
type Stats struct {
	Ready            bool      `json:"ready"`
	Version          int64     `json:"version"`
	BuiltAt          time.Time `json:"built_at,omitempty"`
	Nodes            int       `json:"nodes"`
	Edges            int       `json:"edges"`
	LastRefreshAt    time.Time `json:"last_refresh_at,omitempty"`
	LastRefreshError string    `json:"last_refresh_error,omitempty"`
	Store            string    `json:"store"`
}

type Cache struct {
	opts Options

	current atomic.Pointer[routing.Snapshot]
	group   singleflight.Group
	version atomic.Int64

	// only touched from inside the single build flight
	base *base

	mu            sync.Mutex
	lastRefreshAt time.Time
	lastErr       error
}

func New(opts Options) *Cache {
	if opts.Store == nil {
		opts.Store = NopStore{}
	}
	return &Cache{opts: opts}
}

// Ready reports whether a snapshot has been published.
func (c *Cache) Ready() bool {
	return c.current.Load() != nil
}

// Current returns the published snapshot without triggering a build.
func (c *Cache) Current() *routing.Snapshot {
	return c.current.Load()
}

// Get returns the published snapshot, joining or starting the first build
// when there is none yet.
func (c *Cache) Get(ctx context.Context) (*routing.Snapshot, error) {
	if s := c.current.Load(); s != nil {
		return s, nil
	}
	return c.do(ctx, false)
}

// Refresh rebuilds the dynamic columns and publishes a new snapshot. On
// failure the previous snapshot stays published.
func (c *Cache) Refresh(ctx context.Context) (*routing.Snapshot, error) {
	return c.do(ctx, true)
}

// do runs at most one build at a time; concurrent callers share its result.
// The build itself is detached from ctx so one impatient caller cannot
// abort it for everyone else.
func (c *Cache) do(ctx context.Context, refresh bool) (*routing.Snapshot, error) {
	buildCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(buildKey, func() (interface{}, error) {
		return c.build(buildCtx, refresh)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*routing.Snapshot), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) build(ctx context.Context, refresh bool) (snap *routing.Snapshot, err error) {
	if !refresh {
		if s := c.current.Load(); s != nil {
			return s, nil
		}
	}
	kind := "initial"
	if c.current.Load() != nil {
		kind = "refresh"
	}
	l := logger.L().With("kind", kind)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("snapshot build panic: %v: %w", r, routing.ErrInternal)
		}
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.SnapshotBuildsTotal.WithLabelValues(kind, status).Inc()
		metrics.SnapshotBuildDurationMs.WithLabelValues(kind).Observe(float64(time.Since(start).Milliseconds()))
		if kind == "refresh" {
			c.recordRefresh(err)
		}
	}()

	if c.base == nil {
		b, err := c.loadBase(ctx)
		if err != nil {
			l.Error("snapshot_base_failed", "err", err)
			return nil, err
		}
		c.base = b
	}
	b := c.base

	layers, err := c.opts.Sources.LoadDynamic(c.opts.Settings)
	if err != nil {
		if kind == "refresh" {
			l.Warn("refresh_skipped", "err", err)
			return nil, err
		}
		// first build serves with whatever dynamic data exists
		l.Warn("dynamic_layers_unavailable", "err", err)
	}

	dynamic, err := b.scorer.ScoreDynamic(ctx, layers)
	if err != nil {
		l.Error("dynamic_scoring_failed", "err", err)
		return nil, err
	}

	table := b.scorer.Table(b.static, dynamic)
	version := c.version.Add(1)
	snap = routing.NewSnapshot(version, b.graph, table, b.coords, b.edges)
	c.current.Store(snap)
	metrics.SnapshotVersion.Set(float64(version))

	l.Info("snapshot_published",
		"version", version,
		"nodes", len(b.graph.Nodes),
		"edges", len(b.graph.Edges),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return snap, nil
}

// loadBase reads the network file, builds the graph indexes and obtains the
// static columns from the weight store or by scoring them.
func (c *Cache) loadBase(ctx context.Context) (*base, error) {
	l := logger.L()
	start := time.Now()

	nf, err := routing.LoadNetwork(c.opts.NetworkFile)
	if err != nil {
		return nil, err
	}
	g, err := routing.BuildGraph(nf)
	if err != nil {
		return nil, err
	}
	b := &base{
		graph:  g,
		coords: routing.NewCoordinateIndex(g),
		edges:  routing.NewEdgeIndex(g),
		scorer: preprocessing.NewScorer(g, c.opts.Settings),
	}
	l.Info("network_loaded",
		"file", c.opts.NetworkFile,
		"nodes", len(g.Nodes),
		"edges", len(g.Edges),
		"raw_edges", len(nf.Edges),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if !c.opts.Settings.NeedsStatic() {
		return b, nil
	}

	fp, err := Fingerprint(c.opts.NetworkFile, len(g.Edges), c.opts.Settings, c.opts.Sources)
	if err != nil {
		return nil, err
	}
	if cols, ok := c.loadStored(ctx, fp, b.scorer.Keys()); ok {
		b.static = cols
		return b, nil
	}

	layers, err := c.opts.Sources.LoadStatic(c.opts.Settings)
	if err != nil {
		return nil, err
	}
	b.static, err = b.scorer.ScoreStatic(ctx, layers)
	if err != nil {
		return nil, err
	}

	rec := &StaticRecord{Fingerprint: fp, Keys: b.scorer.Keys(), Columns: b.static, SavedAt: time.Now().UTC()}
	if err := c.opts.Store.Save(ctx, rec); err != nil {
		metrics.WeightStoreTotal.WithLabelValues("error").Inc()
		l.Warn("weight_store_save_failed", "store", c.opts.Store.Name(), "err", err)
	} else {
		metrics.WeightStoreTotal.WithLabelValues("saved").Inc()
	}
	return b, nil
}

func (c *Cache) loadStored(ctx context.Context, fp string, keys []routing.EdgeKey) (preprocessing.Columns, bool) {
	l := logger.L().With("store", c.opts.Store.Name())
	rec, err := c.opts.Store.Load(ctx, fp)
	switch {
	case errors.Is(err, routing.ErrNotFound):
		metrics.WeightStoreTotal.WithLabelValues("miss").Inc()
		l.Info("weight_store_miss", "fingerprint", fp)
		return preprocessing.Columns{}, false
	case err != nil:
		metrics.WeightStoreTotal.WithLabelValues("error").Inc()
		l.Warn("weight_store_load_failed", "err", err)
		return preprocessing.Columns{}, false
	}
	if !sameKeys(rec.Keys, keys) {
		metrics.WeightStoreTotal.WithLabelValues("miss").Inc()
		l.Warn("weight_store_keys_mismatch", "fingerprint", fp)
		return preprocessing.Columns{}, false
	}
	metrics.WeightStoreTotal.WithLabelValues("hit").Inc()
	l.Info("weight_store_hit", "fingerprint", fp, "saved_at", rec.SavedAt)
	return rec.Columns, true
}

func sameKeys(a, b []routing.EdgeKey) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (c *Cache) recordRefresh(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastRefreshAt = time.Now().UTC()
	c.lastErr = err
}

func (c *Cache) Stats() Stats {
	st := Stats{Store: c.opts.Store.Name()}
	if s := c.current.Load(); s != nil {
		st.Ready = true
		st.Version = s.Version
		st.BuiltAt = s.BuiltAt
		st.Nodes = s.NodeCount()
		st.Edges = s.EdgeCount()
	}
	c.mu.Lock()
	st.LastRefreshAt = c.lastRefreshAt
	if c.lastErr != nil {
		st.LastRefreshError = c.lastErr.Error()
	}
	c.mu.Unlock()
	return st
}
