package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RouteRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "greenroute_route_requests_total",
		Help: "Route requests by outcome (ok, invalid, not_found, error, timeout, rate_limited)",
	}, []string{"outcome"})
	RouteDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "greenroute_route_duration_ms",
		Help:    "Snap plus A* search duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	})
	RouteLengthMeters = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "greenroute_route_length_meters",
		Help:    "Reported route length in meters",
		Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 25000},
	})
	SnapshotBuildsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "greenroute_snapshot_builds_total",
		Help: "Snapshot builds by kind (initial, refresh) and status (ok, error)",
	}, []string{"kind", "status"})
	SnapshotBuildDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "greenroute_snapshot_build_duration_ms",
		Help:    "Snapshot build duration in milliseconds",
		Buckets: []float64{10, 100, 500, 1000, 5000, 15000, 60000, 300000},
	}, []string{"kind"})
	SnapshotVersion = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "greenroute_snapshot_version",
		Help: "Version of the currently published snapshot",
	})
	RefreshFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "greenroute_refresh_failures_total",
		Help: "Scheduled refresh cycles that failed or panicked",
	})
	WeightStoreTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "greenroute_weight_store_total",
		Help: "Static weight store lookups by result (hit, miss, error, saved)",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(RouteRequestsTotal)
	prometheus.MustRegister(RouteDurationMs)
	prometheus.MustRegister(RouteLengthMeters)
	prometheus.MustRegister(SnapshotBuildsTotal)
	prometheus.MustRegister(SnapshotBuildDurationMs)
	prometheus.MustRegister(SnapshotVersion)
	prometheus.MustRegister(RefreshFailuresTotal)
	prometheus.MustRegister(WeightStoreTotal)
}

// Handler exposes the registered metrics for scraping.
func Handler() http.Handler { return promhttp.Handler() }
