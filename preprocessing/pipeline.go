package preprocessing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"green-route-server/logger"
	"green-route-server/routing"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"
)

// Settings toggles individual features. Length is always scored.
type Settings struct {
	TreeVsUrban bool
	TreeCover   bool
	Water       bool
	Traffic     bool
	AQI         bool
	GridCellM   float64
}

func DefaultSettings() Settings {
	return Settings{
		TreeVsUrban: true,
		TreeCover:   true,
		Water:       true,
		Traffic:     true,
		AQI:         true,
		GridCellM:   defaultGridCellM,
	}
}

// NeedsStatic reports whether any layer loaded once per process is in use.
func (s Settings) NeedsStatic() bool {
	return s.TreeVsUrban || s.TreeCover || s.Water
}

// Sources names the layer files on disk.
type Sources struct {
	GreenLayer string
	UrbanLayer string
	WaterFile  string
	TrafficDir string
	AQIDir     string
}

type StaticLayers struct {
	Green []orb.Polygon
	Urban []orb.Polygon
	Water []orb.Point
}

type DynamicLayers struct {
	Jams []JamSegment
	AQI  []AQISample
	// Files actually read, for logging.
	TrafficFile string
	AQIFile     string
}

// LoadStatic reads the layers needed by the enabled static features.
// Failures are configuration errors.
func (src Sources) LoadStatic(settings Settings) (StaticLayers, error) {
	var layers StaticLayers
	var err error
	if settings.TreeVsUrban || settings.TreeCover {
		if layers.Green, err = LoadPolygons(src.GreenLayer); err != nil {
			return layers, err
		}
	}
	if settings.TreeVsUrban {
		if layers.Urban, err = LoadPolygons(src.UrbanLayer); err != nil {
			return layers, err
		}
	}
	if settings.Water {
		if layers.Water, err = LoadWaterPoints(src.WaterFile); err != nil {
			return layers, err
		}
	}
	return layers, nil
}

// LoadDynamic reads the newest traffic and AQI files. Whatever loaded is
// returned alongside a transient error describing what did not.
func (src Sources) LoadDynamic(settings Settings) (DynamicLayers, error) {
	var layers DynamicLayers
	var errs []error

	if settings.Traffic {
		path, err := LatestFile(src.TrafficDir, "jams", ".csv")
		if err == nil {
			layers.Jams, err = LoadTraffic(path)
			layers.TrafficFile = path
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	if settings.AQI {
		path, err := LatestFile(src.AQIDir, "aqi", ".json")
		if err == nil {
			layers.AQI, err = LoadAQI(path)
			layers.AQIFile = path
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return layers, fmt.Errorf("load dynamic layers: %w", errors.Join(errs...))
	}
	return layers, nil
}

// Scorer computes raw feature columns for a fixed graph. It holds the
// projected edge geometry and is safe for concurrent use.
type Scorer struct {
	settings Settings
	proj     Projector
	keys     []routing.EdgeKey
	lengths  []float64
	lines    []orb.LineString
}

func NewScorer(g *routing.Graph, settings Settings) *Scorer {
	var bound orb.Bound
	first := true
	for _, n := range g.Nodes {
		pt := orb.Point{n.Longitude, n.Latitude}
		if first {
			bound = pointBound(pt)
			first = false
			continue
		}
		bound = bound.Extend(pt)
	}

	s := &Scorer{
		settings: settings,
		proj:     NewProjector(bound),
		keys:     make([]routing.EdgeKey, len(g.Edges)),
		lengths:  make([]float64, len(g.Edges)),
		lines:    make([]orb.LineString, len(g.Edges)),
	}
	for i, e := range g.Edges {
		s.keys[i] = e.Key()
		s.lengths[i] = e.Length
		ls := make(orb.LineString, len(e.Geometry))
		for j, c := range e.Geometry {
			ls[j] = orb.Point{c.Lon, c.Lat}
		}
		s.lines[i] = s.proj.LineString(ls)
	}
	return s
}

func (s *Scorer) Keys() []routing.EdgeKey { return s.keys }

// ScoreStatic computes tree-vs-urban, tree cover and water columns in
// parallel, each against its own read-only indexes.
func (s *Scorer) ScoreStatic(ctx context.Context, layers StaticLayers) (Columns, error) {
	var cols Columns
	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)

	var green, urban *polygonLayer
	if s.settings.TreeVsUrban || s.settings.TreeCover {
		green = s.newPolygonLayer(layers.Green)
	}
	if s.settings.TreeVsUrban {
		urban = s.newPolygonLayer(layers.Urban)
		g.Go(func() (err error) {
			cols.TreeVsUrban, err = s.treeVsUrban(ctx, green, urban)
			return err
		})
	}
	if s.settings.TreeCover {
		g.Go(func() (err error) {
			cols.TreeCover, err = s.treeCover(ctx, green)
			return err
		})
	}
	if s.settings.Water {
		water := s.newPointLayer(layers.Water, nil)
		g.Go(func() (err error) {
			cols.Water, err = s.waterProximity(ctx, water)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Columns{}, fmt.Errorf("score static features: %v: %w", err, routing.ErrInternal)
	}

	logger.L().Info("static_features_scored",
		"edges", len(s.lines),
		"green_polygons", len(layers.Green),
		"urban_polygons", len(layers.Urban),
		"water_points", len(layers.Water),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return cols, nil
}

// ScoreDynamic computes the traffic and AQI columns.
func (s *Scorer) ScoreDynamic(ctx context.Context, layers DynamicLayers) (Columns, error) {
	var cols Columns
	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)

	if s.settings.Traffic {
		jams := s.newLineLayer(layers.Jams)
		g.Go(func() (err error) {
			cols.Traffic, err = s.trafficLevel(ctx, jams)
			return err
		})
	}
	if s.settings.AQI {
		points := make([]orb.Point, len(layers.AQI))
		values := make([]float64, len(layers.AQI))
		for i, a := range layers.AQI {
			points[i] = a.Point
			values[i] = a.AQI
		}
		samples := s.newPointLayer(points, values)
		g.Go(func() (err error) {
			cols.AQI, err = s.airQuality(ctx, samples)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Columns{}, fmt.Errorf("score dynamic features: %v: %w", err, routing.ErrInternal)
	}

	logger.L().Info("dynamic_features_scored",
		"edges", len(s.lines),
		"jams", len(layers.Jams),
		"aqi_samples", len(layers.AQI),
		"traffic_file", layers.TrafficFile,
		"aqi_file", layers.AQIFile,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return cols, nil
}

// Table merges static and dynamic raw columns into a normalized weight table.
func (s *Scorer) Table(static, dynamic Columns) *routing.WeightTable {
	merged := Columns{
		TreeVsUrban: static.TreeVsUrban,
		TreeCover:   static.TreeCover,
		Water:       static.Water,
		Traffic:     dynamic.Traffic,
		AQI:         dynamic.AQI,
	}
	return BuildTable(s.keys, s.lengths, merged, s.settings)
}
