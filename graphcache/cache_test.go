package graphcache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"green-route-server/preprocessing"
	"green-route-server/routing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const greenLayer = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[-73.5705,45.4995],[-73.5695,45.4995],[-73.5695,45.5005],[-73.5705,45.5005],[-73.5705,45.4995]]]}}
]}`

const urbanLayer = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[-73.5685,45.5005],[-73.5675,45.5005],[-73.5675,45.5015],[-73.5685,45.5015],[-73.5685,45.5005]]]}}
]}`

const jamsCSV = "line,level,length,roadType\n" +
	`"[{'x': -73.5688, 'y': 45.5000}, {'x': -73.5682, 'y': 45.5000}]",4,47,1` + "\n"

const aqiJSON = `[{"latitude":45.5005,"longitude":-73.5690,"indexes":[{"code":"uaqi","aqi":55}]}]`

type fixture struct {
	dir  string
	opts Options
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	nf := &routing.NetworkFile{
		Nodes: []routing.NetworkNode{
			{ID: 1, Latitude: 45.5000, Longitude: -73.5700},
			{ID: 2, Latitude: 45.5000, Longitude: -73.5690},
			{ID: 3, Latitude: 45.5000, Longitude: -73.5680},
			{ID: 4, Latitude: 45.5010, Longitude: -73.5700},
			{ID: 5, Latitude: 45.5010, Longitude: -73.5690},
			{ID: 6, Latitude: 45.5010, Longitude: -73.5680},
		},
		Edges: []routing.NetworkEdge{
			{FromID: 1, ToID: 2}, {FromID: 2, ToID: 3},
			{FromID: 4, ToID: 5}, {FromID: 5, ToID: 6},
			{FromID: 1, ToID: 4}, {FromID: 2, ToID: 5}, {FromID: 3, ToID: 6},
			{FromID: 2, ToID: 1, Key: 1, Length: 5}, // shorter parallel edge, dropped
		},
	}
	network := filepath.Join(dir, "walk.gob")
	require.NoError(t, routing.WriteNetwork(network, nf))

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	settings := preprocessing.DefaultSettings()
	settings.GridCellM = 10

	return &fixture{
		dir: dir,
		opts: Options{
			NetworkFile: network,
			Sources: preprocessing.Sources{
				GreenLayer: write("green.geojson", greenLayer),
				UrbanLayer: write("urban.geojson", urbanLayer),
				WaterFile:  write("water.csv", "xcoord,ycoord\n-73.5695,45.4999\n"),
				TrafficDir: filepath.Dir(write("traffic/jams_1.csv", jamsCSV)),
				AQIDir:     filepath.Dir(write("aqi/aqi_1.json", aqiJSON)),
			},
			Settings: settings,
		},
	}
}

func TestGetBuildsOnce(t *testing.T) {
	c := New(newFixture(t).opts)
	assert.False(t, c.Ready())

	const callers = 16
	snaps := make([]*routing.Snapshot, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := c.Get(context.Background())
			assert.NoError(t, err)
			snaps[i] = s
		}(i)
	}
	wg.Wait()

	require.NotNil(t, snaps[0])
	for _, s := range snaps {
		assert.Same(t, snaps[0], s)
	}
	assert.Equal(t, int64(1), snaps[0].Version)
	assert.True(t, c.Ready())
	assert.Equal(t, 6, snaps[0].NodeCount())
	assert.Equal(t, 7, snaps[0].EdgeCount())
}

func TestSnapshotScores(t *testing.T) {
	c := New(newFixture(t).opts)
	s, err := c.Get(context.Background())
	require.NoError(t, err)

	// 2-3 carries the only jam, 1-2 runs through the park
	jammed, ok := s.Weights.Row(2, 3)
	require.True(t, ok)
	assert.Equal(t, 100.0, jammed.Traffic)

	park, ok := s.Weights.Row(1, 2)
	require.True(t, ok)
	assert.Zero(t, park.Traffic)
	assert.InDelta(t, 0, park.TreeCover, 1e-6, "half covered edges share the column max")
	assert.Greater(t, park.Length, 70.0)
}

func TestRefreshDuringSearch(t *testing.T) {
	c := New(newFixture(t).opts)
	old, err := c.Get(context.Background())
	require.NoError(t, err)

	fresh, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, old, fresh)
	assert.Equal(t, int64(2), fresh.Version)

	// static structures are shared, the old snapshot keeps working
	assert.Same(t, old.Graph, fresh.Graph)
	route, err := old.FindRoute(routing.Coordinate{Lat: 45.4999, Lon: -73.5695}, routing.Coordinate{Lat: 45.5011, Lon: -73.5685}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, route.Points)

	current, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, fresh, current)
}

func TestRefreshFailureKeepsSnapshot(t *testing.T) {
	f := newFixture(t)
	c := New(f.opts)
	first, err := c.Get(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(f.opts.Sources.TrafficDir))

	_, err = c.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, routing.ErrTransientUpstream))

	current, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, current)

	st := c.Stats()
	assert.True(t, st.Ready)
	assert.Equal(t, int64(1), st.Version)
	assert.NotEmpty(t, st.LastRefreshError)
}

func TestInitialBuildWithoutDynamicData(t *testing.T) {
	f := newFixture(t)
	f.opts.Sources.TrafficDir = filepath.Join(f.dir, "nothing-here")
	f.opts.Sources.AQIDir = filepath.Join(f.dir, "nothing-here")

	s, err := New(f.opts).Get(context.Background())
	require.NoError(t, err)
	row, ok := s.Weights.Row(2, 3)
	require.True(t, ok)
	assert.Zero(t, row.Traffic)
	assert.Zero(t, row.AQI)
}

func TestMissingStaticInputs(t *testing.T) {
	t.Run("network", func(t *testing.T) {
		f := newFixture(t)
		f.opts.NetworkFile = filepath.Join(f.dir, "missing.gob")

		_, err := New(f.opts).Get(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, routing.ErrConfiguration))
	})

	t.Run("green layer", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, os.Remove(f.opts.Sources.GreenLayer))

		c := New(f.opts)
		_, err := c.Get(context.Background())
		assert.True(t, errors.Is(err, routing.ErrConfiguration))
		assert.False(t, c.Ready())
	})
}

// countingStore records how often the static pass had to be rerun.
type countingStore struct {
	WeightStore
	saves int
}

func (s *countingStore) Save(ctx context.Context, rec *StaticRecord) error {
	s.saves++
	return s.WeightStore.Save(ctx, rec)
}

func TestStaticColumnsComeFromStore(t *testing.T) {
	f := newFixture(t)
	store := &countingStore{WeightStore: NewFileStore(filepath.Join(f.dir, "cache", "static.gob"))}
	f.opts.Store = store

	first, err := New(f.opts).Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, store.saves)

	second, err := New(f.opts).Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, store.saves, "unchanged inputs reuse the stored columns")

	for _, e := range first.Graph.Edges {
		a, _ := first.Weights.Row(e.FromID, e.ToID)
		b, _ := second.Weights.Row(e.FromID, e.ToID)
		assert.Equal(t, a, b)
	}
}

func TestChangedLayerInvalidatesStore(t *testing.T) {
	f := newFixture(t)
	store := &countingStore{WeightStore: NewFileStore(filepath.Join(f.dir, "cache", "static.gob"))}
	f.opts.Store = store

	_, err := New(f.opts).Get(context.Background())
	require.NoError(t, err)

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(f.opts.Sources.GreenLayer, later, later))

	_, err = New(f.opts).Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, store.saves, "a touched green layer is rescored")
}
