package routing

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindRoute(t *testing.T) {
	s := gridSnapshot(t)

	t.Run("across the grid", func(t *testing.T) {
		start := Coordinate{Lat: 45.4999, Lon: -73.5695}
		finish := Coordinate{Lat: 45.5011, Lon: -73.5685}

		route, err := s.FindRoute(start, finish, nil)
		require.NoError(t, err)
		assert.Equal(t, []int64{2, 5}, route.Nodes)

		require.Len(t, route.Points, 6)
		assert.Equal(t, start, route.Points[0])
		assert.Equal(t, finish, route.Points[len(route.Points)-1])

		e, _ := s.Graph.Edge(2, 5)
		legs := HaversineDistance(start, route.Points[1]) + HaversineDistance(route.Points[4], finish)
		assert.InDelta(t, e.Length+legs, route.Length, 1e-6)
	})

	t.Run("start and finish on the same edge", func(t *testing.T) {
		start := Coordinate{Lat: 45.4999, Lon: -73.5697}
		finish := Coordinate{Lat: 45.4999, Lon: -73.5693}

		route, err := s.FindRoute(start, finish, []Tag{TagNature})
		require.NoError(t, err)

		require.Len(t, route.Points, 5)
		assert.Equal(t, start, route.Points[0])
		assert.InDelta(t, 45.5, route.Points[1].Lat, 1e-9)
		assert.InDelta(t, 45.5, route.Points[3].Lat, 1e-9)
		assert.Equal(t, finish, route.Points[4])

		legs := HaversineDistance(start, route.Points[1]) + HaversineDistance(route.Points[3], finish)
		assert.InDelta(t, legs, route.Length, 1e-9)
	})

	t.Run("disconnected regions", func(t *testing.T) {
		_, err := s.FindRoute(Coordinate{Lat: 45.5, Lon: -73.5695}, Coordinate{Lat: 45.6005, Lon: -73.4001}, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("invalid coordinates", func(t *testing.T) {
		_, err := s.FindRoute(Coordinate{Lat: math.NaN()}, Coordinate{Lat: 45.5, Lon: -73.57}, nil)
		assert.True(t, errors.Is(err, ErrInput))

		_, err = s.FindRoute(Coordinate{Lat: 45.5, Lon: -73.57}, Coordinate{Lat: 120, Lon: 0}, nil)
		assert.True(t, errors.Is(err, ErrInput))
	})
}

func TestRouteResult(t *testing.T) {
	route := &Route{Points: []Coordinate{{Lat: 38.5, Lon: -120.2}, {Lat: 40.7, Lon: -120.95}, {Lat: 43.252, Lon: -126.453}}}

	t.Run("encoded", func(t *testing.T) {
		res := route.Result(true)
		require.Len(t, res.Routes, 1)
		assert.Equal(t, "_p~iF~ps|U_ulLnnqC_mqNvxq`@", res.Routes[0].OverviewPolyline.Points)
	})

	t.Run("raw pairs are lon lat", func(t *testing.T) {
		body, err := json.Marshal(route.Result(false))
		require.NoError(t, err)
		assert.JSONEq(t, `{"routes":[{"overview_polyline":{"points":[[-120.2,38.5],[-120.95,40.7],[-126.453,43.252]]}}]}`, string(body))
	})
}
