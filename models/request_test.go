package models

import (
	"encoding/json"
	"errors"
	"testing"

	"green-route-server/routing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteRequestDecode(t *testing.T) {
	var req RouteRequest
	body := `{"start":{"latitude":45.5,"longitude":-73.57},"finish":{"latitude":45.51,"longitude":-73.56},"tags":["Nature","Water"]}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	start, err := req.Start.Coordinate("start")
	require.NoError(t, err)
	assert.Equal(t, routing.Coordinate{Lat: 45.5, Lon: -73.57}, start)
	assert.Equal(t, []string{"Nature", "Water"}, req.Tags)
	assert.False(t, req.Encoded)
}

func TestLocationCoordinate(t *testing.T) {
	lat, lon, bad := 45.5, -73.57, 200.0

	cases := []struct {
		name string
		loc  *Location
	}{
		{"nil", nil},
		{"missing latitude", &Location{Longitude: &lon}},
		{"missing longitude", &Location{Latitude: &lat}},
		{"out of range", &Location{Latitude: &bad, Longitude: &lon}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.loc.Coordinate("finish")
			assert.True(t, errors.Is(err, routing.ErrInput))
		})
	}
}
