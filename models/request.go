package models

import (
	"fmt"

	"green-route-server/routing"
)

type Location struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// Coordinate converts l, rejecting missing or out-of-range values.
func (l *Location) Coordinate(field string) (routing.Coordinate, error) {
	if l == nil || l.Latitude == nil || l.Longitude == nil {
		return routing.Coordinate{}, fmt.Errorf("%s is missing: %w", field, routing.ErrInput)
	}
	c := routing.Coordinate{Lat: *l.Latitude, Lon: *l.Longitude}
	if !c.Valid() {
		return routing.Coordinate{}, fmt.Errorf("%s is not a valid coordinate: %w", field, routing.ErrInput)
	}
	return c, nil
}

type RouteRequest struct {
	Start  *Location `json:"start"`
	Finish *Location `json:"finish"`
	Tags   []string  `json:"tags,omitempty"`
	// Encoded selects a Google polyline string instead of [lon, lat] pairs.
	Encoded bool `json:"encoded,omitempty"`
}
