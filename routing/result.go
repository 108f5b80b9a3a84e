package routing

import polyline "github.com/twpayne/go-polyline"

// RouteResult mirrors the Directions-style payload clients already parse.
type RouteResult struct {
	Routes []RouteEntry `json:"routes"`
}

type RouteEntry struct {
	OverviewPolyline OverviewPolyline `json:"overview_polyline"`
}

// Points is either a Google encoded polyline string or a list of [lon, lat] pairs.
type OverviewPolyline struct {
	Points interface{} `json:"points"`
}

// Result wraps the route for the HTTP response.
func (r *Route) Result(encoded bool) RouteResult {
	var points interface{}
	if encoded {
		points = r.Encode()
	} else {
		raw := make([][2]float64, len(r.Points))
		for i, c := range r.Points {
			raw[i] = [2]float64{c.Lon, c.Lat}
		}
		points = raw
	}
	return RouteResult{Routes: []RouteEntry{{OverviewPolyline: OverviewPolyline{Points: points}}}}
}

// Encode returns the Google polyline (precision 5) of r.Points.
func (r *Route) Encode() string {
	coords := make([][]float64, len(r.Points))
	for i, c := range r.Points {
		coords[i] = []float64{c.Lat, c.Lon}
	}
	return string(polyline.EncodeCoords(coords))
}
