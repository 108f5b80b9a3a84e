package preprocessing

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"green-route-server/routing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// JamSegment is one traffic jam polyline with its severity level.
type JamSegment struct {
	Line  orb.LineString
	Level float64
}

// AQISample is a universal air quality reading at a point.
type AQISample struct {
	Point orb.Point
	AQI   float64
}

// LoadPolygons reads every Polygon and MultiPolygon from a GeoJSON
// FeatureCollection. Other geometry types are skipped.
func LoadPolygons(path string) ([]orb.Polygon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layer %s: %v: %w", path, err, routing.ErrConfiguration)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse layer %s: %v: %w", path, err, routing.ErrConfiguration)
	}

	var polys []orb.Polygon
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			polys = append(polys, g)
		case orb.MultiPolygon:
			polys = append(polys, g...)
		}
	}
	return polys, nil
}

// LoadWaterPoints reads a CSV with xcoord (lon) and ycoord (lat) columns.
func LoadWaterPoints(path string) ([]orb.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open water layer %s: %v: %w", path, err, routing.ErrConfiguration)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read water header %s: %v: %w", path, err, routing.ErrConfiguration)
	}
	cols := columnIndex(header)
	xi, okX := cols["xcoord"]
	yi, okY := cols["ycoord"]
	if !okX || !okY {
		return nil, fmt.Errorf("water layer %s needs xcoord and ycoord columns: %w", path, routing.ErrConfiguration)
	}

	var pts []orb.Point
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read water layer %s: %v: %w", path, err, routing.ErrConfiguration)
		}
		x, errX := strconv.ParseFloat(strings.TrimSpace(rec[xi]), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(rec[yi]), 64)
		if errX != nil || errY != nil {
			return nil, fmt.Errorf("water layer %s line %d: bad coordinate: %w", path, line, routing.ErrConfiguration)
		}
		pts = append(pts, orb.Point{x, y})
	}
	return pts, nil
}

// LatestFile returns the most recently modified file in dir whose name starts
// with prefix and ends with ext. An empty or missing directory is a transient
// upstream condition: the fetcher may simply not have run yet.
func LatestFile(dir, prefix, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("list %s: %v: %w", dir, err, routing.ErrTransientUpstream)
	}

	var latest string
	var latestMod int64
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		mod := info.ModTime().UnixNano()
		if latest == "" || mod > latestMod || (mod == latestMod && name > filepath.Base(latest)) {
			latest = filepath.Join(dir, name)
			latestMod = mod
		}
	}
	if latest == "" {
		return "", fmt.Errorf("no %s*%s file in %s: %w", prefix, ext, dir, routing.ErrTransientUpstream)
	}
	return latest, nil
}

type jamPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LoadTraffic reads a jams CSV with line and level columns. The line column
// holds a list of {x, y} objects, written either as JSON or with single quotes.
func LoadTraffic(path string) ([]JamSegment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open traffic %s: %v: %w", path, err, routing.ErrTransientUpstream)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read traffic header %s: %v: %w", path, err, routing.ErrTransientUpstream)
	}
	cols := columnIndex(header)
	li, okL := cols["line"]
	vi, okV := cols["level"]
	if !okL || !okV {
		return nil, fmt.Errorf("traffic %s needs line and level columns: %w", path, routing.ErrTransientUpstream)
	}

	var jams []JamSegment
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read traffic %s: %v: %w", path, err, routing.ErrTransientUpstream)
		}
		if li >= len(rec) || vi >= len(rec) {
			continue
		}
		line, err := parseJamLine(rec[li])
		if err != nil || len(line) == 0 {
			continue
		}
		level, err := strconv.ParseFloat(strings.TrimSpace(rec[vi]), 64)
		if err != nil {
			continue
		}
		jams = append(jams, JamSegment{Line: line, Level: level})
	}
	return jams, nil
}

func parseJamLine(raw string) (orb.LineString, error) {
	raw = strings.TrimSpace(raw)
	var pts []jamPoint
	if err := json.Unmarshal([]byte(raw), &pts); err != nil {
		if err := json.Unmarshal([]byte(strings.ReplaceAll(raw, "'", `"`)), &pts); err != nil {
			return nil, err
		}
	}
	line := make(orb.LineString, len(pts))
	for i, p := range pts {
		line[i] = orb.Point{p.X, p.Y}
	}
	return line, nil
}

type aqiRecord struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Indexes   []struct {
		Code string  `json:"code"`
		AQI  float64 `json:"aqi"`
	} `json:"indexes"`
}

// LoadAQI reads an array of air quality readings. The universal index (code
// "uaqi") is preferred; otherwise the first index of the reading is used.
func LoadAQI(path string) ([]AQISample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read aqi %s: %v: %w", path, err, routing.ErrTransientUpstream)
	}
	var records []aqiRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse aqi %s: %v: %w", path, err, routing.ErrTransientUpstream)
	}

	samples := make([]AQISample, 0, len(records))
	for _, rec := range records {
		if len(rec.Indexes) == 0 {
			continue
		}
		value := rec.Indexes[0].AQI
		for _, idx := range rec.Indexes {
			if strings.EqualFold(idx.Code, "uaqi") {
				value = idx.AQI
				break
			}
		}
		samples = append(samples, AQISample{Point: orb.Point{rec.Longitude, rec.Latitude}, AQI: value})
	}
	return samples, nil
}

func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return cols
}

// IsTransient reports whether err only affects the current refresh cycle.
func IsTransient(err error) bool {
	return errors.Is(err, routing.ErrTransientUpstream)
}
