// Command json_to_gob converts an OSMnx node-link walking graph export into
// the gob network file loaded by the route server.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"green-route-server/logger"
	"green-route-server/routing"

	"github.com/paulmach/orb/encoding/wkt"
)

type JSONGraph struct {
	Directed   bool       `json:"directed"`
	Multigraph bool       `json:"multigraph"`
	Nodes      []JSONNode `json:"nodes"`
	Links      []JSONEdge `json:"links"`
	// some exports nest the node-link payload under "graph"
	Graph *struct {
		Nodes []JSONNode `json:"nodes"`
		Links []JSONEdge `json:"links"`
	} `json:"graph,omitempty"`
}

type JSONNode struct {
	ID  interface{} `json:"id"` // int or string
	X   float64     `json:"x"`
	Y   float64     `json:"y"`
	Lon float64     `json:"lon"`
	Lat float64     `json:"lat"`
}

type JSONEdge struct {
	Source   interface{} `json:"source"`
	Target   interface{} `json:"target"`
	Key      interface{} `json:"key"`
	Length   interface{} `json:"length"`
	Geometry interface{} `json:"geometry"` // WKT string or [[lon, lat], ...]
}

func convertID(id interface{}) (int64, error) {
	switch v := id.(type) {
	case json.Number:
		return v.Int64()
	case float64:
		return int64(v), nil
	case int64:
		return v, nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	default:
		return 0, fmt.Errorf("unsupported ID type: %T", id)
	}
}

func convertFloat(val interface{}) (float64, error) {
	switch v := val.(type) {
	case nil:
		return 0, nil
	case json.Number:
		return v.Float64()
	case float64:
		return v, nil
	case string:
		if v == "" {
			return 0, nil
		}
		return strconv.ParseFloat(v, 64)
	case []interface{}:
		// merged OSM ways sometimes carry one value per way
		if len(v) == 0 {
			return 0, nil
		}
		return convertFloat(v[0])
	default:
		return 0, fmt.Errorf("unsupported number type: %T", val)
	}
}

// convertGeometry returns lon/lat pairs, or nil when the link has none.
func convertGeometry(val interface{}) ([][2]float64, error) {
	switch v := val.(type) {
	case nil:
		return nil, nil
	case string:
		ls, err := wkt.UnmarshalLineString(v)
		if err != nil {
			return nil, fmt.Errorf("bad WKT geometry: %w", err)
		}
		out := make([][2]float64, len(ls))
		for i, p := range ls {
			out[i] = [2]float64{p[0], p[1]}
		}
		return out, nil
	case []interface{}:
		out := make([][2]float64, 0, len(v))
		for _, raw := range v {
			pair, ok := raw.([]interface{})
			if !ok || len(pair) < 2 {
				return nil, fmt.Errorf("geometry point %v is not a coordinate pair", raw)
			}
			lon, err := convertFloat(pair[0])
			if err != nil {
				return nil, err
			}
			lat, err := convertFloat(pair[1])
			if err != nil {
				return nil, err
			}
			out = append(out, [2]float64{lon, lat})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported geometry type: %T", val)
	}
}

func decodeGraph(path string) (*JSONGraph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open JSON file %s: %w", path, err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.UseNumber()

	var g JSONGraph
	if err := dec.Decode(&g); err != nil {
		return nil, fmt.Errorf("failed to parse JSON from %s: %w", path, err)
	}
	if g.Graph != nil && len(g.Nodes) == 0 {
		g.Nodes = g.Graph.Nodes
		g.Links = g.Graph.Links
	}
	return &g, nil
}

// toNetwork converts the node-link payload. Links whose endpoints are not
// nodes are skipped and counted.
func toNetwork(g *JSONGraph) (*routing.NetworkFile, int, error) {
	nf := &routing.NetworkFile{
		Nodes: make([]routing.NetworkNode, 0, len(g.Nodes)),
		Edges: make([]routing.NetworkEdge, 0, len(g.Links)),
	}
	known := make(map[int64]bool, len(g.Nodes))

	for _, n := range g.Nodes {
		id, err := convertID(n.ID)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to convert node ID (%v): %w", n.ID, err)
		}
		lat, lon := n.Lat, n.Lon
		if lat == 0 && lon == 0 {
			lat, lon = n.Y, n.X
		}
		known[id] = true
		nf.Nodes = append(nf.Nodes, routing.NetworkNode{ID: id, Latitude: lat, Longitude: lon})
	}

	skipped := 0
	for i, l := range g.Links {
		from, err := convertID(l.Source)
		if err != nil {
			return nil, 0, fmt.Errorf("link %d: failed to convert source ID (%v): %w", i, l.Source, err)
		}
		to, err := convertID(l.Target)
		if err != nil {
			return nil, 0, fmt.Errorf("link %d: failed to convert target ID (%v): %w", i, l.Target, err)
		}
		if !known[from] || !known[to] {
			skipped++
			continue
		}
		length, err := convertFloat(l.Length)
		if err != nil {
			return nil, 0, fmt.Errorf("link %d: bad length: %w", i, err)
		}
		geom, err := convertGeometry(l.Geometry)
		if err != nil {
			return nil, 0, fmt.Errorf("link %d: %w", i, err)
		}
		var key int
		if l.Key != nil {
			k, err := convertID(l.Key)
			if err != nil {
				return nil, 0, fmt.Errorf("link %d: bad key: %w", i, err)
			}
			key = int(k)
		}
		nf.Edges = append(nf.Edges, routing.NetworkEdge{
			FromID:   from,
			ToID:     to,
			Key:      key,
			Length:   length,
			Geometry: geom,
		})
	}
	return nf, skipped, nil
}

func convertJSONToGOB(inputPath, outputPath string) error {
	g, err := decodeGraph(inputPath)
	if err != nil {
		return err
	}
	nf, skipped, err := toNetwork(g)
	if err != nil {
		return err
	}
	if err := routing.WriteNetwork(outputPath, nf); err != nil {
		return err
	}
	logger.L().Info("network_converted",
		"input", inputPath,
		"output", outputPath,
		"nodes", len(nf.Nodes),
		"edges", len(nf.Edges),
		"skipped_links", skipped,
	)
	return nil
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run json_to_gob.go <input_json_file> [output_gob_file]")
		os.Exit(1)
	}
	input := os.Args[1]
	output := strings.TrimSuffix(input, ".json") + ".gob"
	if len(os.Args) > 2 {
		output = os.Args[2]
	}
	if err := convertJSONToGOB(input, output); err != nil {
		logger.L().Error("convert_failed", "err", err)
		os.Exit(1)
	}
}
