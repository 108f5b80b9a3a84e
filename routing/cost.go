package routing

import (
	"fmt"
	"math"
	"strings"
)

type Tag string

const (
	TagNature      Tag = "Nature"
	TagShadow      Tag = "Shadow"
	TagWater       Tag = "Water"
	TagNoPollution Tag = "No Pollution"
)

var tagSlots = map[Tag]int{
	TagNature:      SlotTreeVsUrban,
	TagShadow:      SlotShadow,
	TagWater:       SlotWater,
	TagNoPollution: SlotAQI,
}

// ParseTags normalizes user preference names. Matching is case-insensitive,
// unknown names and duplicates are dropped, first-seen order is kept.
func ParseTags(names []string) []Tag {
	tags := make([]Tag, 0, len(names))
	seen := make(map[Tag]bool, len(names))
	for _, name := range names {
		tag, ok := lookupTag(name)
		if !ok || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}

func lookupTag(name string) (Tag, bool) {
	name = strings.TrimSpace(name)
	for tag := range tagSlots {
		if strings.EqualFold(string(tag), name) {
			return tag, true
		}
	}
	return "", false
}

// Weight vector slots.
const (
	SlotLength = iota
	SlotTraffic
	SlotTreeCover
	SlotTreeVsUrban
	SlotShadow
	SlotWater
	SlotAQI
	weightSlots
)

const (
	defaultLengthWeight    = 0.85
	defaultTreeCoverWeight = 0.15
	taggedLengthWeight     = 0.65
	taggedTreeCoverWeight  = 0.10
	taggedPreferenceBudget = 0.25
)

type WeightVector [weightSlots]float64

// LengthOnly turns EdgeCost into plain edge length.
var LengthOnly = WeightVector{SlotLength: 1}

func (w WeightVector) Sum() float64 {
	total := 0.0
	for _, v := range w {
		total += v
	}
	return total
}

// NewWeightVector builds the cost weights for a parsed tag set. Without tags
// the route is mostly short with a slight shade bias. Each tag takes an even
// share of the preference budget rounded to four decimals; the last tag
// absorbs the rounding remainder so the vector sums to 1.
func NewWeightVector(tags []Tag) WeightVector {
	var w WeightVector
	if len(tags) == 0 {
		w[SlotLength] = defaultLengthWeight
		w[SlotTreeCover] = defaultTreeCoverWeight
		return w
	}

	w[SlotLength] = taggedLengthWeight
	w[SlotTreeCover] = taggedTreeCoverWeight

	share := round4(taggedPreferenceBudget / float64(len(tags)))
	remaining := taggedPreferenceBudget
	for i, tag := range tags {
		slot := tagSlots[tag]
		if i == len(tags)-1 {
			w[slot] += round4(remaining)
			break
		}
		w[slot] += share
		remaining -= share
	}
	return w
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// WeightRow holds the per-edge feature scores. Length is in meters; every
// other column is normalized into [0,100] where lower is more desirable.
type WeightRow struct {
	Length      float64
	Traffic     float64
	TreeVsUrban float64
	TreeCover   float64
	Water       float64
	AQI         float64
}

// Cost is the dot product of the row with w.
func (r WeightRow) Cost(w WeightVector) float64 {
	return w[SlotLength]*r.Length +
		w[SlotTraffic]*r.Traffic +
		w[SlotTreeCover]*r.TreeCover +
		w[SlotTreeVsUrban]*r.TreeVsUrban +
		w[SlotShadow]*r.TreeCover +
		w[SlotWater]*r.Water +
		w[SlotAQI]*r.AQI
}

// WeightTable maps stored edge keys to their rows. It is read-only once
// published in a Snapshot.
type WeightTable struct {
	rows map[EdgeKey]WeightRow
}

func NewWeightTable(size int) *WeightTable {
	return &WeightTable{rows: make(map[EdgeKey]WeightRow, size)}
}

func (t *WeightTable) Set(k EdgeKey, row WeightRow) {
	t.rows[k] = row
}

// Row looks up (u,v) and falls back to (v,u).
func (t *WeightTable) Row(u, v int64) (WeightRow, bool) {
	if row, ok := t.rows[EdgeKey{U: u, V: v}]; ok {
		return row, true
	}
	row, ok := t.rows[EdgeKey{U: v, V: u}]
	return row, ok
}

func (t *WeightTable) Len() int {
	return len(t.rows)
}

// EdgeCost is the weighted cost of traversing u-v in either direction.
func (t *WeightTable) EdgeCost(u, v int64, w WeightVector) (float64, error) {
	row, ok := t.Row(u, v)
	if !ok {
		return 0, fmt.Errorf("no weights for edge %d-%d: %w", u, v, ErrNotFound)
	}
	return row.Cost(w), nil
}

// LengthTable is a weight table carrying only edge lengths, every feature at 0.
func LengthTable(g *Graph) *WeightTable {
	t := NewWeightTable(len(g.Edges))
	for _, e := range g.Edges {
		t.Set(e.Key(), WeightRow{Length: e.Length})
	}
	return t
}
