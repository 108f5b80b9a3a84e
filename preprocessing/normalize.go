package preprocessing

import "green-route-server/routing"

const scoreScale = 100.0

// minMaxScale maps col onto [0,100]. A constant column maps to all zeros.
func minMaxScale(col []float64) []float64 {
	out := make([]float64, len(col))
	if len(col) == 0 {
		return out
	}
	lo, hi := col[0], col[0]
	for _, v := range col[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if hi == lo {
		return out
	}
	for i, v := range col {
		out[i] = (v - lo) / (hi - lo) * scoreScale
	}
	return out
}

// invert flips a scaled column so that higher raw values cost less.
func invert(col []float64) []float64 {
	for i, v := range col {
		col[i] = scoreScale - v
	}
	return col
}

// Columns are raw per-edge feature values in graph edge order.
type Columns struct {
	TreeVsUrban []float64
	TreeCover   []float64
	Water       []float64
	Traffic     []float64
	AQI         []float64
}

// normalized returns the scaled column, or zeros when the feature is off.
func normalized(enabled bool, col []float64, n int, higherIsBetter bool) []float64 {
	if !enabled || len(col) != n {
		return make([]float64, n)
	}
	scaled := minMaxScale(col)
	if higherIsBetter {
		return invert(scaled)
	}
	return scaled
}

// BuildTable normalizes cols and assembles the weight table. Tree-vs-urban,
// tree cover and water are inverted since more of them is better.
func BuildTable(keys []routing.EdgeKey, lengths []float64, cols Columns, settings Settings) *routing.WeightTable {
	n := len(keys)
	treeVsUrban := normalized(settings.TreeVsUrban, cols.TreeVsUrban, n, true)
	treeCover := normalized(settings.TreeCover, cols.TreeCover, n, true)
	water := normalized(settings.Water, cols.Water, n, true)
	traffic := normalized(settings.Traffic, cols.Traffic, n, false)
	aqi := normalized(settings.AQI, cols.AQI, n, false)

	table := routing.NewWeightTable(n)
	for i, k := range keys {
		table.Set(k, routing.WeightRow{
			Length:      lengths[i],
			Traffic:     traffic[i],
			TreeVsUrban: treeVsUrban[i],
			TreeCover:   treeCover[i],
			Water:       water[i],
			AQI:         aqi[i],
		})
	}
	return table
}
