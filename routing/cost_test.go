package routing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTags(t *testing.T) {
	t.Run("case insensitive with duplicates dropped", func(t *testing.T) {
		tags := ParseTags([]string{"nature", "WATER", "Nature", " no pollution "})
		assert.Equal(t, []Tag{TagNature, TagWater, TagNoPollution}, tags)
	})

	t.Run("unknown names dropped", func(t *testing.T) {
		assert.Empty(t, ParseTags([]string{"Sunny", ""}))
		assert.Empty(t, ParseTags(nil))
	})
}

func TestNewWeightVector(t *testing.T) {
	t.Run("no tags", func(t *testing.T) {
		assert.Equal(t, WeightVector{0.85, 0, 0.15, 0, 0, 0, 0}, NewWeightVector(nil))
	})

	t.Run("nature only", func(t *testing.T) {
		assert.Equal(t, WeightVector{0.65, 0, 0.10, 0.25, 0, 0, 0}, NewWeightVector([]Tag{TagNature}))
	})

	t.Run("three tags last absorbs remainder", func(t *testing.T) {
		w := NewWeightVector([]Tag{TagShadow, TagWater, TagNoPollution})
		assert.InDelta(t, 0.0833, w[SlotShadow], 1e-12)
		assert.InDelta(t, 0.0833, w[SlotWater], 1e-12)
		assert.InDelta(t, 0.0834, w[SlotAQI], 1e-12)
		assert.Zero(t, w[SlotTreeVsUrban])
	})

	t.Run("always sums to one", func(t *testing.T) {
		sets := [][]Tag{
			nil,
			{TagNature},
			{TagNature, TagShadow},
			{TagNature, TagShadow, TagWater},
			{TagNature, TagShadow, TagWater, TagNoPollution},
		}
		for _, tags := range sets {
			w := NewWeightVector(tags)
			assert.InDelta(t, 1.0, w.Sum(), 1e-9, "tags %v", tags)
			assert.Zero(t, w[SlotTraffic])
		}
	})
}

func TestWeightTable(t *testing.T) {
	table := NewWeightTable(1)
	table.Set(EdgeKey{U: 1, V: 2}, WeightRow{Length: 100, Traffic: 40, TreeVsUrban: 20, TreeCover: 10, Water: 50, AQI: 30})

	t.Run("symmetric lookup", func(t *testing.T) {
		forward, err := table.EdgeCost(1, 2, LengthOnly)
		require.NoError(t, err)
		backward, err := table.EdgeCost(2, 1, LengthOnly)
		require.NoError(t, err)
		assert.Equal(t, 100.0, forward)
		assert.Equal(t, forward, backward)
	})

	t.Run("dot product", func(t *testing.T) {
		w := WeightVector{1, 1, 1, 1, 1, 1, 1}
		cost, err := table.EdgeCost(1, 2, w)
		require.NoError(t, err)
		// tree cover is counted by both the base and the shadow slot
		assert.Equal(t, 100.0+40+10+20+10+50+30, cost)
	})

	t.Run("missing row is not found", func(t *testing.T) {
		_, err := table.EdgeCost(1, 3, LengthOnly)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("length table", func(t *testing.T) {
		g, err := BuildGraph(gridNetwork())
		require.NoError(t, err)
		lt := LengthTable(g)
		assert.Equal(t, len(g.Edges), lt.Len())
		row, ok := lt.Row(5, 2)
		require.True(t, ok)
		assert.Zero(t, row.TreeCover)
		assert.Greater(t, row.Length, 100.0)
	})
}
