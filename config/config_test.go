package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ROUTER_CONFIG", "")
	t.Setenv("DATA_DIR", "/srv/green")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 30*time.Minute, cfg.RefreshInterval)
	assert.Equal(t, WeightCacheFile, cfg.WeightCache)
	assert.Equal(t, filepath.Join("/srv/green", "walk_graph.gob"), cfg.NetworkFile)
	assert.Equal(t, filepath.Join("/srv/green", "traffic"), cfg.TrafficDir)
	assert.True(t, cfg.Features.TreeCover)
	assert.Equal(t, 5.0, cfg.Features.GridCellM)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "router.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":7000"
network_file: /maps/montreal.gob
refresh_interval: 10m
features:
  water: false
  aqi: false
redis:
  addr: cache:6379
  db: 2
cors_origins:
  - https://example.org
`), 0o644))

	t.Setenv("ROUTER_CONFIG", path)
	t.Setenv("ADDR", ":9000")
	t.Setenv("FEATURE_AQI", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr, "env wins over file")
	assert.Equal(t, "/maps/montreal.gob", cfg.NetworkFile)
	assert.Equal(t, 10*time.Minute, cfg.RefreshInterval)
	assert.False(t, cfg.Features.Water)
	assert.True(t, cfg.Features.AQI)
	assert.Equal(t, "cache:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, []string{"https://example.org"}, cfg.CORSOrigins)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"REFRESH_INTERVAL": "soon",
		"FEATURE_WATER":    "maybe",
		"WEIGHT_CACHE":     "memcached",
		"GRID_CELL_M":      "0",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv("ROUTER_CONFIG", "")
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		t.Setenv("ROUTER_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestSources(t *testing.T) {
	cfg := Config{GreenLayer: "g", UrbanLayer: "u", WaterFile: "w", TrafficDir: "t", AQIDir: "a"}
	src := cfg.Sources()
	assert.Equal(t, "g", src.GreenLayer)
	assert.Equal(t, "a", src.AQIDir)
}
