// Package config resolves service settings. An optional YAML file named by
// ROUTER_CONFIG is applied first, then environment variables override it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"green-route-server/preprocessing"

	"github.com/goccy/go-yaml"
)

type WeightCache string

const (
	WeightCacheFile  WeightCache = "file"
	WeightCacheRedis WeightCache = "redis"
	WeightCacheNone  WeightCache = "none"
)

type Config struct {
	Addr      string
	AdminAddr string

	DataDir     string
	NetworkFile string
	GreenLayer  string
	UrbanLayer  string
	WaterFile   string
	TrafficDir  string
	AQIDir      string

	RefreshInterval time.Duration
	Features        preprocessing.Settings

	WeightCache     WeightCache
	WeightCacheFile string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RedisPrefix     string
	RedisTTL        time.Duration

	RateLimitRPS   float64
	RateLimitBurst int
	RequestTimeout time.Duration
	AdminToken     string
	CORSOrigins    []string

	LogLevel  string
	LogFormat string
}

// fileConfig is the YAML shape. Pointers distinguish unset from zero.
type fileConfig struct {
	Addr            *string  `yaml:"addr"`
	AdminAddr       *string  `yaml:"admin_addr"`
	DataDir         *string  `yaml:"data_dir"`
	NetworkFile     *string  `yaml:"network_file"`
	GreenLayer      *string  `yaml:"green_layer"`
	UrbanLayer      *string  `yaml:"urban_layer"`
	WaterFile       *string  `yaml:"water_file"`
	TrafficDir      *string  `yaml:"traffic_dir"`
	AQIDir          *string  `yaml:"aqi_dir"`
	RefreshInterval *string  `yaml:"refresh_interval"`
	GridCellM       *float64 `yaml:"grid_cell_m"`
	Features        struct {
		TreeVsUrban *bool `yaml:"tree_vs_urban"`
		TreeCover   *bool `yaml:"tree_cover"`
		Water       *bool `yaml:"water"`
		Traffic     *bool `yaml:"traffic"`
		AQI         *bool `yaml:"aqi"`
	} `yaml:"features"`
	WeightCache     *string `yaml:"weight_cache"`
	WeightCacheFile *string `yaml:"weight_cache_file"`
	Redis           struct {
		Addr     *string `yaml:"addr"`
		Password *string `yaml:"password"`
		DB       *int    `yaml:"db"`
		Prefix   *string `yaml:"prefix"`
		TTL      *string `yaml:"ttl"`
	} `yaml:"redis"`
	RateLimitRPS   *float64 `yaml:"rate_limit_rps"`
	RateLimitBurst *int     `yaml:"rate_limit_burst"`
	RequestTimeout *string  `yaml:"request_timeout"`
	CORSOrigins    []string `yaml:"cors_origins"`
	LogLevel       *string  `yaml:"log_level"`
	LogFormat      *string  `yaml:"log_format"`
}

func defaults() Config {
	return Config{
		Addr:            ":8080",
		AdminAddr:       ":9090",
		DataDir:         "data",
		RefreshInterval: 30 * time.Minute,
		Features:        preprocessing.DefaultSettings(),
		WeightCache:     WeightCacheFile,
		RedisAddr:       "127.0.0.1:6379",
		RedisPrefix:     "greenroute:static:",
		RedisTTL:        7 * 24 * time.Hour,
		RateLimitRPS:    20,
		RateLimitBurst:  40,
		RequestTimeout:  30 * time.Second,
		CORSOrigins:     []string{"*"},
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Load resolves the configuration from ROUTER_CONFIG and the environment.
// Paths left empty are placed under DataDir.
func Load() (Config, error) {
	cfg := defaults()
	if path := strings.TrimSpace(os.Getenv("ROUTER_CONFIG")); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	cfg.fillPaths()
	return cfg, cfg.Validate()
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&c.Addr, fc.Addr)
	setString(&c.AdminAddr, fc.AdminAddr)
	setString(&c.DataDir, fc.DataDir)
	setString(&c.NetworkFile, fc.NetworkFile)
	setString(&c.GreenLayer, fc.GreenLayer)
	setString(&c.UrbanLayer, fc.UrbanLayer)
	setString(&c.WaterFile, fc.WaterFile)
	setString(&c.TrafficDir, fc.TrafficDir)
	setString(&c.AQIDir, fc.AQIDir)
	setString(&c.WeightCacheFile, fc.WeightCacheFile)
	setString(&c.RedisAddr, fc.Redis.Addr)
	setString(&c.RedisPassword, fc.Redis.Password)
	setString(&c.RedisPrefix, fc.Redis.Prefix)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.LogFormat, fc.LogFormat)
	if fc.WeightCache != nil {
		c.WeightCache = WeightCache(strings.ToLower(*fc.WeightCache))
	}
	if fc.GridCellM != nil {
		c.Features.GridCellM = *fc.GridCellM
	}
	setBool(&c.Features.TreeVsUrban, fc.Features.TreeVsUrban)
	setBool(&c.Features.TreeCover, fc.Features.TreeCover)
	setBool(&c.Features.Water, fc.Features.Water)
	setBool(&c.Features.Traffic, fc.Features.Traffic)
	setBool(&c.Features.AQI, fc.Features.AQI)
	if fc.Redis.DB != nil {
		c.RedisDB = *fc.Redis.DB
	}
	if fc.RateLimitRPS != nil {
		c.RateLimitRPS = *fc.RateLimitRPS
	}
	if fc.RateLimitBurst != nil {
		c.RateLimitBurst = *fc.RateLimitBurst
	}
	if len(fc.CORSOrigins) > 0 {
		c.CORSOrigins = fc.CORSOrigins
	}

	for _, d := range []struct {
		name string
		src  *string
		dst  *time.Duration
	}{
		{"refresh_interval", fc.RefreshInterval, &c.RefreshInterval},
		{"request_timeout", fc.RequestTimeout, &c.RequestTimeout},
		{"redis.ttl", fc.Redis.TTL, &c.RedisTTL},
	} {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(*d.src)
		if err != nil {
			return fmt.Errorf("config %s: %s: %w", path, d.name, err)
		}
		*d.dst = v
	}
	return nil
}

func (c *Config) applyEnv() error {
	envString(&c.Addr, "ADDR")
	envString(&c.AdminAddr, "ADMIN_ADDR")
	envString(&c.DataDir, "DATA_DIR")
	envString(&c.NetworkFile, "NETWORK_FILE")
	envString(&c.GreenLayer, "GREEN_LAYER")
	envString(&c.UrbanLayer, "URBAN_LAYER")
	envString(&c.WaterFile, "WATER_FILE")
	envString(&c.TrafficDir, "TRAFFIC_DIR")
	envString(&c.AQIDir, "AQI_DIR")
	envString(&c.WeightCacheFile, "WEIGHT_CACHE_FILE")
	envString(&c.RedisAddr, "REDIS_ADDR")
	envString(&c.RedisPassword, "REDIS_PASS")
	envString(&c.RedisPrefix, "REDIS_PREFIX")
	envString(&c.AdminToken, "ADMIN_TOKEN")
	envString(&c.LogLevel, "LOG_LEVEL")
	envString(&c.LogFormat, "LOG_FORMAT")
	if v := env("WEIGHT_CACHE"); v != "" {
		c.WeightCache = WeightCache(strings.ToLower(v))
	}
	if v := env("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}

	var errs []string
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	collect(envBool(&c.Features.TreeVsUrban, "FEATURE_TREE_VS_URBAN"))
	collect(envBool(&c.Features.TreeCover, "FEATURE_TREE_COVER"))
	collect(envBool(&c.Features.Water, "FEATURE_WATER"))
	collect(envBool(&c.Features.Traffic, "FEATURE_TRAFFIC"))
	collect(envBool(&c.Features.AQI, "FEATURE_AQI"))
	collect(envFloat(&c.Features.GridCellM, "GRID_CELL_M"))
	collect(envFloat(&c.RateLimitRPS, "RATE_LIMIT_RPS"))
	collect(envInt(&c.RateLimitBurst, "RATE_LIMIT_BURST"))
	collect(envInt(&c.RedisDB, "REDIS_DB"))
	collect(envDuration(&c.RefreshInterval, "REFRESH_INTERVAL"))
	collect(envDuration(&c.RequestTimeout, "REQUEST_TIMEOUT"))
	collect(envDuration(&c.RedisTTL, "REDIS_TTL"))
	if len(errs) > 0 {
		return fmt.Errorf("environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) fillPaths() {
	under := func(dst *string, name string) {
		if *dst == "" {
			*dst = filepath.Join(c.DataDir, name)
		}
	}
	under(&c.NetworkFile, "walk_graph.gob")
	under(&c.GreenLayer, "green_areas.geojson")
	under(&c.UrbanLayer, "urban_areas.geojson")
	under(&c.WaterFile, "water_points.csv")
	under(&c.TrafficDir, "traffic")
	under(&c.AQIDir, "aqi")
	under(&c.WeightCacheFile, filepath.Join("cache", "static_weights.gob"))
}

// Validate rejects settings the service cannot start with.
func (c Config) Validate() error {
	switch c.WeightCache {
	case WeightCacheFile, WeightCacheRedis, WeightCacheNone:
	default:
		return fmt.Errorf("WEIGHT_CACHE must be file, redis or none, got %q", c.WeightCache)
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.Features.GridCellM <= 0 {
		return fmt.Errorf("GRID_CELL_M must be positive")
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit settings must not be negative")
	}
	return nil
}

// Sources returns the layer locations for the feature pipeline.
func (c Config) Sources() preprocessing.Sources {
	return preprocessing.Sources{
		GreenLayer: c.GreenLayer,
		UrbanLayer: c.UrbanLayer,
		WaterFile:  c.WaterFile,
		TrafficDir: c.TrafficDir,
		AQIDir:     c.AQIDir,
	}
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func envString(dst *string, key string) {
	if v := env(key); v != "" {
		*dst = v
	}
}

func envBool(dst *bool, key string) error {
	v := env(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func envInt(dst *int, key string) error {
	v := env(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envFloat(dst *float64, key string) error {
	v := env(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func envDuration(dst *time.Duration, key string) error {
	v := env(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
