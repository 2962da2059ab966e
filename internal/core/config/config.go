// Package config reads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"math/bits"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/compress"
	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/textcodec"
)

type MetricsCfg struct {
	Enabled bool
	Addr    string
	Path    string
}

type Config struct {
	Addr       string
	LogLevel   string
	LogConsole bool
	RedisAddr  string

	CacheName      string
	CacheEphemeral bool
	LocalCacheTTL  time.Duration
	CacheOpTimeout time.Duration
	HotCacheSize   int
	HotAdmitScore  float64
	HotHalfLife    time.Duration

	MinZoom          int
	MaxZoom          int
	Domain           textcodec.Domain
	DescriptionCodec compress.Type

	RemoteCacheURL     string
	RemoteCacheTimeout time.Duration

	Metrics MetricsCfg
}

// FromEnv reads every setting. Unparsable values fall back to the default;
// enum values that do not parse are reported by the returned error.
func FromEnv() (Config, error) {
	var errs []error

	domain, err := textcodec.ParseDomain(getenv("POI_DOMAIN", "BPOI"))
	if err != nil {
		errs = append(errs, err)
	}
	desc, err := compress.ParseType(getenv("DESCRIPTION_CODEC", "zstd"))
	if err != nil {
		errs = append(errs, err)
		desc = compress.Zstd
	}

	cfg := Config{
		Addr:       getenv("ADDR", ":8090"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogConsole: getbool("LOG_CONSOLE", false),
		RedisAddr:  getenv("REDIS_ADDR", "localhost:6379"),

		CacheName:      getenv("CACHE_NAME", "default"),
		CacheEphemeral: getbool("CACHE_EPHEMERAL", false),
		LocalCacheTTL:  getduration("LOCAL_CACHE_TTL", 336*time.Hour),
		CacheOpTimeout: getduration("CACHE_OP_TIMEOUT", 2*time.Second),
		HotCacheSize:   getint("HOT_CACHE_SIZE", 1024),
		HotAdmitScore:  getfloat("HOT_ADMIT_SCORE", 0),
		HotHalfLife:    getduration("HOT_HALF_LIFE", time.Minute),

		MinZoom:          getint("MIN_ZOOM", 9),
		MaxZoom:          getint("MAX_ZOOM", 16),
		Domain:           domain,
		DescriptionCodec: desc,

		RemoteCacheURL:     getenv("REMOTE_CACHE_URL", ""),
		RemoteCacheTimeout: getduration("REMOTE_CACHE_TIMEOUT", 10*time.Second),

		Metrics: MetricsCfg{
			Enabled: getbool("METRICS_ENABLED", false),
			Addr:    getenv("METRICS_ADDR", ":9090"),
			Path:    getenv("METRICS_PATH", "/metrics"),
		},
	}
	return cfg, errors.Join(errs...)
}

// ZoomLevels is the number of zoom levels between MinZoom and MaxZoom.
func (c Config) ZoomLevels() int { return c.MaxZoom - c.MinZoom + 1 }

// Validate checks the zoom range and returns warnings for settings that work
// but are unusual.
func (c Config) Validate() (warnings []string, err error) {
	if c.MinZoom < 7 || c.MinZoom > 19 {
		return nil, fmt.Errorf("MIN_ZOOM %d outside 7..19", c.MinZoom)
	}
	if c.MaxZoom < 10 || c.MaxZoom > 22 {
		return nil, fmt.Errorf("MAX_ZOOM %d outside 10..22", c.MaxZoom)
	}
	if c.MaxZoom < c.MinZoom {
		return nil, fmt.Errorf("MAX_ZOOM %d below MIN_ZOOM %d", c.MaxZoom, c.MinZoom)
	}
	if n := c.ZoomLevels(); n > 16 {
		return nil, fmt.Errorf("zoom range %d..%d spans %d levels, at most 16 fit a tile id", c.MinZoom, c.MaxZoom, n)
	}
	if n := c.ZoomLevels(); bits.OnesCount(uint(n)) != 1 {
		warnings = append(warnings, fmt.Sprintf("zoom range spans %d levels; a power of two packs tile ids best", n))
	}
	if c.LocalCacheTTL <= 0 {
		warnings = append(warnings, "LOCAL_CACHE_TTL <= 0 keeps tiles forever")
	}
	return warnings, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
