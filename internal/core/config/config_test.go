package config

import (
	"strings"
	"testing"
	"time"

	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/compress"
	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/textcodec"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"MIN_ZOOM", "MAX_ZOOM", "LOCAL_CACHE_TTL", "POI_DOMAIN", "DESCRIPTION_CODEC", "CACHE_NAME"} {
		t.Setenv(k, "")
	}
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.MinZoom != 9 || cfg.MaxZoom != 16 {
		t.Fatalf("zoom = %d..%d", cfg.MinZoom, cfg.MaxZoom)
	}
	if cfg.LocalCacheTTL != 336*time.Hour {
		t.Fatalf("ttl = %v", cfg.LocalCacheTTL)
	}
	if cfg.Domain != textcodec.DomainGeneral || cfg.DescriptionCodec != compress.Zstd {
		t.Fatalf("domain=%v codec=%v", cfg.Domain, cfg.DescriptionCodec)
	}
	warn, err := cfg.Validate()
	if err != nil || len(warn) != 0 {
		t.Fatalf("Validate: warn=%v err=%v", warn, err)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("POI_DOMAIN", "food")
	t.Setenv("DESCRIPTION_CODEC", "lz4")
	t.Setenv("CACHE_EPHEMERAL", "yes")
	t.Setenv("MIN_ZOOM", "10")
	t.Setenv("MAX_ZOOM", "14")
	t.Setenv("HOT_ADMIT_SCORE", "2.5")
	t.Setenv("HOT_HALF_LIFE", "30s")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.HotAdmitScore != 2.5 || cfg.HotHalfLife != 30*time.Second {
		t.Fatalf("hot = %v/%v", cfg.HotAdmitScore, cfg.HotHalfLife)
	}
	if cfg.Domain != textcodec.DomainFood || cfg.DescriptionCodec != compress.LZ4 || !cfg.CacheEphemeral {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	warn, err := cfg.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(warn) != 1 || !strings.Contains(warn[0], "5 levels") {
		t.Fatalf("warnings = %v", warn)
	}
}

func TestFromEnv_BadEnum(t *testing.T) {
	t.Setenv("POI_DOMAIN", "spaceport")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error for unknown domain")
	}
}

func TestValidate_ZoomRange(t *testing.T) {
	for _, tc := range []struct{ min, max int }{{6, 12}, {9, 23}, {14, 12}} {
		cfg := Config{MinZoom: tc.min, MaxZoom: tc.max, LocalCacheTTL: time.Hour}
		if _, err := cfg.Validate(); err == nil {
			t.Fatalf("expected error for %d..%d", tc.min, tc.max)
		}
	}
}
