package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
)

func TestBuild_JSONFieldsAndContext(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "debug", Cache: "poi:test", Component: "tilestore"}, &buf)
	log := NewSlog(&zl)

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithTileID(ctx, "3vQB7")
	log.InfoContext(ctx, "tile read", "ids", 3, "err", errors.New("boom"))

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	want := map[string]any{
		"level":      "info",
		"msg":        "tile read",
		"cache":      "poi:test",
		"component":  "tilestore",
		"request_id": "req-1",
		"tile_id":    "3vQB7",
		"err":        "boom",
	}
	for k, v := range want {
		if rec[k] != v {
			t.Fatalf("field %s = %v, want %v (record %v)", k, rec[k], v, rec)
		}
	}
	if _, ok := rec["timestamp"]; !ok {
		t.Fatalf("missing timestamp: %v", rec)
	}
}

func TestNewSlog_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "warn"}, &buf)
	t.Cleanup(func() { Build(Config{Level: "info"}, nil) })
	log := NewSlog(&zl)

	log.Info("dropped")
	log.Warn("kept")
	if strings.Contains(buf.String(), "dropped") || !strings.Contains(buf.String(), "kept") {
		t.Fatalf("unexpected output: %s", buf.String())
	}
}

func TestNewID_Unique(t *testing.T) {
	if a, b := NewID(), NewID(); a == b || a == "" {
		t.Fatalf("ids not unique: %q %q", a, b)
	}
}
