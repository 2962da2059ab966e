package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/ranks"
	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/tileid"
	"github.com/mohammed-shakir/poi-tile-cache/internal/core/model"
	"github.com/mohammed-shakir/poi-tile-cache/internal/invalidation"
)

type fakeTarget struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (f *fakeTarget) Invalidate(_ context.Context, ids ...string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), ids...))
	if f.err != nil {
		return 0, f.err
	}
	return len(ids), nil
}

func (f *fakeTarget) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		out = append(out, c...)
	}
	return out
}

func newRunner(t *testing.T, target Target) *Runner {
	t.Helper()
	cfg := InvalidationConfig{Enabled: true, Driver: DriverKafka}
	return New(cfg, target, Options{MinZoom: 9})
}

// counter reads a counter from the default registry, where the shared
// collectors live. Missing series read as zero.
func counter(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matches(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matches(m *dto.Metric, labels map[string]string) bool {
	n := 0
	for _, lp := range m.GetLabel() {
		want, ok := labels[lp.GetName()]
		if !ok || want != lp.GetValue() {
			return false
		}
		n++
	}
	return n == len(labels)
}

func tileCount(t *testing.T, result string) float64 {
	return counter(t, "tile_invalidations_total", map[string]string{"result": result})
}

func messageCount(t *testing.T, selector, result string) float64 {
	return counter(t, "invalidation_messages_total", map[string]string{"selector": selector, "result": result})
}

func message(t *testing.T, ev invalidation.Event) *sarama.ConsumerMessage {
	t.Helper()
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return &sarama.ConsumerMessage{
		Topic:     "poi-tile-invalidation",
		Partition: 0,
		Offset:    1,
		Timestamp: time.Now().UTC(),
		Value:     b,
	}
}

func TestHandleMessage_TilesResolveToIDs(t *testing.T) {
	ft := &fakeTarget{}
	r := newRunner(t, ft)
	deleted, ok := tileCount(t, "deleted"), messageCount(t, "tiles", "ok")

	ev := invalidation.Event{
		Version: 1, Op: "update", TS: time.Now().UTC(),
		Tiles:   []model.Tile{{X: 150, Y: 200, Z: 12}},
		Filters: []string{"amenity=bar"},
	}
	if err := r.handleMessage(context.Background(), message(t, ev)); err != nil {
		t.Fatalf("handleMessage: %v", err)
	}

	raw, err := tileid.Encoder{}.Encode(150, 200, 12, 9, ranks.Amenity, "bar")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got := ft.all()
	if len(got) != 1 || got[0] != tileid.String(raw) {
		t.Fatalf("invalidated %v, want [%s]", got, tileid.String(raw))
	}
	if n := tileCount(t, "deleted") - deleted; n != 1 {
		t.Fatalf("deleted tile ids = %v, want 1", n)
	}
	if n := messageCount(t, "tiles", "ok") - ok; n != 1 {
		t.Fatalf("tiles/ok messages = %v, want 1", n)
	}
}

func TestHandleMessage_ReplayedVersionSkipped(t *testing.T) {
	ft := &fakeTarget{}
	r := newRunner(t, ft)
	ctx := context.Background()
	skipped, deleted := tileCount(t, "skipped"), tileCount(t, "deleted")

	ev := invalidation.Event{Version: 5, Op: "delete", Source: "osm", IDs: []string{"2g", "2h"}}
	if err := r.handleMessage(ctx, message(t, ev)); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := r.handleMessage(ctx, message(t, ev)); err != nil {
		t.Fatalf("replay: %v", err)
	}
	ev.Version = 4
	if err := r.handleMessage(ctx, message(t, ev)); err != nil {
		t.Fatalf("older: %v", err)
	}
	if got := ft.all(); len(got) != 2 {
		t.Fatalf("invalidated %v, want two ids once", got)
	}
	if n := tileCount(t, "skipped") - skipped; n != 4 {
		t.Fatalf("skipped tile ids = %v, want 4", n)
	}
	// each id is counted once, as deleted or skipped
	if n := tileCount(t, "deleted") - deleted; n != 2 {
		t.Fatalf("deleted tile ids = %v, want 2", n)
	}

	// another source keeps its own versions
	ev.Source, ev.Version = "import", 1
	if err := r.handleMessage(ctx, message(t, ev)); err != nil {
		t.Fatalf("other source: %v", err)
	}
	if got := ft.all(); len(got) != 4 {
		t.Fatalf("invalidated %v, want 4", got)
	}
}

func TestHandleMessage_PoisonSkipped(t *testing.T) {
	ft := &fakeTarget{}
	r := newRunner(t, ft)
	ctx := context.Background()
	undecoded := messageCount(t, "unknown", "rejected")
	invalidIDs := messageCount(t, "ids", "rejected")

	bad := &sarama.ConsumerMessage{Value: []byte("{not json")}
	if err := r.handleMessage(ctx, bad); err != nil {
		t.Fatalf("decode failure should be skipped: %v", err)
	}
	invalid := message(t, invalidation.Event{Version: 1, Op: "upsert", IDs: []string{"2g"}})
	if err := r.handleMessage(ctx, invalid); err != nil {
		t.Fatalf("invalid event should be skipped: %v", err)
	}
	if len(ft.all()) != 0 {
		t.Fatalf("target called for rejected events")
	}
	if n := messageCount(t, "unknown", "rejected") - undecoded; n != 1 {
		t.Fatalf("undecodable rejected = %v, want 1", n)
	}
	if n := messageCount(t, "ids", "rejected") - invalidIDs; n != 1 {
		t.Fatalf("invalid ids rejected = %v, want 1", n)
	}
}

func TestHandleMessage_TargetErrorRetries(t *testing.T) {
	ft := &fakeTarget{err: errors.New("redis down")}
	r := newRunner(t, ft)
	ctx := context.Background()
	ev := invalidation.Event{Version: 1, Op: "delete", Source: "retry", IDs: []string{"2g"}}
	failed := tileCount(t, "error")

	if err := r.handleMessage(ctx, message(t, ev)); err == nil {
		t.Fatalf("expected target error")
	}
	if n := tileCount(t, "error") - failed; n != 1 {
		t.Fatalf("failed tile ids = %v, want 1", n)
	}

	// the failed version is forgotten so redelivery applies
	ft.err = nil
	if err := r.handleMessage(ctx, message(t, ev)); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if got := ft.all(); len(got) != 2 {
		t.Fatalf("calls = %v, want two attempts", got)
	}
}

func TestRunner_DisabledAndReadiness(t *testing.T) {
	r := New(InvalidationConfig{Driver: DriverNone}, &fakeTarget{}, Options{})
	if r.Enabled() {
		t.Fatalf("runner should be disabled")
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start disabled: %v", err)
	}
	r.Stop()

	if err := r.Ping(context.Background()); !errors.Is(err, ErrNotAssigned) {
		t.Fatalf("Ping before assignment = %v", err)
	}
	r.assignMu.Lock()
	r.assigned.Store(true)
	r.assign[3] = struct{}{}
	r.assignMu.Unlock()
	ready, parts := r.Readiness()
	if !ready || len(parts) != 1 || parts[0] != 3 {
		t.Fatalf("Readiness = %v %v", ready, parts)
	}
	if err := r.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestReplayGuard(t *testing.T) {
	g := newReplayGuard(8)
	if got := g.admit("osm", 2, []string{"a", "b"}); len(got) != 2 {
		t.Fatalf("first admit = %v", got)
	}
	if got := g.admit("osm", 2, []string{"a", "b"}); len(got) != 0 {
		t.Fatalf("replay admitted %v", got)
	}
	if got := g.admit("osm", 1, []string{"a"}); len(got) != 0 {
		t.Fatalf("older version admitted %v", got)
	}
	if got := g.admit("osm", 3, []string{"a", "c"}); len(got) != 2 {
		t.Fatalf("newer version = %v", got)
	}
	if got := g.admit("import", 1, []string{"a"}); len(got) != 1 {
		t.Fatalf("other source = %v", got)
	}

	g.release("osm", []string{"a"})
	if got := g.admit("osm", 3, []string{"a", "b"}); len(got) != 1 || got[0] != "a" {
		t.Fatalf("after release = %v, want [a]", got)
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("INVALIDATION_ENABLED", "true")
	t.Setenv("INVALIDATION_DRIVER", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	cfg := FromEnv()
	if !cfg.Enabled || cfg.Driver != DriverKafka {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.Brokers) != 2 || cfg.Brokers[1] != "k2:9092" {
		t.Fatalf("brokers = %v", cfg.Brokers)
	}
	if cfg.Topic != "poi-tile-invalidation" || cfg.GroupID != "poi-tile-invalidator" {
		t.Fatalf("topic/group = %s/%s", cfg.Topic, cfg.GroupID)
	}
}

func TestSaramaConfig_Security(t *testing.T) {
	c := InvalidationConfig{SASL: SASLConfig{Enable: true, Username: "u", Password: "p"}}
	sc, err := c.saramaConfig()
	if err != nil {
		t.Fatalf("saramaConfig: %v", err)
	}
	if !sc.Net.SASL.Enable || sc.Net.SASL.Mechanism != sarama.SASLTypePlaintext || sc.Net.SASL.User != "u" {
		t.Fatalf("sasl = %+v", sc.Net.SASL)
	}

	c.SASL.Mechanism = "GSSAPI"
	if _, err := c.saramaConfig(); err == nil {
		t.Fatalf("expected unsupported mechanism error")
	}

	c = InvalidationConfig{TLS: TLSConfig{Enable: true, CaFile: t.TempDir() + "/missing.pem"}}
	if _, err := c.saramaConfig(); err == nil {
		t.Fatalf("expected missing CA error")
	}
	c.TLS.CaFile = ""
	sc, err = c.saramaConfig()
	if err != nil || !sc.Net.TLS.Enable {
		t.Fatalf("tls = %v, %v", sc, err)
	}
}
