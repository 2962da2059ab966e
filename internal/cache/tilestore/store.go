// Package tilestore caches the encoded POIs of each tile id in Redis, with an
// in-process front cache of decoded tiles and an optional shared remote cache.
package tilestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mohammed-shakir/poi-tile-cache/internal/cache/keys"
	"github.com/mohammed-shakir/poi-tile-cache/internal/cache/redisstore"
	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/record"
	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/scalar"
	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/tileid"
	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/wire"
	"github.com/mohammed-shakir/poi-tile-cache/internal/core/model"
	"github.com/mohammed-shakir/poi-tile-cache/internal/core/observability"
	"github.com/mohammed-shakir/poi-tile-cache/internal/hotness"
	"github.com/mohammed-shakir/poi-tile-cache/internal/logger"
)

// Status of a tile id in the cache.
type Status uint8

const (
	// NotFound means the tile was never stored.
	NotFound Status = iota
	// Empty means the tile was stored and holds no POIs.
	Empty
	Found
)

func (s Status) String() string {
	switch s {
	case Empty:
		return "empty"
	case Found:
		return "found"
	default:
		return "not_found"
	}
}

// Result is the cached content of one tile id.
type Result struct {
	ID     string
	Status Status
	POIs   []model.POI
}

// Remote is the shared cache behind the local store.
type Remote interface {
	Read(ctx context.Context, ids [][]byte) ([]wire.Group, error)
	Write(ctx context.Context, entries []wire.Entry) error
}

type Options struct {
	Name      string
	Ephemeral bool
	TTL       time.Duration
	MinZoom   int
	MaxZoom   int
	Codec     record.Codec
	Encoder   tileid.Encoder
	HotSize   int
	// With Hotness set, a tile enters the front cache only once the
	// tracker admits it.
	Hotness *hotness.Tracker
	Remote  Remote
	Logger  *slog.Logger
}

type Store struct {
	kv      *redisstore.KV
	codec   record.Codec
	enc     tileid.Encoder
	minZoom int
	maxZoom int
	hot     *expirable.LRU[uint64, Result]
	heat    *hotness.Tracker
	remote  Remote
	log     *slog.Logger
}

var ErrZoomAboveCeiling = errors.New("zoom above configured maximum")

func New(cli *redisstore.Client, opts Options) (*Store, error) {
	if cli == nil {
		return nil, errors.New("tilestore: redis client is required")
	}
	if opts.MaxZoom < opts.MinZoom {
		return nil, fmt.Errorf("tilestore: max zoom %d below min zoom %d", opts.MaxZoom, opts.MinZoom)
	}
	if opts.MaxZoom-opts.MinZoom > tileid.MaxZoomOffset {
		return nil, fmt.Errorf("tilestore: %w: %d..%d", tileid.ErrZoomOffsetRange, opts.MinZoom, opts.MaxZoom)
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	s := &Store{
		kv:      cli.KV(keys.Namespace(opts.Name, opts.Ephemeral), opts.TTL),
		codec:   opts.Codec,
		enc:     opts.Encoder,
		minZoom: opts.MinZoom,
		maxZoom: opts.MaxZoom,
		heat:    opts.Hotness,
		remote:  opts.Remote,
		log:     log,
	}
	if opts.HotSize > 0 {
		s.hot = expirable.NewLRU[uint64, Result](opts.HotSize, nil, opts.TTL)
	}
	return s, nil
}

// Namespace is the Redis key prefix of this cache.
func (s *Store) Namespace() string { return s.kv.Prefix() }

// ClientIDs returns the base-58 id of every tile and filter pair, tile major.
func (s *Store) ClientIDs(tiles []model.Tile, filters []model.Filter) ([]string, error) {
	ids := make([]string, 0, len(tiles)*len(filters))
	for _, t := range tiles {
		if t.Z > s.maxZoom {
			return nil, fmt.Errorf("tile %s: %w: max=%d", t, ErrZoomAboveCeiling, s.maxZoom)
		}
		for _, f := range filters {
			id, err := s.enc.Encode(t.X, t.Y, t.Z, s.minZoom, f.Category, f.Value)
			if err != nil {
				return nil, fmt.Errorf("tile %s %s: %w", t, f, err)
			}
			ids = append(ids, tileid.String(id))
		}
	}
	return ids, nil
}

func hotKey(id string) uint64 { return xxhash.Sum64String(id) }

// Read returns the local state of every id, in order.
func (s *Store) Read(ctx context.Context, ids []string) ([]Result, error) {
	out := make([]Result, len(ids))
	for i, id := range ids {
		if s.heat != nil {
			s.heat.Touch(id)
		}
		if s.hot != nil {
			if r, ok := s.hot.Get(hotKey(id)); ok && r.ID == id {
				observability.IncTileLookup("hot", r.Status.String())
				out[i] = r
				continue
			}
		}

		pairs, err := s.kv.Range(ctx, keys.RangeStart(id), keys.RangeEnd(id))
		if err != nil {
			return nil, fmt.Errorf("read tile %s: %w", id, err)
		}
		r, err := s.decodePairs(id, pairs)
		if err != nil {
			return nil, err
		}
		observability.IncTileLookup("local", r.Status.String())
		if r.Status != NotFound && s.admit(id) {
			s.hot.Add(hotKey(id), r)
		}
		out[i] = r
	}
	return out, nil
}

func (s *Store) decodePairs(id string, pairs []redisstore.Pair) (Result, error) {
	r := Result{ID: id}
	if len(pairs) == 0 {
		return r, nil
	}

	type blob struct {
		n int
		b []byte
	}
	blobs := make([]blob, 0, len(pairs))
	for _, p := range pairs {
		_, n, empty, err := keys.ParseTileKey(p.Key)
		if err != nil {
			return Result{}, fmt.Errorf("read tile %s: %w", id, err)
		}
		if empty || len(p.Value) == 0 {
			r.Status = Empty
			return r, nil
		}
		blobs = append(blobs, blob{n: n, b: p.Value})
	}
	// "10" sorts before "2" in the index
	sort.Slice(blobs, func(i, j int) bool { return blobs[i].n < blobs[j].n })

	r.Status = Found
	r.POIs = make([]model.POI, len(blobs))
	for i, b := range blobs {
		poi, err := s.codec.Decode(b.b)
		if err != nil {
			return Result{}, fmt.Errorf("decode tile %s poi %d: %w", id, b.n, err)
		}
		r.POIs[i] = poi
	}
	return r, nil
}

// Write replaces the POIs of every tile id. An empty list stores the
// zero-length marker under "id::". With a remote configured the same
// entries are sent there after the local batch commits.
func (s *Store) Write(ctx context.Context, tiles map[string][]model.POI) error {
	if len(tiles) == 0 {
		return nil
	}
	ids := make([]string, 0, len(tiles))
	for id := range tiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var ops []redisstore.Op
	var entries []wire.Entry
	for _, id := range ids {
		raw, err := tileid.Parse(id)
		if err != nil {
			return fmt.Errorf("write tile %q: %w", id, err)
		}
		pois := tiles[id]
		if len(pois) == 0 {
			ops = append(ops, redisstore.Put(keys.EmptyKey(id), nil))
			entries = append(entries, wire.Entry{ID: raw})
			continue
		}
		for i, p := range pois {
			b, err := s.codec.Encode(p)
			if err != nil {
				return fmt.Errorf("encode tile %s poi %d: %w", id, i, err)
			}
			observability.ObserveBlobSize(len(b))
			ops = append(ops, redisstore.Put(keys.TileKey(id, i), b))
			entries = append(entries, wire.Entry{ID: raw, N: scalar.SmallUintBytes(uint64(i)), POI: b})
		}
	}

	for _, id := range ids {
		if _, err := s.kv.DeleteRange(ctx, keys.RangeStart(id), keys.RangeEnd(id)); err != nil {
			return fmt.Errorf("clear tile %s: %w", id, err)
		}
		s.forget(id)
	}
	if err := s.kv.Batch(ctx, ops); err != nil {
		return fmt.Errorf("write %d tiles: %w", len(ids), err)
	}

	if s.remote == nil {
		return nil
	}
	if err := s.remote.Write(ctx, entries); err != nil {
		return fmt.Errorf("remote write %d entries: %w", len(entries), err)
	}
	return nil
}

// Lookup reads ids locally, asks the remote cache for the ones not found
// and stores what it returns. A failing remote leaves those ids NotFound.
func (s *Store) Lookup(ctx context.Context, ids []string) ([]Result, error) {
	out, err := s.Read(ctx, ids)
	if err != nil {
		return nil, err
	}
	if s.remote == nil {
		return out, nil
	}

	pos := make(map[string][]int)
	var missing [][]byte
	for i, r := range out {
		if r.Status != NotFound {
			continue
		}
		if _, seen := pos[r.ID]; !seen {
			raw, err := tileid.Parse(r.ID)
			if err != nil {
				return nil, fmt.Errorf("lookup tile %q: %w", r.ID, err)
			}
			missing = append(missing, raw)
		}
		pos[r.ID] = append(pos[r.ID], i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	ctx = logger.WithCache(ctx, s.kv.Prefix())
	groups, err := s.remote.Read(ctx, missing)
	if err != nil {
		s.log.WarnContext(ctx, "remote cache read failed", "ids", len(missing), "err", err)
		return out, nil
	}

	// ids the remote does not know stay NotFound
	got := wire.GroupMap(groups)
	var ops []redisstore.Op
	for _, raw := range missing {
		blobs, ok := got[string(raw)]
		if !ok {
			continue
		}
		delete(got, string(raw))
		id := tileid.String(raw)

		r := Result{ID: id, Status: Empty}
		if len(blobs) == 0 {
			ops = append(ops, redisstore.Put(keys.EmptyKey(id), nil))
		} else {
			r.Status = Found
			r.POIs = make([]model.POI, len(blobs))
			for i, b := range blobs {
				poi, err := s.codec.Decode(b)
				if err != nil {
					return nil, fmt.Errorf("decode remote tile %s poi %d: %w", id, i, err)
				}
				r.POIs[i] = poi
				ops = append(ops, redisstore.Put(keys.TileKey(id, i), b))
			}
		}
		observability.IncTileLookup("remote", r.Status.String())
		for _, i := range pos[id] {
			out[i] = r
		}
		if s.admit(id) {
			s.hot.Add(hotKey(id), r)
		}
	}
	for raw := range got {
		s.log.DebugContext(logger.WithTileID(ctx, tileid.String([]byte(raw))), "remote cache returned unrequested id")
	}

	if err := s.kv.Batch(ctx, ops); err != nil {
		s.log.WarnContext(ctx, "backfill from remote cache failed", "ops", len(ops), "err", err)
	}
	return out, nil
}

// Invalidate drops every key of the given tile ids and returns how many
// keys were removed.
func (s *Store) Invalidate(ctx context.Context, ids ...string) (int, error) {
	total := 0
	for _, id := range ids {
		n, err := s.kv.DeleteRange(ctx, keys.RangeStart(id), keys.RangeEnd(id))
		s.forget(id)
		if err != nil {
			return total, fmt.Errorf("invalidate tile %s: %w", id, err)
		}
		total += n
	}
	return total, nil
}

// Purge drops the whole cache namespace.
func (s *Store) Purge(ctx context.Context) (int, error) {
	if s.hot != nil {
		s.hot.Purge()
	}
	if s.heat != nil {
		s.heat.Clear()
	}
	n, err := s.kv.Purge(ctx)
	if err != nil {
		return 0, fmt.Errorf("purge %s: %w", s.kv.Prefix(), err)
	}
	return n, nil
}

func (s *Store) forget(id string) {
	if s.hot != nil {
		s.hot.Remove(hotKey(id))
	}
	if s.heat != nil {
		s.heat.Forget(id)
	}
}

// admit reports whether id is requested often enough for the front cache.
func (s *Store) admit(id string) bool {
	if s.hot == nil {
		return false
	}
	return s.heat == nil || s.heat.Admit(id)
}
