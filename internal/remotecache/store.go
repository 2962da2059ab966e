package remotecache

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/poi-tile-cache/internal/cache/redisstore"
	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/scalar"
	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/tileid"
	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/wire"
)

// ReadChunk is the number of ids fetched from Redis per pipeline.
const ReadChunk = 500

// Store keeps one Redis hash per tile id, field n holding the n-th POI
// blob. A sibling hash "<key>:sum" holds the xxhash of every field so a
// write of unchanged content touches nothing.
type Store struct {
	cli    *redisstore.Client
	prefix string
}

func NewStore(cli *redisstore.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "poiremote:"
	}
	return &Store{cli: cli, prefix: prefix}
}

// Prefix is the key namespace, used as the cache name in logs.
func (s *Store) Prefix() string { return s.prefix }

func (s *Store) key(id []byte) string { return s.prefix + tileid.String(id) }
func sumKey(k string) string          { return k + ":sum" }

// Read returns one group per id that has ever been written, in request
// order. Zero-length blobs are dropped, so an id written only as empty
// comes back with no POIs.
func (s *Store) Read(ctx context.Context, ids [][]byte) ([]wire.Group, error) {
	var out []wire.Group
	seen := make(map[string]bool, len(ids))
	for i := 0; i < len(ids); i += ReadChunk {
		chunk := ids[i:min(i+ReadChunk, len(ids))]
		keys := make([]string, 0, len(chunk))
		for _, id := range chunk {
			keys = append(keys, s.key(id))
		}
		hashes, err := s.cli.HGetAllMany(ctx, keys)
		if err != nil {
			return nil, fmt.Errorf("read chunk at %d: %w", i, err)
		}
		for j, id := range chunk {
			k := keys[j]
			fields, ok := hashes[k]
			if !ok || seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, wire.Group{ID: id, POIs: orderedBlobs(fields)})
		}
	}
	return out, nil
}

func orderedBlobs(fields map[string][]byte) [][]byte {
	type blob struct {
		n uint64
		b []byte
	}
	blobs := make([]blob, 0, len(fields))
	for f, v := range fields {
		if len(v) == 0 {
			continue
		}
		n, _ := scalar.BytesSmallUint([]byte(f))
		blobs = append(blobs, blob{n: n, b: v})
	}
	sort.Slice(blobs, func(i, j int) bool { return blobs[i].n < blobs[j].n })
	out := make([][]byte, len(blobs))
	for i, b := range blobs {
		out[i] = b.b
	}
	return out
}

// Write upserts every entry and returns how many fields changed.
func (s *Store) Write(ctx context.Context, entries []wire.Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	type slot struct {
		key, field string
		poi        []byte
		sum        []byte
	}
	slots := make([]slot, 0, len(entries))
	want := make(map[string][]string)
	for _, e := range entries {
		k := s.key(e.ID)
		var sum [8]byte
		binary.BigEndian.PutUint64(sum[:], xxhash.Sum64(e.POI))
		slots = append(slots, slot{key: k, field: string(e.N), poi: e.POI, sum: sum[:]})
		want[sumKey(k)] = append(want[sumKey(k)], string(e.N))
	}

	current, err := s.cli.HMGetMany(ctx, want)
	if err != nil {
		return 0, fmt.Errorf("read digests: %w", err)
	}

	values := make(map[string]map[string][]byte)
	put := func(k, f string, v []byte) {
		if values[k] == nil {
			values[k] = make(map[string][]byte)
		}
		values[k][f] = v
	}
	changed := 0
	for _, sl := range slots {
		if old, ok := current[sumKey(sl.key)][sl.field]; ok && string(old) == string(sl.sum) {
			continue
		}
		put(sl.key, sl.field, sl.poi)
		put(sumKey(sl.key), sl.field, sl.sum)
		changed++
	}
	if changed == 0 {
		return 0, nil
	}
	if err := s.cli.HSetMany(ctx, values); err != nil {
		return 0, fmt.Errorf("write %d fields: %w", changed, err)
	}
	return changed, nil
}

// Invalidate drops everything stored under the given base-58 ids.
func (s *Store) Invalidate(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	keys := make([]string, 0, 2*len(ids))
	for _, id := range ids {
		k := s.prefix + id
		keys = append(keys, k, sumKey(k))
	}
	if err := s.cli.Del(ctx, keys...); err != nil {
		return 0, fmt.Errorf("invalidate %d ids: %w", len(ids), err)
	}
	return len(ids), nil
}
