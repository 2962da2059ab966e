// Package hotness decides which tiles earn a place in the in-process front
// cache. Every read of a tile id adds one to its score; scores halve every
// half-life, so only tiles read repeatedly in a short window reach the
// admission score. Tiles read once and never again stay out of the front
// cache and do not evict the busy ones.
package hotness

import (
	"math"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const shardCount = 64

// Tracker holds decaying read scores keyed by base-58 tile id.
type Tracker struct {
	halfLife float64
	admitAt  float64
	now      func() time.Time
	shards   [shardCount]shard
}

type shard struct {
	mu    sync.RWMutex
	tiles map[string]reading
}

// reading is a score as of the last read.
type reading struct {
	score float64
	at    time.Time
}

// New returns a tracker admitting tiles whose score reaches admitAt. A
// non-positive halfLife defaults to one minute; admitAt of zero or less
// admits every tile.
func New(halfLife time.Duration, admitAt float64) *Tracker {
	if halfLife <= 0 {
		halfLife = time.Minute
	}
	t := &Tracker{halfLife: halfLife.Seconds(), admitAt: admitAt, now: time.Now}
	for i := range t.shards {
		t.shards[i].tiles = make(map[string]reading)
	}
	return t
}

// Touch records one read of id and returns its score after the read.
func (t *Tracker) Touch(id string) float64 {
	if id == "" {
		return 0
	}
	sh := t.shard(id)
	now := t.now()

	sh.mu.Lock()
	defer sh.mu.Unlock()
	r := sh.tiles[id]
	r.score = t.cooled(r, now) + 1
	r.at = now
	sh.tiles[id] = r
	return r.score
}

func (t *Tracker) Score(id string) float64 {
	if id == "" {
		return 0
	}
	sh := t.shard(id)
	sh.mu.RLock()
	r, ok := sh.tiles[id]
	sh.mu.RUnlock()
	if !ok {
		return 0
	}
	return t.cooled(r, t.now())
}

// Admit reports whether id is read often enough for the front cache.
func (t *Tracker) Admit(id string) bool {
	if t.admitAt <= 0 {
		return true
	}
	return t.Score(id) >= t.admitAt
}

// Forget drops the score of invalidated tiles; their next read starts cold.
func (t *Tracker) Forget(ids ...string) {
	for _, id := range ids {
		if id == "" {
			continue
		}
		sh := t.shard(id)
		sh.mu.Lock()
		delete(sh.tiles, id)
		sh.mu.Unlock()
	}
}

// Clear drops every score, for a purged cache.
func (t *Tracker) Clear() {
	for i := range t.shards {
		sh := &t.shards[i]
		sh.mu.Lock()
		clear(sh.tiles)
		sh.mu.Unlock()
	}
}

// Sweep drops tiles whose score cooled below floor and returns how many
// are still tracked.
func (t *Tracker) Sweep(floor float64) int {
	now := t.now()
	left := 0
	for i := range t.shards {
		sh := &t.shards[i]
		sh.mu.Lock()
		for id, r := range sh.tiles {
			if t.cooled(r, now) < floor {
				delete(sh.tiles, id)
			}
		}
		left += len(sh.tiles)
		sh.mu.Unlock()
	}
	return left
}

// Len is the number of tracked tiles.
func (t *Tracker) Len() int {
	n := 0
	for i := range t.shards {
		t.shards[i].mu.RLock()
		n += len(t.shards[i].tiles)
		t.shards[i].mu.RUnlock()
	}
	return n
}

func (t *Tracker) cooled(r reading, now time.Time) float64 {
	return halve(r.score, now.Sub(r.at).Seconds(), t.halfLife)
}

// halve returns score after elapsed seconds of exponential decay.
func halve(score, elapsed, halfLife float64) float64 {
	if score == 0 || elapsed <= 0 || halfLife <= 0 {
		return score
	}
	return score * math.Exp2(-elapsed/halfLife)
}

func (t *Tracker) shard(id string) *shard {
	return &t.shards[xxhash.Sum64String(id)%shardCount]
}
