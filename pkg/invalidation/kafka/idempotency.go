package kafka

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

type tileVersionKey struct {
	source string
	id     string
}

// replayGuard remembers the newest event version applied to each tile id,
// per producing source. Sources number their versions independently.
type replayGuard struct {
	mu   sync.Mutex
	seen *lru.Cache[tileVersionKey, uint64]
}

func newReplayGuard(size int) *replayGuard {
	if size <= 0 {
		size = 4096
	}
	c, _ := lru.New[tileVersionKey, uint64](size)
	return &replayGuard{seen: c}
}

// admit returns the ids for which version is newer than anything applied
// from source, and records version for them.
func (g *replayGuard) admit(source string, version uint64, ids []string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	fresh := make([]string, 0, len(ids))
	for _, id := range ids {
		k := tileVersionKey{source: source, id: id}
		if last, ok := g.seen.Get(k); ok && version <= last {
			continue
		}
		g.seen.Add(k, version)
		fresh = append(fresh, id)
	}
	return fresh
}

// release undoes admit for ids whose eviction failed, so the redelivered
// event applies again.
func (g *replayGuard) release(source string, ids []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range ids {
		g.seen.Remove(tileVersionKey{source: source, id: id})
	}
}
