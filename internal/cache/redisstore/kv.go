package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammed-shakir/poi-tile-cache/internal/core/observability"
)

// KV is an ordered key-value namespace. Values live at prefix+"v:"+key with a
// TTL; a sorted set at prefix+"idx" (all scores 0) orders the keys so ranges
// can be read with ZRANGEBYLEX. Index members whose value expired are pruned
// when a range read finds them.
type KV struct {
	c      *Client
	prefix string
	ttl    time.Duration
}

// Pair is one key and its value.
type Pair struct {
	Key   string
	Value []byte
}

// OpKind is the kind of a batch operation.
type OpKind uint8

const (
	OpPut OpKind = iota
	OpDelete
)

// Op is one batch operation.
type Op struct {
	Kind  OpKind
	Key   string
	Value []byte
}

func Put(key string, v []byte) Op { return Op{Kind: OpPut, Key: key, Value: v} }
func Delete(key string) Op        { return Op{Kind: OpDelete, Key: key} }

// KV returns the namespace rooted at prefix. ttl <= 0 keeps values forever.
func (c *Client) KV(prefix string, ttl time.Duration) *KV {
	return &KV{c: c, prefix: prefix, ttl: ttl}
}

func (kv *KV) Prefix() string { return kv.prefix }

func (kv *KV) valueKey(k string) string { return kv.prefix + "v:" + k }
func (kv *KV) indexKey() string         { return kv.prefix + "idx" }

// Get returns the value under key and whether it exists.
func (kv *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	v, err := kv.c.rdb.Get(ctx, kv.valueKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.ObserveCacheOp("get", nil, time.Since(start).Seconds())
		observability.AddCacheMisses(1)
		return nil, false, nil
	}
	observability.ObserveCacheOp("get", err, time.Since(start).Seconds())
	if err != nil {
		return nil, false, fmt.Errorf("redis GET %q: %w", key, err)
	}
	observability.AddCacheHits(1)
	return v, true, nil
}

// Range returns every live pair with start <= key < end in key order.
func (kv *KV) Range(ctx context.Context, start, end string) ([]Pair, error) {
	t0 := time.Now()
	members, err := kv.c.rdb.ZRangeByLex(ctx, kv.indexKey(), &redis.ZRangeBy{
		Min: "[" + start,
		Max: "(" + end,
	}).Result()
	observability.ObserveCacheOp("zrangebylex", err, time.Since(t0).Seconds())
	if err != nil {
		return nil, fmt.Errorf("redis ZRANGEBYLEX [%s (%s: %w", start, end, err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	vkeys := make([]string, len(members))
	for i, m := range members {
		vkeys[i] = kv.valueKey(m)
	}
	vals, err := kv.c.MGet(ctx, vkeys)
	if err != nil {
		return nil, err
	}

	out := make([]Pair, 0, len(members))
	var stale []any
	for i, m := range members {
		v, ok := vals[vkeys[i]]
		if !ok {
			stale = append(stale, m)
			continue
		}
		out = append(out, Pair{Key: m, Value: v})
	}
	if len(stale) > 0 {
		t1 := time.Now()
		err := kv.c.rdb.ZRem(ctx, kv.indexKey(), stale...).Err()
		observability.ObserveCacheOp("zrem", err, time.Since(t1).Seconds())
		if err != nil {
			return nil, fmt.Errorf("redis ZREM %d stale members: %w", len(stale), err)
		}
	}
	return out, nil
}

// Batch applies ops atomically.
func (kv *KV) Batch(ctx context.Context, ops []Op) error {
	if len(ops) == 0 {
		return nil
	}
	start := time.Now()
	_, err := kv.c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, op := range ops {
			switch op.Kind {
			case OpPut:
				p.Set(ctx, kv.valueKey(op.Key), op.Value, kv.ttl)
				p.ZAdd(ctx, kv.indexKey(), redis.Z{Score: 0, Member: op.Key})
			case OpDelete:
				p.Del(ctx, kv.valueKey(op.Key))
				p.ZRem(ctx, kv.indexKey(), op.Key)
			default:
				return fmt.Errorf("unknown op kind %d for %q", op.Kind, op.Key)
			}
		}
		if kv.ttl > 0 {
			p.Expire(ctx, kv.indexKey(), kv.ttl)
		}
		return nil
	})
	observability.ObserveCacheOp("batch", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("redis MULTI batch of %d ops: %w", len(ops), err)
	}
	return nil
}

// DeleteRange removes every key with start <= key < end and returns how many
// index members were dropped.
func (kv *KV) DeleteRange(ctx context.Context, start, end string) (int, error) {
	t0 := time.Now()
	members, err := kv.c.rdb.ZRangeByLex(ctx, kv.indexKey(), &redis.ZRangeBy{
		Min: "[" + start,
		Max: "(" + end,
	}).Result()
	observability.ObserveCacheOp("zrangebylex", err, time.Since(t0).Seconds())
	if err != nil {
		return 0, fmt.Errorf("redis ZRANGEBYLEX [%s (%s: %w", start, end, err)
	}
	ops := make([]Op, len(members))
	for i, m := range members {
		ops[i] = Delete(m)
	}
	if err := kv.Batch(ctx, ops); err != nil {
		return 0, err
	}
	return len(members), nil
}

// Purge drops the whole namespace.
func (kv *KV) Purge(ctx context.Context) (int, error) {
	start := time.Now()
	members, err := kv.c.rdb.ZRange(ctx, kv.indexKey(), 0, -1).Result()
	observability.ObserveCacheOp("zrange", err, time.Since(start).Seconds())
	if err != nil {
		return 0, fmt.Errorf("redis ZRANGE %s: %w", kv.indexKey(), err)
	}
	keys := make([]string, 0, len(members)+1)
	for _, m := range members {
		keys = append(keys, kv.valueKey(m))
	}
	keys = append(keys, kv.indexKey())
	const chunk = 500
	for i := 0; i < len(keys); i += chunk {
		if err := kv.c.Del(ctx, keys[i:min(i+chunk, len(keys))]...); err != nil {
			return 0, err
		}
	}
	return len(members), nil
}
