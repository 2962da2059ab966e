package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammed-shakir/poi-tile-cache/internal/core/observability"
)

// HGetAllMany reads whole hashes in one pipeline. Missing hashes are absent
// from the result.
func (c *Client) HGetAllMany(ctx context.Context, keys []string) (map[string]map[string][]byte, error) {
	out := make(map[string]map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	start := time.Now()
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	_, err := c.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = p.HGetAll(ctx, k)
		}
		return nil
	})
	observability.ObserveCacheOp("hgetall", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("redis HGETALL %d keys: %w", len(keys), err)
	}
	for i, cmd := range cmds {
		m := cmd.Val()
		if len(m) == 0 {
			continue
		}
		fields := make(map[string][]byte, len(m))
		for f, v := range m {
			fields[f] = []byte(v)
		}
		out[keys[i]] = fields
	}
	return out, nil
}

// HMGetMany reads selected fields of many hashes. Missing fields are absent.
func (c *Client) HMGetMany(ctx context.Context, fields map[string][]string) (map[string]map[string][]byte, error) {
	out := make(map[string]map[string][]byte, len(fields))
	if len(fields) == 0 {
		return out, nil
	}
	start := time.Now()
	keys := make([]string, 0, len(fields))
	cmds := make([]*redis.SliceCmd, 0, len(fields))
	_, err := c.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for k, fs := range fields {
			keys = append(keys, k)
			cmds = append(cmds, p.HMGet(ctx, k, fs...))
		}
		return nil
	})
	observability.ObserveCacheOp("hmget", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("redis HMGET %d keys: %w", len(fields), err)
	}
	for i, cmd := range cmds {
		fs := fields[keys[i]]
		for j, v := range cmd.Val() {
			if v == nil {
				continue
			}
			if out[keys[i]] == nil {
				out[keys[i]] = make(map[string][]byte)
			}
			out[keys[i]][fs[j]] = toBytes(v)
		}
	}
	return out, nil
}

// HSetMany writes fields of many hashes in one transaction.
func (c *Client) HSetMany(ctx context.Context, values map[string]map[string][]byte) error {
	if len(values) == 0 {
		return nil
	}
	start := time.Now()
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for k, fields := range values {
			args := make([]any, 0, 2*len(fields))
			for f, v := range fields {
				args = append(args, f, v)
			}
			p.HSet(ctx, k, args...)
		}
		return nil
	})
	observability.ObserveCacheOp("hset", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("redis HSET %d keys: %w", len(values), err)
	}
	return nil
}
