// Package kafka consumes tile invalidation events from a Kafka topic and
// evicts the named tiles from a cache.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	json "github.com/goccy/go-json"

	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/tileid"
	"github.com/mohammed-shakir/poi-tile-cache/internal/core/observability"
	"github.com/mohammed-shakir/poi-tile-cache/internal/invalidation"
)

var ErrNotAssigned = errors.New("no partitions assigned")

// Target drops every cached entry of the given base-58 tile ids.
type Target interface {
	Invalidate(ctx context.Context, ids ...string) (int, error)
}

type Runner struct {
	log      *slog.Logger
	cfg      InvalidationConfig
	target   Target
	enc      tileid.Encoder
	minZoom  int
	replay   *replayGuard
	assigned atomic.Bool
	assignMu sync.RWMutex
	assign   map[int32]struct{}
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

type Options struct {
	Logger  *slog.Logger
	Encoder tileid.Encoder
	MinZoom int
}

func New(cfg InvalidationConfig, t Target, opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner{
		log:     opts.Logger,
		cfg:     cfg,
		target:  t,
		enc:     opts.Encoder,
		minZoom: opts.MinZoom,
		replay:  newReplayGuard(8192),
		assign:  map[int32]struct{}{},
	}
}

func (r *Runner) Enabled() bool { return r.cfg.Enabled && r.cfg.Driver == DriverKafka }

func (r *Runner) Start(ctx context.Context) error {
	if !r.Enabled() {
		r.log.Info("invalidation runner disabled", "driver", r.cfg.Driver, "enabled", r.cfg.Enabled)
		return nil
	}
	if r.target == nil {
		return errors.New("kafka runner: invalidation target is required")
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	cfg, err := r.cfg.saramaConfig()
	if err != nil {
		cancel()
		return err
	}
	cfg.Consumer.Group.Session.Timeout = r.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = r.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = r.cfg.RebalanceTimeout
	if r.cfg.InitialOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(r.cfg.Brokers, r.cfg.GroupID, cfg)
	if err != nil {
		cancel()
		return fmt.Errorf("consumer group: %w", err)
	}

	h := &groupHandler{
		setup: func(sess sarama.ConsumerGroupSession) {
			claims := sess.Claims()
			r.assignMu.Lock()
			r.assigned.Store(true)
			r.assign = map[int32]struct{}{}
			for _, parts := range claims {
				for _, p := range parts {
					r.assign[p] = struct{}{}
				}
			}
			r.assignMu.Unlock()
		},
		cleanup: func(sarama.ConsumerGroupSession) {
			r.assignMu.Lock()
			r.assigned.Store(false)
			r.assign = map[int32]struct{}{}
			r.assignMu.Unlock()
		},
		process: r.handleMessage,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if err := group.Close(); err != nil {
				r.log.Error("kafka consumer group close", "err", err)
			}
		}()

		for {
			if err := group.Consume(ctx, []string{r.cfg.Topic}, h); err != nil {
				observability.IncKafkaConsumerError("consume")
				r.log.Error("kafka consume error", "err", err)
				select {
				case <-time.After(2 * time.Second):
				case <-ctx.Done():
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for err := range group.Errors() {
			observability.IncKafkaConsumerError("group")
			r.log.Error("kafka group error", "err", err)
		}
	}()

	r.log.Info("kafka invalidation runner started",
		"topic", r.cfg.Topic, "group", r.cfg.GroupID, "brokers", r.cfg.Brokers)
	return nil
}

func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.log.Info("kafka invalidation runner stopped")
}

func (r *Runner) Readiness() (ready bool, partitions []int32) {
	if !r.assigned.Load() {
		return false, nil
	}
	r.assignMu.RLock()
	defer r.assignMu.RUnlock()
	for p := range r.assign {
		partitions = append(partitions, p)
	}
	return true, partitions
}

// Ping reports readiness for the health endpoint.
func (r *Runner) Ping(context.Context) error {
	if ready, _ := r.Readiness(); !ready {
		return ErrNotAssigned
	}
	return nil
}

// handleMessage skips events that do not decode or validate; only a failing
// target is returned so the message is redelivered.
func (r *Runner) handleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	start := time.Now()

	if !msg.Timestamp.IsZero() {
		observability.SetInvalidationLag(time.Since(msg.Timestamp).Seconds())
	}

	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		r.reject(msg, "unknown", "decode", err)
		return nil
	}
	sel := ev.Selector()
	if err := ev.Validate(); err != nil {
		r.reject(msg, sel, "validate", err)
		return nil
	}
	ids, err := ev.TileIDs(r.enc, r.minZoom)
	if err != nil {
		r.reject(msg, sel, "resolve", err)
		return nil
	}

	err = r.apply(ctx, ev, ids)
	observability.ObserveInvalidation(sel, err, time.Since(start).Seconds())
	return err
}

func (r *Runner) reject(msg *sarama.ConsumerMessage, selector, kind string, err error) {
	observability.RejectInvalidation(selector)
	observability.IncKafkaConsumerError(kind)
	r.log.Warn("invalidation event skipped",
		"kind", kind, "selector", selector, "partition", msg.Partition, "offset", msg.Offset, "err", err)
}

func (r *Runner) apply(ctx context.Context, ev invalidation.Event, ids []string) error {
	todo := r.replay.admit(ev.Source, ev.Version, ids)
	observability.AddTileInvalidations("skipped", len(ids)-len(todo))
	if len(todo) == 0 {
		return nil
	}

	n, err := r.target.Invalidate(ctx, todo...)
	if err != nil {
		r.replay.release(ev.Source, todo)
		observability.AddTileInvalidations("error", len(todo))
		return fmt.Errorf("invalidate %d tiles: %w", len(todo), err)
	}
	observability.AddTileInvalidations("deleted", len(todo))
	r.log.Debug("tiles invalidated", "op", ev.Op, "selector", ev.Selector(),
		"ids", len(todo), "keys", n, "version", ev.Version)
	return nil
}

type groupHandler struct {
	setup   func(sarama.ConsumerGroupSession)
	cleanup func(sarama.ConsumerGroupSession)
	process func(context.Context, *sarama.ConsumerMessage) error
}

func (h *groupHandler) Setup(sess sarama.ConsumerGroupSession) error {
	if h.setup != nil {
		h.setup(sess)
	}
	return nil
}

func (h *groupHandler) Cleanup(sess sarama.ConsumerGroupSession) error {
	if h.cleanup != nil {
		h.cleanup(sess)
	}
	return nil
}

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for msg := range claim.Messages() {
		if err := h.process(ctx, msg); err != nil {
			return err
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}
