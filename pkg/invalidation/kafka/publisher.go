package kafka

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
	json "github.com/goccy/go-json"

	"github.com/mohammed-shakir/poi-tile-cache/internal/core/observability"
	"github.com/mohammed-shakir/poi-tile-cache/internal/invalidation"
)

var ErrQueueFull = errors.New("invalidation publish queue full")

// Publisher sends invalidation events asynchronously. Messages are keyed by
// event source so one source's versions stay on one partition.
type Publisher struct {
	topic   string
	log     *slog.Logger
	events  chan invalidation.Event
	prod    sarama.AsyncProducer
	stopped chan struct{}
	errDone chan struct{}
}

func NewPublisher(c InvalidationConfig, queueSize int, log *slog.Logger) (*Publisher, error) {
	cfg, err := c.saramaConfig()
	if err != nil {
		return nil, err
	}
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false
	cfg.Producer.RequiredAcks = sarama.WaitForAll

	prod, err := sarama.NewAsyncProducer(c.Brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create async producer: %w", err)
	}
	return newPublisher(prod, c.Topic, queueSize, log), nil
}

func newPublisher(prod sarama.AsyncProducer, topic string, queueSize int, log *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if log == nil {
		log = slog.Default()
	}
	p := &Publisher{
		topic:   topic,
		log:     log,
		events:  make(chan invalidation.Event, queueSize),
		prod:    prod,
		stopped: make(chan struct{}),
		errDone: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.log.Error("invalidation event marshal", "err", err)
				continue
			}
			msg := &sarama.ProducerMessage{
				Topic: p.topic,
				Value: sarama.ByteEncoder(b),
			}
			if ev.Source != "" {
				msg.Key = sarama.StringEncoder(ev.Source)
			}
			p.prod.Input() <- msg
		}
	}()

	go func() {
		defer close(p.errDone)
		for err := range p.prod.Errors() {
			observability.IncKafkaConsumerError("produce")
			p.log.Error("invalidation producer error", "err", err)
		}
	}()

	return p
}

// Publish queues ev without blocking. Invalid events are rejected here so
// consumers never see them.
func (p *Publisher) Publish(ev invalidation.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	select {
	case p.events <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close flushes queued events and closes the producer.
func (p *Publisher) Close() error {
	close(p.events)
	<-p.stopped

	err := p.prod.Close()
	<-p.errDone
	if err != nil {
		return fmt.Errorf("close producer: %w", err)
	}
	return nil
}
