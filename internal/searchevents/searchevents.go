// Package searchevents publishes proximity search events to Kafka.
package searchevents

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
)

type Event struct {
	PostalCode    string    `json:"postal_code,omitempty"`
	Service       string    `json:"service,omitempty"`
	MaxDistanceKm float64   `json:"max_distance_km,omitempty"`
	Outcome       string    `json:"outcome"`
	Results       int       `json:"results"`
	TS            time.Time `json:"ts"`
}

// Sink receives events without blocking the request path.
type Sink interface {
	Publish(ev Event)
}

type Publisher struct {
	log     *slog.Logger
	topic   string
	events  chan Event
	prod    sarama.AsyncProducer
	stopped chan struct{}
	once    sync.Once
}

func NewPublisher(log *slog.Logger, brokers []string, topic string, queueSize int) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("searchevents: create async producer: %w", err)
	}
	return NewWithProducer(log, prod, topic, queueSize), nil
}

// NewWithProducer wires an existing producer; the publisher owns it.
func NewWithProducer(log *slog.Logger, prod sarama.AsyncProducer, topic string, queueSize int) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if log == nil {
		log = slog.Default()
	}
	p := &Publisher{
		log:     log,
		topic:   topic,
		events:  make(chan Event, queueSize),
		prod:    prod,
		stopped: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.log.Warn("searchevents: marshal error", "err", err)
				continue
			}
			msg := &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(ev.PostalCode),
				Value: sarama.ByteEncoder(b),
			}
			p.prod.Input() <- msg
		}
	}()

	go func() {
		for err := range p.prod.Errors() {
			if err != nil {
				p.log.Warn("searchevents: producer error", "err", err.Err)
			}
		}
	}()

	return p
}

func (p *Publisher) Publish(ev Event) {
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	select {
	case p.events <- ev:
	default:
		// queue full: drop, never block a search
	}
}

func (p *Publisher) Close() error {
	var err error
	p.once.Do(func() {
		close(p.events)
		<-p.stopped
		if cerr := p.prod.Close(); cerr != nil {
			err = fmt.Errorf("searchevents: close producer: %w", cerr)
		}
	})
	return err
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(Event) {}
