package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	applogger "SellerGuard/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
)

// Record is one outbound message. Value is JSON-encoded unless it is []byte or string.
type Record struct {
	Topic   string
	Key     string
	Value   interface{}
	Headers map[string]string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes records to Kafka and records per-topic metrics.
type Producer struct {
	w       messageWriter
	comp    string
	metrics *producerMetrics
}

var _ applogger.Publisher = (*Producer)(nil)

// NewProducer creates a new Kafka producer.
func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := defaultProducerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	bal := kafka.Balancer(&kafka.LeastBytes{})
	if cfg.HashByKey {
		bal = &kafka.Hash{}
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     bal,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  cfg.compression,
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		BatchSize:    cfg.BatchSize,
		BatchBytes:   int64(cfg.BatchBytes),
		BatchTimeout: cfg.BatchTimeout,
		Async:        cfg.Async,
	}
	if cfg.Async {
		l := cfg.Logger
		w.Completion = func(msgs []kafka.Message, err error) {
			if err != nil && len(msgs) > 0 {
				l.Warn("kafka async write failed", applogger.String("topic", msgs[0].Topic), applogger.Int("messages", len(msgs)), applogger.Error(err))
			}
		}
	}
	return newProducer(w, cfg)
}

func newProducer(w messageWriter, cfg *ProducerConfig) (*Producer, error) {
	m, err := newProducerMetrics(cfg.Registerer)
	if err != nil {
		return nil, err
	}
	return &Producer{w: w, comp: cfg.Compression, metrics: m}, nil
}

// Send writes records in one batch. Records without a topic are rejected before anything is sent.
func (p *Producer) Send(ctx context.Context, recs ...Record) error {
	if len(recs) == 0 {
		return nil
	}
	start := time.Now()
	msgs := make([]kafka.Message, len(recs))
	for i, r := range recs {
		if r.Topic == "" {
			return errors.New("kafka record without topic")
		}
		v, err := encode(r.Value)
		if err != nil {
			return err
		}
		msgs[i] = kafka.Message{Topic: r.Topic, Value: v, Time: start}
		if r.Key != "" {
			msgs[i].Key = []byte(r.Key)
		}
		for k, hv := range r.Headers {
			msgs[i].Headers = append(msgs[i].Headers, kafka.Header{Key: k, Value: []byte(hv)})
		}
	}

	err := p.w.WriteMessages(ctx, msgs...)
	p.metrics.observe(msgs, p.comp, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", recs[0].Topic, err)
	}
	return nil
}

// PublishMessage sends an unkeyed message. It lets the producer back the error log collector.
func (p *Producer) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.Send(ctx, Record{Topic: topic, Value: payload})
}

// Close flushes pending writes and closes the producer.
func (p *Producer) Close() error {
	return p.w.Close()
}

func encode(value interface{}) ([]byte, error) {
	switch val := value.(type) {
	case []byte:
		return val, nil
	case string:
		return []byte(val), nil
	}
	v, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return v, nil
}

type producerMetrics struct {
	messages *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func newProducerMetrics(reg prometheus.Registerer) (*producerMetrics, error) {
	m := &producerMetrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sellerguard_kafka_producer_messages_total",
			Help: "Messages published to Kafka by result",
		}, []string{"topic", "compression", "result"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sellerguard_kafka_producer_bytes_total",
			Help: "Payload bytes published",
		}, []string{"topic", "compression"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sellerguard_kafka_producer_publish_seconds",
			Help:    "Publish latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"}),
	}
	var err error
	if m.messages, err = registerOrReuse(reg, m.messages); err != nil {
		return nil, err
	}
	if m.bytes, err = registerOrReuse(reg, m.bytes); err != nil {
		return nil, err
	}
	if m.latency, err = registerOrReuse(reg, m.latency); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse returns the collector already registered under the same
// name, so several producers or consumers in one process share their series.
func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register kafka metrics: %w", err)
	}
	return c, nil
}

func (m *producerMetrics) observe(msgs []kafka.Message, comp string, dur time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	for _, msg := range msgs {
		m.messages.WithLabelValues(msg.Topic, comp, result).Inc()
		m.bytes.WithLabelValues(msg.Topic, comp).Add(float64(len(msg.Value)))
	}
	m.latency.WithLabelValues(msgs[0].Topic).Observe(dur.Seconds())
}
