package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	applogger "SellerGuard/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type partKey struct {
	topic     string
	partition int
}

// Consumer reads registered topics in a consumer group and fans messages out to a worker pool.
// Messages of one partition are handled one at a time, so per-account order holds when
// producers key by account.
type Consumer struct {
	cfg        *ConsumerConfig
	log        *applogger.Logger
	handlers   map[string]MessageHandler
	readers    map[string]messageReader
	openReader func(topic string) messageReader
	dlq        messageWriter
	hooks      Chain
	metrics    *consumerMetrics

	queue    chan *Delivery
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once

	lockMu    sync.Mutex
	partLocks map[partKey]*sync.Mutex
}

// NewConsumer creates a consumer. Nothing connects until Start.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := defaultConsumerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	m, err := newConsumerMetrics(cfg.Registerer)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Consumer{
		cfg:       cfg,
		log:       cfg.Logger,
		handlers:  make(map[string]MessageHandler),
		readers:   make(map[string]messageReader),
		metrics:   m,
		queue:     make(chan *Delivery, cfg.BufferSize),
		ctx:       ctx,
		cancel:    cancel,
		partLocks: make(map[partKey]*sync.Mutex),
	}
	c.openReader = func(topic string) messageReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    topic,
			GroupID:  cfg.GroupID,
			MinBytes: cfg.MinBytes,
			MaxBytes: cfg.MaxBytes,
		})
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Topic: cfg.DLQTopic, Balancer: &kafka.Hash{}}
	}
	return c, nil
}

// RegisterHandler registers the handler for its topic. The first registration wins.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.log.Warn("kafka handler already registered", applogger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// Use appends hooks around every handler attempt.
func (c *Consumer) Use(hooks ...ConsumerHook) {
	for _, h := range hooks {
		if h != nil {
			c.hooks = append(c.hooks, h)
		}
	}
}

// Start opens one reader per registered topic and starts the workers.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("kafka consumer: no handlers registered")
	}
	for topic := range c.handlers {
		c.readers[topic] = c.openReader(topic)
	}

	for i := 0; i < c.cfg.WorkerCount; i++ {
		c.wg.Add(1)
		go c.work()
	}
	for topic, r := range c.readers {
		c.wg.Add(1)
		go c.fetch(topic, r)
	}

	c.log.Info("kafka consumer started",
		applogger.Int("workers", c.cfg.WorkerCount),
		applogger.Int("topics", len(c.readers)),
		applogger.String("group", c.cfg.GroupID))
	return nil
}

// Stop cancels fetching, waits for in-flight messages and closes readers.
// Buffered messages that were never handled stay uncommitted and are redelivered.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		c.cancel()

		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("kafka consumer stop: %w", ctx.Err())
		}

		for topic, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.log.Warn("kafka reader close failed", applogger.String("topic", topic), applogger.Error(cerr))
			}
		}
		if c.dlq != nil {
			if cerr := c.dlq.Close(); cerr != nil {
				c.log.Warn("kafka dlq writer close failed", applogger.Error(cerr))
			}
		}
	})
	return err
}

func (c *Consumer) fetch(topic string, r messageReader) {
	defer c.wg.Done()
	for {
		msg, err := r.FetchMessage(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.log.Warn("kafka fetch failed", applogger.String("topic", topic), applogger.Error(err))
			if !c.sleep(c.cfg.BackoffMin) {
				return
			}
			continue
		}

		select {
		case c.queue <- &Delivery{Topic: topic, Message: msg, Payload: msg.Value}:
			c.metrics.queueDepth.WithLabelValues(topic).Set(float64(len(c.queue)))
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Consumer) work() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case d := <-c.queue:
			c.process(d)
		}
	}
}

// process handles d, dead-letters it on final failure and commits its offset.
// Without a DLQ a failed message stays uncommitted.
func (c *Consumer) process(d *Delivery) {
	h, ok := c.handlers[d.Topic]
	if !ok {
		return
	}
	start := time.Now()

	mu := c.partitionLock(d.Topic, d.Message.Partition)
	mu.Lock()
	defer mu.Unlock()

	outcome := "ok"
	err := c.handle(h, d)
	if errors.Is(err, errStopping) {
		// left uncommitted for the next group member
		c.metrics.handled.WithLabelValues(d.Topic, "abandoned").Inc()
		return
	}
	if err != nil {
		outcome = "failed"
		c.log.Error("kafka message failed",
			applogger.String("topic", d.Topic),
			applogger.Int("attempts", d.Attempt),
			applogger.Error(err))
		if c.dlq != nil && c.deadLetter(d, err) {
			outcome = "dead_lettered"
		}
	}
	if err == nil || c.dlq != nil {
		c.commit(d)
	}
	c.metrics.handled.WithLabelValues(d.Topic, outcome).Inc()
	c.metrics.latency.WithLabelValues(d.Topic).Observe(time.Since(start).Seconds())
}

// handle retries transient failures up to RetryMax times. Permanent errors and
// hook rejections fail on the first attempt.
func (c *Consumer) handle(h MessageHandler, d *Delivery) error {
	for d.Attempt = 1; ; d.Attempt++ {
		err := c.attempt(h, d)
		if err == nil || d.Attempt > c.cfg.RetryMax || IsPermanent(err) {
			return err
		}
		if !c.sleep(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, d.Attempt)) {
			return fmt.Errorf("%w: %v", errStopping, err)
		}
	}
}

func (c *Consumer) attempt(h MessageHandler, d *Delivery) (err error) {
	ctx, err := c.hooks.Before(context.Background(), d)
	if err != nil {
		err = Permanent(err)
		c.hooks.After(ctx, d, err)
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = Permanent(fmt.Errorf("handler panic: %v", r))
		}
		c.hooks.After(ctx, d, err)
	}()
	return h.Handle(ctx, d.Payload)
}

func (c *Consumer) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-c.ctx.Done():
		return false
	}
}

var errStopping = errors.New("kafka consumer stopping")

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks a handler error as not worth retrying, e.g. an undecodable payload.
// The message goes straight to the DLQ.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

func (c *Consumer) deadLetter(d *Delivery, cause error) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.dlq.WriteMessages(ctx, kafka.Message{
		Key:   d.Message.Key,
		Value: d.Message.Value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "source_topic", Value: []byte(d.Topic)},
			{Key: "error", Value: []byte(cause.Error())},
			{Key: "attempts", Value: []byte(strconv.Itoa(d.Attempt))},
		},
	})
	if err != nil {
		c.log.Error("kafka dlq write failed", applogger.String("dlq_topic", c.cfg.DLQTopic), applogger.Error(err))
		return false
	}
	return true
}

func (c *Consumer) commit(d *Delivery) {
	r := c.readers[d.Topic]
	if r == nil {
		return
	}
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = r.CommitMessages(ctx, d.Message)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	c.log.Error("kafka commit failed",
		applogger.String("topic", d.Topic),
		applogger.Int64("offset", d.Message.Offset),
		applogger.Error(err))
}

func (c *Consumer) partitionLock(topic string, partition int) *sync.Mutex {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()
	k := partKey{topic, partition}
	mu, ok := c.partLocks[k]
	if !ok {
		mu = &sync.Mutex{}
		c.partLocks[k] = mu
	}
	return mu
}

// backoffWithJitter doubles min per attempt up to max and subtracts up to half as jitter.
func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	d := max
	if attempt >= 1 && attempt < 31 {
		if e := min << uint(attempt-1); e > 0 && e < max {
			d = e
		}
	}
	if half := int64(d) / 2; half > 0 {
		d -= time.Duration(rand.Int63n(half))
	}
	return d
}

type consumerMetrics struct {
	queueDepth *prometheus.GaugeVec
	handled    *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

func newConsumerMetrics(reg prometheus.Registerer) (*consumerMetrics, error) {
	m := &consumerMetrics{
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sellerguard_kafka_consumer_queue_depth",
			Help: "Messages fetched but not yet picked up by a worker",
		}, []string{"topic"}),
		handled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sellerguard_kafka_consumer_messages_total",
			Help: "Consumed messages by outcome",
		}, []string{"topic", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sellerguard_kafka_consumer_handle_seconds",
			Help:    "Handling time per message including retries",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"}),
	}
	var err error
	if m.queueDepth, err = registerOrReuse(reg, m.queueDepth); err != nil {
		return nil, err
	}
	if m.handled, err = registerOrReuse(reg, m.handled); err != nil {
		return nil, err
	}
	if m.latency, err = registerOrReuse(reg, m.latency); err != nil {
		return nil, err
	}
	return m, nil
}
