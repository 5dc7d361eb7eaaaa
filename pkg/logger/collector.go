package logger

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"
)

// ErrBatchDropped is reported through OnPublishError when the publisher falls behind.
var ErrBatchDropped = errors.New("log collector: batch dropped, publisher busy")

// Publisher ships aggregated batches, typically to a Kafka topic.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval, 30s when zero
	CountThreshold int           // distinct entries that force an early flush, 100 when zero
	Topic          string
	Publisher      Publisher
	PublishTimeout time.Duration // per batch, 10s when zero
	OnPublishError func(error)   // optional; publish failures are dropped otherwise
}

// AggregatedLogEntry is one distinct error (level, message, fields, caller) and how often it fired.
type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector deduplicates error logs and publishes them in batches.
type LogCollector struct {
	cfg     CollectionConfig
	mu      sync.Mutex
	entries map[uint64]*AggregatedLogEntry
	closed  bool
	batches chan []AggregatedLogEntry
	stop    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	cfg := *config
	if cfg.TimeInterval <= 0 {
		cfg.TimeInterval = 30 * time.Second
	}
	if cfg.CountThreshold <= 0 {
		cfg.CountThreshold = 100
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 10 * time.Second
	}

	d := &LogCollector{
		cfg:     cfg,
		entries: make(map[uint64]*AggregatedLogEntry),
		batches: make(chan []AggregatedLogEntry, 4),
		stop:    make(chan struct{}),
	}
	d.wg.Add(2)
	go d.tick()
	go d.publish()
	return d
}

func (d *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := entryKey(level, message, fields, caller)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	if e, ok := d.entries[key]; ok {
		e.Count++
		e.LastSeen = now
	} else {
		d.entries[key] = &AggregatedLogEntry{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}
	if len(d.entries) >= d.cfg.CountThreshold {
		d.flushLocked()
	}
}

// Flush hands everything collected so far to the publisher.
func (d *LogCollector) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.flushLocked()
	}
}

// Close flushes the remaining entries and waits for pending publishes.
func (d *LogCollector) Close() {
	d.once.Do(func() {
		close(d.stop)
		d.wg.Wait()
	})
}

func (d *LogCollector) tick() {
	defer d.wg.Done()
	t := time.NewTicker(d.cfg.TimeInterval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			d.Flush()
		case <-d.stop:
			d.mu.Lock()
			d.flushLocked()
			d.closed = true
			close(d.batches)
			d.mu.Unlock()
			return
		}
	}
}

func (d *LogCollector) publish() {
	defer d.wg.Done()
	for batch := range d.batches {
		if d.cfg.Publisher == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.PublishTimeout)
		err := d.cfg.Publisher.PublishMessage(ctx, d.cfg.Topic, batch)
		cancel()
		if err != nil {
			d.reportErr(fmt.Errorf("publish aggregated logs: %w", err))
		}
	}
}

// flushLocked must run with mu held.
func (d *LogCollector) flushLocked() {
	if len(d.entries) == 0 {
		return
	}
	batch := make([]AggregatedLogEntry, 0, len(d.entries))
	for _, e := range d.entries {
		batch = append(batch, *e)
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].FirstSeen.Before(batch[j].FirstSeen) })
	d.entries = make(map[uint64]*AggregatedLogEntry)

	select {
	case d.batches <- batch:
	default:
		d.reportErr(ErrBatchDropped)
	}
}

func (d *LogCollector) reportErr(err error) {
	if d.cfg.OnPublishError != nil {
		d.cfg.OnPublishError(err)
	}
}

func entryKey(level, message string, fields map[string]interface{}, caller string) uint64 {
	h := fnv.New64a()
	for _, s := range []string{level, message, caller} {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%v\x00", k, fields[k])
	}
	return h.Sum64()
}
