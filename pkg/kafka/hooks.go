package kafka

import (
	"context"
	"fmt"
	"time"

	applogger "SellerGuard/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// Delivery is one fetched message on its way to a handler. Hooks may replace
// Payload before the handler sees it.
type Delivery struct {
	Topic   string
	Message kafka.Message
	Payload []byte
	Attempt int
}

// Header returns the first value of the named header, or "".
func (d *Delivery) Header(key string) string {
	for _, h := range d.Message.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// ConsumerHook wraps every handler attempt. An error from Before skips the
// handler and fails the attempt with that error. After sees the outcome of
// every attempt, including ones Before rejected.
type ConsumerHook interface {
	Before(ctx context.Context, d *Delivery) (context.Context, error)
	After(ctx context.Context, d *Delivery, err error)
}

// HookFuncs adapts plain functions to ConsumerHook. Nil fields are no-ops.
type HookFuncs struct {
	OnBefore func(context.Context, *Delivery) (context.Context, error)
	OnAfter  func(context.Context, *Delivery, error)
}

func (h HookFuncs) Before(ctx context.Context, d *Delivery) (context.Context, error) {
	if h.OnBefore == nil {
		return ctx, nil
	}
	return h.OnBefore(ctx, d)
}

func (h HookFuncs) After(ctx context.Context, d *Delivery, err error) {
	if h.OnAfter != nil {
		h.OnAfter(ctx, d, err)
	}
}

// HookError is returned when a hook rejects or panics.
type HookError struct {
	Code string
	Err  error
}

func (e *HookError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return e.Code + ": " + e.Err.Error()
}

func (e *HookError) Unwrap() error { return e.Err }

// Chain runs hooks in order on Before and in reverse on After.
// A panicking Before turns into an ERR_PANIC HookError; a panicking After is dropped.
type Chain []ConsumerHook

func (c Chain) Before(ctx context.Context, d *Delivery) (context.Context, error) {
	for _, h := range c {
		next, err := guardBefore(h, ctx, d)
		if err != nil {
			return ctx, err
		}
		ctx = next
	}
	return ctx, nil
}

func (c Chain) After(ctx context.Context, d *Delivery, err error) {
	for i := len(c) - 1; i >= 0; i-- {
		guardAfter(c[i], ctx, d, err)
	}
}

func guardBefore(h ConsumerHook, ctx context.Context, d *Delivery) (out context.Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = ctx, &HookError{Code: "ERR_PANIC", Err: fmt.Errorf("%v", r)}
		}
	}()
	return h.Before(ctx, d)
}

func guardAfter(h ConsumerHook, ctx context.Context, d *Delivery, err error) {
	defer func() { _ = recover() }()
	h.After(ctx, d, err)
}

type ctxKey int

const (
	startKey ctxKey = iota
	traceKey
)

// TraceHeader carries the producer's correlation id.
const TraceHeader = "trace_id"

// TraceID returns the correlation id LoggingHook stored on ctx, or "".
func TraceID(ctx context.Context) string {
	v, _ := ctx.Value(traceKey).(string)
	return v
}

// LoggingHook warns about failed attempts and about successful ones slower than slow.
func LoggingHook(l *applogger.Logger, slow time.Duration) ConsumerHook {
	return HookFuncs{
		OnBefore: func(ctx context.Context, d *Delivery) (context.Context, error) {
			ctx = context.WithValue(ctx, startKey, time.Now())
			if id := d.Header(TraceHeader); id != "" {
				ctx = context.WithValue(ctx, traceKey, id)
			}
			return ctx, nil
		},
		OnAfter: func(ctx context.Context, d *Delivery, err error) {
			if err != nil {
				l.Warn("kafka attempt failed",
					applogger.String("topic", d.Topic),
					applogger.String("key", string(d.Message.Key)),
					applogger.Int("attempt", d.Attempt),
					applogger.String("trace_id", TraceID(ctx)),
					applogger.Error(err))
				return
			}
			start, ok := ctx.Value(startKey).(time.Time)
			if !ok || slow <= 0 {
				return
			}
			if took := time.Since(start); took > slow {
				l.Warn("kafka slow message",
					applogger.String("topic", d.Topic),
					applogger.Int("partition", d.Message.Partition),
					applogger.Int64("offset", d.Message.Offset),
					applogger.Duration("took", took))
			}
		},
	}
}
