package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"SellerGuard/internal/domain/models"
	domrepo "SellerGuard/internal/domain/repository"
	pkgkafka "SellerGuard/pkg/kafka"
)

// KafkaSnapshotHandler consumes metrics snapshots and evaluates them.
type KafkaSnapshotHandler struct {
	topic     string
	evaluator SnapshotEvaluator
	metrics   domrepo.Metrics
}

func NewKafkaSnapshotHandler(topic string, evaluator SnapshotEvaluator, metrics domrepo.Metrics) *KafkaSnapshotHandler {
	return &KafkaSnapshotHandler{topic: topic, evaluator: evaluator, metrics: metrics}
}

func (h *KafkaSnapshotHandler) Topic() string { return h.topic }

// Handle expects a MetricsSnapshot JSON document. Payloads that can never succeed are marked
// permanent so they skip retries.
func (h *KafkaSnapshotHandler) Handle(ctx context.Context, b []byte) error {
	var snap models.MetricsSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return pkgkafka.Permanent(fmt.Errorf("decode snapshot: %w", err))
	}
	if snap.AccountID == "" {
		h.metrics.RecordError("consumer_validate")
		return pkgkafka.Permanent(models.ErrAccountRequired)
	}
	if !snap.CapturedAt.IsZero() {
		h.metrics.RecordLatency("ingest_e2e", time.Since(snap.CapturedAt).Seconds())
	}

	if _, err := h.evaluator.Evaluate(ctx, snap); err != nil {
		h.metrics.RecordError("consumer_evaluate")
		if isPermanent(err) {
			return pkgkafka.Permanent(err)
		}
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaSnapshotHandler)(nil)

// isPermanent reports input errors that no retry can fix.
func isPermanent(err error) bool {
	return errors.Is(err, models.ErrInvalidFactors) || errors.Is(err, models.ErrAccountRequired)
}
