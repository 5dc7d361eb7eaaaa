package repository

import (
	"context"
	"errors"
	"testing"

	"SellerGuard/internal/domain/models"
	pkgkafka "SellerGuard/pkg/kafka"
	applogger "SellerGuard/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	recs []pkgkafka.Record
	err  error
}

func (f *fakePublisher) Send(_ context.Context, recs ...pkgkafka.Record) error {
	f.recs = append(f.recs, recs...)
	return f.err
}

func (f *fakePublisher) Close() error { return nil }

func TestKafkaNotifier_KeysByAccount(t *testing.T) {
	p := &fakePublisher{}
	n := NewKafkaNotifier(p, "seller.alerts")

	msg := models.AlertNotification{
		AccountID: "42",
		AlertID:   "a1",
		Alert:     models.AlertConfig{Type: models.AlertClaimIncrease, Severity: models.SeverityCritical},
		Channels:  []models.Channel{models.ChannelEmail, models.ChannelWhatsApp},
	}
	require.NoError(t, n.Notify(context.Background(), msg))

	require.Len(t, p.recs, 1)
	rec := p.recs[0]
	assert.Equal(t, "seller.alerts", rec.Topic)
	assert.Equal(t, "42", rec.Key)
	assert.Equal(t, msg, rec.Value)
	assert.Equal(t, "critical", rec.Headers["severity"])
	assert.Equal(t, "claim_increase", rec.Headers["alert_type"])
	assert.Equal(t, "email,whatsapp", rec.Headers["channels"])
}

func TestKafkaNotifier_WrapsError(t *testing.T) {
	boom := errors.New("broker down")
	n := NewKafkaNotifier(&fakePublisher{err: boom}, "seller.alerts")

	err := n.Notify(context.Background(), models.AlertNotification{AlertID: "a1"})
	assert.ErrorIs(t, err, boom)
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier(applogger.Nop())
	assert.NoError(t, n.Notify(context.Background(), models.AlertNotification{AccountID: "42"}))
	assert.NoError(t, n.Close())
}
