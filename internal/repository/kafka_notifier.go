package repository

import (
	"context"
	"fmt"
	"strings"

	"SellerGuard/internal/domain/models"
	domrepo "SellerGuard/internal/domain/repository"
	pkgkafka "SellerGuard/pkg/kafka"
	applogger "SellerGuard/pkg/logger"
)

// Publisher is the subset of the Kafka producer the notifier needs.
type Publisher interface {
	Send(ctx context.Context, recs ...pkgkafka.Record) error
	Close() error
}

// KafkaNotifier publishes routed alerts keyed by account so one seller's alerts stay ordered.
// Delivery to email or WhatsApp happens downstream of the topic.
type KafkaNotifier struct {
	p     Publisher
	topic string
}

var _ domrepo.Notifier = (*KafkaNotifier)(nil)

func NewKafkaNotifier(p Publisher, topic string) *KafkaNotifier {
	return &KafkaNotifier{p: p, topic: topic}
}

func (n *KafkaNotifier) Notify(ctx context.Context, msg models.AlertNotification) error {
	rec := pkgkafka.Record{
		Topic: n.topic,
		Key:   msg.AccountID,
		Value: msg,
		Headers: map[string]string{
			"alert_type": string(msg.Alert.Type),
			"severity":   string(msg.Alert.Severity),
			"channels":   strings.Join(channelNames(msg.Channels), ","),
		},
	}
	if err := n.p.Send(ctx, rec); err != nil {
		return fmt.Errorf("notify %s: %w", msg.AlertID, err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.p.Close()
}

// LogNotifier writes routed alerts to the log. Used when Kafka is disabled.
type LogNotifier struct {
	l *applogger.Logger
}

var _ domrepo.Notifier = (*LogNotifier)(nil)

func NewLogNotifier(l *applogger.Logger) *LogNotifier {
	return &LogNotifier{l: l}
}

func (n *LogNotifier) Notify(_ context.Context, msg models.AlertNotification) error {
	n.l.Info("alert notification",
		applogger.String("account", msg.AccountID),
		applogger.String("alert_id", msg.AlertID),
		applogger.String("type", string(msg.Alert.Type)),
		applogger.String("severity", string(msg.Alert.Severity)),
		applogger.Int("priority", msg.Priority),
		applogger.Strings("channels", channelNames(msg.Channels)))
	return nil
}

func (n *LogNotifier) Close() error { return nil }

func channelNames(chs []models.Channel) []string {
	out := make([]string, len(chs))
	for i, c := range chs {
		out[i] = string(c)
	}
	return out
}
