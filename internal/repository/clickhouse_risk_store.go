package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"SellerGuard/internal/domain/models"
	domrepo "SellerGuard/internal/domain/repository"
	pkgch "SellerGuard/pkg/clickhouse"
	applogger "SellerGuard/pkg/logger"
)

// CHRiskStore implements RiskStore backed by ClickHouse.
// Snapshots use ReplacingMergeTree keyed by account so the newest capture wins on merge.
type CHRiskStore struct {
	ch *pkgch.Client
	db *sql.DB
	l  *applogger.Logger
	q  chQueries
}

type chQueries struct {
	schema         []string
	insertSnapshot string
	latestSnapshot string
	insertHistory  string
	history        string
}

var _ domrepo.RiskStore = (*CHRiskStore)(nil)

func NewCHRiskStore(ch *pkgch.Client, l *applogger.Logger) *CHRiskStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHRiskStore{ch: ch, db: ch.DB(), l: l, q: buildQueries(ch.Database())}
}

func buildQueries(db string) chQueries {
	snapshots := db + ".metrics_snapshots"
	history := db + ".risk_history"
	return chQueries{
		schema: []string{
			`CREATE DATABASE IF NOT EXISTS ` + db,
			`CREATE TABLE IF NOT EXISTS ` + snapshots + ` (
		account_id        String,
		captured_at       DateTime64(3, 'UTC'),
		cancellation_rate Float64,
		claim_rate        Float64,
		response_time     Float64,
		stock_issues      Float64,
		reputation_score  Float64,
		late_responses    Float64,
		paused_listings   Float64
	) ENGINE = ReplacingMergeTree(captured_at)
	ORDER BY account_id`,
			`CREATE TABLE IF NOT EXISTS ` + history + ` (
		account_id  String,
		recorded_at DateTime64(3, 'UTC'),
		score       UInt8,
		level       LowCardinality(String),
		alert_count UInt16
	) ENGINE = ReplacingMergeTree
	PARTITION BY toYYYYMM(recorded_at)
	ORDER BY (account_id, recorded_at)
	TTL toDateTime(recorded_at) + INTERVAL 400 DAY`,
		},
		insertSnapshot: `INSERT INTO ` + snapshots + `
		(account_id, captured_at, cancellation_rate, claim_rate, response_time, stock_issues, reputation_score, late_responses, paused_listings)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		latestSnapshot: `SELECT captured_at, cancellation_rate, claim_rate, response_time, stock_issues, reputation_score, late_responses, paused_listings
		FROM ` + snapshots + `
		WHERE account_id = ?
		ORDER BY captured_at DESC
		LIMIT 1`,
		insertHistory: `INSERT INTO ` + history + ` (account_id, recorded_at, score, level, alert_count) VALUES (?, ?, ?, ?, ?)`,
		history: `SELECT recorded_at, score, level, alert_count
		FROM ` + history + ` FINAL
		WHERE account_id = ? AND recorded_at >= ?
		ORDER BY recorded_at ASC`,
	}
}

// Init creates the database and tables when missing.
func (s *CHRiskStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, s.q.schema)
}

func (s *CHRiskStore) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

func (s *CHRiskStore) Close() error {
	return s.ch.Close()
}

func (s *CHRiskStore) SaveSnapshot(ctx context.Context, snap models.MetricsSnapshot) error {
	f := snap.Factors
	_, err := s.db.ExecContext(ctx, s.q.insertSnapshot,
		snap.AccountID, snap.CapturedAt.UTC(),
		f.CancellationRate, f.ClaimRate, f.ResponseTime, f.StockIssues, f.ReputationScore, f.LateResponses, f.PausedListings,
	)
	if err != nil {
		s.l.Error("clickhouse save_snapshot error", applogger.String("account", snap.AccountID), applogger.Error(err))
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *CHRiskStore) LatestSnapshot(ctx context.Context, accountID string) (*models.MetricsSnapshot, error) {
	snap := models.MetricsSnapshot{AccountID: accountID}
	f := &snap.Factors
	err := s.db.QueryRowContext(ctx, s.q.latestSnapshot, accountID).Scan(
		&snap.CapturedAt, &f.CancellationRate, &f.ClaimRate, &f.ResponseTime, &f.StockIssues, &f.ReputationScore, &f.LateResponses, &f.PausedListings,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		s.l.Error("clickhouse latest_snapshot error", applogger.String("account", accountID), applogger.Error(err))
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	return &snap, nil
}

func (s *CHRiskStore) AppendHistory(ctx context.Context, e models.RiskHistoryEntry) error {
	_, err := s.db.ExecContext(ctx, s.q.insertHistory, e.AccountID, e.RecordedAt.UTC(), uint8(e.Score), string(e.Level), uint16(e.AlertCount))
	if err != nil {
		s.l.Error("clickhouse append_history error", applogger.String("account", e.AccountID), applogger.Error(err))
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (s *CHRiskStore) History(ctx context.Context, accountID string, since time.Time) ([]models.RiskHistoryEntry, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, s.q.history, accountID, since.UTC())
	if err != nil {
		s.l.Error("clickhouse history query error", applogger.String("account", accountID), applogger.Error(err))
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	out := make([]models.RiskHistoryEntry, 0, 64)
	for rows.Next() {
		var (
			e     = models.RiskHistoryEntry{AccountID: accountID}
			score uint8
			level string
			count uint16
		)
		if err := rows.Scan(&e.RecordedAt, &score, &level, &count); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.Score, e.Level, e.AlertCount = int(score), models.RiskLevel(level), int(count)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse history ok",
		applogger.String("account", accountID),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration", time.Since(start)))
	return out, nil
}
