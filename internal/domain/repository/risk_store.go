package repository

import "context"

// RiskStore is the analytical store for snapshots and risk history.
type RiskStore interface {
	SnapshotStore
	RiskHistoryStore
	Init(ctx context.Context) error // ensure tables
	Health(ctx context.Context) error
	Close() error
}
