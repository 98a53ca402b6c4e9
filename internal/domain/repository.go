package domain

import (
	"context"
	"time"
)

// FactRepository persists fact records with upsert-by-key semantics.
type FactRepository interface {
	// Upsert inserts or overwrites records keyed by (AdID, Date).
	Upsert(ctx context.Context, records []FactRecord) error
	List(ctx context.Context, filter FactFilter) ([]FactRecord, error)
	// ReplaceLevels removes an account's rows at levels inside window and
	// upserts records as one unit: on error neither change is kept. It
	// returns the number of rows removed.
	ReplaceLevels(ctx context.Context, accountID string, levels []InsightLevel, window DateRange, records []FactRecord) (int64, error)
}

// StructureRepository persists the campaign / ad set / ad tree.
type StructureRepository interface {
	SaveStructure(ctx context.Context, accountID string, s *Structure) error
	GetStructure(ctx context.Context, accountID string) (*Structure, error)
}

// AccountRepository persists tracked accounts and their sync status.
type AccountRepository interface {
	EnsureAccounts(ctx context.Context, ids []string) error
	ListActive(ctx context.Context) ([]Account, error)
	GetAccount(ctx context.Context, id string) (*Account, error)
	SaveMetadata(ctx context.Context, meta AccountMetadata) error
	UpdateSyncStatus(ctx context.Context, id string, status SyncStatus, syncErr string, at time.Time) error
}

// InsightsAPIClient is the upstream advertising-insights API.
type InsightsAPIClient interface {
	FetchAccount(ctx context.Context, accountID string) (*AccountMetadata, error)
	FetchStructure(ctx context.Context, accountID string) (*Structure, error)
	FetchInsightsPage(ctx context.Context, req InsightsRequest) (*InsightsPage, error)
}

// CallBudget enforces the upstream per-hour call allowance. Acquire blocks
// until a call may be made or ctx is done.
type CallBudget interface {
	Acquire(ctx context.Context) error
}
