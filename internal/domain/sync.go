package domain

import "time"

// SyncRequest parameterizes one sync cycle.
type SyncRequest struct {
	// AccountIDs restricts the run; empty means every active account.
	AccountIDs []string
	// Days is the window length ending on EndDate. Zero uses the default.
	Days    int
	EndDate time.Time
}

// QualityWarning is a soft validation finding. The record is still stored.
type QualityWarning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	AdID    string `json:"ad_id"`
	Date    string `json:"date"`
}

// AccountResult is the outcome of one account's sync.
type AccountResult struct {
	AccountID         string           `json:"account_id"`
	Status            SyncStatus       `json:"status"`
	Level             InsightLevel     `json:"level,omitempty"`
	EntitiesProcessed int              `json:"entities_processed"`
	RecordsFetched    int              `json:"records_fetched"`
	RecordsProcessed  int              `json:"records_processed"`
	RecordsDropped    int              `json:"records_dropped"`
	DropReasons       map[string]int   `json:"drop_reasons,omitempty"`
	RecordsBackfilled int              `json:"records_backfilled"`
	RowsReplaced      int64            `json:"rows_replaced"`
	Warnings          []QualityWarning `json:"warnings,omitempty"`
	Errors            []string         `json:"errors,omitempty"`
	Duration          time.Duration    `json:"duration"`
}

// SyncReport enumerates every account outcome of a sync cycle, including
// partial failures.
type SyncReport struct {
	RunID             string          `json:"run_id"`
	Window            RangeView       `json:"window"`
	StartedAt         time.Time       `json:"started_at"`
	FinishedAt        time.Time       `json:"finished_at"`
	Accounts          []AccountResult `json:"accounts"`
	Succeeded         int             `json:"succeeded"`
	Failed            int             `json:"failed"`
	Skipped           int             `json:"skipped"`
	EntitiesProcessed int             `json:"entities_processed"`
	RecordsProcessed  int             `json:"records_processed"`
	RecordsDropped    int             `json:"records_dropped"`
	Errors            int             `json:"errors"`
	Cancelled         bool            `json:"cancelled"`
}

// Add folds an account result into the report totals.
func (r *SyncReport) Add(res AccountResult) {
	r.Accounts = append(r.Accounts, res)
	switch res.Status {
	case SyncCompleted:
		r.Succeeded++
	case SyncFailed:
		r.Failed++
	}
	r.EntitiesProcessed += res.EntitiesProcessed
	r.RecordsProcessed += res.RecordsProcessed
	r.RecordsDropped += res.RecordsDropped
	r.Errors += len(res.Errors)
}
