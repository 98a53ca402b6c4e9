package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"adinsights/internal/domain"
	"adinsights/pkg/logger"
	"adinsights/pkg/metrics"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// fineLevels are tried in order before falling back to account level.
var fineLevels = []domain.InsightLevel{domain.LevelAd, domain.LevelCampaign}

type SyncOptions struct {
	WindowDays   int
	AccountDelay time.Duration
}

type SyncService struct {
	facts       domain.FactRepository
	structures  domain.StructureRepository
	accounts    domain.AccountRepository
	apiClient   domain.InsightsAPIClient
	transformer *Transformer
	validator   *Validator
	logger      *logger.Logger
	metrics     *metrics.Metrics
	opts        SyncOptions

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewSyncService(
	facts domain.FactRepository,
	structures domain.StructureRepository,
	accounts domain.AccountRepository,
	apiClient domain.InsightsAPIClient,
	transformer *Transformer,
	validator *Validator,
	logger *logger.Logger,
	metrics *metrics.Metrics,
	opts SyncOptions,
) *SyncService {
	if opts.WindowDays < 1 {
		opts.WindowDays = 3
	}
	return &SyncService{
		facts:       facts,
		structures:  structures,
		accounts:    accounts,
		apiClient:   apiClient,
		transformer: transformer,
		validator:   validator,
		logger:      logger,
		metrics:     metrics,
		opts:        opts,
		now:         time.Now,
		sleep:       sleepContext,
	}
}

// RunSync executes one sync cycle over every requested account, one at a
// time. Account failures are recorded in the report and never abort the
// cycle. An error is returned only when the account list cannot be resolved.
func (s *SyncService) RunSync(ctx context.Context, req domain.SyncRequest) (*domain.SyncReport, error) {
	start := s.now()
	runID := uuid.NewString()
	ctx = logger.WithSyncRunID(ctx, runID)

	s.metrics.IncSyncRunsInProgress()
	defer s.metrics.DecSyncRunsInProgress()

	days := req.Days
	if days < 1 {
		days = s.opts.WindowDays
	}
	end := req.EndDate
	if end.IsZero() {
		end = start
	}
	window := domain.LastNDays(end, days)

	report := &domain.SyncReport{
		RunID:     runID,
		Window:    domain.ViewOf(window),
		StartedAt: start.UTC(),
		Accounts:  []domain.AccountResult{},
	}

	log := s.logger.WithContext(ctx)
	log.WithFields(map[string]any{
		"window": window.String(),
	}).Info("Starting insights sync")

	accountIDs, err := s.resolveAccounts(ctx, req.AccountIDs)
	if err != nil {
		s.metrics.RecordSyncRun("failed", s.now().Sub(start))
		return nil, fmt.Errorf("failed to resolve accounts: %w", err)
	}
	if len(accountIDs) == 0 {
		report.FinishedAt = s.now().UTC()
		s.metrics.RecordSyncRun("empty", s.now().Sub(start))
		return report, domain.ErrNoAccounts
	}

	for i, accountID := range accountIDs {
		if i > 0 && s.opts.AccountDelay > 0 {
			if err := s.sleep(ctx, s.opts.AccountDelay); err != nil {
				report.Cancelled = true
			}
		}
		if ctx.Err() != nil {
			report.Cancelled = true
		}
		if report.Cancelled {
			report.Skipped = len(accountIDs) - i
			log.WithField("skipped_accounts", report.Skipped).Warn("Sync cancelled, skipping remaining accounts")
			break
		}

		report.Add(s.syncAccount(ctx, accountID, window))
	}

	report.FinishedAt = s.now().UTC()
	duration := report.FinishedAt.Sub(start)

	status := "success"
	switch {
	case report.Cancelled:
		status = "cancelled"
	case report.Failed > 0 && report.Succeeded == 0:
		status = "failed"
	case report.Failed > 0:
		status = "partial"
	}
	s.metrics.RecordSyncRun(status, duration)

	log.WithFields(map[string]any{
		"duration":           duration,
		"status":             status,
		"succeeded":          report.Succeeded,
		"failed":             report.Failed,
		"skipped":            report.Skipped,
		"entities_processed": report.EntitiesProcessed,
		"records_processed":  report.RecordsProcessed,
		"records_dropped":    report.RecordsDropped,
		"errors":             report.Errors,
	}).Info("Insights sync completed")

	return report, nil
}

func (s *SyncService) resolveAccounts(ctx context.Context, requested []string) ([]string, error) {
	ids := lo.Uniq(lo.Compact(lo.Map(requested, func(id string, _ int) string {
		return strings.TrimPrefix(strings.TrimSpace(id), "act_")
	})))
	if len(ids) > 0 {
		if err := s.accounts.EnsureAccounts(ctx, ids); err != nil {
			return nil, err
		}
		return ids, nil
	}

	active, err := s.accounts.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Map(active, func(a domain.Account, _ int) string { return a.ID }), nil
}

// syncAccount runs the per-account state machine:
// metadata, structure, fine-grained insights or the account-level fallback,
// then the rate backfill pass.
func (s *SyncService) syncAccount(ctx context.Context, accountID string, window domain.DateRange) domain.AccountResult {
	start := s.now()
	log := s.logger.WithContext(ctx).WithField("account_id", accountID)
	res := domain.AccountResult{
		AccountID:   accountID,
		Status:      domain.SyncSyncing,
		DropReasons: map[string]int{},
	}

	s.setStatus(ctx, accountID, domain.SyncSyncing, "")

	fail := func(step string, err error) domain.AccountResult {
		res.Status = domain.SyncFailed
		res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", step, err))
		res.Duration = s.now().Sub(start)
		s.setStatus(ctx, accountID, domain.SyncFailed, strings.Join(res.Errors, "; "))
		s.metrics.RecordAccountSync(string(domain.SyncFailed), string(res.Level))
		log.WithError(err).WithField("step", step).Error("Account sync failed")
		return res
	}

	if err := s.syncMetadata(ctx, accountID); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("metadata: %v", err))
		log.WithError(err).Warn("Account metadata refresh failed, continuing")
	}

	structure, err := s.syncStructure(ctx, accountID)
	if err != nil {
		return fail("structure", err)
	}
	res.EntitiesProcessed = structure.EntityCount()

	level, rows, fineErr := s.fetchFineGrained(ctx, accountID, window, log)
	if fineErr == nil {
		res.Level = level
		res.RecordsFetched = len(rows)
		batch := s.transformer.TransformBatch(ctx, rows, level, BatchOptions{
			Validator:  s.validator,
			VideoAdIDs: structure.VideoAdIDs(),
		})
		applyBatch(&res, batch)

		replaced, err := s.facts.ReplaceLevels(ctx, accountID, otherLevels(level), window, batch.Records)
		if err != nil {
			return fail("upsert", err)
		}
		res.RowsReplaced = replaced
	} else {
		res.Errors = append(res.Errors, fmt.Sprintf("fine-grained: %v", fineErr))
		log.WithError(fineErr).Warn("Fine-grained insights unavailable, falling back to account level")

		rows, err := s.fetchAll(ctx, accountID, domain.LevelAccount, window)
		if err != nil {
			return fail("account-level fallback", err)
		}
		res.Level = domain.LevelAccount
		res.RecordsFetched = len(rows)
		batch := s.transformer.TransformBatch(ctx, rows, domain.LevelAccount, BatchOptions{Validator: s.validator})
		applyBatch(&res, batch)

		records, err := s.withoutCoveredDates(ctx, accountID, window, batch.Records)
		if err != nil {
			return fail("account-level fallback", err)
		}
		if covered := len(batch.Records) - len(records); covered > 0 {
			res.RecordsDropped += covered
			res.DropReasons[DropCoveredByFinerRows] += covered
			for range covered {
				s.metrics.RecordRecordDropped(DropCoveredByFinerRows)
			}
			log.WithField("records", covered).Info("Skipped account-level rows for dates with finer rows")
		}
		res.RecordsProcessed = len(records)

		if err := s.facts.Upsert(ctx, records); err != nil {
			return fail("upsert", err)
		}
	}
	s.metrics.RecordRecordsProcessed(string(res.Level), res.RecordsProcessed)

	backfilled, err := s.backfillRates(ctx, accountID, window)
	if err != nil {
		return fail("backfill", err)
	}
	res.RecordsBackfilled = backfilled

	res.Status = domain.SyncCompleted
	res.Duration = s.now().Sub(start)
	s.setStatus(ctx, accountID, domain.SyncCompleted, "")
	s.metrics.RecordAccountSync(string(domain.SyncCompleted), string(res.Level))

	log.WithFields(map[string]any{
		"level":              res.Level,
		"entities_processed": res.EntitiesProcessed,
		"records_fetched":    res.RecordsFetched,
		"records_processed":  res.RecordsProcessed,
		"records_dropped":    res.RecordsDropped,
		"records_backfilled": res.RecordsBackfilled,
		"rows_replaced":      res.RowsReplaced,
		"warnings":           len(res.Warnings),
		"duration":           res.Duration,
	}).Info("Account sync completed")

	return res
}

func applyBatch(res *domain.AccountResult, batch BatchResult) {
	res.RecordsProcessed = len(batch.Records)
	res.RecordsDropped = batch.Dropped
	for reason, n := range batch.DropReasons {
		res.DropReasons[reason] += n
	}
	res.Warnings = append(res.Warnings, batch.Warnings...)
}

func otherLevels(level domain.InsightLevel) []domain.InsightLevel {
	return lo.Without(domain.AllLevels, level)
}

func (s *SyncService) syncMetadata(ctx context.Context, accountID string) error {
	meta, err := s.apiClient.FetchAccount(ctx, accountID)
	if err != nil {
		return err
	}
	meta.ID = accountID
	return s.accounts.SaveMetadata(ctx, *meta)
}

func (s *SyncService) syncStructure(ctx context.Context, accountID string) (*domain.Structure, error) {
	structure, err := s.apiClient.FetchStructure(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := s.structures.SaveStructure(ctx, accountID, structure); err != nil {
		return nil, fmt.Errorf("save structure: %w", err)
	}
	return structure, nil
}

// fetchFineGrained tries ad level, then campaign level. Every page is fetched
// before anything is written.
func (s *SyncService) fetchFineGrained(ctx context.Context, accountID string, window domain.DateRange, log *logrus.Entry) (domain.InsightLevel, []domain.RawInsight, error) {
	var errs []error
	for _, level := range fineLevels {
		rows, err := s.fetchAll(ctx, accountID, level, window)
		if err == nil {
			return level, rows, nil
		}
		log.Warnf("Fetching %s-level insights failed: %v", level, err)
		errs = append(errs, fmt.Errorf("%s level: %w", level, err))
		if ctx.Err() != nil {
			break
		}
	}
	return "", nil, errors.Join(errs...)
}

// fetchAll follows the pagination cursor until exhausted.
func (s *SyncService) fetchAll(ctx context.Context, accountID string, level domain.InsightLevel, window domain.DateRange) ([]domain.RawInsight, error) {
	var rows []domain.RawInsight
	req := domain.InsightsRequest{
		AccountID: accountID,
		Level:     level,
		Window:    window,
		Fields:    domain.InsightFields,
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := s.apiClient.FetchInsightsPage(ctx, req)
		if err != nil {
			return nil, err
		}
		rows = append(rows, page.Rows...)
		if page.Next == "" || page.Next == req.After {
			return rows, nil
		}
		req.After = page.Next
	}
}

// withoutCoveredDates drops account-level records for dates that already
// hold finer-grained rows, so the same spend is never booked twice.
func (s *SyncService) withoutCoveredDates(ctx context.Context, accountID string, window domain.DateRange, records []domain.FactRecord) ([]domain.FactRecord, error) {
	finer, err := s.facts.List(ctx, domain.FactFilter{
		Range:      window,
		AccountIDs: []string{accountID},
		Levels:     fineLevels,
	})
	if err != nil {
		return nil, err
	}
	covered := lo.SliceToMap(finer, func(r domain.FactRecord) (string, bool) { return r.Date, true })
	return lo.Filter(records, func(r domain.FactRecord, _ int) bool { return !covered[r.Date] }), nil
}

// backfillRates recomputes derived rates on stored rows in the window and
// rewrites only the rows that changed.
func (s *SyncService) backfillRates(ctx context.Context, accountID string, window domain.DateRange) (int, error) {
	stored, err := s.facts.List(ctx, domain.FactFilter{Range: window, AccountIDs: []string{accountID}})
	if err != nil {
		return 0, err
	}
	var changed []domain.FactRecord
	for i := range stored {
		if ApplyDerivedRates(&stored[i]) {
			changed = append(changed, stored[i])
		}
	}
	if len(changed) == 0 {
		return 0, nil
	}
	if err := s.facts.Upsert(ctx, changed); err != nil {
		return 0, err
	}
	return len(changed), nil
}

func (s *SyncService) setStatus(ctx context.Context, accountID string, status domain.SyncStatus, syncErr string) {
	// Status is recorded even when the run was interrupted.
	ctx = context.WithoutCancel(ctx)
	if err := s.accounts.UpdateSyncStatus(ctx, accountID, status, syncErr, s.now().UTC()); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("account_id", accountID).Warn("Failed to record account sync status")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
