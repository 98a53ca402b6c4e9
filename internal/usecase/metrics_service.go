package usecase

import (
	"context"
	"fmt"

	"adinsights/internal/domain"
	"adinsights/pkg/logger"
	"adinsights/pkg/metrics"

	"github.com/samber/lo"
)

const dashboardTopCampaigns = 5

// MetricsQuery selects the fact records an aggregation reads and how the
// result is shaped.
type MetricsQuery struct {
	Range domain.DateRange
	// Compare is the comparison range for trends. Nil means the
	// equal-length range immediately before Range.
	Compare    *domain.DateRange
	AccountIDs []string
	CampaignID string
	AdSetID    string
	Metric     domain.Metric
	Dimension  domain.Dimension
	Limit      int
}

func (q MetricsQuery) filter(r domain.DateRange) domain.FactFilter {
	return domain.FactFilter{
		Range:      r,
		AccountIDs: q.AccountIDs,
		CampaignID: q.CampaignID,
		AdSetID:    q.AdSetID,
	}
}

// MetricsService serves period summaries, trends and breakdowns from stored
// fact records.
type MetricsService struct {
	facts   domain.FactRepository
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewMetricsService(
	facts domain.FactRepository,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *MetricsService {
	return &MetricsService{
		facts:   facts,
		logger:  logger,
		metrics: metrics,
	}
}

func (s *MetricsService) load(ctx context.Context, q MetricsQuery, r domain.DateRange) ([]domain.FactRecord, error) {
	records, err := s.facts.List(ctx, q.filter(r))
	if err != nil {
		return nil, fmt.Errorf("failed to load fact records for %s: %w", r, err)
	}
	return records, nil
}

// GetSummary returns period totals. No matching records yields a zero-valued
// summary, not an error.
func (s *MetricsService) GetSummary(ctx context.Context, q MetricsQuery) (*domain.PeriodSummary, error) {
	log := s.logger.WithContext(ctx)
	log.WithFields(map[string]any{
		"from":        q.Range.StartDate(),
		"to":          q.Range.EndDate(),
		"accounts":    q.AccountIDs,
		"campaign_id": q.CampaignID,
	}).Info("Getting period summary")

	records, err := s.load(ctx, q, q.Range)
	if err != nil {
		log.WithError(err).Error("Failed to get period summary")
		return nil, err
	}

	dates := lo.Map(records, func(r domain.FactRecord, _ int) string { return r.Date })
	campaigns := lo.FilterMap(records, func(r domain.FactRecord, _ int) (string, bool) {
		return r.CampaignID, r.Level != domain.LevelAccount
	})
	ads := lo.FilterMap(records, func(r domain.FactRecord, _ int) (string, bool) {
		return r.AdID, r.Level == domain.LevelAd
	})

	summary := &domain.PeriodSummary{
		Period:          domain.ViewOf(q.Range),
		Metrics:         Summarize(records),
		RecordCount:     len(records),
		DaysWithData:    len(lo.Uniq(dates)),
		UniqueCampaigns: len(lo.Uniq(campaigns)),
		UniqueAds:       len(lo.Uniq(ads)),
	}

	s.metrics.RecordAggregationQuery("summary")
	log.WithField("records", len(records)).Info("Period summary generated")
	return summary, nil
}

// CompareTrend compares q.Range with q.Compare, or with the preceding range
// of equal length when q.Compare is nil.
func (s *MetricsService) CompareTrend(ctx context.Context, q MetricsQuery) (*domain.TrendComparison, error) {
	log := s.logger.WithContext(ctx)

	prevRange := q.Range.Previous()
	if q.Compare != nil {
		prevRange = *q.Compare
	}
	if prevRange.Days() != q.Range.Days() {
		return nil, fmt.Errorf("%w: %d days vs %d days", domain.ErrRangeMismatch, q.Range.Days(), prevRange.Days())
	}

	log.WithFields(map[string]any{
		"current":    q.Range.String(),
		"comparison": prevRange.String(),
		"metric":     q.Metric,
	}).Info("Comparing periods")

	current, err := s.load(ctx, q, q.Range)
	if err != nil {
		return nil, err
	}
	previous, err := s.load(ctx, q, prevRange)
	if err != nil {
		return nil, err
	}

	trend, err := Compare(current, previous, q.Range, prevRange, q.Metric)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAggregationQuery("trend")
	log.WithFields(map[string]any{
		"primary_metric": trend.PrimaryMetric,
		"direction":      trend.Direction,
		"percent_change": trend.Primary.Percent,
	}).Info("Trend comparison generated")
	return trend, nil
}

// GetBreakdown ranks q.Dimension groups by q.Metric. The result is never nil.
func (s *MetricsService) GetBreakdown(ctx context.Context, q MetricsQuery) ([]domain.BreakdownRow, error) {
	log := s.logger.WithContext(ctx)
	dim := q.Dimension
	if dim == "" {
		dim = domain.DimensionCampaign
	}

	records, err := s.load(ctx, q, q.Range)
	if err != nil {
		return nil, err
	}

	rows, err := Breakdown(records, dim, q.Metric, q.Limit)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAggregationQuery("breakdown")
	log.WithFields(map[string]any{
		"dimension": dim,
		"metric":    q.Metric,
		"groups":    len(rows),
	}).Info("Breakdown generated")
	return rows, nil
}

// GetDailySeries returns one zero-filled point per day of q.Range.
func (s *MetricsService) GetDailySeries(ctx context.Context, q MetricsQuery) ([]domain.DailyPoint, error) {
	records, err := s.load(ctx, q, q.Range)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordAggregationQuery("daily")
	return DailySeries(records, q.Range), nil
}

// GetDashboard bundles summary, trend, top campaigns and the daily series.
func (s *MetricsService) GetDashboard(ctx context.Context, q MetricsQuery) (*domain.Dashboard, error) {
	summary, err := s.GetSummary(ctx, q)
	if err != nil {
		return nil, err
	}
	trend, err := s.CompareTrend(ctx, q)
	if err != nil {
		return nil, err
	}

	top := q
	top.Dimension = domain.DimensionCampaign
	if top.Limit <= 0 {
		top.Limit = dashboardTopCampaigns
	}
	campaigns, err := s.GetBreakdown(ctx, top)
	if err != nil {
		return nil, err
	}

	daily, err := s.GetDailySeries(ctx, q)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAggregationQuery("dashboard")
	return &domain.Dashboard{
		Summary:      summary,
		Trend:        trend,
		TopCampaigns: campaigns,
		Daily:        daily,
	}, nil
}
