package usecase

import (
	"cmp"
	"math"
	"slices"

	"adinsights/internal/domain"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// TrendThreshold is the percent change magnitude at which a metric counts as
// moving up or down. The boundary is inclusive.
const TrendThreshold = 5.0

const trendEpsilon = 1e-9

// Summarize sums counts and money over records and derives rates from the
// sums. Rates are never averaged across records.
func Summarize(records []domain.FactRecord) domain.PeriodMetrics {
	var t domain.Totals
	spend, purchaseValue, conversionValue := decimal.Zero, decimal.Zero, decimal.Zero

	for i := range records {
		r := &records[i]
		t.Impressions += r.Impressions
		t.Clicks += r.Clicks
		t.LinkClicks += r.LinkClicks
		t.Reach += r.Reach
		t.Purchases += domain.Int64Value(r.Purchases)
		t.Leads += domain.Int64Value(r.Leads)
		t.Registrations += domain.Int64Value(r.Registrations)
		t.AddToCarts += domain.Int64Value(r.AddToCarts)
		t.Conversions += domain.Int64Value(r.Conversions)
		t.VideoPlays += domain.Int64Value(r.VideoPlays)
		t.VideoViews += domain.Int64Value(r.VideoViews)

		spend = spend.Add(decimal.NewFromFloat(r.Spend))
		purchaseValue = purchaseValue.Add(decimal.NewFromFloat(domain.Float64Value(r.PurchaseValue)))
		conversionValue = conversionValue.Add(decimal.NewFromFloat(domain.Float64Value(r.ConversionValue)))
	}

	t.Spend = spend.InexactFloat64()
	t.PurchaseValue = purchaseValue.InexactFloat64()
	t.ConversionValue = conversionValue.InexactFloat64()

	return domain.PeriodMetrics{Totals: t, Rates: RatesFromTotals(t)}
}

// PercentChange is the relative change from previous to current in percent.
// A rise from zero reads as +100%; zero to zero is no change.
func PercentChange(current, previous float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		if current < 0 {
			return -100
		}
		return 0
	}
	return (current - previous) * 100 / math.Abs(previous)
}

// ClassifyTrend maps a percent change to a direction.
func ClassifyTrend(percent float64) domain.TrendDirection {
	if math.Abs(percent) < TrendThreshold-trendEpsilon {
		return domain.TrendStable
	}
	if percent > 0 {
		return domain.TrendUp
	}
	return domain.TrendDown
}

// ChangeOf compares one metric across two periods.
func ChangeOf(m domain.Metric, current, previous domain.PeriodMetrics) (domain.MetricChange, error) {
	cur, err := current.Value(m)
	if err != nil {
		return domain.MetricChange{}, err
	}
	prev, err := previous.Value(m)
	if err != nil {
		return domain.MetricChange{}, err
	}
	pct := PercentChange(cur, prev)
	return domain.MetricChange{
		Metric:    m,
		Current:   cur,
		Previous:  prev,
		Absolute:  cur - prev,
		Percent:   pct,
		Direction: ClassifyTrend(pct),
	}, nil
}

// Compare builds a trend comparison. primary selects the headline metric.
func Compare(current, previous []domain.FactRecord, currentRange, previousRange domain.DateRange, primary domain.Metric) (*domain.TrendComparison, error) {
	if currentRange.Days() != previousRange.Days() {
		return nil, domain.ErrRangeMismatch
	}
	if primary == "" {
		primary = domain.MetricSpend
	}

	cur, prev := Summarize(current), Summarize(previous)
	head, err := ChangeOf(primary, cur, prev)
	if err != nil {
		return nil, err
	}

	changes := make([]domain.MetricChange, 0, len(domain.TrendMetrics))
	for _, m := range domain.TrendMetrics {
		c, err := ChangeOf(m, cur, prev)
		if err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}

	return &domain.TrendComparison{
		Current:       domain.ViewOf(currentRange),
		Comparison:    domain.ViewOf(previousRange),
		PrimaryMetric: primary,
		Direction:     head.Direction,
		Primary:       head,
		Changes:       changes,
		CurrentValues: cur,
		PriorValues:   prev,
	}, nil
}

type groupKey struct {
	id, name string
}

func keyOf(r *domain.FactRecord, d domain.Dimension) groupKey {
	switch d {
	case domain.DimensionAccount:
		return groupKey{r.AccountID, r.AccountName}
	case domain.DimensionCampaign:
		return groupKey{r.CampaignID, r.CampaignName}
	case domain.DimensionAdSet, domain.DimensionAudience:
		return groupKey{r.AdSetID, r.AdSetName}
	default:
		return groupKey{r.AdID, r.AdName}
	}
}

// Breakdown groups records by dimension and ranks the groups by metric,
// highest first, ties broken by identifier. Shares are against the total of
// every group, before limit is applied. limit <= 0 returns all groups.
func Breakdown(records []domain.FactRecord, d domain.Dimension, m domain.Metric, limit int) ([]domain.BreakdownRow, error) {
	if m == "" {
		m = domain.MetricSpend
	}
	if _, err := (domain.PeriodMetrics{}).Value(m); err != nil {
		return nil, err
	}

	groups := make(map[string][]domain.FactRecord)
	names := make(map[string]string)
	for i := range records {
		k := keyOf(&records[i], d)
		groups[k.id] = append(groups[k.id], records[i])
		if names[k.id] == "" {
			names[k.id] = k.name
		}
	}

	total := Summarize(records).Totals
	rows := make([]domain.BreakdownRow, 0, len(groups))
	for _, id := range lo.Keys(groups) {
		pm := Summarize(groups[id])
		rank, _ := pm.Value(m)
		rows = append(rows, domain.BreakdownRow{
			Dimension:       d,
			ID:              id,
			Name:            names[id],
			Metrics:         pm,
			RankValue:       rank,
			SpendShare:      share(pm.Totals.Spend, total.Spend),
			ImpressionShare: share(float64(pm.Totals.Impressions), float64(total.Impressions)),
		})
	}

	slices.SortFunc(rows, func(a, b domain.BreakdownRow) int {
		if c := cmp.Compare(b.RankValue, a.RankValue); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func share(part, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return part / total * 100
}

// DailySeries returns one point per day in r, zero-valued on days without
// records.
func DailySeries(records []domain.FactRecord, r domain.DateRange) []domain.DailyPoint {
	byDate := lo.GroupBy(records, func(rec domain.FactRecord) string { return rec.Date })
	return lo.Map(r.Dates(), func(date string, _ int) domain.DailyPoint {
		return domain.DailyPoint{Date: date, Metrics: Summarize(byDate[date])}
	})
}
