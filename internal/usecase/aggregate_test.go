package usecase

import (
	"testing"

	"adinsights/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRange(t *testing.T, from, to string) domain.DateRange {
	t.Helper()
	r, err := domain.ParseDateRange(from, to)
	require.NoError(t, err)
	return r
}

func withCampaign(rec domain.FactRecord, id, name string) domain.FactRecord {
	rec.CampaignID = id
	rec.CampaignName = name
	return rec
}

func TestSummarize_RatesFromSums(t *testing.T) {
	records := []domain.FactRecord{
		fact("a1", "2024-03-01", 1000, 10, 10),
		fact("a2", "2024-03-01", 100, 10, 10),
	}

	pm := Summarize(records)

	assert.Equal(t, int64(1100), pm.Totals.Impressions)
	assert.Equal(t, int64(20), pm.Totals.LinkClicks)
	assert.Equal(t, 20.0, pm.Totals.Spend)

	// 20 / 1100, not the 5.5% average of the per-record 1% and 10%.
	assert.InDelta(t, 1.8181, pm.Rates.CTR, 1e-3)
	assert.InDelta(t, 1.0, pm.Rates.CPC, 1e-9)
	assert.InDelta(t, 20.0/1100*1000, pm.Rates.CPM, 1e-9)
}

func TestSummarize_MoneyIsSummedExactly(t *testing.T) {
	records := []domain.FactRecord{
		fact("a1", "2024-03-01", 10, 1, 0.1),
		fact("a2", "2024-03-01", 10, 1, 0.2),
	}

	assert.Equal(t, 0.3, Summarize(records).Totals.Spend)
}

func TestSummarize_Outcomes(t *testing.T) {
	r1 := fact("a1", "2024-03-01", 1000, 10, 50)
	r1.Purchases = domain.Int64Ptr(2)
	r1.PurchaseValue = domain.Float64Ptr(150)
	r1.ConversionValue = domain.Float64Ptr(150)
	r2 := fact("a2", "2024-03-01", 1000, 10, 50)
	r2.Leads = domain.Int64Ptr(4)
	r2.ConversionValue = domain.Float64Ptr(40)

	pm := Summarize([]domain.FactRecord{r1, r2})

	assert.Equal(t, int64(2), pm.Totals.Purchases)
	assert.Equal(t, int64(4), pm.Totals.Leads)
	assert.Equal(t, 190.0, pm.Totals.ConversionValue)
	require.NotNil(t, pm.Rates.PurchaseCPA)
	assert.InDelta(t, 50.0, *pm.Rates.PurchaseCPA, 1e-9)
	require.NotNil(t, pm.Rates.PurchaseROAS)
	assert.InDelta(t, 1.5, *pm.Rates.PurchaseROAS, 1e-9)
	assert.InDelta(t, 1.5, pm.Rates.ROAS, 1e-9)
}

func TestSummarize_Empty(t *testing.T) {
	pm := Summarize(nil)

	assert.Equal(t, domain.Totals{}, pm.Totals)
	assert.Equal(t, 0.0, pm.Rates.CTR)
	assert.Nil(t, pm.Rates.PurchaseCPA)
	assert.Nil(t, pm.Rates.PurchaseROAS)
}

func TestPercentChange(t *testing.T) {
	assert.InDelta(t, 5.0, PercentChange(105, 100), 1e-9)
	assert.InDelta(t, -50.0, PercentChange(50, 100), 1e-9)
	assert.InDelta(t, 100.0, PercentChange(10, 0), 1e-9)
	assert.InDelta(t, -100.0, PercentChange(0, 10), 1e-9)
	assert.Equal(t, 0.0, PercentChange(0, 0))
	assert.InDelta(t, 50.0, PercentChange(-5, -10), 1e-9)
}

func TestClassifyTrend(t *testing.T) {
	tests := []struct {
		pct  float64
		want domain.TrendDirection
	}{
		{5, domain.TrendUp},
		{PercentChange(1.05, 1), domain.TrendUp},
		{4.99, domain.TrendStable},
		{0, domain.TrendStable},
		{-4.99, domain.TrendStable},
		{-5, domain.TrendDown},
		{100, domain.TrendUp},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyTrend(tt.pct), "pct %v", tt.pct)
	}
}

func TestCompare(t *testing.T) {
	cur := mustRange(t, "2024-03-08", "2024-03-14")
	prev := cur.Previous()

	current := []domain.FactRecord{fact("a1", "2024-03-08", 1000, 10, 105)}
	previous := []domain.FactRecord{fact("a1", "2024-03-01", 1000, 10, 100)}

	trend, err := Compare(current, previous, cur, prev, "")
	require.NoError(t, err)

	assert.Equal(t, domain.MetricSpend, trend.PrimaryMetric)
	assert.Equal(t, domain.TrendUp, trend.Direction)
	assert.InDelta(t, 5.0, trend.Primary.Percent, 1e-9)
	assert.InDelta(t, 5.0, trend.Primary.Absolute, 1e-9)
	assert.Len(t, trend.Changes, len(domain.TrendMetrics))
	assert.Equal(t, "2024-03-01", trend.Comparison.From)
	assert.Equal(t, 7, trend.Current.Days)
}

func TestCompare_ExplicitMetric(t *testing.T) {
	cur := mustRange(t, "2024-03-08", "2024-03-14")

	current := []domain.FactRecord{fact("a1", "2024-03-08", 1000, 10, 100)}
	previous := []domain.FactRecord{fact("a1", "2024-03-01", 1000, 20, 100)}

	trend, err := Compare(current, previous, cur, cur.Previous(), domain.MetricCTR)
	require.NoError(t, err)

	assert.Equal(t, domain.TrendDown, trend.Direction)
	assert.InDelta(t, -50.0, trend.Primary.Percent, 1e-9)
}

func TestCompare_EmptyPeriods(t *testing.T) {
	cur := mustRange(t, "2024-03-08", "2024-03-14")

	trend, err := Compare(nil, nil, cur, cur.Previous(), domain.MetricSpend)
	require.NoError(t, err)

	assert.Equal(t, domain.TrendStable, trend.Direction)
	assert.Equal(t, 0.0, trend.Primary.Percent)
}

func TestCompare_RangeMismatch(t *testing.T) {
	cur := mustRange(t, "2024-03-08", "2024-03-14")
	prev := mustRange(t, "2024-03-01", "2024-03-03")

	_, err := Compare(nil, nil, cur, prev, "")
	assert.ErrorIs(t, err, domain.ErrRangeMismatch)
}

func TestCompare_UnknownMetric(t *testing.T) {
	cur := mustRange(t, "2024-03-08", "2024-03-14")

	_, err := Compare(nil, nil, cur, cur.Previous(), "bogus")
	assert.ErrorIs(t, err, domain.ErrUnknownMetric)
}

func TestBreakdown_RankAndShares(t *testing.T) {
	records := []domain.FactRecord{
		withCampaign(fact("a1", "2024-03-01", 300, 3, 30), "c1", "One"),
		withCampaign(fact("a2", "2024-03-01", 500, 5, 50), "c2", "Two"),
		withCampaign(fact("a3", "2024-03-01", 200, 2, 20), "c3", "Three"),
	}

	rows, err := Breakdown(records, domain.DimensionCampaign, domain.MetricSpend, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "c2", rows[0].ID)
	assert.Equal(t, "Two", rows[0].Name)
	assert.InDelta(t, 50.0, rows[0].SpendShare, 1e-9)
	assert.InDelta(t, 50.0, rows[0].ImpressionShare, 1e-9)
	assert.Equal(t, "c1", rows[1].ID)
	assert.InDelta(t, 30.0, rows[1].SpendShare, 1e-9, "shares use the total of all groups")
}

func TestBreakdown_GroupsRecords(t *testing.T) {
	records := []domain.FactRecord{
		withCampaign(fact("a1", "2024-03-01", 100, 1, 10), "c1", "One"),
		withCampaign(fact("a2", "2024-03-02", 100, 1, 15), "c1", "One"),
		withCampaign(fact("a3", "2024-03-01", 100, 1, 20), "c2", "Two"),
	}

	rows, err := Breakdown(records, domain.DimensionCampaign, "", 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "c1", rows[0].ID)
	assert.Equal(t, 25.0, rows[0].RankValue)
	assert.Equal(t, int64(200), rows[0].Metrics.Totals.Impressions)
}

func TestBreakdown_TiesBreakByID(t *testing.T) {
	records := []domain.FactRecord{
		withCampaign(fact("a1", "2024-03-01", 100, 1, 10), "c5", ""),
		withCampaign(fact("a2", "2024-03-01", 100, 1, 10), "c4", ""),
	}

	rows, err := Breakdown(records, domain.DimensionCampaign, domain.MetricSpend, 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"c4", "c5"}, []string{rows[0].ID, rows[1].ID})
}

func TestBreakdown_AudienceIsAdSet(t *testing.T) {
	records := []domain.FactRecord{fact("a1", "2024-03-01", 100, 1, 10)}

	rows, err := Breakdown(records, domain.DimensionAudience, domain.MetricSpend, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "s-a1", rows[0].ID)
	assert.Equal(t, domain.DimensionAudience, rows[0].Dimension)
}

func TestBreakdown_EmptyAndErrors(t *testing.T) {
	rows, err := Breakdown(nil, domain.DimensionAd, domain.MetricSpend, 5)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)

	_, err = Breakdown(nil, domain.DimensionAd, "bogus", 5)
	assert.ErrorIs(t, err, domain.ErrUnknownMetric)
}

func TestBreakdown_ZeroSpendShares(t *testing.T) {
	records := []domain.FactRecord{fact("a1", "2024-03-01", 0, 0, 0)}

	rows, err := Breakdown(records, domain.DimensionAd, domain.MetricSpend, 0)
	require.NoError(t, err)

	assert.Equal(t, 0.0, rows[0].SpendShare)
	assert.Equal(t, 0.0, rows[0].ImpressionShare)
}

func TestDailySeries_ZeroFills(t *testing.T) {
	r := mustRange(t, "2024-03-01", "2024-03-03")
	records := []domain.FactRecord{
		fact("a1", "2024-03-01", 100, 1, 10),
		fact("a2", "2024-03-01", 100, 1, 5),
		fact("a1", "2024-03-03", 100, 1, 7),
	}

	points := DailySeries(records, r)

	require.Len(t, points, 3)
	assert.Equal(t, "2024-03-01", points[0].Date)
	assert.Equal(t, 15.0, points[0].Metrics.Totals.Spend)
	assert.Equal(t, "2024-03-02", points[1].Date)
	assert.Equal(t, domain.Totals{}, points[1].Metrics.Totals)
	assert.Equal(t, 7.0, points[2].Metrics.Totals.Spend)
}
