package domain

import "fmt"

// Metric selects a total or rate for ranking and trend classification.
type Metric string

const (
	MetricSpend         Metric = "spend"
	MetricImpressions   Metric = "impressions"
	MetricClicks        Metric = "clicks"
	MetricLinkClicks    Metric = "link_clicks"
	MetricReach         Metric = "reach"
	MetricPurchases     Metric = "purchases"
	MetricPurchaseValue Metric = "purchase_value"
	MetricLeads         Metric = "leads"
	MetricRegistrations Metric = "registrations"
	MetricVideoViews    Metric = "video_views"
	MetricCTR           Metric = "ctr"
	MetricCPC           Metric = "cpc"
	MetricCPM           Metric = "cpm"
	MetricPurchaseCPA   Metric = "purchase_cpa"
	MetricPurchaseROAS  Metric = "purchase_roas"
	MetricROAS          Metric = "roas"
)

// TrendMetrics are the metrics reported in a period-over-period comparison.
var TrendMetrics = []Metric{
	MetricSpend, MetricImpressions, MetricClicks, MetricLinkClicks, MetricReach,
	MetricPurchases, MetricPurchaseValue, MetricLeads, MetricRegistrations, MetricVideoViews,
	MetricCTR, MetricCPC, MetricCPM, MetricPurchaseCPA, MetricPurchaseROAS, MetricROAS,
}

// ParseMetric validates a metric selector.
func ParseMetric(s string) (Metric, error) {
	for _, m := range TrendMetrics {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
}

// Dimension groups fact records for a breakdown.
type Dimension string

const (
	DimensionAccount  Dimension = "account"
	DimensionCampaign Dimension = "campaign"
	DimensionAdSet    Dimension = "adset"
	// DimensionAudience is the ad set, which carries the audience targeting.
	DimensionAudience Dimension = "audience"
	DimensionAd       Dimension = "ad"
)

// ParseDimension validates a dimension selector.
func ParseDimension(s string) (Dimension, error) {
	switch d := Dimension(s); d {
	case DimensionAccount, DimensionCampaign, DimensionAdSet, DimensionAudience, DimensionAd:
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDimension, s)
}

// Totals are summed counts and money over a set of fact records.
type Totals struct {
	Impressions     int64   `json:"impressions"`
	Clicks          int64   `json:"clicks"`
	LinkClicks      int64   `json:"link_clicks"`
	Reach           int64   `json:"reach"`
	Spend           float64 `json:"spend"`
	Purchases       int64   `json:"purchases"`
	PurchaseValue   float64 `json:"purchase_value"`
	Leads           int64   `json:"leads"`
	Registrations   int64   `json:"registrations"`
	AddToCarts      int64   `json:"add_to_carts"`
	Conversions     int64   `json:"conversions"`
	ConversionValue float64 `json:"conversion_value"`
	VideoPlays      int64   `json:"video_plays"`
	VideoViews      int64   `json:"video_views"`
}

// Rates are derived from Totals, never averaged across records.
type Rates struct {
	CTR          float64  `json:"ctr"`
	CPC          float64  `json:"cpc"`
	CPM          float64  `json:"cpm"`
	Frequency    float64  `json:"frequency"`
	PurchaseCPA  *float64 `json:"purchase_cpa"`
	PurchaseROAS *float64 `json:"purchase_roas"`
	ROAS         float64  `json:"roas"`
}

type PeriodMetrics struct {
	Totals Totals `json:"totals"`
	Rates  Rates  `json:"rates"`
}

// Value returns the selected metric. Undefined rates read as 0.
func (p PeriodMetrics) Value(m Metric) (float64, error) {
	t, r := p.Totals, p.Rates
	switch m {
	case MetricSpend:
		return t.Spend, nil
	case MetricImpressions:
		return float64(t.Impressions), nil
	case MetricClicks:
		return float64(t.Clicks), nil
	case MetricLinkClicks:
		return float64(t.LinkClicks), nil
	case MetricReach:
		return float64(t.Reach), nil
	case MetricPurchases:
		return float64(t.Purchases), nil
	case MetricPurchaseValue:
		return t.PurchaseValue, nil
	case MetricLeads:
		return float64(t.Leads), nil
	case MetricRegistrations:
		return float64(t.Registrations), nil
	case MetricVideoViews:
		return float64(t.VideoViews), nil
	case MetricCTR:
		return r.CTR, nil
	case MetricCPC:
		return r.CPC, nil
	case MetricCPM:
		return r.CPM, nil
	case MetricPurchaseCPA:
		return Float64Value(r.PurchaseCPA), nil
	case MetricPurchaseROAS:
		return Float64Value(r.PurchaseROAS), nil
	case MetricROAS:
		return r.ROAS, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMetric, m)
}

// RangeView is the JSON form of a DateRange.
type RangeView struct {
	From string `json:"from"`
	To   string `json:"to"`
	Days int    `json:"days"`
}

func ViewOf(r DateRange) RangeView {
	return RangeView{From: r.StartDate(), To: r.EndDate(), Days: r.Days()}
}

// PeriodSummary is the period-total view. It is always well formed, with
// zero totals when no records match.
type PeriodSummary struct {
	Period          RangeView     `json:"period"`
	Metrics         PeriodMetrics `json:"metrics"`
	RecordCount     int           `json:"record_count"`
	DaysWithData    int           `json:"days_with_data"`
	UniqueCampaigns int           `json:"unique_campaigns"`
	UniqueAds       int           `json:"unique_ads"`
}

type TrendDirection string

const (
	TrendUp     TrendDirection = "up"
	TrendDown   TrendDirection = "down"
	TrendStable TrendDirection = "stable"
)

type MetricChange struct {
	Metric    Metric         `json:"metric"`
	Current   float64        `json:"current"`
	Previous  float64        `json:"previous"`
	Absolute  float64        `json:"absolute_change"`
	Percent   float64        `json:"percent_change"`
	Direction TrendDirection `json:"direction"`
}

// TrendComparison compares a period with an equal-length earlier period.
type TrendComparison struct {
	Current       RangeView      `json:"current_period"`
	Comparison    RangeView      `json:"comparison_period"`
	PrimaryMetric Metric         `json:"primary_metric"`
	Direction     TrendDirection `json:"direction"`
	Primary       MetricChange   `json:"primary"`
	Changes       []MetricChange `json:"changes"`
	CurrentValues PeriodMetrics  `json:"current_metrics"`
	PriorValues   PeriodMetrics  `json:"comparison_metrics"`
}

// BreakdownRow is one group of a dimensional breakdown.
type BreakdownRow struct {
	Dimension       Dimension     `json:"dimension"`
	ID              string        `json:"id"`
	Name            string        `json:"name,omitempty"`
	Metrics         PeriodMetrics `json:"metrics"`
	RankValue       float64       `json:"rank_value"`
	SpendShare      float64       `json:"spend_share_pct"`
	ImpressionShare float64       `json:"impression_share_pct"`
}

type DailyPoint struct {
	Date    string        `json:"date"`
	Metrics PeriodMetrics `json:"metrics"`
}

// Dashboard bundles the views a dashboard page renders.
type Dashboard struct {
	Summary      *PeriodSummary   `json:"summary"`
	Trend        *TrendComparison `json:"trend"`
	TopCampaigns []BreakdownRow   `json:"top_campaigns"`
	Daily        []DailyPoint     `json:"daily"`
}
