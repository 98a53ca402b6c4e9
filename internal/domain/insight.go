package domain

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// InsightLevel is the entity granularity an insight row was reported at.
type InsightLevel string

const (
	LevelAd       InsightLevel = "ad"
	LevelCampaign InsightLevel = "campaign"
	LevelAccount  InsightLevel = "account"
)

// Finer reports whether l is a finer granularity than other.
func (l InsightLevel) Finer(other InsightLevel) bool {
	return l.rank() < other.rank()
}

func (l InsightLevel) rank() int {
	switch l {
	case LevelAd:
		return 0
	case LevelCampaign:
		return 1
	default:
		return 2
	}
}

// AllLevels lists every granularity, finest first.
var AllLevels = []InsightLevel{LevelAd, LevelCampaign, LevelAccount}

// RawInsight is one upstream insight row as delivered on the wire.
type RawInsight struct {
	AccountID    string `json:"account_id"`
	AccountName  string `json:"account_name"`
	CampaignID   string `json:"campaign_id"`
	CampaignName string `json:"campaign_name"`
	AdSetID      string `json:"adset_id"`
	AdSetName    string `json:"adset_name"`
	AdID         string `json:"ad_id"`
	AdName       string `json:"ad_name"`
	DateStart    string `json:"date_start"`
	DateStop     string `json:"date_stop"`

	Impressions      Numeric `json:"impressions"`
	Clicks           Numeric `json:"clicks"`
	InlineLinkClicks Numeric `json:"inline_link_clicks"`
	Spend            Numeric `json:"spend"`
	Reach            Numeric `json:"reach"`
	Frequency        Numeric `json:"frequency"`

	Actions           ActionList `json:"actions"`
	ActionValues      ActionList `json:"action_values"`
	CostPerActionType ActionList `json:"cost_per_action_type"`

	VideoViews          ActionList `json:"video_views"`
	VideoPlayActions    ActionList `json:"video_play_actions"`
	Video3SecWatched    ActionList `json:"video_3_sec_watched_actions"`
	Video15SecWatched   ActionList `json:"video_15_sec_watched_actions"`
	Video30SecWatched   ActionList `json:"video_30_sec_watched_actions"`
	VideoP25Watched     ActionList `json:"video_p25_watched_actions"`
	VideoP50Watched     ActionList `json:"video_p50_watched_actions"`
	VideoP75Watched     ActionList `json:"video_p75_watched_actions"`
	VideoP95Watched     ActionList `json:"video_p95_watched_actions"`
	VideoP100Watched    ActionList `json:"video_p100_watched_actions"`
	VideoAvgTimeWatched ActionList `json:"video_avg_time_watched_actions"`
	VideoThruplay       ActionList `json:"video_thruplay_watched_actions"`
}

// InsightFields is the field list requested from the insights endpoint.
var InsightFields = []string{
	"account_id", "account_name", "campaign_id", "campaign_name",
	"adset_id", "adset_name", "ad_id", "ad_name",
	"impressions", "clicks", "inline_link_clicks", "spend", "reach", "frequency",
	"actions", "action_values", "cost_per_action_type",
	"video_play_actions", "video_3_sec_watched_actions", "video_15_sec_watched_actions",
	"video_30_sec_watched_actions", "video_p25_watched_actions", "video_p50_watched_actions",
	"video_p75_watched_actions", "video_p95_watched_actions", "video_p100_watched_actions",
	"video_avg_time_watched_actions", "video_thruplay_watched_actions",
}

// DateRange is an inclusive range of calendar days in UTC.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange truncates both bounds to UTC days.
func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: Day(start), End: Day(end)}
	if r.End.Before(r.Start) {
		return DateRange{}, fmt.Errorf("%w: %s is before %s", ErrInvalidRange, r.EndDate(), r.StartDate())
	}
	return r, nil
}

// ParseDateRange parses two YYYY-MM-DD bounds.
func ParseDateRange(from, to string) (DateRange, error) {
	start, err := time.Parse(DateLayout, from)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: from %q", ErrInvalidRange, from)
	}
	end, err := time.Parse(DateLayout, to)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: to %q", ErrInvalidRange, to)
	}
	return NewDateRange(start, end)
}

// LastNDays returns the n-day range ending on end.
func LastNDays(end time.Time, n int) DateRange {
	if n < 1 {
		n = 1
	}
	end = Day(end)
	return DateRange{Start: end.AddDate(0, 0, -(n - 1)), End: end}
}

// Day truncates t to midnight UTC of its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Days returns the number of calendar days in the range.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Previous returns the equal-length range immediately before r.
func (r DateRange) Previous() DateRange {
	n := r.Days()
	return DateRange{Start: r.Start.AddDate(0, 0, -n), End: r.Start.AddDate(0, 0, -1)}
}

// Contains reports whether the YYYY-MM-DD date falls inside the range.
func (r DateRange) Contains(date string) bool {
	return date >= r.StartDate() && date <= r.EndDate()
}

// Dates lists every day in the range as YYYY-MM-DD.
func (r DateRange) Dates() []string {
	out := make([]string, 0, r.Days())
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(DateLayout))
	}
	return out
}

func (r DateRange) StartDate() string { return r.Start.Format(DateLayout) }
func (r DateRange) EndDate() string   { return r.End.Format(DateLayout) }

func (r DateRange) String() string {
	return r.StartDate() + ".." + r.EndDate()
}

// InsightsRequest is one page request against the insights endpoint.
type InsightsRequest struct {
	AccountID string
	Level     InsightLevel
	Window    DateRange
	Fields    []string
	After     string
}

// InsightsPage is one page of insight rows. Next is empty on the last page.
type InsightsPage struct {
	Rows []RawInsight
	Next string
}
