package domain

import (
	"time"

	"github.com/samber/lo"
)

// FactRecord is the normalized per-entity, per-day metrics row. (AdID, Date)
// is the unique key; AdID holds a synthetic identifier for rows reported at
// campaign or account level.
type FactRecord struct {
	AdID         string       `gorm:"column:ad_id;primaryKey;type:varchar(128)" json:"ad_id" validate:"required"`
	Date         string       `gorm:"column:date;primaryKey;type:varchar(10)" json:"date" validate:"required,datetime=2006-01-02"`
	AccountID    string       `gorm:"column:account_id;type:varchar(64);index:idx_insights_account_date" json:"account_id" validate:"required"`
	CampaignID   string       `gorm:"column:campaign_id;type:varchar(128);index" json:"campaign_id" validate:"required"`
	AdSetID      string       `gorm:"column:adset_id;type:varchar(128)" json:"adset_id" validate:"required"`
	Level        InsightLevel `gorm:"column:level;type:varchar(16)" json:"level" validate:"required,oneof=ad campaign account"`
	AccountName  string       `gorm:"column:account_name;type:varchar(256)" json:"account_name,omitempty"`
	CampaignName string       `gorm:"column:campaign_name;type:varchar(256)" json:"campaign_name,omitempty"`
	AdSetName    string       `gorm:"column:adset_name;type:varchar(256)" json:"adset_name,omitempty"`
	AdName       string       `gorm:"column:ad_name;type:varchar(256)" json:"ad_name,omitempty"`

	Impressions int64   `gorm:"column:impressions" json:"impressions" validate:"gte=0"`
	Clicks      int64   `gorm:"column:clicks" json:"clicks" validate:"gte=0"`
	LinkClicks  int64   `gorm:"column:link_clicks" json:"link_clicks" validate:"gte=0"`
	Spend       float64 `gorm:"column:spend;type:double precision" json:"spend" validate:"gte=0"`
	Reach       int64   `gorm:"column:reach" json:"reach" validate:"gte=0"`
	Frequency   float64 `gorm:"column:frequency;type:double precision" json:"frequency" validate:"gte=0"`

	Purchases         *int64   `gorm:"column:purchases" json:"purchases,omitempty" validate:"omitempty,gte=0"`
	PurchaseValue     *float64 `gorm:"column:purchase_value" json:"purchase_value,omitempty" validate:"omitempty,gte=0"`
	Leads             *int64   `gorm:"column:leads" json:"leads,omitempty" validate:"omitempty,gte=0"`
	LeadValue         *float64 `gorm:"column:lead_value" json:"lead_value,omitempty" validate:"omitempty,gte=0"`
	Registrations     *int64   `gorm:"column:registrations" json:"registrations,omitempty" validate:"omitempty,gte=0"`
	RegistrationValue *float64 `gorm:"column:registration_value" json:"registration_value,omitempty" validate:"omitempty,gte=0"`
	AddToCarts        *int64   `gorm:"column:add_to_carts" json:"add_to_carts,omitempty" validate:"omitempty,gte=0"`
	CostPerPurchase   *float64 `gorm:"column:cost_per_purchase" json:"cost_per_purchase,omitempty" validate:"omitempty,gte=0"`

	// Legacy blended outcome totals. Kept for older consumers only.
	Conversions     *int64   `gorm:"column:conversions" json:"conversions,omitempty" validate:"omitempty,gte=0"`
	ConversionValue *float64 `gorm:"column:conversion_value" json:"conversion_value,omitempty" validate:"omitempty,gte=0"`

	CTR          float64  `gorm:"column:ctr;type:double precision" json:"ctr" validate:"gte=0"`
	CPC          float64  `gorm:"column:cpc;type:double precision" json:"cpc" validate:"gte=0"`
	CPM          float64  `gorm:"column:cpm;type:double precision" json:"cpm" validate:"gte=0"`
	PurchaseCPA  *float64 `gorm:"column:purchase_cpa" json:"purchase_cpa,omitempty" validate:"omitempty,gte=0"`
	PurchaseROAS *float64 `gorm:"column:purchase_roas" json:"purchase_roas,omitempty" validate:"omitempty,gte=0"`
	ROAS         float64  `gorm:"column:roas;type:double precision" json:"roas" validate:"gte=0"`

	VideoPlays        *int64   `gorm:"column:video_plays" json:"video_plays,omitempty" validate:"omitempty,gte=0"`
	VideoViews        *int64   `gorm:"column:video_views" json:"video_views,omitempty" validate:"omitempty,gte=0"`
	Video3sWatched    *int64   `gorm:"column:video_3s_watched" json:"video_3s_watched,omitempty" validate:"omitempty,gte=0"`
	Video15sViews     *int64   `gorm:"column:video_15s_views" json:"video_15s_views,omitempty" validate:"omitempty,gte=0"`
	Video30sViews     *int64   `gorm:"column:video_30s_views" json:"video_30s_views,omitempty" validate:"omitempty,gte=0"`
	VideoP25          *int64   `gorm:"column:video_p25" json:"video_p25,omitempty" validate:"omitempty,gte=0"`
	VideoP50          *int64   `gorm:"column:video_p50" json:"video_p50,omitempty" validate:"omitempty,gte=0"`
	VideoP75          *int64   `gorm:"column:video_p75" json:"video_p75,omitempty" validate:"omitempty,gte=0"`
	VideoP95          *int64   `gorm:"column:video_p95" json:"video_p95,omitempty" validate:"omitempty,gte=0"`
	VideoP100         *int64   `gorm:"column:video_p100" json:"video_p100,omitempty" validate:"omitempty,gte=0"`
	VideoThruplays    *int64   `gorm:"column:video_thruplays" json:"video_thruplays,omitempty" validate:"omitempty,gte=0"`
	VideoAvgWatchTime *float64 `gorm:"column:video_avg_watch_time" json:"video_avg_watch_time,omitempty" validate:"omitempty,gte=0"`

	SyncedAt time.Time `gorm:"column:synced_at" json:"synced_at"`
}

func (FactRecord) TableName() string { return "ad_insights" }

// HasVideoMetrics reports whether any video funnel counter is set.
func (r *FactRecord) HasVideoMetrics() bool {
	for _, v := range []*int64{
		r.VideoPlays, r.VideoViews, r.Video3sWatched, r.Video15sViews, r.Video30sViews,
		r.VideoP25, r.VideoP50, r.VideoP75, r.VideoP95, r.VideoP100, r.VideoThruplays,
	} {
		if v != nil && *v > 0 {
			return true
		}
	}
	return r.VideoAvgWatchTime != nil && *r.VideoAvgWatchTime > 0
}

// Clone returns a copy of r that shares no pointer fields with it.
func (r FactRecord) Clone() FactRecord {
	c := r
	c.Purchases = clonePtr(r.Purchases)
	c.PurchaseValue = clonePtr(r.PurchaseValue)
	c.Leads = clonePtr(r.Leads)
	c.LeadValue = clonePtr(r.LeadValue)
	c.Registrations = clonePtr(r.Registrations)
	c.RegistrationValue = clonePtr(r.RegistrationValue)
	c.AddToCarts = clonePtr(r.AddToCarts)
	c.CostPerPurchase = clonePtr(r.CostPerPurchase)
	c.Conversions = clonePtr(r.Conversions)
	c.ConversionValue = clonePtr(r.ConversionValue)
	c.PurchaseCPA = clonePtr(r.PurchaseCPA)
	c.PurchaseROAS = clonePtr(r.PurchaseROAS)
	c.VideoPlays = clonePtr(r.VideoPlays)
	c.VideoViews = clonePtr(r.VideoViews)
	c.Video3sWatched = clonePtr(r.Video3sWatched)
	c.Video15sViews = clonePtr(r.Video15sViews)
	c.Video30sViews = clonePtr(r.Video30sViews)
	c.VideoP25 = clonePtr(r.VideoP25)
	c.VideoP50 = clonePtr(r.VideoP50)
	c.VideoP75 = clonePtr(r.VideoP75)
	c.VideoP95 = clonePtr(r.VideoP95)
	c.VideoP100 = clonePtr(r.VideoP100)
	c.VideoThruplays = clonePtr(r.VideoThruplays)
	c.VideoAvgWatchTime = clonePtr(r.VideoAvgWatchTime)
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	return lo.ToPtr(*p)
}

// FactFilter selects fact records. Empty fields do not filter.
type FactFilter struct {
	Range      DateRange
	AccountIDs []string
	CampaignID string
	AdSetID    string
	AdID       string
	Levels     []InsightLevel
}

// Matches reports whether rec satisfies every set filter field.
func (f FactFilter) Matches(rec *FactRecord) bool {
	if !f.Range.Start.IsZero() && !f.Range.Contains(rec.Date) {
		return false
	}
	if len(f.AccountIDs) > 0 && !lo.Contains(f.AccountIDs, rec.AccountID) {
		return false
	}
	if f.CampaignID != "" && rec.CampaignID != f.CampaignID {
		return false
	}
	if f.AdSetID != "" && rec.AdSetID != f.AdSetID {
		return false
	}
	if f.AdID != "" && rec.AdID != f.AdID {
		return false
	}
	if len(f.Levels) > 0 && !lo.Contains(f.Levels, rec.Level) {
		return false
	}
	return true
}

// Int64Ptr returns nil for 0, otherwise a pointer to v.
func Int64Ptr(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}

// Float64Ptr returns nil for 0, otherwise a pointer to v.
func Float64Ptr(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}

// Int64Value dereferences p, treating nil as 0.
func Int64Value(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

// Float64Value dereferences p, treating nil as 0.
func Float64Value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
