package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"adinsights/internal/domain"
	"adinsights/pkg/logger"
	"adinsights/pkg/metrics"

	"github.com/sirupsen/logrus"
)

// Drop reasons reported per account.
const (
	DropMissingIdentity    = "missing_identity"
	DropInvalidRecord      = "invalid_record"
	DropTransformPanic     = "transform_panic"
	DropCoveredByFinerRows = "covered_by_finer_rows"
)

// Transformer turns raw insight rows into normalized fact records.
type Transformer struct {
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewTransformer(logger *logger.Logger, metrics *metrics.Metrics) *Transformer {
	return &Transformer{
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Transform normalizes one raw row reported at level. It fails only when the
// row cannot be keyed: missing entity id, date or account id.
func (t *Transformer) Transform(raw domain.RawInsight, level domain.InsightLevel) (*domain.FactRecord, error) {
	rec, err := resolveIdentity(raw, level)
	if err != nil {
		return nil, err
	}

	// A bare number in a multi-outcome field is a purchase count, never every
	// outcome at once.
	raw.Actions = raw.Actions.AttributeTo(domain.LabelPurchase)
	raw.ActionValues = raw.ActionValues.AttributeTo(domain.LabelPurchase)
	raw.CostPerActionType = raw.CostPerActionType.AttributeTo(domain.LabelPurchase)

	rec.Impressions = count(raw.Impressions.Float64())
	rec.Clicks = count(raw.Clicks.Float64())
	rec.Spend = money(raw.Spend.Float64())
	rec.Reach = count(raw.Reach.Float64())
	rec.Frequency = money(raw.Frequency.Float64())

	if raw.Actions.Has(domain.LabelLinkClick) {
		rec.LinkClicks = count(raw.Actions.Value(domain.LabelLinkClick))
	} else {
		rec.LinkClicks = count(raw.InlineLinkClicks.Float64())
	}

	purchases := count(raw.Actions.FirstOf(domain.PurchaseLabels...))
	leads := count(raw.Actions.FirstOf(domain.LeadLabels...))
	registrations := count(raw.Actions.FirstOf(domain.RegistrationLabels...))
	purchaseValue := money(raw.ActionValues.FirstOf(domain.PurchaseLabels...))
	leadValue := money(raw.ActionValues.FirstOf(domain.LeadLabels...))
	registrationValue := money(raw.ActionValues.FirstOf(domain.RegistrationLabels...))

	rec.Purchases = domain.Int64Ptr(purchases)
	rec.PurchaseValue = domain.Float64Ptr(purchaseValue)
	rec.Leads = domain.Int64Ptr(leads)
	rec.LeadValue = domain.Float64Ptr(leadValue)
	rec.Registrations = domain.Int64Ptr(registrations)
	rec.RegistrationValue = domain.Float64Ptr(registrationValue)
	rec.AddToCarts = domain.Int64Ptr(count(raw.Actions.FirstOf(domain.AddToCartLabels...)))
	rec.CostPerPurchase = domain.Float64Ptr(money(raw.CostPerActionType.FirstOf(domain.PurchaseLabels...)))

	// Legacy blended totals. Read by old consumers only.
	blendedValue := purchaseValue + leadValue + registrationValue
	rec.Conversions = domain.Int64Ptr(purchases + leads + registrations)
	rec.ConversionValue = domain.Float64Ptr(blendedValue)

	extractVideo(rec, raw)

	rec.CTR = CTR(rec.LinkClicks, rec.Impressions)
	rec.CPC = CPC(rec.Spend, rec.LinkClicks)
	rec.CPM = CPM(rec.Spend, rec.Impressions)
	rec.PurchaseCPA = PurchaseCPA(rec.Spend, purchases)
	rec.PurchaseROAS = PurchaseROAS(purchaseValue, rec.Spend)
	rec.ROAS = ResolveLegacyROAS(rec.PurchaseROAS, blendedValue, rec.Spend)
	rec.SyncedAt = t.now().UTC()

	t.logger.WithFields(logrus.Fields{
		"ad_id":         rec.AdID,
		"date":          rec.Date,
		"level":         rec.Level,
		"impressions":   rec.Impressions,
		"link_clicks":   rec.LinkClicks,
		"spend":         rec.Spend,
		"ctr":           rec.CTR,
		"cpc":           rec.CPC,
		"cpm":           rec.CPM,
		"purchase_cpa":  rec.PurchaseCPA,
		"purchase_roas": rec.PurchaseROAS,
		"roas":          rec.ROAS,
		"actions_shape": raw.Actions.Shape.String(),
	}).Debug("Insight transformed")

	return rec, nil
}

func resolveIdentity(raw domain.RawInsight, level domain.InsightLevel) (*domain.FactRecord, error) {
	accountID := strings.TrimPrefix(strings.TrimSpace(raw.AccountID), "act_")
	date := strings.TrimSpace(raw.DateStart)
	campaignID := strings.TrimSpace(raw.CampaignID)
	adSetID := strings.TrimSpace(raw.AdSetID)
	adID := strings.TrimSpace(raw.AdID)

	if accountID == "" {
		return nil, &domain.TransformError{Field: "account_id", Err: domain.ErrMissingIdentity}
	}
	if date == "" {
		return nil, &domain.TransformError{Field: "date_start", Err: domain.ErrMissingIdentity}
	}

	rec := &domain.FactRecord{
		AccountID:    accountID,
		Date:         date,
		Level:        level,
		AccountName:  raw.AccountName,
		CampaignName: raw.CampaignName,
		AdSetName:    raw.AdSetName,
		AdName:       raw.AdName,
	}

	switch level {
	case domain.LevelAd:
		if adID == "" {
			return nil, &domain.TransformError{Field: "ad_id", Err: domain.ErrMissingIdentity}
		}
		rec.CampaignID, rec.AdSetID, rec.AdID = campaignID, adSetID, adID
	case domain.LevelCampaign:
		if campaignID == "" {
			return nil, &domain.TransformError{Field: "campaign_id", Err: domain.ErrMissingIdentity}
		}
		rec.CampaignID = campaignID
		rec.AdSetID = domain.SyntheticID(level, campaignID, "adset")
		rec.AdID = domain.SyntheticID(level, campaignID, "ad")
	case domain.LevelAccount:
		rec.CampaignID = domain.SyntheticID(level, accountID, "campaign")
		rec.AdSetID = domain.SyntheticID(level, accountID, "adset")
		rec.AdID = domain.SyntheticID(level, accountID, "ad")
		if rec.CampaignName == "" {
			rec.CampaignName = "Account total"
		}
	default:
		return nil, &domain.TransformError{Field: "level", Err: fmt.Errorf("unsupported level %q", level)}
	}

	return rec, nil
}

func extractVideo(rec *domain.FactRecord, raw domain.RawInsight) {
	views := raw.Actions.Value(domain.LabelVideoView)
	if !raw.VideoViews.IsEmpty() {
		views = raw.VideoViews.Value(domain.LabelVideoView)
	}

	rec.VideoViews = domain.Int64Ptr(count(views))
	rec.VideoPlays = videoCount(raw.VideoPlayActions)
	rec.Video3sWatched = videoCount(raw.Video3SecWatched)
	rec.Video15sViews = videoCount(raw.Video15SecWatched)
	rec.Video30sViews = videoCount(raw.Video30SecWatched)
	rec.VideoP25 = videoCount(raw.VideoP25Watched)
	rec.VideoP50 = videoCount(raw.VideoP50Watched)
	rec.VideoP75 = videoCount(raw.VideoP75Watched)
	rec.VideoP95 = videoCount(raw.VideoP95Watched)
	rec.VideoP100 = videoCount(raw.VideoP100Watched)
	rec.VideoThruplays = videoCount(raw.VideoThruplay)
	rec.VideoAvgWatchTime = domain.Float64Ptr(money(raw.VideoAvgTimeWatched.Value(domain.LabelVideoView)))
}

func videoCount(l domain.ActionList) *int64 {
	return domain.Int64Ptr(count(l.Value(domain.LabelVideoView)))
}

func count(v float64) int64 {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int64(math.Round(v))
}

func money(v float64) float64 {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// BatchOptions configures TransformBatch.
type BatchOptions struct {
	// Validator drops records failing hard validation when set.
	Validator *Validator
	// VideoAdIDs marks ads expected to carry video creative.
	VideoAdIDs map[string]bool
}

// BatchResult reports what a batch produced and what it dropped.
type BatchResult struct {
	Records     []domain.FactRecord
	Dropped     int
	DropReasons map[string]int
	Warnings    []domain.QualityWarning
}

func (r *BatchResult) drop(reason string) {
	r.Dropped++
	r.DropReasons[reason]++
}

// TransformBatch transforms and validates raws. A failing record is dropped
// and counted; it never stops the rest of the batch.
func (t *Transformer) TransformBatch(ctx context.Context, raws []domain.RawInsight, level domain.InsightLevel, opts BatchOptions) BatchResult {
	log := t.logger.WithContext(ctx)
	result := BatchResult{
		Records:     make([]domain.FactRecord, 0, len(raws)),
		DropReasons: make(map[string]int),
	}

	for i := range raws {
		rec, err := t.transformSafe(raws[i], level)
		if err != nil {
			reason := DropMissingIdentity
			if !errors.Is(err, domain.ErrMissingIdentity) {
				reason = DropTransformPanic
			}
			result.drop(reason)
			t.metrics.RecordRecordDropped(reason)
			log.WithError(err).WithFields(logrus.Fields{
				"index":      i,
				"account_id": raws[i].AccountID,
				"date":       raws[i].DateStart,
			}).Warn("Dropping insight that cannot be keyed")
			continue
		}

		if opts.Validator != nil {
			res := opts.Validator.Validate(rec, ValidateOptions{ExpectVideo: opts.VideoAdIDs[rec.AdID]})
			for _, w := range res.Warnings {
				t.metrics.RecordQualityWarning(w.Code)
				log.WithFields(logrus.Fields{
					"ad_id": w.AdID,
					"date":  w.Date,
					"code":  w.Code,
				}).Warn(w.Message)
			}
			result.Warnings = append(result.Warnings, res.Warnings...)

			if !res.Valid {
				result.drop(DropInvalidRecord)
				t.metrics.RecordRecordDropped(DropInvalidRecord)
				log.WithFields(logrus.Fields{
					"ad_id":  rec.AdID,
					"date":   rec.Date,
					"errors": res.Errors,
				}).Warn("Dropping insight that failed validation")
				continue
			}
		}

		result.Records = append(result.Records, *rec)
	}

	return result
}

func (t *Transformer) transformSafe(raw domain.RawInsight, level domain.InsightLevel) (rec *domain.FactRecord, err error) {
	defer func() {
		if p := recover(); p != nil {
			rec, err = nil, fmt.Errorf("transform panicked: %v", p)
		}
	}()
	return t.Transform(raw, level)
}
