package usecase

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"adinsights/internal/domain"

	"github.com/go-playground/validator/v10"
)

// Quality warning codes.
const (
	WarnVideoViewsExceedImpressions = "video_views_exceed_impressions"
	WarnVideoThresholdExceedsParent = "video_threshold_exceeds_parent"
	WarnVideoSourceDivergence       = "video_source_divergence"
	WarnVideoMetricsMissing         = "video_metrics_missing"
)

const (
	// videoDivergenceLimit is the largest tolerated relative gap between the
	// two upstream sources of 3-second views.
	videoDivergenceLimit = 0.10
	// missingVideoImpressions is the impression count above which a video ad
	// with no video metrics is flagged.
	missingVideoImpressions = 1000
)

type ValidateOptions struct {
	ExpectVideo bool
}

// ValidationResult carries the hard verdict and, independently, any soft
// quality warnings.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []domain.QualityWarning
}

// Validator enforces structural rules on fact records and flags anomalies.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// Validate never mutates rec.
func (v *Validator) Validate(rec *domain.FactRecord, opts ValidateOptions) ValidationResult {
	res := ValidationResult{Valid: true}

	if err := v.validate.Struct(rec); err != nil {
		res.Valid = false
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				res.Errors = append(res.Errors, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
		} else {
			res.Errors = append(res.Errors, err.Error())
		}
	}

	for name, f := range floatFields(rec) {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			res.Valid = false
			res.Errors = append(res.Errors, name+" is not finite")
		}
	}

	res.Warnings = qualityWarnings(rec, opts)
	return res
}

func floatFields(rec *domain.FactRecord) map[string]float64 {
	out := map[string]float64{
		"spend":     rec.Spend,
		"frequency": rec.Frequency,
		"ctr":       rec.CTR,
		"cpc":       rec.CPC,
		"cpm":       rec.CPM,
		"roas":      rec.ROAS,
	}
	for name, p := range map[string]*float64{
		"purchase_value":       rec.PurchaseValue,
		"lead_value":           rec.LeadValue,
		"registration_value":   rec.RegistrationValue,
		"cost_per_purchase":    rec.CostPerPurchase,
		"conversion_value":     rec.ConversionValue,
		"purchase_cpa":         rec.PurchaseCPA,
		"purchase_roas":        rec.PurchaseROAS,
		"video_avg_watch_time": rec.VideoAvgWatchTime,
	} {
		if p != nil {
			out[name] = *p
		}
	}
	return out
}

func qualityWarnings(rec *domain.FactRecord, opts ValidateOptions) []domain.QualityWarning {
	var warnings []domain.QualityWarning
	warn := func(code, format string, args ...any) {
		warnings = append(warnings, domain.QualityWarning{
			Code:    code,
			Message: fmt.Sprintf(format, args...),
			AdID:    rec.AdID,
			Date:    rec.Date,
		})
	}

	views := domain.Int64Value(rec.VideoViews)
	if views > rec.Impressions {
		warn(WarnVideoViewsExceedImpressions, "video views %d exceed impressions %d", views, rec.Impressions)
	}

	plays := domain.Int64Value(rec.VideoPlays)
	p25 := domain.Int64Value(rec.VideoP25)
	for _, sub := range []struct {
		name, parent string
		value, limit int64
	}{
		{"video_3s_watched", "video_plays", domain.Int64Value(rec.Video3sWatched), plays},
		{"video_30s_views", "video_plays", domain.Int64Value(rec.Video30sViews), plays},
		{"video_p25", "video_plays", p25, plays},
		{"video_p100", "video_p25", domain.Int64Value(rec.VideoP100), p25},
	} {
		if sub.limit > 0 && sub.value > sub.limit {
			warn(WarnVideoThresholdExceedsParent, "%s %d exceeds %s %d", sub.name, sub.value, sub.parent, sub.limit)
		}
	}

	watched := domain.Int64Value(rec.Video3sWatched)
	if views > 0 && watched > 0 {
		hi, lo := max(views, watched), min(views, watched)
		if gap := float64(hi-lo) / float64(hi); gap > videoDivergenceLimit {
			warn(WarnVideoSourceDivergence, "video views %d and 3s watched %d diverge by %.1f%%", views, watched, gap*100)
		}
	}

	if opts.ExpectVideo && rec.Impressions > missingVideoImpressions && !rec.HasVideoMetrics() {
		warn(WarnVideoMetricsMissing, "video ad has %d impressions and no video metrics", rec.Impressions)
	}

	return warnings
}
