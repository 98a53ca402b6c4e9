package usecase

import (
	"math"
	"testing"

	"adinsights/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRecord() *domain.FactRecord {
	rec := fact("a1", "2024-03-01", 1000, 45, 100)
	return &rec
}

func warningCodes(res ValidationResult) []string {
	codes := make([]string, 0, len(res.Warnings))
	for _, w := range res.Warnings {
		codes = append(codes, w.Code)
	}
	return codes
}

func TestValidate_ValidRecord(t *testing.T) {
	res := NewValidator().Validate(validRecord(), ValidateOptions{})

	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
}

func TestValidate_StructuralErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.FactRecord)
		want   string
	}{
		{"missing ad id", func(r *domain.FactRecord) { r.AdID = "" }, "ad_id failed required"},
		{"missing account", func(r *domain.FactRecord) { r.AccountID = "" }, "account_id failed required"},
		{"bad date", func(r *domain.FactRecord) { r.Date = "2024/03/01" }, "date failed datetime"},
		{"unknown level", func(r *domain.FactRecord) { r.Level = "adset" }, "level failed oneof"},
		{"negative impressions", func(r *domain.FactRecord) { r.Impressions = -1 }, "impressions failed gte"},
		{"negative purchases", func(r *domain.FactRecord) { r.Purchases = domain.Int64Ptr(-2) }, "purchases failed gte"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mutate(rec)

			res := NewValidator().Validate(rec, ValidateOptions{})

			assert.False(t, res.Valid)
			assert.Contains(t, res.Errors, tt.want)
		})
	}
}

func TestValidate_NonFiniteRates(t *testing.T) {
	rec := validRecord()
	rec.CTR = math.Inf(1)

	res := NewValidator().Validate(rec, ValidateOptions{})

	assert.False(t, res.Valid)
	assert.Contains(t, res.Errors, "ctr is not finite")
}

func TestValidate_NonFiniteOptional(t *testing.T) {
	rec := validRecord()
	rec.PurchaseROAS = domain.Float64Ptr(math.Inf(1))

	res := NewValidator().Validate(rec, ValidateOptions{})

	assert.False(t, res.Valid)
	assert.Contains(t, res.Errors, "purchase_roas is not finite")
}

func TestValidate_VideoViewsExceedImpressionsIsSoft(t *testing.T) {
	rec := validRecord()
	rec.Impressions = 100
	rec.VideoViews = domain.Int64Ptr(500)

	res := NewValidator().Validate(rec, ValidateOptions{})

	assert.True(t, res.Valid)
	assert.Equal(t, []string{WarnVideoViewsExceedImpressions}, warningCodes(res))
	assert.Equal(t, "a1", res.Warnings[0].AdID)
	assert.Equal(t, "2024-03-01", res.Warnings[0].Date)
}

func TestValidate_ThresholdExceedsParent(t *testing.T) {
	rec := validRecord()
	rec.VideoPlays = domain.Int64Ptr(100)
	rec.VideoP25 = domain.Int64Ptr(80)
	rec.VideoP100 = domain.Int64Ptr(90)

	res := NewValidator().Validate(rec, ValidateOptions{})

	assert.True(t, res.Valid)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarnVideoThresholdExceedsParent, res.Warnings[0].Code)
	assert.Contains(t, res.Warnings[0].Message, "video_p100")
}

func TestValidate_ThresholdWithoutParentIsNotFlagged(t *testing.T) {
	rec := validRecord()
	rec.VideoP25 = domain.Int64Ptr(80)

	res := NewValidator().Validate(rec, ValidateOptions{})

	assert.Empty(t, res.Warnings)
}

func TestValidate_SourceDivergence(t *testing.T) {
	rec := validRecord()
	rec.VideoViews = domain.Int64Ptr(100)
	rec.Video3sWatched = domain.Int64Ptr(80)

	res := NewValidator().Validate(rec, ValidateOptions{})
	assert.Equal(t, []string{WarnVideoSourceDivergence}, warningCodes(res))

	rec.Video3sWatched = domain.Int64Ptr(95)
	res = NewValidator().Validate(rec, ValidateOptions{})
	assert.Empty(t, res.Warnings)
}

func TestValidate_ExpectedVideoMissing(t *testing.T) {
	rec := validRecord()
	rec.Impressions = 5000

	res := NewValidator().Validate(rec, ValidateOptions{ExpectVideo: true})
	assert.True(t, res.Valid)
	assert.Equal(t, []string{WarnVideoMetricsMissing}, warningCodes(res))

	res = NewValidator().Validate(rec, ValidateOptions{})
	assert.Empty(t, res.Warnings)

	rec.Impressions = 500
	res = NewValidator().Validate(rec, ValidateOptions{ExpectVideo: true})
	assert.Empty(t, res.Warnings)
}

func TestValidate_DoesNotMutate(t *testing.T) {
	rec := validRecord()
	rec.Impressions = 100
	rec.VideoViews = domain.Int64Ptr(500)
	before := *rec

	NewValidator().Validate(rec, ValidateOptions{ExpectVideo: true})

	assert.Equal(t, before, *rec)
}
