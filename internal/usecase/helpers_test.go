package usecase

import (
	"testing"

	"adinsights/internal/domain"
	"adinsights/pkg/logger"
	"adinsights/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestMetrics(t *testing.T) *metrics.Metrics {
	t.Helper()
	return metrics.New(prometheus.NewRegistry())
}

func newTestTransformer(t *testing.T) *Transformer {
	t.Helper()
	return NewTransformer(logger.NewNop(), newTestMetrics(t))
}

// fact builds a stored ad-level record with rates derived from its counts.
func fact(adID, date string, impressions, linkClicks int64, spend float64) domain.FactRecord {
	rec := domain.FactRecord{
		AdID:        adID,
		Date:        date,
		AccountID:   "123",
		CampaignID:  "c-" + adID,
		AdSetID:     "s-" + adID,
		Level:       domain.LevelAd,
		Impressions: impressions,
		Clicks:      linkClicks,
		LinkClicks:  linkClicks,
		Spend:       spend,
	}
	ApplyDerivedRates(&rec)
	return rec
}
