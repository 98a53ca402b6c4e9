package infrastructure

import (
	"testing"

	"adinsights/internal/domain"
	"adinsights/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestMetrics(t *testing.T) *metrics.Metrics {
	t.Helper()
	return metrics.New(prometheus.NewRegistry())
}

func testRecord(accountID, adID, date string, level domain.InsightLevel, spend float64) domain.FactRecord {
	return domain.FactRecord{
		AdID:        adID,
		Date:        date,
		AccountID:   accountID,
		CampaignID:  "c1",
		AdSetID:     "s1",
		Level:       level,
		Impressions: 100,
		Spend:       spend,
	}
}

func testWindow(t *testing.T, from, to string) domain.DateRange {
	t.Helper()
	r, err := domain.ParseDateRange(from, to)
	if err != nil {
		t.Fatalf("parse range: %v", err)
	}
	return r
}
