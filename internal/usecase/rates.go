package usecase

import (
	"adinsights/internal/domain"
)

// CTR is link clicks per impression, in percent. Link clicks, not raw clicks,
// match what the upstream platform reports as CTR.
func CTR(linkClicks, impressions int64) float64 {
	if linkClicks > 0 && impressions > 0 {
		return float64(linkClicks) / float64(impressions) * 100
	}
	return 0
}

// CPC is spend per link click.
func CPC(spend float64, linkClicks int64) float64 {
	if linkClicks > 0 {
		return spend / float64(linkClicks)
	}
	return 0
}

// CPM is spend per thousand impressions.
func CPM(spend float64, impressions int64) float64 {
	if impressions > 0 {
		return spend / float64(impressions) * 1000
	}
	return 0
}

// PurchaseCPA is spend per purchase. Nil means no CPA exists, which is
// distinct from a CPA of zero.
func PurchaseCPA(spend float64, purchases int64) *float64 {
	if purchases > 0 {
		v := spend / float64(purchases)
		return &v
	}
	return nil
}

// PurchaseROAS is purchase value per unit of spend, nil when undefined.
func PurchaseROAS(purchaseValue, spend float64) *float64 {
	if purchaseValue > 0 && spend > 0 {
		v := purchaseValue / spend
		return &v
	}
	return nil
}

// ResolveLegacyROAS fills the legacy ROAS field. The purchase-specific ROAS
// wins when it exists; only otherwise is blended outcome value used. The two
// are never added together: purchase value is already part of the blended
// value.
func ResolveLegacyROAS(purchaseROAS *float64, blendedValue, spend float64) float64 {
	if purchaseROAS != nil {
		return *purchaseROAS
	}
	if blendedValue > 0 && spend > 0 {
		return blendedValue / spend
	}
	return 0
}

// Frequency is impressions per reached person.
func Frequency(impressions, reach int64) float64 {
	if reach > 0 {
		return float64(impressions) / float64(reach)
	}
	return 0
}

// ApplyDerivedRates recomputes every derived rate on rec from its stored
// counts and money. It reports whether any field changed.
func ApplyDerivedRates(rec *domain.FactRecord) bool {
	before := snapshotRates(rec)

	rec.CTR = CTR(rec.LinkClicks, rec.Impressions)
	rec.CPC = CPC(rec.Spend, rec.LinkClicks)
	rec.CPM = CPM(rec.Spend, rec.Impressions)
	rec.PurchaseCPA = PurchaseCPA(rec.Spend, domain.Int64Value(rec.Purchases))
	rec.PurchaseROAS = PurchaseROAS(domain.Float64Value(rec.PurchaseValue), rec.Spend)
	rec.ROAS = ResolveLegacyROAS(rec.PurchaseROAS, domain.Float64Value(rec.ConversionValue), rec.Spend)
	if rec.Frequency == 0 {
		rec.Frequency = Frequency(rec.Impressions, rec.Reach)
	}

	return before != snapshotRates(rec)
}

type rateSnapshot struct {
	ctr, cpc, cpm, roas, frequency float64
	cpa, purchaseROAS              float64
	hasCPA, hasPurchaseROAS        bool
}

func snapshotRates(rec *domain.FactRecord) rateSnapshot {
	return rateSnapshot{
		ctr:             rec.CTR,
		cpc:             rec.CPC,
		cpm:             rec.CPM,
		roas:            rec.ROAS,
		frequency:       rec.Frequency,
		cpa:             domain.Float64Value(rec.PurchaseCPA),
		purchaseROAS:    domain.Float64Value(rec.PurchaseROAS),
		hasCPA:          rec.PurchaseCPA != nil,
		hasPurchaseROAS: rec.PurchaseROAS != nil,
	}
}

// RatesFromTotals derives period rates from summed totals.
func RatesFromTotals(t domain.Totals) domain.Rates {
	purchaseROAS := PurchaseROAS(t.PurchaseValue, t.Spend)
	return domain.Rates{
		CTR:          CTR(t.LinkClicks, t.Impressions),
		CPC:          CPC(t.Spend, t.LinkClicks),
		CPM:          CPM(t.Spend, t.Impressions),
		Frequency:    Frequency(t.Impressions, t.Reach),
		PurchaseCPA:  PurchaseCPA(t.Spend, t.Purchases),
		PurchaseROAS: purchaseROAS,
		ROAS:         ResolveLegacyROAS(purchaseROAS, t.ConversionValue, t.Spend),
	}
}
