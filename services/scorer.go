package services

import (
	"fmt"
	"strings"

	"png-rentals/models"
)

// Default classification thresholds (percent deviation from the adjusted
// suburb average).
const (
	DefaultDealThresholdPct       = 15.0
	DefaultOverpricedThresholdPct = 15.0
	strongDealPct                 = 30.0
	severeOverpricedPct           = 30.0
)

// Rent multipliers relative to a House baseline. Unknown or missing types
// score against the unadjusted average.
var typeAdjustments = map[string]float64{
	"house":      1.00,
	"apartment":  0.90,
	"studio":     0.65,
	"room":       0.35,
	"townhouse":  0.95,
	"compound":   1.15,
	"commercial": 1.40,
	"land":       0.50,
}

// Scorer classifies listing prices against suburb benchmarks. It is a pure
// function of its inputs and the immutable benchmark store.
type Scorer struct {
	store               *BenchmarkStore
	dealThreshold       float64
	overpricedThreshold float64
}

// NewScorer creates a Scorer over the given store. Threshold values <= 0
// fall back to the defaults.
func NewScorer(store *BenchmarkStore, dealThresholdPct, overpricedThresholdPct float64) *Scorer {
	if dealThresholdPct <= 0 {
		dealThresholdPct = DefaultDealThresholdPct
	}
	if overpricedThresholdPct <= 0 {
		overpricedThresholdPct = DefaultOverpricedThresholdPct
	}
	return &Scorer{
		store:               store,
		dealThreshold:       dealThresholdPct,
		overpricedThreshold: overpricedThresholdPct,
	}
}

// Store exposes the underlying benchmark store for analytics consumers.
func (s *Scorer) Store() *BenchmarkStore { return s.store }

// Score compares a monthly price against the suburb benchmark, adjusted for
// property type, and returns the classification.
func (s *Scorer) Score(priceMonthly int, suburb, propertyType string) *models.MarketScore {
	stats := s.store.Lookup(suburb)
	if stats == nil || stats.AvgPrice == 0 {
		return &models.MarketScore{
			Label:               models.LabelUnknown,
			BenchmarkConfidence: models.ConfidenceLow,
			Summary:             fmt.Sprintf("No formal listing data available for %s.", suburb),
			Recommendation:      "Cannot assess — check formal listings manually for this area.",
		}
	}

	adjustedAvg := typeAdjusted(stats.AvgPrice, propertyType)
	adjustedMedian := typeAdjusted(stats.MedianPrice, propertyType)

	pctVsAvg := (float64(priceMonthly) - adjustedAvg) / adjustedAvg * 100
	pctVsMedian := (float64(priceMonthly) - adjustedMedian) / adjustedMedian * 100

	var label, qualifier, summary, recommendation string
	absPct := pctVsAvg
	if absPct < 0 {
		absPct = -absPct
	}

	switch {
	case pctVsAvg <= -s.dealThreshold:
		label = models.LabelDeal
		if pctVsAvg <= -strongDealPct {
			qualifier = "strong"
		}
		summary = fmt.Sprintf("%sDEAL — K%d/mo is %.1f%% below the %s average (K%.0f/mo, n=%d).",
			qualifierPrefix(qualifier), priceMonthly, absPct, stats.Suburb, adjustedAvg, stats.SampleSize)
		recommendation = "This listing appears underpriced vs. formal listings. " +
			"Verify condition, confirm with the landlord directly, and check for hidden costs."
		if stats.Confidence == models.ConfidenceLow {
			recommendation += " Low data confidence — treat with caution."
		}

	case pctVsAvg >= s.overpricedThreshold:
		label = models.LabelOverpriced
		if pctVsAvg >= severeOverpricedPct {
			qualifier = "severe"
		}
		summary = fmt.Sprintf("%sOVERPRICED — K%d/mo is %.1f%% above the %s average (K%.0f/mo, n=%d).",
			qualifierPrefix(qualifier), priceMonthly, absPct, stats.Suburb, adjustedAvg, stats.SampleSize)
		recommendation = fmt.Sprintf("Price is above market rate. Negotiate down or consider "+
			"alternatives in %s. Check if the listing is from a middleman/agent adding markup.", suburb)

	default:
		label = models.LabelFair
		direction := "below"
		if pctVsAvg > 0 {
			direction = "above"
		}
		summary = fmt.Sprintf("FAIR — K%d/mo is %.1f%% %s the %s average (K%.0f/mo, n=%d).",
			priceMonthly, absPct, direction, stats.Suburb, adjustedAvg, stats.SampleSize)
		recommendation = "Price is within normal market range. Still worth negotiating 5-10% lower " +
			"as informal listings often have flexibility."
	}

	if stats.Confidence == models.ConfidenceLow {
		summary += " Low confidence (limited formal data in this area)."
	}

	avg := round2(adjustedAvg)
	median := round2(adjustedMedian)
	pa := round2(pctVsAvg)
	pm := round2(pctVsMedian)
	return &models.MarketScore{
		Label:               label,
		Qualifier:           qualifier,
		PctVsAvg:            &pa,
		PctVsMedian:         &pm,
		BenchmarkAvg:        &avg,
		BenchmarkMedian:     &median,
		BenchmarkSampleSize: stats.SampleSize,
		BenchmarkConfidence: stats.Confidence,
		Summary:             summary,
		Recommendation:      recommendation,
	}
}

// Annotate attaches a market score to the listing. Listings without a
// price or suburb score as Unknown.
func (s *Scorer) Annotate(l *models.Listing) {
	if l.PriceMonthly == nil || l.Suburb == "" {
		l.MarketScore = &models.MarketScore{
			Label:               models.LabelUnknown,
			BenchmarkConfidence: models.ConfidenceLow,
			Summary:             "Missing price or suburb data.",
		}
		return
	}
	l.MarketScore = s.Score(*l.PriceMonthly, l.Suburb, l.PropertyType)
}

func typeAdjusted(avg float64, propertyType string) float64 {
	if propertyType == "" {
		return avg
	}
	mult, ok := typeAdjustments[strings.ToLower(propertyType)]
	if !ok {
		return avg
	}
	return avg * mult
}

func qualifierPrefix(q string) string {
	if q == "" {
		return ""
	}
	return strings.ToUpper(q) + " "
}
