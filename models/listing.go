package models

import (
	"crypto/md5"
	"encoding/hex"
	"time"
)

// Price confidence grades assigned by the normalizer.
const (
	PriceConfidenceHigh   = "high"   // explicit billing period found
	PriceConfidenceMedium = "medium" // period inferred from magnitude
	PriceConfidenceLow    = "low"    // no numeric price found
)

// Benchmark data confidence grades.
const (
	ConfidenceHigh   = "High"   // >=5 formal listings in suburb
	ConfidenceMedium = "Medium" // 2-4 formal listings
	ConfidenceLow    = "Low"    // <2 listings or city-wide fallback
)

// Market score labels.
const (
	LabelDeal       = "Deal"
	LabelFair       = "Fair"
	LabelOverpriced = "Overpriced"
	LabelUnknown    = "Unknown"
)

// RawRecord holds unprocessed data straight from a source collector.
// It is consumed exactly once by the normalizer and then discarded.
type RawRecord struct {
	SourceSite  string
	Title       string
	RawPrice    string
	RawLocation string
	URL         string
	IsVerified  bool
	RawText     string
	ScrapedAt   time.Time
}

// ContactInfo carries phone and email tokens extracted from listing text.
type ContactInfo struct {
	Phones []string `json:"phones"`
	Emails []string `json:"emails"`
}

// Listing is the canonical, analytics-ready record produced by the pipeline.
type Listing struct {
	ID              string       `json:"listing_id"`
	SourceSite      string       `json:"source_site"`
	Title           string       `json:"title"`
	PriceRaw        string       `json:"price_raw"`
	PriceMonthly    *int         `json:"price_monthly_pgk"`
	PriceConfidence string       `json:"price_confidence"`
	Location        string       `json:"location"`
	Suburb          string       `json:"suburb,omitempty"`
	PropertyType    string       `json:"property_type,omitempty"`
	Bedrooms        *int         `json:"bedrooms"`
	Contacts        ContactInfo  `json:"contact_info"`
	IsMiddleman     bool         `json:"is_middleman"`
	MiddlemanFlags  []string     `json:"middleman_flags,omitempty"`
	URL             string       `json:"listing_url"`
	IsVerified      bool         `json:"is_verified"`
	ScrapedAt       time.Time    `json:"scraped_at"`
	RawText         string       `json:"raw_text"`
	MarketScore     *MarketScore `json:"market_value,omitempty"`
}

// ListingID derives the stable identity hash from the listing URL and the
// raw price string. Two records with the same url+price collapse to the
// same id regardless of title or description drift.
func ListingID(url, priceRaw string) string {
	sum := md5.Sum([]byte(url + ":" + priceRaw))
	return hex.EncodeToString(sum[:])
}

// MarketScore is the benchmark comparison attached to a listing after
// normalization.
type MarketScore struct {
	Label               string   `json:"label"`
	Qualifier           string   `json:"qualifier,omitempty"` // "strong" / "severe"
	PctVsAvg            *float64 `json:"pct_vs_avg"`
	PctVsMedian         *float64 `json:"pct_vs_median"`
	BenchmarkAvg        *float64 `json:"benchmark_avg"`
	BenchmarkMedian     *float64 `json:"benchmark_median"`
	BenchmarkSampleSize int      `json:"benchmark_sample_size"`
	BenchmarkConfidence string   `json:"benchmark_confidence"`
	Summary             string   `json:"summary"`
	Recommendation      string   `json:"recommendation"`
}

// SuburbBenchmark is the derived price distribution for one suburb,
// recomputed from the benchmark source table at scorer initialization.
type SuburbBenchmark struct {
	Suburb      string  `json:"suburb"`
	SampleSize  int     `json:"sample_size"`
	AvgPrice    float64 `json:"avg_price"`
	MedianPrice float64 `json:"median_price"`
	StdDev      float64 `json:"std_dev"`
	MinPrice    float64 `json:"min_price"`
	MaxPrice    float64 `json:"max_price"`
	Confidence  string  `json:"confidence"`
}

// SourceResult records the outcome of one collector in a run.
type SourceResult struct {
	Source   string        `json:"source"`
	Verified bool          `json:"verified"`
	Records  int           `json:"records"`
	Err      string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// RunManifest summarises a full collection run: which sources succeeded or
// failed, and the record counts at each pipeline stage.
type RunManifest struct {
	Sources      []SourceResult `json:"sources"`
	RawCount     int            `json:"raw_count"`
	UnifiedCount int            `json:"unified_count"`
	RemovedCount int            `json:"removed_count"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
}

// Failed returns the names of sources that reported an error.
func (m *RunManifest) Failed() []string {
	var out []string
	for _, s := range m.Sources {
		if s.Err != "" {
			out = append(out, s.Source)
		}
	}
	return out
}
