package services

import (
	"math"
	"sort"
	"strings"

	"png-rentals/models"
)

// CityWideKey names the aggregate benchmark used when a suburb has no data
// of its own.
const CityWideKey = "Port Moresby (city-wide)"

// DefaultBenchmarkSource is the formal-listing price table: suburb key to
// observed monthly PGK rents from agency/portal sources.
func DefaultBenchmarkSource() map[string][]int {
	return map[string][]int{
		"waigani":    {4500, 4200, 5000, 3900, 4800, 4100, 5500, 3800, 4300, 4600},
		"boroko":     {3200, 2800, 3500, 3100, 2900, 3400, 3000, 3300, 2700, 3600},
		"gerehu":     {1800, 2100, 1600, 1900, 2000, 1750, 1850, 2200, 1650, 1950},
		"gordons":    {5800, 6200, 5500, 6500, 5900, 6100, 5700},
		"hohola":     {1500, 1700, 1600, 1400, 1800},
		"tokarara":   {2200, 2400, 2100, 2300, 2500, 2150},
		"koki":       {2900, 3100, 2800, 3000, 2700},
		"badili":     {3400, 3200, 3600, 3100},
		"six mile":   {1400, 1600, 1500, 1300, 1450},
		"eight mile": {1200, 1350, 1250, 1100},
		"morata":     {1600, 1800, 1500},
		"erima":      {2000, 2200, 1900},
	}
}

// BenchmarkStore holds per-suburb price statistics derived once from a
// benchmark source table. It is immutable after construction.
type BenchmarkStore struct {
	stats    map[string]*models.SuburbBenchmark
	keys     []string // sorted, for deterministic substring fallback
	cityWide *models.SuburbBenchmark
}

// NewBenchmarkStore computes statistics for every suburb in the source
// table plus the city-wide aggregate.
func NewBenchmarkStore(source map[string][]int) *BenchmarkStore {
	s := &BenchmarkStore{stats: make(map[string]*models.SuburbBenchmark, len(source))}

	var all []int
	for key, prices := range source {
		s.stats[key] = computeStats(prices, titleCase(key))
		s.keys = append(s.keys, key)
		all = append(all, prices...)
	}
	sort.Strings(s.keys)

	if len(all) > 0 {
		s.cityWide = computeStats(all, CityWideKey)
	}
	return s
}

// Lookup resolves a suburb to its benchmark: exact key first, then
// substring containment in either direction, then the city-wide aggregate
// with confidence forced to Low. Returns nil only when no data exists
// anywhere.
func (s *BenchmarkStore) Lookup(suburb string) *models.SuburbBenchmark {
	key := strings.ToLower(strings.TrimSpace(suburb))

	if b, ok := s.stats[key]; ok {
		return b
	}

	// Partial match handles composites like "Gerehu Stage 3".
	if key != "" {
		for _, dbKey := range s.keys {
			if strings.Contains(key, dbKey) || strings.Contains(dbKey, key) {
				return s.stats[dbKey]
			}
		}
	}

	if s.cityWide != nil {
		fallback := *s.cityWide
		fallback.Confidence = models.ConfidenceLow
		return &fallback
	}
	return nil
}

// All returns every suburb benchmark, sorted by key. Used by the analytics
// endpoints.
func (s *BenchmarkStore) All() []*models.SuburbBenchmark {
	out := make([]*models.SuburbBenchmark, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, s.stats[k])
	}
	return out
}

func computeStats(prices []int, suburb string) *models.SuburbBenchmark {
	n := len(prices)
	if n == 0 {
		return &models.SuburbBenchmark{Suburb: suburb, Confidence: models.ConfidenceLow}
	}

	var sum float64
	sorted := make([]int, n)
	copy(sorted, prices)
	sort.Ints(sorted)
	for _, p := range prices {
		sum += float64(p)
	}
	avg := sum / float64(n)

	var median float64
	mid := n / 2
	if n%2 == 1 {
		median = float64(sorted[mid])
	} else {
		median = float64(sorted[mid-1]+sorted[mid]) / 2
	}

	var variance float64
	for _, p := range prices {
		d := float64(p) - avg
		variance += d * d
	}
	variance /= float64(n)

	confidence := models.ConfidenceLow
	switch {
	case n >= 5:
		confidence = models.ConfidenceHigh
	case n >= 2:
		confidence = models.ConfidenceMedium
	}

	return &models.SuburbBenchmark{
		Suburb:      suburb,
		SampleSize:  n,
		AvgPrice:    round2(avg),
		MedianPrice: round2(median),
		StdDev:      round2(math.Sqrt(variance)),
		MinPrice:    float64(sorted[0]),
		MaxPrice:    float64(sorted[n-1]),
		Confidence:  confidence,
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
