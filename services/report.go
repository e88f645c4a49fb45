package services

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"png-rentals/models"
)

// RunReport holds the computed summary over a unified dataset.
type RunReport struct {
	TotalListings    int
	VerifiedListings int
	BySource         map[string]int
	TopSuburbs       []SuburbCount
	MinPrice         int
	MaxPrice         int
	AvgPrice         int
	MiddlemanFlagged int
}

// SuburbCount pairs a suburb with its listing count.
type SuburbCount struct {
	Suburb string
	Count  int
}

// ReportService computes and prints the end-of-run summary.
type ReportService struct {
	logger *zap.SugaredLogger
}

// NewReportService creates a ReportService with the given logger.
func NewReportService(logger *zap.SugaredLogger) *ReportService {
	return &ReportService{logger: logger}
}

// Generate computes the summary over the unified listings.
func (s *ReportService) Generate(listings []*models.Listing) *RunReport {
	report := &RunReport{BySource: make(map[string]int)}
	report.TotalListings = len(listings)

	bySuburb := make(map[string]int)
	var priced []int
	for _, l := range listings {
		report.BySource[l.SourceSite]++
		if l.IsVerified {
			report.VerifiedListings++
		}
		if l.IsMiddleman {
			report.MiddlemanFlagged++
		}
		if l.Suburb != "" {
			bySuburb[l.Suburb]++
		}
		if l.PriceMonthly != nil {
			priced = append(priced, *l.PriceMonthly)
		}
	}

	for suburb, n := range bySuburb {
		report.TopSuburbs = append(report.TopSuburbs, SuburbCount{suburb, n})
	}
	sort.Slice(report.TopSuburbs, func(i, j int) bool {
		if report.TopSuburbs[i].Count != report.TopSuburbs[j].Count {
			return report.TopSuburbs[i].Count > report.TopSuburbs[j].Count
		}
		return report.TopSuburbs[i].Suburb < report.TopSuburbs[j].Suburb
	})
	if len(report.TopSuburbs) > 8 {
		report.TopSuburbs = report.TopSuburbs[:8]
	}

	if len(priced) > 0 {
		report.MinPrice = priced[0]
		report.MaxPrice = priced[0]
		total := 0
		for _, p := range priced {
			total += p
			if p < report.MinPrice {
				report.MinPrice = p
			}
			if p > report.MaxPrice {
				report.MaxPrice = p
			}
		}
		report.AvgPrice = total / len(priced)
	}

	return report
}

// Print renders the summary plus the run manifest to stdout.
func (s *ReportService) Print(r *RunReport, manifest *models.RunManifest) {
	sep := strings.Repeat("═", 60)

	fmt.Printf("\n%s\n", sep)
	fmt.Printf("  PNG RENTAL AGGREGATOR — RUN SUMMARY\n")
	fmt.Printf("%s\n", sep)
	fmt.Printf("  Total listings (post-dedup)  : %d\n", r.TotalListings)
	fmt.Printf("  Raw records collected        : %d (%d removed by dedup)\n",
		manifest.RawCount, manifest.RemovedCount)

	fmt.Printf("\n  By source:\n")
	for _, src := range manifest.Sources {
		mark := "~"
		if src.Verified {
			mark = "✓"
		}
		status := fmt.Sprintf("%4d", src.Records)
		if src.Err != "" {
			status = "FAILED: " + src.Err
		}
		fmt.Printf("    %s  %-30s %s\n", mark, src.Source, status)
	}

	if len(r.TopSuburbs) > 0 {
		fmt.Printf("\n  Top suburbs:\n")
		for _, sc := range r.TopSuburbs {
			fmt.Printf("    %-25s %4d listings\n", sc.Suburb, sc.Count)
		}
	}

	if r.AvgPrice > 0 {
		fmt.Printf("\n  Price range  : K%d – K%d / month\n", r.MinPrice, r.MaxPrice)
		fmt.Printf("  Average rent : K%d / month\n", r.AvgPrice)
	}
	if r.MiddlemanFlagged > 0 {
		fmt.Printf("  Middleman-flagged listings : %d\n", r.MiddlemanFlagged)
	}
	fmt.Printf("%s\n\n", sep)
}
