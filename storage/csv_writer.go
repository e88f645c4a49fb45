package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"png-rentals/models"
)

// CSVWriter writes unified listings to a CSV file for spreadsheet use.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

var csvHeader = []string{
	"listing_id", "source_site", "title", "price_raw", "price_monthly_pgk",
	"price_confidence", "suburb", "location", "property_type", "bedrooms",
	"phones", "emails", "is_verified", "is_middleman", "market_label",
	"pct_vs_avg", "url", "scraped_at",
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// Write appends one row per listing.
func (c *CSVWriter) Write(listings []*models.Listing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, l := range listings {
		row := []string{
			l.ID,
			l.SourceSite,
			l.Title,
			l.PriceRaw,
			intOrEmpty(l.PriceMonthly),
			l.PriceConfidence,
			l.Suburb,
			l.Location,
			l.PropertyType,
			intOrEmpty(l.Bedrooms),
			strings.Join(l.Contacts.Phones, "; "),
			strings.Join(l.Contacts.Emails, "; "),
			strconv.FormatBool(l.IsVerified),
			strconv.FormatBool(l.IsMiddleman),
			marketLabel(l),
			pctVsAvg(l),
			l.URL,
			l.ScrapedAt.Format(time.RFC3339),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

func intOrEmpty(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func marketLabel(l *models.Listing) string {
	if l.MarketScore == nil {
		return ""
	}
	return l.MarketScore.Label
}

func pctVsAvg(l *models.Listing) string {
	if l.MarketScore == nil || l.MarketScore.PctVsAvg == nil {
		return ""
	}
	return strconv.FormatFloat(*l.MarketScore.PctVsAvg, 'f', 1, 64)
}
