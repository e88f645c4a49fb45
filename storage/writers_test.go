package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"png-rentals/models"
)

func sampleListings() []*models.Listing {
	price := 2167
	beds := 3
	pct := -12.5
	return []*models.Listing{
		{
			ID:              "abc123",
			SourceSite:      "Hausples",
			Title:           "3 bedroom house",
			PriceRaw:        "K500 per week",
			PriceMonthly:    &price,
			PriceConfidence: models.PriceConfidenceHigh,
			Suburb:          "Boroko",
			Location:        "Boroko, Port Moresby",
			PropertyType:    "House",
			Bedrooms:        &beds,
			Contacts:        models.ContactInfo{Phones: []string{"71234567"}},
			URL:             "https://hausples.com.pg/p/1",
			IsVerified:      true,
			ScrapedAt:       time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
			MarketScore: &models.MarketScore{
				Label:    models.LabelFair,
				PctVsAvg: &pct,
			},
		},
		{
			ID:              "def456",
			SourceSite:      "Facebook Marketplace",
			Title:           "Room available",
			PriceConfidence: models.PriceConfidenceLow,
			URL:             "https://facebook.com/marketplace/item/2",
			ScrapedAt:       time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		},
	}
}

func TestCSVWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "listings.csv")

	w, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("NewCSVWriter: %v", err)
	}
	if err := w.Write(sampleListings()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows; want header + 2 listings", len(rows))
	}
	if diff := cmp.Diff(csvHeader, rows[0]); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}

	first := rows[1]
	if first[0] != "abc123" || first[4] != "2167" || first[14] != "Fair" {
		t.Errorf("first row = %v", first)
	}
	// Missing optionals serialize as empty cells, not zeros.
	second := rows[2]
	if second[4] != "" || second[9] != "" || second[15] != "" {
		t.Errorf("nil fields must be empty: %v", second)
	}
}

func TestJSONWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listings.json")

	w, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("NewJSONWriter: %v", err)
	}
	want := sampleListings()
	if err := w.Write(want); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := ReadListings(path)
	if err != nil {
		t.Fatalf("ReadListings: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestExport(t *testing.T) {
	dir := t.TempDir()

	result, err := Export(dir, sampleListings())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	for _, path := range []string{
		result.JSONPath,
		result.CSVPath,
		LatestJSONPath(dir),
		filepath.Join(dir, "png_listings_latest.csv"),
	} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected export file %s: %v", path, err)
		}
	}

	latest, err := ReadListings(LatestJSONPath(dir))
	if err != nil {
		t.Fatalf("read latest: %v", err)
	}
	if len(latest) != 2 {
		t.Errorf("latest export holds %d listings; want 2", len(latest))
	}
}
