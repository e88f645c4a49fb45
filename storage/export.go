package storage

import (
	"fmt"
	"path/filepath"
	"time"

	"png-rentals/models"
)

// ExportResult names the files produced by one export pass.
type ExportResult struct {
	JSONPath string
	CSVPath  string
}

// Export writes the unified listings to a timestamped JSON and CSV pair
// under dir, and refreshes the png_listings_latest.* copies that the API
// server reads on startup.
func Export(dir string, listings []*models.Listing) (*ExportResult, error) {
	stamp := time.Now().UTC().Format("20060102_150405")
	result := &ExportResult{
		JSONPath: filepath.Join(dir, fmt.Sprintf("png_listings_%s.json", stamp)),
		CSVPath:  filepath.Join(dir, fmt.Sprintf("png_listings_%s.csv", stamp)),
	}

	targets := []struct {
		jsonPath string
		csvPath  string
	}{
		{result.JSONPath, result.CSVPath},
		{filepath.Join(dir, "png_listings_latest.json"), filepath.Join(dir, "png_listings_latest.csv")},
	}

	for _, t := range targets {
		jw, err := NewJSONWriter(t.jsonPath)
		if err != nil {
			return nil, err
		}
		if err := jw.Write(listings); err != nil {
			return nil, err
		}

		cw, err := NewCSVWriter(t.csvPath)
		if err != nil {
			return nil, err
		}
		if err := cw.Write(listings); err != nil {
			_ = cw.Close()
			return nil, err
		}
		if err := cw.Close(); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// LatestJSONPath returns the path Export refreshes on every run.
func LatestJSONPath(dir string) string {
	return filepath.Join(dir, "png_listings_latest.json")
}
