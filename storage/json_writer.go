package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"png-rentals/models"
)

// JSONWriter writes the unified listing set to a JSON file. The file is the
// canonical export: it carries every field, including nulls for missing
// prices and bedrooms.
type JSONWriter struct {
	path string
}

// NewJSONWriter creates a writer targeting the given path. Intermediate
// directories are created automatically.
func NewJSONWriter(path string) (*JSONWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("json: create output dir: %w", err)
	}
	return &JSONWriter{path: path}, nil
}

// Write replaces the file contents with the given listings.
func (w *JSONWriter) Write(listings []*models.Listing) error {
	data, err := json.MarshalIndent(listings, "", "  ")
	if err != nil {
		return fmt.Errorf("json: marshal: %w", err)
	}
	if err := os.WriteFile(w.path, data, 0644); err != nil {
		return fmt.Errorf("json: write %q: %w", w.path, err)
	}
	return nil
}

// Close is a no-op; each Write is self-contained.
func (w *JSONWriter) Close() error { return nil }

// ReadListings loads a previously exported JSON file. The API server uses
// it to serve data without re-running the pipeline.
func ReadListings(path string) ([]*models.Listing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("json: read %q: %w", path, err)
	}
	var listings []*models.Listing
	if err := json.Unmarshal(data, &listings); err != nil {
		return nil, fmt.Errorf("json: parse %q: %w", path, err)
	}
	return listings, nil
}
