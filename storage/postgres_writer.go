package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"png-rentals/models"
)

const pgColumns = 18

// PostgresWriter persists unified listings to PostgreSQL.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema
// migrations, and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS listings (
			listing_id       TEXT PRIMARY KEY,
			source_site      VARCHAR(80) NOT NULL,
			title            TEXT        NOT NULL DEFAULT '',
			price_raw        TEXT        NOT NULL DEFAULT '',
			price_monthly    INTEGER,
			price_confidence VARCHAR(10) NOT NULL DEFAULT 'low',
			suburb           VARCHAR(80) NOT NULL DEFAULT '',
			location         TEXT        NOT NULL DEFAULT '',
			property_type    VARCHAR(40) NOT NULL DEFAULT '',
			bedrooms         INTEGER,
			phones           TEXT        NOT NULL DEFAULT '',
			emails           TEXT        NOT NULL DEFAULT '',
			is_verified      BOOLEAN     NOT NULL DEFAULT FALSE,
			is_middleman     BOOLEAN     NOT NULL DEFAULT FALSE,
			market_label     VARCHAR(20) NOT NULL DEFAULT '',
			pct_vs_avg       NUMERIC(8,2),
			url              TEXT        NOT NULL,
			scraped_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_listings_suburb  ON listings(suburb);
		CREATE INDEX IF NOT EXISTS idx_listings_price   ON listings(price_monthly);
		CREATE INDEX IF NOT EXISTS idx_listings_source  ON listings(source_site);
		CREATE INDEX IF NOT EXISTS idx_listings_type    ON listings(property_type);
	`)
	return err
}

// Clear deletes all existing listings from the table.
func (pw *PostgresWriter) Clear() error {
	_, err := pw.db.Exec("DELETE FROM listings")
	if err != nil {
		return fmt.Errorf("postgres: clear: %w", err)
	}
	return nil
}

// Write replaces the stored dataset with the given listings, batch-inserted.
func (pw *PostgresWriter) Write(listings []*models.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	if err := pw.Clear(); err != nil {
		return err
	}

	const batchSize = 50
	for i := 0; i < len(listings); i += batchSize {
		end := i + batchSize
		if end > len(listings) {
			end = len(listings)
		}
		if err := pw.insertBatch(listings[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (pw *PostgresWriter) insertBatch(batch []*models.Listing) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*pgColumns)

	for idx, l := range batch {
		base := idx * pgColumns
		placeholders := make([]string, pgColumns)
		for c := 0; c < pgColumns; c++ {
			placeholders[c] = fmt.Sprintf("$%d", base+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")

		var label string
		var pct *float64
		if l.MarketScore != nil {
			label = l.MarketScore.Label
			pct = l.MarketScore.PctVsAvg
		}

		valueArgs = append(valueArgs,
			l.ID, l.SourceSite, l.Title, l.PriceRaw,
			nullableInt(l.PriceMonthly), l.PriceConfidence,
			l.Suburb, l.Location, l.PropertyType, nullableInt(l.Bedrooms),
			strings.Join(l.Contacts.Phones, ";"), strings.Join(l.Contacts.Emails, ";"),
			l.IsVerified, l.IsMiddleman,
			label, nullableFloat(pct),
			l.URL, l.ScrapedAt,
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO listings (
			listing_id, source_site, title, price_raw, price_monthly,
			price_confidence, suburb, location, property_type, bedrooms,
			phones, emails, is_verified, is_middleman, market_label,
			pct_vs_avg, url, scraped_at
		)
		VALUES %s
		ON CONFLICT (listing_id) DO NOTHING
	`, strings.Join(valueStrings, ","))

	_, err := pw.db.Exec(query, valueArgs...)
	return err
}

// Close releases the database connection pool.
func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

// FetchAll retrieves all stored listings, most recent first.
func (pw *PostgresWriter) FetchAll() ([]*models.Listing, error) {
	rows, err := pw.db.Query(`
		SELECT listing_id, source_site, title, price_raw, price_monthly,
		       price_confidence, suburb, location, property_type, bedrooms,
		       phones, emails, is_verified, is_middleman, market_label,
		       pct_vs_avg, url, scraped_at
		FROM listings
		ORDER BY scraped_at DESC, listing_id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch all: %w", err)
	}
	defer rows.Close()

	var listings []*models.Listing
	for rows.Next() {
		l := &models.Listing{}
		var priceMonthly, bedrooms sql.NullInt64
		var pct sql.NullFloat64
		var phones, emails, label string

		if err := rows.Scan(
			&l.ID, &l.SourceSite, &l.Title, &l.PriceRaw, &priceMonthly,
			&l.PriceConfidence, &l.Suburb, &l.Location, &l.PropertyType, &bedrooms,
			&phones, &emails, &l.IsVerified, &l.IsMiddleman, &label,
			&pct, &l.URL, &l.ScrapedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}

		if priceMonthly.Valid {
			v := int(priceMonthly.Int64)
			l.PriceMonthly = &v
		}
		if bedrooms.Valid {
			v := int(bedrooms.Int64)
			l.Bedrooms = &v
		}
		if phones != "" {
			l.Contacts.Phones = strings.Split(phones, ";")
		}
		if emails != "" {
			l.Contacts.Emails = strings.Split(emails, ";")
		}
		if label != "" {
			l.MarketScore = &models.MarketScore{Label: label}
			if pct.Valid {
				v := pct.Float64
				l.MarketScore.PctVsAvg = &v
			}
		}

		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
