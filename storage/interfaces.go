package storage

import "png-rentals/models"

// ListingWriter is the interface any listing sink must satisfy.
type ListingWriter interface {
	Write(listings []*models.Listing) error
	Close() error
}

// ListingSource is the interface for reading back persisted listings,
// used by the API server when serving from a database.
type ListingSource interface {
	FetchAll() ([]*models.Listing, error)
}
