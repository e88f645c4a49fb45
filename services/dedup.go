package services

import (
	"strings"

	"go.uber.org/zap"

	"png-rentals/models"
)

// fuzzyKey is the approximate identity of a listing across sources. It
// deliberately omits the title and raw price text: two listings with the
// same suburb, monthly price, type, and bedroom count are treated as the
// same property. That can merge genuinely distinct properties; it is a
// known precision/recall tradeoff.
type fuzzyKey struct {
	suburb   string
	price    int
	hasPrice bool
	ptype    string
	bedrooms int
	hasBeds  bool
}

func fuzzyKeyOf(l *models.Listing) fuzzyKey {
	k := fuzzyKey{
		suburb: strings.ToLower(l.Suburb),
		ptype:  strings.ToLower(l.PropertyType),
	}
	if l.PriceMonthly != nil {
		k.price = *l.PriceMonthly
		k.hasPrice = true
	}
	if l.Bedrooms != nil {
		k.bedrooms = *l.Bedrooms
		k.hasBeds = true
	}
	return k
}

// Deduplicator resolves duplicate listings across sources using the exact
// id key and the fuzzy identity key, with verified sources taking priority
// over social/marketplace data.
type Deduplicator struct {
	logger *zap.SugaredLogger
}

// NewDeduplicator creates a Deduplicator with the given logger.
func NewDeduplicator(logger *zap.SugaredLogger) *Deduplicator {
	return &Deduplicator{logger: logger}
}

// Unify folds the listings into a duplicate-free collection, in order of
// arrival.
//
// Exact rule: the first occurrence of an id wins; later exact duplicates
// are dropped unconditionally.
//
// Fuzzy rule: the first listing with a given fuzzy key is kept. When a
// verified listing collides with a kept unverified one, the verified
// listing replaces it (removed and re-appended at the current position);
// any other collision is dropped.
//
// Listings with neither a suburb nor a price are too sparse to fuzzy-match
// and are only deduplicated by exact id.
func (d *Deduplicator) Unify(listings []*models.Listing) []*models.Listing {
	seenIDs := make(map[string]struct{}, len(listings))
	seenFuzzy := make(map[fuzzyKey]*models.Listing, len(listings))
	unique := make([]*models.Listing, 0, len(listings))

	for _, l := range listings {
		if _, dup := seenIDs[l.ID]; dup {
			d.logger.Debugf("[dedup] exact duplicate dropped: %s", l.URL)
			continue
		}
		seenIDs[l.ID] = struct{}{}

		if l.Suburb == "" && l.PriceMonthly == nil {
			// Too sparse for a meaningful fuzzy key; keep as-is.
			unique = append(unique, l)
			continue
		}

		key := fuzzyKeyOf(l)
		if existing, dup := seenFuzzy[key]; dup {
			if l.IsVerified && !existing.IsVerified {
				d.logger.Debugf("[dedup] verified %s supersedes %s", l.SourceSite, existing.SourceSite)
				seenFuzzy[key] = l
				unique = removeByID(unique, existing.ID)
				unique = append(unique, l)
			} else {
				d.logger.Debugf("[dedup] fuzzy duplicate dropped: %s (%s)", l.URL, l.SourceSite)
			}
			continue
		}

		seenFuzzy[key] = l
		unique = append(unique, l)
	}

	d.logger.Infof("[dedup] %d → %d listings (%d removed)",
		len(listings), len(unique), len(listings)-len(unique))
	return unique
}

func removeByID(listings []*models.Listing, id string) []*models.Listing {
	out := listings[:0]
	for _, l := range listings {
		if l.ID != id {
			out = append(out, l)
		}
	}
	return out
}
