package services

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"png-rentals/models"
	"png-rentals/utils"
)

func mkListing(id, source, suburb string, price int, ptype string, beds int, verified bool) *models.Listing {
	l := &models.Listing{
		ID:           id,
		SourceSite:   source,
		Suburb:       suburb,
		PropertyType: ptype,
		IsVerified:   verified,
		URL:          "https://example.com/" + id,
	}
	if price > 0 {
		l.PriceMonthly = &price
	}
	if beds > 0 {
		l.Bedrooms = &beds
	}
	return l
}

func ids(listings []*models.Listing) []string {
	out := make([]string, 0, len(listings))
	for _, l := range listings {
		out = append(out, l.ID)
	}
	return out
}

func TestUnifyExactDuplicateFirstWins(t *testing.T) {
	d := NewDeduplicator(utils.NewNopLogger())

	a := mkListing("same-id", "Hausples", "Waigani", 4000, "House", 3, true)
	b := mkListing("same-id", "Facebook Marketplace", "Waigani", 4000, "House", 3, false)

	got := d.Unify([]*models.Listing{a, b})
	if len(got) != 1 {
		t.Fatalf("got %d listings; want 1", len(got))
	}
	if got[0].SourceSite != "Hausples" {
		t.Errorf("kept %q; first occurrence must win", got[0].SourceSite)
	}
}

func TestUnifyVerifiedReplacesUnverified(t *testing.T) {
	d := NewDeduplicator(utils.NewNopLogger())

	social := mkListing("fb-1", "Facebook Marketplace", "Boroko", 2167, "House", 3, false)
	formal := mkListing("hp-1", "Hausples", "Boroko", 2167, "House", 3, true)
	other := mkListing("other", "Hausples", "Gordons", 6000, "House", 4, true)

	// Unverified arrives first; the verified duplicate must supersede it.
	got := d.Unify([]*models.Listing{social, other, formal})
	want := []string{"other", "hp-1"}
	if diff := cmp.Diff(want, ids(got)); diff != "" {
		t.Errorf("unverified-first order (-want +got):\n%s", diff)
	}

	// Verified first: the unverified duplicate is simply dropped.
	social2 := mkListing("fb-1", "Facebook Marketplace", "Boroko", 2167, "House", 3, false)
	formal2 := mkListing("hp-1", "Hausples", "Boroko", 2167, "House", 3, true)
	got = d.Unify([]*models.Listing{formal2, social2})
	want = []string{"hp-1"}
	if diff := cmp.Diff(want, ids(got)); diff != "" {
		t.Errorf("verified-first order (-want +got):\n%s", diff)
	}
}

func TestUnifyVerifiedDoesNotReplaceVerified(t *testing.T) {
	d := NewDeduplicator(utils.NewNopLogger())

	a := mkListing("a", "Hausples", "Boroko", 2167, "House", 3, true)
	b := mkListing("b", "MarketMeri", "Boroko", 2167, "House", 3, true)

	got := d.Unify([]*models.Listing{a, b})
	if len(got) != 1 || got[0].ID != "a" {
		t.Errorf("got %v; want only the first verified listing", ids(got))
	}
}

func TestUnifyDifferentFuzzyKeysKept(t *testing.T) {
	d := NewDeduplicator(utils.NewNopLogger())

	listings := []*models.Listing{
		mkListing("a", "Hausples", "Boroko", 2167, "House", 3, true),
		mkListing("b", "Hausples", "Boroko", 2167, "House", 4, true),      // bedrooms differ
		mkListing("c", "Hausples", "Boroko", 2500, "House", 3, true),      // price differs
		mkListing("d", "Hausples", "Waigani", 2167, "House", 3, true),     // suburb differs
		mkListing("e", "Hausples", "Boroko", 2167, "Apartment", 3, true),  // type differs
	}

	got := d.Unify(listings)
	if len(got) != 5 {
		t.Errorf("got %d listings; want all 5 kept", len(got))
	}
}

func TestUnifySparseRecordsNeverFuzzyMatched(t *testing.T) {
	d := NewDeduplicator(utils.NewNopLogger())

	// Neither has a suburb or price; they must both survive even though
	// their fuzzy keys would collide.
	a := mkListing("sparse-1", "Facebook Marketplace", "", 0, "", 0, false)
	b := mkListing("sparse-2", "Facebook Marketplace", "", 0, "", 0, false)

	got := d.Unify([]*models.Listing{a, b})
	if len(got) != 2 {
		t.Errorf("got %d listings; sparse records must only dedup by id", len(got))
	}
}

func TestUnifyPreservesArrivalOrder(t *testing.T) {
	d := NewDeduplicator(utils.NewNopLogger())

	var in []*models.Listing
	for i := 0; i < 6; i++ {
		in = append(in, mkListing(fmt.Sprintf("l-%d", i), "Hausples", "Boroko", 2000+i*100, "House", 3, true))
	}

	got := d.Unify(in)
	want := []string{"l-0", "l-1", "l-2", "l-3", "l-4", "l-5"}
	if diff := cmp.Diff(want, ids(got)); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
}
