package services

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"png-rentals/models"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw      string
		want     int // 0 means nil expected
		wantConf string
	}{
		{"K500 per week", 2167, models.PriceConfidenceHigh},
		{"K2,500 per month", 2500, models.PriceConfidenceHigh},
		{"80 per day", 2400, models.PriceConfidenceHigh},
		{"K1000 per fortnight", 2167, models.PriceConfidenceHigh},
		{"K24000 per year", 2000, models.PriceConfidenceHigh},
		{"PGK 600 weekly", 2600, models.PriceConfidenceHigh},
		{"450 kina a week", 1950, models.PriceConfidenceHigh},

		// No period: magnitude heuristic, medium confidence.
		{"1200", 5200, models.PriceConfidenceMedium},
		{"K3500", 3500, models.PriceConfidenceMedium},

		// A later match with an explicit period beats an earlier one without.
		{"K5000 deposit K450 weekly", 1950, models.PriceConfidenceHigh},

		// Out-of-range and non-numeric inputs yield no price.
		{"25", 0, models.PriceConfidenceLow},
		{"900000", 0, models.PriceConfidenceLow},
		{"call 71234567", 0, models.PriceConfidenceLow},
		{"negotiable", 0, models.PriceConfidenceLow},
		{"", 0, models.PriceConfidenceLow},
	}

	for _, tt := range tests {
		got, _, conf := ParsePrice(tt.raw)
		if tt.want == 0 {
			if got != nil {
				t.Errorf("ParsePrice(%q) = %d; want nil", tt.raw, *got)
			}
		} else if got == nil || *got != tt.want {
			t.Errorf("ParsePrice(%q) = %v; want %d", tt.raw, got, tt.want)
		}
		if conf != tt.wantConf {
			t.Errorf("ParsePrice(%q) confidence = %q; want %q", tt.raw, conf, tt.wantConf)
		}
	}
}

func TestDetectSuburb(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"3 bedroom house in Boroko", "Boroko"},
		{"Nice place at Tokerara", "Tokarara"}, // alias covers the common typo
		{"6 mile, near the market", "Six Mile"},
		{"NCD area only", "Port Moresby"},
		{"available in waigani and boroko", "Waigani"}, // first alias in list order wins
		{"pomade and other goods", ""},                 // no word-boundary match
		{"somewhere in Lae city", "Lae"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := DetectSuburb(tt.text); got != tt.want {
			t.Errorf("DetectSuburb(%q) = %q; want %q", tt.text, got, tt.want)
		}
	}
}

func TestClassifyType(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Beautiful family home", "House"},
		{"self contained unit", "Apartment"},
		{"house with spare room", "House"},        // House outranks Room
		{"studio apartment in town", "Apartment"}, // Apartment outranks Studio
		{"bedsit available", "Room"},
		{"vacant land for lease", "Land"},
		{"warehouse space", "Commercial"},
		{"secure compound", "Compound"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := ClassifyType(tt.text); got != tt.want {
			t.Errorf("ClassifyType(%q) = %q; want %q", tt.text, got, tt.want)
		}
	}
}

func TestExtractBedrooms(t *testing.T) {
	tests := []struct {
		text string
		want int // 0 means nil expected
	}{
		{"3 bedroom house", 3},
		{"4 beds, 2 baths", 4},
		{"Bedrooms: 2", 2},
		{"25 bedrooms", 0}, // out of plausible range
		{"no bedrooms mentioned", 0},
		{"", 0},
	}

	for _, tt := range tests {
		got := ExtractBedrooms(tt.text)
		if tt.want == 0 {
			if got != nil {
				t.Errorf("ExtractBedrooms(%q) = %d; want nil", tt.text, *got)
			}
		} else if got == nil || *got != tt.want {
			t.Errorf("ExtractBedrooms(%q) = %v; want %d", tt.text, got, tt.want)
		}
	}
}

func TestExtractContacts(t *testing.T) {
	text := "Call 71234567 or 71234567. Landline 325 4321. Email jon@example.com or jon@example.com"
	got := ExtractContacts(text)

	wantPhones := []string{"71234567", "325 4321"}
	if diff := cmp.Diff(wantPhones, got.Phones); diff != "" {
		t.Errorf("phones mismatch (-want +got):\n%s", diff)
	}
	wantEmails := []string{"jon@example.com"}
	if diff := cmp.Diff(wantEmails, got.Emails); diff != "" {
		t.Errorf("emails mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractContactsSameNumberDifferentShapes(t *testing.T) {
	// One mobile number written three ways plus a distinct landline. The
	// overlapping patterns must collapse to a single entry per number.
	text := "Call +675 7123 4567 or 7123 4567, also 71234567. Landline 325 4321."
	got := ExtractContacts(text)

	wantPhones := []string{"+675 7123 4567", "325 4321"}
	if diff := cmp.Diff(wantPhones, got.Phones); diff != "" {
		t.Errorf("phones mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectMiddleman(t *testing.T) {
	flagged, flags := DetectMiddleman("Contact the agent, small commission applies")
	if !flagged {
		t.Fatal("expected middleman flag")
	}
	if len(flags) != 2 {
		t.Errorf("flags = %v; want agent + commission", flags)
	}

	flagged, flags = DetectMiddleman("Direct from landlord, no fees")
	if flagged || flags != nil {
		t.Errorf("expected no flags, got %v", flags)
	}
}

func TestNormalizeScenario(t *testing.T) {
	text := "3 bedroom house in Boroko. K500 per week. Call 71234567."
	sig := Normalize(text, "", "")

	if sig.PriceMonthly == nil || *sig.PriceMonthly != 2167 {
		t.Errorf("price = %v; want 2167", sig.PriceMonthly)
	}
	if sig.PriceConfidence != models.PriceConfidenceHigh {
		t.Errorf("confidence = %q; want high", sig.PriceConfidence)
	}
	if sig.Suburb != "Boroko" {
		t.Errorf("suburb = %q; want Boroko", sig.Suburb)
	}
	if sig.PropertyType != "House" {
		t.Errorf("type = %q; want House", sig.PropertyType)
	}
	if sig.Bedrooms == nil || *sig.Bedrooms != 3 {
		t.Errorf("bedrooms = %v; want 3", sig.Bedrooms)
	}
	if len(sig.Contacts.Phones) != 1 || sig.Contacts.Phones[0] != "71234567" {
		t.Errorf("phones = %v; want [71234567]", sig.Contacts.Phones)
	}
	if sig.IsMiddleman {
		t.Error("scenario text should not be middleman-flagged")
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	text := "2 bedroom apartment in Gerehu, K400 weekly, agent fee applies, call 70001234"
	a := Normalize(text, "", "")
	b := Normalize(text, "", "")
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("Normalize is not deterministic (-first +second):\n%s", diff)
	}
}

func TestBuildListing(t *testing.T) {
	rec := &models.RawRecord{
		SourceSite: "Facebook Marketplace",
		Title:      "  3 bedroom   house ",
		RawPrice:   "K500 per week",
		URL:        "https://facebook.com/marketplace/item/1",
		IsVerified: false,
		RawText:    "3 bedroom house in Boroko. K500 per week. Call 71234567.",
		ScrapedAt:  time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}

	l := BuildListing(rec)

	if l.ID != models.ListingID(rec.URL, rec.RawPrice) {
		t.Errorf("id = %q; want hash of url+price", l.ID)
	}
	if l.Title != "3 bedroom house" {
		t.Errorf("title = %q; want collapsed whitespace", l.Title)
	}
	if l.PriceMonthly == nil || *l.PriceMonthly != 2167 {
		t.Errorf("price = %v; want 2167", l.PriceMonthly)
	}
	if l.Suburb != "Boroko" || l.PropertyType != "House" {
		t.Errorf("suburb/type = %q/%q; want Boroko/House", l.Suburb, l.PropertyType)
	}
	if l.MarketScore != nil {
		t.Error("BuildListing must not score; that is the scorer's job")
	}
}

func TestBuildListingTruncatesRawText(t *testing.T) {
	rec := &models.RawRecord{
		URL:     "https://example.com/1",
		RawText: strings.Repeat("x", 600),
	}
	l := BuildListing(rec)
	if len(l.RawText) != 500 {
		t.Errorf("raw text length = %d; want 500", len(l.RawText))
	}
}

func TestCollapseWhitespace(t *testing.T) {
	if got := CollapseWhitespace("  a \n b\t c "); got != "a b c" {
		t.Errorf("got %q; want %q", got, "a b c")
	}
}
