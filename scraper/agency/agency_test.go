package agency

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"png-rentals/config"
	"png-rentals/utils"
)

const samplePage = `
<html><body>
  <div class="listings">
    <article class="property-item">
      <h2><a href="/property/42">3 Bedroom House</a></h2>
      <span class="price">K4,500 per month</span>
      <p class="location">Waigani, Port Moresby</p>
    </article>
    <article class="property-item">
      <h3><a href="https://agency.example/property/43">Apartment</a></h3>
      <div class="listing-price">K2,000/month</div>
    </article>
    <article class="property-item">
      <p>No link in this card</p>
    </article>
  </div>
</body></html>`

func newTestCollector() *Collector {
	return New(config.SiteConfig{
		Name:     "Test Realty",
		StartURL: "https://agency.example/rent",
		Verified: true,
		MaxPages: 1,
	}, utils.NewNopLogger())
}

func parseSample(t *testing.T) (*Collector, *goquery.Document, *url.URL) {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(samplePage))
	if err != nil {
		t.Fatal(err)
	}
	base, _ := url.Parse("https://agency.example/rent")
	return newTestCollector(), doc, base
}

func TestFindCards(t *testing.T) {
	c, doc, _ := parseSample(t)
	cards := c.findCards(doc)
	if cards == nil || cards.Length() != 3 {
		t.Fatalf("found %v cards; want 3", cards)
	}
}

func TestParseCard(t *testing.T) {
	c, doc, base := parseSample(t)
	cards := c.findCards(doc)

	first := c.parseCard(cards.Eq(0), base)
	if first == nil {
		t.Fatal("first card did not parse")
	}
	if first.Title != "3 Bedroom House" {
		t.Errorf("title = %q", first.Title)
	}
	if first.RawPrice != "K4,500 per month" {
		t.Errorf("price = %q", first.RawPrice)
	}
	if first.RawLocation != "Waigani, Port Moresby" {
		t.Errorf("location = %q", first.RawLocation)
	}
	if first.URL != "https://agency.example/property/42" {
		t.Errorf("relative href not resolved: %q", first.URL)
	}
	if !first.IsVerified || first.SourceSite != "Test Realty" {
		t.Errorf("source fields = %q verified=%v", first.SourceSite, first.IsVerified)
	}

	second := c.parseCard(cards.Eq(1), base)
	if second == nil || second.URL != "https://agency.example/property/43" {
		t.Errorf("absolute href mishandled: %+v", second)
	}

	// A card with no link is unusable and must be skipped.
	if third := c.parseCard(cards.Eq(2), base); third != nil {
		t.Errorf("linkless card parsed as %+v; want nil", third)
	}
}

func TestFindCardsPerSiteOverride(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<html><body><div class="weird-card"><a href="/p/1">x</a></div></body></html>`))
	if err != nil {
		t.Fatal(err)
	}

	c := New(config.SiteConfig{
		Name:          "Override Realty",
		StartURL:      "https://override.example/rent",
		CardSelectors: []string{".weird-card"},
		MaxPages:      1,
	}, utils.NewNopLogger())

	cards := c.findCards(doc)
	if cards == nil || cards.Length() != 1 {
		t.Fatalf("override selector found %v cards; want 1", cards)
	}
}
