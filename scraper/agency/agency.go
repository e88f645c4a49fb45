// Package agency implements a config-driven collector for small PNG agency
// sites. One implementation serves every registered agency: the sites share
// enough markup conventions that an ordered cascade of generic selectors,
// with optional per-site overrides, finds the listing cards.
package agency

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"png-rentals/config"
	"png-rentals/models"
	"png-rentals/utils"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Generic selector cascades, evaluated in order until one matches.
var (
	genericCards = []string{
		"article[class*='property']",
		".property-card",
		".property-item",
		".listing-item",
		"div[class*='listing']",
		"li[class*='property']",
		".item-body",
	}
	genericTitles = []string{
		"h2 a", "h3 a", "h2", "h3",
		".property-title", "[class*='title']",
	}
	genericPrices = []string{
		"[class*='price']", ".price", "span[class*='amount']",
	}
	genericLocations = []string{
		"[class*='location']", "[class*='address']",
		"span[class*='suburb']", "p[class*='address']",
	}
	genericLinks = []string{
		"h2 a[href]", "h3 a[href]",
		".property-title a[href]",
		"a[href*='/property/']", "a[href*='/listing']",
		"a[href*='/rent']", "a[href*='/real-estate']",
		"article > a[href]", ".item > a[href]",
	}
)

// Collector scrapes one agency site described by a SiteConfig.
type Collector struct {
	cfg     config.SiteConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.SugaredLogger
}

// New creates a collector for the given site. Page fetches are paced to
// one every two seconds to stay polite to small agency servers.
func New(cfg config.SiteConfig, logger *zap.SugaredLogger) *Collector {
	return &Collector{
		cfg:     cfg,
		client:  &http.Client{Timeout: 35 * time.Second},
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
		logger:  logger,
	}
}

// Name returns the configured source name.
func (c *Collector) Name() string { return c.cfg.Name }

// Verified reports whether this agency is a formal (trusted) source.
func (c *Collector) Verified() bool { return c.cfg.Verified }

// Collect walks the site's listing pages and returns raw records. A fetch
// failure after page one returns the partial result rather than an error.
func (c *Collector) Collect(ctx context.Context) ([]*models.RawRecord, error) {
	seen := utils.NewURLSet()
	var records []*models.RawRecord

	base, err := url.Parse(c.cfg.StartURL)
	if err != nil {
		return nil, fmt.Errorf("%s: bad start url: %w", c.cfg.Name, err)
	}

	for page := 1; page <= c.cfg.MaxPages; page++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return records, err
		}

		pageURL := c.cfg.StartURL
		if page > 1 {
			pageURL = fmt.Sprintf("%s?page=%d", c.cfg.StartURL, page)
		}
		c.logger.Infof("[%s] page %d/%d → %s", c.cfg.Name, page, c.cfg.MaxPages, pageURL)

		var doc *goquery.Document
		err := utils.NavigationRetry(ctx, c.logger, fmt.Sprintf("%s-page-%d", c.cfg.Name, page), func() error {
			var fetchErr error
			doc, fetchErr = c.fetch(ctx, pageURL)
			return fetchErr
		})
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("%s: first page unreachable: %w", c.cfg.Name, err)
			}
			c.logger.Warnf("[%s] page %d unreachable, keeping %d records collected so far",
				c.cfg.Name, page, len(records))
			break
		}

		cards := c.findCards(doc)
		if cards == nil || cards.Length() == 0 {
			c.logger.Infof("[%s] no property cards on page %d — stopping pagination", c.cfg.Name, page)
			break
		}

		before := len(records)
		cards.Each(func(_ int, card *goquery.Selection) {
			rec := c.parseCard(card, base)
			if rec != nil && seen.Add(rec.URL) {
				records = append(records, rec)
			}
		})
		c.logger.Infof("[%s] page %d: %d cards, running total %d",
			c.cfg.Name, page, len(records)-before, len(records))
	}

	return records, nil
}

func (c *Collector) fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

func (c *Collector) findCards(doc *goquery.Document) *goquery.Selection {
	selectors := c.cfg.CardSelectors
	if len(selectors) == 0 {
		selectors = genericCards
	}
	for _, sel := range selectors {
		if cards := doc.Find(sel); cards.Length() > 0 {
			c.logger.Debugf("[%s] selector %q matched %d cards", c.cfg.Name, sel, cards.Length())
			return cards
		}
	}
	return nil
}

func (c *Collector) parseCard(card *goquery.Selection, base *url.URL) *models.RawRecord {
	title := firstText(card, genericTitles)
	priceRaw := firstText(card, genericPrices)
	location := firstText(card, genericLocations)

	href := firstAttr(card, genericLinks, "href")
	if href == "" {
		href, _ = card.Find("a[href]").First().Attr("href")
		href = strings.TrimSpace(href)
	}
	if href == "" {
		return nil
	}

	ref, err := url.Parse(href)
	if err != nil {
		return nil
	}
	absolute := base.ResolveReference(ref).String()

	if title == "" {
		if location != "" {
			title = "Property — " + location
		} else {
			title = c.cfg.Name + " Listing"
		}
	}

	return &models.RawRecord{
		SourceSite:  c.cfg.Name,
		Title:       title,
		RawPrice:    priceRaw,
		RawLocation: location,
		URL:         absolute,
		IsVerified:  c.cfg.Verified,
		RawText:     strings.TrimSpace(title + " " + priceRaw + " " + location),
		ScrapedAt:   time.Now().UTC(),
	}
}

func firstText(sel *goquery.Selection, selectors []string) string {
	for _, s := range selectors {
		if t := strings.TrimSpace(sel.Find(s).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

func firstAttr(sel *goquery.Selection, selectors []string, attr string) string {
	for _, s := range selectors {
		if v, ok := sel.Find(s).First().Attr(attr); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}
