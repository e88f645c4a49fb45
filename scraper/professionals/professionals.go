// Package professionals scrapes The Professionals PNG, a franchised agency
// portal with a conventional server-rendered listing grid. Plain HTTP
// crawling is enough here; no browser is involved.
package professionals

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocolly/colly"
	"go.uber.org/zap"

	"png-rentals/models"
	"png-rentals/utils"
)

const (
	rentURL    = "https://theprofessionals.com.pg/rent/"
	sourceSite = "The Professionals"

	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Card markup variants seen across the site's themes.
var cardSelectors = []string{
	"article.property-item",
	"div.property-item",
	"div[class*='listing-item']",
	"div.item-body",
}

var nextSelectors = []string{
	"a[rel='next']",
	"ul.pagination a.next",
	"a.page-numbers.next",
}

// Collector crawls the rent listing pages.
type Collector struct {
	maxPages    int
	startURL    string
	domains     []string
	randomDelay time.Duration
	logger      *zap.SugaredLogger
}

// New creates a collector bounded to maxPages result pages.
func New(maxPages int, logger *zap.SugaredLogger) *Collector {
	if maxPages < 1 {
		maxPages = 1
	}
	return &Collector{
		maxPages:    maxPages,
		startURL:    rentURL,
		domains:     []string{"theprofessionals.com.pg", "www.theprofessionals.com.pg"},
		randomDelay: 2 * time.Second,
		logger:      logger,
	}
}

// Name returns the source name used in manifests and listings.
func (c *Collector) Name() string { return sourceSite }

// Verified is true: listings come from a licensed agency network.
func (c *Collector) Verified() bool { return true }

// Collect crawls the listing pages and returns raw records. Page fetch
// errors after the first page leave the partial result intact.
func (c *Collector) Collect(ctx context.Context) ([]*models.RawRecord, error) {
	crawler := colly.NewCollector(
		colly.AllowedDomains(c.domains...),
		colly.Async(true),
		colly.UserAgent(userAgent),
	)
	_ = crawler.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 2,
		RandomDelay: c.randomDelay,
	})

	seen := utils.NewURLSet()
	var mu sync.Mutex
	var records []*models.RawRecord
	var pagesVisited int32
	var firstErr error

	crawler.OnRequest(func(r *colly.Request) {
		select {
		case <-ctx.Done():
			r.Abort()
		default:
		}
	})

	// Pages are counted as they are fetched; a results page can carry more
	// than one next-link variant, and those must not shorten the crawl.
	crawler.OnResponse(func(r *colly.Response) {
		atomic.AddInt32(&pagesVisited, 1)
	})

	handleCard := func(e *colly.HTMLElement) {
		rec := parseCard(e)
		if rec == nil || !seen.Add(rec.URL) {
			return
		}
		mu.Lock()
		records = append(records, rec)
		mu.Unlock()
	}
	for _, sel := range cardSelectors {
		crawler.OnHTML(sel, handleCard)
	}

	for _, sel := range nextSelectors {
		crawler.OnHTML(sel, func(e *colly.HTMLElement) {
			if atomic.LoadInt32(&pagesVisited) >= int32(c.maxPages) {
				return
			}
			next := e.Request.AbsoluteURL(e.Attr("href"))
			if next != "" {
				// Re-visits of an already queued URL are dropped by the
				// crawler itself.
				_ = e.Request.Visit(next)
			}
		})
	}

	crawler.OnError(func(r *colly.Response, err error) {
		c.logger.Warnf("[professionals] fetch %s failed: %v", r.Request.URL, err)
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	})

	c.logger.Infof("[professionals] starting — %d pages max", c.maxPages)
	if err := crawler.Visit(c.startURL); err != nil {
		return nil, fmt.Errorf("professionals: start page: %w", err)
	}
	crawler.Wait()

	c.logger.Infof("[professionals] complete — %d raw records", len(records))
	if len(records) == 0 && firstErr != nil {
		return nil, fmt.Errorf("professionals: no listings collected: %w", firstErr)
	}
	return records, nil
}

func parseCard(e *colly.HTMLElement) *models.RawRecord {
	title := firstChildText(e, "h2 a", "h3 a", "h2", "h3", ".property-title")
	priceRaw := firstChildText(e, "[class*='price']", ".price", "span[class*='amount']")
	location := firstChildText(e, "[class*='location']", "[class*='address']", ".suburb")

	href := firstChildAttr(e, "href", "h2 a", "h3 a", "a[href*='/property/']", "a[href*='/listing']", "a[href]")
	if href == "" {
		return nil
	}
	absolute := e.Request.AbsoluteURL(href)
	if absolute == "" {
		return nil
	}

	if title == "" {
		title = sourceSite + " Listing"
	}

	return &models.RawRecord{
		SourceSite:  sourceSite,
		Title:       title,
		RawPrice:    priceRaw,
		RawLocation: location,
		URL:         absolute,
		IsVerified:  true,
		RawText:     strings.TrimSpace(title + " " + priceRaw + " " + location),
		ScrapedAt:   time.Now().UTC(),
	}
}

func firstChildText(e *colly.HTMLElement, selectors ...string) string {
	for _, sel := range selectors {
		if t := strings.TrimSpace(e.ChildText(sel)); t != "" {
			return t
		}
	}
	return ""
}

func firstChildAttr(e *colly.HTMLElement, attr string, selectors ...string) string {
	for _, sel := range selectors {
		if v := strings.TrimSpace(e.ChildAttr(sel, attr)); v != "" {
			return v
		}
	}
	return ""
}
