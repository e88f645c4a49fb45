// Package hausples scrapes the Hausples rental portal, the largest formal
// property site in PNG. The listing grid is rendered client-side, so pages
// are driven through a headless browser.
package hausples

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"png-rentals/models"
	"png-rentals/utils"
)

const (
	rentURL    = "https://www.hausples.com.pg/rent/"
	sourceSite = "Hausples"

	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Collector drives the Hausples search results through a headless browser.
type Collector struct {
	maxPages  int
	headless  bool
	chromeBin string
	logger    *zap.SugaredLogger
	seen      *utils.URLSet
}

// New creates a ready-to-use Hausples collector.
func New(maxPages int, headless bool, chromeBin string, logger *zap.SugaredLogger) *Collector {
	if maxPages < 1 {
		maxPages = 1
	}
	return &Collector{
		maxPages:  maxPages,
		headless:  headless,
		chromeBin: chromeBin,
		logger:    logger,
		seen:      utils.NewURLSet(),
	}
}

// Name returns the source name used in manifests and listings.
func (c *Collector) Name() string { return sourceSite }

// Verified is true: Hausples is a formal portal with agency-vetted listings.
func (c *Collector) Verified() bool { return true }

// Collect walks the rent search pages and returns raw records. A page
// failure after page one keeps whatever was already collected.
func (c *Collector) Collect(ctx context.Context) ([]*models.RawRecord, error) {
	chromeBin := utils.FindChromeBinary(c.chromeBin)
	c.logger.Infof("[hausples] starting — %d pages max, browser: %s", c.maxPages, chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent(userAgent),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	// Suppress chromedp log noise
	silentCtx, cancelSilent := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelSilent()
	allocCtx = silentCtx

	var records []*models.RawRecord
	for page := 1; page <= c.maxPages; page++ {
		pageURL := rentURL
		if page > 1 {
			pageURL = fmt.Sprintf("%s?page=%d", rentURL, page)
		}
		c.logger.Infof("[hausples] scraping page %d — %s", page, pageURL)

		pageRecords, err := c.scrapePage(ctx, allocCtx, pageURL, page)
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("hausples: first page failed: %w", err)
			}
			c.logger.Warnf("[hausples] page %d failed, keeping %d records: %v", page, len(records), err)
			break
		}
		if len(pageRecords) == 0 {
			c.logger.Infof("[hausples] page %d returned 0 cards — stopping", page)
			break
		}

		records = append(records, pageRecords...)
		c.logger.Infof("[hausples] page %d done — %d records total", page, len(records))
	}

	c.logger.Infof("[hausples] complete — %d raw records", len(records))
	return records, nil
}

type cardData struct {
	Title    string `json:"title"`
	Price    string `json:"price"`
	Location string `json:"location"`
	URL      string `json:"url"`
}

// scrapePage loads one search results page and extracts the listing cards.
func (c *Collector) scrapePage(ctx, allocCtx context.Context, pageURL string, pageNum int) ([]*models.RawRecord, error) {
	var records []*models.RawRecord

	err := utils.NavigationRetry(ctx, c.logger, fmt.Sprintf("hausples-page-%d", pageNum), func() error {
		tabCtx, cancel := chromedp.NewContext(allocCtx)
		defer cancel()

		tabCtx, cancelTimeout := context.WithTimeout(tabCtx, 90*time.Second)
		defer cancelTimeout()

		var cards []cardData

		err := chromedp.Run(tabCtx,
			chromedp.Navigate(pageURL),
			chromedp.Sleep(5*time.Second),

			// Scroll so lazily rendered cards attach
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight / 2)`, nil),
			chromedp.Sleep(2*time.Second),
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(2*time.Second),

			chromedp.Evaluate(extractCardsJS, &cards),
		)
		if err != nil {
			return fmt.Errorf("chromedp page scrape: %w", err)
		}

		c.logger.Debugf("[hausples] page %d — found %d cards", pageNum, len(cards))

		records = records[:0]
		for _, card := range cards {
			if card.URL == "" {
				continue
			}
			if !c.seen.Add(card.URL) {
				c.logger.Debugf("[hausples] skipping duplicate: %s", card.URL)
				continue
			}
			records = append(records, &models.RawRecord{
				SourceSite:  sourceSite,
				Title:       card.Title,
				RawPrice:    card.Price,
				RawLocation: card.Location,
				URL:         card.URL,
				IsVerified:  true,
				RawText:     card.Title + " " + card.Price + " " + card.Location,
				ScrapedAt:   time.Now().UTC(),
			})
		}
		return nil
	})

	return records, err
}

// extractCardsJS runs in the page and returns every property card it can
// recognize. Selector cascades cover the grid markup plus a link-walking
// fallback for redesigns.
const extractCardsJS = `
	(function() {
		var results = [];

		var cardSelectors = [
			'article[class*="property"]',
			'div[class*="property-card"]',
			'div[class*="search-result"]',
			'div[class*="listing-card"]',
			'[itemtype*="Residence"]'
		];

		var cards = [];
		for (var si = 0; si < cardSelectors.length; si++) {
			cards = document.querySelectorAll(cardSelectors[si]);
			if (cards.length > 0) break;
		}

		// Fallback: walk property links and read their card containers
		if (cards.length === 0) {
			var links = document.querySelectorAll('a[href*="/property/"], a[href*="/listings/"]');
			var seen = {};
			for (var li = 0; li < links.length; li++) {
				var link = links[li];
				if (!link.href || seen[link.href]) continue;
				seen[link.href] = true;

				var cardDiv = link.closest('article') || link.closest('div[class*="card"]') || link.closest('div');
				var innerText = cardDiv ? cardDiv.innerText : link.innerText;
				var lines = innerText.split('\n').map(function(l){return l.trim();}).filter(Boolean);

				results.push({
					title:    lines[0] || '',
					price:    lines.find(function(l){return l.match(/K\s*[\d,]+|PGK/i);}) || '',
					location: lines[1] || '',
					url:      link.href
				});
			}
			return results;
		}

		var seen = {};
		for (var i = 0; i < cards.length; i++) {
			var card = cards[i];

			var titleEl = card.querySelector('h2 a') || card.querySelector('h3 a') ||
			              card.querySelector('h2') || card.querySelector('h3') ||
			              card.querySelector('[class*="title"]');
			var title = titleEl ? titleEl.innerText.trim() : '';

			var priceEl = card.querySelector('[class*="price"]') ||
			              card.querySelector('span[class*="amount"]');
			var price = priceEl ? priceEl.innerText.trim() : '';

			var locEl = card.querySelector('[class*="location"]') ||
			            card.querySelector('[class*="address"]') ||
			            card.querySelector('[class*="suburb"]');
			var location = locEl ? locEl.innerText.trim() : '';

			var linkEl = card.querySelector('a[href*="/property/"]') ||
			             card.querySelector('a[href*="/listings/"]') ||
			             card.querySelector('a[href]');
			var url = linkEl ? linkEl.href : '';

			if (!url || seen[url]) continue;
			seen[url] = true;

			results.push({title: title, price: price, location: location, url: url});
		}
		return results;
	})()
`
