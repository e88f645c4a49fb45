// Package facebook collects rental posts from the Facebook Marketplace
// property feed. Marketplace is where most informal PNG rentals are posted,
// so despite the noise it is worth scanning; everything it yields is
// unverified and free-text.
package facebook

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"png-rentals/models"
	"png-rentals/utils"
)

const (
	marketplaceURL = "https://www.facebook.com/marketplace/category/propertyrentals"
	sourceSite     = "Facebook Marketplace"

	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	defaultScrollRounds = 8
)

// Collector scrolls the Marketplace property feed and harvests item cards.
type Collector struct {
	scrollRounds int
	headless     bool
	chromeBin    string
	logger       *zap.SugaredLogger
}

// New creates a Marketplace collector. scrollRounds controls how many
// scroll-and-settle cycles run before extraction; zero uses the default.
func New(scrollRounds int, headless bool, chromeBin string, logger *zap.SugaredLogger) *Collector {
	if scrollRounds <= 0 {
		scrollRounds = defaultScrollRounds
	}
	return &Collector{
		scrollRounds: scrollRounds,
		headless:     headless,
		chromeBin:    chromeBin,
		logger:       logger,
	}
}

// Name returns the source name used in manifests and listings.
func (c *Collector) Name() string { return sourceSite }

// Verified is false: Marketplace posts are unvetted free text.
func (c *Collector) Verified() bool { return false }

type itemData struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// Collect loads the property rentals feed, scrolls to populate it, and
// extracts the item cards. Hitting a login wall returns what was gathered
// plus an error so the run manifest records the source as failed.
func (c *Collector) Collect(ctx context.Context) ([]*models.RawRecord, error) {
	chromeBin := utils.FindChromeBinary(c.chromeBin)
	c.logger.Infof("[facebook] starting — %d scroll rounds, browser: %s", c.scrollRounds, chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.UserAgent(userAgent),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	silentCtx, cancelSilent := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelSilent()

	tabCtx, cancelTab := chromedp.NewContext(silentCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, 4*time.Minute)
	defer cancelTimeout()

	var currentURL string
	err := utils.NavigationRetry(ctx, c.logger, "facebook-marketplace", func() error {
		return chromedp.Run(tabCtx,
			chromedp.Navigate(marketplaceURL),
			chromedp.Sleep(6*time.Second),
			chromedp.Evaluate(`window.location.href`, &currentURL),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("facebook: feed unreachable: %w", err)
	}

	if strings.Contains(currentURL, "login") {
		return nil, fmt.Errorf("facebook: redirected to login, feed requires an authenticated session")
	}

	seen := utils.NewURLSet()
	var records []*models.RawRecord

	for round := 1; round <= c.scrollRounds; round++ {
		var items []itemData
		err := chromedp.Run(tabCtx,
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(3*time.Second),
			chromedp.Evaluate(extractItemsJS, &items),
		)
		if err != nil {
			c.logger.Warnf("[facebook] scroll round %d failed, keeping %d records: %v",
				round, len(records), err)
			return records, err
		}

		added := 0
		for _, item := range items {
			if item.URL == "" || !seen.Add(item.URL) {
				continue
			}
			rec := buildRecord(item)
			if rec != nil {
				records = append(records, rec)
				added++
			}
		}
		c.logger.Debugf("[facebook] round %d/%d: %d new items, %d total",
			round, c.scrollRounds, added, len(records))

		// Feed stopped growing; further scrolling only re-reads the same cards.
		if added == 0 && round > 2 {
			break
		}
	}

	c.logger.Infof("[facebook] complete — %d raw records", len(records))
	return records, nil
}

// buildRecord turns a marketplace card's text block into a raw record. The
// card text is line-oriented: usually price first, then title, then a
// location line.
func buildRecord(item itemData) *models.RawRecord {
	lines := splitLines(item.Text)
	if len(lines) == 0 {
		return nil
	}

	var price, title, location string
	for _, line := range lines {
		if price == "" && looksLikePrice(line) {
			price = line
			continue
		}
		if title == "" {
			title = line
			continue
		}
		if location == "" {
			location = line
		}
	}
	if title == "" {
		title = lines[0]
	}

	return &models.RawRecord{
		SourceSite:  sourceSite,
		Title:       title,
		RawPrice:    price,
		RawLocation: location,
		URL:         item.URL,
		IsVerified:  false,
		RawText:     strings.Join(lines, " "),
		ScrapedAt:   time.Now().UTC(),
	}
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func looksLikePrice(line string) bool {
	lower := strings.ToLower(line)
	if !strings.ContainsAny(line, "0123456789") {
		return false
	}
	return strings.Contains(lower, "k") || strings.Contains(lower, "pgk") ||
		strings.Contains(lower, "kina") || strings.HasPrefix(line, "$")
}

// extractItemsJS collects every marketplace item card currently attached to
// the feed. Cards are identified by their item permalink.
const extractItemsJS = `
	(function() {
		var results = [];
		var seen = {};
		var links = document.querySelectorAll('a[href*="/marketplace/item/"]');
		for (var i = 0; i < links.length; i++) {
			var link = links[i];
			var href = link.href ? link.href.split('?')[0] : '';
			if (!href || seen[href]) continue;
			seen[href] = true;

			var card = link.closest('div[data-testid]') || link;
			var text = (card.innerText || link.innerText || '').trim();
			if (!text) continue;

			results.push({text: text, url: href});
		}
		return results;
	})()
`
