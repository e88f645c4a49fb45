package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"png-rentals/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	// Listings priced at least this far above the suburb average are
	// surfaced on the middleman-flags endpoint.
	middlemanPctThreshold = 40.0
)

type listingsResponse struct {
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	Pages    int               `json:"pages"`
	Limit    int               `json:"limit"`
	Listings []*models.Listing `json:"listings"`
}

func (s *Server) handleListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filtered := filterListings(s.snapshot(), q)
	sortListings(filtered, q.Get("sort"), q.Get("order"))

	page := queryInt(q.Get("page"), 1)
	if page < 1 {
		page = 1
	}
	limit := queryInt(q.Get("limit"), defaultPageSize)
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	total := len(filtered)
	pages := (total + limit - 1) / limit
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	respondJSON(w, http.StatusOK, listingsResponse{
		Total:    total,
		Page:     page,
		Pages:    pages,
		Limit:    limit,
		Listings: filtered[start:end],
	})
}

func filterListings(listings []*models.Listing, q map[string][]string) []*models.Listing {
	get := func(key string) string {
		if v, ok := q[key]; ok && len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}

	suburb := get("suburb")
	source := get("source")
	ptype := get("type")
	verified := get("verified")
	minPrice := queryInt(get("min_price"), 0)
	maxPrice := queryInt(get("max_price"), 0)

	out := make([]*models.Listing, 0, len(listings))
	for _, l := range listings {
		if suburb != "" && !strings.EqualFold(l.Suburb, suburb) {
			continue
		}
		if source != "" && !strings.EqualFold(l.SourceSite, source) {
			continue
		}
		if ptype != "" && !strings.EqualFold(l.PropertyType, ptype) {
			continue
		}
		if verified != "" {
			want, err := strconv.ParseBool(verified)
			if err == nil && l.IsVerified != want {
				continue
			}
		}
		if minPrice > 0 && (l.PriceMonthly == nil || *l.PriceMonthly < minPrice) {
			continue
		}
		if maxPrice > 0 && (l.PriceMonthly == nil || *l.PriceMonthly > maxPrice) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func sortListings(listings []*models.Listing, field, order string) {
	desc := strings.EqualFold(order, "desc")
	var less func(a, b *models.Listing) bool

	switch field {
	case "price":
		less = func(a, b *models.Listing) bool {
			// Unpriced listings sort last regardless of direction.
			if (a.PriceMonthly == nil) != (b.PriceMonthly == nil) {
				return b.PriceMonthly == nil
			}
			if a.PriceMonthly == nil {
				return a.ID < b.ID
			}
			if desc {
				return *a.PriceMonthly > *b.PriceMonthly
			}
			return *a.PriceMonthly < *b.PriceMonthly
		}
	case "suburb":
		less = func(a, b *models.Listing) bool {
			if desc {
				return a.Suburb > b.Suburb
			}
			return a.Suburb < b.Suburb
		}
	case "scraped_at":
		less = func(a, b *models.Listing) bool {
			if desc {
				return a.ScrapedAt.After(b.ScrapedAt)
			}
			return a.ScrapedAt.Before(b.ScrapedAt)
		}
	default:
		return
	}

	sort.SliceStable(listings, func(i, j int) bool { return less(listings[i], listings[j]) })
}

func (s *Server) handleSuburbs(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.store.All())
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	counts := make(map[string]int)
	for _, l := range s.snapshot() {
		counts[l.SourceSite]++
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sources": names,
		"counts":  counts,
	})
}

type overviewResponse struct {
	TotalListings    int            `json:"total_listings"`
	VerifiedListings int            `json:"verified_listings"`
	PricedListings   int            `json:"priced_listings"`
	AvgPricePGK      int            `json:"avg_price_pgk"`
	MinPricePGK      int            `json:"min_price_pgk"`
	MaxPricePGK      int            `json:"max_price_pgk"`
	ByLabel          map[string]int `json:"by_label"`
	BySuburb         map[string]int `json:"by_suburb"`
	MiddlemanFlagged int            `json:"middleman_flagged"`
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	resp := overviewResponse{
		ByLabel:  make(map[string]int),
		BySuburb: make(map[string]int),
	}

	total := 0
	for _, l := range s.snapshot() {
		resp.TotalListings++
		if l.IsVerified {
			resp.VerifiedListings++
		}
		if l.IsMiddleman {
			resp.MiddlemanFlagged++
		}
		if l.Suburb != "" {
			resp.BySuburb[l.Suburb]++
		}
		if l.MarketScore != nil {
			resp.ByLabel[l.MarketScore.Label]++
		}
		if l.PriceMonthly != nil {
			p := *l.PriceMonthly
			total += p
			resp.PricedListings++
			if resp.MinPricePGK == 0 || p < resp.MinPricePGK {
				resp.MinPricePGK = p
			}
			if p > resp.MaxPricePGK {
				resp.MaxPricePGK = p
			}
		}
	}
	if resp.PricedListings > 0 {
		resp.AvgPricePGK = total / resp.PricedListings
	}

	respondJSON(w, http.StatusOK, resp)
}

type heatmapCell struct {
	Suburb      string   `json:"suburb"`
	Count       int      `json:"count"`
	AvgPricePGK int      `json:"avg_price_pgk"`
	Lat         *float64 `json:"lat,omitempty"`
	Lng         *float64 `json:"lng,omitempty"`
}

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	type agg struct {
		count, priced, total int
	}
	bySuburb := make(map[string]*agg)
	for _, l := range s.snapshot() {
		if l.Suburb == "" {
			continue
		}
		a := bySuburb[l.Suburb]
		if a == nil {
			a = &agg{}
			bySuburb[l.Suburb] = a
		}
		a.count++
		if l.PriceMonthly != nil {
			a.priced++
			a.total += *l.PriceMonthly
		}
	}

	cells := make([]heatmapCell, 0, len(bySuburb))
	for suburb, a := range bySuburb {
		cell := heatmapCell{Suburb: suburb, Count: a.count}
		if a.priced > 0 {
			cell.AvgPricePGK = a.total / a.priced
		}
		if coord, ok := suburbCoords[strings.ToLower(suburb)]; ok {
			lat, lng := coord.Lat, coord.Lng
			cell.Lat, cell.Lng = &lat, &lng
		}
		cells = append(cells, cell)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Count != cells[j].Count {
			return cells[i].Count > cells[j].Count
		}
		return cells[i].Suburb < cells[j].Suburb
	})

	respondJSON(w, http.StatusOK, map[string]interface{}{"suburbs": cells})
}

// trendSuburbs are the suburbs tracked on the weekly price trends chart.
var trendSuburbs = []string{"Waigani", "Boroko", "Gerehu"}

const trendWeeks = 8

type pricePoint struct {
	at    time.Time
	price int
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	bySuburb := make(map[string][]pricePoint, len(trendSuburbs))
	for _, l := range s.snapshot() {
		if l.PriceMonthly == nil {
			continue
		}
		for _, suburb := range trendSuburbs {
			if strings.EqualFold(l.Suburb, suburb) {
				bySuburb[suburb] = append(bySuburb[suburb], pricePoint{l.ScrapedAt, *l.PriceMonthly})
				break
			}
		}
	}

	now := time.Now().UTC()
	weeks := make([]map[string]interface{}, 0, trendWeeks)
	for wk := trendWeeks - 1; wk >= 0; wk-- {
		weekEnd := now.AddDate(0, 0, -7*wk)
		weekStart := weekEnd.AddDate(0, 0, -7)
		entry := map[string]interface{}{"week": weekEnd.Format("Jan 02")}
		for _, suburb := range trendSuburbs {
			entry[suburb] = windowAverage(bySuburb[suburb], weekStart, weekEnd)
		}
		weeks = append(weeks, entry)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"trends": weeks})
}

// windowAverage averages the prices scraped inside [start, end). A suburb
// with history but nothing in the window falls back to its overall average
// so the chart stays continuous; a suburb with no prices at all is null.
func windowAverage(points []pricePoint, start, end time.Time) interface{} {
	if len(points) == 0 {
		return nil
	}
	sum, n := 0, 0
	for _, p := range points {
		if !p.at.Before(start) && p.at.Before(end) {
			sum += p.price
			n++
		}
	}
	if n == 0 {
		for _, p := range points {
			sum += p.price
		}
		n = len(points)
	}
	return sum / n
}

type supplyDemandRow struct {
	Suburb         string `json:"suburb"`
	Supply         int    `json:"supply"`
	VerifiedSupply int    `json:"verified_supply"`
	SocialSupply   int    `json:"social_supply"`
	AvgPricePGK    int    `json:"avg_price"`
	DemandScore    int    `json:"demand_score"`
}

func (s *Server) handleSupplyDemand(w http.ResponseWriter, r *http.Request) {
	type agg struct {
		supply, verified, priceSum int
	}
	bySuburb := make(map[string]*agg)
	for _, l := range s.snapshot() {
		if l.Suburb == "" {
			continue
		}
		a := bySuburb[l.Suburb]
		if a == nil {
			a = &agg{}
			bySuburb[l.Suburb] = a
		}
		a.supply++
		if l.IsVerified {
			a.verified++
		}
		if l.PriceMonthly != nil {
			a.priceSum += *l.PriceMonthly
		}
	}

	rows := make([]supplyDemandRow, 0, len(bySuburb))
	for suburb, a := range bySuburb {
		rows = append(rows, supplyDemandRow{
			Suburb:         suburb,
			Supply:         a.supply,
			VerifiedSupply: a.verified,
			SocialSupply:   a.supply - a.verified,
			AvgPricePGK:    a.priceSum / a.supply,
			DemandScore:    demandScore(a.verified, a.supply-a.verified),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Supply != rows[j].Supply {
			return rows[i].Supply > rows[j].Supply
		}
		return rows[i].Suburb < rows[j].Suburb
	})

	respondJSON(w, http.StatusOK, map[string]interface{}{"data": rows})
}

// demandScore rates renter interest per suburb on a 0-100 scale. Verified
// agency listings weigh more than social posts.
func demandScore(verified, social int) int {
	score := 40 + verified*3 + social*2
	if score > 100 {
		score = 100
	}
	return score
}

type sourceStat struct {
	Source   string `json:"source"`
	Count    int    `json:"count"`
	Verified bool   `json:"verified"`
	Priced   int    `json:"priced"`
}

func (s *Server) handleSourceStats(w http.ResponseWriter, r *http.Request) {
	bySource := make(map[string]*sourceStat)
	for _, l := range s.snapshot() {
		st := bySource[l.SourceSite]
		if st == nil {
			st = &sourceStat{Source: l.SourceSite, Verified: l.IsVerified}
			bySource[l.SourceSite] = st
		}
		st.Count++
		if l.PriceMonthly != nil {
			st.Priced++
		}
	}

	stats := make([]*sourceStat, 0, len(bySource))
	for _, st := range bySource {
		stats = append(stats, st)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Source < stats[j].Source })

	respondJSON(w, http.StatusOK, map[string]interface{}{"sources": stats})
}

func (s *Server) handleMiddlemanFlags(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r.URL.Query().Get("limit"), 20)
	if limit < 1 {
		limit = 20
	}

	var flagged []*models.Listing
	for _, l := range s.snapshot() {
		overpricedHard := l.MarketScore != nil && l.MarketScore.PctVsAvg != nil &&
			*l.MarketScore.PctVsAvg >= middlemanPctThreshold
		if l.IsMiddleman || overpricedHard {
			flagged = append(flagged, l)
		}
	}

	sort.SliceStable(flagged, func(i, j int) bool {
		return middlemanPct(flagged[i]) > middlemanPct(flagged[j])
	})
	if len(flagged) > limit {
		flagged = flagged[:limit]
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"total":    len(flagged),
		"listings": flagged,
	})
}

func middlemanPct(l *models.Listing) float64 {
	if l.MarketScore == nil || l.MarketScore.PctVsAvg == nil {
		return 0
	}
	return *l.MarketScore.PctVsAvg
}

type triggerRequest struct {
	Sources  []string `json:"sources"`
	MaxPages int      `json:"max_pages"`
}

func (s *Server) handleScrapeTrigger(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		respondError(w, http.StatusServiceUnavailable, "scraping is not enabled on this server")
		return
	}

	var req triggerRequest
	if r.Body != nil {
		// An empty body means "run everything with defaults".
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	job := s.jobs.Create(req.Sources, req.MaxPages)
	go s.runner(job)

	s.logger.Infof("[api] scrape job %s queued (sources=%v)", job.ID, job.Sources)
	respondJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleScrapeStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["job_id"]
	job, ok := s.jobs.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "no such job: "+id)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

func (s *Server) handleScrapeJobs(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r.URL.Query().Get("limit"), 20)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobs": s.jobs.List(limit),
	})
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
