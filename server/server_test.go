package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"png-rentals/models"
	"png-rentals/pipeline"
	"png-rentals/services"
	"png-rentals/utils"
)

func testListing(id, source, suburb string, price int, ptype string, verified bool) *models.Listing {
	l := &models.Listing{
		ID:         id,
		SourceSite: source,
		Suburb:     suburb,
		PropertyType: ptype,
		IsVerified: verified,
		URL:        "https://example.com/" + id,
		ScrapedAt:  time.Now().UTC(),
	}
	if price > 0 {
		l.PriceMonthly = &price
	}
	return l
}

func newTestServer(runner Runner) *Server {
	store := services.NewBenchmarkStore(services.DefaultBenchmarkSource())
	srv := New(":0", store, pipeline.NewJobStore(), runner, utils.NewNopLogger())
	srv.SetListings([]*models.Listing{
		testListing("a", "Hausples", "Waigani", 4500, "House", true),
		testListing("b", "Hausples", "Boroko", 3000, "Apartment", true),
		testListing("c", "Facebook Marketplace", "Boroko", 1800, "House", false),
		testListing("d", "MarketMeri", "Gerehu", 1900, "House", true),
		testListing("e", "Facebook Marketplace", "", 0, "", false),
	})
	return srv
}

func doGet(t *testing.T, srv *Server, path string, out interface{}) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("GET %s: bad JSON: %v\n%s", path, err, rec.Body.String())
		}
	}
	return rec.Code
}

func TestListingsFilters(t *testing.T) {
	srv := newTestServer(nil)

	var resp listingsResponse
	if code := doGet(t, srv, "/api/listings", &resp); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if resp.Total != 5 {
		t.Errorf("total = %d; want 5", resp.Total)
	}

	doGet(t, srv, "/api/listings?suburb=boroko", &resp)
	if resp.Total != 2 {
		t.Errorf("suburb filter total = %d; want 2", resp.Total)
	}

	doGet(t, srv, "/api/listings?suburb=Boroko&verified=true", &resp)
	if resp.Total != 1 || resp.Listings[0].ID != "b" {
		t.Errorf("combined filter = %+v", resp)
	}

	doGet(t, srv, "/api/listings?min_price=2000&max_price=4000", &resp)
	if resp.Total != 1 || resp.Listings[0].ID != "b" {
		t.Errorf("price band filter total = %d", resp.Total)
	}

	doGet(t, srv, "/api/listings?type=house&source=Facebook+Marketplace", &resp)
	if resp.Total != 1 || resp.Listings[0].ID != "c" {
		t.Errorf("type+source filter = %+v", resp)
	}
}

func TestListingsSortAndPagination(t *testing.T) {
	srv := newTestServer(nil)

	var resp listingsResponse
	doGet(t, srv, "/api/listings?sort=price&order=asc&limit=2&page=1", &resp)
	if resp.Pages != 3 || len(resp.Listings) != 2 {
		t.Fatalf("pages = %d, page size = %d; want 3 pages of 2", resp.Pages, len(resp.Listings))
	}
	if resp.Listings[0].ID != "c" || resp.Listings[1].ID != "d" {
		t.Errorf("page 1 asc = [%s %s]; want [c d]", resp.Listings[0].ID, resp.Listings[1].ID)
	}

	doGet(t, srv, "/api/listings?sort=price&order=asc&limit=2&page=3", &resp)
	if len(resp.Listings) != 1 || resp.Listings[0].ID != "e" {
		t.Errorf("unpriced listing must sort last; page 3 = %+v", resp.Listings)
	}

	doGet(t, srv, "/api/listings?sort=price&order=desc&limit=2&page=1", &resp)
	if resp.Listings[0].ID != "a" {
		t.Errorf("desc first = %s; want a", resp.Listings[0].ID)
	}

	// Pages beyond the end return an empty list, not an error.
	if code := doGet(t, srv, "/api/listings?page=99", &resp); code != http.StatusOK || len(resp.Listings) != 0 {
		t.Errorf("overrun page: code=%d listings=%d", code, len(resp.Listings))
	}
}

func TestAnalyticsEndpoints(t *testing.T) {
	srv := newTestServer(nil)

	var overview overviewResponse
	doGet(t, srv, "/api/analytics/overview", &overview)
	if overview.TotalListings != 5 || overview.VerifiedListings != 3 {
		t.Errorf("overview = %+v", overview)
	}
	if overview.AvgPricePGK != (4500+3000+1800+1900)/4 {
		t.Errorf("avg price = %d", overview.AvgPricePGK)
	}

	var heatmap struct {
		Suburbs []heatmapCell `json:"suburbs"`
	}
	doGet(t, srv, "/api/analytics/heatmap", &heatmap)
	if len(heatmap.Suburbs) != 3 {
		t.Fatalf("heatmap suburbs = %d; want 3", len(heatmap.Suburbs))
	}
	// Boroko has the most listings and carries a coordinate pin.
	if heatmap.Suburbs[0].Suburb != "Boroko" || heatmap.Suburbs[0].Lat == nil {
		t.Errorf("first cell = %+v", heatmap.Suburbs[0])
	}

	var sources struct {
		Sources []*sourceStat `json:"sources"`
	}
	doGet(t, srv, "/api/analytics/sources", &sources)
	if len(sources.Sources) != 3 {
		t.Errorf("source stats = %d; want 3", len(sources.Sources))
	}

	var suburbs []*models.SuburbBenchmark
	doGet(t, srv, "/api/suburbs", &suburbs)
	if len(suburbs) != 12 {
		t.Errorf("benchmark suburbs = %d; want 12", len(suburbs))
	}
}

func TestTrendsEndpoint(t *testing.T) {
	srv := newTestServer(nil)
	older := testListing("w2", "Hausples", "Waigani", 3500, "House", true)
	older.ScrapedAt = time.Now().UTC().AddDate(0, 0, -22)
	srv.SetListings([]*models.Listing{
		testListing("a", "Hausples", "Waigani", 4500, "House", true),
		testListing("b", "Hausples", "Boroko", 3000, "Apartment", true),
		testListing("c", "Facebook Marketplace", "Boroko", 1800, "House", false),
		older,
	})

	var resp struct {
		Trends []map[string]interface{} `json:"trends"`
	}
	doGet(t, srv, "/api/analytics/trends", &resp)
	if len(resp.Trends) != 8 {
		t.Fatalf("weeks = %d; want 8", len(resp.Trends))
	}

	val := func(i int, suburb string) float64 {
		t.Helper()
		v, ok := resp.Trends[i][suburb].(float64)
		if !ok {
			t.Fatalf("week %d %s = %v; want a number", i, suburb, resp.Trends[i][suburb])
		}
		return v
	}

	last := len(resp.Trends) - 1
	if resp.Trends[last]["week"] == "" {
		t.Error("week label missing")
	}
	if got := val(last, "Waigani"); got != 4500 {
		t.Errorf("current week Waigani = %v; want 4500", got)
	}
	if got := val(last, "Boroko"); got != 2400 {
		t.Errorf("current week Boroko = %v; want 2400", got)
	}
	// The listing scraped 22 days ago lands three weeks back.
	if got := val(last-3, "Waigani"); got != 3500 {
		t.Errorf("three weeks back Waigani = %v; want 3500", got)
	}
	// Weeks with no observations fall back to the suburb's overall average.
	if got := val(0, "Waigani"); got != 4000 {
		t.Errorf("oldest week Waigani = %v; want 4000", got)
	}
	// Gerehu has no priced listings in this dataset, so it stays null.
	if v := resp.Trends[0]["Gerehu"]; v != nil {
		t.Errorf("Gerehu = %v; want null", v)
	}
}

func TestSupplyDemandEndpoint(t *testing.T) {
	srv := newTestServer(nil)

	var resp struct {
		Data []supplyDemandRow `json:"data"`
	}
	doGet(t, srv, "/api/analytics/supply-demand", &resp)
	if len(resp.Data) != 3 {
		t.Fatalf("rows = %d; want 3 (no-suburb listings excluded)", len(resp.Data))
	}

	boroko := resp.Data[0]
	if boroko.Suburb != "Boroko" || boroko.Supply != 2 {
		t.Fatalf("highest supply row = %+v; want Boroko with 2", boroko)
	}
	if boroko.VerifiedSupply != 1 || boroko.SocialSupply != 1 {
		t.Errorf("Boroko split = %d verified / %d social; want 1 / 1", boroko.VerifiedSupply, boroko.SocialSupply)
	}
	if boroko.AvgPricePGK != 2400 {
		t.Errorf("Boroko avg = %d; want 2400", boroko.AvgPricePGK)
	}
	if boroko.DemandScore != 45 {
		t.Errorf("Boroko demand = %d; want 45", boroko.DemandScore)
	}
	if resp.Data[1].Suburb != "Gerehu" || resp.Data[2].Suburb != "Waigani" {
		t.Errorf("tie order = %s, %s; want Gerehu, Waigani", resp.Data[1].Suburb, resp.Data[2].Suburb)
	}
	if resp.Data[2].DemandScore != 43 {
		t.Errorf("Waigani demand = %d; want 43", resp.Data[2].DemandScore)
	}
}

func TestMiddlemanFlags(t *testing.T) {
	srv := newTestServer(nil)

	pctHigh := 55.0
	pctMild := 10.0
	flagged := testListing("f", "Facebook Marketplace", "Waigani", 7000, "House", false)
	flagged.MarketScore = &models.MarketScore{Label: models.LabelOverpriced, PctVsAvg: &pctHigh}
	fair := testListing("g", "Hausples", "Waigani", 4600, "House", true)
	fair.MarketScore = &models.MarketScore{Label: models.LabelFair, PctVsAvg: &pctMild}
	keyword := testListing("h", "Facebook Marketplace", "Boroko", 3000, "House", false)
	keyword.IsMiddleman = true

	srv.SetListings([]*models.Listing{fair, flagged, keyword})

	var resp struct {
		Listings []*models.Listing `json:"listings"`
	}
	doGet(t, srv, "/api/analytics/middleman-flags", &resp)
	if len(resp.Listings) != 2 {
		t.Fatalf("flagged = %d; want 2", len(resp.Listings))
	}
	if resp.Listings[0].ID != "f" {
		t.Errorf("first flagged = %s; want the most overpriced", resp.Listings[0].ID)
	}
}

func TestScrapeTriggerAndStatus(t *testing.T) {
	done := make(chan pipeline.Job, 1)
	var srv *Server
	srv = newTestServer(func(job pipeline.Job) {
		srv.jobs.MarkRunning(job.ID)
		srv.jobs.MarkComplete(job.ID, 7)
		done <- job
	})

	body, _ := json.Marshal(map[string]interface{}{
		"sources":   []string{"Hausples"},
		"max_pages": 2,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/scrape/trigger", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("trigger status = %d; want 202", rec.Code)
	}
	var job pipeline.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatal(err)
	}
	if job.Status != pipeline.JobQueued || job.MaxPages != 2 {
		t.Errorf("queued job = %+v", job)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner was never invoked")
	}

	var got pipeline.Job
	if code := doGet(t, srv, "/api/scrape/status/"+job.ID, &got); code != http.StatusOK {
		t.Fatalf("status code = %d", code)
	}
	if got.Status != pipeline.JobComplete || got.Collected != 7 {
		t.Errorf("job status = %+v", got)
	}

	var jobs struct {
		Jobs []pipeline.Job `json:"jobs"`
	}
	doGet(t, srv, "/api/scrape/jobs", &jobs)
	if len(jobs.Jobs) != 1 {
		t.Errorf("job list = %d; want 1", len(jobs.Jobs))
	}
}

func TestScrapeStatusUnknownJob(t *testing.T) {
	srv := newTestServer(nil)
	if code := doGet(t, srv, "/api/scrape/status/deadbeef", nil); code != http.StatusNotFound {
		t.Errorf("unknown job status = %d; want 404", code)
	}
}

func TestScrapeTriggerWithoutRunner(t *testing.T) {
	srv := newTestServer(nil)
	req := httptest.NewRequest(http.MethodPost, "/api/scrape/trigger", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("trigger without runner = %d; want 503", rec.Code)
	}
}

func TestSourcesEndpoint(t *testing.T) {
	srv := newTestServer(nil)

	var resp struct {
		Sources []string       `json:"sources"`
		Counts  map[string]int `json:"counts"`
	}
	doGet(t, srv, "/api/sources", &resp)
	if len(resp.Sources) != 3 {
		t.Fatalf("sources = %v; want 3 distinct", resp.Sources)
	}
	if resp.Counts["Facebook Marketplace"] != 2 {
		t.Errorf("facebook count = %d; want 2", resp.Counts["Facebook Marketplace"])
	}
	// Deterministic ordering for clients.
	for i := 1; i < len(resp.Sources); i++ {
		if resp.Sources[i-1] > resp.Sources[i] {
			t.Errorf("sources not sorted: %v", resp.Sources)
		}
	}
}
