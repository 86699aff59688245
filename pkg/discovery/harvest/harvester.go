package harvest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/CodeMonkeyCybersecurity/osintrecon/internal/config"
	"github.com/CodeMonkeyCybersecurity/osintrecon/internal/httpclient"
	"github.com/CodeMonkeyCybersecurity/osintrecon/internal/logger"
	"github.com/CodeMonkeyCybersecurity/osintrecon/pkg/discovery/search"
	"github.com/CodeMonkeyCybersecurity/osintrecon/pkg/types"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"
)

// Harvester collects addresses of one domain from pages a search engine
// returns for it.
type Harvester struct {
	engine       search.Engine
	client       *http.Client
	results      int
	maxPageBytes int64
	concurrency  int
	logger       *logger.Logger
}

// NewHarvester creates a harvester backed by the Google engine
func NewHarvester(cfg config.HarvestConfig, log *logger.Logger) (*Harvester, error) {
	engine, err := search.NewGoogleEngine(cfg, log)
	if err != nil {
		return nil, err
	}
	return NewHarvesterWithEngine(engine, cfg, log), nil
}

func NewHarvesterWithEngine(engine search.Engine, cfg config.HarvestConfig, log *logger.Logger) *Harvester {
	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = 5 * time.Second
	}
	maxPageBytes := cfg.MaxPageBytes
	if maxPageBytes <= 0 {
		maxPageBytes = 5 << 20
	}

	return &Harvester{
		engine:       engine,
		client:       httpclient.NewFetchClient(fetchTimeout, cfg.UserAgent, cfg.AllowPrivate),
		results:      max(cfg.Results, 1),
		maxPageBytes: maxPageBytes,
		concurrency:  max(cfg.Concurrency, 1),
		logger:       log.WithComponent("harvest"),
	}
}

// Query builds the search string that finds pages of domain mentioning its
// own addresses.
func Query(domain string) string {
	return fmt.Sprintf("\"@%s\" site:%s", domain, domain)
}

// EmailPattern matches local-part@domain for exactly this domain.
func EmailPattern(domain string) *regexp.Regexp {
	return regexp.MustCompile(`[a-zA-Z0-9_.+-]+@` + regexp.QuoteMeta(domain))
}

// Harvest searches for pages of domain and extracts matching addresses.
// It never fails: page errors are skipped and a search error ends the run
// with whatever was collected so far.
func (h *Harvester) Harvest(ctx context.Context, domain string) types.HarvestResult {
	start := time.Now()
	query := Query(domain)
	ctx, span := h.logger.StartOperation(ctx, "harvest.emails", "domain", domain, "engine", h.engine.Name())

	pattern := EmailPattern(domain)
	emails := types.NewEmailSet()
	var visited, failed atomic.Int64

	visit := func(result search.Result) {
		visited.Add(1)
		found, err := h.scrapePage(ctx, result.URL, pattern)
		if err != nil {
			failed.Add(1)
			h.logger.Debugw("Skipping page", "url", result.URL, "error", err)
			return
		}
		if added := emails.Add(found...); added > 0 {
			h.logger.Debugw("Emails found on page", "url", result.URL, "new", added, "total", emails.Len())
		}
	}

	var g errgroup.Group
	g.SetLimit(h.concurrency)

	searchErr := h.engine.Search(ctx, query, h.results, func(result search.Result) bool {
		if ctx.Err() != nil {
			return false
		}
		if h.concurrency == 1 {
			visit(result)
			return true
		}
		g.Go(func() error {
			visit(result)
			return nil
		})
		return true
	})
	_ = g.Wait()

	if searchErr == nil && ctx.Err() != nil {
		searchErr = ctx.Err()
	}

	result := types.HarvestResult{
		Query:        query,
		Emails:       emails.Sorted(),
		PagesVisited: int(visited.Load()),
		PagesFailed:  int(failed.Load()),
		SearchErr:    searchErr,
	}

	h.logger.FinishOperation(ctx, span, "harvest.emails", start, searchErr,
		"domain", domain,
		"pages_visited", result.PagesVisited,
		"pages_failed", result.PagesFailed,
		"emails_found", len(result.Emails))

	return result
}

// scrapePage fetches url, strips it to text and returns every match.
func (h *Harvester) scrapePage(ctx context.Context, url string, pattern *regexp.Regexp) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpclient.CloseBody(resp)

	h.logger.LogHTTPRequest(ctx, http.MethodGet, url, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, h.maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	return pattern.FindAllString(doc.Text(), -1), nil
}
