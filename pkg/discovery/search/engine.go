package search

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/osintrecon/internal/config"
	"github.com/CodeMonkeyCybersecurity/osintrecon/internal/httpclient"
	"github.com/CodeMonkeyCybersecurity/osintrecon/internal/logger"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/publicsuffix"
)

const (
	defaultSearchURL = "https://www.google.com/search"
	maxPageSize      = 100
	maxResultsBytes  = 5 << 20
	searchTimeout    = 30 * time.Second
)

// Engine streams result URLs for a query. yield returning false stops the
// search early without an error.
type Engine interface {
	Search(ctx context.Context, query string, limit int, yield func(Result) bool) error
	Name() string
}

// Result represents a search result
type Result struct {
	Title  string
	URL    string
	Domain string
}

// GoogleEngine scrapes the HTML results page of a Google-style search
// endpoint, following pagination until enough results were yielded.
type GoogleEngine struct {
	searchURL *url.URL
	language  string
	client    *http.Client
	logger    *logger.Logger
}

// NewGoogleEngine creates a new Google search engine
func NewGoogleEngine(cfg config.HarvestConfig, log *logger.Logger) (*GoogleEngine, error) {
	raw := cfg.SearchURL
	if raw == "" {
		raw = defaultSearchURL
	}
	searchURL, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid search URL %q: %w", raw, err)
	}
	if searchURL.Scheme != "http" && searchURL.Scheme != "https" {
		return nil, fmt.Errorf("invalid search URL %q: unsupported scheme", raw)
	}

	return &GoogleEngine{
		searchURL: searchURL,
		language:  cfg.Language,
		client:    httpclient.NewSearchClient(searchTimeout, cfg.UserAgent),
		logger:    log.WithComponent("search"),
	}, nil
}

func (g *GoogleEngine) Name() string {
	return "google"
}

func (g *GoogleEngine) Search(ctx context.Context, query string, limit int, yield func(Result) bool) error {
	if limit <= 0 {
		return nil
	}
	pageSize := min(limit, maxPageSize)

	seen := make(map[string]bool)
	yielded := 0

	for start := 0; yielded < limit; start += pageSize {
		results, err := g.fetchPage(ctx, query, pageSize, start)
		if err != nil {
			return fmt.Errorf("%s search (offset %d): %w", g.Name(), start, err)
		}

		fresh := 0
		for _, result := range results {
			if seen[result.URL] {
				continue
			}
			seen[result.URL] = true
			fresh++
			yielded++

			if !yield(result) || yielded >= limit {
				return nil
			}
		}

		g.logger.Debugw("Search page parsed", "offset", start, "links", len(results), "new", fresh)

		// An empty or fully repeated page means the engine has nothing more.
		if fresh == 0 {
			return nil
		}
	}

	return nil
}

func (g *GoogleEngine) fetchPage(ctx context.Context, query string, num, start int) ([]Result, error) {
	pageURL := *g.searchURL
	params := pageURL.Query()
	params.Set("q", query)
	params.Set("num", strconv.Itoa(num))
	params.Set("start", strconv.Itoa(start))
	if g.language != "" {
		params.Set("hl", g.language)
	}
	pageURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	if g.language != "" {
		req.Header.Set("Accept-Language", g.language)
	}

	begin := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpclient.CloseBody(resp)

	g.logger.LogHTTPRequest(ctx, http.MethodGet, g.searchURL.String(), resp.StatusCode, time.Since(begin), "offset", start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("search engine returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxResultsBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse results page: %w", err)
	}

	return g.extractResults(doc), nil
}

func (g *GoogleEngine) extractResults(doc *goquery.Document) []Result {
	var results []Result

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		target, ok := g.resolveLink(href)
		if !ok {
			return
		}

		title := strings.TrimSpace(s.Find("h3").First().Text())
		if title == "" {
			title = strings.TrimSpace(s.Text())
		}

		results = append(results, Result{
			Title:  title,
			URL:    target.String(),
			Domain: target.Hostname(),
		})
	})

	return results
}

// resolveLink turns an anchor href into an absolute result URL, unwrapping
// /url?q= redirects. Links back into the engine itself are rejected.
func (g *GoogleEngine) resolveLink(href string) (*url.URL, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return nil, false
	}

	link, err := g.searchURL.Parse(href)
	if err != nil {
		return nil, false
	}

	if link.Host == g.searchURL.Host && link.Path == "/url" {
		wrapped := link.Query().Get("q")
		if wrapped == "" {
			wrapped = link.Query().Get("url")
		}
		if link, err = url.Parse(wrapped); err != nil {
			return nil, false
		}
	}

	if (link.Scheme != "http" && link.Scheme != "https") || link.Host == "" {
		return nil, false
	}
	if sameSite(g.searchURL, link) {
		return nil, false
	}

	link.Fragment = ""
	return link, true
}

// sameSite reports whether link belongs to the engine's own site, comparing
// registrable domains so that accounts.google.com and www.google.com match.
func sameSite(engine, link *url.URL) bool {
	if strings.EqualFold(engine.Host, link.Host) {
		return true
	}

	engineHost, linkHost := engine.Hostname(), link.Hostname()
	if net.ParseIP(engineHost) != nil || net.ParseIP(linkHost) != nil {
		return false
	}

	engineSite, err := publicsuffix.EffectiveTLDPlusOne(strings.ToLower(engineHost))
	if err != nil {
		return false
	}
	linkSite, err := publicsuffix.EffectiveTLDPlusOne(strings.ToLower(linkHost))
	if err != nil {
		return false
	}
	return engineSite == linkSite
}
