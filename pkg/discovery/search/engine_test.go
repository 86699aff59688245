package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/CodeMonkeyCybersecurity/osintrecon/internal/config"
	"github.com/CodeMonkeyCybersecurity/osintrecon/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const firstPage = `<html><body>
<a href="/search?q=next&start=10">Next</a>
<a href="/url?q=https://example.com/contact&amp;sa=U&amp;ved=abc"><h3>Contact us</h3></a>
<a href="https://www.example.com/team#staff">Team</a>
<a href="https://www.example.com/team">Team again</a>
<a href="mailto:someone@example.com">mail</a>
<a href="#top">top</a>
</body></html>`

func newTestEngine(t *testing.T, handler http.HandlerFunc, language string) *GoogleEngine {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	engine, err := NewGoogleEngine(config.HarvestConfig{
		SearchURL: server.URL + "/search",
		Language:  language,
		UserAgent: "osintrecon-test",
	}, logger.Nop())
	require.NoError(t, err)
	return engine
}

func collect(t *testing.T, engine Engine, query string, limit int) ([]Result, error) {
	t.Helper()
	var results []Result
	err := engine.Search(context.Background(), query, limit, func(r Result) bool {
		results = append(results, r)
		return true
	})
	return results, err
}

func TestGoogleEngineSearch(t *testing.T) {
	var gotQuery url.Values
	engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("start") != "0" {
			w.Write([]byte(`<html><body>no more results</body></html>`))
			return
		}
		gotQuery = r.URL.Query()
		w.Write([]byte(firstPage))
	}, "en")

	results, err := collect(t, engine, `"@example.com" site:example.com`, 10)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "https://example.com/contact", results[0].URL)
	assert.Equal(t, "Contact us", results[0].Title)
	assert.Equal(t, "example.com", results[0].Domain)
	assert.Equal(t, "https://www.example.com/team", results[1].URL)

	assert.Equal(t, `"@example.com" site:example.com`, gotQuery.Get("q"))
	assert.Equal(t, "10", gotQuery.Get("num"))
	assert.Equal(t, "en", gotQuery.Get("hl"))
}

func TestGoogleEngineRespectsLimit(t *testing.T) {
	engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(firstPage))
	}, "")

	results, err := collect(t, engine, "q", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestGoogleEnginePaginates(t *testing.T) {
	engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		start := r.URL.Query().Get("start")
		switch start {
		case "0", "2":
			fmt.Fprintf(w, `<a href="https://example.com/p%s-a">a</a><a href="https://example.com/p%s-b">b</a>`, start, start)
		default:
			w.Write([]byte(`<p>end</p>`))
		}
	}, "")

	results, err := collect(t, engine, "q", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// The page size follows the limit, so the second page starts at 5.
	engine2 := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		start := r.URL.Query().Get("start")
		if start == "0" || start == "5" {
			fmt.Fprintf(w, `<a href="https://example.com/p%s-a">a</a><a href="https://example.com/p%s-b">b</a><a href="https://example.com/p%s-c">c</a>`, start, start, start)
			return
		}
		w.Write([]byte(`<p>end</p>`))
	}, "")

	results, err = collect(t, engine2, "q", 5)
	require.NoError(t, err)
	assert.Len(t, results, 5)
}

func TestGoogleEngineErrorAfterFirstPage(t *testing.T) {
	engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("start") == "0" {
			w.Write([]byte(`<a href="https://example.com/a">a</a><a href="https://example.com/b">b</a>`))
			return
		}
		http.Error(w, "unusual traffic", http.StatusTooManyRequests)
	}, "")

	results, err := collect(t, engine, "q", 4)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Len(t, results, 2, "results yielded before the failure are kept")
}

func TestGoogleEngineStopsWhenYieldReturnsFalse(t *testing.T) {
	engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(firstPage))
	}, "")

	calls := 0
	err := engine.Search(context.Background(), "q", 10, func(Result) bool {
		calls++
		return false
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestGoogleEngineCancelled(t *testing.T) {
	engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(firstPage))
	}, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := engine.Search(ctx, "q", 10, func(Result) bool { return true })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewGoogleEngineRejectsBadURL(t *testing.T) {
	_, err := NewGoogleEngine(config.HarvestConfig{SearchURL: "ftp://example.com/search"}, logger.Nop())
	assert.Error(t, err)

	engine, err := NewGoogleEngine(config.HarvestConfig{}, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, "www.google.com", engine.searchURL.Host)
}

func TestSameSite(t *testing.T) {
	engine, _ := url.Parse("https://www.google.com/search")

	tests := []struct {
		link string
		want bool
	}{
		{"https://www.google.com/maps", true},
		{"https://accounts.google.com/ServiceLogin", true},
		{"https://support.google.com/websearch", true},
		{"https://example.com/", false},
		{"https://google.example.com/", false},
		{"http://93.184.216.34/", false},
	}

	for _, tt := range tests {
		t.Run(tt.link, func(t *testing.T) {
			link, err := url.Parse(tt.link)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sameSite(engine, link))
		})
	}
}
