// Package websearch provides a scraping-based web search returning
// structured sources.
//
// Results come from the DuckDuckGo HTML endpoint. Extraction is heuristic
// (anchor/snippet patterns), so a layout change degrades to an empty-sources
// outcome rather than an error; the caller always gets a structured record.
package websearch

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	defaultBaseURL    = "https://html.duckduckgo.com"
	defaultMaxResults = 5
	maxMaxResults     = 10
	userAgent         = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

// Source is one extracted search hit.
type Source struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Outcome is the structured result fed back to the model and the citation
// tracker. SearchPerformed is false when the request itself failed.
type Outcome struct {
	Query           string   `json:"query"`
	Sources         []Source `json:"sources"`
	Summary         string   `json:"summary"`
	SearchPerformed bool     `json:"search_performed"`
	Error           string   `json:"error,omitempty"`
}

// Client performs searches against an HTML search endpoint.
type Client struct {
	httpc   *http.Client
	baseURL string
}

// NewClient returns a client against the public endpoint.
func NewClient() *Client {
	return &Client{
		httpc:   &http.Client{Timeout: 10 * time.Second},
		baseURL: defaultBaseURL,
	}
}

// NewClientWithBase returns a client against a custom endpoint, used in tests.
func NewClientWithBase(httpc *http.Client, baseURL string) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{httpc: httpc, baseURL: baseURL}
}

// Search runs one query and always returns a structured outcome; transport
// and scrape failures are reported inside the outcome, not as an error.
func (c *Client) Search(ctx context.Context, query string, maxResults int) Outcome {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	if maxResults > maxMaxResults {
		maxResults = maxMaxResults
	}

	page, err := c.fetch(ctx, query)
	if err != nil {
		return Outcome{
			Query:           query,
			Sources:         []Source{},
			Summary:         fmt.Sprintf("Web search for %q failed due to: %v", query, err),
			SearchPerformed: false,
			Error:           err.Error(),
		}
	}

	sources := ParseResults(page, maxResults)
	if len(sources) == 0 {
		return Outcome{
			Query:           query,
			Sources:         []Source{},
			Summary:         fmt.Sprintf("No web search results found for %q. This may be due to search limitations or network issues.", query),
			SearchPerformed: true,
		}
	}
	return Outcome{
		Query:           query,
		Sources:         sources,
		Summary:         fmt.Sprintf("Found %d web search results for %q", len(sources), query),
		SearchPerformed: true,
	}
}

func (c *Client) fetch(ctx context.Context, query string) (string, error) {
	u := fmt.Sprintf("%s/html/?q=%s", c.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search request: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

var (
	anchorRe  = regexp.MustCompile(`(?s)<a[^>]*class="[^"]*result__a[^"]*"[^>]*href="([^"]+)"[^>]*>(.*?)</a>`)
	snippetRe = regexp.MustCompile(`(?s)class="[^"]*result__snippet[^"]*"[^>]*>(.*?)</a>`)
	tagRe     = regexp.MustCompile(`<[^>]+>`)
)

// ParseResults extracts up to maxResults sources from a results page.
// Anchors and snippets are matched independently and zipped by position;
// a missing snippet leaves the field empty.
func ParseResults(page string, maxResults int) []Source {
	anchors := anchorRe.FindAllStringSubmatch(page, maxResults)
	snippets := snippetRe.FindAllStringSubmatch(page, maxResults)

	var out []Source
	for i, m := range anchors {
		title := cleanText(m[2])
		if title == "" {
			continue
		}
		s := Source{Title: title, URL: html.UnescapeString(m[1])}
		if i < len(snippets) {
			s.Snippet = cleanText(snippets[i][1])
		}
		out = append(out, s)
	}
	return out
}

func cleanText(s string) string {
	s = tagRe.ReplaceAllString(s, "")
	return strings.TrimSpace(html.UnescapeString(s))
}
