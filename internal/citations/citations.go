// Package citations tracks web-search provenance: one SearchRecord per
// search call and zero or more Citations extracted from each outcome.
package citations

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/tidwall/gjson"
)

// SearchRecord is one audit entry per web_search invocation.
type SearchRecord struct {
	Query     string    `json:"query"`
	Timestamp time.Time `json:"timestamp"`
	Result    string    `json:"result"`
}

// Citation is a provenance record derived from a search outcome.
type Citation struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Query   string `json:"query"`
}

// SourceExtractor derives citations from one raw search outcome. A nil
// return means the extractor does not apply to this outcome shape.
type SourceExtractor interface {
	Extract(query, result string) []Citation
}

// StructuredExtractor handles JSON outcomes carrying a "sources" list.
type StructuredExtractor struct{}

// Extract returns one citation per source entry, or nil when the outcome is
// not a JSON object. A JSON object without a "sources" array yields an empty
// non-nil slice so the caller does not fall through to heuristics.
func (StructuredExtractor) Extract(query, result string) []Citation {
	if !gjson.Valid(result) {
		return nil
	}
	parsed := gjson.Parse(result)
	if !parsed.IsObject() {
		return nil
	}
	out := []Citation{}
	sources := parsed.Get("sources")
	sources.ForEach(func(_, src gjson.Result) bool {
		out = append(out, Citation{
			URL:     src.Get("url").String(),
			Title:   src.Get("title").String(),
			Snippet: src.Get("snippet").String(),
			Query:   query,
		})
		return true
	})
	return out
}

// urlPattern is deliberately permissive: scheme, then any run of URL-safe
// characters or percent-escapes. $-_ is a character range, so path and query
// punctuation like / : ? = match as part of the URL.
var urlPattern = regexp.MustCompile(`https?://(?:[a-zA-Z0-9$-_@.&+!*(),]|%[0-9a-fA-F]{2})+`)

const snippetLimit = 200

// URLExtractor is the fallback for unstructured string outcomes: it scans
// for URL-shaped substrings and labels each with the originating query.
type URLExtractor struct{}

func (URLExtractor) Extract(query, result string) []Citation {
	urls := urlPattern.FindAllString(result, -1)
	if len(urls) == 0 {
		return nil
	}
	snippet := result
	if r := []rune(snippet); len(r) > snippetLimit {
		snippet = string(r[:snippetLimit]) + "..."
	}
	out := make([]Citation, 0, len(urls))
	for _, u := range urls {
		out = append(out, Citation{
			URL:     u,
			Title:   fmt.Sprintf("Source for query: %s", query),
			Snippet: snippet,
			Query:   query,
		})
	}
	return out
}

// Tracker accumulates search history and citations for one run.
//
// Citations are append-only and, by default, not deduplicated across
// repeated searches: the same URL surfaced by two queries yields two
// citations. DedupeByURL opts out of that explicitly.
type Tracker struct {
	structured SourceExtractor
	fallback   SourceExtractor
	logger     *slog.Logger

	dedupe bool
	seen   map[string]bool

	searches  []SearchRecord
	citations []Citation
}

// Option configures a Tracker.
type Option func(*Tracker)

// DedupeByURL drops citations whose URL was already recorded.
func DedupeByURL() Option {
	return func(t *Tracker) {
		t.dedupe = true
		t.seen = make(map[string]bool)
	}
}

// NewTracker returns a tracker with the structured and URL-fallback
// extractors.
func NewTracker(logger *slog.Logger, opts ...Option) *Tracker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	t := &Tracker{
		structured: StructuredExtractor{},
		fallback:   URLExtractor{},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Track records one search outcome. A SearchRecord is appended regardless of
// whether any citations were extracted.
func (t *Tracker) Track(query, result string) {
	t.searches = append(t.searches, SearchRecord{
		Query:     query,
		Timestamp: time.Now().UTC(),
		Result:    result,
	})

	found := t.structured.Extract(query, result)
	if found == nil {
		found = t.fallback.Extract(query, result)
	}
	for _, c := range found {
		if t.dedupe {
			if t.seen[c.URL] {
				continue
			}
			t.seen[c.URL] = true
		}
		t.citations = append(t.citations, c)
	}
	t.logger.Info("tracked web search",
		"query", query, "new_citations", len(found), "total_citations", len(t.citations))
}

// Used reports whether any search was tracked.
func (t *Tracker) Used() bool { return len(t.searches) > 0 }

// Searches returns the chronological search history.
func (t *Tracker) Searches() []SearchRecord {
	out := make([]SearchRecord, len(t.searches))
	copy(out, t.searches)
	return out
}

// Citations returns all citations in extraction order.
func (t *Tracker) Citations() []Citation {
	out := make([]Citation, len(t.citations))
	copy(out, t.citations)
	return out
}
