// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package research

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"
)

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
}

// Searcher runs a web search.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// DefaultEndpoint is the JavaScript-free DuckDuckGo front end.
const DefaultEndpoint = "https://html.duckduckgo.com/html/"

const (
	defaultMaxResults = 5
	defaultTimeout    = 10 * time.Second
	maxPageSize       = 4 << 20
)

// Config configures a DuckDuckGo searcher.
type Config struct {
	Endpoint string
	// Proxy is a URL prefix the escaped target URL is appended to, for
	// fetch-through services such as "https://api.allorigins.win/raw?url=".
	Proxy      string
	MaxResults int
	Timeout    time.Duration
	Logger     zerolog.Logger
	// HTTPClient overrides the client; its Transport carries the network
	// policy.
	HTTPClient *http.Client
}

// DuckDuckGo scrapes the DuckDuckGo HTML results page.
type DuckDuckGo struct {
	endpoint   string
	proxy      string
	maxResults int
	client     *http.Client
	log        zerolog.Logger
}

// NewDuckDuckGo creates a searcher, filling unset fields with defaults.
func NewDuckDuckGo(cfg Config) *DuckDuckGo {
	d := &DuckDuckGo{
		endpoint:   cfg.Endpoint,
		proxy:      cfg.Proxy,
		maxResults: cfg.MaxResults,
		client:     cfg.HTTPClient,
		log:        cfg.Logger,
	}
	if d.endpoint == "" {
		d.endpoint = DefaultEndpoint
	}
	if d.maxResults <= 0 {
		d.maxResults = defaultMaxResults
	}
	if d.client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		d.client = &http.Client{Timeout: timeout}
	}
	return d
}

// Search fetches the results page for query and returns up to MaxResults
// hits. Entries missing a title or snippet are skipped.
func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]Result, error) {
	target := d.endpoint + "?q=" + url.QueryEscape(query)
	if d.proxy != "" {
		target = d.proxy + url.QueryEscape(target)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; colossus)")
	req.Header.Set("Accept", "text/html")

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	d.log.Debug().Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).Msg("Search response")
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	results, err := ParseResults(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, err
	}
	if len(results) > d.maxResults {
		results = results[:d.maxResults]
	}
	return results, nil
}

// =============================================================================
// HTML EXTRACTION
// =============================================================================

// Result containers, titles and snippets, most specific first. DuckDuckGo
// changes its markup often.
var (
	containerClasses = []string{"result", "web-result", "links_main"}
	snippetClasses   = []string{"result__snippet", "links_main__snippet"}
)

// ParseResults extracts hits from a DuckDuckGo HTML page in document order.
func ParseResults(r io.Reader) ([]Result, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}

	var out []Result
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasAnyClass(n, containerClasses) {
			if res, ok := extract(n); ok {
				out = append(out, res)
			}
			// Containers nest (.result > .links_main); only the outermost counts.
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out, nil
}

func extract(container *html.Node) (Result, bool) {
	title := find(container, isTitleLink)
	snippet := find(container, func(n *html.Node) bool { return hasAnyClass(n, snippetClasses) })
	if title == nil || snippet == nil {
		return Result{}, false
	}
	return Result{
		Title:   collapse(textOf(title)),
		Snippet: collapse(textOf(snippet)),
		Link:    resolveLink(attr(title, "href")),
	}, true
}

// isTitleLink matches ".result__a", ".result__title a" and ".links_main a".
func isTitleLink(n *html.Node) bool {
	if n.Type != html.ElementNode || n.Data != "a" {
		return false
	}
	if hasClass(n, "result__a") {
		return true
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if hasClass(p, "result__title") || hasClass(p, "links_main") {
			return true
		}
	}
	return false
}

// resolveLink unwraps DuckDuckGo redirect links ("//duckduckgo.com/l/?uddg=").
func resolveLink(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" && strings.HasSuffix(u.Path, "/l/") {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}

func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if match(c) {
			return c
		}
		if found := find(c, match); found != nil {
			return found
		}
	}
	return nil
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func hasAnyClass(n *html.Node, classes []string) bool {
	for _, c := range classes {
		if hasClass(n, c) {
			return true
		}
	}
	return false
}

// =============================================================================
// RETRIEVAL CONTEXT
// =============================================================================

// FormatContext renders results as the retrieval system message. It returns
// "" for no results.
func FormatContext(results []Result) string {
	if len(results) == 0 {
		return ""
	}
	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = "Title: " + r.Title + "\nSnippet: " + r.Snippet + "\nLink: " + r.Link
	}
	return "[SEARCH RESULTS START]\n" + strings.Join(blocks, "\n\n") +
		"\n[SEARCH RESULTS END]\n\nUse the search results above to answer the user's question if relevant."
}
