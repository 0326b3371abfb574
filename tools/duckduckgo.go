package tools

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

const (
	duckDuckGoEndpoint = "https://html.duckduckgo.com/html/"
	searchUserAgent    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_7_2) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// DuckDuckGoProvider scrapes the DuckDuckGo HTML endpoint. It needs no
// credential and serves as a fallback behind Tavily.
type DuckDuckGoProvider struct {
	endpoint string
}

func NewDuckDuckGoProvider() *DuckDuckGoProvider {
	return &DuckDuckGoProvider{endpoint: duckDuckGoEndpoint}
}

func (p *DuckDuckGoProvider) WithEndpoint(endpoint string) *DuckDuckGoProvider {
	p.endpoint = endpoint
	return p
}

func (p *DuckDuckGoProvider) Name() string { return "duckduckgo" }

func (p *DuckDuckGoProvider) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	c := colly.NewCollector(
		colly.UserAgent(searchUserAgent),
		colly.StdlibContext(ctx),
	)

	var results []SearchResult
	c.OnHTML(".result", func(e *colly.HTMLElement) {
		if len(results) >= maxResults {
			return
		}
		if r, ok := resultFromSelection(e.DOM); ok {
			results = append(results, r)
		}
	})

	var visitErr error
	c.OnError(func(r *colly.Response, err error) {
		visitErr = fmt.Errorf("request %s failed with status %d: %w", r.Request.URL, r.StatusCode, err)
	})

	if err := c.Visit(p.endpoint + "?q=" + url.QueryEscape(query)); err != nil {
		return nil, err
	}
	if visitErr != nil {
		return nil, visitErr
	}
	return results, nil
}

func resultFromSelection(s *goquery.Selection) (SearchResult, bool) {
	link := s.Find("a.result__a").First()
	href, ok := link.Attr("href")
	if !ok {
		return SearchResult{}, false
	}
	return SearchResult{
		Title:   cleanTitle(link.Text()),
		URL:     unwrapRedirect(href),
		Content: strings.TrimSpace(s.Find(".result__snippet").First().Text()),
	}, true
}

// unwrapRedirect extracts the target of a DuckDuckGo redirect link.
func unwrapRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

// cleanTitle removes duplicate trailing parts in the title
func cleanTitle(title string) string {
	title = strings.TrimSpace(title)
	words := strings.Fields(title)
	for i := 1; i <= len(words)/2; i++ {
		if strings.Join(words[len(words)-i:], " ") == strings.Join(words[len(words)-2*i:len(words)-i], " ") {
			return strings.Join(words[:len(words)-i], " ")
		}
	}
	return strings.Join(words, " ")
}

// cleanText strips markup some providers leave in snippets.
func cleanText(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
