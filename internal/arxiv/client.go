// Package arxiv implements the search-provider contract against the
// arXiv Atom API.
package arxiv

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
)

// Result is one paper returned by a search.
type Result struct {
	PaperID   string     `json:"paper_id"`
	Title     string     `json:"title"`
	Authors   []string   `json:"authors"`
	Abstract  string     `json:"abstract"`
	Published *time.Time `json:"published"`
	PDFURL    string     `json:"pdf_url"`
	EntryID   string     `json:"entry_id"`
	Source    string     `json:"source"`
}

type Client struct {
	baseURL string
	parser  *gofeed.Parser
	log     *zap.Logger
}

func NewClient(baseURL string, log *zap.Logger) *Client {
	p := gofeed.NewParser()
	p.Client = &http.Client{Timeout: 20 * time.Second}
	return &Client{baseURL: baseURL, parser: p, log: log}
}

// Search queries arXiv sorted by relevance and returns up to maxResults
// papers.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	q := url.Values{}
	q.Set("search_query", "all:"+query)
	q.Set("start", "0")
	q.Set("max_results", strconv.Itoa(maxResults))
	q.Set("sortBy", "relevance")

	feed, err := c.parser.ParseURLWithContext(c.baseURL+"?"+q.Encode(), ctx)
	if err != nil {
		return nil, fmt.Errorf("arxiv query %q: %w", query, err)
	}

	results := make([]Result, 0, len(feed.Items))
	for _, item := range feed.Items {
		entryID := item.Link
		if entryID == "" && len(item.Links) > 0 {
			entryID = item.Links[0]
		}
		r := Result{
			PaperID:   shortID(entryID),
			Title:     strings.Join(strings.Fields(item.Title), " "),
			Authors:   authorNames(item),
			Abstract:  strings.TrimSpace(item.Description),
			Published: item.PublishedParsed,
			PDFURL:    pdfURL(entryID),
			EntryID:   entryID,
			Source:    "arXiv",
		}
		if r.PaperID == "" {
			continue
		}
		results = append(results, r)
	}
	c.log.Info("arxiv search complete", zap.String("query", query), zap.Int("results", len(results)))
	return results, nil
}

func authorNames(item *gofeed.Item) []string {
	names := make([]string, 0, len(item.Authors))
	for _, a := range item.Authors {
		if a != nil && a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return names
}

// shortID extracts the versioned arXiv id ("2303.08774v1") from an
// entry URL like "http://arxiv.org/abs/2303.08774v1".
func shortID(entryID string) string {
	trimmed := strings.TrimSuffix(entryID, "/")
	if i := strings.LastIndex(trimmed, "/abs/"); i >= 0 {
		return trimmed[i+len("/abs/"):]
	}
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

func pdfURL(entryID string) string {
	if strings.Contains(entryID, "/abs/") {
		return strings.Replace(entryID, "/abs/", "/pdf/", 1)
	}
	return ""
}
