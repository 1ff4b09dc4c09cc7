// Package fetcher
package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"terminwatch/packages/domain"

	"github.com/PuerkitoBio/goquery"
	"github.com/abadojack/whatlanggo"
)

// browserHeaders mimic a regular desktop browser; the service site rejects
// obviously scripted clients.
var browserHeaders = map[string]string{
	"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.5",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
}

type Fetcher struct {
	client *http.Client
}

func New(timeout time.Duration) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves rawURL and parses it into a Page. Any transport error,
// non-2xx status or non-HTML payload is returned as an error; callers treat
// that as zero results for this fetch.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*domain.Page, error) {
	slog.Debug("Fetching page", "url", rawURL)
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Debug("Fetch returned bad status code", "url", rawURL, "status_code", resp.StatusCode)
		return nil, fmt.Errorf("bad status code: %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(strings.ToLower(contentType), "html") {
		return nil, fmt.Errorf("unexpected content type: %s", contentType)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(bodyBytes)))
	if err != nil {
		return nil, err
	}

	page := &domain.Page{
		RequestedURL: rawURL,
		FinalURL:     resp.Request.URL.String(),
		Title:        strings.TrimSpace(doc.Find("title").First().Text()),
		Doc:          doc,
	}
	page.Language = detectLanguage(doc, page.Title)

	slog.Debug("Fetched page", "url", rawURL, "final_url", page.FinalURL, "title", page.Title, "language", page.Language)
	return page, nil
}

// detectLanguage samples the title plus the first 100 words of body text.
// The result is diagnostic only; the heuristics always match both German
// and English phrases.
func detectLanguage(doc *goquery.Document, title string) string {
	words := strings.Fields(doc.Find("body").Text())
	if len(words) > 100 {
		words = words[:100]
	}
	sample := title + " " + strings.Join(words, " ")
	if strings.TrimSpace(sample) == "" {
		return ""
	}
	info := whatlanggo.Detect(sample)
	return info.Lang.Iso6393()
}
