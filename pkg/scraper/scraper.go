package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/xhad/webqa/internal/models"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/98.0.4758.102 Safari/537.36"

// Elements that never carry page content.
const strippedElements = "script, style, header, footer, nav, aside"

type ScraperConfig struct {
	UserAgent  string
	Timeout    time.Duration
	RateLimit  float64 // requests per second, 0 means unlimited
	Client     *http.Client
	OnProgress func(url string)
	Logger     *slog.Logger
}

type Scraper struct {
	config  ScraperConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewWithConfig(config ScraperConfig) *Scraper {
	if config.UserAgent == "" {
		config.UserAgent = defaultUserAgent
	}
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}

	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}

	client := config.Client
	if client == nil {
		client = &http.Client{
			Timeout: config.Timeout,
		}
	}

	return &Scraper{
		config:  config,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func New() *Scraper {
	return NewWithConfig(ScraperConfig{})
}

// Fetch downloads url and returns its visible text.
func (s *Scraper) Fetch(ctx context.Context, url string) (string, error) {
	page, err := s.FetchPage(ctx, url)
	if err != nil {
		return "", err
	}
	s.config.Logger.Debug("fetched page", "url", page.URL, "title", page.Title, "chars", len(page.Content))
	return page.Content, nil
}

func (s *Scraper) FetchPage(ctx context.Context, url string) (models.Page, error) {
	if s.config.OnProgress != nil {
		s.config.OnProgress(url)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return models.Page{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.Page{}, err
	}
	req.Header.Set("User-Agent", s.config.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return models.Page{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.Page{}, fmt.Errorf("%s for url: %s", resp.Status, url)
	}

	// Decode to UTF-8 using the declared charset, or a sniffed one.
	body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return models.Page{}, fmt.Errorf("failed to decode body: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return models.Page{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return models.Page{
		URL:     url,
		Title:   cleanContent(doc.Find("title").First().Text()),
		Content: extractVisibleText(doc),
	}, nil
}

func extractVisibleText(doc *goquery.Document) string {
	doc.Find(strippedElements).Remove()

	var parts []string
	collectText(doc.Selection, &parts)
	return strings.Join(parts, " ")
}

func collectText(sel *goquery.Selection, parts *[]string) {
	sel.Contents().Each(func(_ int, node *goquery.Selection) {
		switch goquery.NodeName(node) {
		case "#text":
			if text := cleanContent(node.Text()); text != "" {
				*parts = append(*parts, text)
			}
		case "#comment":
		default:
			collectText(node, parts)
		}
	})
}

func cleanContent(content string) string {
	return strings.Join(strings.Fields(content), " ")
}
