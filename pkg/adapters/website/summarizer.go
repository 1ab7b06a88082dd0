// Package website reads a client's public website to give the analysis
// business context the intake form does not capture.
package website

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/config"
)

const maxItemsPerSection = 6

// Summary is the business-relevant content of a homepage.
type Summary struct {
	URL          string   `json:"url"`
	Title        string   `json:"title"`
	Hero         string   `json:"hero"`
	About        []string `json:"about,omitempty"`
	Services     []string `json:"services,omitempty"`
	Testimonials []string `json:"testimonials,omitempty"`
	Contact      []string `json:"contact,omitempty"`
}

// IsEmpty reports whether nothing useful was found.
func (s *Summary) IsEmpty() bool {
	return s.Title == "" && s.Hero == "" && len(s.About) == 0 &&
		len(s.Services) == 0 && len(s.Testimonials) == 0
}

// Format renders the summary for a prompt, cut to maxChars.
func (s *Summary) Format(maxChars int) string {
	var b strings.Builder
	line := func(label, v string) {
		if v != "" {
			fmt.Fprintf(&b, "- **%s**: %s\n", label, v)
		}
	}
	list := func(label string, vs []string) {
		if len(vs) > 0 {
			fmt.Fprintf(&b, "- **%s**: %s\n", label, strings.Join(vs, "; "))
		}
	}
	line("Site", s.URL)
	line("Title", s.Title)
	line("Headline", s.Hero)
	list("About", s.About)
	list("Services", s.Services)
	list("Testimonials", s.Testimonials)
	list("Contact", s.Contact)
	return truncate(b.String(), maxChars)
}

// Summarizer fetches public pages.
type Summarizer interface {
	Summarize(ctx context.Context, rawURL string) (*Summary, error)

	// FetchText returns the visible text of a page, e.g. a published SOP.
	FetchText(ctx context.Context, rawURL string) (string, error)
}

type collySummarizer struct {
	cfg    config.ScraperConfig
	logger *zap.Logger
}

// NewSummarizer creates a colly-backed Summarizer.
func NewSummarizer(cfg config.ScraperConfig, logger *zap.Logger) Summarizer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 6000
	}
	return &collySummarizer{cfg: cfg, logger: logger.Named("website")}
}

var _ Summarizer = (*collySummarizer)(nil)

func (s *collySummarizer) newCollector(ctx context.Context) *colly.Collector {
	opts := []colly.CollectorOption{
		colly.StdlibContext(ctx),
		colly.MaxBodySize(5 << 20),
	}
	if s.cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(s.cfg.UserAgent))
	}
	c := colly.NewCollector(opts...)
	c.SetRequestTimeout(s.cfg.Timeout)
	return c
}

func (s *collySummarizer) Summarize(ctx context.Context, rawURL string) (*Summary, error) {
	target, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	summary := &Summary{URL: target}
	c := s.newCollector(ctx)

	c.OnHTML("title", func(e *colly.HTMLElement) {
		if summary.Title == "" {
			summary.Title = clean(e.Text)
		}
	})
	c.OnHTML(`meta[name="description"], meta[property="og:description"]`, func(e *colly.HTMLElement) {
		if summary.Hero == "" {
			summary.Hero = clean(e.Attr("content"))
		}
	})
	c.OnHTML("h1", func(e *colly.HTMLElement) {
		if summary.Hero == "" {
			summary.Hero = clean(e.Text)
		}
	})
	c.OnHTML(`[id*="about"] p, [class*="about"] p`, func(e *colly.HTMLElement) {
		summary.About = appendItem(summary.About, e.Text)
	})
	c.OnHTML(`[id*="service"] h2, [id*="service"] h3, [class*="service"] h3, [class*="service"] li`, func(e *colly.HTMLElement) {
		summary.Services = appendItem(summary.Services, e.Text)
	})
	c.OnHTML(`[class*="testimonial"] p, [id*="testimonial"] p, blockquote`, func(e *colly.HTMLElement) {
		summary.Testimonials = appendItem(summary.Testimonials, e.Text)
	})
	c.OnHTML(`a[href^="mailto:"], a[href^="tel:"]`, func(e *colly.HTMLElement) {
		href := e.Attr("href")
		contact := strings.TrimPrefix(strings.TrimPrefix(href, "mailto:"), "tel:")
		summary.Contact = appendItem(summary.Contact, contact)
	})

	if err := s.visit(c, target); err != nil {
		return nil, err
	}

	s.logger.Debug("Website summarized",
		zap.String("url", target),
		zap.Int("services", len(summary.Services)),
		zap.Int("testimonials", len(summary.Testimonials)))
	return summary, nil
}

func (s *collySummarizer) FetchText(ctx context.Context, rawURL string) (string, error) {
	target, err := NormalizeURL(rawURL)
	if err != nil {
		return "", err
	}

	var parts []string
	c := s.newCollector(ctx)
	c.OnHTML("body h1, body h2, body h3, body p, body li, body td", func(e *colly.HTMLElement) {
		if t := clean(e.Text); t != "" {
			parts = append(parts, t)
		}
	})
	c.OnResponse(func(r *colly.Response) {
		ct := r.Headers.Get("Content-Type")
		if strings.HasPrefix(ct, "text/plain") || strings.HasPrefix(ct, "text/markdown") {
			parts = append(parts, string(r.Body))
		}
	})

	if err := s.visit(c, target); err != nil {
		return "", err
	}
	text := strings.TrimSpace(strings.Join(parts, "\n"))
	if text == "" {
		return "", fmt.Errorf("no readable text at %s", target)
	}
	return truncate(text, s.cfg.MaxChars), nil
}

func (s *collySummarizer) visit(c *colly.Collector, target string) error {
	var fetchErr error
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("failed to fetch %s (status %d): %w", target, r.StatusCode, err)
	})
	err := c.Visit(target)
	c.Wait()
	if fetchErr != nil {
		return fetchErr
	}
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", target, err)
	}
	return nil
}

// NormalizeURL accepts bare domains ("acme.com") and rejects non-HTTP schemes.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("website URL is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid website URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("website URL has no host")
	}
	return u.String(), nil
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func appendItem(items []string, text string) []string {
	text = clean(text)
	if text == "" || len(items) >= maxItemsPerSection {
		return items
	}
	for _, existing := range items {
		if existing == text {
			return items
		}
	}
	return append(items, truncate(text, 300))
}

func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "..."
}
