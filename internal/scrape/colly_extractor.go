package scrape

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/blur702/legiscrawl/internal/roster"
)

// CollyConfig controls the Colly-backed extractor.
type CollyConfig struct {
	UserAgent      string
	RequestTimeout time.Duration
	MaxPages       int
}

// CollyExtractor fetches a member's site with Colly and extracts page text.
// It stays on the member's host and visits at most MaxPages pages per unit,
// so one unit's cost is bounded regardless of site structure.
type CollyExtractor struct {
	cfg    CollyConfig
	clock  Clock
	logger *zap.Logger
}

// NewCollyExtractor constructs an extractor with defaults applied.
func NewCollyExtractor(cfg CollyConfig, clock Clock, logger *zap.Logger) *CollyExtractor {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "legiscrawl/1.0 (+https://github.com/blur702/legiscrawl)"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CollyExtractor{cfg: cfg, clock: clock, logger: logger}
}

// FetchAndExtract crawls the member's site breadth-first from its seed URL.
func (e *CollyExtractor) FetchAndExtract(ctx context.Context, member roster.Member) (ExtractedContent, error) {
	seed, err := url.Parse(member.URL)
	if err != nil {
		return ExtractedContent{}, fmt.Errorf("parse seed url %q: %w", member.URL, err)
	}

	c := colly.NewCollector(
		colly.UserAgent(e.cfg.UserAgent),
		colly.AllowedDomains(seed.Hostname()),
		colly.MaxDepth(2),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(e.cfg.RequestTimeout)

	content := ExtractedContent{
		UnitID:    member.ID,
		Name:      member.Name,
		SourceURL: member.URL,
		ScrapedAt: e.clock.Now(),
	}
	var fetchErr error

	c.OnHTML("html", func(h *colly.HTMLElement) {
		if len(content.Pages) >= e.cfg.MaxPages {
			return
		}
		content.Pages = append(content.Pages, PageContent{
			URL:       h.Request.URL.String(),
			Title:     strings.TrimSpace(h.DOM.Find("title").First().Text()),
			Text:      normalizeText(h.DOM.Find("body").Text()),
			FetchedAt: e.clock.Now(),
		})
	})

	c.OnHTML("a[href]", func(h *colly.HTMLElement) {
		if len(content.Pages) >= e.cfg.MaxPages {
			return
		}
		link := h.Request.AbsoluteURL(h.Attr("href"))
		if link == "" {
			return
		}
		if err := h.Request.Visit(link); err != nil {
			e.logger.Debug("skip link", zap.String("url", link), zap.Error(err))
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		e.logger.Warn("page fetch failed",
			zap.String("unit_id", member.ID),
			zap.String("url", r.Request.URL.String()),
			zap.Error(err),
		)
		if fetchErr == nil {
			fetchErr = err
		}
	})

	if err := c.Visit(member.URL); err != nil {
		return ExtractedContent{}, fmt.Errorf("visit %s: %w", member.URL, err)
	}
	c.Wait()

	if len(content.Pages) == 0 {
		if fetchErr != nil {
			return ExtractedContent{}, fmt.Errorf("fetch %s: %w", member.URL, fetchErr)
		}
		return ExtractedContent{}, fmt.Errorf("no pages extracted from %s", member.URL)
	}
	return content, nil
}

func normalizeText(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
