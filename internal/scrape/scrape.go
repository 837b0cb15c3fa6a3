// Package scrape defines the collaborator boundary the worker pool consumes:
// a fetch/extract step and an output sink. The pool is agnostic to their
// internals and retries nothing on their behalf; a per-unit error is recorded
// as completed-with-error and the pool moves on.
package scrape

import (
	"context"
	"time"

	"github.com/blur702/legiscrawl/internal/roster"
)

// PageContent is one extracted page belonging to a member's web presence.
type PageContent struct {
	URL       string    `json:"url"`
	Title     string    `json:"title,omitempty"`
	Text      string    `json:"text"`
	FetchedAt time.Time `json:"fetched_at"`
}

// ExtractedContent is the output of processing one work unit.
type ExtractedContent struct {
	UnitID    string        `json:"unit_id"`
	Name      string        `json:"name"`
	SourceURL string        `json:"source_url"`
	Pages     []PageContent `json:"pages"`
	ScrapedAt time.Time     `json:"scraped_at"`
}

// Extractor fetches a member's site and extracts its content.
type Extractor interface {
	FetchAndExtract(ctx context.Context, member roster.Member) (ExtractedContent, error)
}

// Sink receives extracted content. The production sink is the
// embedding/vector-store write path; tests and local runs use files.
type Sink interface {
	Write(ctx context.Context, content ExtractedContent) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
