// Package engine abstracts the headless browser that prints HTML pages to PDF.
package engine

//go:generate mockgen -source=engine.go -destination=mocks/mocks.go -package=mocks

import "context"

// Engine starts isolated rendering sessions. Implementations must be safe for
// concurrent use.
type Engine interface {
	NewSession(ctx context.Context) (Session, error)
	Close() error
}

// Session prints pages one at a time. A session is used by one generation and
// closed when the generation ends, whatever the outcome.
type Session interface {
	// PrintPDF renders a full HTML document and returns the PDF bytes of its
	// pages. The document is expected to fit exactly one A4 page.
	PrintPDF(ctx context.Context, html string) ([]byte, error)
	Close() error
}
