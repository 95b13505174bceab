package models

import (
	"time"

	id "portfolio/pkg/domain"
)

// PageKind identifies the layout used for a page.
type PageKind string

const (
	PageCover          PageKind = "cover"
	PageFiller         PageKind = "filler"
	PageDivider        PageKind = "divider"
	PageEvidenceDetail PageKind = "evidence-detail"
	PagePlaceholder    PageKind = "placeholder"
)

// PageRef describes one page of an assembled document.
type PageRef struct {
	Index    int      `json:"index"`
	Kind     PageKind `json:"kind"`
	Standard int      `json:"standard,omitempty"`
}

// Document is a completed, stored portfolio artifact.
type Document struct {
	ID          id.DocumentID   `json:"id"`
	UserID      id.UserID       `json:"-"`
	Scope       Scope           `json:"scope"`
	ThemeID     string          `json:"theme_id"`
	PageCount   int             `json:"page_count"`
	Pages       []PageRef       `json:"pages"`
	InstanceIDs []id.InstanceID `json:"instance_ids"`
	Content     []byte          `json:"-"`
	CreatedAt   time.Time       `json:"created_at"`
}
