package models

import (
	"time"

	id "portfolio/pkg/domain"
)

// BlockSource records where a resolved block's text came from.
type BlockSource string

const (
	SourceDefault  BlockSource = "default"
	SourceOverride BlockSource = "override"
)

// ContentBlock is one resolved, labeled block ready for rendering.
type ContentBlock struct {
	Label  string      `json:"label"`
	Text   string      `json:"text"`
	Source BlockSource `json:"source"`
	Layout Layout      `json:"layout,omitempty"`
}

// FieldValue is one row of the metadata grid on a detail page.
type FieldValue struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ResolvedEvidence is the merged content of one evidence instance.
type ResolvedEvidence struct {
	InstanceID  id.InstanceID            `json:"instance_id"`
	Title       string                   `json:"title"`
	Description string                   `json:"description"`
	Fields      []FieldValue             `json:"fields"`
	Blocks      [BlockCount]ContentBlock `json:"blocks"`
	Images      [MaxImages]string        `json:"images"`
	ThemeID     string                   `json:"theme_id,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
}

// ContentUnit is the content for one standard: its divider plus either resolved
// evidence or a placeholder. Problem is set when a hierarchy branch was missing.
type ContentUnit struct {
	Standard Standard          `json:"standard"`
	Evidence *ResolvedEvidence `json:"evidence,omitempty"`
	Problem  error             `json:"-"`
}

// IsPlaceholder reports whether the unit renders a placeholder detail page.
func (u ContentUnit) IsPlaceholder() bool {
	return u.Evidence == nil
}

// Scope selects the standards a document covers.
type Scope struct {
	Standard int `json:"standard,omitempty"`
}

// AllStandards covers every standard with front matter.
func AllStandards() Scope { return Scope{} }

// SingleStandard covers one standard without front matter.
func SingleStandard(number int) Scope { return Scope{Standard: number} }

// IsAll reports whether the scope covers every standard.
func (s Scope) IsAll() bool { return s.Standard == 0 }

// Resolution is the read-only content tree for one generation.
type Resolution struct {
	Profile UserProfile   `json:"profile"`
	Scope   Scope         `json:"scope"`
	Units   []ContentUnit `json:"units"`
}

// InstanceIDs lists the evidence instances referenced by the resolution in order.
func (r *Resolution) InstanceIDs() []id.InstanceID {
	var out []id.InstanceID
	for _, u := range r.Units {
		if u.Evidence != nil {
			out = append(out, u.Evidence.InstanceID)
		}
	}
	return out
}
