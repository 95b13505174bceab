// Package models holds the portfolio content hierarchy: standards, evidence
// templates and sub-templates, user evidence instances, and the resolved
// content units the renderer consumes.
package models

import (
	"slices"
	"strings"
	"time"

	id "portfolio/pkg/domain"
	platformstrings "portfolio/pkg/platform/strings"
)

// BlockCount is the fixed number of labeled content blocks per template.
const BlockCount = 6

// MaxImages is the number of image slots on an evidence detail page.
const MaxImages = 2

// Standard is a numbered, ordered top-level category.
type Standard struct {
	Number      int     `json:"number"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}

// Layout tells the renderer how a block's text is laid out. It is decided when
// content is authored; LayoutAuto only appears on legacy template data.
type Layout string

const (
	LayoutAuto      Layout = ""
	LayoutList      Layout = "list"
	LayoutParagraph Layout = "paragraph"
)

// Valid reports whether l is a known layout.
func (l Layout) Valid() bool {
	return l == LayoutAuto || l == LayoutList || l == LayoutParagraph
}

// BlockText is authored block content.
type BlockText struct {
	Text   string `json:"text"`
	Layout Layout `json:"layout,omitempty"`
}

// Empty reports whether the block carries no visible text.
func (b BlockText) Empty() bool {
	return strings.TrimSpace(b.Text) == ""
}

// AutoFill names the profile field used when a user leaves a field empty.
type AutoFill string

const (
	AutoFillNone     AutoFill = ""
	AutoFillName     AutoFill = "name"
	AutoFillSchool   AutoFill = "school"
	AutoFillStage    AutoFill = "stage"
	AutoFillSubjects AutoFill = "subjects"
)

// FieldDef is a free-form field a user fills in on an evidence instance.
type FieldDef struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	Required bool     `json:"required"`
	AutoFill AutoFill `json:"auto_fill,omitempty"`
}

// EvidenceTemplate is a unit of work under one standard with default content.
type EvidenceTemplate struct {
	ID             id.TemplateID         `json:"id"`
	StandardNumber int                   `json:"standard_number"`
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	BlockLabels    [BlockCount]string    `json:"block_labels"`
	Blocks         [BlockCount]BlockText `json:"blocks"`
	Fields         []FieldDef            `json:"fields,omitempty"`
}

// EvidenceSubTemplate refines a template for specific stages and subjects.
// Empty filter lists match every profile.
type EvidenceSubTemplate struct {
	ID          id.SubTemplateID      `json:"id"`
	TemplateID  id.TemplateID         `json:"template_id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Blocks      [BlockCount]BlockText `json:"blocks"`
	Fields      []FieldDef            `json:"fields,omitempty"`
	Images      []string              `json:"images,omitempty"`
	Stages      []string              `json:"stages,omitempty"`
	Subjects    []string              `json:"subjects,omitempty"`
}

// Matches reports whether the sub-template applies to the profile.
func (s EvidenceSubTemplate) Matches(p UserProfile) bool {
	if len(s.Stages) > 0 && !platformstrings.ContainsFold(s.Stages, p.Stage) {
		return false
	}
	if len(s.Subjects) > 0 {
		return slices.ContainsFunc(p.Subjects, func(subject string) bool {
			return platformstrings.ContainsFold(s.Subjects, subject)
		})
	}
	return true
}

// UserProfile holds the teacher identity printed on the cover page.
type UserProfile struct {
	UserID    id.UserID `json:"user_id"`
	Name      string    `json:"name"`
	School    string    `json:"school"`
	Stage     string    `json:"stage"`
	Subjects  []string  `json:"subjects"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AutoFillValue returns the profile value for a field source.
func (p UserProfile) AutoFillValue(src AutoFill) string {
	switch src {
	case AutoFillName:
		return p.Name
	case AutoFillSchool:
		return p.School
	case AutoFillStage:
		return p.Stage
	case AutoFillSubjects:
		return strings.Join(p.Subjects, "، ")
	default:
		return ""
	}
}
