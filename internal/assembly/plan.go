package assembly

import (
	"fmt"

	"portfolio/internal/portfolio/models"
	dErrors "portfolio/pkg/domain-errors"
)

// Limits fix the size of a document. MaxPages is a closed-form bound checked
// before any page is rendered.
type Limits struct {
	FrontMatterPages int
	MaxStandards     int
}

func (l Limits) MaxPages() int {
	return l.FrontMatterPages + 2*l.MaxStandards
}

// Plan is the ordered page list of a document, known before rendering.
type Plan struct {
	Scope        models.Scope     `json:"scope"`
	PageCount    int              `json:"page_count"`
	Pages        []models.PageRef `json:"pages"`
	Placeholders []int            `json:"placeholders"`
	Problems     []string         `json:"problems,omitempty"`

	resolution *models.Resolution
	units      []int
}

// BuildPlan lays out front matter (full scope only) followed by a divider and
// a detail or placeholder page per standard.
func BuildPlan(res *models.Resolution, limits Limits) (*Plan, error) {
	p := &Plan{Scope: res.Scope, Placeholders: []int{}, resolution: res}
	add := func(kind models.PageKind, standard, unit int) {
		p.Pages = append(p.Pages, models.PageRef{Index: len(p.Pages) + 1, Kind: kind, Standard: standard})
		p.units = append(p.units, unit)
	}

	if res.Scope.IsAll() {
		for i := 0; i < limits.FrontMatterPages; i++ {
			if i == 0 {
				add(models.PageCover, 0, -1)
			} else {
				add(models.PageFiller, 0, -1)
			}
		}
	}
	for i, unit := range res.Units {
		add(models.PageDivider, unit.Standard.Number, i)
		if unit.IsPlaceholder() {
			add(models.PagePlaceholder, unit.Standard.Number, i)
			p.Placeholders = append(p.Placeholders, unit.Standard.Number)
		} else {
			add(models.PageEvidenceDetail, unit.Standard.Number, i)
		}
		if unit.Problem != nil {
			p.Problems = append(p.Problems, unit.Problem.Error())
		}
	}

	p.PageCount = len(p.Pages)
	if p.PageCount > limits.MaxPages() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
			"document would have %d pages, limit is %d", p.PageCount, limits.MaxPages())
	}
	return p, nil
}

// unit returns the content unit behind page i, or nil for front matter.
func (p *Plan) unit(i int) *models.ContentUnit {
	if p.units[i] < 0 {
		return nil
	}
	return &p.resolution.Units[p.units[i]]
}

// label names the smallest unit a page failure is reported against.
func (p *Plan) label(i int) string {
	ref := p.Pages[i]
	if ref.Standard > 0 {
		return fmt.Sprintf("Standard #%d", ref.Standard)
	}
	return fmt.Sprintf("front matter page %d", ref.Index)
}
