package models

import (
	"time"

	id "portfolio/pkg/domain"
)

// EvidenceInstance is one user's filled-in realization of a template.
type EvidenceInstance struct {
	ID            id.InstanceID         `json:"id"`
	UserID        id.UserID             `json:"-"`
	TemplateID    id.TemplateID         `json:"template_id"`
	SubTemplateID id.SubTemplateID      `json:"sub_template_id,omitempty"`
	Fields        map[string]string     `json:"fields"`
	Blocks        [BlockCount]BlockText `json:"blocks"`
	Images        []string              `json:"images"`
	ThemeID       string                `json:"theme_id,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// Clone returns a deep copy so stores never hand out shared maps or slices.
func (e EvidenceInstance) Clone() EvidenceInstance {
	out := e
	if e.Fields != nil {
		out.Fields = make(map[string]string, len(e.Fields))
		for k, v := range e.Fields {
			out.Fields[k] = v
		}
	}
	out.Images = append([]string(nil), e.Images...)
	return out
}
