// Package fixtures seeds an in-memory catalog for tests across packages.
package fixtures

import (
	"fmt"

	"github.com/google/uuid"

	catalogstore "portfolio/internal/catalog/store"
	"portfolio/internal/portfolio/models"
	id "portfolio/pkg/domain"
)

var namespace = uuid.MustParse("6f1c1b7e-3d0b-4d4f-9a57-7f2e51b0c3a1")

// TemplateID returns the deterministic template ID for a standard.
func TemplateID(standard int) id.TemplateID {
	return id.TemplateID(uuid.NewSHA1(namespace, []byte(fmt.Sprintf("template-%d", standard))))
}

// SubTemplateID returns the deterministic sub-template ID for a standard.
func SubTemplateID(standard int) id.SubTemplateID {
	return id.SubTemplateID(uuid.NewSHA1(namespace, []byte(fmt.Sprintf("sub-template-%d", standard))))
}

// Catalog seeds n standards, each with one template. Block 1 of every template
// is legacy list-shaped text without a layout flag. Standard 1 also has a
// sub-template for primary-stage math teachers that repeats that list and
// replaces block 3.
func Catalog(n int) *catalogstore.InMemoryStore {
	st := catalogstore.NewInMemoryStore()
	for i := 1; i <= n; i++ {
		st.PutStandard(models.Standard{
			Number: i,
			Title:  fmt.Sprintf("Standard %d", i),
			Weight: 1,
		})
		st.PutTemplate(Template(i))
	}
	if n >= 1 {
		st.PutSubTemplate(SubTemplate(1))
	}
	return st
}

func Template(standard int) models.EvidenceTemplate {
	t := models.EvidenceTemplate{
		ID:             TemplateID(standard),
		StandardNumber: standard,
		Title:          fmt.Sprintf("Evidence %d", standard),
		Description:    fmt.Sprintf("Evidence for standard %d", standard),
		Fields: []models.FieldDef{
			{Key: "teacher", Label: "Teacher", Required: true, AutoFill: models.AutoFillName},
			{Key: "activity", Label: "Activity"},
		},
	}
	for b := 0; b < models.BlockCount; b++ {
		t.BlockLabels[b] = fmt.Sprintf("Block %d", b+1)
		t.Blocks[b] = models.BlockText{
			Text:   fmt.Sprintf("Default %d.%d", standard, b+1),
			Layout: models.LayoutParagraph,
		}
	}
	t.Blocks[0] = models.BlockText{Text: "A; B; C"}
	return t
}

func SubTemplate(standard int) models.EvidenceSubTemplate {
	sub := models.EvidenceSubTemplate{
		ID:         SubTemplateID(standard),
		TemplateID: TemplateID(standard),
		Title:      fmt.Sprintf("Evidence %d for primary math", standard),
		Images:     []string{"https://images.example/sub-default.png"},
		Stages:     []string{"primary"},
		Subjects:   []string{"math"},
	}
	sub.Blocks[0] = models.BlockText{Text: "A; B; C"}
	sub.Blocks[2] = models.BlockText{Text: "Sub-template default", Layout: models.LayoutParagraph}
	return sub
}

// Profile returns a primary-stage math teacher profile.
func Profile(userID id.UserID) models.UserProfile {
	return models.UserProfile{
		UserID:   userID,
		Name:     "Huda Salem",
		School:   "Al Noor School",
		Stage:    "primary",
		Subjects: []string{"math", "science"},
	}
}
