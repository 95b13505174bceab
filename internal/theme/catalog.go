// Package theme loads the read-only theme catalog embedded in the binary.
package theme

import (
	_ "embed"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"

	"portfolio/internal/portfolio/models"
)

//go:embed themes.yaml
var defaultCatalog []byte

var (
	colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	fontPattern  = regexp.MustCompile(`^[\p{L}\p{N} ,'-]*$`)
)

type catalogFile struct {
	Default string         `yaml:"default"`
	Themes  []models.Theme `yaml:"themes"`
}

// Catalog is an immutable set of themes. Safe for concurrent use.
type Catalog struct {
	themes    []models.Theme
	byID      map[string]models.Theme
	defaultID string
}

// Load returns the embedded catalog.
func Load() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Parse builds a catalog from YAML and validates every entry.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse theme catalog: %w", err)
	}
	c := &Catalog{byID: make(map[string]models.Theme, len(file.Themes)), defaultID: file.Default}
	for _, t := range file.Themes {
		if err := validate(t); err != nil {
			return nil, err
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate theme %q", t.ID)
		}
		c.byID[t.ID] = t
		c.themes = append(c.themes, t)
	}
	def, ok := c.byID[c.defaultID]
	if !ok {
		return nil, fmt.Errorf("default theme %q not in catalog", c.defaultID)
	}
	if def.Scope != models.ThemeScopeFull {
		return nil, fmt.Errorf("default theme %q must have full scope", c.defaultID)
	}
	return c, nil
}

func validate(t models.Theme) error {
	if t.ID == "" {
		return fmt.Errorf("theme without id")
	}
	if t.Scope != models.ThemeScopeFull && t.Scope != models.ThemeScopeCover {
		return fmt.Errorf("theme %q: unknown scope %q", t.ID, t.Scope)
	}
	for _, c := range []string{t.Primary, t.Accent, t.Background, t.Text} {
		if !colorPattern.MatchString(c) {
			return fmt.Errorf("theme %q: invalid color %q", t.ID, c)
		}
	}
	if !fontPattern.MatchString(t.Font) {
		return fmt.Errorf("theme %q: invalid font %q", t.ID, t.Font)
	}
	return nil
}

func (c *Catalog) Get(id string) (models.Theme, bool) {
	t, ok := c.byID[id]
	return t, ok
}

// List returns themes in catalog order.
func (c *Catalog) List() []models.Theme {
	return append([]models.Theme(nil), c.themes...)
}

func (c *Catalog) Default() models.Theme {
	return c.byID[c.defaultID]
}

// ForCover returns the document theme, or the default when it is unknown.
func (c *Catalog) ForCover(documentTheme string) models.Theme {
	if t, ok := c.byID[documentTheme]; ok {
		return t
	}
	return c.Default()
}

// ForPage picks the theme for a non-cover page. A cover-only theme never styles
// inner pages: the instance theme wins if it is full scope, then the document
// theme if it is full scope, then the default.
func (c *Catalog) ForPage(documentTheme, instanceTheme string) models.Theme {
	if t, ok := c.byID[instanceTheme]; ok && t.Scope == models.ThemeScopeFull {
		return t
	}
	if t, ok := c.byID[documentTheme]; ok && t.Scope == models.ThemeScopeFull {
		return t
	}
	return c.Default()
}
