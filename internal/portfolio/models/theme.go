package models

// ThemeScope says which pages a theme may style.
type ThemeScope string

const (
	ThemeScopeFull  ThemeScope = "full"
	ThemeScopeCover ThemeScope = "cover"
)

// Theme is a named visual style from the read-only theme catalog.
type Theme struct {
	ID         string     `json:"id" yaml:"id"`
	Name       string     `json:"name" yaml:"name"`
	Scope      ThemeScope `json:"scope" yaml:"scope"`
	Primary    string     `json:"primary" yaml:"primary"`
	Accent     string     `json:"accent" yaml:"accent"`
	Background string     `json:"background" yaml:"background"`
	Text       string     `json:"text" yaml:"text"`
	Font       string     `json:"font" yaml:"font"`
}
