package models

import "strings"

// listDelimiters separate clauses in legacy list-shaped text: ASCII and Arabic
// semicolons, bullet markers, and line breaks.
var listDelimiters = []string{";", "؛", "•", "\n"}

// SplitListItems splits text on list delimiters and drops empty items.
func SplitListItems(text string) []string {
	parts := []string{text}
	for _, d := range listDelimiters {
		var next []string
		for _, p := range parts {
			next = append(next, strings.Split(p, d)...)
		}
		parts = next
	}

	items := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(p), "-*"))
		if p != "" {
			items = append(items, p)
		}
	}
	return items
}

// ClassifyLayout infers a layout from text shape: two or more delimited items
// make a list.
func ClassifyLayout(text string) Layout {
	if len(SplitListItems(text)) >= 2 {
		return LayoutList
	}
	return LayoutParagraph
}

// EffectiveLayout resolves LayoutAuto by inspecting the text.
func (b ContentBlock) EffectiveLayout() Layout {
	if b.Layout == LayoutAuto {
		return ClassifyLayout(b.Text)
	}
	return b.Layout
}
