// Package resolver merges template defaults with a user's evidence into the
// ordered content units a document is rendered from.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"portfolio/internal/portfolio/models"
	id "portfolio/pkg/domain"
	dErrors "portfolio/pkg/domain-errors"
	"portfolio/pkg/requestcontext"
)

type Resolver struct {
	source SnapshotSource
	logger *slog.Logger
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func New(source SnapshotSource, opts ...Option) *Resolver {
	r := &Resolver{source: source, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve loads one snapshot and returns a content unit per standard in
// ascending number order. Missing hierarchy branches degrade to placeholder
// units; only an unknown user fails the call.
func (r *Resolver) Resolve(ctx context.Context, userID id.UserID, scope models.Scope) (*models.Resolution, error) {
	snap, err := r.source.LoadSnapshot(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user profile not found")
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, dErrors.Wrap(ctxErr, dErrors.CodeTimeout, "content snapshot not loaded in time")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load content snapshot")
	}
	return r.resolveSnapshot(ctx, snap, scope), nil
}

func (r *Resolver) resolveSnapshot(ctx context.Context, snap *Snapshot, scope models.Scope) *models.Resolution {
	standards := slices.Clone(snap.Standards)
	slices.SortStableFunc(standards, func(a, b models.Standard) int { return a.Number - b.Number })

	if !scope.IsAll() {
		idx := slices.IndexFunc(standards, func(s models.Standard) bool { return s.Number == scope.Standard })
		if idx < 0 {
			return &models.Resolution{
				Profile: snap.Profile,
				Scope:   scope,
				Units: []models.ContentUnit{{
					Standard: models.Standard{Number: scope.Standard},
					Problem:  dErrors.Newf(dErrors.CodeNotFound, "standard #%d not found", scope.Standard),
				}},
			}
		}
		standards = standards[idx : idx+1]
	}

	templatesByStandard := make(map[int]int)
	for _, t := range snap.Templates {
		templatesByStandard[t.StandardNumber]++
	}
	representatives := r.representatives(ctx, snap)

	units := make([]models.ContentUnit, 0, len(standards))
	for _, std := range standards {
		unit := models.ContentUnit{Standard: std}
		switch inst, ok := representatives[std.Number]; {
		case ok:
			tmpl := snap.Templates[inst.TemplateID]
			sub := selectSubTemplate(snap, tmpl, inst)
			unit.Evidence = resolveEvidence(snap.Profile, tmpl, sub, inst)
		case templatesByStandard[std.Number] == 0:
			unit.Problem = dErrors.Newf(dErrors.CodeNotFound, "standard #%d has no evidence templates", std.Number)
		}
		units = append(units, unit)
	}
	return &models.Resolution{Profile: snap.Profile, Scope: scope, Units: units}
}

// representatives picks the most recently updated instance per standard.
// Instances whose template is gone cannot be placed and are skipped.
func (r *Resolver) representatives(ctx context.Context, snap *Snapshot) map[int]models.EvidenceInstance {
	out := make(map[int]models.EvidenceInstance)
	for _, inst := range snap.Instances {
		tmpl, ok := snap.Templates[inst.TemplateID]
		if !ok {
			r.logger.WarnContext(ctx, "evidence references a missing template",
				"request_id", requestcontext.RequestID(ctx),
				"instance_id", inst.ID,
				"template_id", inst.TemplateID,
			)
			continue
		}
		cur, seen := out[tmpl.StandardNumber]
		if !seen || newer(inst, cur) {
			out[tmpl.StandardNumber] = inst
		}
	}
	return out
}

func newer(a, b models.EvidenceInstance) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.ID.String() > b.ID.String()
}

// selectSubTemplate honours an explicit sub-template reference, else the first
// sub-template of the template whose filters match the profile.
func selectSubTemplate(snap *Snapshot, tmpl models.EvidenceTemplate, inst models.EvidenceInstance) *models.EvidenceSubTemplate {
	if !inst.SubTemplateID.IsNil() {
		for i := range snap.SubTemplates {
			if snap.SubTemplates[i].ID == inst.SubTemplateID && snap.SubTemplates[i].TemplateID == tmpl.ID {
				return &snap.SubTemplates[i]
			}
		}
	}
	for i := range snap.SubTemplates {
		if snap.SubTemplates[i].TemplateID == tmpl.ID && snap.SubTemplates[i].Matches(snap.Profile) {
			return &snap.SubTemplates[i]
		}
	}
	return nil
}

func resolveEvidence(profile models.UserProfile, tmpl models.EvidenceTemplate, sub *models.EvidenceSubTemplate, inst models.EvidenceInstance) *models.ResolvedEvidence {
	ev := &models.ResolvedEvidence{
		InstanceID:  inst.ID,
		Title:       tmpl.Title,
		Description: tmpl.Description,
		ThemeID:     inst.ThemeID,
		CreatedAt:   inst.CreatedAt,
	}
	defaults := tmpl.Blocks
	fieldDefs := tmpl.Fields
	var subImages []string
	if sub != nil {
		ev.Title = firstNonEmpty(sub.Title, tmpl.Title)
		ev.Description = firstNonEmpty(sub.Description, tmpl.Description)
		for i, b := range sub.Blocks {
			if !b.Empty() {
				defaults[i] = b
			}
		}
		fieldDefs = overlayFields(fieldDefs, sub.Fields)
		subImages = sub.Images
	}

	for i := range ev.Blocks {
		ev.Blocks[i] = mergeBlock(tmpl.BlockLabels[i], defaults[i], inst.Blocks[i])
	}
	ev.Images = fillImages(inst.Images, subImages)
	ev.Fields = resolveFields(profile, fieldDefs, inst.Fields)
	return ev
}

// mergeBlock applies the per-block rule: a non-empty override wins, otherwise
// the default stands.
func mergeBlock(label string, def, override models.BlockText) models.ContentBlock {
	if !override.Empty() {
		return models.ContentBlock{
			Label:  label,
			Text:   strings.TrimSpace(override.Text),
			Source: models.SourceOverride,
			Layout: override.Layout,
		}
	}
	return models.ContentBlock{
		Label:  label,
		Text:   strings.TrimSpace(def.Text),
		Source: models.SourceDefault,
		Layout: def.Layout,
	}
}

func fillImages(instance, defaults []string) [models.MaxImages]string {
	var slots [models.MaxImages]string
	n := 0
	for _, src := range [][]string{instance, defaults} {
		for _, img := range src {
			if n == models.MaxImages {
				return slots
			}
			if img = strings.TrimSpace(img); img != "" {
				slots[n] = img
				n++
			}
		}
	}
	return slots
}

func resolveFields(profile models.UserProfile, defs []models.FieldDef, values map[string]string) []models.FieldValue {
	out := make([]models.FieldValue, 0, len(defs))
	for _, d := range defs {
		v := strings.TrimSpace(values[d.Key])
		if v == "" && d.AutoFill != models.AutoFillNone {
			v = profile.AutoFillValue(d.AutoFill)
		}
		out = append(out, models.FieldValue{Label: d.Label, Value: v})
	}
	return out
}

func overlayFields(base, overlay []models.FieldDef) []models.FieldDef {
	out := slices.Clone(base)
	for _, def := range overlay {
		if i := slices.IndexFunc(out, func(f models.FieldDef) bool { return f.Key == def.Key }); i >= 0 {
			out[i] = def
		} else {
			out = append(out, def)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
