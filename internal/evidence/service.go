// Package evidence manages the evidence instances a user authors against the
// template catalog. Every accepted instance is valid input for rendering.
package evidence

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"

	"portfolio/internal/evidence/store"
	"portfolio/internal/images"
	"portfolio/internal/portfolio/models"
	"portfolio/internal/verification"
	vmodels "portfolio/internal/verification/models"
	id "portfolio/pkg/domain"
	dErrors "portfolio/pkg/domain-errors"
	"portfolio/pkg/platform/audit"
	"portfolio/pkg/platform/sentinel"
	txcontext "portfolio/pkg/platform/tx"
	"portfolio/pkg/requestcontext"
)

const (
	maxBlockRunes  = 4000
	maxFieldRunes  = 500
	maxImageURLLen = 2048
)

type Store interface {
	Create(ctx context.Context, inst models.EvidenceInstance) error
	Update(ctx context.Context, inst models.EvidenceInstance) error
	FindByID(ctx context.Context, instanceID id.InstanceID) (models.EvidenceInstance, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]models.EvidenceInstance, error)
	Delete(ctx context.Context, instanceID id.InstanceID) error
}

// TemplateSource is the slice of the catalog store evidence validation needs.
type TemplateSource interface {
	GetStandard(ctx context.Context, number int) (models.Standard, error)
	GetTemplate(ctx context.Context, templateID id.TemplateID) (models.EvidenceTemplate, error)
	GetSubTemplate(ctx context.Context, subID id.SubTemplateID) (models.EvidenceSubTemplate, error)
}

type ThemeCatalog interface {
	Get(id string) (models.Theme, bool)
}

type Registry interface {
	Issue(ctx context.Context, req verification.IssueRequest) (*vmodels.Record, error)
	Revoke(ctx context.Context, instanceID id.InstanceID) error
}

// DocumentReferences reports whether a stored document includes an instance.
type DocumentReferences interface {
	IsReferenced(ctx context.Context, instanceID id.InstanceID) (bool, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

// BlockInput is one authored block. An empty Layout is classified from the
// text when the block is saved.
type BlockInput struct {
	Text   string        `json:"text"`
	Layout models.Layout `json:"layout,omitempty"`
}

// ContentInput carries the editable parts of an instance.
type ContentInput struct {
	SubTemplateID string            `json:"sub_template_id,omitempty"`
	Fields        map[string]string `json:"fields"`
	Blocks        []BlockInput      `json:"blocks"`
	Images        []string          `json:"images"`
	ThemeID       string            `json:"theme_id,omitempty"`
}

type CreateRequest struct {
	TemplateID string `json:"template_id"`
	ContentInput
}

// UpdateRequest replaces the instance content. The template is fixed at creation.
type UpdateRequest struct {
	ContentInput
}

type Service struct {
	store      Store
	templates  TemplateSource
	themes     ThemeCatalog
	registry   Registry
	references DocumentReferences
	tx         txcontext.Runner
	auditor    AuditPublisher
	logger     *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

func WithTxRunner(r txcontext.Runner) Option {
	return func(s *Service) {
		s.tx = r
	}
}

func WithDocumentReferences(r DocumentReferences) Option {
	return func(s *Service) {
		s.references = r
	}
}

func New(st Store, templates TemplateSource, themes ThemeCatalog, registry Registry, opts ...Option) *Service {
	s := &Service{
		store:     st,
		templates: templates,
		themes:    themes,
		registry:  registry,
		tx:        txcontext.NoopRunner{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates and stores a new instance and issues its verification record
// in the same transaction.
func (s *Service) Create(ctx context.Context, userID id.UserID, req CreateRequest) (*models.EvidenceInstance, error) {
	templateID, err := id.ParseTemplateID(req.TemplateID)
	if err != nil {
		return nil, err
	}
	tmpl, err := s.templates.GetTemplate(ctx, templateID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeValidation, "unknown template")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load template")
	}
	std, err := s.templates.GetStandard(ctx, tmpl.StandardNumber)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeValidation, "standard #%d not found", tmpl.StandardNumber)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load standard")
	}

	now := requestcontext.Now(ctx)
	inst := models.EvidenceInstance{
		ID:         id.NewInstanceID(),
		UserID:     userID,
		TemplateID: tmpl.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	title, err := s.applyContent(ctx, tmpl, &inst, req.ContentInput)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, inst); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save evidence")
		}
		if _, err := s.registry.Issue(ctx, verification.IssueRequest{
			UserID:     userID,
			InstanceID: inst.ID,
			Title:      title,
			Category:   std.Title,
			CreatedAt:  now,
		}); err != nil {
			return err
		}
		return s.emit(ctx, userID, inst.ID, audit.EventEvidenceCreated)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "evidence created",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID,
		"instance_id", inst.ID,
		"standard", tmpl.StandardNumber,
	)
	return &inst, nil
}

// Update replaces the content of an instance the user owns.
func (s *Service) Update(ctx context.Context, userID id.UserID, instanceID id.InstanceID, req UpdateRequest) (*models.EvidenceInstance, error) {
	inst, err := s.owned(ctx, userID, instanceID)
	if err != nil {
		return nil, err
	}
	tmpl, err := s.templates.GetTemplate(ctx, inst.TemplateID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeValidation, "template no longer exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load template")
	}
	if _, err := s.applyContent(ctx, tmpl, &inst, req.ContentInput); err != nil {
		return nil, err
	}
	inst.UpdatedAt = requestcontext.Now(ctx)

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Update(ctx, inst); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "evidence not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update evidence")
		}
		return s.emit(ctx, userID, inst.ID, audit.EventEvidenceUpdated)
	})
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

func (s *Service) Get(ctx context.Context, userID id.UserID, instanceID id.InstanceID) (*models.EvidenceInstance, error) {
	inst, err := s.owned(ctx, userID, instanceID)
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

func (s *Service) ListByUser(ctx context.Context, userID id.UserID) ([]models.EvidenceInstance, error) {
	list, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list evidence")
	}
	if list == nil {
		list = []models.EvidenceInstance{}
	}
	return list, nil
}

// Delete removes an instance and revokes its verification record. Instances
// included in a stored document cannot be deleted.
func (s *Service) Delete(ctx context.Context, userID id.UserID, instanceID id.InstanceID) error {
	if _, err := s.owned(ctx, userID, instanceID); err != nil {
		return err
	}
	if s.references != nil {
		referenced, err := s.references.IsReferenced(ctx, instanceID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check document references")
		}
		if referenced {
			return dErrors.New(dErrors.CodeConflict, "evidence is part of a stored portfolio document")
		}
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Delete(ctx, instanceID); err != nil {
			switch {
			case errors.Is(err, store.ErrConflict):
				return dErrors.New(dErrors.CodeConflict, "evidence is part of a stored portfolio document")
			case errors.Is(err, store.ErrNotFound):
				return dErrors.New(dErrors.CodeNotFound, "evidence not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete evidence")
		}
		if err := s.registry.Revoke(ctx, instanceID); err != nil {
			return err
		}
		return s.emit(ctx, userID, instanceID, audit.EventEvidenceDeleted)
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "evidence deleted",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID,
		"instance_id", instanceID,
	)
	return nil
}

// owned loads an instance and hides instances of other users behind NotFound.
func (s *Service) owned(ctx context.Context, userID id.UserID, instanceID id.InstanceID) (models.EvidenceInstance, error) {
	inst, err := s.store.FindByID(ctx, instanceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.EvidenceInstance{}, dErrors.New(dErrors.CodeNotFound, "evidence not found")
		}
		return models.EvidenceInstance{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load evidence")
	}
	if inst.UserID != userID {
		return models.EvidenceInstance{}, dErrors.New(dErrors.CodeNotFound, "evidence not found")
	}
	return inst, nil
}

// applyContent validates input against the template and writes it onto inst.
// It returns the title the evidence is shown under, which is the selected
// sub-template's when it has one.
func (s *Service) applyContent(ctx context.Context, tmpl models.EvidenceTemplate, inst *models.EvidenceInstance, in ContentInput) (string, error) {
	fieldDefs := tmpl.Fields
	title := tmpl.Title
	inst.SubTemplateID = id.SubTemplateID{}
	if strings.TrimSpace(in.SubTemplateID) != "" {
		subID, err := id.ParseSubTemplateID(in.SubTemplateID)
		if err != nil {
			return "", err
		}
		sub, err := s.templates.GetSubTemplate(ctx, subID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return "", dErrors.New(dErrors.CodeValidation, "unknown sub-template")
			}
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load sub-template")
		}
		if sub.TemplateID != tmpl.ID {
			return "", dErrors.New(dErrors.CodeValidation, "sub-template belongs to a different template")
		}
		inst.SubTemplateID = sub.ID
		if strings.TrimSpace(sub.Title) != "" {
			title = sub.Title
		}
		fieldDefs = mergeFieldDefs(fieldDefs, sub.Fields)
	}

	fields, err := validateFields(fieldDefs, in.Fields)
	if err != nil {
		return "", err
	}
	blocks, err := validateBlocks(in.Blocks)
	if err != nil {
		return "", err
	}
	images, err := validateImages(in.Images)
	if err != nil {
		return "", err
	}
	themeID := strings.TrimSpace(in.ThemeID)
	if themeID != "" {
		if _, ok := s.themes.Get(themeID); !ok {
			return "", dErrors.Newf(dErrors.CodeValidation, "unknown theme %q", themeID)
		}
	}

	inst.Fields = fields
	inst.Blocks = blocks
	inst.Images = images
	inst.ThemeID = themeID
	return title, nil
}

func (s *Service) emit(ctx context.Context, userID id.UserID, instanceID id.InstanceID, action audit.AuditEvent) error {
	if s.auditor == nil {
		return nil
	}
	if err := s.auditor.Emit(ctx, audit.ComplianceEvent{
		UserID:    userID,
		Subject:   instanceID.String(),
		Action:    string(action),
		RequestID: requestcontext.RequestID(ctx),
	}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to audit evidence change")
	}
	return nil
}

// mergeFieldDefs overlays sub-template field definitions on the template's.
func mergeFieldDefs(base, overlay []models.FieldDef) []models.FieldDef {
	out := append([]models.FieldDef(nil), base...)
	for _, def := range overlay {
		replaced := false
		for i := range out {
			if out[i].Key == def.Key {
				out[i] = def
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, def)
		}
	}
	return out
}

func validateFields(defs []models.FieldDef, values map[string]string) (map[string]string, error) {
	known := make(map[string]models.FieldDef, len(defs))
	for _, d := range defs {
		known[d.Key] = d
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		if _, ok := known[k]; !ok {
			return nil, dErrors.Newf(dErrors.CodeValidation, "unknown field %q", k)
		}
		v = strings.TrimSpace(v)
		if utf8.RuneCountInString(v) > maxFieldRunes {
			return nil, dErrors.Newf(dErrors.CodeValidation, "field %q too long", k)
		}
		if v != "" {
			out[k] = v
		}
	}
	for _, d := range defs {
		if d.Required && d.AutoFill == models.AutoFillNone && out[d.Key] == "" {
			return nil, dErrors.Newf(dErrors.CodeValidation, "field %q is required", d.Key)
		}
	}
	return out, nil
}

// validateBlocks fixes the layout of every non-empty block. Empty blocks keep
// LayoutAuto and fall back to template defaults when resolved.
func validateBlocks(in []BlockInput) ([models.BlockCount]models.BlockText, error) {
	var out [models.BlockCount]models.BlockText
	if len(in) > models.BlockCount {
		return out, dErrors.Newf(dErrors.CodeValidation, "at most %d blocks allowed", models.BlockCount)
	}
	for i, b := range in {
		if !b.Layout.Valid() {
			return out, dErrors.Newf(dErrors.CodeValidation, "block %d: unknown layout %q", i+1, b.Layout)
		}
		text := strings.TrimSpace(b.Text)
		if utf8.RuneCountInString(text) > maxBlockRunes {
			return out, dErrors.Newf(dErrors.CodeValidation, "block %d exceeds %d characters", i+1, maxBlockRunes)
		}
		if text == "" {
			continue
		}
		layout := b.Layout
		if layout == models.LayoutAuto {
			layout = models.ClassifyLayout(text)
		}
		out[i] = models.BlockText{Text: text, Layout: layout}
	}
	return out, nil
}

func validateImages(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	for _, raw := range in {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if len(raw) > maxImageURLLen {
			return nil, dErrors.New(dErrors.CodeValidation, "image reference too long")
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			return nil, dErrors.Newf(dErrors.CodeValidation, "invalid image reference %q", raw)
		}
		if err := images.CheckHost(u.Hostname()); err != nil {
			return nil, dErrors.Newf(dErrors.CodeValidation, "image host not allowed in %q", raw)
		}
		out = append(out, raw)
	}
	if len(out) > models.MaxImages {
		return nil, dErrors.Newf(dErrors.CodeValidation, "at most %d images allowed", models.MaxImages)
	}
	return out, nil
}
