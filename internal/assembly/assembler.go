// Package assembly turns a user's resolved content into one complete PDF
// document: front matter, then a divider and a detail or placeholder page per
// standard, in order.
package assembly

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"portfolio/internal/assembly/metrics"
	"portfolio/internal/portfolio/models"
	"portfolio/internal/render"
	"portfolio/internal/render/engine"
	id "portfolio/pkg/domain"
	dErrors "portfolio/pkg/domain-errors"
	"portfolio/pkg/platform/audit"
	"portfolio/pkg/platform/sentinel"
	txcontext "portfolio/pkg/platform/tx"
	"portfolio/pkg/requestcontext"
)

const (
	maxPageAttempts = 2
	lockGrace       = 10 * time.Second
)

var tracer = otel.Tracer("portfolio/internal/assembly")

type Resolver interface {
	Resolve(ctx context.Context, userID id.UserID, scope models.Scope) (*models.Resolution, error)
}

type PageRenderer interface {
	RenderPage(ctx context.Context, session engine.Session, spec render.PageSpec) (render.Page, error)
}

// SessionPool hands out rendering sessions; closing a session frees its slot.
type SessionPool interface {
	Acquire(ctx context.Context) (engine.Session, error)
}

type DocumentStore interface {
	Save(ctx context.Context, doc models.Document) error
	FindByID(ctx context.Context, documentID id.DocumentID) (models.Document, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]models.Document, error)
	IncrementGenerations(ctx context.Context, userID id.UserID) (int64, error)
}

type ThemeCatalog interface {
	Get(id string) (models.Theme, bool)
	Default() models.Theme
	ForCover(documentTheme string) models.Theme
	ForPage(documentTheme, instanceTheme string) models.Theme
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

// Config bounds a generation in size and time.
type Config struct {
	Limits            Limits
	GenerationTimeout time.Duration
}

type GenerateRequest struct {
	UserID  id.UserID
	Scope   models.Scope
	ThemeID string
}

func (r GenerateRequest) flightKey() string {
	return fmt.Sprintf("%s/%d/%s", r.UserID, r.Scope.Standard, r.ThemeID)
}

type Assembler struct {
	resolver  Resolver
	renderer  PageRenderer
	pool      SessionPool
	documents DocumentStore
	themes    ThemeCatalog
	merger    Merger
	locker    Locker
	cfg       Config
	tx        txcontext.Runner
	auditor   AuditPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger

	group    singleflight.Group
	flightMu sync.Mutex
	flights  map[string]*flight
}

// flight is a shared generation. Its context ends only when every caller
// waiting on it has gone away.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

type Option func(*Assembler)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) {
		a.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Assembler) {
		a.metrics = m
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(a *Assembler) {
		a.auditor = p
	}
}

func WithTxRunner(r txcontext.Runner) Option {
	return func(a *Assembler) {
		a.tx = r
	}
}

func WithLocker(l Locker) Option {
	return func(a *Assembler) {
		a.locker = l
	}
}

func WithMerger(m Merger) Option {
	return func(a *Assembler) {
		a.merger = m
	}
}

func New(resolver Resolver, renderer PageRenderer, pool SessionPool, documents DocumentStore, themes ThemeCatalog, cfg Config, opts ...Option) *Assembler {
	a := &Assembler{
		resolver:  resolver,
		renderer:  renderer,
		pool:      pool,
		documents: documents,
		themes:    themes,
		merger:    NewPDFMerger(),
		locker:    NewMemoryLocker(),
		cfg:       cfg,
		tx:        txcontext.NoopRunner{},
		logger:    slog.Default(),
		flights:   make(map[string]*flight),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Plan resolves the user's content and lays out the pages without rendering.
func (a *Assembler) Plan(ctx context.Context, userID id.UserID, scope models.Scope) (*Plan, error) {
	res, err := a.resolver.Resolve(ctx, userID, scope)
	if err != nil {
		return nil, err
	}
	return BuildPlan(res, a.cfg.Limits)
}

// Generate produces and stores a complete document. Identical concurrent
// requests share one generation; different requests from the same user run one
// after another.
func (a *Assembler) Generate(ctx context.Context, req GenerateRequest) (*models.Document, error) {
	if req.UserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "user required")
	}
	if req.Scope.Standard < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "standard must be positive")
	}
	if req.ThemeID == "" {
		req.ThemeID = a.themes.Default().ID
	}
	if _, ok := a.themes.Get(req.ThemeID); !ok {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown theme %q", req.ThemeID)
	}

	key := req.flightKey()
	f, ch := a.join(ctx, key, req)
	defer a.leave(key, f)

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Document), nil
	case <-ctx.Done():
		return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "request ended before the document was ready")
	}
}

// join registers the caller on the flight for key and subscribes to its
// result. Both happen under flightMu so a counted waiter is always attached
// to the running call.
func (a *Assembler) join(ctx context.Context, key string, req GenerateRequest) (*flight, <-chan singleflight.Result) {
	a.flightMu.Lock()
	defer a.flightMu.Unlock()
	f, ok := a.flights[key]
	if ok {
		f.waiters++
		a.metrics.IncCoalesced()
	} else {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel, waiters: 1}
		a.flights[key] = f
	}
	ch := a.group.DoChan(key, func() (any, error) {
		return a.generate(f.ctx, req)
	})
	return f, ch
}

// leave drops the caller from the flight. The last one out cancels the
// generation and forgets the call, so a later identical request starts fresh
// instead of joining the cancelled one.
func (a *Assembler) leave(key string, f *flight) {
	a.flightMu.Lock()
	defer a.flightMu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if a.flights[key] == f {
		delete(a.flights, key)
		a.group.Forget(key)
	}
}

func (a *Assembler) generate(ctx context.Context, req GenerateRequest) (*models.Document, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, a.cfg.GenerationTimeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "assembly.generate", trace.WithAttributes(
		attribute.String("portfolio.user_id", req.UserID.String()),
		attribute.Int("portfolio.scope_standard", req.Scope.Standard),
		attribute.String("portfolio.theme_id", req.ThemeID),
	))
	defer span.End()

	doc, err := a.generateLocked(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !dErrors.HasCode(err, dErrors.CodeTimeout) {
			err = dErrors.Wrap(err, dErrors.CodeTimeout,
				fmt.Sprintf("document generation did not finish within %s", a.cfg.GenerationTimeout))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.metrics.ObserveGeneration(string(dErrors.CodeOf(err)), time.Since(start), 0)
		a.logger.WarnContext(ctx, "document generation failed",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", req.UserID,
			"scope_standard", req.Scope.Standard,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return nil, err
	}

	span.SetAttributes(attribute.Int("portfolio.page_count", doc.PageCount))
	a.metrics.ObserveGeneration("ok", time.Since(start), doc.PageCount)
	a.logger.InfoContext(ctx, "document generated",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", req.UserID,
		"document_id", doc.ID,
		"pages", doc.PageCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return doc, nil
}

func (a *Assembler) generateLocked(ctx context.Context, req GenerateRequest) (*models.Document, error) {
	unlock, err := a.locker.Lock(ctx, "generate:"+req.UserID.String(), a.cfg.GenerationTimeout+lockGrace)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "another generation for this user is still running")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire generation lock")
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			a.logger.WarnContext(ctx, "generation lock release failed",
				"request_id", requestcontext.RequestID(ctx),
				"user_id", req.UserID,
				"error", err,
			)
		}
	}()

	plan, err := a.Plan(ctx, req.UserID, req.Scope)
	if err != nil {
		return nil, err
	}

	pages, err := a.renderPlan(ctx, plan, req.ThemeID)
	if err != nil {
		return nil, err
	}

	merged, count, err := a.merger.Merge(pages)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeRenderFailed, "failed to merge pages")
	}
	if count != plan.PageCount {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
			"merged document has %d pages, planned %d", count, plan.PageCount)
	}
	if err := ctx.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "document generation ended before saving")
	}

	doc := models.Document{
		ID:          id.NewDocumentID(),
		UserID:      req.UserID,
		Scope:       req.Scope,
		ThemeID:     req.ThemeID,
		PageCount:   count,
		Pages:       plan.Pages,
		InstanceIDs: plan.resolution.InstanceIDs(),
		Content:     merged,
		CreatedAt:   requestcontext.Now(ctx),
	}
	err = a.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := a.documents.Save(txCtx, doc); err != nil {
			return err
		}
		if _, err := a.documents.IncrementGenerations(txCtx, req.UserID); err != nil {
			return err
		}
		return a.emitGenerated(txCtx, doc)
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeTimeout) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store document")
	}
	return &doc, nil
}

// renderPlan renders pages strictly in order on one session. The session is
// closed on every return path.
func (a *Assembler) renderPlan(ctx context.Context, plan *Plan, documentTheme string) ([][]byte, error) {
	session, err := a.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			a.logger.WarnContext(ctx, "rendering session close failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", closeErr,
			)
		}
	}()

	profile := plan.resolution.Profile
	pages := make([][]byte, 0, plan.PageCount)
	for i, ref := range plan.Pages {
		spec := render.PageSpec{
			Kind:       ref.Kind,
			PageNumber: ref.Index,
			Profile:    profile,
		}
		switch unit := plan.unit(i); {
		case ref.Kind == models.PageCover:
			spec.Theme = a.themes.ForCover(documentTheme)
		case unit == nil:
			spec.Theme = a.themes.ForPage(documentTheme, "")
		default:
			spec.Standard = unit.Standard
			instanceTheme := ""
			if ref.Kind == models.PageEvidenceDetail {
				spec.Evidence = unit.Evidence
				instanceTheme = unit.Evidence.ThemeID
			}
			spec.Theme = a.themes.ForPage(documentTheme, instanceTheme)
		}

		page, err := a.renderWithRetry(ctx, session, spec, plan.label(i))
		if err != nil {
			return nil, err
		}
		pages = append(pages, page.PDF)
	}
	return pages, nil
}

func (a *Assembler) renderWithRetry(ctx context.Context, session engine.Session, spec render.PageSpec, label string) (render.Page, error) {
	ctx, span := tracer.Start(ctx, "assembly.render_page", trace.WithAttributes(
		attribute.String("portfolio.page_kind", string(spec.Kind)),
		attribute.Int("portfolio.page_index", spec.PageNumber),
		attribute.Int("portfolio.standard", spec.Standard.Number),
	))
	defer span.End()

	var lastErr error
	for attempt := 1; attempt <= maxPageAttempts; attempt++ {
		page, err := a.renderer.RenderPage(ctx, session, spec)
		if err == nil {
			return page, nil
		}
		lastErr = err
		span.RecordError(err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return render.Page{}, dErrors.Wrap(err, dErrors.CodeTimeout, label+" was not rendered in time")
		}
		a.logger.WarnContext(ctx, "page render failed",
			"request_id", requestcontext.RequestID(ctx),
			"page", spec.PageNumber,
			"kind", spec.Kind,
			"standard", spec.Standard.Number,
			"attempt", attempt,
			"error", err,
		)
		if attempt < maxPageAttempts {
			a.metrics.IncPageRetry()
		}
	}
	span.SetStatus(codes.Error, label+" failed")
	return render.Page{}, dErrors.Wrap(lastErr, dErrors.CodeRenderFailed, label+" failed to render")
}

func (a *Assembler) emitGenerated(ctx context.Context, doc models.Document) error {
	if a.auditor == nil {
		return nil
	}
	return a.auditor.Emit(ctx, audit.ComplianceEvent{
		Timestamp: doc.CreatedAt,
		UserID:    doc.UserID,
		Subject:   doc.ID.String(),
		Action:    string(audit.EventDocumentGenerated),
		Reason:    fmt.Sprintf("%d pages", doc.PageCount),
		RequestID: requestcontext.RequestID(ctx),
	})
}

// Document returns a stored document to its owner. Other users get NotFound.
func (a *Assembler) Document(ctx context.Context, userID id.UserID, documentID id.DocumentID) (*models.Document, error) {
	doc, err := a.documents.FindByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "document not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load document")
	}
	if doc.UserID != userID {
		return nil, dErrors.New(dErrors.CodeNotFound, "document not found")
	}
	return &doc, nil
}

func (a *Assembler) Documents(ctx context.Context, userID id.UserID) ([]models.Document, error) {
	docs, err := a.documents.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list documents")
	}
	return docs, nil
}
