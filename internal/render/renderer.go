// Package render turns one page spec into one A4 PDF page.
package render

import (
	"bytes"
	"cmp"
	"context"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"sync"

	"github.com/skip2/go-qrcode"

	"portfolio/internal/images"
	"portfolio/internal/portfolio/models"
	"portfolio/internal/render/engine"
	id "portfolio/pkg/domain"
	"portfolio/pkg/requestcontext"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

// QR settings are fixed so a token always produces the same image.
const (
	qrSize     = 256
	qrRecovery = qrcode.Medium
)

const defaultFont = "serif"

// PageSpec is everything needed to draw one page.
type PageSpec struct {
	Kind       models.PageKind
	PageNumber int
	Profile    models.UserProfile
	Standard   models.Standard
	Evidence   *models.ResolvedEvidence
	Theme      models.Theme
}

// Page is one rendered page.
type Page struct {
	Kind     models.PageKind
	Standard int
	PDF      []byte
}

// TokenSource maps an evidence instance to its verification token.
type TokenSource interface {
	TokenFor(instanceID id.InstanceID) string
}

type Renderer struct {
	pages   map[models.PageKind]*template.Template
	tokens  TokenSource
	images  images.Fetcher
	baseURL string
	logger  *slog.Logger

	qrMu    sync.Mutex
	qrCache map[string]template.URL
}

type Option func(*Renderer)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		r.logger = logger
	}
}

func New(tokens TokenSource, fetcher images.Fetcher, publicBaseURL string, opts ...Option) (*Renderer, error) {
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	r := &Renderer{
		pages:   pages,
		tokens:  tokens,
		images:  fetcher,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:  slog.Default(),
		qrCache: make(map[string]template.URL),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RenderPage builds the page HTML and prints it through the session.
func (r *Renderer) RenderPage(ctx context.Context, session engine.Session, spec PageSpec) (Page, error) {
	html, err := r.BuildHTML(ctx, spec)
	if err != nil {
		return Page{}, err
	}
	pdf, err := session.PrintPDF(ctx, html)
	if err != nil {
		return Page{}, fmt.Errorf("print %s page: %w", spec.Kind, err)
	}
	return Page{Kind: spec.Kind, Standard: spec.Standard.Number, PDF: pdf}, nil
}

// VerificationURL is the public lookup URL encoded in an instance's QR code.
func (r *Renderer) VerificationURL(instanceID id.InstanceID) string {
	return r.baseURL + "/verify/" + r.tokens.TokenFor(instanceID)
}

// QRCode returns the PNG QR code for a URL.
func QRCode(url string) ([]byte, error) {
	return qrcode.Encode(url, qrRecovery, qrSize)
}

type blockView struct {
	Label string
	Text  string
	List  bool
	Items []string
}

// styleView carries theme values into the stylesheet. The theme catalog
// validates them at load time, so they are trusted CSS.
type styleView struct {
	Primary    template.CSS
	Accent     template.CSS
	Background template.CSS
	Text       template.CSS
	Font       template.CSS
}

type pageView struct {
	PageSpec
	Style           styleView
	Subjects        string
	Fields          []models.FieldValue
	Blocks          []blockView
	Images          []template.URL
	QRCode          template.URL
	VerificationURL string
}

// BuildHTML renders the HTML document for a page without printing it.
func (r *Renderer) BuildHTML(ctx context.Context, spec PageSpec) (string, error) {
	t, ok := r.pages[spec.Kind]
	if !ok {
		return "", fmt.Errorf("unknown page kind %q", spec.Kind)
	}
	view := pageView{
		PageSpec: spec,
		Style: styleView{
			Primary:    template.CSS(spec.Theme.Primary),
			Accent:     template.CSS(spec.Theme.Accent),
			Background: template.CSS(spec.Theme.Background),
			Text:       template.CSS(spec.Theme.Text),
			Font:       template.CSS(cmp.Or(spec.Theme.Font, defaultFont)),
		},
		Subjects: spec.Profile.AutoFillValue(models.AutoFillSubjects),
	}
	if spec.Kind == models.PageEvidenceDetail {
		if spec.Evidence == nil {
			return "", fmt.Errorf("detail page for standard #%d has no evidence", spec.Standard.Number)
		}
		if err := r.fillDetail(ctx, &view); err != nil {
			return "", err
		}
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", view); err != nil {
		return "", fmt.Errorf("execute %s page: %w", spec.Kind, err)
	}
	return buf.String(), nil
}

var pageBodies = map[models.PageKind]string{
	models.PageCover:          "cover",
	models.PageFiller:         "filler",
	models.PageDivider:        "divider",
	models.PageEvidenceDetail: "detail",
	models.PagePlaceholder:    "placeholder",
}

// parsePages binds the shared layout to each page body once.
func parsePages() (map[models.PageKind]*template.Template, error) {
	base, err := template.New("pages").ParseFS(templateFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse page templates: %w", err)
	}
	pages := make(map[models.PageKind]*template.Template, len(pageBodies))
	for kind, body := range pageBodies {
		t, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone page templates: %w", err)
		}
		if _, err := t.New("body").Parse(`{{template "` + body + `" .}}`); err != nil {
			return nil, fmt.Errorf("bind %s body: %w", body, err)
		}
		pages[kind] = t
	}
	return pages, nil
}

func (r *Renderer) fillDetail(ctx context.Context, view *pageView) error {
	ev := view.Evidence
	for _, f := range ev.Fields {
		if strings.TrimSpace(f.Value) != "" {
			view.Fields = append(view.Fields, f)
		}
	}
	for _, b := range ev.Blocks {
		bv := blockView{Label: b.Label, Text: b.Text}
		if b.EffectiveLayout() == models.LayoutList {
			bv.List = true
			bv.Items = models.SplitListItems(b.Text)
		}
		view.Blocks = append(view.Blocks, bv)
	}

	view.Images = make([]template.URL, len(ev.Images))
	for i, ref := range ev.Images {
		if ref == "" {
			continue
		}
		uri, err := r.images.Fetch(ctx, ref)
		if err != nil {
			r.logger.WarnContext(ctx, "image slot left empty",
				"request_id", requestcontext.RequestID(ctx),
				"instance_id", ev.InstanceID,
				"slot", i+1,
				"error", err,
			)
			continue
		}
		if !strings.HasPrefix(uri, "data:image/") {
			continue
		}
		view.Images[i] = template.URL(uri)
	}

	view.VerificationURL = r.VerificationURL(ev.InstanceID)
	qr, err := r.qrDataURI(view.VerificationURL)
	if err != nil {
		return fmt.Errorf("verification code for standard #%d: %w", view.Standard.Number, err)
	}
	view.QRCode = qr
	return nil
}

func (r *Renderer) qrDataURI(url string) (template.URL, error) {
	r.qrMu.Lock()
	defer r.qrMu.Unlock()
	if uri, ok := r.qrCache[url]; ok {
		return uri, nil
	}
	png, err := QRCode(url)
	if err != nil {
		return "", err
	}
	uri := template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png))
	if len(r.qrCache) > 4096 {
		clear(r.qrCache)
	}
	r.qrCache[url] = uri
	return uri, nil
}
