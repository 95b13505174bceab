package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// RodConfig selects the browser. ControlURL connects to a running browser;
// otherwise one is launched from BinPath, or from rod's managed download when
// BinPath is empty.
type RodConfig struct {
	ControlURL string
	BinPath    string
}

// RodEngine prints pages through headless Chrome. Each session is an incognito
// browser context so generations never share cookies, cache or storage.
type RodEngine struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	logger   *slog.Logger
}

func NewRodEngine(cfg RodConfig, logger *slog.Logger) (*RodEngine, error) {
	e := &RodEngine{logger: logger}
	controlURL := cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(true).NoSandbox(true).Set("disable-gpu")
		if cfg.BinPath != "" {
			l = l.Bin(cfg.BinPath)
		}
		url, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
		e.launcher = l
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		if e.launcher != nil {
			e.launcher.Kill()
		}
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	e.browser = browser
	return e, nil
}

func (e *RodEngine) NewSession(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	incognito, err := e.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}
	return &rodSession{browser: incognito, logger: e.logger}, nil
}

func (e *RodEngine) Close() error {
	err := e.browser.Close()
	if e.launcher != nil {
		e.launcher.Kill()
		e.launcher.Cleanup()
	}
	return err
}

type rodSession struct {
	browser *rod.Browser
	logger  *slog.Logger
}

// PrintPDF opens a fresh page per call so one page's DOM never leaks into the
// next. Cancelling ctx aborts the in-flight CDP calls.
func (s *rodSession) PrintPDF(ctx context.Context, html string) ([]byte, error) {
	page, err := s.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil && ctx.Err() == nil {
			s.logger.Debug("close render page", "error", closeErr)
		}
	}()

	if err := page.SetDocumentContent(html); err != nil {
		return nil, fmt.Errorf("set document content: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait for page load: %w", err)
	}
	reader, err := page.PDF(&proto.PagePrintToPDF{
		PrintBackground:   true,
		PreferCSSPageSize: true,
	})
	if err != nil {
		return nil, fmt.Errorf("print pdf: %w", err)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read pdf stream: %w", err)
	}
	return data, nil
}

// Close disposes the incognito context and every page left in it.
func (s *rodSession) Close() error {
	return s.browser.Close()
}
