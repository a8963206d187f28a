// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/pdiddy/transcript-engine/internal/logging"
)

// Renderer prints an HTML file to PDF.
type Renderer interface {
	RenderPDF(ctx context.Context, htmlPath string, page PageSettings) ([]byte, error)
	Close() error
}

// Sentinel errors for PDF rendering failures.
var (
	ErrBrowserConnect = errors.New("failed to connect to browser")
	ErrPageCreate     = errors.New("failed to create browser page")
	ErrPageLoad       = errors.New("failed to load page")
	ErrPDFGeneration  = errors.New("PDF generation failed")
)

var _ Renderer = (*RodRenderer)(nil)

// RodRenderer renders through headless Chrome. The browser starts on the
// first page and is reused until Close. Rod downloads Chromium when no
// browser is found; ROD_BROWSER_BIN selects a preinstalled one.
type RodRenderer struct {
	timeout time.Duration

	// newLauncher builds the launcher for the browser process.
	newLauncher func() browserLauncher

	mu       sync.Mutex
	browser  *rod.Browser
	launcher browserLauncher
}

// browserLauncher starts a browser process and returns its control URL.
// Kill stops the process and Cleanup removes its user-data directory.
type browserLauncher interface {
	Launch() (string, error)
	Kill()
	Cleanup()
}

// NewRodRenderer returns a renderer that waits at most timeout for a page
// to load.
func NewRodRenderer(timeout time.Duration) *RodRenderer {
	return &RodRenderer{timeout: timeout, newLauncher: defaultLauncher}
}

func defaultLauncher() browserLauncher {
	l := launcher.New()
	if bin := os.Getenv("ROD_BROWSER_BIN"); bin != "" {
		l = l.Bin(bin)
	}
	// Containers and CI runners cannot use the Chrome sandbox.
	if os.Getenv("CI") == "true" || os.Getenv("ROD_BROWSER_BIN") != "" {
		l = l.NoSandbox(true)
	}
	return l
}

func (r *RodRenderer) ensureBrowser() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser != nil {
		return r.browser, nil
	}

	l := r.newLauncher()
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}
	logging.L().Debug("headless browser started", "control_url", u)
	r.browser = b
	r.launcher = l
	return b, nil
}

// Close shuts the browser down and removes its profile directory.
func (r *RodRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	r.launcher.Cleanup()
	r.browser = nil
	r.launcher = nil
	return err
}

// RenderPDF opens htmlPath and prints it with the given paper size and
// margins.
func (r *RodRenderer) RenderPDF(ctx context.Context, htmlPath string, page PageSettings) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return nil, err
	}

	b, err := r.ensureBrowser()
	if err != nil {
		return nil, err
	}

	p, err := b.Page(proto.TargetCreateTarget{URL: "file://" + filepath.ToSlash(abs)})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageCreate, err)
	}
	defer p.Close()
	p = p.Context(ctx)

	timeout := r.timeout
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}
	if err := p.Timeout(timeout).WaitLoad(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}

	reader, err := p.PDF(&proto.PagePrintToPDF{
		PaperWidth:      floatPtr(page.Width),
		PaperHeight:     floatPtr(page.Height),
		MarginTop:       floatPtr(page.Margin),
		MarginBottom:    floatPtr(page.Margin),
		MarginLeft:      floatPtr(page.Margin),
		MarginRight:     floatPtr(page.Margin),
		PrintBackground: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPDFGeneration, err)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading PDF stream: %v", ErrPDFGeneration, err)
	}
	return data, nil
}

func floatPtr(v float64) *float64 {
	return &v
}
