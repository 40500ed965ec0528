package capture

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/chromedp/chromedp"

	appLog "flyercal/internal/log"
)

// Default capture parameters for a phone-sized flyer preview.
const (
	DefaultWidth        = 1080
	DefaultHeight       = 1920
	DefaultTimeout      = 30 * time.Second
	DefaultWaitSelector = `main.flyer[data-ready="true"]`
)

var (
	ErrMissingURL    = errors.New("capture: URL is required")
	ErrMissingOutput = errors.New("capture: OutputPath is required")
)

// Options defines parameters for a Chromium-based screenshot of the flyer.
type Options struct {
	// URL to capture, e.g. "http://127.0.0.1:8080/".
	URL string

	// OutputPath is where the PNG screenshot is written.
	OutputPath string

	// Viewport in pixels. Zero means DefaultWidth / DefaultHeight.
	Width  int
	Height int

	// Timeout bounds the whole capture. Zero means DefaultTimeout.
	Timeout time.Duration

	// WaitSelector must be visible before the screenshot is taken. The page
	// script sets data-ready on the flyer once countdowns and slides are live.
	WaitSelector string
}

// normalize validates opts and fills defaults.
func (o Options) normalize() (Options, error) {
	if o.URL == "" {
		return o, ErrMissingURL
	}
	u, err := url.Parse(o.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return o, fmt.Errorf("capture: URL must be an absolute http(s) URL: %q", o.URL)
	}
	if o.OutputPath == "" {
		return o, ErrMissingOutput
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.WaitSelector == "" {
		o.WaitSelector = DefaultWaitSelector
	}
	return o, nil
}

// CaptureFlyerPNG launches a headless Chromium via chromedp, opens opts.URL,
// waits for the flyer to signal readiness and writes a full-page PNG to
// opts.OutputPath. Used to produce social previews of the flyer.
func CaptureFlyerPNG(parentCtx context.Context, opts Options) error {
	opts, err := opts.normalize()
	if err != nil {
		return err
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	start := time.Now()
	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(opts.WaitSelector, chromedp.ByQuery),
		// Let the first countdown tick paint.
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	}

	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}

	appLog.Info("flyer snapshot written",
		"path", opts.OutputPath,
		"bytes", len(png),
		"viewport", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
