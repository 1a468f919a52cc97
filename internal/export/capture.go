package export

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Capturer is the narrow rendering capability the pipeline needs: given a
// standalone HTML page, capture one element as a PNG or print the page to
// PDF. The chromium-backed implementation is the production one; tests
// substitute an in-memory fake.
type Capturer interface {
	CapturePNG(ctx context.Context, html, selector string, scale float64) ([]byte, error)
	PrintPDF(ctx context.Context, html string) ([]byte, error)
}

// ChromeCapturer captures through a headless chromium.
type ChromeCapturer struct {
	// Timeout bounds one whole capture run. Zero means 30s.
	Timeout time.Duration
}

// imagesLoadedExpr polls until every image on the page has finished
// loading. A capture taken mid-load silently bakes in missing images, so
// the capture waits, bounded, before taking the shot.
const imagesLoadedExpr = `Array.from(document.images).every(function(img) { return img.complete; })`

// percentEncodeForDataURL encodes a string for use in a data URL
// Unlike url.QueryEscape, this properly encodes spaces as %20 for data URLs
func percentEncodeForDataURL(s string) string {
	var result strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '-', r == '_', r == '.', r == '~':
			// Unreserved characters per RFC 3986
			result.WriteRune(r)
		case r == ' ':
			// Space must be encoded as %20 in data URLs, not +
			result.WriteString("%20")
		default:
			// Percent-encode all other characters
			for _, b := range string(r) {
				result.WriteString(fmt.Sprintf("%%%02X", b))
			}
		}
	}
	return result.String()
}

func (c *ChromeCapturer) newContext(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if _, err := exec.LookPath("chromium-browser"); err != nil {
		if _, fallbackErr := exec.LookPath("chromium"); fallbackErr != nil {
			return nil, nil, fmt.Errorf("%w: chromium not installed", ErrRasterDependencyMissing)
		}
	}

	timeout := c.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancelTimeout := context.WithTimeout(ctx, timeout)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	taskCtx, cancelTask := chromedp.NewContext(allocCtx)

	cancel := func() {
		cancelTask()
		cancelAlloc()
		cancelTimeout()
	}
	return taskCtx, cancel, nil
}

// waitForImages blocks until every image on the page is loaded or the poll
// window elapses; an elapsed window is not an error, the shot proceeds
// with whatever loaded.
func waitForImages() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var ready bool
		err := chromedp.Poll(imagesLoadedExpr, &ready, chromedp.WithPollingTimeout(5*time.Second)).Do(ctx)
		if errors.Is(err, chromedp.ErrPollingTimeout) {
			return nil
		}
		return err
	})
}

// CapturePNG implements Capturer.
func (c *ChromeCapturer) CapturePNG(ctx context.Context, html, selector string, scale float64) ([]byte, error) {
	taskCtx, cancel, err := c.newContext(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	if scale <= 0 {
		scale = 2
	}
	dataURL := "data:text/html;charset=utf-8," + percentEncodeForDataURL(html)

	var shot []byte
	err = chromedp.Run(taskCtx,
		chromedp.EmulateViewport(1024, 800, chromedp.EmulateScale(scale)),
		chromedp.Navigate(dataURL),
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		waitForImages(),
		chromedp.Screenshot(selector, &shot, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("chrome capture failed: %w", err)
	}
	if len(shot) == 0 {
		return nil, fmt.Errorf("chrome capture produced no image")
	}
	return shot, nil
}

// PrintPDF implements Capturer. Page sizing comes from the document's own
// print CSS, one business-card page per face.
func (c *ChromeCapturer) PrintPDF(ctx context.Context, html string) ([]byte, error) {
	taskCtx, cancel, err := c.newContext(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	dataURL := "data:text/html;charset=utf-8," + percentEncodeForDataURL(html)

	var pdfData []byte
	err = chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body"),
		waitForImages(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdfData, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(3.5).
				WithPaperHeight(2.0).
				WithMarginTop(0).
				WithMarginBottom(0).
				WithMarginLeft(0).
				WithMarginRight(0).
				WithPreferCSSPageSize(true).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chrome pdf generation failed: %w", err)
	}
	return pdfData, nil
}
