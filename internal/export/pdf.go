package export

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
	"unicode"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const printTimeout = 30 * time.Second

// browserCandidates are the executables tried, in order, for printing.
var browserCandidates = []string{"chromium", "chromium-browser", "google-chrome-stable", "google-chrome"}

// pageFooter numbers the pages of a printed bookmark list.
const pageFooter = `<div style="font-size:8px;width:100%;text-align:center;color:#666">` +
	`<span class="pageNumber"></span> / <span class="totalPages"></span></div>`

func findBrowser(lookPath func(string) (string, error)) (string, error) {
	for _, name := range browserCandidates {
		if path, err := lookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: none of %s found", ErrPDFDependencyMissing, strings.Join(browserCandidates, ", "))
}

// printPDF renders the print template in headless Chrome. The document is
// written into a blank page through the DevTools frame API rather than
// navigated to, so large lists do not hit URL length limits.
func printPDF(ctx context.Context, html string) ([]byte, error) {
	browser, err := findBrowser(exec.LookPath)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, printTimeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(browser),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	var pdf []byte
	err = chromedp.Run(taskCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				WithMarginTop(0.6).
				WithMarginBottom(0.7).
				WithMarginLeft(0.6).
				WithMarginRight(0.6).
				WithDisplayHeaderFooter(true).
				WithHeaderTemplate("<span></span>").
				WithFooterTemplate(pageFooter).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print bookmarks pdf: %w", err)
	}
	return pdf, nil
}

// exportFilename names an export after its scope and day, e.g.
// "shelf-reading-list-2024-05-06.pdf". The whole collection is "shelf-all".
func exportFilename(category string, day time.Time, ext string) string {
	scope := slug(category)
	if scope == "" {
		scope = "all"
	}
	return "shelf-" + scope + "-" + day.Format("2006-01-02") + "." + ext
}

// slug lower-cases s and collapses every run of other characters into a
// single '-'.
func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if b.Len() > 0 && !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if len(out) > 40 {
		out = strings.TrimRight(out[:40], "-")
	}
	return out
}
