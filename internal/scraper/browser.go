package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
)

// stepTimeout bounds every wait for a portal control to become
// actionable. Exceeding it fails the whole session.
const stepTimeout = 10 * time.Second

// Action is what WaitAndAct performs once the target is actionable.
type Action int

const (
	ActionWait Action = iota
	ActionClick
	ActionType
	ActionSelect
)

// DateOrder is the token order the portal's date controls expect.
type DateOrder int

const (
	DayFirst DateOrder = iota
	MonthFirst
)

// Driver is the automation capability the fetch session drives. It is
// the seam that keeps the session testable without a browser.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	WaitAndAct(ctx context.Context, selector string, action Action, value string) error
	TypeDate(ctx context.Context, selector string, value time.Time, order DateOrder) error
	Locale(ctx context.Context) (string, error)
}

// Browser is the chromedp-backed Driver.
type Browser struct {
	headless    bool
	downloadDir string

	ctx     context.Context
	cancels []context.CancelFunc
}

// NewBrowser creates a browser driver downloading into downloadDir.
func NewBrowser(headless bool, downloadDir string) *Browser {
	return &Browser{headless: headless, downloadDir: downloadDir}
}

// Start launches Chrome and routes downloads into the raw download
// directory. Close must be called when the session is done.
func (b *Browser) Start(ctx context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.headless),
		chromedp.Flag("no-sandbox", true),            // Required for running as root on Linux
		chromedp.Flag("disable-gpu", true),           // Recommended for headless Linux
		chromedp.Flag("disable-dev-shm-usage", true), // Avoid /dev/shm issues on Linux
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	b.ctx = browserCtx
	b.cancels = []context.CancelFunc{cancelBrowser, cancelAlloc}

	// Allow (not AllowAndName) keeps the portal's own filenames, which
	// the intake matches on meter id.
	if err := chromedp.Run(browserCtx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(b.downloadDir).
			WithEventsEnabled(true),
	); err != nil {
		b.Close()
		return fmt.Errorf("setting download behavior: %w", err)
	}

	return nil
}

// Close shuts the browser down.
func (b *Browser) Close() {
	for _, cancel := range b.cancels {
		cancel()
	}
	b.cancels = nil
}

// Navigate loads url in the browser.
func (b *Browser) Navigate(ctx context.Context, url string) error {
	if err := chromedp.Run(b.ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

// WaitAndAct waits up to the step timeout for selector to become
// visible, then performs the action on it.
func (b *Browser) WaitAndAct(ctx context.Context, selector string, action Action, value string) error {
	stepCtx, cancel := context.WithTimeout(b.ctx, stepTimeout)
	defer cancel()

	actions := []chromedp.Action{
		chromedp.WaitVisible(selector, chromedp.ByQuery),
	}
	switch action {
	case ActionWait:
		// visibility alone is the step
	case ActionClick:
		actions = append(actions, chromedp.Click(selector, chromedp.ByQuery))
	case ActionType:
		actions = append(actions, chromedp.SendKeys(selector, value, chromedp.ByQuery))
	case ActionSelect:
		actions = append(actions, chromedp.SetValue(selector, value, chromedp.ByQuery))
	}

	if err := chromedp.Run(stepCtx, actions...); err != nil {
		return fmt.Errorf("acting on %s: %w", selector, err)
	}
	return nil
}

// TypeDate clears the date control and types value with the token
// order the portal's form expects.
func (b *Browser) TypeDate(ctx context.Context, selector string, value time.Time, order DateOrder) error {
	stepCtx, cancel := context.WithTimeout(b.ctx, stepTimeout)
	defer cancel()

	if err := chromedp.Run(stepCtx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, "", chromedp.ByQuery),
		chromedp.SendKeys(selector, FormatDate(value, order), chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("typing date into %s: %w", selector, err)
	}
	return nil
}

// Locale reports the browser environment's locale.
func (b *Browser) Locale(ctx context.Context) (string, error) {
	stepCtx, cancel := context.WithTimeout(b.ctx, stepTimeout)
	defer cancel()

	var locale string
	if err := chromedp.Run(stepCtx,
		chromedp.Evaluate(`navigator.language`, &locale),
	); err != nil {
		return "", fmt.Errorf("reading browser locale: %w", err)
	}
	return locale, nil
}

// FormatDate renders a date the way the portal's date-entry control
// expects for the given token order.
func FormatDate(t time.Time, order DateOrder) string {
	if order == MonthFirst {
		return t.Format("01/02/2006")
	}
	return t.Format("02/01/2006")
}
