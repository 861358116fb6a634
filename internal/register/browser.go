package register

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// Per-operation timeouts. A hung page fails the attempt rather than the
// sweep.
const (
	navTimeout = 30 * time.Second
	opTimeout  = 10 * time.Second
)

// Page is one browser tab scoped to a single registration attempt.
type Page interface {
	Navigate(ctx context.Context, url string) error
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	WaitSettled(ctx context.Context, d time.Duration) error
}

// Browser hands out pages with scoped acquisition: the release function must
// be called on every exit path so consecutive attempts never leak tabs.
type Browser interface {
	AcquirePage(ctx context.Context) (Page, func(), error)
	Close() error
}

// ChromeBrowser is one logical Chrome instance. One page is live at a time;
// AcquirePage blocks until the previous attempt releases its page.
type ChromeBrowser struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	sem         chan struct{}
}

// NewChromeBrowser starts a Chrome allocator. The browser process itself is
// launched lazily on the first page.
func NewChromeBrowser(ctx context.Context, headless bool) *ChromeBrowser {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	return &ChromeBrowser{
		allocCtx:    allocCtx,
		allocCancel: cancel,
		sem:         make(chan struct{}, 1),
	}
}

// AcquirePage returns a fresh tab and its release function.
func (b *ChromeBrowser) AcquirePage(ctx context.Context) (Page, func(), error) {
	select {
	case b.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, fmt.Errorf("acquire page: %w", ctx.Err())
	}

	tabCtx, tabCancel := chromedp.NewContext(b.allocCtx)
	release := func() {
		tabCancel()
		<-b.sem
	}
	return &chromePage{ctx: tabCtx}, release, nil
}

// Close shuts down the allocator and any remaining browser process.
func (b *ChromeBrowser) Close() error {
	b.allocCancel()
	return nil
}

type chromePage struct {
	ctx context.Context
}

func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	go func() {
		// Propagate caller cancellation into the tab-scoped context.
		select {
		case <-ctx.Done():
			cancel()
		case <-opCtx.Done():
		}
	}()
	return chromedp.Run(opCtx, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, navTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, opTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var png []byte
	err := p.run(ctx, opTimeout, chromedp.CaptureScreenshot(&png))
	return png, err
}

func (p *chromePage) Fill(ctx context.Context, selector, value string) error {
	return p.run(ctx, opTimeout,
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	return p.run(ctx, opTimeout, chromedp.Click(selector, chromedp.ByQuery))
}

func (p *chromePage) WaitSettled(ctx context.Context, d time.Duration) error {
	return p.run(ctx, d+time.Second, chromedp.Sleep(d))
}
