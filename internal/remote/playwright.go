package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/shehryarbajwa/browserbase-mcp/pkg/models"
)

// Playwright connects to remote browsers over CDP using a shared driver
type Playwright struct {
	mu      sync.Mutex
	pw      *playwright.Playwright
	install bool
}

// NewPlaywright creates a connector. The driver starts on first use; when
// install is set the driver is downloaded first if missing.
func NewPlaywright(install bool) *Playwright {
	return &Playwright{install: install}
}

func (p *Playwright) start() (*playwright.Playwright, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pw != nil {
		return p.pw, nil
	}

	// Remote browsers only: the driver is enough, no local browser binaries
	opts := &playwright.RunOptions{
		SkipInstallBrowsers: true,
		Verbose:             false,
		Stdout:              io.Discard,
		Stderr:              io.Discard,
	}

	if p.install {
		if err := playwright.Install(opts); err != nil {
			return nil, fmt.Errorf("failed to install playwright driver: %w", err)
		}
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	p.pw = pw
	log.Println("✓ Playwright driver started")
	return pw, nil
}

// Connect attaches to the lease's CDP endpoint and opens a context of its own,
// so sessions sharing one remote browser never share cookies or storage
func (p *Playwright) Connect(ctx context.Context, lease *models.Lease) (Browser, error) {
	pw, err := p.start()
	if err != nil {
		return nil, err
	}

	opts := playwright.BrowserTypeConnectOverCDPOptions{
		Timeout: timeoutFrom(ctx),
	}
	if len(lease.Headers) > 0 {
		opts.Headers = lease.Headers
	}

	browser, err := pw.Chromium.ConnectOverCDP(lease.ConnectURL, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect over CDP: %w", err)
	}

	b, err := newPWBrowser(browser)
	if err != nil {
		_ = browser.Close()
		return nil, err
	}
	return b, nil
}

// Stop shuts down the playwright driver
func (p *Playwright) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pw == nil {
		return nil
	}
	err := p.pw.Stop()
	p.pw = nil
	if err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}

type pwBrowser struct {
	browser playwright.Browser
	context playwright.BrowserContext
}

func newPWBrowser(browser playwright.Browser) (*pwBrowser, error) {
	bctx, err := browser.NewContext()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoBrowserContexts, err)
	}
	return &pwBrowser{browser: browser, context: bctx}, nil
}

func (b *pwBrowser) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page, err := b.context.NewPage()
	if err != nil {
		return nil, b.wrap(fmt.Errorf("failed to open page: %w", err))
	}
	return &pwPage{page: page, owner: b}, nil
}

// Close discards the session's context, then drops the connection. A browser
// reached over CDP keeps running for other clients.
func (b *pwBrowser) Close(ctx context.Context) error {
	var errs []error
	if err := b.context.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close browser context: %w", err))
	}
	if err := b.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
	}
	return errors.Join(errs...)
}

// wrap marks err as a lost connection when the browser has disconnected
func (b *pwBrowser) wrap(err error) error {
	if err == nil {
		return nil
	}
	if !b.browser.IsConnected() {
		return fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	return err
}

type pwPage struct {
	page  playwright.Page
	owner *pwBrowser
}

func (p *pwPage) Goto(ctx context.Context, url, waitUntil string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	opts := playwright.PageGotoOptions{Timeout: timeoutFrom(ctx)}
	if waitUntil != "" {
		state := playwright.WaitUntilState(waitUntil)
		opts.WaitUntil = &state
	}

	if _, err := p.page.Goto(url, opts); err != nil {
		return "", p.owner.wrap(fmt.Errorf("navigation failed: %w", err))
	}
	return p.page.URL(), nil
}

func (p *pwPage) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := p.page.Click(selector, playwright.PageClickOptions{Timeout: timeoutFrom(ctx)})
	if err != nil {
		return p.owner.wrap(fmt.Errorf("click failed: %w", err))
	}
	return nil
}

func (p *pwPage) Fill(ctx context.Context, selector, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := p.page.Fill(selector, text, playwright.PageFillOptions{Timeout: timeoutFrom(ctx)})
	if err != nil {
		return p.owner.wrap(fmt.Errorf("fill failed: %w", err))
	}
	return nil
}

func (p *pwPage) Press(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := bounded(ctx, func() (struct{}, error) {
		return struct{}{}, p.page.Keyboard().Press(key)
	})
	if err != nil {
		return p.owner.wrap(fmt.Errorf("key press failed: %w", err))
	}
	return nil
}

func (p *pwPage) Evaluate(ctx context.Context, script string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result, err := bounded(ctx, func() (any, error) {
		return p.page.Evaluate(script)
	})
	if err != nil {
		return nil, p.owner.wrap(fmt.Errorf("script failed: %w", err))
	}
	return result, nil
}

func (p *pwPage) TextContent(ctx context.Context, selector string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := p.page.TextContent(selector, playwright.PageTextContentOptions{Timeout: timeoutFrom(ctx)})
	if err != nil {
		return "", p.owner.wrap(fmt.Errorf("text extraction failed: %w", err))
	}
	return text, nil
}

func (p *pwPage) InnerHTML(ctx context.Context, selector string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	html, err := p.page.InnerHTML(selector, playwright.PageInnerHTMLOptions{Timeout: timeoutFrom(ctx)})
	if err != nil {
		return "", p.owner.wrap(fmt.Errorf("html extraction failed: %w", err))
	}
	return html, nil
}

func (p *pwPage) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	html, err := bounded(ctx, p.page.Content)
	if err != nil {
		return "", p.owner.wrap(fmt.Errorf("content extraction failed: %w", err))
	}
	return html, nil
}

func (p *pwPage) GetAttribute(ctx context.Context, selector, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	value, err := p.page.GetAttribute(selector, name, playwright.PageGetAttributeOptions{Timeout: timeoutFrom(ctx)})
	if err != nil {
		return "", p.owner.wrap(fmt.Errorf("attribute extraction failed: %w", err))
	}
	return value, nil
}

func (p *pwPage) Screenshot(ctx context.Context, opts ScreenshotOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if opts.Selector != "" {
		element, err := p.page.QuerySelector(opts.Selector)
		if err != nil {
			return p.owner.wrap(fmt.Errorf("selector query failed: %w", err))
		}
		if element == nil {
			return fmt.Errorf("%w: %s", ErrElementNotFound, opts.Selector)
		}
		_, err = element.Screenshot(playwright.ElementHandleScreenshotOptions{
			Path:    playwright.String(opts.Path),
			Timeout: timeoutFrom(ctx),
		})
		if err != nil {
			return p.owner.wrap(fmt.Errorf("element screenshot failed: %w", err))
		}
		return nil
	}

	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(opts.Path),
		FullPage: playwright.Bool(opts.FullPage),
		Timeout:  timeoutFrom(ctx),
	})
	if err != nil {
		return p.owner.wrap(fmt.Errorf("screenshot failed: %w", err))
	}
	return nil
}

func (p *pwPage) BringToFront(ctx context.Context) error {
	if err := p.page.BringToFront(); err != nil {
		return p.owner.wrap(err)
	}
	return nil
}

func (p *pwPage) URL() string {
	return p.page.URL()
}

func (p *pwPage) Close(ctx context.Context) error {
	if err := p.page.Close(); err != nil {
		return p.owner.wrap(fmt.Errorf("failed to close page: %w", err))
	}
	return nil
}

// bounded runs a playwright call that takes no timeout option and gives up
// when ctx ends. The abandoned call finishes in the background.
func bounded[T any](ctx context.Context, call func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}

	done := make(chan result, 1)
	go func() {
		value, err := call()
		done <- result{value, err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// timeoutFrom converts the context deadline into a playwright timeout in milliseconds
func timeoutFrom(ctx context.Context) *float64 {
	deadline, ok := ctx.Deadline()
	if !ok {
		return nil
	}
	ms := float64(time.Until(deadline).Milliseconds())
	if ms < 1 {
		ms = 1
	}
	return &ms
}
