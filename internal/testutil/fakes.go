// Package testutil provides in-memory stand-ins for the control plane and
// the remote browser, plus a controllable clock.
package testutil

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/shehryarbajwa/browserbase-mcp/internal/remote"
	"github.com/shehryarbajwa/browserbase-mcp/pkg/models"
)

// Clock is a manually advanced clock
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at a fixed instant
func NewClock() *Clock {
	return &Clock{now: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
}

// Now returns the current reading
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ControlPlane records leases it hands out and releases
type ControlPlane struct {
	mu       sync.Mutex
	StartErr error
	StopErr  error
	Started  []models.LaunchRequest
	Stopped  []string
	seq      int
}

func (c *ControlPlane) Start(_ context.Context, req models.LaunchRequest) (*models.Lease, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.StartErr != nil {
		return nil, c.StartErr
	}
	c.seq++
	c.Started = append(c.Started, req)
	return &models.Lease{
		ID:          fmt.Sprintf("lease-%d", c.seq),
		Region:      req.Region,
		ConnectURL:  fmt.Sprintf("ws://fake/%s", req.SessionID),
		LiveViewURL: fmt.Sprintf("https://live.example/%s", req.SessionID),
	}, nil
}

func (c *ControlPlane) Stop(_ context.Context, lease *models.Lease) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Stopped = append(c.Stopped, lease.ID)
	return c.StopErr
}

// StoppedCount returns how many leases were released
func (c *ControlPlane) StoppedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Stopped)
}

// Connector hands out fake browsers
type Connector struct {
	mu         sync.Mutex
	ConnectErr error
	NewPageErr error
	CloseErr   error
	Browsers   []*Browser
}

func (c *Connector) Connect(_ context.Context, lease *models.Lease) (remote.Browser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ConnectErr != nil {
		return nil, c.ConnectErr
	}
	b := &Browser{Lease: lease, NewPageErr: c.NewPageErr, CloseErr: c.CloseErr}
	c.Browsers = append(c.Browsers, b)
	return b, nil
}

// Last returns the most recently connected browser
func (c *Connector) Last() *Browser {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Browsers) == 0 {
		return nil
	}
	return c.Browsers[len(c.Browsers)-1]
}

// Browser is a fake remote browser
type Browser struct {
	mu         sync.Mutex
	Lease      *models.Lease
	Pages      []*Page
	Closed     bool
	NewPageErr error
	CloseErr   error
}

func (b *Browser) NewPage(_ context.Context) (remote.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.NewPageErr != nil {
		return nil, b.NewPageErr
	}
	p := NewPage()
	b.Pages = append(b.Pages, p)
	return p, nil
}

func (b *Browser) Close(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Closed = true
	return b.CloseErr
}

// IsClosed reports whether Close was called
func (b *Browser) IsClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Closed
}

// Page returns the i-th page opened on this browser
func (b *Browser) Page(i int) *Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Pages[i]
}

// Page is a fake tab. Err, when set, fails every delegated call.
type Page struct {
	mu sync.Mutex

	Err        error
	CloseErr   error
	BodyText   string
	HTML       string
	Elements   map[string]string
	Attributes map[string]map[string]string
	EvalResult any

	url     string
	closed  bool
	fronted int
	calls   []string
}

// NewPage returns a blank page
func NewPage() *Page {
	return &Page{
		url:        "about:blank",
		Elements:   make(map[string]string),
		Attributes: make(map[string]map[string]string),
	}
}

func (p *Page) record(call string) error {
	p.calls = append(p.calls, call)
	return p.Err
}

// Calls lists the operations made against this page
func (p *Page) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *Page) Goto(_ context.Context, url, waitUntil string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("goto " + url + " " + waitUntil); err != nil {
		return "", err
	}
	p.url = url
	return url, nil
}

func (p *Page) Click(_ context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("click " + selector); err != nil {
		return err
	}
	if _, ok := p.Elements[selector]; !ok {
		return fmt.Errorf("waiting for selector %q: timeout", selector)
	}
	return nil
}

func (p *Page) Fill(_ context.Context, selector, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("fill " + selector + " " + text); err != nil {
		return err
	}
	if _, ok := p.Elements[selector]; !ok {
		return fmt.Errorf("waiting for selector %q: timeout", selector)
	}
	p.Elements[selector] = text
	return nil
}

func (p *Page) Press(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.record("press " + key)
}

func (p *Page) Evaluate(_ context.Context, script string) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("evaluate " + script); err != nil {
		return nil, err
	}
	if script == "document.body.innerText" {
		return p.BodyText, nil
	}
	return p.EvalResult, nil
}

func (p *Page) TextContent(_ context.Context, selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("text " + selector); err != nil {
		return "", err
	}
	text, ok := p.Elements[selector]
	if !ok {
		return "", fmt.Errorf("waiting for selector %q: timeout", selector)
	}
	return text, nil
}

func (p *Page) InnerHTML(ctx context.Context, selector string) (string, error) {
	return p.TextContent(ctx, selector)
}

func (p *Page) Content(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("content"); err != nil {
		return "", err
	}
	return p.HTML, nil
}

func (p *Page) GetAttribute(_ context.Context, selector, name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("attribute " + selector + " " + name); err != nil {
		return "", err
	}
	attrs, ok := p.Attributes[selector]
	if !ok {
		return "", fmt.Errorf("waiting for selector %q: timeout", selector)
	}
	return attrs[name], nil
}

func (p *Page) Screenshot(_ context.Context, opts remote.ScreenshotOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("screenshot " + opts.Path); err != nil {
		return err
	}
	if opts.Selector != "" {
		if _, ok := p.Elements[opts.Selector]; !ok {
			return fmt.Errorf("%w: %s", remote.ErrElementNotFound, opts.Selector)
		}
	}
	return os.WriteFile(opts.Path, []byte("\x89PNG"), 0644)
}

func (p *Page) BringToFront(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fronted++
	return p.record("front")
}

// Fronted counts BringToFront calls
func (p *Page) Fronted() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fronted
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Page) Close(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CloseErr != nil {
		return p.CloseErr
	}
	p.closed = true
	return nil
}

// IsClosed reports whether Close succeeded
func (p *Page) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
