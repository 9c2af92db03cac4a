package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"github.com/shehryarbajwa/browserbase-mcp/internal/remote"
	"github.com/shehryarbajwa/browserbase-mcp/pkg/models"
)

const (
	DefaultOperationTimeout  = 30 * time.Second
	DefaultNavigationTimeout = 60 * time.Second

	// MaxHTMLLength caps extracted HTML
	MaxHTMLLength    = 5000
	TruncationMarker = "\n\n... (truncated)"

	DefaultScrollAmount = 500
	DefaultWaitUntil    = "networkidle"
)

var waitConditions = map[string]bool{
	"load":             true,
	"domcontentloaded": true,
	"networkidle":      true,
	"commit":           true,
}

// Target addresses a tab in a session. An empty TabID means the active tab.
type Target struct {
	SessionID string
	TabID     string
}

// DispatcherOptions bounds delegated calls
type DispatcherOptions struct {
	OperationTimeout  time.Duration
	NavigationTimeout time.Duration
}

// Dispatcher resolves requests to a session tab and forwards them to the remote browser
type Dispatcher struct {
	registry *Registry
	opts     DispatcherOptions
}

// NewDispatcher creates a dispatcher over registry
func NewDispatcher(registry *Registry, opts DispatcherOptions) *Dispatcher {
	if opts.OperationTimeout == 0 {
		opts.OperationTimeout = DefaultOperationTimeout
	}
	if opts.NavigationTimeout == 0 {
		opts.NavigationTimeout = DefaultNavigationTimeout
	}
	return &Dispatcher{registry: registry, opts: opts}
}

// withSession looks up the session, runs fn under the operation deadline and
// touches the session whatever fn returns.
func (d *Dispatcher) withSession(ctx context.Context, sessionID, op string, timeout time.Duration, fn func(ctx context.Context, rec *Record) error) error {
	rec, err := d.registry.Get(sessionID)
	if err != nil {
		return err
	}
	defer func() { rec.Touch(d.registry.Now()) }()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := fn(ctx, rec); err != nil {
		return d.fault(ctx, rec, op, err)
	}
	return nil
}

// withPage is withSession plus tab resolution
func (d *Dispatcher) withPage(ctx context.Context, t Target, op string, timeout time.Duration, fn func(ctx context.Context, page remote.Page) error) error {
	return d.withSession(ctx, t.SessionID, op, timeout, func(ctx context.Context, rec *Record) error {
		_, page, err := rec.Tab(t.TabID)
		if err != nil {
			return err
		}
		return fn(ctx, page)
	})
}

// fault classifies an error coming back from the remote browser
func (d *Dispatcher) fault(ctx context.Context, rec *Record, op string, err error) error {
	var serr *Error
	if errors.As(err, &serr) {
		return err
	}

	if errors.Is(err, remote.ErrConnectionLost) {
		log.Printf("💀 Session %s lost its browser during %s, closing it", rec.ID, op)
		if derr := d.registry.Destroy(ctx, rec.ID); derr != nil {
			log.Printf("⚠️ Cleanup after lost connection for %s: %v", rec.ID, derr)
		}
		return &Error{Kind: KindConnectionLost, SessionID: rec.ID, Op: op, Err: err}
	}

	return &Error{Kind: KindDelegatedOperation, SessionID: rec.ID, Op: op, Err: err}
}

// Navigate loads url in the target tab and returns the resulting URL
func (d *Dispatcher) Navigate(ctx context.Context, t Target, url, waitUntil string) (string, error) {
	if url == "" {
		return "", Invalid("url is required")
	}
	if waitUntil == "" {
		waitUntil = DefaultWaitUntil
	}
	if !waitConditions[waitUntil] {
		return "", Invalid("wait_for must be one of load, domcontentloaded, networkidle, commit")
	}

	var current string
	err := d.withPage(ctx, t, "navigate", d.opts.NavigationTimeout, func(ctx context.Context, page remote.Page) error {
		var err error
		current, err = page.Goto(ctx, url, waitUntil)
		return err
	})
	return current, err
}

// Click clicks the element matching selector
func (d *Dispatcher) Click(ctx context.Context, t Target, selector string) error {
	if selector == "" {
		return Invalid("selector is required for click")
	}
	return d.withPage(ctx, t, "click", d.opts.OperationTimeout, func(ctx context.Context, page remote.Page) error {
		return page.Click(ctx, selector)
	})
}

// Fill types text into the input matching selector
func (d *Dispatcher) Fill(ctx context.Context, t Target, selector, text string) error {
	if selector == "" {
		return Invalid("selector is required for type")
	}
	return d.withPage(ctx, t, "type", d.opts.OperationTimeout, func(ctx context.Context, page remote.Page) error {
		return page.Fill(ctx, selector, text)
	})
}

// PressKey presses a keyboard key on the page
func (d *Dispatcher) PressKey(ctx context.Context, t Target, key string) error {
	if key == "" {
		return Invalid("key is required for press_key")
	}
	return d.withPage(ctx, t, "press_key", d.opts.OperationTimeout, func(ctx context.Context, page remote.Page) error {
		return page.Press(ctx, key)
	})
}

// Scroll scrolls the window vertically; negative amounts scroll up
func (d *Dispatcher) Scroll(ctx context.Context, t Target, amount int) error {
	return d.withPage(ctx, t, "scroll", d.opts.OperationTimeout, func(ctx context.Context, page remote.Page) error {
		_, err := page.Evaluate(ctx, fmt.Sprintf("window.scrollBy(0, %d)", amount))
		return err
	})
}

// ExtractText returns the text of selector, or of the whole body
func (d *Dispatcher) ExtractText(ctx context.Context, t Target, selector string) (string, error) {
	var text string
	err := d.withPage(ctx, t, "extract content", d.opts.OperationTimeout, func(ctx context.Context, page remote.Page) error {
		if selector != "" {
			var err error
			text, err = page.TextContent(ctx, selector)
			return err
		}
		result, err := page.Evaluate(ctx, "document.body.innerText")
		if err != nil {
			return err
		}
		text = stringify(result)
		return nil
	})
	return text, err
}

// ExtractHTML returns the inner HTML of selector, or the page HTML, truncated to MaxHTMLLength
func (d *Dispatcher) ExtractHTML(ctx context.Context, t Target, selector string) (string, error) {
	var html string
	err := d.withPage(ctx, t, "extract content", d.opts.OperationTimeout, func(ctx context.Context, page remote.Page) error {
		var err error
		if selector != "" {
			html, err = page.InnerHTML(ctx, selector)
		} else {
			html, err = page.Content(ctx)
		}
		return err
	})
	if err != nil {
		return "", err
	}
	return truncate(html, MaxHTMLLength), nil
}

// ExtractAttribute returns one attribute of the element matching selector
func (d *Dispatcher) ExtractAttribute(ctx context.Context, t Target, selector, name string) (string, error) {
	if selector == "" {
		return "", Invalid("selector required for attribute extraction")
	}
	if name == "" {
		return "", Invalid("attribute name required")
	}

	var value string
	err := d.withPage(ctx, t, "extract content", d.opts.OperationTimeout, func(ctx context.Context, page remote.Page) error {
		var err error
		value, err = page.GetAttribute(ctx, selector, name)
		return err
	})
	return value, err
}

// Evaluate runs script in the page and stringifies its result
func (d *Dispatcher) Evaluate(ctx context.Context, t Target, script string) (string, error) {
	if script == "" {
		return "", Invalid("script is required")
	}

	var out string
	err := d.withPage(ctx, t, "execute script", d.opts.OperationTimeout, func(ctx context.Context, page remote.Page) error {
		result, err := page.Evaluate(ctx, script)
		if err != nil {
			return err
		}
		out = stringify(result)
		return nil
	})
	return out, err
}

// Screenshot captures the page or one element to opts.Path
func (d *Dispatcher) Screenshot(ctx context.Context, t Target, opts remote.ScreenshotOptions) error {
	if opts.Path == "" {
		return Invalid("path is required")
	}
	return d.withPage(ctx, t, "screenshot", d.opts.OperationTimeout, func(ctx context.Context, page remote.Page) error {
		return page.Screenshot(ctx, opts)
	})
}

// NewTab opens a tab and focuses it
func (d *Dispatcher) NewTab(ctx context.Context, sessionID, tabID string) (string, error) {
	var created string
	err := d.withSession(ctx, sessionID, "manage tabs", d.opts.OperationTimeout, func(ctx context.Context, rec *Record) error {
		var err error
		created, err = rec.NewTab(ctx, tabID)
		return err
	})
	return created, err
}

// SwitchTab focuses an existing tab
func (d *Dispatcher) SwitchTab(ctx context.Context, sessionID, tabID string) error {
	return d.withSession(ctx, sessionID, "manage tabs", d.opts.OperationTimeout, func(ctx context.Context, rec *Record) error {
		return rec.SwitchTab(ctx, tabID)
	})
}

// CloseTab closes tabID, or the active tab, and returns the id closed
func (d *Dispatcher) CloseTab(ctx context.Context, sessionID, tabID string) (string, error) {
	var closed string
	err := d.withSession(ctx, sessionID, "manage tabs", d.opts.OperationTimeout, func(ctx context.Context, rec *Record) error {
		var err error
		closed, err = rec.CloseTab(ctx, tabID)
		return err
	})
	return closed, err
}

// ListTabs snapshots the session's tabs
func (d *Dispatcher) ListTabs(ctx context.Context, sessionID string) ([]models.TabInfo, error) {
	var tabs []models.TabInfo
	err := d.withSession(ctx, sessionID, "manage tabs", d.opts.OperationTimeout, func(_ context.Context, rec *Record) error {
		tabs = rec.ListTabs()
		return nil
	})
	return tabs, err
}

// truncate cuts s to max characters
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + TruncationMarker
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return "undefined"
	case string:
		return val
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
