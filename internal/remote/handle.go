// Package remote defines the browser handle a session drives and its
// playwright implementation over the Chrome DevTools Protocol.
package remote

import (
	"context"
	"errors"

	"github.com/shehryarbajwa/browserbase-mcp/pkg/models"
)

var (
	// ErrConnectionLost is returned when the remote browser itself is gone.
	// A session that sees it cannot be trusted any further.
	ErrConnectionLost = errors.New("remote browser connection lost")

	// ErrNoBrowserContexts is returned when the browser refuses to open a context for the session
	ErrNoBrowserContexts = errors.New("no browser contexts available")

	// ErrElementNotFound is returned when a selector matches nothing
	ErrElementNotFound = errors.New("element not found")
)

// ScreenshotOptions configures a page or element capture
type ScreenshotOptions struct {
	Path     string
	Selector string
	FullPage bool
}

// Page is one tab of a remote browser
type Page interface {
	Goto(ctx context.Context, url, waitUntil string) (string, error)
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, text string) error
	Press(ctx context.Context, key string) error
	Evaluate(ctx context.Context, script string) (any, error)
	TextContent(ctx context.Context, selector string) (string, error)
	InnerHTML(ctx context.Context, selector string) (string, error)
	Content(ctx context.Context) (string, error)
	GetAttribute(ctx context.Context, selector, name string) (string, error)
	Screenshot(ctx context.Context, opts ScreenshotOptions) error
	BringToFront(ctx context.Context) error
	URL() string
	Close(ctx context.Context) error
}

// Browser is the remote automation connection owned by one session
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close(ctx context.Context) error
}

// Connector opens a Browser against a provisioned lease
type Connector interface {
	Connect(ctx context.Context, lease *models.Lease) (Browser, error)
}
