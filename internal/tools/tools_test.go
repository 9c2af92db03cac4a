package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/browserbase-mcp/internal/remote"
	"github.com/shehryarbajwa/browserbase-mcp/internal/session"
	"github.com/shehryarbajwa/browserbase-mcp/internal/testutil"
	"github.com/shehryarbajwa/browserbase-mcp/pkg/models"
)

type harness struct {
	server       *Server
	registry     *session.Registry
	controlPlane *testutil.ControlPlane
	connector    *testutil.Connector
	clock        *testutil.Clock
	dir          string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		controlPlane: &testutil.ControlPlane{},
		connector:    &testutil.Connector{},
		clock:        testutil.NewClock(),
		dir:          t.TempDir(),
	}
	h.registry = session.NewRegistry(h.controlPlane, h.connector, session.Options{
		DefaultRegion: "us-west-2",
		Now:           h.clock.Now,
	})
	dispatcher := session.NewDispatcher(h.registry, session.DispatcherOptions{})
	h.server = NewServer(h.registry, dispatcher, Options{ScreenshotsDir: h.dir})
	return h
}

func (h *harness) call(t *testing.T, name string, args map[string]any) models.ToolResult {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	return h.server.Call(context.Background(), name, raw)
}

func (h *harness) mustCall(t *testing.T, name string, args map[string]any) string {
	t.Helper()
	result := h.call(t, name, args)
	require.False(t, result.IsError, result.Text())
	return result.Text()
}

func (h *harness) createSession(t *testing.T, id string, timeout int) {
	t.Helper()
	h.mustCall(t, ToolCreateSession, map[string]any{
		"session_id":      id,
		"description":     "testing " + id,
		"session_timeout": timeout,
	})
}

func requireKind(t *testing.T, result models.ToolResult, kind string) {
	t.Helper()
	require.True(t, result.IsError, "expected an error result, got %q", result.Text())
	require.NotNil(t, result.Error)
	assert.Equal(t, kind, result.Error.Kind)
	assert.True(t, strings.HasPrefix(result.Text(), "Error: "))
}

func TestDefinitionsCoverEveryTool(t *testing.T) {
	h := newHarness(t)

	defs := h.server.Definitions()

	require.Len(t, defs, len(h.server.handlers))
	for _, def := range defs {
		_, ok := h.server.handlers[def.Name]
		assert.True(t, ok, "no handler for %s", def.Name)
		assert.Equal(t, "object", def.InputSchema["type"])
		assert.NotEmpty(t, def.Description)
	}
}

func TestCreateSession(t *testing.T) {
	h := newHarness(t)

	text := h.mustCall(t, ToolCreateSession, map[string]any{
		"session_id":       "s1",
		"description":      "checkout flow",
		"enable_recording": true,
	})

	assert.Contains(t, text, "✅ Browser session created successfully!")
	assert.Contains(t, text, "Session ID: s1")
	assert.Contains(t, text, "Region: us-west-2")
	assert.Contains(t, text, "Timeout: 3600 seconds")
	assert.Contains(t, text, "Recording: Enabled")
	assert.Contains(t, text, "Live View URL: https://live.example/s1")
	assert.Equal(t, 1, h.registry.Len())
}

func TestCreateSessionDuplicate(t *testing.T) {
	h := newHarness(t)
	h.createSession(t, "s1", 0)

	result := h.call(t, ToolCreateSession, map[string]any{"session_id": "s1", "description": "again"})

	requireKind(t, result, string(session.KindDuplicateSession))
	assert.Contains(t, result.Text(), "already exists")
	assert.Len(t, h.controlPlane.Started, 1)
}

func TestCreateSessionValidation(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
	}{
		{name: "missing id", args: map[string]any{"description": "x"}},
		{name: "missing description", args: map[string]any{"session_id": "s1"}},
		{name: "timeout too large", args: map[string]any{"session_id": "s1", "description": "x", "session_timeout": 28801}},
		{name: "negative timeout", args: map[string]any{"session_id": "s1", "description": "x", "session_timeout": -5}},
		{name: "timeout wrong type", args: map[string]any{"session_id": "s1", "description": "x", "session_timeout": "long"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			result := h.call(t, ToolCreateSession, tt.args)
			requireKind(t, result, string(session.KindInvalidArgument))
			assert.Equal(t, 0, h.registry.Len())
		})
	}
}

func TestCreateSessionProvisioningFailure(t *testing.T) {
	h := newHarness(t)
	h.connector.ConnectErr = errors.New("dial tcp: connection refused")

	result := h.call(t, ToolCreateSession, map[string]any{"session_id": "s1", "description": "x"})

	requireKind(t, result, string(session.KindProvisioning))
	assert.Equal(t, 0, h.registry.Len())
	assert.Equal(t, 1, h.controlPlane.StoppedCount())
}

func TestUnknownTool(t *testing.T) {
	h := newHarness(t)

	result := h.call(t, "teleport", nil)

	requireKind(t, result, KindUnknownTool)
	assert.Contains(t, result.Text(), "teleport")
}

func TestMalformedArguments(t *testing.T) {
	h := newHarness(t)

	result := h.server.Call(context.Background(), ToolNavigate, json.RawMessage(`{"session_id":`))

	requireKind(t, result, string(session.KindInvalidArgument))
}

func TestNavigateAndExtract(t *testing.T) {
	h := newHarness(t)
	h.createSession(t, "s1", 0)
	page := h.connector.Last().Page(0)
	page.BodyText = "Example Domain"
	page.Attributes["a"] = map[string]string{"href": "https://www.iana.org/domains/example"}

	text := h.mustCall(t, ToolNavigate, map[string]any{"session_id": "s1", "url": "https://example.com"})
	assert.Equal(t, "✅ Navigated to https://example.com\nCurrent URL: https://example.com", text)

	text = h.mustCall(t, ToolExtractContent, map[string]any{"session_id": "s1", "content_type": "text"})
	assert.Equal(t, "Extracted text:\n\nExample Domain", text)

	text = h.mustCall(t, ToolExtractContent, map[string]any{"session_id": "s1", "content_type": "attribute", "selector": "a", "attribute": "href"})
	assert.Equal(t, "Attribute 'href': https://www.iana.org/domains/example", text)
}

func TestExtractAttributeWithoutName(t *testing.T) {
	h := newHarness(t)
	h.createSession(t, "s1", 0)

	result := h.call(t, ToolExtractContent, map[string]any{"session_id": "s1", "content_type": "attribute", "selector": "a"})

	requireKind(t, result, string(session.KindInvalidArgument))
	assert.Equal(t, "Error: attribute name required", result.Text())
	assert.Equal(t, 1, h.registry.Len())
}

func TestExtractHTMLTruncated(t *testing.T) {
	h := newHarness(t)
	h.createSession(t, "s1", 0)
	h.connector.Last().Page(0).HTML = strings.Repeat("<p>x</p>", 2000)

	text := h.mustCall(t, ToolExtractContent, map[string]any{"session_id": "s1", "content_type": "html"})

	assert.True(t, strings.HasSuffix(text, "\n\n... (truncated)"))
	assert.Len(t, strings.TrimPrefix(text, "Extracted HTML:\n\n"), session.MaxHTMLLength+len(session.TruncationMarker))
}

func TestInteract(t *testing.T) {
	h := newHarness(t)
	h.createSession(t, "s1", 0)
	page := h.connector.Last().Page(0)
	page.Elements["#q"] = ""

	assert.Equal(t, "✅ Clicked element: #q", h.mustCall(t, ToolInteract, map[string]any{"session_id": "s1", "action": "click", "selector": "#q"}))
	assert.Equal(t, "✅ Typed text into: #q", h.mustCall(t, ToolInteract, map[string]any{"session_id": "s1", "action": "type", "selector": "#q", "text": "golang"}))
	assert.Equal(t, "✅ Pressed key: Enter", h.mustCall(t, ToolInteract, map[string]any{"session_id": "s1", "action": "press_key", "key": "Enter"}))
	assert.Equal(t, "✅ Scrolled 500 pixels", h.mustCall(t, ToolInteract, map[string]any{"session_id": "s1", "action": "scroll"}))
	assert.Equal(t, "✅ Scrolled -300 pixels", h.mustCall(t, ToolInteract, map[string]any{"session_id": "s1", "action": "scroll", "scroll_amount": -300}))
	assert.Equal(t, "golang", page.Elements["#q"])

	requireKind(t, h.call(t, ToolInteract, map[string]any{"session_id": "s1", "action": "hover"}), string(session.KindInvalidArgument))
	requireKind(t, h.call(t, ToolInteract, map[string]any{"session_id": "s1", "action": "type", "selector": "#q"}), string(session.KindInvalidArgument))
}

func TestInteractDelegatedFailureKeepsSession(t *testing.T) {
	h := newHarness(t)
	h.createSession(t, "s1", 0)

	result := h.call(t, ToolInteract, map[string]any{"session_id": "s1", "action": "click", "selector": "#missing"})

	requireKind(t, result, string(session.KindDelegatedOperation))
	assert.Contains(t, result.Text(), "click failed")
	assert.Equal(t, 1, h.registry.Len())
}

func TestConnectionLostClosesSession(t *testing.T) {
	h := newHarness(t)
	h.createSession(t, "s1", 0)
	h.connector.Last().Page(0).Err = fmt.Errorf("%w: websocket closed", remote.ErrConnectionLost)

	result := h.call(t, ToolExecuteScript, map[string]any{"session_id": "s1", "script": "1+1"})

	requireKind(t, result, string(session.KindConnectionLost))
	assert.Equal(t, 0, h.registry.Len())

	result = h.call(t, ToolGetSessionInfo, map[string]any{"session_id": "s1"})
	requireKind(t, result, string(session.KindSessionNotFound))
}

func TestExecuteScript(t *testing.T) {
	h := newHarness(t)
	h.createSession(t, "s1", 0)
	h.connector.Last().Page(0).EvalResult = map[string]any{"title": "Example"}

	text := h.mustCall(t, ToolExecuteScript, map[string]any{"session_id": "s1", "script": "({title: document.title})"})

	assert.Equal(t, "Script result:\n\n{\"title\":\"Example\"}", text)
}

func TestScreenshotDefaultPath(t *testing.T) {
	h := newHarness(t)
	h.createSession(t, "s1", 0)

	text := h.mustCall(t, ToolScreenshot, map[string]any{"session_id": "s1", "full_page": true})

	want := filepath.Join(h.dir, "s1", fmt.Sprintf("screenshot_%d.png", h.clock.Now().UnixMilli()))
	assert.Equal(t, "✅ Screenshot saved to: "+want, text)
	_, err := os.Stat(want)
	assert.NoError(t, err)
}

func TestScreenshotMissingElement(t *testing.T) {
	h := newHarness(t)
	h.createSession(t, "s1", 0)

	result := h.call(t, ToolScreenshot, map[string]any{
		"session_id": "s1",
		"selector":   "#chart",
		"path":       filepath.Join(h.dir, "chart.png"),
	})

	requireKind(t, result, string(session.KindDelegatedOperation))
	assert.Contains(t, result.Text(), "#chart")
}

func TestScreenshotUnknownSessionLeavesNoDirectory(t *testing.T) {
	h := newHarness(t)

	result := h.call(t, ToolScreenshot, map[string]any{"session_id": "ghost"})

	requireKind(t, result, string(session.KindSessionNotFound))
	_, err := os.Stat(filepath.Join(h.dir, "ghost"))
	assert.True(t, os.IsNotExist(err), "screenshot directory should not exist: %v", err)
}

func TestManageTabsScenario(t *testing.T) {
	h := newHarness(t)
	h.createSession(t, "s2", 0)

	assert.Equal(t, "✅ Created new tab: t2 (now active)", h.mustCall(t, ToolManageTabs, map[string]any{"session_id": "s2", "action": "new_tab", "tab_id": "t2"}))

	list := h.mustCall(t, ToolManageTabs, map[string]any{"session_id": "s2", "action": "list_tabs"})
	assert.Equal(t, "Active tabs:\n\n[ ] main: about:blank\n[✓] t2: about:blank", list)

	assert.Equal(t, "✅ Closed tab: t2", h.mustCall(t, ToolManageTabs, map[string]any{"session_id": "s2", "action": "close_tab", "tab_id": "t2"}))

	info := h.mustCall(t, ToolGetSessionInfo, map[string]any{"session_id": "s2"})
	assert.Contains(t, info, "Active Tab: main")
	assert.Contains(t, info, "Total Tabs: 1")

	result := h.call(t, ToolManageTabs, map[string]any{"session_id": "s2", "action": "switch_tab", "tab_id": "t2"})
	requireKind(t, result, string(session.KindTabNotFound))
	assert.Contains(t, result.Text(), "available: main")

	result = h.call(t, ToolManageTabs, map[string]any{"session_id": "s2", "action": "new_tab", "tab_id": "main"})
	requireKind(t, result, string(session.KindDuplicateTab))
}

func TestManageTabsEmptyTable(t *testing.T) {
	h := newHarness(t)
	h.createSession(t, "s1", 0)

	h.mustCall(t, ToolManageTabs, map[string]any{"session_id": "s1", "action": "close_tab"})

	result := h.call(t, ToolNavigate, map[string]any{"session_id": "s1", "url": "https://example.com"})
	requireKind(t, result, string(session.KindNoTabsAvailable))

	assert.Equal(t, "No open tabs. Use new_tab to open one.", h.mustCall(t, ToolManageTabs, map[string]any{"session_id": "s1", "action": "list_tabs"}))
	assert.Equal(t, "✅ Created new tab: tab_2 (now active)", h.mustCall(t, ToolManageTabs, map[string]any{"session_id": "s1", "action": "new_tab"}))
}

func TestListSessions(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, "No active sessions", h.mustCall(t, ToolListSessions, nil))

	h.createSession(t, "b", 0)
	h.createSession(t, "a", 0)
	h.clock.Advance(42 * time.Second)

	text := h.mustCall(t, ToolListSessions, nil)

	assert.True(t, strings.HasPrefix(text, "Active sessions (2):\n\n• a\n"))
	assert.Contains(t, text, "Age: 42s, Idle: 42s")
	assert.Contains(t, text, "Tabs: 1, Active: main")
	assert.Less(t, strings.Index(text, "• a"), strings.Index(text, "• b"))
}

func TestReadOnlyToolsDoNotTouch(t *testing.T) {
	h := newHarness(t)
	h.createSession(t, "s1", 0)
	rec, err := h.registry.Get("s1")
	require.NoError(t, err)
	created := rec.LastUsedAt()

	h.clock.Advance(time.Minute)
	h.mustCall(t, ToolListSessions, nil)
	h.mustCall(t, ToolGetSessionInfo, map[string]any{"session_id": "s1"})
	h.mustCall(t, ToolGetLiveViewURL, map[string]any{"session_id": "s1"})

	assert.Equal(t, created, rec.LastUsedAt())
}

func TestCloseSession(t *testing.T) {
	h := newHarness(t)
	h.createSession(t, "s1", 0)
	browser := h.connector.Last()

	assert.Equal(t, "✅ Session 's1' closed successfully", h.mustCall(t, ToolCloseSession, map[string]any{"session_id": "s1"}))
	assert.True(t, browser.IsClosed())
	assert.Equal(t, 0, h.registry.Len())

	result := h.call(t, ToolCloseSession, map[string]any{"session_id": "s1"})
	requireKind(t, result, string(session.KindSessionNotFound))
}

func TestCloseSessionReportsCleanupErrors(t *testing.T) {
	h := newHarness(t)
	h.createSession(t, "s1", 0)
	h.controlPlane.StopErr = errors.New("lease already gone")

	text := h.mustCall(t, ToolCloseSession, map[string]any{"session_id": "s1"})

	assert.Contains(t, text, "closed successfully")
	assert.Contains(t, text, "lease already gone")
	assert.Equal(t, 0, h.registry.Len())
}

func TestGetLiveViewURL(t *testing.T) {
	h := newHarness(t)
	h.createSession(t, "s1", 0)

	text := h.mustCall(t, ToolGetLiveViewURL, map[string]any{"session_id": "s1"})

	assert.Contains(t, text, "Live View URL for session 's1':\n\nhttps://live.example/s1")
}

func TestCallSweepsExpiredSessionsFirst(t *testing.T) {
	h := newHarness(t)
	h.createSession(t, "s1", 5)
	h.clock.Advance(6 * time.Second)

	result := h.call(t, ToolNavigate, map[string]any{"session_id": "s1", "url": "https://example.com"})

	requireKind(t, result, string(session.KindSessionNotFound))
	assert.Equal(t, 0, h.registry.Len())
	assert.Equal(t, 1, h.controlPlane.StoppedCount())
}
