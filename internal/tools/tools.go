// Package tools exposes the session registry as named tool calls with JSON
// arguments and text results.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shehryarbajwa/browserbase-mcp/internal/session"
	"github.com/shehryarbajwa/browserbase-mcp/pkg/models"
)

const (
	ToolCreateSession  = "create_browser_session"
	ToolNavigate       = "navigate"
	ToolInteract       = "interact"
	ToolExtractContent = "extract_content"
	ToolExecuteScript  = "execute_script"
	ToolScreenshot     = "screenshot"
	ToolManageTabs     = "manage_tabs"
	ToolListSessions   = "list_sessions"
	ToolGetSessionInfo = "get_session_info"
	ToolCloseSession   = "close_session"
	ToolGetLiveViewURL = "get_live_view_url"
)

// KindUnknownTool is reported for calls to a name no tool answers to
const KindUnknownTool = "UnknownTool"

// DefaultScreenshotsDir is where screenshots land when no path is given
const DefaultScreenshotsDir = "screenshots"

type handler func(ctx context.Context, args *arguments) (string, error)

// Options configures a Server
type Options struct {
	ScreenshotsDir string
}

// Server routes tool calls to the session registry and dispatcher
type Server struct {
	registry   *session.Registry
	dispatcher *session.Dispatcher
	opts       Options
	handlers   map[string]handler
}

// NewServer creates a tool server
func NewServer(registry *session.Registry, dispatcher *session.Dispatcher, opts Options) *Server {
	if opts.ScreenshotsDir == "" {
		opts.ScreenshotsDir = DefaultScreenshotsDir
	}

	s := &Server{registry: registry, dispatcher: dispatcher, opts: opts}
	s.handlers = map[string]handler{
		ToolCreateSession:  s.createSession,
		ToolNavigate:       s.navigate,
		ToolInteract:       s.interact,
		ToolExtractContent: s.extractContent,
		ToolExecuteScript:  s.executeScript,
		ToolScreenshot:     s.screenshot,
		ToolManageTabs:     s.manageTabs,
		ToolListSessions:   s.listSessions,
		ToolGetSessionInfo: s.getSessionInfo,
		ToolCloseSession:   s.closeSession,
		ToolGetLiveViewURL: s.getLiveViewURL,
	}
	return s
}

// Definitions lists every tool with its input schema
func (s *Server) Definitions() []models.ToolDefinition {
	return definitions(s.registry.DefaultRegion())
}

// Call sweeps expired sessions, then runs the named tool. Failures are
// returned as error results, never as Go errors.
func (s *Server) Call(ctx context.Context, name string, raw json.RawMessage) (result models.ToolResult) {
	s.registry.SweepExpired(ctx, s.registry.Now())

	h, ok := s.handlers[name]
	if !ok {
		return models.ErrorResult(KindUnknownTool, fmt.Sprintf("unknown tool: %s", name))
	}

	args, err := parseArguments(raw)
	if err != nil {
		return errorResult(err)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Panic in %s: %v", name, r)
			result = models.ErrorResult(string(session.KindInternal), fmt.Sprintf("internal error in %s", name))
		}
	}()

	text, err := h(ctx, args)
	if err != nil {
		if session.IsKind(err, session.KindInternal) {
			log.Printf("❌ Error in %s: %v", name, err)
		}
		return errorResult(err)
	}
	return models.TextResult(text)
}

func errorResult(err error) models.ToolResult {
	return models.ErrorResult(string(session.KindOf(err)), err.Error())
}

// arguments is the union of every tool's input fields
type arguments struct {
	SessionID       string  `json:"session_id"`
	Description     *string `json:"description"`
	Region          string  `json:"region"`
	SessionTimeout  int     `json:"session_timeout"`
	EnableRecording bool    `json:"enable_recording"`
	URL             string  `json:"url"`
	WaitFor         string  `json:"wait_for"`
	Action          string  `json:"action"`
	Selector        string  `json:"selector"`
	Text            *string `json:"text"`
	Key             string  `json:"key"`
	ScrollAmount    *int    `json:"scroll_amount"`
	ContentType     string  `json:"content_type"`
	Attribute       string  `json:"attribute"`
	Script          string  `json:"script"`
	Path            string  `json:"path"`
	FullPage        bool    `json:"full_page"`
	TabID           string  `json:"tab_id"`
}

func parseArguments(raw json.RawMessage) (*arguments, error) {
	args := &arguments{}
	if len(raw) == 0 || string(raw) == "null" {
		return args, nil
	}
	if err := json.Unmarshal(raw, args); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, session.Invalid("argument %s must be a %s", typeErr.Field, typeErr.Type)
		}
		return nil, session.Invalid("invalid arguments: %v", err)
	}
	return args, nil
}

func (a *arguments) requireSession() error {
	if a.SessionID == "" {
		return session.Invalid("session_id is required")
	}
	return nil
}

func (a *arguments) target() session.Target {
	return session.Target{SessionID: a.SessionID, TabID: a.TabID}
}

func seconds(d time.Duration) int {
	return int(d / time.Second)
}
