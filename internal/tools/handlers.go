package tools

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shehryarbajwa/browserbase-mcp/internal/recording"
	"github.com/shehryarbajwa/browserbase-mcp/internal/remote"
	"github.com/shehryarbajwa/browserbase-mcp/internal/session"
	"github.com/shehryarbajwa/browserbase-mcp/pkg/models"
)

func enabled(on bool) string {
	if on {
		return "Enabled"
	}
	return "Disabled"
}

func (s *Server) createSession(ctx context.Context, args *arguments) (string, error) {
	if err := args.requireSession(); err != nil {
		return "", err
	}
	if args.Description == nil {
		return "", session.Invalid("description is required")
	}

	rec, err := s.registry.Create(ctx, session.CreateOptions{
		ID:               args.SessionID,
		Description:      *args.Description,
		Region:           args.Region,
		Timeout:          time.Duration(args.SessionTimeout) * time.Second,
		RecordingEnabled: args.EnableRecording,
	})
	if err != nil {
		return "", err
	}

	timeout := seconds(rec.Timeout)
	return fmt.Sprintf(`✅ Browser session created successfully!

Session ID: %s
Description: %s
Region: %s
Timeout: %d seconds
Recording: %s

Live View URL: %s

You can now use this session_id with other tools like navigate, interact, extract_content, etc.
The session will remain active for %d idle seconds or until you close it.
`, rec.ID, rec.Description, rec.Region, timeout, enabled(rec.RecordingEnabled), rec.Lease().LiveViewURL, timeout), nil
}

func (s *Server) navigate(ctx context.Context, args *arguments) (string, error) {
	if err := args.requireSession(); err != nil {
		return "", err
	}
	current, err := s.dispatcher.Navigate(ctx, args.target(), args.URL, args.WaitFor)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Navigated to %s\nCurrent URL: %s", args.URL, current), nil
}

func (s *Server) interact(ctx context.Context, args *arguments) (string, error) {
	if err := args.requireSession(); err != nil {
		return "", err
	}
	t := args.target()

	switch args.Action {
	case "click":
		if err := s.dispatcher.Click(ctx, t, args.Selector); err != nil {
			return "", err
		}
		return fmt.Sprintf("✅ Clicked element: %s", args.Selector), nil

	case "type":
		if args.Text == nil {
			return "", session.Invalid("text is required for type")
		}
		if err := s.dispatcher.Fill(ctx, t, args.Selector, *args.Text); err != nil {
			return "", err
		}
		return fmt.Sprintf("✅ Typed text into: %s", args.Selector), nil

	case "press_key":
		if err := s.dispatcher.PressKey(ctx, t, args.Key); err != nil {
			return "", err
		}
		return fmt.Sprintf("✅ Pressed key: %s", args.Key), nil

	case "scroll":
		amount := session.DefaultScrollAmount
		if args.ScrollAmount != nil {
			amount = *args.ScrollAmount
		}
		if err := s.dispatcher.Scroll(ctx, t, amount); err != nil {
			return "", err
		}
		return fmt.Sprintf("✅ Scrolled %d pixels", amount), nil

	case "":
		return "", session.Invalid("action is required")
	default:
		return "", session.Invalid("unknown action '%s'", args.Action)
	}
}

func (s *Server) extractContent(ctx context.Context, args *arguments) (string, error) {
	if err := args.requireSession(); err != nil {
		return "", err
	}
	t := args.target()

	switch args.ContentType {
	case "text":
		text, err := s.dispatcher.ExtractText(ctx, t, args.Selector)
		if err != nil {
			return "", err
		}
		return "Extracted text:\n\n" + text, nil

	case "html":
		html, err := s.dispatcher.ExtractHTML(ctx, t, args.Selector)
		if err != nil {
			return "", err
		}
		return "Extracted HTML:\n\n" + html, nil

	case "attribute":
		value, err := s.dispatcher.ExtractAttribute(ctx, t, args.Selector, args.Attribute)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Attribute '%s': %s", args.Attribute, value), nil

	case "":
		return "", session.Invalid("content_type is required")
	default:
		return "", session.Invalid("unknown content_type '%s'", args.ContentType)
	}
}

func (s *Server) executeScript(ctx context.Context, args *arguments) (string, error) {
	if err := args.requireSession(); err != nil {
		return "", err
	}
	out, err := s.dispatcher.Evaluate(ctx, args.target(), args.Script)
	if err != nil {
		return "", err
	}
	return "Script result:\n\n" + out, nil
}

func (s *Server) screenshot(ctx context.Context, args *arguments) (string, error) {
	if err := args.requireSession(); err != nil {
		return "", err
	}

	// Look the session up first so an unknown id leaves nothing on disk
	if _, err := s.registry.Get(args.SessionID); err != nil {
		return "", err
	}

	path := args.Path
	if path == "" {
		name := fmt.Sprintf("screenshot_%d.png", s.registry.Now().UnixMilli())
		path = filepath.Join(recording.SessionDir(s.opts.ScreenshotsDir, args.SessionID), name)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}

	err := s.dispatcher.Screenshot(ctx, args.target(), remote.ScreenshotOptions{
		Path:     path,
		Selector: args.Selector,
		FullPage: args.FullPage,
	})
	if err != nil {
		return "", err
	}
	return "✅ Screenshot saved to: " + path, nil
}

func (s *Server) manageTabs(ctx context.Context, args *arguments) (string, error) {
	if err := args.requireSession(); err != nil {
		return "", err
	}

	switch args.Action {
	case "new_tab":
		id, err := s.dispatcher.NewTab(ctx, args.SessionID, args.TabID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("✅ Created new tab: %s (now active)", id), nil

	case "switch_tab":
		if args.TabID == "" {
			return "", session.Invalid("tab_id is required for switch_tab")
		}
		if err := s.dispatcher.SwitchTab(ctx, args.SessionID, args.TabID); err != nil {
			return "", err
		}
		return "✅ Switched to tab: " + args.TabID, nil

	case "close_tab":
		id, err := s.dispatcher.CloseTab(ctx, args.SessionID, args.TabID)
		if err != nil {
			return "", err
		}
		return "✅ Closed tab: " + id, nil

	case "list_tabs":
		tabs, err := s.dispatcher.ListTabs(ctx, args.SessionID)
		if err != nil {
			return "", err
		}
		if len(tabs) == 0 {
			return "No open tabs. Use new_tab to open one.", nil
		}
		return "Active tabs:\n\n" + strings.Join(tabLines(tabs, ""), "\n"), nil

	case "":
		return "", session.Invalid("action is required")
	default:
		return "", session.Invalid("unknown action '%s'", args.Action)
	}
}

func tabLines(tabs []models.TabInfo, indent string) []string {
	lines := make([]string, 0, len(tabs))
	for _, tab := range tabs {
		mark := " "
		if tab.Active {
			mark = "✓"
		}
		lines = append(lines, fmt.Sprintf("%s[%s] %s: %s", indent, mark, tab.ID, tab.URL))
	}
	return lines
}

func (s *Server) listSessions(_ context.Context, _ *arguments) (string, error) {
	summaries := s.registry.List()
	if len(summaries) == 0 {
		return "No active sessions", nil
	}

	entries := make([]string, 0, len(summaries))
	for _, sum := range summaries {
		active := sum.ActiveTab
		if active == "" {
			active = "none"
		}
		entries = append(entries, fmt.Sprintf("• %s\n  Description: %s\n  Region: %s\n  Age: %ds, Idle: %ds\n  Tabs: %d, Active: %s",
			sum.ID, sum.Description, sum.Region, seconds(sum.Age), seconds(sum.Idle), sum.TabCount, active))
	}
	return fmt.Sprintf("Active sessions (%d):\n\n%s", len(summaries), strings.Join(entries, "\n\n")), nil
}

func (s *Server) getSessionInfo(_ context.Context, args *arguments) (string, error) {
	if err := args.requireSession(); err != nil {
		return "", err
	}
	rec, err := s.registry.Get(args.SessionID)
	if err != nil {
		return "", err
	}

	info := rec.Info(s.registry.Now())
	current := info.CurrentURL
	if current == "" {
		current = "N/A"
	}
	active := info.ActiveTab
	if active == "" {
		active = "none"
	}

	var b strings.Builder
	fmt.Fprintf(&b, `Session Information:

Session ID: %s
Description: %s
Region: %s
Status: %s
Age: %d seconds
Idle: %d seconds
Timeout: %d seconds

Current URL: %s
Active Tab: %s
Total Tabs: %d
Recording: %s
Live View URL: %s

Tabs:
`, info.ID, info.Description, info.Region, info.Status, seconds(info.Age), seconds(info.Idle), info.Timeout,
		current, active, info.TabCount, enabled(info.RecordingEnabled), info.LiveViewURL)
	for _, line := range tabLines(info.Tabs, "  ") {
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func (s *Server) closeSession(ctx context.Context, args *arguments) (string, error) {
	if err := args.requireSession(); err != nil {
		return "", err
	}
	if _, err := s.registry.Get(args.SessionID); err != nil {
		return "", err
	}

	msg := fmt.Sprintf("✅ Session '%s' closed successfully", args.SessionID)
	if err := s.registry.Destroy(ctx, args.SessionID); err != nil {
		log.Printf("⚠️ Session %s closed with cleanup errors: %v", args.SessionID, err)
		msg += fmt.Sprintf("\nWarning: some resources reported errors during cleanup: %v", err)
	}
	return msg, nil
}

func (s *Server) getLiveViewURL(_ context.Context, args *arguments) (string, error) {
	if err := args.requireSession(); err != nil {
		return "", err
	}
	rec, err := s.registry.Get(args.SessionID)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`Live View URL for session '%s':

%s

Open this URL to:
• Watch the browser session in real-time
• Interact with the page manually if needed
• Debug automation issues visually
`, rec.ID, rec.Lease().LiveViewURL), nil
}
