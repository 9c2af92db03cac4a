package tools

import "github.com/shehryarbajwa/browserbase-mcp/pkg/models"

func object(required []string, props map[string]any) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func str(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func enum(description string, values ...string) map[string]any {
	return map[string]any{"type": "string", "description": description, "enum": values}
}

func integer(description string, def int) map[string]any {
	return map[string]any{"type": "integer", "description": description, "default": def}
}

func boolean(description string) map[string]any {
	return map[string]any{"type": "boolean", "description": description, "default": false}
}

var (
	sessionIDProp = str("Session ID from create_browser_session")
	tabIDProp     = str("Tab to act on (default: the active tab)")
)

func definitions(defaultRegion string) []models.ToolDefinition {
	return []models.ToolDefinition{
		{
			Name:        ToolCreateSession,
			Description: "Create a new browser session with persistent state",
			InputSchema: object([]string{"session_id", "description"}, map[string]any{
				"session_id":       str("Unique identifier for this session (e.g., 'order-processing-001')"),
				"description":      str("Description of what this session will be used for"),
				"region":           map[string]any{"type": "string", "description": "Region to launch the browser in (default: " + defaultRegion + ")", "default": defaultRegion},
				"session_timeout":  integer("Idle timeout in seconds (default: 3600, max: 28800)", 3600),
				"enable_recording": boolean("Archive the session's screenshots when it closes (default: false)"),
			}),
		},
		{
			Name:        ToolNavigate,
			Description: "Navigate to a URL in the browser session",
			InputSchema: object([]string{"session_id", "url"}, map[string]any{
				"session_id": sessionIDProp,
				"url":        str("URL to navigate to"),
				"wait_for": map[string]any{
					"type":        "string",
					"description": "Wait condition: 'load', 'domcontentloaded', 'networkidle', 'commit' (default: 'networkidle')",
					"enum":        []string{"load", "domcontentloaded", "networkidle", "commit"},
					"default":     "networkidle",
				},
				"tab_id": tabIDProp,
			}),
		},
		{
			Name:        ToolInteract,
			Description: "Interact with page elements (click, type, press keys, scroll)",
			InputSchema: object([]string{"session_id", "action"}, map[string]any{
				"session_id":    sessionIDProp,
				"action":        enum("Action to perform", "click", "type", "press_key", "scroll"),
				"selector":      str("CSS selector for target element (not needed for scroll)"),
				"text":          str("Text to type (for 'type' action)"),
				"key":           str("Key to press (for 'press_key' action, e.g., 'Enter', 'Tab')"),
				"scroll_amount": integer("Pixels to scroll (for 'scroll' action, negative for up)", 500),
				"tab_id":        tabIDProp,
			}),
		},
		{
			Name:        ToolExtractContent,
			Description: "Extract content from the page (text, HTML, attributes)",
			InputSchema: object([]string{"session_id", "content_type"}, map[string]any{
				"session_id":   sessionIDProp,
				"content_type": enum("Type of content to extract", "text", "html", "attribute"),
				"selector":     str("CSS selector (optional, extracts from whole page if not provided)"),
				"attribute":    str("Attribute name (for 'attribute' content_type)"),
				"tab_id":       tabIDProp,
			}),
		},
		{
			Name:        ToolExecuteScript,
			Description: "Execute JavaScript code in the browser context",
			InputSchema: object([]string{"session_id", "script"}, map[string]any{
				"session_id": sessionIDProp,
				"script":     str("JavaScript code to execute"),
				"tab_id":     tabIDProp,
			}),
		},
		{
			Name:        ToolScreenshot,
			Description: "Take a screenshot of the page or element",
			InputSchema: object([]string{"session_id"}, map[string]any{
				"session_id": sessionIDProp,
				"path":       str("File path to save screenshot (optional)"),
				"selector":   str("CSS selector for specific element (optional, full page if not provided)"),
				"full_page":  boolean("Capture full scrollable page (default: false)"),
				"tab_id":     tabIDProp,
			}),
		},
		{
			Name:        ToolManageTabs,
			Description: "Manage browser tabs (new, switch, close, list)",
			InputSchema: object([]string{"session_id", "action"}, map[string]any{
				"session_id": sessionIDProp,
				"action":     enum("Tab management action", "new_tab", "switch_tab", "close_tab", "list_tabs"),
				"tab_id":     str("Tab ID (for switch_tab, close_tab, or custom ID for new_tab)"),
			}),
		},
		{
			Name:        ToolListSessions,
			Description: "List all active browser sessions",
			InputSchema: object(nil, map[string]any{}),
		},
		{
			Name:        ToolGetSessionInfo,
			Description: "Get detailed information about a session",
			InputSchema: object([]string{"session_id"}, map[string]any{"session_id": sessionIDProp}),
		},
		{
			Name:        ToolCloseSession,
			Description: "Close a browser session and clean up resources",
			InputSchema: object([]string{"session_id"}, map[string]any{"session_id": sessionIDProp}),
		},
		{
			Name:        ToolGetLiveViewURL,
			Description: "Get the Live View URL for real-time browser monitoring",
			InputSchema: object([]string{"session_id"}, map[string]any{"session_id": sessionIDProp}),
		},
	}
}
