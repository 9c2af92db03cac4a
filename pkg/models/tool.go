package models

// ToolDefinition advertises one callable tool
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Content is a single block of tool output
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolError is the structured failure attached to an error result
type ToolError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ToolResult is returned by every tool call, successful or not
type ToolResult struct {
	Content []Content  `json:"content"`
	IsError bool       `json:"isError,omitempty"`
	Error   *ToolError `json:"error,omitempty"`
}

// TextResult wraps a plain confirmation message
func TextResult(text string) ToolResult {
	return ToolResult{Content: []Content{{Type: "text", Text: text}}}
}

// ErrorResult wraps a failure so callers can branch on its kind
func ErrorResult(kind, message string) ToolResult {
	return ToolResult{
		Content: []Content{{Type: "text", Text: "Error: " + message}},
		IsError: true,
		Error:   &ToolError{Kind: kind, Message: message},
	}
}

// Text joins all text content blocks
func (r ToolResult) Text() string {
	var out string
	for i, c := range r.Content {
		if i > 0 {
			out += "\n"
		}
		out += c.Text
	}
	return out
}
