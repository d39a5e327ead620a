package conversation

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ParsedCall is a tool call with its arguments decoded. Arguments that do not
// parse or violate the capability schema are replaced with an empty set.
type ParsedCall struct {
	ToolCall
	Args      map[string]any
	Malformed bool
}

// parseToolCall extracts the call carried by an assistant message.
func parseToolCall(msg Message, capabilities []Capability) (ParsedCall, bool) {
	if !msg.HasToolCall() {
		return ParsedCall{}, false
	}

	parsed := ParsedCall{
		ToolCall: *msg.ToolCall,
		Args:     map[string]any{},
	}

	raw := strings.TrimSpace(msg.ToolCall.Arguments)
	if raw == "" {
		raw = "{}"
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		slog.Warn("Tool call arguments are malformed",
			"kind", "tool_call_malformed",
			"tool", msg.ToolCall.Name,
			"error", err,
		)
		parsed.Malformed = true
		return parsed, true
	}

	if capability, ok := findCapability(capabilities, msg.ToolCall.Name); ok {
		if err := validateJSON(capability.Schema, args); err != nil {
			slog.Warn("Tool call arguments violate schema",
				"kind", "tool_call_malformed",
				"tool", msg.ToolCall.Name,
				"error", err,
			)
			parsed.Malformed = true
			return parsed, true
		}
	}

	if args != nil {
		parsed.Args = args
	}

	return parsed, true
}

// String returns a string argument. Non-string values are rendered as JSON.
func (p ParsedCall) String(key string) string {
	value, ok := p.Args[key]
	if !ok || value == nil {
		return ""
	}

	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}

	return string(data)
}

// sanitizeResponse drops a call to a capability that was not offered, so an
// unanswerable call never enters the log.
func sanitizeResponse(msg Message, capabilities []Capability) Message {
	if !msg.HasToolCall() {
		return msg
	}

	if _, ok := findCapability(capabilities, msg.ToolCall.Name); ok {
		return msg
	}

	slog.Warn("Model called a capability that was not offered",
		"kind", "tool_call_malformed",
		"tool", msg.ToolCall.Name,
	)
	msg.ToolCall = nil

	return msg
}

func validateJSON(schema map[string]any, document any) error {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(document))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return fmt.Errorf("schema validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
