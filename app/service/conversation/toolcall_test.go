package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToolCall(t *testing.T) {
	parsed, ok := parseToolCall(callMessage("a", ToolChangeState, `{"state": " 2026-10-23 10:00:00 "}`), commitCapabilities)
	require.True(t, ok)
	assert.False(t, parsed.Malformed)
	assert.Equal(t, "2026-10-23 10:00:00", parsed.String("state"))
	assert.Equal(t, "a", parsed.ID)

	_, ok = parseToolCall(Assistant("no call", nil), commitCapabilities)
	assert.False(t, ok)
}

func TestParseToolCallMalformed(t *testing.T) {
	tests := map[string]string{
		"broken json":      `{"state": `,
		"missing required": `{}`,
		"wrong type":       `{"state": 42}`,
		"not an object":    `"2026-10-23"`,
	}

	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			parsed, ok := parseToolCall(callMessage("a", ToolChangeState, args), commitCapabilities)
			require.True(t, ok)
			assert.True(t, parsed.Malformed)
			assert.Empty(t, parsed.Args)
			assert.Empty(t, parsed.String("state"))
		})
	}
}

func TestParseToolCallWithoutArguments(t *testing.T) {
	parsed, ok := parseToolCall(callMessage("a", ToolAssistant, ""), classificationCapabilities)
	require.True(t, ok)
	assert.False(t, parsed.Malformed)
	assert.Empty(t, parsed.Args)
}

func TestParsedCallStringRendersStructuredValues(t *testing.T) {
	parsed := ParsedCall{Args: map[string]any{"state": map[string]any{"dose": "10mg"}}}
	assert.Equal(t, `{"dose":"10mg"}`, parsed.String("state"))
}

func TestSanitizeResponse(t *testing.T) {
	msg := sanitizeResponse(callMessage("a", ToolEnd, ""), commitCapabilities)
	assert.Nil(t, msg.ToolCall)

	msg = sanitizeResponse(callMessage("a", ToolChangeState, "{}"), commitCapabilities)
	assert.NotNil(t, msg.ToolCall)
}

func TestCapabilitySchema(t *testing.T) {
	commit := commitCapabilities[0]
	assert.Equal(t, ToolChangeState, commit.Name)
	assert.Equal(t, []string{"state"}, commit.Schema["required"])
	assert.Contains(t, commit.Schema["properties"], "state")

	end := classificationCapabilities[3]
	assert.Equal(t, ToolEnd, end.Name)
	assert.Equal(t, []string{}, end.Schema["required"])
}
