package conversation

import (
	"context"
	"log/slog"
	"strings"
)

const summarySeparator = "\n\n"

type generateFunc func(ctx context.Context, call string, messages []Message, capabilities []Capability) (Message, error)

// Compactor folds old messages into the running summary once the log grows
// past a threshold.
type Compactor struct {
	threshold int
	keep      int
	generate  generateFunc
}

func NewCompactor(threshold, keep int, generate generateFunc) *Compactor {
	return &Compactor{
		threshold: threshold,
		keep:      keep,
		generate:  generate,
	}
}

func (c *Compactor) NeedsCompaction(s *State) bool {
	return len(s.Messages) > c.threshold
}

// Compact summarizes everything but the last keep messages and prunes them.
// The summary is only ever extended. A blank summary leaves the log intact.
func (c *Compactor) Compact(ctx context.Context, s *State) error {
	if !c.NeedsCompaction(s) {
		return nil
	}

	cut := len(s.Messages) - c.keep
	transcript := formatTranscript(s.Messages[:cut])

	var prompt string
	if s.Summary == "" {
		prompt = fillTemplate(summaryPrompt, map[string]any{
			"conversation": transcript,
		})
	} else {
		prompt = fillTemplate(summaryExtendPrompt, map[string]any{
			"summary":      s.Summary,
			"conversation": transcript,
		})
	}

	resp, err := c.generate(ctx, "summarize", []Message{Human(prompt)}, nil)
	if err != nil {
		return err
	}

	if strings.TrimSpace(resp.Text) == "" {
		slog.WarnContext(ctx, "Summarizer returned nothing, compaction postponed",
			"messages", len(s.Messages),
		)
		return nil
	}

	s.Summary = extendSummary(s.Summary, resp.Text)

	before := len(s.Messages)
	kept, unanswered := prune(s.Messages, c.keep)
	for _, call := range unanswered {
		slog.ErrorContext(ctx, "Pruned tool call had no response",
			"tool", call.Name,
			"tool_call_id", call.ID,
		)
	}
	s.Messages = kept

	slog.InfoContext(ctx, "Compacted conversation",
		"before", before,
		"after", len(s.Messages),
		"summary_length", len(s.Summary),
	)

	return nil
}

func extendSummary(prior, addition string) string {
	addition = strings.TrimSpace(addition)

	switch {
	case addition == "":
		return prior
	case prior == "":
		return addition
	default:
		return prior + summarySeparator + addition
	}
}

// prune keeps the last keep messages. A kept Tool message whose call falls in
// the pruned prefix is dropped with it. Pruned calls that were never answered
// are returned for reporting.
func prune(messages []Message, keep int) ([]Message, []ToolCall) {
	cut := len(messages) - keep
	if cut <= 0 {
		return messages, nil
	}

	answered := make(map[int]bool)
	for i, m := range messages {
		if m.Role != RoleTool {
			continue
		}
		if j := nearestCallIndex(messages, i); j >= 0 {
			answered[j] = true
		}
	}

	var unanswered []ToolCall
	for i := 0; i < cut; i++ {
		if messages[i].HasToolCall() && !answered[i] {
			unanswered = append(unanswered, *messages[i].ToolCall)
		}
	}

	kept := make([]Message, 0, keep)
	for i := cut; i < len(messages); i++ {
		m := messages[i]
		if m.Role == RoleTool && nearestCallIndex(messages, i) < cut {
			continue
		}
		kept = append(kept, m)
	}

	return kept, unanswered
}

func nearestCallIndex(messages []Message, end int) int {
	for i := end - 1; i >= 0; i-- {
		if messages[i].HasToolCall() {
			return i
		}
	}

	return -1
}
