package conversation

import (
	"context"
	"errors"
	"healthmate/app/service/knowledge"
	"log/slog"
	"strings"
)

const noKnowledge = "No stored information about the user matches this question."

func (e *Engine) queryKnowledge(ctx context.Context, t *turn) error {
	vocabulary, err := e.vocabulary(ctx)
	if err != nil {
		return err
	}

	prompt := fillTemplate(knowledgeQueryPrompt, map[string]any{
		"entities":      strings.Join(vocabulary.EntityTypes, ", "),
		"relationships": strings.Join(vocabulary.RelationshipTypes, ", "),
		"conversation":  formatTranscript(t.state.Messages),
	})

	resp, err := e.generate(ctx, "knowledge_query", []Message{System(prompt)}, nil)
	if err != nil {
		return err
	}

	query := cleanModelOutput(resp.Text, "cypher")
	slog.DebugContext(ctx, "Generated graph query", "query", query)

	rows, err := e.query(ctx, query)
	if err != nil {
		return err
	}

	content := strings.Join(knowledge.RenderRows(rows), "\n")
	if content == "" {
		content = noKnowledge
	}

	t.state.CurrentFlow = FlowKnowledgeQuery

	if t.state.pendingCall() != nil {
		return closePendingCall(t.state, content)
	}

	return t.state.Append(System("Known facts about the user:\n" + content))
}

func (e *Engine) vocabulary(ctx context.Context) (knowledge.Vocabulary, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.KnowledgeTimeout)
	defer cancel()

	vocabulary, err := e.knowledge.Vocabulary(ctx, knowledge.SubjectName)
	if err != nil {
		return knowledge.Vocabulary{}, external("knowledge_vocabulary", err)
	}

	return vocabulary, nil
}

// query runs a generated query. A query the store rejects yields no rows.
func (e *Engine) query(ctx context.Context, query string) ([]knowledge.Row, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.KnowledgeTimeout)
	defer cancel()

	rows, err := e.knowledge.Query(ctx, query)
	if errors.Is(err, knowledge.ErrInvalidQuery) {
		slog.WarnContext(ctx, "Graph query rejected", "query", query, "error", err)
		return nil, nil
	}
	if err != nil {
		return nil, external("knowledge_query", err)
	}

	return rows, nil
}
