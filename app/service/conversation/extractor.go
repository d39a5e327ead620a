package conversation

import (
	"context"
	"encoding/json"
	"healthmate/app/service/knowledge"
	"log/slog"
	"strings"
)

var extractionSchema = map[string]any{
	"type":     "object",
	"required": []string{"entities"},
	"properties": map[string]any{
		"entities": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []string{"name", "type"},
				"properties": map[string]any{
					"name": map[string]any{"type": "string", "minLength": 1},
					"type": map[string]any{"type": "string", "minLength": 1},
				},
			},
		},
		"relationships": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []string{"from", "to", "relationship"},
				"properties": map[string]any{
					"from":         map[string]any{"type": "string"},
					"to":           map[string]any{"type": "string"},
					"relationship": map[string]any{"type": "string"},
				},
			},
		},
	},
}

type upsertFunc func(ctx context.Context, extraction knowledge.Extraction) error

// Extractor turns recent patient utterances into knowledge graph facts every
// interval turns.
type Extractor struct {
	interval int
	window   int
	generate generateFunc
	upsert   upsertFunc
}

func NewExtractor(interval, window int, generate generateFunc, upsert upsertFunc) *Extractor {
	return &Extractor{
		interval: interval,
		window:   window,
		generate: generate,
		upsert:   upsert,
	}
}

// Tick counts a user turn and runs an extraction when the counter reaches the
// interval.
func (x *Extractor) Tick(ctx context.Context, s *State) error {
	s.TurnCounter++
	if s.TurnCounter < x.interval {
		return nil
	}
	s.TurnCounter = 0

	utterances := s.recentHuman(x.window)
	encoded, err := json.Marshal(utterances)
	if err != nil {
		return err
	}

	prompt := fillTemplate(extractionPrompt, map[string]any{
		"messages": string(encoded),
	})

	resp, err := x.generate(ctx, "extraction", []Message{System(prompt)}, nil)
	if err != nil {
		return err
	}

	extraction := parseExtraction(resp.Text)
	if extraction.Empty() {
		slog.DebugContext(ctx, "Nothing extracted", "utterances", len(utterances))
		return nil
	}

	return x.upsert(ctx, extraction)
}

// parseExtraction decodes the model output. Anything that does not parse or
// does not match the expected shape is an empty extraction.
func parseExtraction(text string) knowledge.Extraction {
	cleaned := cleanModelOutput(text, "json")
	if !strings.Contains(cleaned, "entities") {
		return knowledge.Extraction{}
	}

	var document any
	if err := json.Unmarshal([]byte(cleaned), &document); err != nil {
		slog.Warn("Extraction output is not JSON", "error", err)
		return knowledge.Extraction{}
	}

	if err := validateJSON(extractionSchema, document); err != nil {
		slog.Warn("Extraction output has unexpected shape", "error", err)
		return knowledge.Extraction{}
	}

	var extraction knowledge.Extraction
	if err := json.Unmarshal([]byte(cleaned), &extraction); err != nil {
		slog.Warn("Failed to decode extraction", "error", err)
		return knowledge.Extraction{}
	}

	return extraction
}
