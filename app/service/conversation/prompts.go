package conversation

import (
	"fmt"
	"strings"

	_ "embed"
)

var (
	//go:embed prompts/orchestrator.txt
	orchestratorPrompt string
	//go:embed prompts/change_request.txt
	changeRequestPrompt string
	//go:embed prompts/appointment.txt
	appointmentPrompt string
	//go:embed prompts/treatment.txt
	treatmentPrompt string
	//go:embed prompts/assistant.txt
	assistantPrompt string
	//go:embed prompts/knowledge_query.txt
	knowledgeQueryPrompt string
	//go:embed prompts/extraction.txt
	extractionPrompt string
	//go:embed prompts/summary.txt
	summaryPrompt string
	//go:embed prompts/summary_extend.txt
	summaryExtendPrompt string
)

// fillTemplate substitutes {key} placeholders in a single pass, so values
// containing braces are never expanded again.
func fillTemplate(template string, values map[string]any) string {
	pairs := make([]string, 0, len(values)*2)
	for key, value := range values {
		pairs = append(pairs, "{"+key+"}", fmt.Sprint(value))
	}

	return strings.TrimSpace(strings.NewReplacer(pairs...).Replace(template))
}

// cleanModelOutput strips code fences and a language tag around a model
// answer.
func cleanModelOutput(text, lang string) string {
	result := strings.TrimSpace(text)
	result = strings.Trim(result, "`")
	result = strings.TrimSpace(result)
	result = strings.TrimPrefix(result, lang)

	return strings.TrimSpace(result)
}
