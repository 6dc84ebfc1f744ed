package synthesis

import (
	"fmt"
)

// Prompt is one generation request. Rule-based generators read Query;
// language models read Text.
type Prompt struct {
	Query   string
	Context string
	Text    string
}

const promptTemplate = `You are a knowledgeable medical assistant. Use the following medical knowledge to provide accurate, helpful responses.

MEDICAL CONTEXT:
%s

USER QUERY: %s

Based on the medical context above and your knowledge, provide a structured response with:
1. Probable cause or explanation
2. Severity assessment (mild/moderate/severe)
3. Recommended actions and advice

Always remind users to consult healthcare professionals for proper diagnosis.

Respond ONLY with a JSON object with the string fields "probable_cause", "severity" and "advice".`

// BuildPrompt renders the augmented prompt for query and retrieved context.
func BuildPrompt(query, retrieved string) Prompt {
	return Prompt{
		Query:   query,
		Context: retrieved,
		Text:    fmt.Sprintf(promptTemplate, retrieved, query),
	}
}
