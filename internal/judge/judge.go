// Package judge asks an LLM whether a summary sentence drifts from its
// source text, as an alternative to vector similarity.
package judge

import (
	"context"
	"errors"
	"fmt"
)

// ErrExternalCall marks a failure of the external judge provider.
var ErrExternalCall = errors.New("external judge call failed")

// Judgment is the structured verdict for one summary/source pair.
type Judgment struct {
	IsDrift    bool    `json:"is_drift"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Judge evaluates whether a summary accurately represents its source.
type Judge interface {
	Judge(ctx context.Context, summary, source string) (Judgment, error)
	Close() error
}

const systemPrompt = "You are an expert legal document reviewer. Analyze the summary sentence against the source text and provide a structured judgment about semantic drift. Respond with a JSON object containing \"is_drift\" (boolean), \"confidence\" (number between 0 and 1), and \"reasoning\" (string)."

func userPrompt(summary, source string) string {
	return fmt.Sprintf(`You are an expert legal document reviewer. Your task is to determine if a summary sentence accurately represents the source text without introducing factual errors, omissions, or misleading interpretations.

SOURCE TEXT:
%s

SUMMARY SENTENCE:
%s

Evaluate whether the summary sentence:
1. Accurately represents the key facts and requirements from the source
2. Does not add information not present in the source
3. Does not omit critical information that would mislead readers
4. Maintains the same legal meaning and intent

Examples of drift:
- Adding requirements not in source ("must" vs "may")
- Omitting critical exceptions or conditions
- Changing numerical values or timeframes
- Misrepresenting who has authority or responsibility
- Adding or removing penalties/consequences

Examples of acceptable paraphrasing:
- Restating in clearer language
- Reorganizing information for better flow
- Using synonyms for legal terms
- Condensing while preserving all key points`, source, summary)
}
