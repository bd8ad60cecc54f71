package judge

import (
	"context"
	"strings"
)

// MockJudge is a deterministic judge for tests. It flags drift when the
// summary and source share no words at all.
type MockJudge struct {
	Err error // returned from every call when set
}

// Judge reports drift if no word of the summary appears in the source.
func (m *MockJudge) Judge(ctx context.Context, summary, source string) (Judgment, error) {
	if m.Err != nil {
		return Judgment{}, m.Err
	}
	srcWords := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(source)) {
		srcWords[w] = struct{}{}
	}
	for _, w := range strings.Fields(strings.ToLower(summary)) {
		if _, ok := srcWords[w]; ok {
			return Judgment{IsDrift: false, Confidence: 0.9, Reasoning: "summary overlaps source"}, nil
		}
	}
	return Judgment{IsDrift: true, Confidence: 0.9, Reasoning: "summary shares no terms with source"}, nil
}

// Close is a no-op.
func (m *MockJudge) Close() error {
	return nil
}
