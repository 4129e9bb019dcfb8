package llm

import (
	"context"
	"fmt"
	"strings"
)

// Mock simulates a model for tests and offline use. It returns
// deterministic responses in the sectioned format the generator expects,
// keyed on simple prompt patterns.
type Mock struct {
	// Response overrides pattern matching when set.
	Response string

	// Err is returned from every call when set.
	Err error

	// Calls records the prompts received.
	Calls []string
}

// Name returns the provider identifier.
func (m *Mock) Name() string {
	return "mock"
}

// Complete returns a canned response for the prompt.
func (m *Mock) Complete(_ context.Context, prompt string) (string, error) {
	m.Calls = append(m.Calls, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	if m.Response != "" {
		return m.Response, nil
	}
	return m.generate(prompt), nil
}

func (m *Mock) generate(prompt string) string {
	lower := strings.ToLower(prompt)
	table := "employees"
	for _, candidate := range []string{"departments", "projects", "sales", "employees"} {
		if strings.Contains(lower, strings.TrimSuffix(candidate, "s")) {
			table = candidate
			break
		}
	}

	if strings.Contains(lower, "how many") || strings.Contains(lower, "count") {
		return fmt.Sprintf(`SQL_QUERY: SELECT COUNT(*) AS total FROM %s
EXPLANATION: Counts the rows in the %s table.
CONFIDENCE: 0.9
COMPLEXITY: simple`, table, table)
	}

	return fmt.Sprintf(`SQL_QUERY: SELECT * FROM %s
EXPLANATION: Returns every row from the %s table.
CONFIDENCE: 0.8
COMPLEXITY: simple`, table, table)
}
