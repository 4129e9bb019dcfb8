package rag

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/askdb/internal/pipeline"
)

const promptTemplate = `You are an expert SQL query generator. Given a natural language question, generate a precise SQL query along with a detailed explanation.

Database Schema Context:
%s

Example Queries:
%s

Question: %s

Requirements:
1. Generate a syntactically correct SQL query
2. Use proper table and column names from the schema
3. Include appropriate WHERE clauses, JOINs, and aggregations as needed
4. Optimize for performance when possible
5. Provide a clear explanation of the query logic

Response format:
SQL_QUERY: [Your SQL query here]
EXPLANATION: [Detailed explanation of the query logic]
CONFIDENCE: [Confidence score from 0.0 to 1.0]
COMPLEXITY: [simple/medium/complex]
`

// GenerateSQL prompts the provider with the question and retrieved context
// and parses its sectioned response. Provider failures surface as errors;
// a malformed response degrades to the placeholder query instead.
func (s *Service) GenerateSQL(ctx context.Context, question string, schema, examples []string) (pipeline.Generation, error) {
	prompt := fmt.Sprintf(promptTemplate, strings.Join(schema, "\n"), strings.Join(examples, "\n"), question)

	response, err := s.provider.Complete(ctx, prompt)
	if err != nil {
		return pipeline.Generation{}, fmt.Errorf("provider %s: %w", s.provider.Name(), err)
	}

	gen := parseResponse(response)
	s.logger.Debug("generated SQL",
		"confidence", gen.Confidence,
		"complexity", gen.Complexity,
		"sql_length", len(gen.SQL))
	return gen, nil
}

// parseResponse extracts the SQL_QUERY, EXPLANATION, CONFIDENCE, and
// COMPLEXITY sections. Section bodies may span multiple lines; unparseable
// confidence falls back to 0.5 and unknown complexity to "medium".
func parseResponse(response string) pipeline.Generation {
	gen := pipeline.Generation{
		Confidence: 0.5,
		Complexity: "medium",
	}

	var section *string
	var content []string

	flush := func() {
		if section != nil {
			*section = strings.TrimSpace(strings.Join(content, "\n"))
		}
		section = nil
		content = nil
	}

	for _, line := range strings.Split(strings.TrimSpace(response), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "SQL_QUERY:"):
			flush()
			section = &gen.SQL
			content = []string{strings.TrimSpace(strings.TrimPrefix(line, "SQL_QUERY:"))}
		case strings.HasPrefix(line, "EXPLANATION:"):
			flush()
			section = &gen.Explanation
			content = []string{strings.TrimSpace(strings.TrimPrefix(line, "EXPLANATION:"))}
		case strings.HasPrefix(line, "CONFIDENCE:"):
			flush()
			raw := strings.TrimSpace(strings.TrimPrefix(line, "CONFIDENCE:"))
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				gen.Confidence = clamp01(v)
			} else {
				gen.Confidence = 0.5
			}
		case strings.HasPrefix(line, "COMPLEXITY:"):
			flush()
			complexity := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, "COMPLEXITY:")))
			switch complexity {
			case "simple", "medium", "complex":
				gen.Complexity = complexity
			}
		default:
			if section != nil && line != "" {
				content = append(content, line)
			}
		}
	}
	flush()

	if gen.SQL == "" {
		gen.SQL = pipeline.PlaceholderQuery
		gen.Explanation = "Failed to parse SQL query from response"
	}
	return gen
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
