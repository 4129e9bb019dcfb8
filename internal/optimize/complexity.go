package optimize

import (
	"fmt"
	"regexp"
)

// Complexity levels, coarse-grained from the numeric score.
const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"
)

// Complexity is a derived, stateless summary of a SQL string's structure.
type Complexity struct {
	Score   int
	Level   string
	Factors []string
}

var (
	cplxJoinRe      = regexp.MustCompile(`(?i)\bJOIN\b`)
	cplxSubqueryRe  = regexp.MustCompile(`(?is)SELECT.*FROM.*SELECT`)
	cplxAggregateRe = regexp.MustCompile(`(?i)\b(COUNT|SUM|AVG|MIN|MAX)\s*\(`)
	cplxGroupByRe   = regexp.MustCompile(`(?i)\bGROUP\s+BY\b`)
	cplxHavingRe    = regexp.MustCompile(`(?i)\bHAVING\b`)
	cplxUnionRe     = regexp.MustCompile(`(?i)\bUNION\b`)
)

// AnalyzeComplexity scores a SQL string's structural complexity. Joins and
// grouping weigh 2, detected subquery patterns 3, aggregate calls 1 each.
func AnalyzeComplexity(sqlQuery string) Complexity {
	score := 0
	var factors []string

	if joins := len(cplxJoinRe.FindAllString(sqlQuery, -1)); joins > 0 {
		score += joins * 2
		factors = append(factors, fmt.Sprintf("%d JOINs", joins))
	}

	if subqueries := len(cplxSubqueryRe.FindAllString(sqlQuery, -1)); subqueries > 0 {
		score += subqueries * 3
		factors = append(factors, fmt.Sprintf("%d subqueries", subqueries))
	}

	if aggregates := len(cplxAggregateRe.FindAllString(sqlQuery, -1)); aggregates > 0 {
		score += aggregates
		factors = append(factors, fmt.Sprintf("%d aggregate functions", aggregates))
	}

	if cplxGroupByRe.MatchString(sqlQuery) {
		score += 2
		factors = append(factors, "GROUP BY clause")
	}

	if cplxHavingRe.MatchString(sqlQuery) {
		score += 2
		factors = append(factors, "HAVING clause")
	}

	if unions := len(cplxUnionRe.FindAllString(sqlQuery, -1)); unions > 0 {
		score += unions * 2
		factors = append(factors, fmt.Sprintf("%d UNION operations", unions))
	}

	return Complexity{
		Score:   score,
		Level:   levelFor(score),
		Factors: factors,
	}
}

func levelFor(score int) string {
	switch {
	case score <= 3:
		return LevelLow
	case score <= 8:
		return LevelMedium
	default:
		return LevelHigh
	}
}
