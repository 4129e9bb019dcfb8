// Package validate classifies candidate SQL against the execution policy.
// It rejects anything that is not a single well-formed SELECT statement
// before a query is allowed anywhere near a database. The checks are a
// token scan, not a full SQL grammar parse.
package validate

import (
	"fmt"
	"regexp"
	"strings"
)

// Result is the outcome of validating one SQL string.
// Errors block execution; Warnings are advisory only.
type Result struct {
	IsValid  bool
	Errors   []string
	Warnings []string
}

// forbiddenKeywords are matched as whole words against the uppercased query.
// Any hit anywhere in the text is an error, including inside string literals.
var forbiddenKeywords = []string{
	"DROP", "DELETE", "TRUNCATE", "ALTER", "CREATE", "INSERT", "UPDATE",
	"GRANT", "REVOKE", "EXEC", "EXECUTE",
}

// forbiddenPrefixes match identifiers like sp_helpdb or xp_cmdshell.
var forbiddenPrefixes = []string{"SP_", "XP_"}

var (
	keywordPatterns = buildKeywordPatterns()
	prefixPatterns  = buildPrefixPatterns()

	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
	multiStmtRe    = regexp.MustCompile(`;\s*\w`)
	tableRefRe     = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([A-Za-z_][A-Za-z0-9_.]*)`)
	joinRe         = regexp.MustCompile(`(?i)\bJOIN\b`)
	unionRe        = regexp.MustCompile(`(?i)\bUNION\b`)
	havingRe       = regexp.MustCompile(`(?i)\bHAVING\b`)
	groupByRe      = regexp.MustCompile(`(?i)\bGROUP\s+BY\b`)
)

func buildKeywordPatterns() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(forbiddenKeywords))
	for _, kw := range forbiddenKeywords {
		patterns[kw] = regexp.MustCompile(`\b` + kw + `\b`)
	}
	return patterns
}

func buildPrefixPatterns() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(forbiddenPrefixes))
	for _, p := range forbiddenPrefixes {
		patterns[p] = regexp.MustCompile(`\b` + p + `\w*`)
	}
	return patterns
}

// Validate checks a SQL string against the execution policy. It is a pure
// function: the SQL is never executed and no state is kept between calls.
// knownTables holds the lowercased names of every table the store exposes.
//
// Internal faults never escape; they surface as a single validation error
// with IsValid=false.
func Validate(sqlQuery string, knownTables map[string]struct{}) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{
				IsValid: false,
				Errors:  []string{fmt.Sprintf("validation error: %v", r)},
			}
		}
	}()

	if strings.TrimSpace(sqlQuery) == "" {
		return Result{IsValid: false, Errors: []string{"empty query"}}
	}

	sqlQuery = strings.TrimSpace(sqlQuery)
	upper := strings.ToUpper(sqlQuery)

	var errs []string

	if !strings.HasPrefix(upper, "SELECT") {
		errs = append(errs, "only SELECT queries are allowed")
	}

	errs = append(errs, checkForbiddenKeywords(upper)...)
	errs = append(errs, checkSyntax(sqlQuery)...)
	errs = append(errs, checkTableReferences(sqlQuery, knownTables)...)

	return Result{
		IsValid:  len(errs) == 0,
		Errors:   errs,
		Warnings: checkComplexity(sqlQuery, upper),
	}
}

// checkForbiddenKeywords scans the uppercased query for statements the
// policy never allows, regardless of position in the text.
func checkForbiddenKeywords(upper string) []string {
	var errs []string
	for _, kw := range forbiddenKeywords {
		if keywordPatterns[kw].MatchString(upper) {
			errs = append(errs, fmt.Sprintf("forbidden keyword: %s", kw))
		}
	}
	for _, p := range forbiddenPrefixes {
		if prefixPatterns[p].MatchString(upper) {
			errs = append(errs, fmt.Sprintf("forbidden keyword: %s", strings.ToLower(p)))
		}
	}
	return errs
}

// checkSyntax covers the classic injection vectors: trailing comments,
// statement stacking, and truncated input signalled by unbalanced
// parentheses or quotes.
func checkSyntax(sqlQuery string) []string {
	var errs []string

	if strings.Contains(sqlQuery, "--") || strings.Contains(sqlQuery, "#") ||
		blockCommentRe.MatchString(sqlQuery) {
		errs = append(errs, "comments are not allowed")
	}

	if multiStmtRe.MatchString(sqlQuery) {
		errs = append(errs, "multiple statements are not allowed")
	}

	if strings.Count(sqlQuery, "(") != strings.Count(sqlQuery, ")") {
		errs = append(errs, "unmatched parentheses")
	}
	if strings.Count(sqlQuery, "'")%2 != 0 {
		errs = append(errs, "unmatched single quotes")
	}
	if strings.Count(sqlQuery, `"`)%2 != 0 {
		errs = append(errs, "unmatched double quotes")
	}

	return errs
}

// checkTableReferences extracts every identifier that follows a FROM or
// JOIN keyword and verifies it against the known table set. Qualified names
// are reduced to their leading segment before the lookup.
func checkTableReferences(sqlQuery string, knownTables map[string]struct{}) []string {
	matches := tableRefRe.FindAllStringSubmatch(sqlQuery, -1)
	if len(matches) == 0 {
		return nil
	}

	var unknown []string
	seen := make(map[string]struct{})
	for _, m := range matches {
		name := strings.SplitN(m[1], ".", 2)[0]
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if _, ok := knownTables[key]; !ok {
			unknown = append(unknown, name)
		}
	}

	if len(unknown) > 0 {
		return []string{fmt.Sprintf("referenced tables not found: %s", strings.Join(unknown, ", "))}
	}
	return nil
}

// checkComplexity produces advisory warnings for query shapes that tend to
// hurt performance. Warnings never affect validity.
func checkComplexity(sqlQuery, upper string) []string {
	var warnings []string

	if joins := len(joinRe.FindAllString(sqlQuery, -1)); joins > 5 {
		warnings = append(warnings, fmt.Sprintf("query has %d JOINs, which may impact performance", joins))
	}
	if strings.Count(sqlQuery, "(") > 3 {
		warnings = append(warnings, "query has multiple nested subqueries, which may impact performance")
	}
	if unions := len(unionRe.FindAllString(sqlQuery, -1)); unions > 2 {
		warnings = append(warnings, fmt.Sprintf("query has %d UNIONs, which may impact performance", unions))
	}
	if havingRe.MatchString(upper) && !groupByRe.MatchString(upper) {
		warnings = append(warnings, "HAVING clause without GROUP BY may not work as expected")
	}

	return warnings
}
