// Package optimize rewrites validated SQL under a fixed rule set and scores
// structural complexity. Every rule is a pure text transform; applying the
// rule list to already-optimized output yields no further change, so the
// pipeline is free to re-run optimization on its own output.
package optimize

import (
	"regexp"
	"strings"
)

// DefaultLimit is the row cap appended when a query carries none of its own.
const DefaultLimit = "LIMIT 1000"

// Result describes one optimization pass.
type Result struct {
	Original  string
	Optimized string
	// Applied is true iff at least one rule changed the query text.
	Applied bool
	// Descriptions lists what each rule did, in application order. Advisory
	// rules that flag but do not rewrite still contribute a description.
	Descriptions []string
}

// rule applies one rewrite to the query text. It reports the (possibly
// unchanged) query, whether the text was modified, and a human-readable
// description when it has something to say.
type rule func(query string) (out string, modified bool, description string)

var rules = []rule{
	limitSelectStar,
	dropRedundantDistinct,
	collapseRedundantConditions,
	flagCartesianJoin,
	addDefaultLimit,
}

var (
	selectStarRe   = regexp.MustCompile(`(?i)SELECT\s+\*\s+FROM`)
	limitRe        = regexp.MustCompile(`(?i)LIMIT\s+\d+`)
	distinctStarRe = regexp.MustCompile(`(?i)SELECT\s+DISTINCT\s+\*`)
	countRe        = regexp.MustCompile(`(?i)COUNT\s*\(`)
	cartesianRe    = regexp.MustCompile(`(?i)FROM\s+\w+\s*,\s*\w+`)
	onOrWhereRe    = regexp.MustCompile(`(?i)\b(?:ON|WHERE)\b`)

	dupEqualityRe = regexp.MustCompile(`(?i)WHERE\s+(\w+)\s*=\s*(\w+)\s+AND\s+(\w+)\s*=\s*(\w+)`)
	dupNotNullRe  = regexp.MustCompile(`(?i)WHERE\s+(\w+)\s*IS\s+NOT\s+NULL\s+AND\s+(\w+)\s*IS\s+NOT\s+NULL`)
)

// Optimize runs the rule list over the query. It is deterministic and
// side-effect free; an internal fault returns the original query unchanged
// with Applied=false rather than escaping to the caller.
func Optimize(sqlQuery string) (result Result) {
	original := strings.TrimSpace(sqlQuery)

	defer func() {
		if r := recover(); r != nil {
			result = Result{Original: original, Optimized: original}
		}
	}()

	optimized := original
	var rewritten bool
	var applied []string

	for _, apply := range rules {
		out, modified, description := apply(optimized)
		if modified {
			optimized = out
			rewritten = true
		}
		if description != "" {
			applied = append(applied, description)
		}
	}

	return Result{
		Original:     original,
		Optimized:    optimized,
		Applied:      rewritten,
		Descriptions: applied,
	}
}

// limitSelectStar caps SELECT * queries that carry no LIMIT of their own.
func limitSelectStar(query string) (string, bool, string) {
	if !selectStarRe.MatchString(query) || limitRe.MatchString(query) {
		return query, false, ""
	}
	return appendLimit(query), true, "added LIMIT to SELECT * query for performance"
}

// dropRedundantDistinct rewrites SELECT DISTINCT * to SELECT *: duplicate
// elimination over every column buys nothing once the row cap applies.
func dropRedundantDistinct(query string) (string, bool, string) {
	if !distinctStarRe.MatchString(query) {
		return query, false, ""
	}
	out := distinctStarRe.ReplaceAllString(query, "SELECT *")
	return out, true, "removed unnecessary DISTINCT with SELECT *"
}

// collapseRedundantConditions removes duplicated WHERE conditions
// (x = y AND x = y, or IS NOT NULL twice on the same column). Each
// collapse can expose another duplicate, so it iterates to a fixed point.
func collapseRedundantConditions(query string) (string, bool, string) {
	out := query
	for {
		next := collapseOnce(out)
		if next == out {
			break
		}
		out = next
	}
	if out == query {
		return query, false, ""
	}
	return out, true, "removed redundant WHERE conditions"
}

func collapseOnce(query string) string {
	if m := dupEqualityRe.FindStringSubmatch(query); m != nil &&
		strings.EqualFold(m[1], m[3]) && strings.EqualFold(m[2], m[4]) {
		return dupEqualityRe.ReplaceAllString(query, "WHERE $1 = $2")
	}
	if m := dupNotNullRe.FindStringSubmatch(query); m != nil && strings.EqualFold(m[1], m[2]) {
		return dupNotNullRe.ReplaceAllString(query, "WHERE $1 IS NOT NULL")
	}
	return query
}

// flagCartesianJoin reports a comma-style join with no ON or WHERE clause
// restricting it. Rewriting would need semantic knowledge this rule does
// not have, so the query is left unmodified.
func flagCartesianJoin(query string) (string, bool, string) {
	if cartesianRe.MatchString(query) && !onOrWhereRe.MatchString(query) {
		return query, false, "cartesian join detected - manual optimization needed"
	}
	return query, false, ""
}

// addDefaultLimit caps any remaining uncapped query, except pure aggregate
// counts where a LIMIT would be pointless.
func addDefaultLimit(query string) (string, bool, string) {
	if limitRe.MatchString(query) || countRe.MatchString(query) {
		return query, false, ""
	}
	return appendLimit(query), true, "added default LIMIT for performance"
}

func appendLimit(query string) string {
	return strings.TrimRight(strings.TrimSpace(query), ";") + " " + DefaultLimit
}
