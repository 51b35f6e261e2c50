package classifier

import (
	"regexp"
	"strings"
)

// RewriteLevel selects how aggressively Rewrite transforms a query.
type RewriteLevel string

const (
	// Conservative applies only syntactically safe rewrites.
	Conservative RewriteLevel = "conservative"
	// Moderate additionally expands SELECT * when a column list hint is
	// supplied.
	Moderate RewriteLevel = "moderate"
	// Aggressive additionally appends a LIMIT to unbounded reads.
	Aggressive RewriteLevel = "aggressive"
)

// Rewrite is the result of applying optimization rules to a query.
type Rewrite struct {
	Query   string
	Applied []string
}

var (
	limitRe        = regexp.MustCompile(`(?i)\bLIMIT\s+\d+`)
	leadingWildRe  = regexp.MustCompile(`(?i)\bLIKE\s+'%`)
	orderByIndexRe = regexp.MustCompile(`(?i)\bORDER\s+BY\s+\d+`)
)

// Optimize applies the rewrite rules appropriate for level to query and
// returns the (possibly unchanged) result with the names of rules that
// fired, so the caller can log what happened without re-deriving it.
func Optimize(query string, level RewriteLevel, columnHint []string) Rewrite {
	result := Rewrite{Query: query}

	qt := Classify(query)
	if qt != Read {
		return result
	}

	if level == Moderate || level == Aggressive {
		if selectStarRe.MatchString(result.Query) && len(columnHint) > 0 {
			result.Query = expandSelectStar(result.Query, columnHint)
			result.Applied = append(result.Applied, "expand_select_star")
		}
	}

	if level == Aggressive {
		if !limitRe.MatchString(result.Query) && !strings.Contains(strings.ToUpper(result.Query), "COUNT(") {
			result.Query = strings.TrimRight(strings.TrimSpace(result.Query), ";") + " LIMIT 1000"
			result.Applied = append(result.Applied, "append_default_limit")
		}
	}

	return result
}

// expandSelectStar textually replaces the leading "SELECT *" with an
// explicit column list. This is a best-effort rewrite operating on the
// literal prefix only; it does not rewrite "*" occurring elsewhere in
// the statement (subqueries, COUNT(*), etc.).
func expandSelectStar(query string, columns []string) string {
	idx := selectStarRe.FindStringIndex(query)
	if idx == nil {
		return query
	}

	replacement := "SELECT " + strings.Join(columns, ", ") + " FROM"

	return query[:idx[0]] + replacement + query[idx[1]:]
}

// Advisories returns non-mutating warnings about patterns known to hurt
// performance, for surfacing through logs/metrics rather than rewriting
// automatically (a leading-wildcard LIKE defeats an index; ORDER BY N is
// deprecated and position-fragile).
func Advisories(query string) []string {
	var warnings []string

	if leadingWildRe.MatchString(query) {
		warnings = append(warnings, "leading_wildcard_like")
	}

	if orderByIndexRe.MatchString(query) {
		warnings = append(warnings, "order_by_ordinal")
	}

	return warnings
}
