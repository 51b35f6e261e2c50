// Package advisor recommends indexes from observed query text, entirely
// offline and via regex/text heuristics — like internal/classifier, it
// does not parse SQL into an AST.
package advisor

import (
	"regexp"
	"sort"
	"strings"
)

// Kind classifies the sort of index recommendation.
type Kind string

const (
	// Missing flags a WHERE/JOIN column with no apparent supporting index.
	Missing Kind = "missing"
	// Composite flags a table with two or more observed filter columns
	// (first three by name) as a candidate for one multi-column index;
	// whether the columns occur in the same query is not checked.
	Composite Kind = "composite"
	// Covering flags a query with a narrow SELECT list (at most five
	// columns, no '*') that a covering index could serve without a table
	// lookup. Existing indexes are not consulted for this kind.
	Covering Kind = "covering"
	// Redundant flags an index that is a strict prefix of another.
	Redundant Kind = "redundant"
	// Unused flags an index no observed query appears to use.
	Unused Kind = "unused"
)

// Recommendation is a single index suggestion.
type Recommendation struct {
	Kind    Kind
	Table   string
	Columns []string
	Score   float64 // 0-1, higher is more confident/impactful
	Reason  string
}

// ExistingIndex describes an index already present on a table, as
// reported by the caller (e.g. from information_schema).
type ExistingIndex struct {
	Table   string
	Columns []string
}

var (
	whereColRe = regexp.MustCompile(`(?i)\bWHERE\b(.+?)(?:ORDER\s+BY|GROUP\s+BY|LIMIT|$)`)
	joinColRe  = regexp.MustCompile(`(?i)\bJOIN\s+(\w+)\b.*?\bON\b(.+?)(?:WHERE|JOIN|ORDER\s+BY|GROUP\s+BY|LIMIT|$)`)
	colEqRe    = regexp.MustCompile(`(?i)(\w+)\.?(\w*)\s*(?:=|>|<|>=|<=|LIKE|IN)\s*`)
	fromRe     = regexp.MustCompile(`(?i)\bFROM\s+(\w+)`)
	selectColsRe = regexp.MustCompile(`(?i)^\s*SELECT\s+(.+?)\s+FROM\b`)
)

// Advisor accumulates observed query text and derives recommendations.
type Advisor struct {
	queries  []string
	existing []ExistingIndex
}

// New constructs an empty Advisor.
func New() *Advisor { return &Advisor{} }

// Observe records a query's text for later analysis. Called by the
// composition root for every executed statement, or fed a captured
// query log in bulk.
func (a *Advisor) Observe(query string) { a.queries = append(a.queries, query) }

// SetExistingIndexes supplies the current index catalog so Analyze can
// detect redundant/unused indexes and skip missing-index recommendations
// for columns that already lead an index.
func (a *Advisor) SetExistingIndexes(idx []ExistingIndex) { a.existing = idx }

// Analyze derives recommendations from every observed query.
func (a *Advisor) Analyze() []Recommendation {
	filterCols := extractFilterColumns(a.queries)
	recs := missingIndexRecs(filterCols, a.existing)
	recs = append(recs, compositeIndexRecs(filterCols)...)
	recs = append(recs, coveringIndexRecs(a.queries, a.existing)...)
	recs = append(recs, redundantIndexRecs(a.existing)...)
	recs = append(recs, unusedIndexRecs(a.existing, filterCols)...)

	sort.Slice(recs, func(i, j int) bool { return recs[i].Score > recs[j].Score })

	return recs
}

// tableColumns maps table -> observed filter column -> occurrence count.
type tableColumns map[string]map[string]int

func extractFilterColumns(queries []string) tableColumns {
	result := make(tableColumns)

	for _, q := range queries {
		tables := fromRe.FindAllStringSubmatch(q, -1)
		if len(tables) == 0 {
			continue
		}

		table := tables[0][1]

		cols := extractColumns(q)
		if len(cols) == 0 {
			continue
		}

		if result[table] == nil {
			result[table] = make(map[string]int)
		}

		for _, c := range cols {
			result[table][c]++
		}
	}

	return result
}

func extractColumns(query string) []string {
	var cols []string

	if m := whereColRe.FindStringSubmatch(query); m != nil {
		cols = append(cols, columnsFromClause(m[1])...)
	}

	if m := joinColRe.FindStringSubmatch(query); m != nil {
		cols = append(cols, columnsFromClause(m[2])...)
	}

	return cols
}

func columnsFromClause(clause string) []string {
	var cols []string

	for _, m := range colEqRe.FindAllStringSubmatch(clause, -1) {
		col := m[2]
		if col == "" {
			col = m[1]
		}

		col = strings.TrimSpace(col)
		if col != "" && !isKeyword(col) {
			cols = append(cols, strings.ToLower(col))
		}
	}

	return cols
}

func isKeyword(s string) bool {
	switch strings.ToUpper(s) {
	case "AND", "OR", "NOT", "NULL", "TRUE", "FALSE":
		return true
	default:
		return false
	}
}

func missingIndexRecs(filterCols tableColumns, existing []ExistingIndex) []Recommendation {
	var recs []Recommendation

	for table, cols := range filterCols {
		for col, count := range cols {
			if hasIndexOn(existing, table, col) {
				continue
			}

			recs = append(recs, Recommendation{
				Kind:    Missing,
				Table:   table,
				Columns: []string{col},
				Score:   scoreFromCount(count),
				Reason:  "column filtered without a supporting index",
			})
		}
	}

	return recs
}

func compositeIndexRecs(filterCols tableColumns) []Recommendation {
	var recs []Recommendation

	for table, cols := range filterCols {
		if len(cols) < 2 {
			continue
		}

		names := make([]string, 0, len(cols))
		for c := range cols {
			names = append(names, c)
		}

		sort.Strings(names)

		if len(names) > 3 {
			names = names[:3]
		}

		recs = append(recs, Recommendation{
			Kind:    Composite,
			Table:   table,
			Columns: names,
			Score:   0.5,
			Reason:  "columns repeatedly filtered together",
		})
	}

	return recs
}

func coveringIndexRecs(queries []string, existing []ExistingIndex) []Recommendation {
	var recs []Recommendation

	for _, q := range queries {
		m := selectColsRe.FindStringSubmatch(q)
		if m == nil {
			continue
		}

		cols := strings.Split(m[1], ",")
		if len(cols) == 0 || len(cols) > 5 || strings.Contains(m[1], "*") {
			continue
		}

		table := ""
		if fm := fromRe.FindStringSubmatch(q); fm != nil {
			table = fm[1]
		}

		if table == "" {
			continue
		}

		trimmed := make([]string, 0, len(cols))
		for _, c := range cols {
			trimmed = append(trimmed, strings.ToLower(strings.TrimSpace(c)))
		}

		recs = append(recs, Recommendation{
			Kind:    Covering,
			Table:   table,
			Columns: trimmed,
			Score:   0.3,
			Reason:  "narrow select list could be served by a covering index",
		})
	}

	return recs
}

func redundantIndexRecs(existing []ExistingIndex) []Recommendation {
	var recs []Recommendation

	for i, a := range existing {
		for j, b := range existing {
			if i == j || a.Table != b.Table {
				continue
			}

			if isPrefix(a.Columns, b.Columns) && len(a.Columns) < len(b.Columns) {
				recs = append(recs, Recommendation{
					Kind:    Redundant,
					Table:   a.Table,
					Columns: a.Columns,
					Score:   0.7,
					Reason:  "index is a prefix of another index on the same table",
				})
			}
		}
	}

	return recs
}

func unusedIndexRecs(existing []ExistingIndex, filterCols tableColumns) []Recommendation {
	var recs []Recommendation

	for _, idx := range existing {
		if len(idx.Columns) == 0 {
			continue
		}

		used := filterCols[idx.Table]
		if _, ok := used[idx.Columns[0]]; ok {
			continue
		}

		recs = append(recs, Recommendation{
			Kind:    Unused,
			Table:   idx.Table,
			Columns: idx.Columns,
			Score:   0.4,
			Reason:  "no observed query filters on this index's leading column",
		})
	}

	return recs
}

func hasIndexOn(existing []ExistingIndex, table, col string) bool {
	for _, idx := range existing {
		if idx.Table == table && len(idx.Columns) > 0 && idx.Columns[0] == col {
			return true
		}
	}

	return false
}

func isPrefix(prefix, full []string) bool {
	if len(prefix) > len(full) {
		return false
	}

	for i, c := range prefix {
		if full[i] != c {
			return false
		}
	}

	return true
}

func scoreFromCount(count int) float64 {
	score := float64(count) / 10

	if score > 1 {
		return 1
	}

	return score
}
