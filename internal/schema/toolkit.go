package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// ErrNoJoinPath means the foreign key graph is disconnected between two
// tables. It is a normal outcome, not a failure: callers prune the
// unreachable table and continue.
var ErrNoJoinPath = errors.New("schema: no join path")

// CoverageError reports a multi-table join request where some tables are
// unreachable from the seed table. The plan returned alongside it still
// covers the reachable tables.
type CoverageError struct {
	Seed        string
	Unreachable []string
}

func (e *CoverageError) Error() string {
	return fmt.Sprintf("no join path from %q to: %s", e.Seed, strings.Join(e.Unreachable, ", "))
}

// SearchWeights controls how much each matched field contributes to a table's
// search score.
type SearchWeights struct {
	Name           float64
	Keywords       float64
	Description    float64
	Columns        float64
	ColumnKeywords float64
}

// DefaultSearchWeights returns the standard field weighting.
func DefaultSearchWeights() SearchWeights {
	return SearchWeights{
		Name:           5.0,
		Keywords:       3.5,
		Description:    3.0,
		Columns:        2.5,
		ColumnKeywords: 2.0,
	}
}

// Toolkit exposes the read-only query operations over a catalog that the
// generation pipeline uses: table search, table detail lookup and join path
// discovery. A Toolkit is safe for concurrent use.
type Toolkit struct {
	catalog       *Catalog
	weights       SearchWeights
	maxSearchHops int
	columnMatches bool
}

// ToolkitOption customises a Toolkit.
type ToolkitOption func(*Toolkit)

// WithSearchWeights overrides the field weighting used by SearchTables.
func WithSearchWeights(w SearchWeights) ToolkitOption {
	return func(t *Toolkit) { t.weights = w }
}

// WithoutColumnMatches disables column name/keyword contributions to search
// scores, for databases with noisy column naming.
func WithoutColumnMatches() ToolkitOption {
	return func(t *Toolkit) { t.columnMatches = false }
}

// NewToolkit wraps a catalog.
func NewToolkit(catalog *Catalog, opts ...ToolkitOption) *Toolkit {
	t := &Toolkit{
		catalog:       catalog,
		weights:       DefaultSearchWeights(),
		maxSearchHops: 6,
		columnMatches: true,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Catalog returns the wrapped catalog.
func (t *Toolkit) Catalog() *Catalog { return t.catalog }

// DescribeTable resolves the full descriptor for one table.
func (t *Toolkit) DescribeTable(name string) (Table, error) {
	return t.catalog.Lookup(name)
}

// SearchTables ranks tables against a free-text query. The ranking is a
// deterministic combination of keyword overlap and the configured weights;
// equal scores break by table name ascending. An empty result is returned,
// never an error, when nothing matches.
func (t *Toolkit) SearchTables(query string, maxResults int) []TableMatch {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return nil
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	var matches []TableMatch
	for _, table := range t.catalog.Tables() {
		score, matched := t.scoreTable(table, tokens)
		if score <= 0 {
			continue
		}
		columns := make([]string, 0, len(table.Columns))
		for _, col := range table.Columns {
			columns = append(columns, col.Name)
		}
		matches = append(matches, TableMatch{
			Table:       table.Name,
			Score:       score,
			Description: table.Description,
			Columns:     columns,
			MatchedOn:   matched,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Table < matches[j].Table
	})
	if len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	return matches
}

func (t *Toolkit) scoreTable(table Table, tokens []string) (float64, []string) {
	score := 0.0
	var matched []string
	add := func(token string, weight float64) {
		score += weight
		for _, m := range matched {
			if m == token {
				return
			}
		}
		matched = append(matched, token)
	}

	name := strings.ToLower(table.Name)
	desc := strings.ToLower(table.Description)
	for _, token := range tokens {
		if strings.Contains(name, token) {
			add(token, t.weights.Name)
		}
		if desc != "" && strings.Contains(desc, token) {
			add(token, t.weights.Description)
		}
		for _, kw := range table.Keywords {
			if strings.Contains(strings.ToLower(kw), token) {
				add(token, t.weights.Keywords)
				break
			}
		}
		if !t.columnMatches {
			continue
		}
		for _, col := range table.Columns {
			if strings.Contains(strings.ToLower(col.Name), token) {
				add(token, t.weights.Columns)
				break
			}
		}
		for _, col := range table.Columns {
			hit := false
			for _, kw := range col.Keywords {
				if strings.Contains(strings.ToLower(kw), token) {
					add(token, t.weights.ColumnKeywords)
					hit = true
					break
				}
			}
			if hit {
				break
			}
		}
	}
	return score, matched
}

var stopWords = map[string]struct{}{
	"and": {}, "the": {}, "for": {}, "with": {}, "from": {}, "this": {},
	"that": {}, "into": {}, "about": {}, "show": {}, "list": {}, "give": {},
	"data": {}, "info": {}, "details": {}, "all": {}, "per": {},
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if len(field) <= 2 {
			continue
		}
		if _, stop := stopWords[field]; stop {
			continue
		}
		tokens = append(tokens, field)
	}
	return tokens
}

// FindJoinPath discovers the fewest-hop join path between two tables by
// breadth-first search over the foreign key graph, traversing edges in both
// the declared direction and its reverse. Among equal-hop paths the winner is
// the first of: paths with no reversed edge, then the path whose edges come
// first in catalog iteration order. A table joined to itself yields a
// zero-hop path. ErrNoJoinPath is returned when the graph is disconnected
// between the two tables.
func (t *Toolkit) FindJoinPath(source, target string) (JoinPath, error) {
	src, err := t.catalog.Lookup(source)
	if err != nil {
		return JoinPath{}, err
	}
	dst, err := t.catalog.Lookup(target)
	if err != nil {
		return JoinPath{}, err
	}
	if strings.EqualFold(src.Name, dst.Name) {
		return JoinPath{Source: src.Name, Target: dst.Name}, nil
	}

	type candidate struct {
		table string
		edges []JoinEdge
	}
	queue := []candidate{{table: src.Name}}
	var found []JoinPath
	foundDepth := -1

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if foundDepth >= 0 && len(cur.edges) >= foundDepth {
			continue
		}
		if t.maxSearchHops > 0 && len(cur.edges) >= t.maxSearchHops {
			continue
		}
		for _, edge := range t.catalog.edgesFrom(cur.table) {
			if onPath(src.Name, cur.edges, edge.ToTable) {
				continue
			}
			next := make([]JoinEdge, len(cur.edges), len(cur.edges)+1)
			copy(next, cur.edges)
			next = append(next, edge)
			if strings.EqualFold(edge.ToTable, dst.Name) {
				found = append(found, JoinPath{Source: src.Name, Target: dst.Name, Edges: next})
				foundDepth = len(next)
				continue
			}
			queue = append(queue, candidate{table: edge.ToTable, edges: next})
		}
	}

	if len(found) == 0 {
		return JoinPath{}, fmt.Errorf("%w between %q and %q", ErrNoJoinPath, src.Name, dst.Name)
	}
	best := found[0]
	for _, path := range found[1:] {
		if path.Hops() != best.Hops() {
			continue
		}
		if path.Reversals() == 0 && best.Reversals() > 0 {
			best = path
		}
	}
	return best, nil
}

// onPath reports whether table is the path's start or already visited by one
// of its edges. This is the guard that keeps cyclic and self-referencing
// foreign keys from looping forever.
func onPath(start string, edges []JoinEdge, table string) bool {
	if strings.EqualFold(start, table) {
		return true
	}
	for _, e := range edges {
		if strings.EqualFold(e.ToTable, table) {
			return true
		}
	}
	return false
}

// JoinPlan is the union of pairwise join paths anchored at a seed table.
type JoinPlan struct {
	Seed        string
	Paths       []JoinPath
	Edges       []JoinEdge
	Covered     []string
	Unreachable []string
}

// PlanJoins computes pairwise join paths from the first table to every other
// table and unions the edge sets. When some tables are unreachable the
// returned plan covers the rest and the error is a *CoverageError naming
// them; the caller decides whether partial coverage is acceptable.
func (t *Toolkit) PlanJoins(tables []string) (JoinPlan, error) {
	if len(tables) == 0 {
		return JoinPlan{}, fmt.Errorf("schema: no tables to join")
	}
	seed, err := t.catalog.Lookup(tables[0])
	if err != nil {
		return JoinPlan{}, err
	}

	plan := JoinPlan{Seed: seed.Name, Covered: []string{seed.Name}}
	seenEdges := map[string]struct{}{}
	for _, name := range tables[1:] {
		path, err := t.FindJoinPath(seed.Name, name)
		if err != nil {
			if errors.Is(err, ErrNoJoinPath) || errors.Is(err, ErrTableNotFound) {
				plan.Unreachable = append(plan.Unreachable, name)
				continue
			}
			return JoinPlan{}, err
		}
		plan.Paths = append(plan.Paths, path)
		plan.Covered = append(plan.Covered, path.Target)
		for _, edge := range path.Edges {
			sig := edgeSignature(edge)
			if _, dup := seenEdges[sig]; dup {
				continue
			}
			seenEdges[sig] = struct{}{}
			plan.Edges = append(plan.Edges, edge)
		}
	}

	if len(plan.Unreachable) > 0 {
		return plan, &CoverageError{Seed: seed.Name, Unreachable: plan.Unreachable}
	}
	return plan, nil
}

func edgeSignature(e JoinEdge) string {
	a := strings.ToLower(e.FromTable) + "(" + strings.ToLower(strings.Join(e.FromColumns, ",")) + ")"
	b := strings.ToLower(e.ToTable) + "(" + strings.ToLower(strings.Join(e.ToColumns, ",")) + ")"
	if e.Reversed {
		// A reversed edge is the same physical constraint as its forward twin.
		a, b = b, a
	}
	return a + "->" + b
}
