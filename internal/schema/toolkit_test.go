package schema

import (
	"errors"
	"testing"
)

func mustCatalog(t *testing.T, desc Description) *Catalog {
	t.Helper()
	catalog, err := NewCatalog(desc)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return catalog
}

func TestSearchTablesRanking(t *testing.T) {
	toolkit := NewToolkit(mustCatalog(t, salesDescription()))

	matches := toolkit.SearchTables("customer orders", 5)
	if len(matches) < 2 {
		t.Fatalf("matches = %+v", matches)
	}
	// "orders" hits on both tokens (name + column), "customers" on one.
	if matches[0].Table != "orders" {
		t.Fatalf("top match = %q", matches[0].Table)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Fatalf("scores not descending: %+v", matches)
		}
	}
}

func TestSearchTablesMatchesKeywords(t *testing.T) {
	toolkit := NewToolkit(mustCatalog(t, salesDescription()))
	matches := toolkit.SearchTables("revenue", 5)
	if len(matches) == 0 || matches[0].Table != "orders" {
		t.Fatalf("keyword search = %+v", matches)
	}
}

func TestSearchTablesEmptyAndStopWords(t *testing.T) {
	toolkit := NewToolkit(mustCatalog(t, salesDescription()))
	if got := toolkit.SearchTables("", 5); got != nil {
		t.Fatalf("empty query = %+v", got)
	}
	// Every token is a stop word or too short.
	if got := toolkit.SearchTables("show all the data", 5); got != nil {
		t.Fatalf("stop word query = %+v", got)
	}
	if got := toolkit.SearchTables("zebra unicorn", 5); len(got) != 0 {
		t.Fatalf("nonsense query = %+v", got)
	}
}

func TestSearchTablesLimitsResults(t *testing.T) {
	toolkit := NewToolkit(mustCatalog(t, salesDescription()))
	matches := toolkit.SearchTables("order customer product", 2)
	if len(matches) > 2 {
		t.Fatalf("limit ignored: %+v", matches)
	}
}

func TestSearchTablesDeterministicTieBreak(t *testing.T) {
	desc := Description{
		DatabaseID: "tie",
		Version:    "1",
		Tables: []Table{
			{Name: "beta_sales", Columns: []Column{{Name: "id"}}},
			{Name: "alpha_sales", Columns: []Column{{Name: "id"}}},
		},
	}
	toolkit := NewToolkit(mustCatalog(t, desc))
	for i := 0; i < 10; i++ {
		matches := toolkit.SearchTables("sales", 5)
		if len(matches) != 2 {
			t.Fatalf("matches = %+v", matches)
		}
		if matches[0].Table != "alpha_sales" {
			t.Fatalf("tie break by name failed: %+v", matches)
		}
	}
}

func TestFindJoinPathZeroHop(t *testing.T) {
	toolkit := NewToolkit(mustCatalog(t, salesDescription()))
	path, err := toolkit.FindJoinPath("orders", "ORDERS")
	if err != nil {
		t.Fatalf("FindJoinPath: %v", err)
	}
	if path.Hops() != 0 || path.Source != "orders" || path.Target != "orders" {
		t.Fatalf("path = %+v", path)
	}
}

func TestFindJoinPathSingleHop(t *testing.T) {
	toolkit := NewToolkit(mustCatalog(t, salesDescription()))
	path, err := toolkit.FindJoinPath("orders", "customers")
	if err != nil {
		t.Fatalf("FindJoinPath: %v", err)
	}
	if path.Hops() != 1 {
		t.Fatalf("hops = %d", path.Hops())
	}
	edge := path.Edges[0]
	if edge.FromTable != "orders" || edge.ToTable != "customers" || edge.Reversed {
		t.Fatalf("edge = %+v", edge)
	}
}

func TestFindJoinPathMultiHop(t *testing.T) {
	toolkit := NewToolkit(mustCatalog(t, salesDescription()))
	path, err := toolkit.FindJoinPath("customers", "products")
	if err != nil {
		t.Fatalf("FindJoinPath: %v", err)
	}
	// customers -> orders -> order_items -> products
	if path.Hops() != 3 {
		t.Fatalf("hops = %d, path = %+v", path.Hops(), path)
	}
}

func TestFindJoinPathDisconnected(t *testing.T) {
	toolkit := NewToolkit(mustCatalog(t, salesDescription()))
	_, err := toolkit.FindJoinPath("orders", "audit_log")
	if !errors.Is(err, ErrNoJoinPath) {
		t.Fatalf("err = %v", err)
	}
}

func TestFindJoinPathUnknownTable(t *testing.T) {
	toolkit := NewToolkit(mustCatalog(t, salesDescription()))
	_, err := toolkit.FindJoinPath("orders", "missing")
	if !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestFindJoinPathSelfReferencingForeignKey(t *testing.T) {
	desc := Description{
		DatabaseID: "org",
		Version:    "1",
		Tables: []Table{
			{
				Name:       "employees",
				Columns:    []Column{{Name: "id"}, {Name: "manager_id"}, {Name: "team_id"}},
				PrimaryKey: []string{"id"},
				ForeignKeys: []ForeignKey{
					{Columns: []string{"manager_id"}, RefTable: "employees", RefColumns: []string{"id"}, Cardinality: ManyToOne},
					{Columns: []string{"team_id"}, RefTable: "teams", RefColumns: []string{"id"}, Cardinality: ManyToOne},
				},
			},
			{Name: "teams", Columns: []Column{{Name: "id"}}, PrimaryKey: []string{"id"}},
		},
	}
	toolkit := NewToolkit(mustCatalog(t, desc))
	path, err := toolkit.FindJoinPath("employees", "teams")
	if err != nil {
		t.Fatalf("FindJoinPath: %v", err)
	}
	if path.Hops() != 1 {
		t.Fatalf("hops = %d", path.Hops())
	}
}

func TestFindJoinPathPrefersUnreversedAmongEqualHops(t *testing.T) {
	// Two 1-hop routes from a to b: one declared a->b, one declared b->a
	// (reversed when traversed from a). The declared direction must win no
	// matter the declaration order.
	desc := Description{
		DatabaseID: "diamond",
		Version:    "1",
		Tables: []Table{
			{
				Name:       "a",
				Columns:    []Column{{Name: "id"}, {Name: "b_id"}},
				PrimaryKey: []string{"id"},
				ForeignKeys: []ForeignKey{
					{Columns: []string{"b_id"}, RefTable: "b", RefColumns: []string{"id"}, Cardinality: ManyToOne},
				},
			},
			{
				Name:       "b",
				Columns:    []Column{{Name: "id"}, {Name: "a_id"}},
				PrimaryKey: []string{"id"},
				ForeignKeys: []ForeignKey{
					{Columns: []string{"a_id"}, RefTable: "a", RefColumns: []string{"id"}, Cardinality: ManyToOne},
				},
			},
		},
	}
	toolkit := NewToolkit(mustCatalog(t, desc))
	path, err := toolkit.FindJoinPath("a", "b")
	if err != nil {
		t.Fatalf("FindJoinPath: %v", err)
	}
	if path.Hops() != 1 || path.Reversals() != 0 {
		t.Fatalf("path = %+v", path)
	}
}

func TestPlanJoinsCoversAllTables(t *testing.T) {
	toolkit := NewToolkit(mustCatalog(t, salesDescription()))
	plan, err := toolkit.PlanJoins([]string{"orders", "customers", "order_items"})
	if err != nil {
		t.Fatalf("PlanJoins: %v", err)
	}
	if plan.Seed != "orders" || len(plan.Covered) != 3 || len(plan.Unreachable) != 0 {
		t.Fatalf("plan = %+v", plan)
	}
	if len(plan.Edges) != 2 {
		t.Fatalf("edges = %+v", plan.Edges)
	}
}

func TestPlanJoinsReportsUnreachable(t *testing.T) {
	toolkit := NewToolkit(mustCatalog(t, salesDescription()))
	plan, err := toolkit.PlanJoins([]string{"orders", "customers", "audit_log"})
	var coverage *CoverageError
	if !errors.As(err, &coverage) {
		t.Fatalf("err = %v", err)
	}
	if len(coverage.Unreachable) != 1 || coverage.Unreachable[0] != "audit_log" {
		t.Fatalf("coverage = %+v", coverage)
	}
	// The plan alongside the error still covers the reachable tables.
	if len(plan.Covered) != 2 {
		t.Fatalf("plan = %+v", plan)
	}
}

func TestPlanJoinsDeduplicatesSharedEdges(t *testing.T) {
	toolkit := NewToolkit(mustCatalog(t, salesDescription()))
	// Routes to order_items and products share the orders->order_items edge.
	plan, err := toolkit.PlanJoins([]string{"orders", "order_items", "products"})
	if err != nil {
		t.Fatalf("PlanJoins: %v", err)
	}
	if len(plan.Edges) != 2 {
		t.Fatalf("expected shared edge union, got %+v", plan.Edges)
	}
}
