package intent

import "testing"

func TestParsePlainJSON(t *testing.T) {
	spec, err := Parse(`{"intent":"aggregate","entities":["orders"],"metrics":[{"name":"revenue","aggregation":"sum","column":"total"}],"limit":10}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if spec.Intent != "aggregate" {
		t.Fatalf("intent = %q", spec.Intent)
	}
	if len(spec.Entities) != 1 || spec.Entities[0] != "orders" {
		t.Fatalf("entities = %v", spec.Entities)
	}
	if len(spec.Metrics) != 1 || spec.Metrics[0].Aggregation != "sum" {
		t.Fatalf("metrics = %+v", spec.Metrics)
	}
	if spec.Limit != 10 {
		t.Fatalf("limit = %d", spec.Limit)
	}
}

func TestParseStripsMarkdownWrapper(t *testing.T) {
	raw := "Here is the spec:\n```json\n{\"intent\":\"lookup\",\"entities\":[\"customers\"]}\n```\nHope that helps!"
	spec, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if spec.Intent != "lookup" {
		t.Fatalf("intent = %q", spec.Intent)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	cases := []string{
		"",
		"no json here",
		"{not valid json}",
		`{"limit": 5}`,
		`{"intent":"","entities":[]}`,
	}
	for _, raw := range cases {
		if _, err := Parse(raw); err == nil {
			t.Fatalf("Parse(%q) accepted", raw)
		}
	}
}

func TestParseAcceptsEntitiesWithoutIntent(t *testing.T) {
	spec, err := Parse(`{"entities":["orders","customers"]}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(spec.Entities) != 2 {
		t.Fatalf("entities = %v", spec.Entities)
	}
}

func TestSearchTermsFlattensSpec(t *testing.T) {
	spec := QuerySpec{
		Intent:   "aggregate",
		Entities: []string{"orders"},
		Metrics:  []Metric{{Name: "revenue"}},
		Dimensions: []Dimension{
			{Name: "region"},
		},
		Filters: []Filter{{Field: "status"}},
	}
	terms := spec.SearchTerms()
	want := []string{"aggregate", "orders", "revenue", "region", "status"}
	if len(terms) != len(want) {
		t.Fatalf("terms = %v", terms)
	}
	for i := range want {
		if terms[i] != want[i] {
			t.Fatalf("terms[%d] = %q, want %q", i, terms[i], want[i])
		}
	}
}
