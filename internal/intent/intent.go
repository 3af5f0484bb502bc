// Package intent defines the structured representation of what the user is
// asking for, independent of SQL syntax. A QuerySpec is produced by an
// external text-understanding provider and consumed by the generation
// pipeline; its JSON shape is part of the provider contract.
package intent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TimeRange is an optional time window on the request.
type TimeRange struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
	Grain string `json:"grain,omitempty"`
}

// Metric is a requested aggregation.
type Metric struct {
	Name        string `json:"name"`
	Aggregation string `json:"aggregation,omitempty"`
	Column      string `json:"column,omitempty"`
}

// Dimension is a requested grouping.
type Dimension struct {
	Name   string `json:"name"`
	Column string `json:"column,omitempty"`
	Grain  string `json:"grain,omitempty"`
}

// Filter is a structured predicate.
type Filter struct {
	Field    string   `json:"field"`
	Operator string   `json:"operator,omitempty"`
	Values   []string `json:"values,omitempty"`
	Column   string   `json:"column,omitempty"`
}

// QuerySpec is the normalized intent behind a natural-language question.
type QuerySpec struct {
	Intent     string      `json:"intent"`
	Entities   []string    `json:"entities"`
	Metrics    []Metric    `json:"metrics,omitempty"`
	Dimensions []Dimension `json:"dimensions,omitempty"`
	Filters    []Filter    `json:"filters,omitempty"`
	TimeRange  *TimeRange  `json:"time_range,omitempty"`
	Limit      int         `json:"limit,omitempty"`
	Notes      string      `json:"notes,omitempty"`
}

// SearchTerms flattens the spec into the free-text terms the schema toolkit
// searches with.
func (s QuerySpec) SearchTerms() []string {
	terms := make([]string, 0, 8)
	if s.Intent != "" {
		terms = append(terms, s.Intent)
	}
	terms = append(terms, s.Entities...)
	for _, m := range s.Metrics {
		terms = append(terms, m.Name)
	}
	for _, d := range s.Dimensions {
		terms = append(terms, d.Name)
	}
	for _, f := range s.Filters {
		terms = append(terms, f.Field)
	}
	return terms
}

// Parse decodes a provider's raw output into a QuerySpec. Providers are
// prompted to answer with a bare JSON object but routinely wrap it in
// markdown or narration, so Parse cuts the text down to its outermost JSON
// object before decoding. A spec without intent and entities is treated as
// malformed.
func Parse(raw string) (QuerySpec, error) {
	body := extractJSONObject(raw)
	if body == "" {
		return QuerySpec{}, fmt.Errorf("intent: no JSON object in provider output")
	}
	var spec QuerySpec
	if err := json.Unmarshal([]byte(body), &spec); err != nil {
		return QuerySpec{}, fmt.Errorf("intent: decode query spec: %w", err)
	}
	if strings.TrimSpace(spec.Intent) == "" && len(spec.Entities) == 0 {
		return QuerySpec{}, fmt.Errorf("intent: query spec has neither intent nor entities")
	}
	return spec, nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}
