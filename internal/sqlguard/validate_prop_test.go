package sqlguard

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// The validator is a pure total function: any string in, one verdict out,
// and the same string always yields the same verdict.
func TestValidateProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("deterministic", prop.ForAll(
		func(input string) bool {
			first := Validate(input)
			second := Validate(input)
			return first == second
		},
		gen.AnyString(),
	))

	properties.Property("rejection always carries a reason", prop.ForAll(
		func(input string) bool {
			verdict := Validate(input)
			return verdict.Accepted || verdict.Reason != ReasonNone
		},
		gen.AnyString(),
	))

	properties.Property("acceptance carries no reason", prop.ForAll(
		func(input string) bool {
			verdict := Validate(input)
			return !verdict.Accepted || (verdict.Reason == ReasonNone && verdict.Detail == "")
		},
		gen.AnyString(),
	))

	properties.Property("accepted statements start with select or with", prop.ForAll(
		func(input string) bool {
			verdict := Validate(input)
			if !verdict.Accepted {
				return true
			}
			upper := strings.ToUpper(strings.TrimSpace(input))
			return strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "WITH")
		},
		gen.AnyString(),
	))

	properties.Property("bare forbidden statements never pass", prop.ForAll(
		func(keyword string, rest string) bool {
			verdict := Validate(keyword + " " + rest)
			return !verdict.Accepted
		},
		gen.OneConstOf("INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER", "TRUNCATE", "MERGE", "GRANT", "REVOKE"),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
