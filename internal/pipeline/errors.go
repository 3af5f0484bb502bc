package pipeline

import (
	"fmt"
	"strings"
)

// Kind classifies a pipeline failure. Kinds are stable strings and appear in
// API error payloads and metrics labels.
type Kind string

const (
	KindSchemaLoad            Kind = "schema_load_error"
	KindAllProvidersExhausted Kind = "all_providers_exhausted"
	KindNoUsableSchema        Kind = "no_usable_schema"
	KindValidationRejected    Kind = "validation_rejected"
	KindExecutionFailed       Kind = "execution_failed"
	KindResourceExhausted     Kind = "resource_exhausted"
)

// Error is the single failure type the pipeline returns. Question and
// DatabaseID echo the request so every failure identifies what was asked and
// where. Query carries the offending SQL for execution failures; validation
// rejections surface only the Reason, never the rejected statement, so unsafe
// text cannot be mistaken for vetted output. Providers lists every provider
// attempted when the whole roster was exhausted.
type Error struct {
	Kind       Kind
	Message    string
	Question   string
	DatabaseID string
	Query      string
	Providers  []string
	Reason     string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Providers) > 0 {
		fmt.Fprintf(&b, " (providers: %s)", strings.Join(e.Providers, ", "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the same request may succeed if repeated without
// changes, which is true only for transient resource pressure.
func (e *Error) Retryable() bool {
	return e.Kind == KindResourceExhausted
}
