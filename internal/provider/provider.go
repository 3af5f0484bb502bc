// Package provider wraps the external text-understanding and text-generation
// capabilities. A Provider turns natural language plus schema context into a
// structured QuerySpec, and a QuerySpec plus full table descriptors into raw
// SQL text. Providers are interchangeable and tried in a configured order by
// the pipeline's fallback loop.
package provider

import (
	"context"
	"errors"

	"github.com/VicerInfoTech/TIF-AI/internal/intent"
)

// ErrMalformedOutput marks a response that arrived but could not be decoded
// into the expected shape. The fallback loop retries the same provider once
// for this class of failure before moving on.
var ErrMalformedOutput = errors.New("provider: malformed output")

// HistoryEntry is one earlier turn of the conversation, used to enrich
// intent resolution.
type HistoryEntry struct {
	Question string
	SQL      string
}

// IntentRequest is the input contract of ResolveIntent.
type IntentRequest struct {
	Question      string
	DatabaseID    string
	SchemaSummary string
	BusinessIntro string
	CurrentDate   string
	History       []HistoryEntry
}

// SQLRequest is the input contract of GenerateSQL. SchemaContext carries the
// rendered descriptors of the candidate tables and JoinSummary the
// discovered join paths; Feedback is non-empty only on the corrective retry
// after a validation rejection.
type SQLRequest struct {
	Question      string
	DatabaseID    string
	Spec          intent.QuerySpec
	SchemaContext string
	JoinSummary   string
	Feedback      string
}

// Provider is one configured text capability.
type Provider interface {
	Name() string
	ResolveIntent(ctx context.Context, req IntentRequest) (intent.QuerySpec, error)
	GenerateSQL(ctx context.Context, req SQLRequest) (string, error)
}
