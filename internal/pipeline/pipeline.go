// Package pipeline orchestrates the path from a natural-language question to
// an executed, formatted query result: load the schema catalog, resolve the
// question into a structured spec, pick candidate tables, plan joins,
// generate SQL through the provider roster, gate it through the validator and
// run it against the target database.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/VicerInfoTech/TIF-AI/internal/executor"
	"github.com/VicerInfoTech/TIF-AI/internal/format"
	"github.com/VicerInfoTech/TIF-AI/internal/history"
	"github.com/VicerInfoTech/TIF-AI/internal/intent"
	"github.com/VicerInfoTech/TIF-AI/internal/observability"
	"github.com/VicerInfoTech/TIF-AI/internal/provider"
	"github.com/VicerInfoTech/TIF-AI/internal/schema"
	"github.com/VicerInfoTech/TIF-AI/internal/sqlguard"
)

const defaultMaxCandidateTables = 6

// Options wires a Pipeline. Catalogs, Providers and Executors are required;
// History is optional and, when nil, conversation memory is disabled.
type Options struct {
	Catalogs           *schema.Cache
	Providers          []provider.Provider
	Executors          *executor.Registry
	History            history.Store
	Logger             *slog.Logger
	MaxCandidateTables int
	HistoryTurns       int
	AttemptTimeout     time.Duration
	BusinessIntro      string
}

// Pipeline runs questions end to end. It is safe for concurrent use; all
// mutable state lives in the catalog cache and the database pools.
type Pipeline struct {
	catalogs           *schema.Cache
	providers          []provider.Provider
	executors          *executor.Registry
	history            history.Store
	logger             *slog.Logger
	maxCandidateTables int
	historyTurns       int
	attemptTimeout     time.Duration
	businessIntro      string
	now                func() time.Time
}

func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxTables := opts.MaxCandidateTables
	if maxTables <= 0 {
		maxTables = defaultMaxCandidateTables
	}
	historyTurns := opts.HistoryTurns
	if historyTurns <= 0 {
		historyTurns = 5
	}
	return &Pipeline{
		catalogs:           opts.Catalogs,
		providers:          opts.Providers,
		executors:          opts.Executors,
		history:            opts.History,
		logger:             logger,
		maxCandidateTables: maxTables,
		historyTurns:       historyTurns,
		attemptTimeout:     opts.AttemptTimeout,
		businessIntro:      opts.BusinessIntro,
		now:                time.Now,
	}
}

// Request is one question against one target database.
type Request struct {
	Question   string
	DatabaseID string
	UserID     string
	SessionID  string
	Format     format.Target
	MaxRows    int
	Timeout    time.Duration
}

// Response is the full outcome of a successful run. Tables lists the
// candidate tables actually offered to the generator; ExcludedTables names
// candidates dropped because no join path reached them, and
// UnmatchedEntities the spec entities the schema search could not place.
type Response struct {
	SQL               string
	Spec              intent.QuerySpec
	Tables            []string
	ExcludedTables    []string
	UnmatchedEntities []string
	Columns           []string
	Rows              [][]any
	RowCount          int
	Truncated         bool
	Duration          time.Duration
	Body              []byte
	ContentType       string
}

// Run executes the full pipeline. Every failure is a *Error whose Kind tells
// the caller which stage gave up and whether a retry can help.
func (p *Pipeline) Run(ctx context.Context, req Request) (Response, error) {
	started := p.now()

	catalog, err := p.loadCatalog(ctx, req.DatabaseID)
	if err != nil {
		return p.fail(req, err)
	}
	toolkit := schema.NewToolkit(catalog)

	spec, err := p.resolveIntent(ctx, req, catalog)
	if err != nil {
		return p.fail(req, err)
	}

	candidates, unmatched, err := p.selectTables(toolkit, spec, req.Question)
	if err != nil {
		return p.fail(req, err)
	}

	plan, tables, excluded := p.planJoins(ctx, toolkit, candidates)
	if len(tables) == 0 {
		return p.fail(req, &Error{
			Kind:       KindNoUsableSchema,
			Message:    "no joinable tables remain for the question",
			DatabaseID: req.DatabaseID,
		})
	}

	sqlText, err := p.generateSQL(ctx, req, spec, toolkit, tables, plan)
	if err != nil {
		return p.fail(req, err)
	}

	result, err := p.execute(ctx, req, sqlText)
	if err != nil {
		return p.fail(req, err)
	}

	target := req.Format
	if target == "" {
		target = format.TargetJSON
	}
	body, err := format.Serialize(result.Columns, result.Rows, target)
	if err != nil {
		return p.fail(req, &Error{
			Kind:       KindExecutionFailed,
			Message:    "serialize result",
			DatabaseID: req.DatabaseID,
			Err:        err,
		})
	}

	resp := Response{
		SQL:               sqlText,
		Spec:              spec,
		Tables:            tables,
		ExcludedTables:    excluded,
		UnmatchedEntities: unmatched,
		Columns:           result.Columns,
		Rows:              result.Rows,
		RowCount:          result.RowCount,
		Truncated:         result.Truncated,
		Duration:          p.now().Sub(started),
		Body:              body,
		ContentType:       target.ContentType(),
	}
	p.recordTurn(ctx, req, resp)
	observability.ObservePipelineRun(req.DatabaseID, "ok")
	observability.ObserveQueryRows(resp.RowCount)
	return resp, nil
}

// fail stamps the request's question and database onto the error so every
// failure path echoes what was asked, then records the run outcome.
func (p *Pipeline) fail(req Request, err error) (Response, error) {
	var perr *Error
	if errors.As(err, &perr) {
		if perr.Question == "" {
			perr.Question = req.Question
		}
		if perr.DatabaseID == "" {
			perr.DatabaseID = req.DatabaseID
		}
		observability.ObservePipelineRun(req.DatabaseID, string(perr.Kind))
	} else {
		observability.ObservePipelineRun(req.DatabaseID, "error")
	}
	return Response{}, err
}

func (p *Pipeline) loadCatalog(ctx context.Context, databaseID string) (*schema.Catalog, error) {
	start := p.now()
	cached := p.catalogs.Cached(databaseID)
	catalog, err := p.catalogs.Load(ctx, databaseID)
	observability.ObserveStageDuration("load_catalog", p.now().Sub(start))
	if err != nil {
		observability.ObserveCatalogBuild(databaseID, "error")
		return nil, &Error{
			Kind:       KindSchemaLoad,
			Message:    "load schema catalog",
			DatabaseID: databaseID,
			Err:        err,
		}
	}
	if cached {
		observability.ObserveCatalogCacheHit()
	} else {
		observability.ObserveCatalogBuild(databaseID, "ok")
	}
	return catalog, nil
}

func (p *Pipeline) resolveIntent(ctx context.Context, req Request, catalog *schema.Catalog) (intent.QuerySpec, error) {
	start := p.now()
	defer func() { observability.ObserveStageDuration("resolve_intent", p.now().Sub(start)) }()

	intentReq := provider.IntentRequest{
		Question:      req.Question,
		DatabaseID:    req.DatabaseID,
		SchemaSummary: catalogSummary(catalog),
		BusinessIntro: p.businessIntro,
		CurrentDate:   p.now().UTC().Format("2006-01-02"),
		History:       p.recentHistory(ctx, req),
	}

	var spec intent.QuerySpec
	err := p.runWithFallback(ctx, "resolve_intent", func(ctx context.Context, prov provider.Provider) error {
		resolved, err := prov.ResolveIntent(ctx, intentReq)
		if err != nil {
			return err
		}
		spec = resolved
		return nil
	})
	return spec, err
}

func (p *Pipeline) recentHistory(ctx context.Context, req Request) []provider.HistoryEntry {
	if p.history == nil || req.UserID == "" || req.SessionID == "" {
		return nil
	}
	turns, err := p.history.RecentTurns(ctx, req.UserID, req.SessionID, req.DatabaseID, p.historyTurns)
	if err != nil {
		p.logger.WarnContext(ctx, "load conversation history failed", slog.String("error", err.Error()))
		return nil
	}
	entries := make([]provider.HistoryEntry, 0, len(turns))
	// RecentTurns is newest first; prompt history reads oldest first.
	for i := len(turns) - 1; i >= 0; i-- {
		entries = append(entries, provider.HistoryEntry{Question: turns[i].Question, SQL: turns[i].SQL})
	}
	return entries
}

// selectTables searches the catalog with every term of the resolved spec and
// keeps the highest-scoring tables. Terms that hit nothing are reported back
// to the caller as unmatched rather than failing the run; only a spec whose
// terms collectively match no table at all is unanswerable.
func (p *Pipeline) selectTables(toolkit *schema.Toolkit, spec intent.QuerySpec, question string) ([]string, []string, error) {
	start := p.now()
	defer func() { observability.ObserveStageDuration("select_tables", p.now().Sub(start)) }()

	scores := map[string]float64{}
	accumulate := func(term string) bool {
		matches := toolkit.SearchTables(term, p.maxCandidateTables)
		for _, m := range matches {
			scores[m.Table] += m.Score
		}
		return len(matches) > 0
	}

	entities := map[string]struct{}{}
	var unmatched []string
	for _, entity := range spec.Entities {
		entities[strings.ToLower(entity)] = struct{}{}
		if !accumulate(entity) {
			unmatched = append(unmatched, entity)
		}
	}
	for _, term := range spec.SearchTerms() {
		if _, isEntity := entities[strings.ToLower(term)]; isEntity {
			continue
		}
		accumulate(term)
	}
	if len(scores) == 0 {
		// Last resort: the raw question often carries table words the spec lost.
		accumulate(question)
	}
	if len(scores) == 0 {
		return nil, nil, &Error{
			Kind:    KindNoUsableSchema,
			Message: "no table matches the question",
		}
	}

	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if scores[names[i]] != scores[names[j]] {
			return scores[names[i]] > scores[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > p.maxCandidateTables {
		names = names[:p.maxCandidateTables]
	}
	return names, unmatched, nil
}

// planJoins connects the candidate tables. Candidates the join graph cannot
// reach from the seed are dropped from the run and reported, not fatal: a
// partial schema still answers most questions.
func (p *Pipeline) planJoins(ctx context.Context, toolkit *schema.Toolkit, candidates []string) (schema.JoinPlan, []string, []string) {
	start := p.now()
	defer func() { observability.ObserveStageDuration("plan_joins", p.now().Sub(start)) }()

	if len(candidates) <= 1 {
		return schema.JoinPlan{}, candidates, nil
	}
	plan, err := toolkit.PlanJoins(candidates)
	if err != nil {
		var coverage *schema.CoverageError
		if errors.As(err, &coverage) {
			p.logger.WarnContext(ctx, "dropping unreachable candidate tables",
				slog.String("seed", coverage.Seed),
				slog.Any("unreachable", coverage.Unreachable),
			)
			return plan, plan.Covered, coverage.Unreachable
		}
		p.logger.WarnContext(ctx, "join planning failed, continuing with seed table only",
			slog.String("error", err.Error()),
		)
		return schema.JoinPlan{}, candidates[:1], candidates[1:]
	}
	return plan, plan.Covered, nil
}

// generateSQL asks the provider roster for a statement and gates it through
// the validator. A rejected statement earns exactly one corrective
// regeneration carrying the rejection as feedback; a second rejection fails
// the run.
func (p *Pipeline) generateSQL(ctx context.Context, req Request, spec intent.QuerySpec, toolkit *schema.Toolkit, tables []string, plan schema.JoinPlan) (string, error) {
	start := p.now()
	defer func() { observability.ObserveStageDuration("generate_sql", p.now().Sub(start)) }()

	descriptors := make([]schema.Table, 0, len(tables))
	for _, name := range tables {
		table, err := toolkit.DescribeTable(name)
		if err != nil {
			return "", &Error{Kind: KindSchemaLoad, Message: "describe table " + name, Err: err}
		}
		descriptors = append(descriptors, table)
	}

	sqlReq := provider.SQLRequest{
		Question:      req.Question,
		DatabaseID:    req.DatabaseID,
		Spec:          spec,
		SchemaContext: schemaContext(descriptors),
		JoinSummary:   joinSummary(plan),
	}

	generate := func(feedback string) (string, error) {
		sqlReq.Feedback = feedback
		var raw string
		err := p.runWithFallback(ctx, "generate_sql", func(ctx context.Context, prov provider.Provider) error {
			out, err := prov.GenerateSQL(ctx, sqlReq)
			if err != nil {
				return err
			}
			raw = out
			return nil
		})
		if err != nil {
			return "", err
		}
		return SanitizeSQL(raw), nil
	}

	sqlText, err := generate("")
	if err != nil {
		return "", err
	}
	verdict := sqlguard.Validate(sqlText)
	if verdict.Accepted {
		return sqlText, nil
	}
	observability.ObserveValidationRejection(string(verdict.Reason))
	p.logger.WarnContext(ctx, "generated statement rejected, requesting correction",
		slog.String("reason", string(verdict.Reason)),
		slog.String("detail", verdict.Detail),
	)

	feedback := "The previous statement was rejected: " + verdict.Detail +
		". Return a single read-only SELECT statement without comments."
	sqlText, err = generate(feedback)
	if err != nil {
		return "", err
	}
	verdict = sqlguard.Validate(sqlText)
	if verdict.Accepted {
		return sqlText, nil
	}
	observability.ObserveValidationRejection(string(verdict.Reason))
	return "", &Error{
		Kind:       KindValidationRejected,
		Message:    verdict.Detail,
		DatabaseID: req.DatabaseID,
		Reason:     string(verdict.Reason),
	}
}

func (p *Pipeline) execute(ctx context.Context, req Request, sqlText string) (executor.Result, error) {
	start := p.now()
	defer func() { observability.ObserveStageDuration("execute", p.now().Sub(start)) }()

	boundary, err := p.executors.Boundary(req.DatabaseID)
	if err != nil {
		return executor.Result{}, &Error{
			Kind:       KindExecutionFailed,
			Message:    "no executor configured for database",
			DatabaseID: req.DatabaseID,
			Query:      sqlText,
			Err:        err,
		}
	}
	result, err := boundary.Execute(ctx, executor.Request{
		SQL:     sqlText,
		MaxRows: req.MaxRows,
		Timeout: req.Timeout,
	})
	if err != nil {
		kind := KindExecutionFailed
		if errors.Is(err, executor.ErrPoolExhausted) {
			kind = KindResourceExhausted
		}
		return executor.Result{}, &Error{
			Kind:       kind,
			Message:    "execute query",
			DatabaseID: req.DatabaseID,
			Query:      sqlText,
			Err:        err,
		}
	}
	return result, nil
}

// recordTurn appends the answered question to conversation history. Failures
// are logged and swallowed: history is an enrichment, never a gate.
func (p *Pipeline) recordTurn(ctx context.Context, req Request, resp Response) {
	if p.history == nil || req.UserID == "" || req.SessionID == "" {
		return
	}
	_, err := p.history.AppendTurn(ctx, history.Turn{
		UserID:     req.UserID,
		SessionID:  req.SessionID,
		DatabaseID: req.DatabaseID,
		Question:   strings.TrimSpace(req.Question),
		SQL:        resp.SQL,
		Tables:     resp.Tables,
		RowCount:   resp.RowCount,
		DurationMs: resp.Duration.Milliseconds(),
	})
	if err != nil {
		p.logger.WarnContext(ctx, "append conversation turn failed", slog.String("error", err.Error()))
	}
}
