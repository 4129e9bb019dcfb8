// Package pipeline orchestrates one natural-language-to-SQL request through
// generation, validation, optimization, and execution. The control flow is
// an explicit finite-state machine with a bounded retry budget: validation
// or execution failures loop back to generation until the budget is spent,
// then terminate with a well-formed error record. The caller never sees a
// raw fault.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/leapstack-labs/askdb/internal/optimize"
	"github.com/leapstack-labs/askdb/internal/validate"
)

// PlaceholderQuery substitutes for the candidate SQL when generation fails.
const PlaceholderQuery = "SELECT 1"

// DefaultMaxResults caps result rows when the request does not say.
const DefaultMaxResults = 100

// Retriever supplies ranked context snippets for a question.
type Retriever interface {
	RetrieveContext(ctx context.Context, question string) (schema []string, examples []string, err error)
}

// Generation is the outcome of one SQL generation attempt.
type Generation struct {
	SQL         string
	Explanation string
	Confidence  float64
	Complexity  string
}

// Generator produces candidate SQL for a question given retrieved context.
type Generator interface {
	GenerateSQL(ctx context.Context, question string, schema, examples []string) (Generation, error)
}

// Executor runs validated SQL against the relational store and enumerates
// the tables the store exposes.
type Executor interface {
	ExecuteQuery(ctx context.Context, sqlQuery string, maxRows int) ([]Row, error)
	ListTables(ctx context.Context) ([]string, error)
}

// Entry is one history record handed to the Recorder.
type Entry struct {
	Question      string
	SQLQuery      string
	RowCount      int
	ExecutionTime float64
	Confidence    float64
	Success       bool
	ErrorMessage  string
	Metadata      map[string]any
}

// Recorder persists run history. Writes are fire-and-forget: failures are
// logged by the pipeline and never block a run.
type Recorder interface {
	RecordQuery(ctx context.Context, entry Entry) error
}

// ProgressFunc receives ordered stage-progress notifications in streaming
// mode. sqlPreview is non-empty only at the generation stage.
type ProgressFunc func(stage string, percent int, sqlPreview string)

// Metadata summarizes a completed run.
type Metadata struct {
	Complexity          string `json:"complexity"`
	ValidationPassed    bool   `json:"validation_passed"`
	OptimizationApplied bool   `json:"optimization_applied"`
	RetryCount          int    `json:"retry_count"`
	SchemaContextCount  int    `json:"schema_context_count"`
	ExampleContextCount int    `json:"example_context_count"`
}

// Result is the final record surfaced to the caller.
type Result struct {
	SQLQuery        string   `json:"sql_query"`
	Results         []Row    `json:"results"`
	Explanation     string   `json:"explanation"`
	ConfidenceScore float64  `json:"confidence_score"`
	ExecutionTime   float64  `json:"execution_time"`
	Metadata        Metadata `json:"metadata"`
}

// Pipeline wires the collaborators into the state machine. It holds no
// per-request state; one Pipeline serves concurrent requests.
type Pipeline struct {
	retriever  Retriever
	generator  Generator
	executor   Executor
	recorder   Recorder
	logger     *slog.Logger
	maxRetries int
}

// Config holds pipeline construction options.
type Config struct {
	Retriever Retriever
	Generator Generator
	Executor  Executor
	Recorder  Recorder
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
	// MaxRetries is the generation retry ceiling (0 uses DefaultMaxRetries).
	MaxRetries int
}

// New creates a pipeline.
func New(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Pipeline{
		retriever:  cfg.Retriever,
		generator:  cfg.Generator,
		executor:   cfg.Executor,
		recorder:   cfg.Recorder,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Run executes the full state machine to completion and returns the final
// record. It never returns an error: terminal failures are folded into a
// well-formed Result with an error-prefixed explanation.
func (p *Pipeline) Run(ctx context.Context, req Request) Result {
	return p.run(ctx, req, nil)
}

// RunStreaming behaves like Run but additionally emits ordered
// stage-progress notifications as each stage completes.
func (p *Pipeline) RunStreaming(ctx context.Context, req Request, progress ProgressFunc) Result {
	return p.run(ctx, req, progress)
}

func (p *Pipeline) run(ctx context.Context, req Request, progress ProgressFunc) Result {
	if req.MaxResults <= 0 {
		req.MaxResults = DefaultMaxResults
	}

	state := State{
		Request:    req,
		Complexity: "unknown",
		MaxRetries: p.maxRetries,
	}
	stage := StageRetrieveContext

	p.logger.Info("starting pipeline run", "question", req.Question, "max_results", req.MaxResults)

	for {
		// A dropped caller abandons the run: no further stages, no further
		// notifications. In-flight collaborator calls are not forcibly
		// cancelled beyond ctx; their results are simply discarded.
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline run abandoned", "stage", string(stage), "reason", ctx.Err())
			state.ErrorMessage = fmt.Sprintf("run abandoned: %v", ctx.Err())
			state = p.handleError(state)
			return p.buildResult(state)
		default:
		}

		switch stage {
		case StageRetrieveContext:
			state = p.retrieveContext(ctx, state)
		case StageGenerateSQL:
			state = p.generateSQL(ctx, state)
		case StageValidateSQL:
			state = p.validateSQL(ctx, state)
		case StageOptimizeQuery:
			state = p.optimizeQuery(state)
		case StageExecuteQuery:
			state = p.executeQuery(ctx, state)
		case StageHandleError:
			state = p.handleError(state)
			return p.buildResult(state)
		case StageFinalizeResult:
			state = p.finalizeResult(state)
			p.emitProgress(ctx, progress, StageFinalizeResult, state)
			return p.buildResult(state)
		}

		p.emitProgress(ctx, progress, stage, state)

		nextStage := next(stage, state)
		if nextStage == StageGenerateSQL && stage != StageRetrieveContext {
			// Back-edge: spend one retry and clear the stage error so the
			// fresh attempt is judged on its own.
			state.RetryCount++
			state.ErrorMessage = ""
			p.logger.Info("retrying generation", "retry", state.RetryCount, "max_retries", state.MaxRetries)
		}
		stage = nextStage
	}
}

// emitProgress delivers a best-effort stage notification. Nothing is sent
// once the caller's context is gone.
func (p *Pipeline) emitProgress(ctx context.Context, progress ProgressFunc, stage Stage, s State) {
	if progress == nil || ctx.Err() != nil {
		return
	}
	percent, ok := progressPercent[stage]
	if !ok {
		return
	}
	preview := ""
	if stage == StageGenerateSQL {
		preview = s.SQLQuery
	}
	progress(string(stage), percent, preview)
}

func (p *Pipeline) retrieveContext(ctx context.Context, s State) State {
	p.logger.Debug("retrieving context", "question", s.Request.Question)

	schema, examples, err := p.retriever.RetrieveContext(ctx, s.Request.Question)
	if err != nil {
		p.logger.Error("context retrieval failed", "error", err)
		s.SchemaContext = nil
		s.ExampleContext = nil
		s.ErrorMessage = fmt.Sprintf("context retrieval failed: %v", err)
		return s
	}

	s.SchemaContext = schema
	s.ExampleContext = examples
	return s
}

func (p *Pipeline) generateSQL(ctx context.Context, s State) State {
	p.logger.Debug("generating SQL", "retry", s.RetryCount)

	gen, err := p.generator.GenerateSQL(ctx, s.Request.Question, s.SchemaContext, s.ExampleContext)
	if err != nil {
		p.logger.Error("SQL generation failed", "error", err)
		s.SQLQuery = PlaceholderQuery
		s.Explanation = ""
		s.Confidence = 0
		s.Complexity = "error"
		s.ErrorMessage = fmt.Sprintf("SQL generation failed: %v", err)
		return s
	}

	s.SQLQuery = gen.SQL
	s.Explanation = gen.Explanation
	s.Confidence = gen.Confidence
	s.Complexity = gen.Complexity
	return s
}

func (p *Pipeline) validateSQL(ctx context.Context, s State) State {
	p.logger.Debug("validating SQL", "sql", s.SQLQuery)

	tables, err := p.executor.ListTables(ctx)
	if err != nil {
		p.logger.Error("table listing failed", "error", err)
		s.ValidationPassed = false
		s.ValidationErrors = []string{fmt.Sprintf("validation error: %v", err)}
		s.ValidationWarnings = nil
		return s
	}

	known := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		known[strings.ToLower(t)] = struct{}{}
	}

	result := validate.Validate(s.SQLQuery, known)
	s.ValidationPassed = result.IsValid
	s.ValidationErrors = result.Errors
	s.ValidationWarnings = result.Warnings

	if !result.IsValid {
		p.logger.Info("validation failed", "errors", result.Errors, "retry", s.RetryCount)
	}
	return s
}

func (p *Pipeline) optimizeQuery(s State) State {
	p.logger.Debug("optimizing query", "sql", s.SQLQuery)

	result := optimize.Optimize(s.SQLQuery)
	s.OptimizedQuery = result.Optimized
	s.OptimizationApplied = result.Applied
	return s
}

func (p *Pipeline) executeQuery(ctx context.Context, s State) State {
	query := s.OptimizedQuery
	if query == "" {
		query = s.SQLQuery
	}

	p.logger.Debug("executing query", "sql", query, "max_rows", s.Request.MaxResults)

	start := time.Now()
	rows, err := p.executor.ExecuteQuery(ctx, query, s.Request.MaxResults)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		p.logger.Error("query execution failed", "error", err)
		s.Results = nil
		s.ExecutionTime = 0
		s.ErrorMessage = fmt.Sprintf("query execution failed: %v", err)
		p.record(ctx, s, query, 0, 0, false, err.Error())
		return s
	}

	s.Results = rows
	s.ExecutionTime = elapsed
	p.record(ctx, s, query, len(rows), elapsed, true, "")
	return s
}

// record hands a history snapshot to the recorder. Recorder failures are
// logged and otherwise ignored.
func (p *Pipeline) record(ctx context.Context, s State, query string, rowCount int, elapsed float64, success bool, errMsg string) {
	if p.recorder == nil {
		return
	}

	entry := Entry{
		Question:      s.Request.Question,
		SQLQuery:      query,
		RowCount:      rowCount,
		ExecutionTime: elapsed,
		Confidence:    s.Confidence,
		Success:       success,
		ErrorMessage:  errMsg,
		Metadata: map[string]any{
			"complexity":  s.Complexity,
			"retry_count": s.RetryCount,
		},
	}
	if err := p.recorder.RecordQuery(ctx, entry); err != nil {
		p.logger.Error("failed to record query history", "error", err)
	}
}

// handleError produces the terminal error record. It never raises: whatever
// went wrong, the caller receives a well-formed result.
func (p *Pipeline) handleError(s State) State {
	message := s.ErrorMessage
	if message == "" {
		if len(s.ValidationErrors) > 0 {
			message = fmt.Sprintf("SQL validation failed: %s", strings.Join(s.ValidationErrors, "; "))
		} else {
			message = "unknown error occurred"
		}
	}

	p.logger.Error("handling pipeline error", "error", message, "retry_count", s.RetryCount)

	s.Results = nil
	s.ExecutionTime = 0
	s.Explanation = "Error: " + message
	s.ErrorMessage = message
	return s
}

// finalizeResult selects the query that actually ran and attaches the
// metadata summary.
func (p *Pipeline) finalizeResult(s State) State {
	if s.OptimizedQuery != "" {
		s.SQLQuery = s.OptimizedQuery
	}
	p.logger.Info("pipeline run completed",
		"sql", s.SQLQuery,
		"rows", len(s.Results),
		"retry_count", s.RetryCount,
	)
	return s
}

func (p *Pipeline) buildResult(s State) Result {
	results := s.Results
	if results == nil {
		results = []Row{}
	}
	return Result{
		SQLQuery:        s.SQLQuery,
		Results:         results,
		Explanation:     s.Explanation,
		ConfidenceScore: s.Confidence,
		ExecutionTime:   s.ExecutionTime,
		Metadata: Metadata{
			Complexity:          s.Complexity,
			ValidationPassed:    s.ValidationPassed,
			OptimizationApplied: s.OptimizationApplied,
			RetryCount:          s.RetryCount,
			SchemaContextCount:  len(s.SchemaContext),
			ExampleContextCount: len(s.ExampleContext),
		},
	}
}
