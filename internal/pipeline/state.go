package pipeline

// Stage identifies one node of the pipeline state machine.
type Stage string

// Pipeline stages. RetrieveContext is the entry point; HandleError and
// FinalizeResult are terminal.
const (
	StageRetrieveContext Stage = "retrieve_context"
	StageGenerateSQL     Stage = "generate_sql"
	StageValidateSQL     Stage = "validate_sql"
	StageOptimizeQuery   Stage = "optimize_query"
	StageExecuteQuery    Stage = "execute_query"
	StageHandleError     Stage = "handle_error"
	StageFinalizeResult  Stage = "finalize_result"
)

// DefaultMaxRetries bounds how often generation is re-attempted within one
// request. With the default of 2 a request makes at most 3 generation
// attempts.
const DefaultMaxRetries = 2

// progressPercent maps each stage to the percentage emitted when the stage
// completes in streaming mode.
var progressPercent = map[Stage]int{
	StageRetrieveContext: 20,
	StageGenerateSQL:     40,
	StageValidateSQL:     60,
	StageOptimizeQuery:   70,
	StageExecuteQuery:    90,
	StageFinalizeResult:  100,
}

// Request is the immutable input that creates one pipeline run.
type Request struct {
	Question           string
	DatabaseContext    string
	IncludeExplanation bool
	MaxResults         int
}

// State is the per-request record threaded through every stage. Each stage
// receives it by value and returns an updated copy, keeping concurrent
// requests trivially isolated.
type State struct {
	Request Request

	SchemaContext  []string
	ExampleContext []string

	SQLQuery    string
	Explanation string
	Confidence  float64
	Complexity  string

	ValidationPassed   bool
	ValidationErrors   []string
	ValidationWarnings []string

	OptimizedQuery      string
	OptimizationApplied bool

	Results       []Row
	ExecutionTime float64

	ErrorMessage string
	RetryCount   int
	MaxRetries   int
}

// Row is one result record from the relational store.
type Row = map[string]any

// next is the pure transition function of the state machine: given the
// stage that just finished and the state it produced, it decides where the
// run goes.
func next(stage Stage, s State) Stage {
	switch stage {
	case StageRetrieveContext:
		return StageGenerateSQL

	case StageGenerateSQL:
		return StageValidateSQL

	case StageValidateSQL:
		if s.ErrorMessage != "" {
			return StageHandleError
		}
		if !s.ValidationPassed {
			if s.RetryCount < s.MaxRetries {
				return StageGenerateSQL
			}
			return StageHandleError
		}
		return StageOptimizeQuery

	case StageOptimizeQuery:
		return StageExecuteQuery

	case StageExecuteQuery:
		if s.ErrorMessage != "" {
			if s.RetryCount < s.MaxRetries {
				return StageGenerateSQL
			}
			return StageHandleError
		}
		return StageFinalizeResult

	default:
		// Terminal stages have no successor.
		return stage
	}
}
