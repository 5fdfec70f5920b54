package pipeline

// State is a position in the run state machine.
type State string

const (
	StateInit         State = "INIT"
	StateConfigLoaded State = "CONFIG_LOADED"
	StateContextReady State = "CONTEXT_READY"
	StateFetching     State = "FETCHING"
	StateBuilt        State = "BUILT"
	StatePublishing   State = "PUBLISHING"
	StateCleaning     State = "CLEANING"
	StateDone         State = "DONE"
	StateFailed       State = "FAILED"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

// StageName identifies a pipeline stage.
type StageName string

const (
	StageConfig  StageName = "config"
	StageContext StageName = "context"
	StagePlan    StageName = "plan"
	StageFetch   StageName = "fetch"
	StageBuild   StageName = "build"
	StagePublish StageName = "publish"
	StageCleanup StageName = "cleanup"
)

// Result is the outcome of a stage or of one unit inside it.
type Result string

const (
	ResultSuccess  Result = "success"
	ResultFailed   Result = "failed"
	ResultSkipped  Result = "skipped"
	ResultCanceled Result = "canceled"
)

// Outcome is the final result of a run.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)
