package schemas

// StepAction is the closed set of actions a flow step can perform. The planner
// authors steps against this union; the executor matches on it exhaustively so
// a new action is a compile-time-visible change.
type StepAction string

const (
	ActionNavigate   StepAction = "navigate"
	ActionClick      StepAction = "click"
	ActionFill       StepAction = "fill"
	ActionAssert     StepAction = "assert"
	ActionWait       StepAction = "wait"
	ActionScreenshot StepAction = "screenshot"
)

// FlowStep is a single instruction inside a flow. Selector and Value are
// optional depending on the action.
type FlowStep struct {
	Action      StepAction `json:"action"`
	Selector    string     `json:"selector,omitempty"`
	Value       string     `json:"value,omitempty"`
	Description string     `json:"description"`
}

// FlowPlan is an ordered, named sequence of steps authored by the external
// planning API. It is read-only input: the executor never rewrites a plan, it
// only tolerates selector drift at resolution time.
type FlowPlan struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Priority  int        `json:"priority"`
	Reasoning string     `json:"reasoning"`
	Steps     []FlowStep `json:"steps"`
}

// FlowStatus is the terminal state of one (flow, viewport) execution.
type FlowStatus string

const (
	FlowPassed FlowStatus = "passed"
	FlowFailed FlowStatus = "failed"
)

// StepStatus is the terminal state of one executed step.
type StepStatus string

const (
	StepPassed StepStatus = "passed"
	StepFailed StepStatus = "failed"
)

// StepResult records what happened to a single step.
type StepResult struct {
	Description string     `json:"description"`
	Status      StepStatus `json:"status"`
	DurationMs  int64      `json:"duration_ms"`
	Error       string     `json:"error,omitempty"`
}

// ResultPayload is produced exactly once per (flow, viewport) execution and is
// immutable once returned. Flows skipped by budget exhaustion have no payload.
type ResultPayload struct {
	FlowName       string       `json:"flow_name"`
	Status         FlowStatus   `json:"status"`
	DurationMs     int64        `json:"duration_ms"`
	ErrorMessage   string       `json:"error_message,omitempty"`
	Steps          []StepResult `json:"steps"`
	ScreenshotURLs []string     `json:"screenshot_urls"`
	Viewport       string       `json:"viewport,omitempty"`
}
