// Package steps defines the thinking-step model for agent runs: the
// discrete, timestamped units of visible progress (reasoning, acting,
// observing, error, done) that a run streams to observers and returns
// in its final result.
package steps

import "time"

// Type classifies a thinking step.
type Type string

const (
	// TypeReasoning is rationale text produced before deciding on an action.
	TypeReasoning Type = "reasoning"
	// TypeActing records a tool invocation request.
	TypeActing Type = "acting"
	// TypeObserving records a tool's (possibly truncated) output.
	TypeObserving Type = "observing"
	// TypeError records a recoverable or terminal failure inside the run.
	TypeError Type = "error"
	// TypeDone marks the end of a run.
	TypeDone Type = "done"
)

// Step is one unit of agent progress. Steps are append-only and owned
// by a single run; they are produced strictly in execution order.
type Step struct {
	Type      Type      `json:"type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// Tool fields are set for acting/observing steps.
	ToolName   string `json:"tool_name,omitempty"`
	ToolInput  string `json:"tool_input,omitempty"`
	ToolOutput string `json:"tool_output,omitempty"`
}

// Observer receives steps synchronously in emission order. Observers
// must be cheap (append to a slice, forward to a buffered channel);
// anything expensive should be deferred by the observer itself, since
// the run does not proceed until every observer has returned.
type Observer func(Step)

// Emitter delivers steps to a fixed set of observers and records them
// in order. One Emitter belongs to exactly one run; runs are strictly
// sequential, so the Emitter is not safe for concurrent use and does
// not need to be.
type Emitter struct {
	observers []Observer
	recorded  []Step
}

// NewEmitter creates an emitter delivering to the given observers.
// Nil observers are skipped. The observer set is fixed for the run.
func NewEmitter(observers ...Observer) *Emitter {
	e := &Emitter{}
	for _, o := range observers {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
	return e
}

// Emit stamps the step (if the caller left Timestamp zero), records it,
// and delivers it to every observer before returning. The record and
// the delivery stream can never disagree: both see the same steps in
// the same order.
func (e *Emitter) Emit(s Step) {
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now().UTC()
	}
	e.recorded = append(e.recorded, s)
	for _, o := range e.observers {
		o(s)
	}
}

// Steps returns a copy of every step emitted so far, in order.
func (e *Emitter) Steps() []Step {
	out := make([]Step, len(e.recorded))
	copy(out, e.recorded)
	return out
}
