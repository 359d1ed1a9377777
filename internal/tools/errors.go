package tools

import "fmt"

// UnknownToolError is returned when an execution targets a tool that is
// not present in the registry. This is a capability mismatch, not a
// transient failure: the agent loop converts it into a synthetic
// observation so the model can recover, rather than aborting the run.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("tool %q is not available", e.Name)
}
