package tools

import (
	"fmt"
	"strings"
)

// UnknownToolError is returned when a call names a tool that is not
// registered. The registry never reaches a collaborator in this case.
type UnknownToolError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %s", e.Name)
}

// InvalidArgumentsError is returned when arguments do not satisfy the
// tool's schema. Problems holds one entry per violation.
type InvalidArgumentsError struct {
	Tool     string
	Problems []string
}

// Error implements the error interface.
func (e *InvalidArgumentsError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, strings.Join(e.Problems, "; "))
}
