package tools

import (
	"encoding/json"
)

// Result is the envelope every tool returns.
//
//   - success with data: Success, Count (for lists), Data
//   - well-formed query, nothing found: Success=false, Message
//   - collaborator failure: Success=false, Error
type Result struct {
	Success   bool   `json:"success"`
	SortOrder string `json:"sort_order,omitempty"`
	Count     int    `json:"count,omitempty"`
	Data      any    `json:"data,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Found wraps a non-empty list.
func Found[T any](items []T) Result {
	return Result{Success: true, Count: len(items), Data: items}
}

// Item wraps a single record.
func Item(data any) Result {
	return Result{Success: true, Data: data}
}

// NotFound reports a well-formed search that matched nothing. The empty
// data list keeps the shape of a successful search.
func NotFound(message string) Result {
	return Result{Success: false, Message: message, Data: []any{}}
}

// Missing reports a single-item lookup or mutation whose target does
// not exist.
func Missing(message string) Result {
	return Result{Success: false, Message: message}
}

// Failed reports a collaborator failure.
func Failed(err error) Result {
	return Result{Success: false, Error: err.Error()}
}

// JSON renders the envelope as the observation text given to the model.
func (r Result) JSON() string {
	b, err := json.Marshal(r)
	if err != nil {
		fb, _ := json.Marshal(Result{Success: false, Error: "encode result: " + err.Error()})
		return string(fb)
	}
	return string(b)
}
