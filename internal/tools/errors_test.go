package tools

import (
	"errors"
	"fmt"
	"testing"
)

func TestUnknownToolError(t *testing.T) {
	err := fmt.Errorf("dispatch: %w", &UnknownToolError{Name: "book_flight"})

	var target *UnknownToolError
	if !errors.As(err, &target) {
		t.Fatal("errors.As failed to match *UnknownToolError")
	}
	if target.Name != "book_flight" {
		t.Errorf("Name = %q", target.Name)
	}
	if got, want := target.Error(), "unknown tool: book_flight"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestInvalidArgumentsError(t *testing.T) {
	err := &InvalidArgumentsError{
		Tool:     "search_hotels",
		Problems: []string{"city is required", "max_price must be >= 0"},
	}
	want := "invalid arguments for search_hotels: city is required; max_price must be >= 0"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	var target *InvalidArgumentsError
	if !errors.As(fmt.Errorf("wrapped: %w", err), &target) || len(target.Problems) != 2 {
		t.Errorf("errors.As target = %+v", target)
	}
}
