package prompts

import (
	"strings"
	"testing"
)

func TestSystemPrompt(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		userID   string
		contains []string
		excludes []string
	}{
		{
			name:     "default without user",
			contains: []string{"GoTravel", "create_booking"},
			excludes: []string{"Current User"},
		},
		{
			name:     "default with user",
			userID:   "user-42",
			contains: []string{"GoTravel", `"user-42"`, "user_id"},
		},
		{
			name:     "custom base",
			base:     "Answer in Bangla.",
			userID:   "u1",
			contains: []string{"Answer in Bangla.", `"u1"`},
			excludes: []string{"GoTravel"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SystemPrompt(tt.base, tt.userID)
			for _, s := range tt.contains {
				if !strings.Contains(got, s) {
					t.Errorf("prompt missing %q", s)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(got, s) {
					t.Errorf("prompt should not contain %q", s)
				}
			}
		})
	}
}

func TestIterationCapPrompt(t *testing.T) {
	got := IterationCapPrompt([]string{"search_hotels", "get_weather"})
	if !strings.Contains(got, "search_hotels, get_weather") {
		t.Errorf("prompt = %q", got)
	}
	if strings.Contains(IterationCapPrompt(nil), "already called") {
		t.Error("empty tool list should not mention prior calls")
	}
}
