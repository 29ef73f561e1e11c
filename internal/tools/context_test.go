package tools

import (
	"context"
	"testing"
)

func TestSessionIDFromContext(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		want string
	}{
		{"empty when unset", context.Background(), ""},
		{"round trip", WithSessionID(context.Background(), "session_abc"), "session_abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SessionIDFromContext(tt.ctx); got != tt.want {
				t.Errorf("SessionIDFromContext() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserIDFromContext(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		want string
	}{
		{"empty when unset", context.Background(), ""},
		{"round trip", WithUserID(context.Background(), "user_1"), "user_1"},
		{"empty id ignored", WithUserID(WithUserID(context.Background(), "user_1"), ""), "user_1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserIDFromContext(tt.ctx); got != tt.want {
				t.Errorf("UserIDFromContext() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestContextKeysIndependent(t *testing.T) {
	ctx := WithSessionID(context.Background(), "session_abc")
	ctx = WithUserID(ctx, "user_1")

	if got := SessionIDFromContext(ctx); got != "session_abc" {
		t.Errorf("SessionIDFromContext() = %q", got)
	}
	if got := UserIDFromContext(ctx); got != "user_1" {
		t.Errorf("UserIDFromContext() = %q", got)
	}
}
