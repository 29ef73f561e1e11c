package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// echoTool records the arguments it was called with.
func echoTool(name string, calls *[]map[string]any, params ...Param) Tool {
	return Tool{
		Name:        name,
		Description: "echo " + name,
		Params:      params,
		Handler: func(_ context.Context, args map[string]any) Result {
			*calls = append(*calls, args)
			return Item(args)
		},
	}
}

func newTestRegistry(t *testing.T, tools ...Tool) *Registry {
	t.Helper()
	r, err := NewRegistry(nil, tools...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func TestRegistry_OrderIsStable(t *testing.T) {
	var calls []map[string]any
	r := newTestRegistry(t,
		echoTool("zeta", &calls),
		echoTool("alpha", &calls),
		echoTool("mid", &calls),
	)

	want := []string{"zeta", "alpha", "mid"}
	for i := 0; i < 5; i++ {
		if got := r.Names(); strings.Join(got, ",") != strings.Join(want, ",") {
			t.Fatalf("Names = %v, want %v", got, want)
		}
	}

	defs := r.List()
	chat := r.ChatTools()
	for i, name := range want {
		if defs[i].Name != name {
			t.Errorf("List[%d] = %s, want %s", i, defs[i].Name, name)
		}
		fn := chat[i]["function"].(map[string]any)
		if fn["name"] != name || chat[i]["type"] != "function" {
			t.Errorf("ChatTools[%d] = %v", i, chat[i])
		}
	}
}

func TestRegistry_RejectsBadDefinitions(t *testing.T) {
	var calls []map[string]any
	tests := []struct {
		name  string
		tools []Tool
	}{
		{"duplicate", []Tool{echoTool("a", &calls), echoTool("a", &calls)}},
		{"empty name", []Tool{echoTool("", &calls)}},
		{"nil handler", []Tool{{Name: "x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRegistry(nil, tt.tools...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRegistry_UnknownToolNeverDispatches(t *testing.T) {
	var calls []map[string]any
	r := newTestRegistry(t, echoTool("search_hotels", &calls))

	res, err := r.Invoke(context.Background(), "book_flight", map[string]any{"to": "DAC"})
	var ute *UnknownToolError
	if !errors.As(err, &ute) || ute.Name != "book_flight" {
		t.Fatalf("err = %v, want *UnknownToolError", err)
	}
	if res.Success || res.Error != "unknown tool: book_flight" {
		t.Errorf("result = %+v", res)
	}
	if len(calls) != 0 {
		t.Errorf("handler called %d times", len(calls))
	}
}

func TestRegistry_InvalidArguments(t *testing.T) {
	var calls []map[string]any
	r := newTestRegistry(t, echoTool("rooms", &calls,
		Param{Name: "hotel_id", Type: String, Required: true},
		Param{Name: "guests", Type: Integer, Minimum: bound(1), Maximum: bound(10)},
		Param{Name: "order", Type: String, Enum: []string{"asc", "desc"}},
	))

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing required", map[string]any{}, "hotel_id"},
		{"wrong type", map[string]any{"hotel_id": 42}, "hotel_id"},
		{"not an integer", map[string]any{"hotel_id": "h", "guests": 2.5}, "guests"},
		{"below minimum", map[string]any{"hotel_id": "h", "guests": 0}, "guests"},
		{"enum", map[string]any{"hotel_id": "h", "order": "sideways"}, "order"},
		{"unknown field", map[string]any{"hotel_id": "h", "pets": true}, "pets"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Invoke(context.Background(), "rooms", tt.args)
			var iae *InvalidArgumentsError
			if !errors.As(err, &iae) {
				t.Fatalf("err = %v, want *InvalidArgumentsError", err)
			}
			if iae.Tool != "rooms" || len(iae.Problems) == 0 {
				t.Errorf("error = %+v", iae)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.want)
			}
			if res.Success || res.Error == "" {
				t.Errorf("result = %+v", res)
			}
		})
	}
	if len(calls) != 0 {
		t.Errorf("handler reached with invalid arguments %d times", len(calls))
	}
}

func TestRegistry_DefaultsAndNulls(t *testing.T) {
	var calls []map[string]any
	r := newTestRegistry(t, echoTool("sorted", &calls,
		Param{Name: "city", Type: String},
		Param{Name: "sort_order", Type: String, Enum: []string{"low_to_high", "high_to_low"}, Default: "low_to_high"},
		Param{Name: "limit", Type: Integer, Default: 10},
	))

	_, err := r.Invoke(context.Background(), "sorted", map[string]any{"city": nil, "limit": 3})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	got := calls[0]
	if _, ok := got["city"]; ok {
		t.Error("null optional argument should be dropped")
	}
	if got["sort_order"] != "low_to_high" {
		t.Errorf("sort_order = %v, want default", got["sort_order"])
	}
	if got["limit"] != float64(3) {
		t.Errorf("limit = %#v, want 3 normalized to float64", got["limit"])
	}

	if _, err := r.Invoke(context.Background(), "sorted", nil); err != nil {
		t.Fatalf("nil args: %v", err)
	}
	if calls[1]["limit"] != float64(10) {
		t.Errorf("default limit = %#v", calls[1]["limit"])
	}
}

func TestRegistry_HandlerPanicBecomesEnvelope(t *testing.T) {
	r := newTestRegistry(t, Tool{
		Name: "boom",
		Handler: func(context.Context, map[string]any) Result {
			panic("nil map")
		},
	})
	res, err := r.Invoke(context.Background(), "boom", nil)
	if err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
	if res.Success || !strings.Contains(res.Error, "panicked") {
		t.Errorf("result = %+v", res)
	}
}

func TestToolParameters(t *testing.T) {
	tool := Tool{
		Name: "t",
		Params: []Param{
			{Name: "a", Type: String, Required: true, Description: "first"},
			{Name: "b", Type: Number, Minimum: bound(0)},
		},
	}
	p := tool.Parameters()
	if p["additionalProperties"] != false {
		t.Error("schema should reject unknown properties")
	}
	req := p["required"].([]string)
	if len(req) != 1 || req[0] != "a" {
		t.Errorf("required = %v", req)
	}
	props := p["properties"].(map[string]any)
	if props["b"].(map[string]any)["minimum"] != 0.0 {
		t.Errorf("b = %v", props["b"])
	}

	if empty := (Tool{Name: "none"}).Parameters(); len(empty["required"].([]string)) != 0 {
		t.Error("tools without params should have an empty required list")
	}
}

func TestResultJSON(t *testing.T) {
	tests := []struct {
		name string
		res  Result
		want string
	}{
		{"found", Found([]string{"a", "b"}), `{"success":true,"count":2,"data":["a","b"]}`},
		{"not found", NotFound("No hotels found"), `{"success":false,"data":[],"message":"No hotels found"}`},
		{"missing", Missing("Booking BK1 not found"), `{"success":false,"message":"Booking BK1 not found"}`},
		{"failed", Failed(errors.New("connection refused")), `{"success":false,"error":"connection refused"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.JSON(); got != tt.want {
				t.Errorf("JSON = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestContextIDs(t *testing.T) {
	ctx := context.Background()
	if UserIDFromContext(ctx) != "" || SessionIDFromContext(ctx) != "" {
		t.Error("empty context should carry no IDs")
	}
	ctx = WithUserID(WithSessionID(ctx, "session_abc"), "user-9")
	if UserIDFromContext(ctx) != "user-9" || SessionIDFromContext(ctx) != "session_abc" {
		t.Error("IDs not round-tripped")
	}
	if WithUserID(ctx, "") != ctx {
		t.Error("empty user ID should leave context unchanged")
	}
}
