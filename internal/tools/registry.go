package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/nugget/gotravel-agent/internal/tools"

type entry struct {
	tool   Tool
	schema *jsonschema.Schema
}

// Registry is an immutable, ordered set of tools. It is safe for
// concurrent use.
type Registry struct {
	ordered []*entry
	byName  map[string]*entry
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewRegistry compiles each tool's schema and returns a registry that
// lists tools in the given order. Duplicate names and schemas that do
// not compile are errors.
func NewRegistry(logger *slog.Logger, tools ...Tool) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		byName: make(map[string]*entry, len(tools)),
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
	for _, t := range tools {
		if t.Name == "" {
			return nil, errors.New("tool with empty name")
		}
		if t.Handler == nil {
			return nil, fmt.Errorf("tool %s: nil handler", t.Name)
		}
		if _, dup := r.byName[t.Name]; dup {
			return nil, fmt.Errorf("duplicate tool name: %s", t.Name)
		}
		raw, err := json.Marshal(t.Parameters())
		if err != nil {
			return nil, fmt.Errorf("tool %s: marshal schema: %w", t.Name, err)
		}
		schema, err := jsonschema.CompileString(t.Name+".schema.json", string(raw))
		if err != nil {
			return nil, fmt.Errorf("tool %s: compile schema: %w", t.Name, err)
		}
		e := &entry{tool: t, schema: schema}
		r.ordered = append(r.ordered, e)
		r.byName[t.Name] = e
	}
	return r, nil
}

// List returns tool definitions in registration order.
func (r *Registry) List() []Definition {
	defs := make([]Definition, len(r.ordered))
	for i, e := range r.ordered {
		defs[i] = e.tool.Definition()
	}
	return defs
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.ordered))
	for i, e := range r.ordered {
		names[i] = e.tool.Name
	}
	return names
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// ChatTools returns the function-calling declarations sent to the model
// on every request.
func (r *Registry) ChatTools() []map[string]any {
	out := make([]map[string]any, len(r.ordered))
	for i, e := range r.ordered {
		out[i] = map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        e.tool.Name,
				"description": e.tool.Description,
				"parameters":  e.tool.Parameters(),
			},
		}
	}
	return out
}

// Invoke validates args and runs the named tool. The returned Result is
// always usable as an observation. The error is non-nil only for
// [*UnknownToolError] and [*InvalidArgumentsError]; in both cases the
// handler was not called.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (Result, error) {
	ctx, span := r.tracer.Start(ctx, "tool.invoke",
		trace.WithAttributes(attribute.String("tool.name", name)))
	defer span.End()

	e, ok := r.byName[name]
	if !ok {
		err := &UnknownToolError{Name: name}
		span.SetStatus(codes.Error, err.Error())
		r.logger.Warn("unknown tool requested", "tool", name)
		return Failed(err), err
	}

	normalized, err := e.prepare(args)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		r.logger.Warn("tool arguments rejected", "tool", name, "error", err)
		return Failed(err), err
	}

	start := time.Now()
	res := e.run(ctx, normalized)
	elapsed := time.Since(start)

	span.SetAttributes(attribute.Bool("tool.success", res.Success))
	if res.Error != "" {
		span.SetStatus(codes.Error, res.Error)
		r.logger.Warn("tool failed", "tool", name, "error", res.Error, "elapsed", elapsed.Round(time.Millisecond))
	} else {
		r.logger.Debug("tool completed",
			"tool", name,
			"success", res.Success,
			"count", res.Count,
			"elapsed", elapsed.Round(time.Millisecond),
		)
	}
	return res, nil
}

// prepare drops null arguments, fills defaults, normalizes values to
// their JSON forms, and validates against the compiled schema.
func (e *entry) prepare(args map[string]any) (map[string]any, error) {
	merged := make(map[string]any, len(e.tool.Params))
	for k, v := range args {
		if v != nil {
			merged[k] = v
		}
	}
	for _, p := range e.tool.Params {
		if _, set := merged[p.Name]; !set && p.Default != nil {
			merged[p.Name] = p.Default
		}
	}

	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, &InvalidArgumentsError{Tool: e.tool.Name, Problems: []string{err.Error()}}
	}
	var normalized map[string]any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return nil, &InvalidArgumentsError{Tool: e.tool.Name, Problems: []string{err.Error()}}
	}

	if err := e.schema.Validate(normalized); err != nil {
		return nil, &InvalidArgumentsError{Tool: e.tool.Name, Problems: schemaProblems(err)}
	}
	return normalized, nil
}

func (e *entry) run(ctx context.Context, args map[string]any) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			res = Failed(fmt.Errorf("tool %s panicked: %v", e.tool.Name, p))
		}
	}()
	return e.tool.Handler(ctx, args)
}

// schemaProblems flattens a validation error to its leaf causes.
func schemaProblems(err error) []string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	var out []string
	var walk func(*jsonschema.ValidationError)
	walk = func(v *jsonschema.ValidationError) {
		if len(v.Causes) == 0 {
			loc := strings.TrimPrefix(v.InstanceLocation, "/")
			if loc == "" {
				out = append(out, v.Message)
			} else {
				out = append(out, loc+": "+v.Message)
			}
			return
		}
		for _, c := range v.Causes {
			walk(c)
		}
	}
	walk(ve)
	return out
}

// bind decodes validated arguments into a typed struct.
func bind[T any](args map[string]any) (T, error) {
	var out T
	raw, err := json.Marshal(args)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(raw, &out)
	return out, err
}
