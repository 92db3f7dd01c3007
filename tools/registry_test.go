package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type stubTool struct {
	name   string
	schema Schema
	fn     func(ctx context.Context, args map[string]any) (Result, error)
}

func (t *stubTool) Name() string        { return t.name }
func (t *stubTool) Description() string { return "stub" }
func (t *stubTool) Schema() Schema      { return t.schema }
func (t *stubTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	return t.fn(ctx, args)
}

func TestRegistryExecute(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(&stubTool{
		name:   "echo",
		schema: Schema{Fields: []Field{{Name: "value", Type: TypeString, Required: true}}},
		fn: func(_ context.Context, args map[string]any) (Result, error) {
			return Result{Text: args["value"].(string)}, nil
		},
	})

	out := reg.Execute(context.Background(), "echo", map[string]any{"value": "hi"})
	if !out.OK || out.Text != "hi" {
		t.Fatalf("Execute() = %+v, want ok text hi", out)
	}
}

func TestRegistryExecuteSchemaViolation(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(&stubTool{
		name:   "echo",
		schema: Schema{Fields: []Field{{Name: "value", Type: TypeString, Required: true}}},
		fn: func(context.Context, map[string]any) (Result, error) {
			t.Fatal("tool must not run on invalid args")
			return Result{}, nil
		},
	})

	out := reg.Execute(context.Background(), "echo", map[string]any{"value": 7})
	if out.OK || out.Code != FailureSchemaViolation {
		t.Fatalf("Execute() = %+v, want schema_violation failure", out)
	}
}

func TestRegistryExecuteUnknownTool(t *testing.T) {
	t.Parallel()

	out := NewRegistry().Execute(context.Background(), "nope", nil)
	if out.OK || out.Code != FailureNotFound {
		t.Fatalf("Execute() = %+v, want tool_not_found failure", out)
	}
}

func TestRegistryExecuteErrorBecomesOutcome(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(&stubTool{
		name:   "boom",
		schema: Schema{},
		fn: func(context.Context, map[string]any) (Result, error) {
			return Result{}, errors.New("network unreachable")
		},
	})

	out := reg.Execute(context.Background(), "boom", nil)
	if out.OK || out.Code != FailureExecution {
		t.Fatalf("Execute() = %+v, want tool_execution_failure", out)
	}
	if !strings.Contains(out.Message, "network unreachable") {
		t.Fatalf("Message = %q, want cause included", out.Message)
	}
}

func TestRegistryExecuteRecoversPanic(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(&stubTool{
		name:   "panicky",
		schema: Schema{},
		fn: func(context.Context, map[string]any) (Result, error) {
			panic("oops")
		},
	})

	out := reg.Execute(context.Background(), "panicky", nil)
	if out.OK || out.Code != FailureExecution {
		t.Fatalf("Execute() = %+v, want tool_execution_failure", out)
	}
}

func TestDeclarationsFiltersDisallowed(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	for _, name := range []string{"a_tool", "b_tool"} {
		name := name
		reg.Register(&stubTool{name: name, schema: Schema{}, fn: func(context.Context, map[string]any) (Result, error) {
			return Result{}, nil
		}})
	}

	decls := reg.Declarations(map[string]bool{"a_tool": true})
	if len(decls) != 1 || decls[0].Name != "b_tool" {
		t.Fatalf("Declarations() = %+v, want only b_tool", decls)
	}
}
