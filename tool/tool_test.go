package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/agentcore/internal/util"
)

// -------------------- Schema & Validation Tests --------------------

type sampleSchema struct {
	A string `json:"a" description:"Field A"`
	B *int   `json:"b" description:"Optional pointer field"`
	C int    `json:"c,omitempty" description:"Omit empty field"`
}

func TestCreateSchema(t *testing.T) {
	schema := util.CreateSchema(sampleSchema{})
	props, ok := schema["properties"].(map[string]any)
	assert.True(t, ok)
	// Properties present
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
	assert.Contains(t, props, "c")
	// Required only includes non-pointer, non-omitempty exported fields
	req, _ := schema["required"].([]string)
	assert.ElementsMatch(t, []string{"a"}, req)
}

func TestValidateArguments(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
		},
		// Use []any to mirror possible JSON decoded schema shape
		"required": []any{"x"},
	}

	// Success
	err := util.ValidateArguments(map[string]any{"x": 5}, schema)
	assert.NoError(t, err)

	// JSON decoding always produces float64; whole values count as integers
	err = util.ValidateArguments(map[string]any{"x": 5.0}, schema)
	assert.NoError(t, err)

	// Missing required
	err = util.ValidateArguments(map[string]any{}, schema)
	assert.Error(t, err)
	if vErr, ok := err.(*ValidationError); ok {
		assert.Equal(t, "x", vErr.Field)
	} else {
		t.Fatalf("expected ValidationError, got %T", err)
	}

	// Wrong type
	err = util.ValidateArguments(map[string]any{"x": "not-int"}, schema)
	assert.Error(t, err)
	if vErr, ok := err.(*ValidationError); ok {
		assert.Contains(t, vErr.Message, "expected type integer")
	} else {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

func TestValidateArguments_Enum(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"op": map[string]any{"type": "string", "enum": []any{"add", "sub"}},
		},
	}

	assert.NoError(t, util.ValidateArguments(map[string]any{"op": "add"}, schema))

	err := util.ValidateArguments(map[string]any{"op": "mul"}, schema)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not in enum")
}

// -------------------- FunctionTool Tests --------------------

func TestFunctionTool_Success(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}

	sumTool := NewFunctionTool("sum", "Add numbers", params, func(_ context.Context, args map[string]any) (any, error) {
		a := args["a"].(float64)
		b := args["b"].(float64)
		return a + b, nil
	})

	result, err := sumTool.Call(context.Background(), map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
		},
		"required": []any{"a"},
	}
	tTool := NewFunctionTool("test", "Test", params, func(_ context.Context, _ map[string]any) (any, error) {
		return 0, nil
	})
	_, err := tTool.Call(context.Background(), map[string]any{})
	assert.Error(t, err)
	toolErr, ok := err.(*ToolError)
	assert.True(t, ok)
	assert.Equal(t, CodeValidationError, toolErr.Code)
}

func TestFunctionTool_ExecutionErrorWrapped(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	failing := NewFunctionTool("fail", "Always fails", params, func(_ context.Context, _ map[string]any) (any, error) {
		return nil, errors.New("disk on fire")
	})

	_, err := failing.Call(context.Background(), map[string]any{})
	toolErr, ok := err.(*ToolError)
	assert.True(t, ok)
	assert.Equal(t, CodeExecutionError, toolErr.Code)
	assert.Contains(t, toolErr.Message, "disk on fire")
}

func TestFunctionTool_CustomToolErrorPassthrough(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	custom := NewToolError("quota", "limit reached", "QUOTA_EXCEEDED")
	quotaTool := NewFunctionTool("quota", "Quota check", params, func(_ context.Context, _ map[string]any) (any, error) {
		return nil, custom
	})

	_, err := quotaTool.Call(context.Background(), map[string]any{})
	toolErr, ok := err.(*ToolError)
	assert.True(t, ok)
	assert.Equal(t, "QUOTA_EXCEEDED", toolErr.Code)
}

// -------------------- Registry Tests --------------------

func noopTool(name string) *FunctionTool {
	return NewFunctionTool(name, "noop", map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ context.Context, _ map[string]any) (any, error) { return name, nil })
}

func TestRegistry_OrderAndLookup(t *testing.T) {
	r := NewRegistry(noopTool("alpha"), noopTool("beta"))
	r.Register(noopTool("gamma"))

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, r.Names())

	_, ok := r.Get("beta")
	assert.True(t, ok)
	_, ok = r.Get("delta")
	assert.False(t, ok)
}

func TestRegistry_ReplaceKeepsOrder(t *testing.T) {
	r := NewRegistry(noopTool("alpha"), noopTool("beta"))
	r.Register(noopTool("alpha"))

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"alpha", "beta"}, r.Names())
}

func TestRegistry_Definitions(t *testing.T) {
	r := NewRegistry(noopTool("alpha"), noopTool("beta"))
	defs := r.Definitions()

	assert.Len(t, defs, 2)
	assert.Equal(t, "alpha", defs[0].Name)
	assert.Equal(t, "beta", defs[1].Name)
	assert.Equal(t, "noop", defs[0].Description)
	assert.NotNil(t, defs[0].Parameters)
}
