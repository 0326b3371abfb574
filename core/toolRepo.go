package core

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
)

// ToolExecutor is a capability a worker can call by name.
type ToolExecutor interface {
	GetName() string
	GetDescription() string
	Execute(ctx context.Context, input string) (string, error)
	GetToolDescriptor() ToolDescriptor
}

func NewToolRepo() *ToolRepo {
	return &ToolRepo{
		tools: make(map[string]ToolExecutor),
	}
}

// ToolRepo is the set of tools a single worker may call.
type ToolRepo struct {
	tools map[string]ToolExecutor
}

func (repo *ToolRepo) RegisterTool(tool ToolExecutor) {
	repo.tools[tool.GetName()] = tool
}

// ListToolDescriptors returns the descriptors sorted by name so prompts
// are stable across runs.
func (repo *ToolRepo) ListToolDescriptors() []ToolDescriptor {
	names := slices.Sorted(maps.Keys(repo.tools))
	list := make([]ToolDescriptor, 0, len(names))
	for _, name := range names {
		list = append(list, repo.tools[name].GetToolDescriptor())
	}
	return list
}

func (repo *ToolRepo) GetTool(name string) ToolExecutor {
	return repo.tools[name]
}

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// NewInbuiltTooExecutor wraps handler, a func(context.Context, In) (Out, error),
// as a ToolExecutor whose parameter schema is reflected from In.
func NewInbuiltTooExecutor(name string, description string, handler any) (ToolExecutor, error) {
	fn := reflect.ValueOf(handler)
	if fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("tool %s: handler must be a function, got %T", name, handler)
	}
	ft := fn.Type()
	if ft.NumIn() != 2 || ft.In(0) != contextType {
		return nil, fmt.Errorf("tool %s: handler must take (context.Context, input)", name)
	}
	if ft.NumOut() != 2 || ft.Out(1) != errorType {
		return nil, fmt.Errorf("tool %s: handler must return (result, error)", name)
	}

	inputType := ft.In(1)
	schema, err := GetSchema(reflect.New(inputType).Interface())
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}
	params, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("tool %s: encode schema: %w", name, err)
	}
	return &InbuiltToolExecutor{
		descriptor: ToolDescriptor{Name: name, Description: description, Parameters: params},
		inputType:  inputType,
		handler:    fn,
	}, nil
}

// InbuiltToolExecutor adapts a typed Go function to ToolExecutor.
type InbuiltToolExecutor struct {
	descriptor ToolDescriptor
	inputType  reflect.Type
	handler    reflect.Value
}

func (e *InbuiltToolExecutor) GetName() string {
	return e.descriptor.Name
}

func (e *InbuiltToolExecutor) GetDescription() string {
	return e.descriptor.Description
}

func (e *InbuiltToolExecutor) GetToolDescriptor() ToolDescriptor {
	return e.descriptor
}

// Execute decodes input into the handler's parameter type and calls it.
// Errors returned by the handler are reported in the output, not as a
// Go error, so the calling loop can observe them.
func (e *InbuiltToolExecutor) Execute(ctx context.Context, input string) (string, error) {
	in := reflect.New(e.inputType)
	if err := json.Unmarshal([]byte(input), in.Interface()); err != nil {
		return "", fmt.Errorf("tool %s: decode input: %w", e.descriptor.Name, err)
	}

	out := e.handler.Call([]reflect.Value{reflect.ValueOf(ctx), in.Elem()})
	if err, _ := out[1].Interface().(error); err != nil {
		return "error :" + err.Error(), nil
	}
	switch v := out[0].Interface().(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("tool %s: encode result: %w", e.descriptor.Name, err)
		}
		return string(b), nil
	}
}
