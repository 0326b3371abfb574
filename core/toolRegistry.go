package core

import "fmt"

// ToolRegistry holds every capability available to the process. Workers
// never use it directly; each one gets a ToolRepo scoped to the tools it
// is allowed to call.
type ToolRegistry struct {
	tools map[string]ToolExecutor
}

func NewToolRegistry(executors ...ToolExecutor) *ToolRegistry {
	registry := &ToolRegistry{tools: make(map[string]ToolExecutor)}
	for _, executor := range executors {
		registry.RegisterTool(executor)
	}
	return registry
}

func (tr *ToolRegistry) RegisterTool(executor ToolExecutor) {
	tr.tools[executor.GetName()] = executor
}

func (tr *ToolRegistry) GetTool(name string) ToolExecutor {
	return tr.tools[name]
}

// Scope builds a ToolRepo that exposes only the named tools.
func (tr *ToolRegistry) Scope(names ...string) (*ToolRepo, error) {
	repo := NewToolRepo()
	for _, name := range names {
		tool := tr.GetTool(name)
		if tool == nil {
			return nil, fmt.Errorf("tool %s: %w", name, ErrToolNotFound)
		}
		repo.RegisterTool(tool)
	}
	return repo, nil
}
