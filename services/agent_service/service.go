package agent_service

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"polycode/supervisor-app/config"
	"polycode/supervisor-app/core"
	"polycode/supervisor-app/gemini"
	"polycode/supervisor-app/store"
	"polycode/supervisor-app/tools"
)

const (
	researcherDescription = "Searches the web for facts and current information. Cannot do math."
	researcherContext     = "You are a researcher. DO NOT do any math."
	coderDescription      = "Writes and executes JavaScript to compute results and do math."
	coderContext          = "You are a coder. Solve the task by writing JavaScript and running it with the run_code tool. Report the computed values."
)

// Service runs supervisor-routed conversations and records their
// transcripts.
type Service struct {
	graph  *core.Graph
	store  store.RunStore
	logger *slog.Logger
}

func NewService(graph *core.Graph, runStore store.RunStore, logger *slog.Logger) *Service {
	if runStore == nil {
		runStore = store.NewMemoryStore()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{graph: graph, store: runStore, logger: logger}
}

// New builds the complete service from configuration. cfg must already be
// validated.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Service, error) {
	llm, err := gemini.NewGemini(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	registry, err := NewToolRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}
	graph, err := NewGraph(cfg, llm, llm, registry, logger)
	if err != nil {
		return nil, err
	}
	runStore, err := NewRunStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	return NewService(graph, runStore, logger), nil
}

// NewToolRegistry registers every capability the process offers.
func NewToolRegistry(cfg *config.Config, logger *slog.Logger) (*core.ToolRegistry, error) {
	tavily := tools.NewTavilyProvider(cfg.Search.APIKey)
	if cfg.Search.Endpoint != "" {
		tavily.WithEndpoint(cfg.Search.Endpoint)
	}
	providers := []tools.SearchProvider{tavily}
	if cfg.Search.Fallback {
		providers = append(providers, tools.NewDuckDuckGoProvider())
	}
	search := tools.NewWebSearch(cfg.Search.MaxResults, logger, providers...)
	searchTool, err := core.NewInbuiltTooExecutor(tools.WebSearchToolName, "Search the web. Returns up to 5 results with title, url and content.", search.Search)
	if err != nil {
		return nil, err
	}

	runner := tools.NewCodeRunner(cfg.Tools.CodeTimeout)
	codeTool, err := core.NewInbuiltTooExecutor(tools.RunCodeToolName, tools.RunCodeToolDescription, runner.RunCode)
	if err != nil {
		return nil, err
	}
	return core.NewToolRegistry(searchTool, codeTool), nil
}

// NewGraph assembles the researcher and coder workers under one supervisor.
func NewGraph(cfg *config.Config, llm core.LLM, decider core.Decider, registry *core.ToolRegistry, logger *slog.Logger) (*core.Graph, error) {
	researcherTools, err := registry.Scope(tools.WebSearchToolName)
	if err != nil {
		return nil, err
	}
	coderTools, err := registry.Scope(tools.RunCodeToolName)
	if err != nil {
		return nil, err
	}

	workerOpts := []core.WorkerOption{core.WithMaxSteps(cfg.Worker.MaxSteps), core.WithWorkerLogger(logger)}
	researcher := core.NewWorker(core.Researcher, researcherDescription, researcherContext, llm, researcherTools, workerOpts...)
	coder := core.NewWorker(core.Coder, coderDescription, coderContext, llm, coderTools, workerOpts...)

	supervisor, err := core.NewSupervisor(decider, []core.Member{
		{ID: researcher.GetID(), Description: researcher.GetDescription()},
		{ID: coder.GetID(), Description: coder.GetDescription()},
	}, core.WithDecisionAttempts(cfg.Supervisor.DecisionAttempts), core.WithSupervisorLogger(logger))
	if err != nil {
		return nil, err
	}

	return core.NewGraph(supervisor, []core.Actor{researcher, coder},
		core.WithMaxCycles(cfg.Graph.MaxCycles),
		core.WithGraphLogger(logger),
	)
}

// NewRunStore opens the configured transcript backend.
func NewRunStore(ctx context.Context, cfg config.StoreConfig) (store.RunStore, error) {
	switch cfg.Backend {
	case "", "memory":
		return store.NewMemoryStore(), nil
	case "redis":
		s := store.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			store.WithTTL(cfg.Redis.TTL),
			store.WithPrefix(cfg.Redis.Prefix),
		)
		if err := s.Ping(ctx); err != nil {
			return nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// Stream runs request through the graph, passing every snapshot through,
// and saves the transcript once the run ends, however it ends.
func (s *Service) Stream(ctx context.Context, request string) iter.Seq2[core.Snapshot, error] {
	return func(yield func(core.Snapshot, error) bool) {
		transcript := &store.Transcript{
			Request:   request,
			Status:    store.StatusRunning,
			CreatedAt: time.Now().UTC(),
		}
		defer func() {
			if transcript.ID == "" {
				return
			}
			if transcript.Status == store.StatusRunning {
				transcript.Status = store.StatusFailed
				transcript.Error = "run abandoned by caller"
			}
			transcript.FinishedAt = time.Now().UTC()
			if err := s.store.Save(context.WithoutCancel(ctx), transcript); err != nil {
				s.logger.ErrorContext(ctx, "failed to save transcript", "run_id", transcript.ID, "err", err)
			}
		}()

		for snap, err := range s.graph.Stream(ctx, request) {
			transcript.ID = snap.RunID
			transcript.Messages = snap.History
			transcript.Cycles = snap.Cycle
			transcript.Stats = snap.Stats
			if err != nil {
				transcript.Status = store.StatusFailed
				transcript.Error = err.Error()
			} else if snap.State == core.StateDone {
				transcript.Status = store.StatusCompleted
			}
			if !yield(snap, err) {
				return
			}
		}
	}
}

// Run drains Stream.
func (s *Service) Run(ctx context.Context, request string) (*store.Transcript, error) {
	var (
		runID  string
		runErr error
	)
	for snap, err := range s.Stream(ctx, request) {
		runID = snap.RunID
		if err != nil {
			runErr = err
			break
		}
	}
	if runID == "" {
		return nil, runErr
	}
	t, err := s.store.Load(context.WithoutCancel(ctx), runID)
	if err != nil {
		return nil, err
	}
	return t, runErr
}

func (s *Service) Transcript(ctx context.Context, id string) (*store.Transcript, error) {
	return s.store.Load(ctx, id)
}

func (s *Service) Transcripts(ctx context.Context) ([]string, error) {
	return s.store.List(ctx)
}
