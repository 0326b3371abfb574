package core

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/google/uuid"
)

// State is a node of the coordinator state machine.
type State string

const (
	StateAwaitDispatch State = "AWAIT_DISPATCH"
	StateRunWorker     State = "RUN_WORKER"
	StateDone          State = "DONE"
)

const (
	SupervisorNode   = "supervisor"
	DefaultMaxCycles = 25
)

// Actor is anything the graph can hand control to after a supervisor
// decision. *Worker implements it.
type Actor interface {
	GetID() WorkerID
	Run(ctx context.Context, history []Message) (WorkerOutput, error)
}

// Snapshot describes the run right after one state transition.
type Snapshot struct {
	RunID    string    `json:"run_id"`
	Cycle    int       `json:"cycle"`
	State    State     `json:"state"`
	Node     string    `json:"node"`
	Route    Route     `json:"route,omitempty"`
	Messages []Message `json:"messages,omitempty"`
	History  []Message `json:"history"`
	Stats    Stats     `json:"stats"`
}

// Result is the final outcome of a drained run.
type Result struct {
	RunID    string
	Messages []Message
	Cycles   int
	Stats    Stats
}

type GraphOption func(*Graph)

// WithMaxCycles bounds the number of supervisor decisions per run.
func WithMaxCycles(n int) GraphOption {
	return func(g *Graph) {
		if n > 0 {
			g.maxCycles = n
		}
	}
}

func WithGraphLogger(logger *slog.Logger) GraphOption {
	return func(g *Graph) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// Graph is the coordinator. The single start edge targets the supervisor,
// every worker edge leads back to it, and only the supervisor's own
// decision can end the run.
type Graph struct {
	supervisor *Supervisor
	workers    map[WorkerID]Actor
	maxCycles  int
	logger     *slog.Logger
}

// NewGraph wires the supervisor to its workers. The supervisor's members
// and the actors must be the same set.
func NewGraph(supervisor *Supervisor, actors []Actor, opts ...GraphOption) (*Graph, error) {
	if supervisor == nil {
		return nil, errors.New("graph needs a supervisor")
	}
	workers := make(map[WorkerID]Actor, len(actors))
	for _, actor := range actors {
		if _, dup := workers[actor.GetID()]; dup {
			return nil, fmt.Errorf("duplicate worker %q", actor.GetID())
		}
		workers[actor.GetID()] = actor
	}
	for _, id := range supervisor.Members() {
		if _, ok := workers[id]; !ok {
			return nil, fmt.Errorf("supervisor member %q has no worker: %w", id, ErrUnknownWorker)
		}
	}
	if len(workers) != len(supervisor.Members()) {
		return nil, fmt.Errorf("worker set does not match supervisor members: %w", ErrUnknownWorker)
	}

	g := &Graph{
		supervisor: supervisor,
		workers:    workers,
		maxCycles:  DefaultMaxCycles,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *Graph) MaxCycles() int {
	return g.maxCycles
}

// Stream starts a fresh run seeded with request and yields one snapshot
// per state transition. The sequence ends after the DONE snapshot or with
// the first error. Each call is an independent run.
func (g *Graph) Stream(ctx context.Context, request string) iter.Seq2[Snapshot, error] {
	return func(yield func(Snapshot, error) bool) {
		runID := uuid.NewString()
		conversation := NewConversation(NewMessage(AuthorUser, request))
		var stats Stats

		snapshot := func(cycle int, state State, node string, route Route, delta []Message) Snapshot {
			return Snapshot{
				RunID:    runID,
				Cycle:    cycle,
				State:    state,
				Node:     node,
				Route:    route,
				Messages: delta,
				History:  conversation.View(),
				Stats:    stats,
			}
		}

		g.logger.InfoContext(ctx, "run started", "run_id", runID)
		for cycle := 1; ; cycle++ {
			if cycle > g.maxCycles {
				err := fmt.Errorf("run %s: %w (%d)", runID, ErrCycleLimit, g.maxCycles)
				g.logger.WarnContext(ctx, "run force terminated", "run_id", runID, "max_cycles", g.maxCycles)
				yield(snapshot(g.maxCycles, StateDone, SupervisorNode, Finish, nil), err)
				return
			}
			if err := ctx.Err(); err != nil {
				yield(snapshot(cycle-1, StateAwaitDispatch, SupervisorNode, "", nil), err)
				return
			}

			route, used, err := g.supervisor.Decide(ctx, conversation.View())
			stats = stats.Add(used)
			if err != nil {
				yield(snapshot(cycle, StateAwaitDispatch, SupervisorNode, "", nil), fmt.Errorf("run %s cycle %d: %w", runID, cycle, err))
				return
			}
			g.logger.InfoContext(ctx, "supervisor decision", "run_id", runID, "cycle", cycle, "route", route)

			if route.IsFinish() {
				yield(snapshot(cycle, StateDone, SupervisorNode, route, nil), nil)
				return
			}
			worker, ok := g.workers[route.Worker()]
			if !ok {
				yield(snapshot(cycle, StateAwaitDispatch, SupervisorNode, route, nil), fmt.Errorf("run %s cycle %d: %w: %q", runID, cycle, ErrInvalidRoute, route))
				return
			}
			if !yield(snapshot(cycle, StateRunWorker, SupervisorNode, route, nil), nil) {
				return
			}

			out, err := worker.Run(ctx, conversation.View())
			stats = stats.Add(out.Stats)
			if err != nil {
				yield(snapshot(cycle, StateRunWorker, string(worker.GetID()), route, nil), fmt.Errorf("run %s cycle %d: worker %s: %w", runID, cycle, worker.GetID(), err))
				return
			}
			g.logger.InfoContext(ctx, "worker reported", "run_id", runID, "cycle", cycle, "worker", worker.GetID(), "steps", out.Steps)

			conversation.Append(out.Messages...)
			if !yield(snapshot(cycle, StateAwaitDispatch, string(worker.GetID()), route, out.Messages), nil) {
				return
			}
		}
	}
}

// Run drains Stream and returns the final history.
func (g *Graph) Run(ctx context.Context, request string) (Result, error) {
	var last Snapshot
	for snap, err := range g.Stream(ctx, request) {
		last = snap
		if err != nil {
			return resultOf(last), err
		}
	}
	return resultOf(last), nil
}

func resultOf(s Snapshot) Result {
	return Result{
		RunID:    s.RunID,
		Messages: s.History,
		Cycles:   s.Cycle,
		Stats:    s.Stats,
	}
}
