package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

var systemSupervisorContext = `You are a supervisor tasked with managing a conversation between the following workers: {{members}}. Given the following user request, respond with the worker to act next. Each worker will perform a task and respond with their results and status. When finished, respond with FINISH.

Workers:
{{descriptions}}`

var supervisorQuestion = "Given the conversation above, who should act next? Or should we FINISH? Select one of: {{options}}"

// Route is a supervisor decision: a registered WorkerID or Finish.
type Route string

const Finish Route = "FINISH"

func (r Route) IsFinish() bool {
	return r == Finish
}

// Worker returns the worker id the route points to. It is only meaningful
// when IsFinish is false.
func (r Route) Worker() WorkerID {
	return WorkerID(r)
}

// Member describes a worker to the supervisor.
type Member struct {
	ID          WorkerID
	Description string
}

type SupervisorOption func(*Supervisor)

// WithDecisionAttempts allows up to n calls to the decider per cycle when
// it returns a value outside the closed set. The default of 1 makes an
// invalid decision immediately fatal.
func WithDecisionAttempts(n int) SupervisorOption {
	return func(s *Supervisor) {
		if n > 0 {
			s.attempts = n
		}
	}
}

func WithSupervisorLogger(logger *slog.Logger) SupervisorOption {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Supervisor maps the full history to the next Route. It keeps no state
// between cycles.
type Supervisor struct {
	members  []Member
	decider  Decider
	attempts int
	logger   *slog.Logger
}

func NewSupervisor(decider Decider, members []Member, opts ...SupervisorOption) (*Supervisor, error) {
	if len(members) == 0 {
		return nil, errors.New("supervisor needs at least one worker")
	}
	seen := make(map[WorkerID]bool, len(members))
	for _, m := range members {
		if m.ID == "" || Route(m.ID) == Finish {
			return nil, fmt.Errorf("worker id %q is reserved", m.ID)
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("duplicate worker %q", m.ID)
		}
		seen[m.ID] = true
	}
	s := &Supervisor{
		members:  slices.Clone(members),
		decider:  decider,
		attempts: 1,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Members returns the registered worker ids in registration order.
func (s *Supervisor) Members() []WorkerID {
	ids := make([]WorkerID, len(s.members))
	for i, m := range s.members {
		ids[i] = m.ID
	}
	return ids
}

// Options is the closed set the decider must choose from.
func (s *Supervisor) Options() []string {
	options := make([]string, 0, len(s.members)+1)
	for _, m := range s.members {
		options = append(options, string(m.ID))
	}
	return append(options, string(Finish))
}

func (s *Supervisor) SystemPrompt() string {
	names := make([]string, len(s.members))
	var descriptions strings.Builder
	for i, m := range s.members {
		names[i] = string(m.ID)
		fmt.Fprintf(&descriptions, "- %s: %s\n", m.ID, m.Description)
	}
	return ReplaceLabels(systemSupervisorContext, map[string]string{
		"members":      "[" + strings.Join(names, ", ") + "]",
		"descriptions": strings.TrimRight(descriptions.String(), "\n"),
	})
}

// ParseRoute validates a raw decision against the closed set.
func (s *Supervisor) ParseRoute(value string) (Route, error) {
	value = strings.TrimSpace(value)
	if strings.EqualFold(value, string(Finish)) {
		return Finish, nil
	}
	for _, m := range s.members {
		if value == string(m.ID) {
			return Route(m.ID), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRoute, value)
}

// Decide asks the decider for the next route given the whole history.
func (s *Supervisor) Decide(ctx context.Context, history []Message) (Route, Stats, error) {
	options := s.Options()
	contents := ToChatContents(history)
	contents = append(contents, NewContent("user", ReplaceLabels(supervisorQuestion, map[string]string{
		"options": strings.Join(options, ", "),
	})))

	var (
		stats Stats
		err   error
	)
	for attempt := 1; attempt <= s.attempts; attempt++ {
		var (
			value string
			used  Stats
		)
		value, used, err = s.decider.Choose(ctx, s.SystemPrompt(), contents, options)
		stats = stats.Add(used)
		switch {
		case errors.Is(err, ErrMalformedDecision):
			s.logger.WarnContext(ctx, "malformed supervisor decision", "err", err, "attempt", attempt, "max_attempts", s.attempts)
			continue
		case err != nil:
			return "", stats, fmt.Errorf("supervisor decision: %w", err)
		}
		var route Route
		route, err = s.ParseRoute(value)
		if err == nil {
			return route, stats, nil
		}
		s.logger.WarnContext(ctx, "invalid supervisor decision", "value", value, "attempt", attempt, "max_attempts", s.attempts)
	}
	return "", stats, fmt.Errorf("supervisor decision after %d attempts: %w", s.attempts, err)
}
