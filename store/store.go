// Package store persists finished run transcripts.
package store

import (
	"context"
	"errors"
	"time"

	"polycode/supervisor-app/core"
)

var ErrNotFound = errors.New("transcript not found")

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Transcript is the persisted record of one run.
type Transcript struct {
	ID         string         `json:"id"`
	Request    string         `json:"request"`
	Messages   []core.Message `json:"messages"`
	Cycles     int            `json:"cycles"`
	Status     Status         `json:"status"`
	Error      string         `json:"error,omitempty"`
	Stats      core.Stats     `json:"stats"`
	CreatedAt  time.Time      `json:"created_at"`
	FinishedAt time.Time      `json:"finished_at,omitempty"`
}

// RunStore saves and loads transcripts by run id.
type RunStore interface {
	Save(ctx context.Context, t *Transcript) error
	Load(ctx context.Context, id string) (*Transcript, error)
	List(ctx context.Context) ([]string, error)
}
