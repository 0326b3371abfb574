// Package server exposes supervisor runs over HTTP.
package server

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"polycode/supervisor-app/core"
	"polycode/supervisor-app/lib"
	"polycode/supervisor-app/store"
)

// RunService is the part of the agent service the HTTP layer needs.
type RunService interface {
	Stream(ctx context.Context, request string) iter.Seq2[core.Snapshot, error]
	Transcript(ctx context.Context, id string) (*store.Transcript, error)
	Transcripts(ctx context.Context) ([]string, error)
}

type RunRequest struct {
	Message string `json:"message" validate:"required"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter builds the gin engine with CORS open to all origins.
func NewRouter(svc RunService, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	r.Use(cors.New(config))

	h := &handler{svc: svc, validator: lib.NewValidator(), logger: logger}
	r.GET("/healthz", h.health)
	r.POST("/runs", h.startRun)
	r.GET("/runs", h.listRuns)
	r.GET("/runs/:id", h.getRun)
	return r
}

type handler struct {
	svc       RunService
	validator *lib.Validator
	logger    *slog.Logger
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// startRun streams one "snapshot" event per transition, then either a
// "done" or an "error" event.
func (h *handler) startRun(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	var last core.Snapshot
	for snap, err := range h.svc.Stream(c.Request.Context(), req.Message) {
		last = snap
		if err != nil {
			h.logger.WarnContext(c.Request.Context(), "run failed", "run_id", snap.RunID, "err", err)
			c.SSEvent("error", gin.H{"run_id": snap.RunID, "error": err.Error()})
			c.Writer.Flush()
			return
		}
		c.SSEvent("snapshot", snap)
		c.Writer.Flush()
	}
	c.SSEvent("done", gin.H{"run_id": last.RunID, "cycles": last.Cycle})
	c.Writer.Flush()
}

func (h *handler) getRun(c *gin.Context) {
	t, err := h.svc.Transcript(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *handler) listRuns(c *gin.Context) {
	ids, err := h.svc.Transcripts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": ids})
}
