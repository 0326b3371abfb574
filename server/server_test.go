package server_test

import (
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polycode/supervisor-app/core"
	"polycode/supervisor-app/server"
	"polycode/supervisor-app/store"
)

type fakeService struct {
	snapshots   []core.Snapshot
	err         error
	transcripts map[string]*store.Transcript
	requests    []string
}

func (f *fakeService) Stream(ctx context.Context, request string) iter.Seq2[core.Snapshot, error] {
	f.requests = append(f.requests, request)
	return func(yield func(core.Snapshot, error) bool) {
		for i, snap := range f.snapshots {
			var err error
			if i == len(f.snapshots)-1 {
				err = f.err
			}
			if !yield(snap, err) {
				return
			}
		}
	}
}

func (f *fakeService) Transcript(ctx context.Context, id string) (*store.Transcript, error) {
	t, ok := f.transcripts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return t, nil
}

func (f *fakeService) Transcripts(ctx context.Context) ([]string, error) {
	var ids []string
	for id := range f.transcripts {
		ids = append(ids, id)
	}
	return ids, nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHealth(t *testing.T) {
	r := server.NewRouter(&fakeService{}, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStartRun_StreamsSnapshots(t *testing.T) {
	svc := &fakeService{snapshots: []core.Snapshot{
		{RunID: "r1", Cycle: 1, State: core.StateRunWorker, Node: core.SupervisorNode, Route: "coder"},
		{RunID: "r1", Cycle: 1, State: core.StateAwaitDispatch, Node: "coder", Route: "coder"},
		{RunID: "r1", Cycle: 2, State: core.StateDone, Node: core.SupervisorNode, Route: core.Finish},
	}}
	r := server.NewRouter(svc, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(`{"message":"sqrt 42"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Equal(t, 3, strings.Count(body, "event:snapshot"))
	assert.Contains(t, body, "event:done")
	assert.NotContains(t, body, "event:error")
	assert.Equal(t, []string{"sqrt 42"}, svc.requests)
}

func TestStartRun_ReportsError(t *testing.T) {
	svc := &fakeService{
		snapshots: []core.Snapshot{{RunID: "r2", Cycle: 1, State: core.StateAwaitDispatch, Node: core.SupervisorNode}},
		err:       core.ErrInvalidRoute,
	}
	r := server.NewRouter(svc, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(`{"message":"q"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	body := w.Body.String()
	assert.Contains(t, body, "event:error")
	assert.Contains(t, body, "invalid routing target")
	assert.NotContains(t, body, "event:done")
}

func TestStartRun_RejectsEmptyMessage(t *testing.T) {
	svc := &fakeService{}
	r := server.NewRouter(svc, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(`{"message":""}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.requests)
}

func TestNewRouter_LeavesGinValidatorAlone(t *testing.T) {
	before := binding.Validator
	server.NewRouter(&fakeService{}, nil)
	server.NewRouter(&fakeService{}, nil)
	assert.Same(t, before, binding.Validator)
}

func TestStartRun_RejectsMissingMessage(t *testing.T) {
	svc := &fakeService{}
	r := server.NewRouter(svc, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Message")
	assert.Empty(t, svc.requests)
}

func TestGetRun(t *testing.T) {
	svc := &fakeService{transcripts: map[string]*store.Transcript{
		"r1": {ID: "r1", Request: "q", Status: store.StatusCompleted, Cycles: 2},
	}}
	r := server.NewRouter(svc, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/r1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var got store.Transcript
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, store.StatusCompleted, got.Status)
	assert.Equal(t, 2, got.Cycles)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListRuns(t *testing.T) {
	r := server.NewRouter(&fakeService{}, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"runs":[]}`, w.Body.String())
}

