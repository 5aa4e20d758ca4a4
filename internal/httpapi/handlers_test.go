package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"recruit-platform/internal/auth"
	"recruit-platform/internal/calls"
	"recruit-platform/internal/events"
	"recruit-platform/internal/pipeline"
	"recruit-platform/internal/placement"

	"github.com/gin-gonic/gin"
)

func newTestRouter(t *testing.T) (*gin.Engine, *placement.Orchestrator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	history := events.NewMemoryRepo()
	entrySvc := pipeline.NewService(pipeline.NewMemoryStore(history))
	callSvc := calls.NewService(calls.NewMemoryStore(history), calls.Config{
		Window: calls.Window{OpenHour: 0, CloseHour: 24, Loc: time.UTC},
	})
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := placement.New(entrySvc, callSvc, history, log)

	h := Handlers{Pipeline: engine}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), "user-1", "ws-1", "recruiter")
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	r.POST("/v1/pipeline", h.CreateEntry)
	r.GET("/v1/pipeline/:entry_id", h.GetEntry)
	r.GET("/v1/pipeline/:entry_id/next-statuses", h.ListNextStatuses)
	r.POST("/v1/pipeline/:entry_id/transition", h.RequestTransition)
	r.POST("/v1/pipeline/:entry_id/match", h.AttachMatch)
	r.POST("/v1/pipeline/:entry_id/cancel", h.CancelEntry)
	r.POST("/v1/calls", h.ScheduleCall)
	r.GET("/v1/calls/due", h.ListDueCalls)
	r.GET("/v1/calls/:call_id/logs", h.ListCallLogs)
	r.POST("/v1/calls/:call_id/outcome", h.RecordCallOutcome)
	return r, engine
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateEntryEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/pipeline", gin.H{"candidate_id": "cand-1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var e pipeline.Entry
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.Status != pipeline.StatusNew || e.WorkspaceID != "ws-1" {
		t.Fatalf("unexpected entry: %+v", e)
	}

	// Replayed create returns the open entry with 200.
	w = doJSON(t, r, http.MethodPost, "/v1/pipeline", gin.H{"candidate_id": "cand-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on duplicate create, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/v1/pipeline", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without candidate_id, got %d", w.Code)
	}
}

func TestTransitionEndpointMapsInvalidTransitionTo422(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/pipeline", gin.H{"candidate_id": "cand-1"})
	var e pipeline.Entry
	_ = json.Unmarshal(w.Body.Bytes(), &e)

	w = doJSON(t, r, http.MethodPost, "/v1/pipeline/"+e.ID+"/transition", gin.H{"status": "available"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Error   string   `json:"error"`
		From    string   `json:"from"`
		To      string   `json:"to"`
		Allowed []string `json:"allowed"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "invalid_transition" || body.From != "new" || body.To != "available" {
		t.Fatalf("unexpected error body: %+v", body)
	}
	if len(body.Allowed) != 1 || body.Allowed[0] != "calling" {
		t.Fatalf("allowed should list calling, got %v", body.Allowed)
	}

	w = doJSON(t, r, http.MethodPost, "/v1/pipeline/"+e.ID+"/transition", gin.H{"status": "calling"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on legal edge, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetEntryEndpointNotFound(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/v1/pipeline/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestCallLifecycleOverHTTP(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/pipeline", gin.H{
		"candidate_id": "cand-1", "candidate_phone": "+447700900123",
	})
	var e pipeline.Entry
	_ = json.Unmarshal(w.Body.Bytes(), &e)

	w = doJSON(t, r, http.MethodPost, "/v1/pipeline/"+e.ID+"/transition", gin.H{"status": "calling"})
	if w.Code != http.StatusOK {
		t.Fatalf("transition: %d", w.Code)
	}

	// Entering calling auto-scheduled the screen call; it is in the due list.
	w = doJSON(t, r, http.MethodGet, "/v1/calls/due", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("due: %d", w.Code)
	}
	var due struct {
		Calls []calls.ScheduledCall `json:"calls"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &due); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(due.Calls) != 1 {
		t.Fatalf("expected one due call, got %d", len(due.Calls))
	}

	w = doJSON(t, r, http.MethodPost, "/v1/calls/"+due.Calls[0].ID+"/outcome", gin.H{
		"outcome": "available", "duration_seconds": 80,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("outcome: %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/v1/pipeline/"+e.ID, nil)
	var detail placement.EntryDetail
	if err := json.Unmarshal(w.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if detail.Entry.Status != pipeline.StatusAvailable {
		t.Fatalf("entry should be available after the outcome, got %s", detail.Entry.Status)
	}
	if len(detail.Events) == 0 || len(detail.Calls) != 1 {
		t.Fatalf("detail should include history and calls: %+v", detail)
	}

	w = doJSON(t, r, http.MethodGet, "/v1/calls/"+due.Calls[0].ID+"/logs", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("logs: %d", w.Code)
	}
	var logs struct {
		Logs []calls.CallLog `json:"logs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &logs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(logs.Logs) != 1 || logs.Logs[0].DurationSeconds != 80 {
		t.Fatalf("expected one attempt log, got %+v", logs.Logs)
	}
}

func TestDueCallsEndpointIsWorkspaceScoped(t *testing.T) {
	r, engine := newTestRouter(t)
	ctx := context.Background()

	// Another tenant's call becomes due in the background.
	other, _, err := engine.CreateEntry(ctx, "ws-2", "u2", pipeline.CreateRequest{
		CandidateID: "cand-2", CandidatePhone: "+447700900999",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := engine.RequestTransition(ctx, "ws-2", other.ID, pipeline.StatusCalling, pipeline.FieldUpdate{}, "u2"); err != nil {
		t.Fatalf("transition: %v", err)
	}

	// The ws-1 identity sees an empty due list, not the other tenant's call.
	w := doJSON(t, r, http.MethodGet, "/v1/calls/due", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("due: %d", w.Code)
	}
	var due struct {
		Calls []calls.ScheduledCall `json:"calls"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &due); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(due.Calls) != 0 {
		t.Fatalf("due list leaked another workspace's calls: %+v", due.Calls)
	}
}

func TestScheduleCallEndpointValidation(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/calls", gin.H{"type": "initial_screen"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/v1/calls", gin.H{
		"entry_id": "missing", "type": "initial_screen", "phone_number": "x",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown entry, got %d", w.Code)
	}
}

func TestMissingIdentityIsUnauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_, engine := newTestRouter(t)

	bare := gin.New()
	h := Handlers{Pipeline: engine}
	bare.GET("/v1/pipeline/:entry_id", h.GetEntry)

	req := httptest.NewRequest(http.MethodGet, "/v1/pipeline/x", nil)
	w := httptest.NewRecorder()
	bare.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", w.Code)
	}
}
