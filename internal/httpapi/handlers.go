package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"recruit-platform/internal/auth"
	"recruit-platform/internal/calls"
	"recruit-platform/internal/pipeline"
	"recruit-platform/internal/placement"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call the orchestrator, return JSON.
// No transition legality logic lives here; the state machine owns it.

type Handlers struct {
	Auth     *auth.Manager
	Pipeline *placement.Orchestrator
}

// --- Auth ---

type loginRequest struct {
	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id"`
	Role        string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: credential validation is delegated to the identity provider upstream;
// this endpoint only mints tokens for already-verified identities.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.WorkspaceID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, workspace_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.WorkspaceID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Pipeline ---

type createEntryRequest struct {
	CandidateID      string `json:"candidate_id"`
	CandidateName    string `json:"candidate_name,omitempty"`
	CandidatePhone   string `json:"candidate_phone,omitempty"`
	RightToWork      *bool  `json:"right_to_work,omitempty"`
	RegistrationInfo string `json:"registration_info,omitempty"`
	ExpectedRate     string `json:"expected_rate,omitempty"`
	Notes            string `json:"notes,omitempty"`
}

func (h Handlers) CreateEntry(c *gin.Context) {
	workspaceID, userID, ok := identity(c)
	if !ok {
		return
	}
	var req createEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.CandidateID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "candidate_id required"})
		return
	}
	entry, created, err := h.Pipeline.CreateEntry(c.Request.Context(), workspaceID, userID, pipeline.CreateRequest{
		CandidateID:      req.CandidateID,
		CandidateName:    req.CandidateName,
		CandidatePhone:   req.CandidatePhone,
		RightToWork:      req.RightToWork,
		RegistrationInfo: req.RegistrationInfo,
		ExpectedRate:     req.ExpectedRate,
		Notes:            req.Notes,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, entry)
}

func (h Handlers) GetEntry(c *gin.Context) {
	workspaceID, _, ok := identity(c)
	if !ok {
		return
	}
	detail, err := h.Pipeline.GetEntry(c.Request.Context(), workspaceID, c.Param("entry_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

type transitionRequest struct {
	Status pipeline.Status      `json:"status"`
	Fields pipeline.FieldUpdate `json:"fields"`
}

func (h Handlers) RequestTransition(c *gin.Context) {
	workspaceID, userID, ok := identity(c)
	if !ok {
		return
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Status == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "status required"})
		return
	}
	entry, err := h.Pipeline.RequestTransition(c.Request.Context(), workspaceID, c.Param("entry_id"), req.Status, req.Fields, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

type attachMatchRequest struct {
	ClientID       string `json:"client_id"`
	CommuteMinutes int    `json:"commute_minutes"`
}

func (h Handlers) AttachMatch(c *gin.Context) {
	workspaceID, userID, ok := identity(c)
	if !ok {
		return
	}
	var req attachMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.ClientID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "client_id required"})
		return
	}
	entry, err := h.Pipeline.AttachMatch(c.Request.Context(), workspaceID, c.Param("entry_id"), req.ClientID, req.CommuteMinutes, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h Handlers) CancelEntry(c *gin.Context) {
	workspaceID, userID, ok := identity(c)
	if !ok {
		return
	}
	entry, cancelled, err := h.Pipeline.CancelEntry(c.Request.Context(), workspaceID, c.Param("entry_id"), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry, "calls_cancelled": cancelled})
}

func (h Handlers) ListNextStatuses(c *gin.Context) {
	workspaceID, _, ok := identity(c)
	if !ok {
		return
	}
	next, err := h.Pipeline.ValidNextStatuses(c.Request.Context(), workspaceID, c.Param("entry_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid_next_statuses": next})
}

// --- Calls ---

type scheduleCallRequest struct {
	EntryID     string     `json:"entry_id"`
	Type        string     `json:"type"`
	PhoneNumber string     `json:"phone_number"`
	ContactName string     `json:"contact_name,omitempty"`
	ToClient    bool       `json:"to_client,omitempty"`
	ScriptID    string     `json:"script_id,omitempty"`
	Priority    int        `json:"priority,omitempty"`
	DesiredFor  *time.Time `json:"desired_for,omitempty"`
}

func (h Handlers) ScheduleCall(c *gin.Context) {
	workspaceID, userID, ok := identity(c)
	if !ok {
		return
	}
	var req scheduleCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.EntryID == "" || req.Type == "" || req.PhoneNumber == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "entry_id, type, phone_number required"})
		return
	}
	sreq := calls.ScheduleRequest{
		EntryID:     req.EntryID,
		Type:        calls.CallType(req.Type),
		PhoneNumber: req.PhoneNumber,
		ContactName: req.ContactName,
		ToClient:    req.ToClient,
		ScriptID:    req.ScriptID,
		Priority:    req.Priority,
	}
	if req.DesiredFor != nil {
		sreq.DesiredFor = *req.DesiredFor
	}
	call, err := h.Pipeline.ScheduleCall(c.Request.Context(), workspaceID, userID, sreq)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, call)
}

type callOutcomeRequest struct {
	Outcome         string          `json:"outcome"`
	DurationSeconds int             `json:"duration_seconds,omitempty"`
	Transcript      string          `json:"transcript,omitempty"`
	ExtractedData   json.RawMessage `json:"extracted_data,omitempty"`
}

func (h Handlers) RecordCallOutcome(c *gin.Context) {
	workspaceID, userID, ok := identity(c)
	if !ok {
		return
	}
	var req callOutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Outcome == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "outcome required"})
		return
	}
	call, err := h.Pipeline.ApplyCallOutcome(c.Request.Context(), workspaceID, c.Param("call_id"), userID, calls.OutcomeRequest{
		Outcome:         req.Outcome,
		DurationSeconds: req.DurationSeconds,
		Transcript:      req.Transcript,
		ExtractedData:   req.ExtractedData,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, call)
}

// ListCallLogs returns the immutable per-attempt records for one call.
func (h Handlers) ListCallLogs(c *gin.Context) {
	workspaceID, _, ok := identity(c)
	if !ok {
		return
	}
	logs, err := h.Pipeline.CallLogs(c.Request.Context(), workspaceID, c.Param("call_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

// ListDueCalls returns the caller's due calls up to the batch limit. Scoped
// to the authenticated workspace like every other read on this surface; the
// sweep's cross-workspace batch never goes over HTTP.
func (h Handlers) ListDueCalls(c *gin.Context) {
	workspaceID, _, ok := identity(c)
	if !ok {
		return
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	due, err := h.Pipeline.DueCallsForWorkspace(c.Request.Context(), workspaceID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": due})
}

// --- helpers ---

func identity(c *gin.Context) (workspaceID, userID string, ok bool) {
	workspaceID, err := auth.WorkspaceID(c.Request.Context())
	if err != nil || workspaceID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "workspace_id required"})
		return "", "", false
	}
	userID, _ = auth.UserID(c.Request.Context())
	return workspaceID, userID, true
}

// writeError maps engine errors to HTTP responses in exactly one place.
//
// NotFound deliberately does not reveal whether a row exists under another
// workspace. Conflicts that survived the orchestrator's local retries are
// reported retryable.
func writeError(c *gin.Context, err error) {
	var it *pipeline.InvalidTransitionError
	switch {
	case errors.As(err, &it):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "invalid_transition",
			"from":    it.From,
			"to":      it.To,
			"allowed": it.Allowed,
		})
	case errors.Is(err, pipeline.ErrNotFound), errors.Is(err, calls.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, pipeline.ErrConflict), errors.Is(err, calls.ErrConflict):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "conflict", "retryable": true})
	case errors.Is(err, pipeline.ErrInvalidArgument), errors.Is(err, calls.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_argument"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal"})
	}
}
