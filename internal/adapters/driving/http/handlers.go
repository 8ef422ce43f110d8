package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/custodia-labs/docdesk/internal/core/domain"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// ReadyResponse reports dependency health
// @Description Readiness status with per-dependency results
type ReadyResponse struct {
	Status string            `json:"status" example:"ready"`
	Checks map[string]string `json:"checks,omitempty"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// EditDraftRequest replaces the body of a draft response
type EditDraftRequest struct {
	Body string `json:"body" example:"Dear Anna, please find the documents attached."`
}

// TriggerIndexingRequest optionally overrides the indexed folder
type TriggerIndexingRequest struct {
	RootPath string `json:"root_path,omitempty" example:"/Compliance"`
}

// CountResponse wraps a list with its total size
type CountResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func listResponse[T any](items []T) CountResponse[T] {
	if items == nil {
		items = []T{}
	}
	return CountResponse[T]{Items: items, Count: len(items)}
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the database, redis and other configured dependencies
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := ReadyResponse{Status: "ready", Checks: make(map[string]string, len(s.checks))}
	status := http.StatusOK
	for name, p := range s.checks {
		if err := p.Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", "check", name, "error", err)
			resp.Checks[name] = err.Error()
			resp.Status = "not ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, status, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

// Auth endpoints

// handleLogin godoc
// @Summary      Reviewer login
// @Description  Authenticate with email and password to receive a JWT token
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body      domain.LoginRequest  true  "Login credentials"
// @Success      200      {object}  domain.LoginResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      401      {object}  ErrorResponse  "Invalid credentials"
// @Failure      500      {object}  ErrorResponse  "Internal server error"
// @Router       /auth/login [post]
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.authService.Authenticate(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "email and password are required")
		case errors.Is(err, domain.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		default:
			s.logger.Error("authentication failed", "error", err)
			writeError(w, http.StatusInternalServerError, "authentication failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleGetMe godoc
// @Summary      Get current reviewer
// @Tags         Authentication
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.AuthContext
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Router       /me [get]
func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, GetAuthContext(r.Context()))
}

// Document endpoints

// handleListDocuments godoc
// @Summary      List documents
// @Description  Lists every indexed document, oldest first
// @Tags         Documents
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  CountResponse[domain.Document]
// @Router       /documents [get]
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.documentService.List(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse(docs))
}

// handleListExpiredDocuments godoc
// @Summary      List expired documents
// @Description  Lists documents whose expiry date is before as_of (default today)
// @Tags         Documents
// @Produce      json
// @Security     BearerAuth
// @Param        as_of  query     string  false  "Reference date (YYYY-MM-DD)"
// @Success      200    {object}  CountResponse[domain.Document]
// @Failure      400    {object}  ErrorResponse  "Invalid date"
// @Router       /documents/expired [get]
func (s *Server) handleListExpiredDocuments(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := domain.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "as_of must be YYYY-MM-DD")
			return
		}
		asOf = *parsed
	}

	docs, err := s.documentService.ListExpired(r.Context(), asOf)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse(docs))
}

// handleGetDocument godoc
// @Summary      Get document
// @Tags         Documents
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  domain.Document
// @Failure      404  {object}  ErrorResponse  "Document not found"
// @Router       /documents/{id} [get]
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documentService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Request endpoints

// handleListRequests godoc
// @Summary      List email requests
// @Description  Lists inbound requests, newest first
// @Tags         Requests
// @Produce      json
// @Security     BearerAuth
// @Param        status  query     string  false  "pending or processed"
// @Param        limit   query     int     false  "Page size"
// @Param        offset  query     int     false  "Page offset"
// @Success      200     {object}  CountResponse[domain.EmailRequest]
// @Failure      400     {object}  ErrorResponse  "Invalid filter"
// @Router       /requests [get]
func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}
	filter := driven.RequestFilter{
		Status: domain.RequestStatus(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		writeError(w, http.StatusBadRequest, "status must be pending or processed")
		return
	}

	reqs, err := s.reviewService.ListRequests(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse(reqs))
}

// handleGetRequest godoc
// @Summary      Get email request
// @Tags         Requests
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Request ID"
// @Success      200  {object}  domain.EmailRequest
// @Failure      404  {object}  ErrorResponse  "Request not found"
// @Router       /requests/{id} [get]
func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, err := s.reviewService.GetRequest(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// handleGetRequestResponse godoc
// @Summary      Get the drafted response of a request
// @Tags         Requests
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Request ID"
// @Success      200  {object}  domain.EmailResponse
// @Failure      404  {object}  ErrorResponse  "No response drafted"
// @Router       /requests/{id}/response [get]
func (s *Server) handleGetRequestResponse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	resp, err := s.reviewService.GetResponseForRequest(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Response endpoints

// handleListResponses godoc
// @Summary      List drafted responses
// @Tags         Responses
// @Produce      json
// @Security     BearerAuth
// @Param        status  query     string  false  "draft, approved or sent"
// @Param        limit   query     int     false  "Page size"
// @Param        offset  query     int     false  "Page offset"
// @Success      200     {object}  CountResponse[domain.EmailResponse]
// @Failure      400     {object}  ErrorResponse  "Invalid filter"
// @Router       /responses [get]
func (s *Server) handleListResponses(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}
	filter := driven.ResponseFilter{
		Status: domain.ResponseStatus(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		writeError(w, http.StatusBadRequest, "status must be draft, approved or sent")
		return
	}

	resps, err := s.reviewService.ListResponses(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse(resps))
}

// handleGetResponse godoc
// @Summary      Get drafted response
// @Tags         Responses
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Response ID"
// @Success      200  {object}  domain.EmailResponse
// @Failure      404  {object}  ErrorResponse  "Response not found"
// @Router       /responses/{id} [get]
func (s *Server) handleGetResponse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	resp, err := s.reviewService.GetResponse(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleEditDraft godoc
// @Summary      Edit a draft
// @Description  Replaces the body of a response that is still a draft
// @Tags         Responses
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int               true  "Response ID"
// @Param        request  body      EditDraftRequest  true  "New body"
// @Success      200      {object}  domain.EmailResponse
// @Failure      400      {object}  ErrorResponse  "Empty body"
// @Failure      409      {object}  ErrorResponse  "Response is no longer a draft"
// @Router       /responses/{id}/draft [put]
func (s *Server) handleEditDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req EditDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.reviewService.EditDraft(r.Context(), id, req.Body)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleApprove godoc
// @Summary      Approve a draft
// @Description  Moves a draft to approved. Nothing is sent.
// @Tags         Responses
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Response ID"
// @Success      200  {object}  domain.EmailResponse
// @Failure      409  {object}  ErrorResponse  "Response is not a draft"
// @Router       /responses/{id}/approve [post]
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	resp, err := s.reviewService.Approve(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.logger.Info("response approved", "response_id", id, "reviewer", reviewerEmail(r))
	writeJSON(w, http.StatusOK, resp)
}

// handleSend godoc
// @Summary      Send an approved response
// @Description  Emails the reply with its attachments and marks it sent
// @Tags         Responses
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Response ID"
// @Success      200  {object}  domain.EmailResponse
// @Failure      409  {object}  ErrorResponse  "Response is not approved or a send is in progress"
// @Failure      502  {object}  ErrorResponse  "Mail server rejected the message"
// @Router       /responses/{id}/send [post]
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	resp, err := s.reviewService.Send(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.logger.Info("response sent", "response_id", id, "reviewer", reviewerEmail(r))
	writeJSON(w, http.StatusOK, resp)
}

// Pipeline endpoints

// handleTriggerIndexing godoc
// @Summary      Run document indexing
// @Description  Enqueues an indexing run. The body is optional.
// @Tags         Pipelines
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      TriggerIndexingRequest  false  "Folder override"
// @Success      202      {object}  domain.Task
// @Failure      403      {object}  ErrorResponse  "Admin access required"
// @Router       /indexing/run [post]
func (s *Server) handleTriggerIndexing(w http.ResponseWriter, r *http.Request) {
	var req TriggerIndexingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	task, err := s.pipeline.TriggerIndexing(r.Context(), req.RootPath)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, task)
}

// handleTriggerIntake godoc
// @Summary      Run email intake
// @Tags         Pipelines
// @Produce      json
// @Security     BearerAuth
// @Success      202  {object}  domain.Task
// @Failure      403  {object}  ErrorResponse  "Admin access required"
// @Router       /intake/run [post]
func (s *Server) handleTriggerIntake(w http.ResponseWriter, r *http.Request) {
	task, err := s.pipeline.TriggerIntake(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, task)
}

// handleTriggerDraftRetry godoc
// @Summary      Retry pending drafts
// @Description  Enqueues drafting for requests left pending by an earlier run
// @Tags         Pipelines
// @Produce      json
// @Security     BearerAuth
// @Success      202  {object}  domain.Task
// @Failure      403  {object}  ErrorResponse  "Admin access required"
// @Router       /drafts/retry [post]
func (s *Server) handleTriggerDraftRetry(w http.ResponseWriter, r *http.Request) {
	task, err := s.pipeline.TriggerDraftRetry(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, task)
}

// handleGetTask godoc
// @Summary      Get pipeline task status
// @Tags         Pipelines
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  domain.Task
// @Failure      404  {object}  ErrorResponse  "Task not found"
// @Router       /tasks/{id} [get]
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.pipeline.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Helpers

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func pagination(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	q := r.URL.Query()
	for name, dst := range map[string]*int{"limit": &limit, "offset": &offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, name+" must be a non-negative integer")
			return 0, 0, false
		}
		*dst = n
	}
	return limit, offset, true
}

func reviewerEmail(r *http.Request) string {
	if auth := GetAuthContext(r.Context()); auth != nil {
		return auth.Email
	}
	return ""
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrMalformedAnalysis):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrDispatchFailed):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
		writeError(w, status, "internal server error")
		return
	}
	if status >= 500 {
		s.logger.Warn("request failed", slog.Int("status", status), slog.Any("error", err))
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
