package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/gigshield/reviewcore/internal/errors"
	"github.com/gigshield/reviewcore/internal/logger"
	"github.com/gigshield/reviewcore/internal/model"
	"github.com/gigshield/reviewcore/internal/review"
)

// SubmitRequest is the body of POST /api/v1/reviews.
type SubmitRequest struct {
	SubmitterID string                 `json:"submitterId"`
	ContentType model.ContentType      `json:"contentType"`
	ExternalURL string                 `json:"externalUrl"`
	Declared    model.DeclaredMetadata `json:"declared"`
}

// SubmitResponse acknowledges an accepted submission.
type SubmitResponse struct {
	TaskID string       `json:"taskId"`
	Status model.Status `json:"status"`
	Queued bool         `json:"queued"`
}

// AuditView is one audit entry as returned by the API.
type AuditView struct {
	Actor   string    `json:"actor"`
	Action  string    `json:"action"`
	Comment string    `json:"comment,omitempty"`
	At      time.Time `json:"at"`
}

// CheckRunView is one continuous check run.
type CheckRunView struct {
	Result model.CheckResult `json:"result"`
	Reward int64             `json:"reward"`
	Detail string            `json:"detail,omitempty"`
	At     time.Time         `json:"at"`
}

// ContinuousCheckView is the continuous check state of a task.
type ContinuousCheckView struct {
	Enabled       bool              `json:"enabled"`
	Status        model.CheckStatus `json:"status"`
	NextCheckTime *time.Time        `json:"nextCheckTime,omitempty"`
	LastCheckTime *time.Time        `json:"lastCheckTime,omitempty"`
	History       []CheckRunView    `json:"history"`
}

// TaskView is the status view of a review task.
type TaskView struct {
	TaskID           string                    `json:"taskId"`
	SubmitterID      string                    `json:"submitterId"`
	ContentType      model.ContentType         `json:"contentType"`
	ExternalURL      string                    `json:"externalUrl"`
	Declared         model.DeclaredMetadata    `json:"declared"`
	Status           model.Status              `json:"status"`
	AttemptCount     int                       `json:"attemptCount"`
	SubmittedAt      time.Time                 `json:"submittedAt"`
	ResolvedNickname string                    `json:"resolvedNickname,omitempty"`
	RejectionReason  string                    `json:"rejectionReason,omitempty"`
	Verification     *model.VerificationResult `json:"verification,omitempty"`
	ContinuousCheck  ContinuousCheckView       `json:"continuousCheck"`
	AuditHistory     []AuditView               `json:"auditHistory"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlationId,omitempty"`
}

func newTaskView(t *model.ReviewTask) TaskView {
	v := TaskView{
		TaskID:           t.ID,
		SubmitterID:      t.SubmitterID,
		ContentType:      t.ContentType,
		ExternalURL:      t.ExternalURL,
		Declared:         t.Declared,
		Status:           t.Status,
		AttemptCount:     t.AttemptCount,
		SubmittedAt:      t.SubmittedAt,
		ResolvedNickname: t.ResolvedNickname,
		RejectionReason:  t.RejectionReason,
		Verification:     t.Verification,
		ContinuousCheck: ContinuousCheckView{
			Enabled:       t.Check.Enabled,
			Status:        t.Check.Status,
			NextCheckTime: t.Check.NextCheckTime,
			LastCheckTime: t.Check.LastCheckTime,
			History:       make([]CheckRunView, 0, len(t.CheckHistory)),
		},
		AuditHistory: make([]AuditView, 0, len(t.AuditHistory)),
	}
	for _, h := range t.CheckHistory {
		v.ContinuousCheck.History = append(v.ContinuousCheck.History, CheckRunView{
			Result: h.Result, Reward: h.Reward, Detail: h.Detail, At: h.At,
		})
	}
	for _, a := range t.AuditHistory {
		v.AuditHistory = append(v.AuditHistory, AuditView{
			Actor: a.Actor, Action: a.Action, Comment: a.Comment, At: a.At,
		})
	}
	return v
}

// submitReview creates a pending task and queues it. Validation failures
// are 400s; nothing is persisted for them.
func (s *Server) submitReview(c echo.Context) error {
	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return s.errorJSON(c, http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	id, err := s.service.SubmitForReview(ctx, review.Submission{
		SubmitterID: req.SubmitterID,
		ContentType: req.ContentType,
		ExternalURL: req.ExternalURL,
		Declared:    req.Declared,
	})
	if err != nil {
		return s.serviceError(c, err)
	}

	queued := s.service.Enqueue(id)
	s.log.WithContext(ctx).Info("review submitted",
		logger.String("task_id", id),
		logger.String("content_type", string(req.ContentType)),
		logger.Bool("queued", queued))

	return c.JSON(http.StatusAccepted, SubmitResponse{
		TaskID: id,
		Status: model.StatusPending,
		Queued: queued,
	})
}

func (s *Server) getReview(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return s.errorJSON(c, http.StatusBadRequest, "task id is required")
	}
	task, err := s.service.GetStatus(c.Request().Context(), id)
	if err != nil {
		return s.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, newTaskView(task))
}

func (s *Server) getQueue(c echo.Context) error {
	return c.JSON(http.StatusOK, s.service.GetQueueMetrics())
}

// serviceError maps an error category onto a status code.
func (s *Server) serviceError(c echo.Context, err error) error {
	switch {
	case errors.IsCategory(err, errors.CategoryValidation):
		return s.errorJSON(c, http.StatusBadRequest, err.Error())
	case errors.IsNotFound(err):
		return s.errorJSON(c, http.StatusNotFound, "task not found")
	case errors.IsCategory(err, errors.CategoryConflict):
		return s.errorJSON(c, http.StatusConflict, err.Error())
	}
	s.log.WithContext(c.Request().Context()).Error("request failed",
		logger.String("path", c.Path()),
		logger.Error(err))
	return s.errorJSON(c, http.StatusInternalServerError, "internal error")
}

func (s *Server) errorJSON(c echo.Context, code int, message string) error {
	return c.JSON(code, ErrorResponse{
		Error:         http.StatusText(code),
		Message:       message,
		Code:          code,
		CorrelationID: c.Response().Header().Get(echo.HeaderXRequestID),
	})
}

// handleHTTPError renders router and middleware errors (unknown route,
// oversized body) in the same shape as handler errors.
func (s *Server) handleHTTPError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	message := "internal error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	} else {
		s.log.Error("unhandled request error", logger.Error(err))
	}
	if err := s.errorJSON(c, code, message); err != nil {
		s.log.Debug("failed to write error response", logger.Error(err))
	}
}
