package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cuongbtq/content-orchestrator/internal/api/dto"
	"github.com/cuongbtq/content-orchestrator/internal/api/httperr"
	"github.com/cuongbtq/content-orchestrator/internal/domain"
	"github.com/cuongbtq/content-orchestrator/internal/jobs"
)

// CreateJob handles POST /api/v1/jobs
// Stores a QUEUED job; workers pick it up from the queue
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid request body", nil)
		return
	}

	job, err := h.jobs.Submit(c.Request.Context(), jobs.SubmitRequest{
		Kind:    domain.JobKind(req.Kind),
		UserID:  req.UserID,
		Payload: req.Payload,
	})
	if err != nil {
		httperr.Abort(c, err, "Failed to create job")
		return
	}

	h.respondJob(c, http.StatusCreated, job)
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, ok := parseJobID(c)
	if !ok {
		return
	}

	job, err := h.jobs.GetStatus(c.Request.Context(), jobID)
	if err != nil {
		httperr.Abort(c, err, "Failed to get job")
		return
	}

	h.respondJob(c, http.StatusOK, job)
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs newest first with optional filtering and cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid query parameters", nil)
		return
	}

	cursor, err := jobs.DecodeCursor(req.Cursor)
	if err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid cursor", nil)
		return
	}

	page, err := h.jobs.List(c.Request.Context(), jobs.Filter{
		UserID:   req.UserID,
		Kind:     domain.JobKind(req.Kind),
		Status:   domain.JobStatus(req.Status),
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		httperr.Abort(c, err, "Failed to list jobs")
		return
	}

	resp := dto.ListJobsResponse{
		Jobs:       make([]dto.JobDTO, 0, len(page.Jobs)),
		NextCursor: page.NextCursor,
	}
	for _, job := range page.Jobs {
		out, err := dto.FromJob(job)
		if err != nil {
			httperr.AbortWithError(c, http.StatusInternalServerError, err, "Failed to encode jobs", nil)
			return
		}
		resp.Jobs = append(resp.Jobs, out)
	}

	c.JSON(http.StatusOK, resp)
}

// ReportJob handles POST /api/v1/jobs/:job_id/reports
// Applies one observation from an external driver to the job state machine
func (h *JobHandler) ReportJob(c *gin.Context) {
	jobID, ok := parseJobID(c)
	if !ok {
		return
	}

	var req dto.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid request body", nil)
		return
	}

	job, err := h.jobs.Advance(c.Request.Context(), jobID, jobs.Report{
		Type:               jobs.ReportType(req.Type),
		CollaboratorTaskID: req.CollaboratorTaskID,
		Progress:           req.Progress,
		Artifact:           req.Artifact,
		ErrorKind:          domain.ParseErrorKind(req.ErrorKind),
		Message:            req.Message,
	})
	if err != nil {
		httperr.Abort(c, err, "Failed to apply report")
		return
	}

	h.respondJob(c, http.StatusOK, job)
}

func (h *JobHandler) respondJob(c *gin.Context, status int, job *domain.Job) {
	out, err := dto.FromJob(job)
	if err != nil {
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "Failed to encode job", nil)
		return
	}
	c.JSON(status, out)
}

func parseJobID(c *gin.Context) (string, bool) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "job_id must be a valid UUID", nil)
		return "", false
	}
	return jobID, true
}
