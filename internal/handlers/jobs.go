package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/studyloop/reviewquiz-backend/internal/repos"
)

type JobsHandler struct {
	jobs repos.JobRunRepo
}

func NewJobsHandler(jobs repos.JobRunRepo) *JobsHandler {
	return &JobsHandler{jobs: jobs}
}

// GET /api/jobs/:id
func (h *JobsHandler) GetJobByID(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	rows, err := h.jobs.GetByIDs(c.Request.Context(), nil, []uuid.UUID{jobID})
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "job_lookup_failed", err)
		return
	}
	if len(rows) == 0 {
		RespondError(c, http.StatusNotFound, "job_not_found", fmt.Errorf("job %s not found", jobID))
		return
	}
	RespondOK(c, gin.H{"job": rows[0]})
}
