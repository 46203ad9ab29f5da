package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/scrapequeue/internal/api/dto"
	"github.com/cuongbtq/scrapequeue/internal/batchclient"
	"github.com/cuongbtq/scrapequeue/internal/queue"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// SubmitBatch handles POST /api/v1/batches
// Creates remote scraping jobs for the given URLs and queues them
func (h *JobHandler) SubmitBatch(c *gin.Context) {
	var req dto.SubmitBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	h.logger.Info("SubmitBatch called", slog.Int("urls", len(req.URLs)))

	result, err := h.producer.Submit(c.Request.Context(), req.URLs)
	if err != nil {
		h.logger.Error("Failed to submit batch", slog.String("error", err.Error()))

		if errors.Is(err, batchclient.ErrSubmission) {
			c.JSON(http.StatusBadGateway, gin.H{
				"error": "Batch service rejected the submission",
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":    "Failed to queue submitted jobs",
			"job_ids":  nonNil(result.Pushed),
			"orphaned": nonNil(result.Orphaned),
		})
		return
	}

	c.JSON(http.StatusAccepted, dto.SubmitBatchResponse{
		JobIDs: nonNil(result.Pushed),
	})
}

// GetJob handles GET /api/v1/jobs/:external_job_id
// Retrieves one queued job
func (h *JobHandler) GetJob(c *gin.Context) {
	externalJobID := c.Param("external_job_id")
	if externalJobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "external_job_id is required",
		})
		return
	}

	job, err := h.jobs.Get(c.Request.Context(), externalJobID)
	if err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}

		h.logger.Error("Failed to get job",
			slog.String("external_job_id", externalJobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	c.JSON(http.StatusOK, toJobDTO(job))
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs newest first with optional status filter and cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	status := queue.Status(req.Status)
	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid status",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}

	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	beforeID, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	jobs, err := h.jobs.List(c.Request.Context(), queue.ListFilter{
		Status:   status,
		PageSize: req.PageSize,
		BeforeID: beforeID,
	})
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs",
		})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	jobResponse := make([]dto.JobDTO, len(jobs))
	for i := range jobs {
		jobResponse[i] = toJobDTO(&jobs[i])
	}

	var nextCursor string
	if hasMore {
		nextCursor = EncodeJobCursor(jobs[len(jobs)-1].ID)
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}

// JobStats handles GET /api/v1/jobs/stats
// Counts jobs per status
func (h *JobHandler) JobStats(c *gin.Context) {
	stats, err := h.jobs.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to count jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to count jobs",
		})
		return
	}

	resp := dto.JobStatsResponse{Counts: make(map[string]int64, len(stats))}
	for status, n := range stats {
		resp.Counts[string(status)] = n
		resp.Total += n
	}

	c.JSON(http.StatusOK, resp)
}

func toJobDTO(job *queue.Job) dto.JobDTO {
	return dto.JobDTO{
		ID:            job.ID,
		ExternalJobID: job.ExternalJobID,
		Status:        string(job.Status),
		CreatedAt:     job.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:     job.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
