package dto

type SubmitBatchRequest struct {
	URLs []string `json:"urls" binding:"required,min=1,dive,required,url"`
}

type SubmitBatchResponse struct {
	JobIDs   []string `json:"job_ids"`
	Orphaned []string `json:"orphaned,omitempty"`
}

type ListJobsRequest struct {
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	ID            int64  `json:"id"`
	ExternalJobID string `json:"external_job_id"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

type JobStatsResponse struct {
	Counts map[string]int64 `json:"counts"`
	Total  int64            `json:"total"`
}
