package types

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *Meta     `json:"meta,omitempty"`
}

type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type Meta struct {
	RequestID string `json:"request_id,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Total     int64  `json:"total,omitempty"`
}

// DeployAccepted is returned when a deploy is queued instead of run inline.
type DeployAccepted struct {
	TaskID    string `json:"task_id"`
	ProjectID string `json:"project_id"`
}

// PreviewResponse carries rendered HTML for the dashboard.
type PreviewResponse struct {
	HTML string `json:"html"`
}

// BuildResponse reports where a standalone build was written.
type BuildResponse struct {
	ProjectID string `json:"project_id"`
	BuildDir  string `json:"build_dir"`
}
