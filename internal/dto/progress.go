package dto

// ProgressEvent is pushed to websocket subscribers while a job runs.
type ProgressEvent struct {
	Job      string `json:"job"`
	Stage    string `json:"stage"`
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`
}

// ErrorResponse is the JSON error body, {"detail": "..."}.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
