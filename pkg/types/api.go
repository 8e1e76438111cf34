package types

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid X-Gitlab-Token header
	Error string `json:"error" example:"invalid X-Gitlab-Token header"`
	// HTTP status code.
	// example: 403
	Code int `json:"code" example:"403"`
}

// DeferredCheckStatus summarizes one pending deferred check for /status.
type DeferredCheckStatus struct {
	// Issue key the check reconciles.
	// example: ABC-12
	Key string `json:"key" example:"ABC-12"`
	// When the check is next evaluated (unix seconds).
	// example: 1700000005
	ScheduledAt int64 `json:"scheduled_at_unix" example:"1700000005"`
	// Evaluations so far, starting at 1.
	// example: 2
	Tries int `json:"tries" example:"2"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Worker lifecycle state: running, stopping or stopped.
	// example: running
	State string `json:"state" example:"running"`
	// Events waiting in the inbound queue.
	// example: 0
	QueueDepth int `json:"queue_depth" example:"0"`
	// Events dispatched through the handler pipeline since start.
	// example: 42
	Processed uint64 `json:"processed" example:"42"`
	// Events dropped because the queue was at capacity.
	// example: 0
	Dropped uint64 `json:"dropped" example:"0"`
	// Registered handlers in dispatch order.
	// example: ["reviewer_suggestion","review_checklist","jira_update"]
	Handlers []string `json:"handlers" example:"reviewer_suggestion,review_checklist,jira_update"`
	// Pending deferred checks.
	DeferredChecks []DeferredCheckStatus `json:"deferred_checks"`
	// Worker start time (unix seconds).
	// example: 1700000000
	StartedAt int64 `json:"started_at_unix" example:"1700000000"`
}

