package types

// ConvertRequest is the payload for POST /convert.
type ConvertRequest struct {
	// Natural-language question to translate into SQL.
	// example: how many customers are in Berlin?
	Question string `json:"question" example:"how many customers are in Berlin?"`
	// Optional profile identifier. If empty, the server default is used.
	// example: sqlcoder-7b-q4
	Profile string `json:"profile,omitempty" example:"sqlcoder-7b-q4"`
}

// ConvertResponse is returned when conversion succeeds.
type ConvertResponse struct {
	// Validated SQL statement.
	// example: SELECT COUNT(*) FROM customers WHERE city = 'Berlin';
	SQL string `json:"sql" example:"SELECT COUNT(*) FROM customers WHERE city = 'Berlin';"`
	// Labels of deterministic repairs applied during validation, in order.
	// example: ["stripped trailing text"]
	Corrections []string `json:"corrections"`
	// Profile that produced the statement.
	Profile string `json:"profile"`
	// Backend the model ran on (cpu, cuda, metal).
	Backend string `json:"backend,omitempty"`
	// Numeric precision the statement was generated at (float32, float16,
	// bfloat16).
	Precision string `json:"precision,omitempty"`
	// Generation attempts consumed (1 or 2).
	Attempts int `json:"attempts,omitempty"`
	// Server-assigned request identifier for log correlation.
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Failure category (context_unavailable, model_unavailable,
	// numeric_instability, unparseable, timeout) or empty for plain errors.
	Kind string `json:"kind,omitempty" example:"unparseable"`
	// Human-readable cause.
	Error string `json:"error" example:"no correction produced a valid statement"`
	// HTTP status code.
	Code int `json:"code" example:"422"`
}

// ProfileInfo summarizes one configured model profile for GET /models.
type ProfileInfo struct {
	ID        string `json:"id" example:"sqlcoder-7b-q4"`
	Family    string `json:"family" example:"sqlcoder"`
	MinMemMB  int    `json:"min_mem_mb" example:"6144"`
	Precision string `json:"precision" example:"float16"`
	// Whether weights were found on disk.
	Resolved bool `json:"resolved"`
}

// ProfilesResponse wraps the list of profiles.
type ProfilesResponse struct {
	Profiles []ProfileInfo `json:"profiles"`
}

// InstanceStatus summarizes a loaded model instance for /status.
type InstanceStatus struct {
	ProfileID string `json:"profile_id" example:"sqlcoder-7b-q4"`
	State     string `json:"state" example:"ready"`
	Backend   string `json:"backend" example:"cpu"`
	Precision string `json:"precision" example:"float32"`
	LastUsed  int64  `json:"last_used"`
	EstMemMB  int    `json:"est_mem_mb"`
	QueueLen  int    `json:"queue_len"`
	Inflight  int    `json:"inflight"`
}

// StatusResponse captures engine-wide state for /status.
type StatusResponse struct {
	State     string           `json:"state"`
	BudgetMB  int              `json:"budget_mb"`
	UsedMB    int              `json:"used_mb"`
	MarginMB  int              `json:"margin_mb"`
	Instances []InstanceStatus `json:"instances"`
	Error     string           `json:"error,omitempty"`
}
