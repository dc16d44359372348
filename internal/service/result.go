package service

// Hub-level result codes, complementing the validator's rejection codes.
const (
	CodeHubDisabled        = "HUB_DISABLED"
	CodeCircuitBreakerOpen = "CIRCUIT_BREAKER_OPEN"
	CodeQueueOverflow      = "QUEUE_OVERFLOW"
	CodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	CodeInternalError      = "INTERNAL_ERROR"
)

// EmitResult is the structured outcome of a single Emit call. Producers
// always receive one of these; no failure inside the hub escapes as a
// panic or raw error.
type EmitResult struct {
	Success   bool  `json:"success"`
	EventID   string `json:"eventId,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`

	Performance *PerformanceSnapshot `json:"performance,omitempty"`

	Error   string            `json:"error,omitempty"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
	// Fallback hints that real-time delivery is unavailable and the
	// producer should switch to an out-of-band path such as storage polling.
	Fallback bool `json:"fallback,omitempty"`
}

func failure(code, message string) EmitResult {
	return EmitResult{Success: false, Error: message, Code: code}
}

func fallbackFailure(code, message string) EmitResult {
	return EmitResult{Success: false, Error: message, Code: code, Fallback: true}
}

// Aggregate hub status values.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
	StatusCritical = "critical"
	StatusDisabled = "disabled"
)
