package errors

// Error codes shared by HTTP responses and websocket error frames.
const (
	// Authentication errors
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeInvalidToken = "invalid_token"

	// Validation errors
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeInvalidPayload = "invalid_payload"

	// Resource errors
	ErrCodeNotFound     = "not_found"
	ErrCodeQuizNotFound = "quiz_not_found"

	// Session errors
	ErrCodeNicknameTaken     = "nickname_taken"
	ErrCodeInvalidTransition = "invalid_transition"
	ErrCodeWindowClosed      = "window_closed"
	ErrCodeDuplicateAnswer   = "duplicate_answer"
	ErrCodeNotConnected      = "not_connected"
	ErrCodeSessionClosed     = "session_closed"
	ErrCodeSessionCreateFail = "session_create_failed"

	// WebSocket errors
	ErrCodeUnknownMessageType = "unknown_message_type"
	ErrCodeTransportError     = "transport_error"
	ErrCodeTimeout            = "timeout"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"

	// Leaderboard errors
	ErrCodeLeaderboardFetchFailed = "leaderboard_fetch_failed"
)
