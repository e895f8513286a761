package planner

import "fmt"

// Messages returned to API callers. Upstream detail is never included.
const (
	MsgDestinationRequired = "Destination is required."
	MsgConfiguration       = "Server configuration error: GEMINI_API_KEY or GEMINI_API_URL is missing."
	MsgUpstream            = "Internal server error processing request."
)

// ValidationError reports unusable user input
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ConfigurationError reports missing server-side credentials
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// UpstreamError wraps a failed call to the generative API
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream request failed: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
