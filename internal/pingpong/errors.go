package pingpong

import "fmt"

// AuthError reports a failed token issuance. Any operation needing a bearer
// header fails with it until the next successful attempt.
type AuthError struct {
	StatusCode int // 0 when the endpoint was unreachable
	Body       string
	Err        error
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("pingpong: token issuance failed (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("pingpong: token issuance failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// GatewayError reports a failed read call.
type GatewayError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("pingpong: %s failed with status %d", e.Endpoint, e.StatusCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *GatewayError) Unwrap() error { return e.Err }
