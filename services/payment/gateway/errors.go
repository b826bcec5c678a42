package gateway

import "fmt"

// Refund failure codes shared across providers.
const (
	CodeRefundNotSupported = "refund_not_supported"
	CodeRefundFailed       = "refund_failed"
)

// ConfigurationError signals that provider credentials are not configured.
// Surfaced to callers as "payment method unavailable", never a crash.
type ConfigurationError struct {
	Gateway string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("gateway %s is not configured", e.Gateway)
}

// GatewayError is an unambiguous rejection from the provider.
type GatewayError struct {
	Gateway string
	Code    string
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s rejected request (%s): %s", e.Gateway, e.Code, e.Message)
}

// AmbiguousOutcomeError signals a timeout or transport failure where the
// payment may still have succeeded. Callers must not mark anything FAILED on
// this error; the webhook resolves the outcome.
type AmbiguousOutcomeError struct {
	Gateway string
	Op      string
	Err     error
}

func (e *AmbiguousOutcomeError) Error() string {
	return fmt.Sprintf("gateway %s: %s outcome unknown: %v", e.Gateway, e.Op, e.Err)
}

func (e *AmbiguousOutcomeError) Unwrap() error {
	return e.Err
}

// InvalidSignatureError signals a webhook payload that failed signature
// verification. These are rejected outright, unlike every other webhook
// condition which is acknowledged.
type InvalidSignatureError struct {
	Gateway string
	Err     error
}

func (e *InvalidSignatureError) Error() string {
	return fmt.Sprintf("gateway %s: webhook signature verification failed: %v", e.Gateway, e.Err)
}

func (e *InvalidSignatureError) Unwrap() error {
	return e.Err
}
