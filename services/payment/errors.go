package payment

import (
	"fmt"

	"learnify/models"
)

// ValidationError covers bad amounts, unknown currencies or items, and
// orders the caller cannot see. Returned synchronously with a clear reason.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// DuplicateEventError signals a webhook or confirm call for an order that is
// already terminal. Treated as success by callers: the first trigger did the
// work, the duplicate must not reapply side effects.
type DuplicateEventError struct {
	OrderNumber string
	Status      models.OrderStatus
}

func (e *DuplicateEventError) Error() string {
	return fmt.Sprintf("order %s already settled with status %s", e.OrderNumber, e.Status)
}

// PolicyViolationError rejects a refund outside the policy window or on a
// non-completed order. No gateway call is made.
type PolicyViolationError struct {
	OrderNumber string
	Reason      string
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("order %s: %s", e.OrderNumber, e.Reason)
}
