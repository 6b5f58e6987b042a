package execution

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors surfaced to queue clients.
var (
	// ErrTimeout means no response arrived within budget. The caller does
	// not know whether the broker operation ultimately succeeded;
	// reconciliation resolves the ambiguity.
	ErrTimeout = errors.New("execution: request timed out")

	// ErrConnection means the queue itself is unavailable.
	ErrConnection = errors.New("execution: queue unavailable")

	// ErrQueueClosed is returned by Submit after shutdown.
	ErrQueueClosed = errors.New("execution: queue closed")
)

// ApplicationError is a broker rejection (invalid symbol, no position to
// exit). Never retried.
type ApplicationError struct {
	Message string
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("execution: broker rejected request: %s", e.Message)
}

// TransientError marks a broker failure worth a transparent retry against a
// fresh session (expired token, mid-request disconnect).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("execution: transient broker error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// isTransient classifies an error for the worker's retry loop. Broker
// implementations wrap reconnectable failures in TransientError; string
// matching covers brokers that only surface raw messages.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "token is expired") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "disconnect")
}
