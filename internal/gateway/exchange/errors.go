package exchange

import (
	"errors"
	"fmt"
)

// NetworkError is a transient failure; the same call may succeed later.
type NetworkError struct {
	Exchange string
	Op       string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: network error: %v", e.Exchange, e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RejectedError is a definitive refusal (below minimum, bad address, no balance).
type RejectedError struct {
	Exchange string
	Op       string
	Code     string
	Message  string
}

func (e *RejectedError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s %s: rejected (%s): %s", e.Exchange, e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("%s %s: rejected: %s", e.Exchange, e.Op, e.Message)
}

func IsRejected(err error) bool {
	var rej *RejectedError
	return errors.As(err, &rej)
}

// IsRetryable is true for every non-nil error that is not a RejectedError.
func IsRetryable(err error) bool {
	return err != nil && !IsRejected(err)
}

func networkErr(name, op string, err error) error {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return err
	}
	return &NetworkError{Exchange: name, Op: op, Err: err}
}
