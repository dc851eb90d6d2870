package fingerprint

import (
	"errors"
	"fmt"
)

// ErrMalformed is matched by every fingerprint validation failure.
var ErrMalformed = errors.New("malformed fingerprint")

// MalformedError describes why a fingerprint or digest failed to parse.
type MalformedError struct {
	Input  string
	Reason string
	Err    error
}

func (e *MalformedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed fingerprint %q: %s: %v", e.Input, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed fingerprint %q: %s", e.Input, e.Reason)
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}

func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformed
}

func malformed(input, reason string, err error) error {
	return &MalformedError{Input: input, Reason: reason, Err: err}
}
