package stages

import (
	"errors"
	"fmt"
)

// UnparseableError reports model output that failed the stage's response
// contract: not JSON, or JSON rejected by the schema. Stages recover
// from it with documented per-field fallbacks rather than silently
// defaulting, so the condition stays observable.
type UnparseableError struct {
	Stage string
	Err   error
}

func (e *UnparseableError) Error() string {
	return fmt.Sprintf("%s output unparseable: %v", e.Stage, e.Err)
}

func (e *UnparseableError) Unwrap() error {
	return e.Err
}

// IsUnparseable reports whether err is a response-contract violation.
func IsUnparseable(err error) bool {
	var ue *UnparseableError
	return errors.As(err, &ue)
}
