package conversation

import (
	"errors"
	"fmt"

	"github.com/samber/oops"
)

var (
	ErrOrphanToolMessage = errors.New("tool message does not answer the preceding call")
	ErrInvalidRequest    = errors.New("session id and message are required")
)

// ExternalServiceError reports a failed or timed out call to the model, the
// knowledge store or the similarity store.
type ExternalServiceError struct {
	Call string
	Err  error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Call, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

func external(call string, err error) error {
	return oops.In("conversation").
		Code("external_service").
		With("call", call).
		Wrap(&ExternalServiceError{Call: call, Err: err})
}

func IsExternal(err error) bool {
	var target *ExternalServiceError
	return errors.As(err, &target)
}
