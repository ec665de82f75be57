package types

import (
	"errors"

	appErr "github.com/pagecraft/engine/pkg/errors"
)

// FromAppError converts err into the wire error. Wrapped causes are not
// exposed; metadata is.
func FromAppError(err error) *APIError {
	if err == nil {
		return nil
	}
	var e *appErr.AppError
	if errors.As(err, &e) {
		return &APIError{Code: string(e.Code), Message: e.Message, Details: e.Meta}
	}
	return &APIError{Code: string(appErr.CodeUnknown), Message: err.Error()}
}
