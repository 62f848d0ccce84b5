package errors

import (
	"errors"
	"net/http"

	"github.com/ticketera/tk-ticket/pkg/status"
)

// ApplicationError carries the HTTP status code and status word a public
// operation failure maps to, alongside a human readable message.
type ApplicationError struct {
	HTTPStatusCode int
	Status         string
	Message        string
}

func (e *ApplicationError) Error() string {
	return e.Message
}

func New(httpStatusCode int, statusWord string, message string) error {
	return &ApplicationError{
		HTTPStatusCode: httpStatusCode,
		Status:         statusWord,
		Message:        message,
	}
}

// Destruct extracts the application error from err. An err that is not an
// ApplicationError is treated as an internal server error.
func Destruct(err error) *ApplicationError {
	var ae *ApplicationError
	if errors.As(err, &ae) {
		return ae
	}

	return &ApplicationError{
		HTTPStatusCode: http.StatusInternalServerError,
		Status:         status.INTERNAL_SERVER_ERROR,
		Message:        err.Error(),
	}
}
