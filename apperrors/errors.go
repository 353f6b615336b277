package apperrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind classifies where an error came from.
type Kind string

const (
	KindNetwork    Kind = "network"
	KindAPI        Kind = "api"
	KindValidation Kind = "validation"
	KindStorage    Kind = "storage"
	KindInternal   Kind = "internal"
)

// Error represents an application error
type Error struct {
	Code    int    `json:"code"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// JSON returns the error as a JSON string
func (e *Error) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// New creates a new Error
func New(code int, kind Kind, message string, err error) *Error {
	return &Error{
		Code:    code,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Network wraps a transport failure (DNS, refused connection, timeout).
func Network(err error) *Error {
	return New(http.StatusBadGateway, KindNetwork, "Unable to reach the store right now. Please check your connection and try again.", err)
}

// API builds an error from a non-success backend response.
func API(status int, message string) *Error {
	if message == "" {
		message = http.StatusText(status)
	}
	if message == "" {
		message = "Request failed"
	}
	return New(status, KindAPI, message, nil)
}

// Validation rejects input before any network call is made.
func Validation(message string) *Error {
	return New(http.StatusBadRequest, KindValidation, message, nil)
}

func Storage(err error) *Error {
	return New(http.StatusServiceUnavailable, KindStorage, "Storage unavailable", err)
}

func Internal(message string, err error) *Error {
	return New(http.StatusInternalServerError, KindInternal, message, err)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}

// Message returns the human readable part of err, suitable for a toast.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if appErr, ok := As(err); ok {
		return appErr.Message
	}
	return "Something went wrong. Please try again."
}

// Status returns the HTTP status to answer with for err.
func Status(err error) int {
	if appErr, ok := As(err); ok && appErr.Code >= 400 {
		return appErr.Code
	}
	return http.StatusInternalServerError
}

// Common error types
var (
	ErrBadRequest         = New(http.StatusBadRequest, KindValidation, "Bad request", nil)
	ErrUnauthorized       = New(http.StatusUnauthorized, KindAPI, "Unauthorized", nil)
	ErrNotFound           = New(http.StatusNotFound, KindAPI, "Not found", nil)
	ErrInternalServer     = New(http.StatusInternalServerError, KindInternal, "Internal server error", nil)
	ErrServiceUnavailable = New(http.StatusServiceUnavailable, KindStorage, "Service unavailable", nil)
)

// Envelope writes the failure envelope used by every JSON endpoint.
func Envelope(err error) gin.H {
	body := gin.H{"message": Message(err)}
	if appErr, ok := As(err); ok {
		body["code"] = string(appErr.Kind)
	}
	return gin.H{"success": false, "error": body}
}

// Abort answers the request with err and stops the handler chain.
func Abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(Status(err), Envelope(err))
}

// ErrorMiddleware renders the last error attached with c.Error.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		if _, ok := As(err); !ok {
			err = Internal("Internal server error", err)
		}
		Abort(c, err)
	}
}
