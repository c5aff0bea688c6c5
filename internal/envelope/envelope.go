// Package envelope builds the uniform response body returned by every route.
package envelope

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"
)

// TimeLayout is the TimeStamp format.
const TimeLayout = "2006-01-02 15:04:05"

// EvType discriminates success from failure.
type EvType string

const (
	EvSuccess EvType = "Success"
	EvFailed  EvType = "Failed"
)

// Codes and messages shared across routes.
const (
	CodeMissingToken        = "MissingToken"
	CodeTokenInvalid        = "TOKEN_INVALID"
	CodeJWTSecretMissing    = "JWT_SECRET_MISSING"
	CodePlatformIDMismatch  = "XPLATFORM_ID_MISMATCH"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeSidMismatch         = "XPlatformSidMismatch"
	CodeSessionInitFailed   = "SessionInitFailed"
	CodeInternalServerError = "InternalServerError"
	CodePlatformUnsupported = "PlatformNotSupported"

	MsgMissingToken        = "Missing authentication token"
	MsgTokenInvalid        = "Token is invalid or expired"
	MsgJWTSecretMissing    = "JWT secret is not configured"
	MsgPlatformIDMismatch  = "Platform ID mismatch"
	MsgUnauthorized        = "Unauthorized access"
	MsgSidMismatch         = "XPlatformSID does not match"
	MsgValidationFailed    = "Request validation failed"
	MsgInternalError       = "Internal server error"
	MsgPlatformUnsupported = "Platform not supported"
)

// Request carries the optional client correlation fields echoed back.
type Request struct {
	ReqID   string
	ReqCode string
}

// Envelope is the response body.
type Envelope struct {
	Message   string `json:"Message"`
	TimeStamp string `json:"TimeStamp"`
	EvCode    string `json:"EvCode"`
	EvType    EvType `json:"EvType"`
	ReqID     string `json:"ReqId,omitempty"`
	ReqCode   string `json:"ReqCode,omitempty"`
	Data      any    `json:"Data,omitempty"`
}

var now = time.Now

// Success builds a success envelope. Data is omitted when data is nil.
func Success(message, code string, data any, req Request) Envelope {
	return Envelope{
		Message:   message,
		TimeStamp: now().Format(TimeLayout),
		EvCode:    code,
		EvType:    EvSuccess,
		ReqID:     req.ReqID,
		ReqCode:   req.ReqCode,
		Data:      normalize(data),
	}
}

// normalize turns typed nils into an untyped nil so omitempty drops them.
func normalize(data any) any {
	if data == nil {
		return nil
	}
	v := reflect.ValueOf(data)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		if v.IsNil() {
			return nil
		}
	}
	return data
}

// Error is a failure carrying its envelope and HTTP status.
type Error struct {
	Status   int
	Envelope Envelope
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Envelope.EvCode + ": " + e.Envelope.Message + ": " + e.Cause.Error()
	}
	return e.Envelope.EvCode + ": " + e.Envelope.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// WithCause attaches an internal error for logging. It is never serialized.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// Fail builds a failure.
func Fail(status int, message, code string, req Request) *Error {
	return &Error{
		Status: status,
		Envelope: Envelope{
			Message:   message,
			TimeStamp: now().Format(TimeLayout),
			EvCode:    code,
			EvType:    EvFailed,
			ReqID:     req.ReqID,
			ReqCode:   req.ReqCode,
		},
	}
}

// Invalid builds a 400 for a request that failed validation.
func Invalid(message string, req Request) *Error {
	if message == "" {
		message = MsgValidationFailed
	}
	return Fail(http.StatusBadRequest, message, CodeSessionInitFailed, req)
}

// Required returns an Invalid failure naming the first blank field. fields
// alternates names and values.
func Required(req Request, fields ...string) error {
	for i := 0; i+1 < len(fields); i += 2 {
		if strings.TrimSpace(fields[i+1]) == "" {
			return Invalid(fields[i]+" should not be empty", req)
		}
	}
	return nil
}

// StatusError is an unstructured error with an HTTP status.
type StatusError struct {
	Status int
	Err    error
}

func (e *StatusError) Error() string { return e.Err.Error() }
func (e *StatusError) Unwrap() error { return e.Err }

// FromError converts any error into a failure. Structured errors pass
// through; others get a code inferred from their status.
func FromError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	status := http.StatusInternalServerError
	var se *StatusError
	if errors.As(err, &se) && se.Status >= 400 {
		status = se.Status
	}
	return Infer(status).WithCause(err)
}

// Infer builds a failure for status when no structured body exists.
func Infer(status int) *Error {
	switch {
	case status == http.StatusUnauthorized:
		return Fail(status, MsgUnauthorized, CodeUnauthorized, Request{})
	case status == http.StatusForbidden:
		return Fail(status, MsgMissingToken, CodeMissingToken, Request{})
	case status >= 500:
		return Fail(status, MsgInternalError, CodeSessionInitFailed, Request{})
	default:
		return Fail(status, MsgValidationFailed, CodeSessionInitFailed, Request{})
	}
}
