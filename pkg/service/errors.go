package service

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

// ErrorKind classifies request failures.
type ErrorKind string

const (
	KindUnknownLanguage   ErrorKind = "unknown_language"
	KindEmptyInput        ErrorKind = "empty_input"
	KindTooLong           ErrorKind = "too_long"
	KindSameLanguage      ErrorKind = "same_language"
	KindModelUnavailable  ErrorKind = "model_unavailable"
	KindTranslationFailed ErrorKind = "translation_failed"
	KindInvalidFile       ErrorKind = "invalid_file"
)

// RequestError is the terminal failure of one request. Detail carries the
// underlying message verbatim when one exists.
type RequestError struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *RequestError) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *RequestError) Unwrap() error { return e.Err }

// UserMessage renders the error for display next to the form.
func (e *RequestError) UserMessage() string {
	switch e.Kind {
	case KindEmptyInput:
		return "Please enter text to translate."
	case KindTooLong:
		return fmt.Sprintf("The text is too long. Please limit it to %d characters.", MaxTextLength)
	case KindSameLanguage:
		return "The source and target languages are the same. Please choose different languages."
	case KindUnknownLanguage:
		return fmt.Sprintf("Unsupported language: %s", e.Detail)
	case KindModelUnavailable:
		return fmt.Sprintf("Could not load the translation model: %s", e.Detail)
	case KindTranslationFailed:
		return fmt.Sprintf("Translation error: %s", e.Detail)
	case KindInvalidFile:
		return fmt.Sprintf("The file could not be read: %s", e.Detail)
	default:
		return e.Error()
	}
}

// HTTPStatus maps the kind to a response status.
func (e *RequestError) HTTPStatus() int {
	switch e.Kind {
	case KindEmptyInput, KindTooLong, KindSameLanguage, KindUnknownLanguage, KindInvalidFile:
		return http.StatusBadRequest
	case KindModelUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// GRPCCode maps the kind to a gRPC status code.
func (e *RequestError) GRPCCode() codes.Code {
	switch e.Kind {
	case KindEmptyInput, KindTooLong, KindUnknownLanguage, KindInvalidFile:
		return codes.InvalidArgument
	case KindSameLanguage:
		return codes.FailedPrecondition
	case KindModelUnavailable:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

func newRequestError(kind ErrorKind, detail string, err error) *RequestError {
	return &RequestError{Kind: kind, Detail: detail, Err: err}
}

// AsRequestError extracts a *RequestError from err.
func AsRequestError(err error) (*RequestError, bool) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr, true
	}
	return nil, false
}
