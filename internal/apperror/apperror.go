package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
)

type Code string

const (
	BadRequest Code = "BAD_REQUEST"
	NotFound   Code = "NOT_FOUND"
	Internal   Code = "INTERNAL"
	Conflict   Code = "CONFLICT"

	CredentialsMissing Code = "CREDENTIALS_MISSING"
	AuthInvalid        Code = "AUTH_INVALID"
	TokenInvalid       Code = "TOKEN_INVALID"
	Platform           Code = "PLATFORM"
	Protocol           Code = "PROTOCOL"
	MaxRetries         Code = "MAX_RETRIES"
	ExportFailed       Code = "EXPORT_FAILED"
)

type AppError struct {
	code    Code
	message string
	err     error
}

func New(code Code, message string) *AppError {
	return &AppError{code: code, message: message}
}

// Wrap creates an AppError that keeps err as its cause.
func Wrap(code Code, message string, err error) *AppError {
	return &AppError{code: code, message: message, err: err}
}

func (e *AppError) Error() string {
	if e.err != nil {
		return e.message + ": " + e.err.Error()
	}
	return e.message
}

func (e *AppError) Code() Code      { return e.code }
func (e *AppError) Message() string { return e.message }
func (e *AppError) Unwrap() error   { return e.err }

func (e *AppError) HTTPStatus() int {
	switch e.code {
	case BadRequest:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case CredentialsMissing, TokenInvalid:
		return http.StatusUnauthorized
	case AuthInvalid:
		return http.StatusLocked
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf returns the code of the outermost AppError in err's chain.
func CodeOf(err error) (Code, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.code, true
	}
	return "", false
}

// Is reports whether any AppError in err's chain carries code.
func Is(err error, code Code) bool {
	for err != nil {
		var ae *AppError
		if !errors.As(err, &ae) {
			return false
		}
		if ae.code == code {
			return true
		}
		err = ae.err
	}
	return false
}

// FailedPollsError is returned when one or more polls in a batch did not
// produce a downloaded file.
type FailedPollsError struct {
	IDs    []int
	Causes map[int]error
}

func NewFailedPolls(causes map[int]error) *FailedPollsError {
	ids := make([]int, 0, len(causes))
	for id := range causes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return &FailedPollsError{IDs: ids, Causes: causes}
}

func (e *FailedPollsError) Error() string {
	parts := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		parts[i] = strconv.Itoa(id)
	}
	return fmt.Sprintf("failed polls: %s", strings.Join(parts, ", "))
}
