package model

import (
	"errors"
	"time"
)

var (
	ErrRateLimitReached  = errors.New("RATE_LIMIT_REACHED")
	ErrNotFound          = errors.New("NOT_FOUND")
	ErrInvalidParameters = errors.New("INVALID_PARAMETERS")
	ErrFetch             = errors.New("FETCH_ERROR")
)

type APIError struct {
	Code    string     `json:"code"`
	Message string     `json:"message"`
	ResetAt *time.Time `json:"resetAt,omitempty"` // only set for rate limit errors when github sent a reset time
}

// NewAPIError maps an internal error to the payload returned to API callers
// raw github error bodies are never exposed here
func NewAPIError(errReason error) APIError {
	switch {
	case errors.Is(errReason, ErrRateLimitReached):
		return APIError{
			Code:    ErrRateLimitReached.Error(),
			Message: "github rate limit reached. consider using a token to increase the limit or wait until the reset time and try again",
		}

	case errors.Is(errReason, ErrNotFound):
		return APIError{
			Code:    ErrNotFound.Error(),
			Message: "no repositories found or invalid username",
		}

	case errors.Is(errReason, ErrInvalidParameters):
		return APIError{
			Code:    ErrInvalidParameters.Error(),
			Message: "invalid query parameters. all sizes must be positive integers",
		}

	case errors.Is(errReason, ErrFetch):
		return APIError{
			Code:    ErrFetch.Error(),
			Message: "internal server error. contact our support with the reason code for assistance",
		}
	}

	return APIError{
		Code:    "GENERIC_ERROR",
		Message: "internal server error. contact our support with the reason code for assistance",
	}
}

// NewRateLimitAPIError is the rate limit payload with the reset time attached when known
func NewRateLimitAPIError(info RateLimitInfo) APIError {
	apiErr := NewAPIError(ErrRateLimitReached)

	if resetAt, ok := info.ResetTime(); ok {
		apiErr.ResetAt = &resetAt
	}

	return apiErr
}
