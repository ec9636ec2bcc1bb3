package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrNoData marks an upstream that answered successfully with nothing usable.
var ErrNoData = errors.New("provider returned no data")

// ErrorType classifies provider interaction failures
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeTransient
	ErrorTypeInvalidIdentifier
	ErrorTypePermanent
	ErrorTypeDataAbsent
	ErrorTypeContextCancelled
)

func (errorType ErrorType) String() string {
	switch errorType {
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeInvalidIdentifier:
		return "invalid_identifier"
	case ErrorTypePermanent:
		return "permanent"
	case ErrorTypeDataAbsent:
		return "data_absent"
	case ErrorTypeContextCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// StatusError is returned for non-2xx upstream responses
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Transient reports whether a retry or another tier could reasonably succeed
func (e *StatusError) Transient() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Classifier is implemented by errors that know their own class
type Classifier interface {
	ErrorType() ErrorType
}

// Classify maps an error onto the failure taxonomy
func Classify(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}

	var classified Classifier
	if errors.As(err, &classified) {
		return classified.ErrorType()
	}

	var statusError *StatusError
	if errors.As(err, &statusError) {
		if statusError.Transient() {
			return ErrorTypeTransient
		}
		return ErrorTypePermanent
	}

	switch {
	case errors.Is(err, context.Canceled):
		return ErrorTypeContextCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeTransient
	case errors.Is(err, ErrNoData):
		return ErrorTypeDataAbsent
	}

	var netError net.Error
	if errors.As(err, &netError) {
		return ErrorTypeTransient
	}

	message := strings.ToLower(err.Error())
	switch {
	case strings.Contains(message, "timeout") || strings.Contains(message, "connection"):
		return ErrorTypeTransient
	case strings.Contains(message, "parse"):
		return ErrorTypePermanent
	default:
		return ErrorTypeUnknown
	}
}
