package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Common error types
var (
	// Settings errors
	ErrSettingNotFound = errors.New("setting not found")
	ErrConfigParse     = errors.New("failed to parse .env configuration file")
	ErrSettingsFormat  = errors.New("unsupported settings file format")

	// Network errors
	ErrNoPublicIP      = errors.New("no public IP address resolved")
	ErrNoServices      = errors.New("no IP echo services configured")
	ErrInvalidIP       = errors.New("invalid IP address")
	ErrSpeedTestFailed = errors.New("speed test failed")
)

// ServiceError represents a failure of a single external service
type ServiceError struct {
	URL string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service '%s': %v", e.URL, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// LookupError collects the per-service failures of a public IP lookup
type LookupError struct {
	Errs []error
}

func (e *LookupError) Error() string {
	if len(e.Errs) == 0 {
		return ErrNoPublicIP.Error()
	}
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%v: %s", ErrNoPublicIP, strings.Join(msgs, "; "))
}

func (e *LookupError) Unwrap() []error {
	return append([]error{ErrNoPublicIP}, e.Errs...)
}

// HTTPError represents an unexpected HTTP status
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *HTTPError) Error() string {
	status := e.Status
	if status == "" {
		status = fmt.Sprint(e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %s from %s", status, e.URL)
}

// SpeedTestError represents a failure in one phase of a speed test
type SpeedTestError struct {
	Phase string
	Err   error
}

func (e *SpeedTestError) Error() string {
	return fmt.Sprintf("%v (%s): %v", ErrSpeedTestFailed, e.Phase, e.Err)
}

func (e *SpeedTestError) Unwrap() []error {
	return []error{ErrSpeedTestFailed, e.Err}
}
