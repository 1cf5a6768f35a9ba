package errors

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupError(t *testing.T) {
	httpErr := &HTTPError{StatusCode: 502, Status: "502 Bad Gateway", URL: "http://a/"}
	err := &LookupError{Errs: []error{
		&ServiceError{URL: "http://a/", Err: httpErr},
		&ServiceError{URL: "http://b/", Err: context.DeadlineExceeded},
	}}

	assert.ErrorIs(t, err, ErrNoPublicIP)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var got *HTTPError
	assert.True(t, errors.As(err, &got))
	assert.Equal(t, 502, got.StatusCode)

	assert.Contains(t, err.Error(), "no public IP address resolved: ")
	assert.Contains(t, err.Error(), "service 'http://b/'")
}

func TestLookupError_Empty(t *testing.T) {
	assert.Equal(t, ErrNoPublicIP.Error(), (&LookupError{}).Error())
}

func TestHTTPError(t *testing.T) {
	assert.Equal(t, "unexpected status 404 Not Found from http://x/",
		(&HTTPError{StatusCode: 404, Status: "404 Not Found", URL: "http://x/"}).Error())
	assert.Equal(t, "unexpected status 500 from http://x/",
		(&HTTPError{StatusCode: 500, URL: "http://x/"}).Error())
}

func TestSpeedTestError(t *testing.T) {
	cause := errors.New("connection reset")
	err := &SpeedTestError{Phase: "upload", Err: cause}

	assert.ErrorIs(t, err, ErrSpeedTestFailed)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "speed test failed (upload): connection reset", err.Error())
}
