package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// FailureClass buckets stream failures for retry/escalation decisions.
type FailureClass int

const (
	// FailureNetwork covers unreachable hosts, dropped connections and
	// bad HTTP statuses. Retryable.
	FailureNetwork FailureClass = iota
	// FailureMedia covers decode and unsupported-format errors. Retried
	// the same way, but exhaustion means the station itself is broken.
	FailureMedia
	// FailureTimeout is a load attempt that produced no playable signal
	// within the load timeout. Treated like a network failure.
	FailureTimeout
)

func (c FailureClass) String() string {
	switch c {
	case FailureNetwork:
		return "network"
	case FailureMedia:
		return "media"
	case FailureTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

var (
	// ErrNoTrack is returned by transport operations that need a
	// current track when there is none.
	ErrNoTrack = errors.New("no current track")
	// ErrEmptyList is returned when next/previous has nothing to
	// traverse.
	ErrEmptyList = errors.New("no stations available")
	// ErrLoadTimeout marks a load attempt that hit the load timeout.
	ErrLoadTimeout = errors.New("stream load timed out")
	// ErrStreamEnded marks a live stream whose body ended unexpectedly.
	ErrStreamEnded = errors.New("stream ended unexpectedly")
	// ErrSuperseded marks a load attempt abandoned because a newer one
	// took over.
	ErrSuperseded = errors.New("load superseded by a newer request")
)

// StreamError wraps a failure with its class and the URL it happened on.
type StreamError struct {
	Class FailureClass
	URL   string
	Err   error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("%s failure for %s: %v", e.Class, e.URL, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

func newStreamError(class FailureClass, url string, err error) *StreamError {
	return &StreamError{Class: class, URL: url, Err: err}
}

// httpStatusError is a non-2xx response from the stream host.
type httpStatusError struct {
	StatusCode int
	Status     string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("stream returned status %d: %s", e.StatusCode, e.Status)
}

// isNonRetryable reports failures that no amount of retrying will fix,
// so the ladder can move on immediately.
func isNonRetryable(err error) bool {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case 401, 403, 404, 410:
			return true
		}
	}
	return false
}

// classifyFailure assigns a failure class to an arbitrary session error.
func classifyFailure(err error) FailureClass {
	if err == nil {
		return FailureNetwork
	}
	if errors.Is(err, ErrLoadTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return FailureNetwork
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return FailureNetwork
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) ||
		errors.Is(err, ErrStreamEnded) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return FailureNetwork
	}
	// Anything the decoders reject lands here.
	return FailureMedia
}
