package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// AdapterError wraps provider errors with status metadata.
type AdapterError struct {
	Adapter   string
	Status    int
	Temporary bool
	Err       error
}

func (e *AdapterError) Error() string {
	if e == nil {
		return "adapter error"
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s adapter error (status=%d)", e.Adapter, e.Status)
}

func (e *AdapterError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// statusError builds an AdapterError for a non-2xx vendor reply.
func statusError(adapter string, status int, body []byte) *AdapterError {
	msg := string(body)
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return &AdapterError{
		Adapter: adapter,
		Status:  status,
		Err:     fmt.Errorf("%s API returned status %d: %s", adapter, status, msg),
	}
}

// malformed reports a 2xx reply that could not be used.
func malformed(adapter string, format string, args ...any) *AdapterError {
	return &AdapterError{
		Adapter: adapter,
		Status:  http.StatusOK,
		Err:     fmt.Errorf("%s: malformed reply: %s", adapter, fmt.Sprintf(format, args...)),
	}
}

// IsTransient reports whether an error is likely to clear on its own.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var adapterErr *AdapterError
	if errors.As(err, &adapterErr) {
		if adapterErr.Temporary {
			return true
		}
		if adapterErr.Status == http.StatusTooManyRequests || (adapterErr.Status >= 500 && adapterErr.Status <= 599) {
			return true
		}
	}
	return false
}
