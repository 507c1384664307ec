package types

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Sentinel classes for failures inside the generation core. Concrete errors
// below unwrap to exactly one of them.
var (
	ErrConversion   = errors.New("audio conversion failed")
	ErrProvider     = errors.New("provider returned an unusable response")
	ErrConnectivity = errors.New("provider unreachable")
)

// ConversionError reports malformed or undecodable audio input
type ConversionError struct {
	Reason string
	Err    error
}

func NewConversionError(reason string, err error) *ConversionError {
	return &ConversionError{Reason: reason, Err: err}
}

func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("audio conversion failed: %s: %v", e.Reason, e.Err)
	}
	return "audio conversion failed: " + e.Reason
}

func (e *ConversionError) Unwrap() []error {
	return compact(ErrConversion, e.Err)
}

// ProviderError is a non-2xx status or a response missing the expected payload
type ProviderError struct {
	Provider string
	Status   int
	Body     string
	Err      error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Status != 0 && e.Body != "":
		return fmt.Sprintf("%s: status %d - %s", e.Provider, e.Status, e.Body)
	case e.Status != 0:
		return fmt.Sprintf("%s: status %d", e.Provider, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	default:
		return e.Provider + ": invalid response"
	}
}

func (e *ProviderError) Unwrap() []error {
	return compact(ErrProvider, e.Err)
}

// ConnectivityError is a transport failure: refused connection, DNS, timeout
type ConnectivityError struct {
	Provider string
	Err      error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s connectivity issue: %v", e.Provider, e.Err)
}

func (e *ConnectivityError) Unwrap() []error {
	return compact(ErrConnectivity, e.Err)
}

// Timeout reports whether the underlying failure was a deadline
func (e *ConnectivityError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// ClassifyTransportError wraps an error returned by http.Client.Do. Any such
// error means the request never produced a response, so it is connectivity.
func ClassifyTransportError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var connErr *ConnectivityError
	if errors.As(err, &connErr) {
		return err
	}
	return &ConnectivityError{Provider: provider, Err: err}
}

// FailureKind names the error class for logs
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConnectivity):
		return "connectivity"
	case errors.Is(err, ErrConversion):
		return "conversion"
	case errors.Is(err, ErrProvider):
		return "provider"
	default:
		return "unknown"
	}
}

func compact(errs ...error) []error {
	out := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}
