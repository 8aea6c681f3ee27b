package services

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies a service failure for retry decisions. Transient
// failures are worth a broker-level retry; permanent ones are not. Permanent
// failures are further split by fault side so operators can tell a bad
// request apart from a broken downstream when reading dead letters.
type ErrorKind int

const (
	KindTransient ErrorKind = iota
	KindPermanentClient
	KindPermanentServer
)

// ServiceError wraps a downstream service failure with its retry class.
type ServiceError struct {
	Service    string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s service error: %v", e.Service, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable failure.
func Transient(service string, err error) *ServiceError {
	return &ServiceError{Service: service, Kind: KindTransient, Err: err}
}

// Permanent wraps err as a non-retryable failure caused by this side of the
// call, such as a request we know the service will always reject.
func Permanent(service string, err error) *ServiceError {
	return &ServiceError{Service: service, Kind: KindPermanentClient, Err: err}
}

// PermanentServer wraps err as a non-retryable failure on the service side,
// such as a malformed or impossible response.
func PermanentServer(service string, err error) *ServiceError {
	return &ServiceError{Service: service, Kind: KindPermanentServer, Err: err}
}

// Classify maps an HTTP outcome to a ServiceError. Network errors, timeouts
// and 5xx responses are transient; 4xx responses are permanent client faults.
func Classify(service string, statusCode int, err error) *ServiceError {
	kind := KindTransient
	if statusCode >= 400 && statusCode < 500 {
		kind = KindPermanentClient
	}
	return &ServiceError{Service: service, Kind: kind, StatusCode: statusCode, Err: err}
}

// IsTransient reports whether err should be retried. Unclassified errors
// default to transient; context cancellation and deadline expiry are
// transient because a later attempt gets a fresh deadline.
func IsTransient(err error) bool {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Kind == KindTransient
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return true
}
