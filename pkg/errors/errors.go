// Package errors provides the typed error taxonomy for the producer core.
package errors

import (
	"fmt"
	"time"
)

// Code identifies one of the producer's terminal error classes.
type Code string

const (
	// CodeProducerDisposed is returned synchronously from Send when the
	// producer's lifecycle has already entered Stop/Dispose.
	CodeProducerDisposed Code = "producer-disposed"

	// CodeIngressSealed is returned synchronously from Send on the race
	// where the ingress queue is sealed between the disposed check and
	// the enqueue attempt.
	CodeIngressSealed Code = "ingress-sealed"

	// CodeSendFailed marks every submission in an outer group whose
	// connection send faulted. Carries the failing route and cause.
	CodeSendFailed Code = "send-failed"

	// CodeDispatchInternal marks an unexpected failure inside the
	// dispatch loop that did not originate from a connection send.
	CodeDispatchInternal Code = "dispatch-internal"

	// CodeCancelled is returned by TakeBatch when its cancel signal trips.
	CodeCancelled Code = "cancelled"
)

// ProducerError is the error type surfaced by the producer core, either
// synchronously from Send or asynchronously through a submission's future.
type ProducerError struct {
	Code      Code
	Component string
	Operation string
	Message   string
	Route     string // opaque route description, set for CodeSendFailed
	Cause     error
	Timestamp time.Time
}

// New builds a ProducerError with no cause.
func New(code Code, component, operation, message string) *ProducerError {
	return &ProducerError{
		Code:      code,
		Component: component,
		Operation: operation,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Wrap attaches an underlying cause and returns the receiver for chaining.
func (e *ProducerError) Wrap(cause error) *ProducerError {
	e.Cause = cause
	return e
}

// WithRoute records the route a send failure occurred on.
func (e *ProducerError) WithRoute(route string) *ProducerError {
	e.Route = route
	return e
}

func (e *ProducerError) Error() string {
	if e.Cause != nil {
		if e.Route != "" {
			return fmt.Sprintf("[%s:%s] %s: %s (route=%s): %v", e.Component, e.Operation, e.Code, e.Message, e.Route, e.Cause)
		}
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Component, e.Operation, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is / errors.As.
func (e *ProducerError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, &ProducerError{Code: CodeSendFailed}) match on code
// alone, the way callers are expected to branch on failure class.
func (e *ProducerError) Is(target error) bool {
	t, ok := target.(*ProducerError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Disposed builds the synchronous producer-disposed error for Send.
func Disposed(operation string) *ProducerError {
	return New(CodeProducerDisposed, "producer", operation, "producer is stopping or stopped")
}

// Sealed builds the synchronous ingress-sealed error for Send.
func Sealed(operation string) *ProducerError {
	return New(CodeIngressSealed, "ingress", operation, "ingress queue sealed")
}

// SendFailed builds the outer-group failure resolved onto every submission
// in the group.
func SendFailed(route string, cause error) *ProducerError {
	return New(CodeSendFailed, "fanout", "produceAndSend", "connection send failed").WithRoute(route).Wrap(cause)
}

// DispatchInternal builds the error logged (and swallowed) by the dispatch
// loop for failures that did not originate from a connection send.
func DispatchInternal(cause error) *ProducerError {
	return New(CodeDispatchInternal, "dispatch", "run", "unexpected dispatch failure").Wrap(cause)
}

// Cancelled builds the error TakeBatch returns when its cancel signal trips,
// whether or not items have been observed; no items are removed.
func Cancelled() *ProducerError {
	return New(CodeCancelled, "ingress", "TakeBatch", "cancelled while waiting for items")
}
