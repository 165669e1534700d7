// internal/delivery/errors.go

package delivery

import "fmt"

// TransportError wraps a network-layer delivery failure: the POST itself
// did not complete. Transport errors are retried up to the configured
// budget and are the only delivery errors surfaced to the caller callback.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ServiceError is an application-level rejection reported by the remote
// collector inside a transport-successful response. It is never retried and
// is routed only to the error sink, never to the caller callback.
type ServiceError struct {
	Code string
	Text string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("collector rejected delivery: %s (code %s)", e.Text, e.Code)
}
