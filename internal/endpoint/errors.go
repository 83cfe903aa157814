package endpoint

import "errors"

var (
	// ErrUnregisteredType is returned when no factory handles a service type.
	ErrUnregisteredType = errors.New("no adapter registered for service type")

	// ErrServiceNotFound is returned when a service id has no stored configuration.
	ErrServiceNotFound = errors.New("service not found")

	// ErrServiceDisabled is returned when connecting a disabled service.
	ErrServiceDisabled = errors.New("service is disabled")

	// ErrClientNotConnected is returned when no live adapter exists for a service.
	ErrClientNotConnected = errors.New("client not connected")

	// ErrInvalidCredentials is returned when a backend rejects the configured identity.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnsupported is returned by adapters for operations their backend lacks.
	ErrUnsupported = errors.New("operation not supported by backend")
)

// ValidationError reports an invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
