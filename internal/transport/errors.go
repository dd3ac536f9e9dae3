package transport

import "fmt"

// CallError is the protocol-level error reply for a failed method call or
// property write. It carries the interface the call was addressed to and the
// failure message, and travels back to the caller instead of crashing the
// serving object.
type CallError struct {
	Interface string
	Message   string
}

// Error implements the error interface.
func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s", e.Interface, e.Message)
}

// NewCallError builds a CallError with a formatted message.
func NewCallError(iface, format string, args ...any) *CallError {
	return &CallError{Interface: iface, Message: fmt.Sprintf(format, args...)}
}
