package manager

import (
	"errors"
	"fmt"
)

// ErrShutdown rejects operations after Shutdown has begun
var ErrShutdown = errors.New("manager is shut down")

// NotRegisteredError reports an acquire or reload against an unknown
// resource key
type NotRegisteredError struct {
	Key string
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("resource not registered: %s", e.Key)
}

// AlreadyRegisteredError reports a duplicate registration
type AlreadyRegisteredError struct {
	Key string
}

func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("resource already registered: %s", e.Key)
}

// WrongTypeError reports a failed typed downcast of a handle
type WrongTypeError struct {
	Key  string
	Want string
	Got  string
}

func (e *WrongTypeError) Error() string {
	return fmt.Sprintf("resource %s: instance is %s, not %s", e.Key, e.Got, e.Want)
}
