package gateway

import (
	"errors"
	"fmt"
)

// Error is a rejection reported by the processor itself (Success=false).
// Transport and timeout failures are returned as ordinary wrapped errors, not
// as *Error.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway rejected request (code %s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("gateway rejected request: %s", e.Message)
}

// AsError unwraps err into a gateway rejection, if it is one.
func AsError(err error) (*Error, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}
