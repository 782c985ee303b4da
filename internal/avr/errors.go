package avr

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectFailed means the serial link could not be opened. The
	// engine stays unconnected and retries on the next command.
	ErrConnectFailed = errors.New("avr: failed to open serial link")

	// ErrNoDeviceFound means neither command prefix produced a device
	// name response during discovery.
	ErrNoDeviceFound = errors.New("avr: no device is responding to name queries")

	// ErrNotHex marks a response line containing a non-hex character.
	// The line is dropped; the stream continues.
	ErrNotHex = errors.New("avr: response line is not hex")

	// ErrUnrecognizedResponse marks a valid hex frame whose leading
	// bytes match no known response shape. Logged only.
	ErrUnrecognizedResponse = errors.New("avr: unrecognized response frame")
)

// UnknownInputModeError reports an input-mode code outside the known
// table. The triggering query fails but the session stays usable.
type UnknownInputModeError struct {
	Code byte
}

func (e *UnknownInputModeError) Error() string {
	return fmt.Sprintf("avr: unknown input mode code 0x%02x", e.Code)
}
