package howlhouse

import (
	"errors"
	"fmt"

	"github.com/howlhouse/howlhouse-go/internal/session"
)

// Transport-level errors, re-exported from the session package.
var (
	// ErrNotConnected is returned by connection- or room-dependent
	// calls made with no active session or joined room.
	ErrNotConnected = session.ErrNotConnected
	// ErrInvalidAccessToken is fatal: the service rejected the
	// credentials and the client will not retry.
	ErrInvalidAccessToken = session.ErrInvalidAccessToken
	// ErrConnectionLost marks a transient socket loss being absorbed by
	// the reconnect policy; it is surfaced via the on_error event only.
	ErrConnectionLost = session.ErrConnectionLost
)

var (
	// ErrWaitTimeout is returned by WaitFor when no matching event
	// arrives within the timeout.
	ErrWaitTimeout = errors.New("wait_for timed out")
	// ErrConnectionClosed fails outstanding WaitFor calls when the
	// session closes; they can never resolve afterwards.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrCommandNotFound reports a prefixed message whose command name
	// resolves to nothing.
	ErrCommandNotFound = errors.New("command not found")
	// ErrMemberNotFound reports a user argument that matched no member
	// by ID, username, or display name.
	ErrMemberNotFound = errors.New("member not found")
	// ErrNotEnoughArguments reports a command invoked with fewer tokens
	// than its required parameters.
	ErrNotEnoughArguments = errors.New("not enough arguments")
	// ErrCommandAlreadyDefined is a registration-time error: the name or
	// one of the aliases collides with an existing command.
	ErrCommandAlreadyDefined = errors.New("command already defined")

	// ErrInvalidRoomName reports a room name outside the 2-60 character
	// bounds the service enforces.
	ErrInvalidRoomName = errors.New("room name must be 2-60 characters")
)

// CommandError wraps a failure raised while routing or running a chat
// command, carrying the canonical command name it belongs to. It is
// what on_error handlers receive for command failures.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
