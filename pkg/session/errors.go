package session

import "github.com/pkg/errors"

var (
	ErrInvalidTopic      = errors.New("topic must not be empty")
	ErrTopicTooLong      = errors.New("topic is too long")
	ErrInvalidAgentCount = errors.New("agent count out of range")
	ErrEmptyMessage      = errors.New("message must not be empty")
	ErrTransportRejected = errors.New("session creation rejected")
	ErrNotConnected      = errors.New("no live connection")
	ErrStreamClosed      = errors.New("stream closed")
	ErrSessionEnded      = errors.New("session has ended")
	ErrSessionStarted    = errors.New("session already created")
	ErrNoSession         = errors.New("no session")
	ErrNotRunning        = errors.New("session loop is not running")
)

// RejectedError wraps the failure of a session creation request.
type RejectedError struct {
	Err error
}

func (e *RejectedError) Error() string {
	return "create session: " + e.Err.Error()
}

func (e *RejectedError) Unwrap() error { return e.Err }

func (e *RejectedError) Is(target error) bool { return target == ErrTransportRejected }

// IsInputValidation reports whether err is a local validation failure that
// never reached the network.
func IsInputValidation(err error) bool {
	return errors.Is(err, ErrInvalidTopic) ||
		errors.Is(err, ErrTopicTooLong) ||
		errors.Is(err, ErrInvalidAgentCount) ||
		errors.Is(err, ErrEmptyMessage)
}
