package engine

import "errors"

var (
	ErrCommandNotFound    = errors.New("command not found")
	ErrLaunchFailed       = errors.New("launch failed")
	ErrUnknownSession     = errors.New("unknown session")
	ErrIOFailure          = errors.New("terminal read failed")
	ErrWriteFailed        = errors.New("terminal write failed")
	ErrTerminationTimeout = errors.New("process did not exit within grace period")
	ErrInvalidArgument    = errors.New("invalid argument")
)

// Kind names used in structured results across the engine boundary.
const (
	KindCommandNotFound    = "CommandNotFound"
	KindLaunchFailed       = "LaunchFailed"
	KindUnknownSession     = "UnknownSession"
	KindIOFailure          = "IOFailure"
	KindWriteFailed        = "WriteFailed"
	KindTerminationTimeout = "TerminationTimeout"
	KindInvalidArgument    = "InvalidArgument"
	KindInternal           = "Internal"
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrCommandNotFound, KindCommandNotFound},
	{ErrLaunchFailed, KindLaunchFailed},
	{ErrUnknownSession, KindUnknownSession},
	{ErrIOFailure, KindIOFailure},
	{ErrWriteFailed, KindWriteFailed},
	{ErrTerminationTimeout, KindTerminationTimeout},
	{ErrInvalidArgument, KindInvalidArgument},
}

// KindOf classifies err into the engine's error taxonomy. A nil error yields "".
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// ErrorOfKind returns the sentinel for a kind name, or nil when the kind is
// unknown. It lets remote callers rebuild errors that match errors.Is.
func ErrorOfKind(kind string) error {
	for _, k := range kinds {
		if k.kind == kind {
			return k.err
		}
	}
	return nil
}
