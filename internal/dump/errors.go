package dump

import (
	"errors"
	"fmt"
)

var (
	// ErrCorrupt matches any *Error of kind Corrupt.
	ErrCorrupt = errors.New("corrupt dump")
	// ErrVersionMismatch matches any *Error of kind VersionMismatch.
	ErrVersionMismatch = errors.New("dump version mismatch")
)

// ErrorKind classifies dump decoding failures
type ErrorKind int

const (
	Corrupt ErrorKind = iota + 1
	VersionMismatch
)

func (k ErrorKind) String() string {
	switch k {
	case Corrupt:
		return "corrupt"
	case VersionMismatch:
		return "version mismatch"
	default:
		return "unknown"
	}
}

// Error is returned by Decode. Offset is the byte offset of the failure
// within the named entry, or -1 when it cannot be determined.
type Error struct {
	Kind     ErrorKind
	Entry    string
	Offset   int64
	Found    int // VersionMismatch only
	Expected int // VersionMismatch only
	Msg      string
	Err      error
}

func (e *Error) Error() string {
	if e.Kind == VersionMismatch {
		return fmt.Sprintf("dump version mismatch: file has format version %d, this build reads version %d", e.Found, e.Expected)
	}
	msg := "corrupt dump"
	if e.Entry != "" {
		msg += " (" + e.Entry + ")"
	}
	if e.Offset >= 0 {
		msg += fmt.Sprintf(" at byte %d", e.Offset)
	}
	msg += ": " + e.Msg
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the ErrCorrupt and ErrVersionMismatch sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrCorrupt:
		return e.Kind == Corrupt
	case ErrVersionMismatch:
		return e.Kind == VersionMismatch
	}
	return false
}

func corrupt(entry string, offset int64, msg string, err error) *Error {
	return &Error{Kind: Corrupt, Entry: entry, Offset: offset, Msg: msg, Err: err}
}
