package errcode

import "errors"

// Code is a stable, log- and bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK      Code = "ok"
	Busy    Code = "busy"
	Timeout Code = "timeout"

	// Registry / orchestration
	RegistryFull    Code = "registry_full"
	InvalidName     Code = "invalid_name"
	DuplicateName   Code = "duplicate_name"
	NotFound        Code = "not_found"
	ConfigureFailed Code = "configure_failed"

	// Input validation
	InvalidPayload Code = "invalid_payload"
	MissingField   Code = "missing_field"
	BufferFull     Code = "buffer_full"

	// Network
	Offline      Code = "offline"
	Unconfigured Code = "unconfigured"
	Unreachable  Code = "unreachable"
	BadStatus    Code = "bad_status"

	// Firmware update
	NoUpdate     Code = "no_update"
	NoPartition  Code = "no_partition"
	WriteFailed  Code = "write_failed"
	VerifyFailed Code = "verify_failed"

	// Shared resources
	RadioInUse Code = "radio_in_use"
	StoreError Code = "store_error"

	Error Code = "error" // generic fallback
)

// E is an optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Wrap builds an *E; a nil cause is allowed.
func Wrap(c Code, op string, err error) error {
	return &E{C: c, Op: op, Err: err}
}

// New builds an *E carrying a short message.
func New(c Code, op, msg string) error {
	return &E{C: c, Op: op, Msg: msg}
}

// Of extracts the outermost Code from an error chain, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	type coder interface{ Code() Code }
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch v := e.(type) {
		case Code:
			return v
		case coder:
			return v.Code()
		}
	}
	return Error
}

// Is reports whether the outermost code of err is c.
func Is(err error, c Code) bool { return err != nil && Of(err) == c }
