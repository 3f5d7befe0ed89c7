package errcode

// Code is a stable error identifier recorded in handler state and published
// on the bus. It is a string newtype, comparable, allocation-free, and
// implements error, so interrupt paths can store one without allocating.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK Code = "ok"

	// Ingestion faults (recorded from interrupt context).
	BufferOverflow Code = "buffer_overflow"
	DeviceError    Code = "device_error"
	ArmFailure     Code = "arm_failure"

	// Setup and routing.
	UnknownPort   Code = "unknown_port"
	DuplicatePort Code = "duplicate_port"
	InvalidParams Code = "invalid_params"
	Unsupported   Code = "unsupported"

	// Collaborator replies.
	Busy    Code = "busy"
	Timeout Code = "timeout"

	Error Code = "error" // generic fallback
)

// E keeps an operation name and a cause alongside a Code.
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
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Wrap builds an *E for op with code c and an optional cause.
func Wrap(c Code, op string, err error) *E {
	return &E{C: c, Op: op, Err: err}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}

// MapDriverErr maps a device collaborator error to a Code. Drivers that
// already speak errcode pass through; anything else is a device fault.
func MapDriverErr(err error) Code {
	if err == nil {
		return OK
	}
	if c := Of(err); c != Error {
		return c
	}
	return DeviceError
}
