package errcode

// Code is a stable, wire-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK          Code = "ok"
	Unsupported Code = "unsupported"

	// Protocol (transient, logged and dropped).
	InvalidRecord  Code = "invalid_record"
	MissingMode    Code = "missing_mode"
	InvalidText    Code = "invalid_text"
	BufferOverflow Code = "buffer_overflow"
	NoHandler      Code = "no_handler"
	HandlerFailed  Code = "handler_failed"

	// Telemetry.
	SampleFailed Code = "sample_failed"
	UnknownPin   Code = "unknown_pin"

	// Reload and boot (escalating).
	LoadFailed  Code = "load_failed"
	StoreFailed Code = "store_failed"
	BootFailed  Code = "boot_failed"

	NotConnected Code = "not_connected"

	Error Code = "error" // generic fallback
)

// E keeps context and a cause alongside a Code.
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

// Is lets errors.Is(err, errcode.LoadFailed) match a wrapped *E.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// Wrap builds an *E for op with the given cause.
func Wrap(c Code, op string, err error) *E { return &E{C: c, Op: op, Err: err} }

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
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		return Of(u.Unwrap())
	}
	return Error
}
