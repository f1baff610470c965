// Package status defines the stable error-code taxonomy shared by every
// core component (fixed-point kernel, quant codec, scheduler, KV cache,
// transformer engine, generation driver). Collaborators across process or
// language boundaries only need the numeric code; Go callers get an error
// that also satisfies errors.Is/errors.As via wrapping.
package status

import (
	"errors"
	"fmt"
)

// Status is a stable numeric result code. Values match spec: OK=0, NULL=-1,
// BOUNDS=-2, OVERFLOW=-3, NOT_INIT=-4, ALREADY_INIT=-5, ALLOC=-6, INVALID=-7.
type Status int

const (
	OK          Status = 0
	NULL        Status = -1
	BOUNDS      Status = -2
	OVERFLOW    Status = -3
	NotInit     Status = -4
	AlreadyInit Status = -5
	Alloc       Status = -6
	Invalid     Status = -7
)

func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case NULL:
		return "NULL"
	case BOUNDS:
		return "BOUNDS"
	case OVERFLOW:
		return "OVERFLOW"
	case NotInit:
		return "NOT_INIT"
	case AlreadyInit:
		return "ALREADY_INIT"
	case Alloc:
		return "ALLOC"
	case Invalid:
		return "INVALID"
	default:
		return fmt.Sprintf("STATUS(%d)", int(s))
	}
}

// Error wraps a Status with context while keeping the numeric code intact
// for collaborators that only look at Code.
type Error struct {
	Code Status
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap builds a *Error for op carrying code, optionally wrapping err.
func Wrap(op string, code Status, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// Of extracts the Status code from err, defaulting to Invalid when err
// does not carry one.
func Of(err error) Status {
	if err == nil {
		return OK
	}
	var se *Error
	if !errors.As(err, &se) {
		return Invalid
	}
	return se.Code
}
