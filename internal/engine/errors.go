package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Fatal error kinds. Any of them aborts the whole request without a schedule.
var (
	ErrCircularDependency          = errors.New("circular dependency")
	ErrInvalidResourceAvailability = errors.New("invalid resource availability")
	ErrInvalidConstraint           = errors.New("invalid constraint")
	ErrInvalidTimeRange            = errors.New("invalid time range")
	ErrInvalidTask                 = errors.New("invalid task")
	ErrInvalidOptions              = errors.New("invalid options")
)

// Error wraps a fatal request failure with its kind.
type Error struct {
	Kind  error
	Msg   string
	Cycle []string // task IDs forming the cycle, first ID repeated at the end
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func cycleError(path []string) error {
	return &Error{
		Kind:  ErrCircularDependency,
		Msg:   strings.Join(path, " -> "),
		Cycle: path,
	}
}
