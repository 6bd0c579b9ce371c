package config

import (
	"errors"
	"fmt"
)

// Error reports a setup problem that makes a sweep impossible: a tool that
// cannot be started, a log that cannot be written. It always aborts.
type Error struct {
	Op   string // what was being attempted, e.g. "generate", "open log"
	Path string // offending command, image or file
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsFatal reports whether err carries a *Error.
func IsFatal(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}
