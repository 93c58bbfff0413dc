package store

import (
	"errors"
	"fmt"
)

// ErrNoDSN is returned when neither an explicit connection string nor the
// environment fallback is set.
var ErrNoDSN = fmt.Errorf("no database connection string: pass one explicitly or set %s", EnvDSN)

// PersistenceError reports a failed store operation. For Save it lists the
// paths of the batch that was rolled back.
type PersistenceError struct {
	Op    string
	Paths []string
	Err   error
}

func (e *PersistenceError) Error() string {
	switch len(e.Paths) {
	case 0:
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	case 1:
		return fmt.Sprintf("store %s (%q): %v", e.Op, e.Paths[0], e.Err)
	default:
		return fmt.Sprintf("store %s (%d records, %q .. %q): %v",
			e.Op, len(e.Paths), e.Paths[0], e.Paths[len(e.Paths)-1], e.Err)
	}
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsPersistence reports whether err is, or wraps, a PersistenceError.
func IsPersistence(err error) bool {
	var e *PersistenceError

	return errors.As(err, &e)
}
