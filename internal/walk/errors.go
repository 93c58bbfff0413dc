package walk

import (
	"errors"
	"fmt"
)

// ErrNotDirectory is wrapped by RootAccessError when the root is a file.
var ErrNotDirectory = errors.New("not a directory")

// ErrConsumed is reported by Scan.Err when Records is iterated twice.
var ErrConsumed = errors.New("scan already consumed")

// RootAccessError means the walk could not start at all.
type RootAccessError struct {
	Root string
	Err  error
}

func (e *RootAccessError) Error() string {
	return fmt.Sprintf("accessing root %q: %v", e.Root, e.Err)
}

func (e *RootAccessError) Unwrap() error { return e.Err }

// IsRootAccess reports whether err is, or wraps, a RootAccessError.
func IsRootAccess(err error) bool {
	var e *RootAccessError

	return errors.As(err, &e)
}

// DirectoryWarning records a subtree that was skipped.
type DirectoryWarning struct {
	Path string
	Err  error
}

func (w DirectoryWarning) String() string {
	return fmt.Sprintf("%s: %v", w.Path, w.Err)
}

// ErrSymlinkCycle is the warning cause for a symlink pointing back to an ancestor.
var ErrSymlinkCycle = errors.New("symlink cycle to ancestor directory")
