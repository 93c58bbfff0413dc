package cli

import (
	"errors"

	"github.com/idelchi/fileinsights/internal/fileinsights"
	"github.com/idelchi/fileinsights/internal/store"
	"github.com/idelchi/fileinsights/internal/walk"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitError       = 1
	ExitRoot        = 2
	ExitPersistence = 3
	ExitNoMatches   = 4
)

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case walk.IsRootAccess(err):
		return ExitRoot
	case store.IsPersistence(err), errors.Is(err, store.ErrNoDSN):
		return ExitPersistence
	case errors.Is(err, fileinsights.ErrNoMatches):
		return ExitNoMatches
	default:
		return ExitError
	}
}
