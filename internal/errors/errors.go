package errors

import (
	"errors"
	"fmt"
)

var (
	ErrUsage              = errors.New("script name is required")
	ErrScriptNotFound     = errors.New("script not found")
	ErrRuntimeUnavailable = errors.New("docker is not running or not reachable")
	ErrServiceNotDefined  = errors.New("service not defined in compose file")
	ErrServiceNotReady    = errors.New("service did not become ready")
	ErrToolMissing        = errors.New("required tool is not installed")
	ErrEnvFileMissing     = errors.New(".env file not found")
)

// ExitError carries a non-zero exit code from a forwarded command so main can
// exit with the same status.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command exited with code %d", e.Code)
}

// ExitCode returns the process exit code that should be used for err.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code != 0 {
		return exitErr.Code
	}
	return 1
}
