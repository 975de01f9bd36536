package pipeline

import (
	"errors"

	"github.com/dglib/buildpipe/src/runner"
)

var (
	// ErrStageFailed means an external tool exited non-zero or could not be
	// launched, including when its arguments failed to expand.
	ErrStageFailed = errors.New("stage failed")

	// ErrMissingArtifact means an expected input file was absent.
	ErrMissingArtifact = errors.New("missing artifact")

	// ErrDocsContainErrors means the documentation error log was non-empty.
	ErrDocsContainErrors = errors.New("documentation contains errors")

	// ErrFileSystem means the deployment tree could not be prepared or written.
	ErrFileSystem = errors.New("filesystem error")
)

// StageError is returned for the stage that ended a run.
type StageError struct {
	Stage  Stage
	Target *Target
	Result *runner.StepResult // nil when no tool ran
	Err    error
}

func (e *StageError) Error() string {
	if e.Target != nil {
		return string(e.Stage) + " " + e.Target.String() + ": " + e.Err.Error()
	}
	return string(e.Stage) + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }
