package pipeline

import (
	"time"
)

// Stage names one step of a run.
type Stage string

const (
	StagePrepare Stage = "prepare" // deployment tree recreation
	StageCompile Stage = "compile"
	StageTest    Stage = "test"
	StageArchive Stage = "archive"
	StagePackage Stage = "package"
	StageHeaders Stage = "headers"
	StageDocs    Stage = "docs"
)

// Stage outcomes, matching the status strings the output package renders.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// StageRecord is the outcome of one executed stage.
type StageRecord struct {
	Stage    Stage
	Target   *Target // nil for run-level stages
	Status   string
	Duration time.Duration
	Detail   string
}

// Name labels the record as "stage" or "stage target".
func (r StageRecord) Name() string {
	if r.Target == nil {
		return string(r.Stage)
	}
	return string(r.Stage) + " " + r.Target.String()
}

// LibraryArtifact is one combined library produced by the archive stage.
type LibraryArtifact struct {
	Target Target
	Path   string
}

// Result captures the outcome of a full run.
type Result struct {
	RunID     string
	Started   time.Time
	Finished  time.Time
	Stages    []StageRecord
	Libraries []LibraryArtifact
	Err       error
}

// Status is "success" or "failed" for the run as a whole.
func (r *Result) Status() string {
	if r.Err != nil {
		return StatusFailed
	}
	return StatusSuccess
}

// Duration is the wall time of the run.
func (r *Result) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}
