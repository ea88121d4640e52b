package pipeline

import "fmt"

// Stage is one step of the fixed in-worker pipeline.
type Stage string

const (
	StageInit          Stage = "init"
	StageDeviceSetup   Stage = "device-setup"
	StageHeadlessPatch Stage = "headless-patch"
	StageImport        Stage = "import"
	StageProcess       Stage = "process"
	StageBake          Stage = "bake"
	StageWaitIdle      Stage = "wait-idle"
	StageExport        Stage = "export"
	StageDone          Stage = "done"
)

// Worker process exit codes. 2 through 5 are a contract other tools key off;
// 6 is the bounded idle-wait expiry added with the wait deadline.
const (
	ExitOK       = 0
	ExitImport   = 2
	ExitProcess  = 3
	ExitBake     = 4
	ExitExport   = 5
	ExitWaitIdle = 6
)

// StageError is a fatal stage failure carrying the process exit code.
type StageError struct {
	Stage Stage
	Code  int
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ExitCode returns the worker process exit code for this failure.
func (e *StageError) ExitCode() int { return e.Code }

func failed(stage Stage, code int, err error) *StageError {
	return &StageError{Stage: stage, Code: code, Err: err}
}
