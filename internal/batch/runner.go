package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"brickforge/internal/batch/joblog"
	"brickforge/internal/device"
	"brickforge/internal/logging"
	"brickforge/internal/services"
)

// ErrNoMatches reports that discovery produced nothing. The caller maps it
// to its own "no inputs" status, distinct from job failures.
var ErrNoMatches = errors.New("no files matched the input pattern")

// lockFileName guards the output directory against a second concurrent
// batch run interleaving logs with ours.
const lockFileName = ".brickforge.lock"

// exitCodeRunner marks failures that happened on the runner side (spawn,
// log write) rather than inside the worker, whose codes are all >= 0.
const exitCodeRunner = -1

// Options configures one batch run.
type Options struct {
	Input     string
	OutputDir string
	Pattern   string
	Recursive bool
	// Jobs is the pool width; values below 1 are treated as 1.
	Jobs   int
	Device device.Policy
	// ExtraArgs is passed through to every worker unchanged.
	ExtraArgs []string
	Export    bool
	// WorkerCommand overrides the default self-invocation, mainly for tests.
	WorkerCommand []string
}

// JobResult is the outcome of one worker process.
type JobResult struct {
	Job      Job
	ExitCode int
	Success  bool
	Duration time.Duration
	LogPath  string
	// Err is a runner-side failure (spawn, log write); worker failures are
	// expressed through ExitCode alone.
	Err error
}

// Summary aggregates a finished run.
type Summary struct {
	OK      int
	Failed  int
	Results []JobResult
	Elapsed time.Duration
}

// Runner owns one batch run: discovery, the bounded worker pool and
// completion-order progress reporting.
type Runner struct {
	opts    Options
	logger  *slog.Logger
	console io.Writer
}

// NewRunner constructs a runner. console receives the per-job progress
// lines; pass io.Discard to silence them.
func NewRunner(opts Options, logger *slog.Logger, console io.Writer) *Runner {
	if opts.Jobs < 1 {
		opts.Jobs = 1
	}
	if console == nil {
		console = io.Discard
	}
	return &Runner{
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, "batch"),
		console: console,
	}
}

// Run discovers inputs, executes one worker per input under the bounded
// pool and returns the aggregate. ErrNoMatches is returned before the
// output directory is created. Individual job failures do not error the
// run; they are counted in the summary.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	started := time.Now()

	files, err := Discover(r.opts.Input, r.opts.Pattern, r.opts.Recursive)
	if err != nil {
		return Summary{}, services.Wrap(services.ErrConfiguration, "batch", "discover", "input discovery failed", err)
	}
	if len(files) == 0 {
		return Summary{}, ErrNoMatches
	}

	outDir, err := filepath.Abs(r.opts.OutputDir)
	if err != nil {
		return Summary{}, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("create output directory: %w", err)
	}

	lock := flock.New(filepath.Join(outDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return Summary{}, fmt.Errorf("lock output directory: %w", err)
	}
	if !locked {
		return Summary{}, fmt.Errorf("output directory %s is in use by another batch run", outDir)
	}
	defer lock.Unlock() //nolint:errcheck

	worker := r.opts.WorkerCommand
	if len(worker) == 0 {
		if worker, err = DefaultWorkerCommand(); err != nil {
			return Summary{}, err
		}
	}

	jobs := make([]Job, 0, len(files))
	for _, file := range files {
		job, err := NewJob(file, outDir, r.opts.Device, r.opts.ExtraArgs, r.opts.Export)
		if err != nil {
			return Summary{}, err
		}
		jobs = append(jobs, job)
	}
	r.logger.Info("batch started",
		logging.Int("jobs", len(jobs)),
		logging.Int("pool", r.opts.Jobs),
		logging.String(logging.FieldDevice, string(r.opts.Device)))

	pending := make(chan Job)
	results := make(chan JobResult)
	var wg sync.WaitGroup
	for i := 0; i < r.opts.Jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range pending {
				results <- r.execute(ctx, worker, job)
			}
		}()
	}
	go func() {
		defer close(pending)
		for _, job := range jobs {
			select {
			case pending <- job:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	summary := Summary{}
	for result := range results {
		summary.Results = append(summary.Results, result)
		if result.Success {
			summary.OK++
		} else {
			summary.Failed++
		}
		r.report(result)
	}
	summary.Elapsed = time.Since(started)

	fmt.Fprintf(r.console, "Done. OK=%d  FAIL=%d  TOTAL=%d\n",
		summary.OK, summary.Failed, summary.OK+summary.Failed)
	r.logger.Info("batch finished",
		logging.Int("ok", summary.OK),
		logging.Int("fail", summary.Failed),
		logging.Duration("elapsed", summary.Elapsed))
	return summary, nil
}

// execute runs one worker process to completion, captures its streams and
// writes the job log. A log write failure marks the job failed even when
// the worker itself exited cleanly.
func (r *Runner) execute(ctx context.Context, worker []string, job Job) JobResult {
	argv := job.Command(worker)
	result := JobResult{Job: job}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Info("worker started",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldInput, job.Input))

	started := time.Now()
	err := cmd.Run()
	result.Duration = time.Since(started)

	switch {
	case err == nil:
		result.ExitCode = 0
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = exitCodeRunner
			result.Err = err
		}
	}
	result.Success = result.ExitCode == 0 && result.Err == nil

	base := joblog.BasePath(job.Output, job.Export)
	logPath, logErr := joblog.Write(base, result.Success, joblog.Quote(argv),
		result.ExitCode, result.Duration, stdout.String(), stderr.String())
	result.LogPath = logPath
	if logErr != nil {
		result.Success = false
		if result.ExitCode == 0 {
			// Keep success == (exit code 0) consistent when the worker was
			// fine but its log could not be written.
			result.ExitCode = exitCodeRunner
		}
		if result.Err == nil {
			result.Err = logErr
		}
		r.logger.Error("job log write failed",
			logging.String(logging.FieldJobID, job.ID), logging.Error(logErr))
	}
	return result
}

// report prints the one-line completion status. Full diagnostics live only
// in the job log.
func (r *Runner) report(result JobResult) {
	in := filepath.Base(result.Job.Input)
	if result.Success {
		fmt.Fprintf(r.console, "[OK] %s -> %s  (%.2fs)\n",
			in, filepath.Base(result.Job.Output), result.Duration.Seconds())
		return
	}
	fmt.Fprintf(r.console, "[FAIL:%d] %s  (%.2fs)  See log: %s\n",
		result.ExitCode, in, result.Duration.Seconds(), result.LogPath)
}
