package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"fftransform/config"
	"fftransform/logging"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	maxDiagnosticLine = 1 << 20
	waitDelay         = 5 * time.Second
)

// Invocation is one ffmpeg run: input, output and the validated (or default)
// arguments placed between them.
type Invocation struct {
	InputPath  string
	OutputPath string
	Args       []string
}

// Argv returns the full argument vector after the program name:
// -y -i <input> <args...> <output>.
func (inv Invocation) Argv() []string {
	argv := make([]string, 0, len(inv.Args)+4)
	argv = append(argv, "-y", "-i", inv.InputPath)
	argv = append(argv, inv.Args...)
	return append(argv, inv.OutputPath)
}

// Outcome is the result of one ffmpeg invocation. It is not modified after
// Run returns.
type Outcome struct {
	ExitCode     int
	Diagnostics  string
	OutputExists bool
	OutputSize   int64
	Duration     time.Duration
	// Interrupted is the context error when the run was cut short by a
	// timeout or cancellation.
	Interrupted error
}

// Err classifies the outcome: nil on success, otherwise a process_failure or
// missing_output *Error.
func (o *Outcome) Err() error {
	switch {
	case o.Interrupted != nil:
		return &Error{Kind: KindProcessFailure, Detail: "ffmpeg interrupted: " + o.Interrupted.Error(), Err: o.Interrupted}
	case o.ExitCode != 0:
		return &Error{Kind: KindProcessFailure, Detail: o.Diagnostics, Err: fmt.Errorf("ffmpeg exited with status %d", o.ExitCode)}
	case !o.OutputExists || o.OutputSize == 0:
		return &Error{Kind: KindMissingOutput, Detail: MissingOutputDetail}
	}
	return nil
}

// Runner executes ffmpeg. It holds no per-invocation state, so one Runner
// serves concurrent requests.
type Runner struct {
	bin       string
	timeout   time.Duration
	tailLines int
	logger    zerolog.Logger
}

// NewRunner resolves the configured binary and returns a Runner for it.
func NewRunner(cfg *config.Config) (*Runner, error) {
	bin, err := exec.LookPath(cfg.FFBin)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg binary not found or not in PATH: %s", cfg.FFBin)
	}
	return &Runner{
		bin:       bin,
		timeout:   cfg.FFTimeout,
		tailLines: cfg.DiagTailLines,
		logger:    logging.WithComponent("ffmpeg"),
	}, nil
}

// Run executes inv and waits for ffmpeg to exit. Diagnostic output is
// forwarded to the logger line by line while the process runs. The returned
// error is non-nil only when ffmpeg could not be started; exit status and
// artifact checks are reported through Outcome.Err.
func (r *Runner) Run(ctx context.Context, inv Invocation) (*Outcome, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	logger := logging.FromContext(ctx, r.logger)

	cmd := exec.CommandContext(ctx, r.bin, inv.Argv()...) // #nosec G204 -- argv is sanitized, no shell involved
	cmd.WaitDelay = waitDelay

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	logger.Info().Strs(logging.FieldArgs, cmd.Args).Msg("starting ffmpeg")
	start := time.Now()
	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		exitTotal.WithLabelValues("start_failed").Inc()
		return nil, &Error{Kind: KindInternal, Detail: "failed to start ffmpeg", Err: err}
	}

	ring := NewLineRing(r.tailLines)
	var waitErr error

	// The reader and the waiter run side by side: ffmpeg blocks on a full
	// stderr pipe if nobody drains it.
	var g errgroup.Group
	g.Go(func() error {
		return drain(pr, ring, logger)
	})
	g.Go(func() error {
		waitErr = cmd.Wait()
		return pw.Close()
	})
	drainErr := g.Wait()

	out := &Outcome{
		ExitCode:    exitCode(waitErr),
		Diagnostics: ring.String(),
		Duration:    time.Since(start),
	}
	if waitErr != nil && ctx.Err() != nil {
		out.Interrupted = ctx.Err()
	}
	if drainErr != nil {
		logger.Warn().Err(drainErr).Msg("diagnostic stream truncated")
	}
	if info, err := os.Stat(inv.OutputPath); err == nil && info.Mode().IsRegular() {
		out.OutputExists = true
		out.OutputSize = info.Size()
	}

	runDuration.Observe(out.Duration.Seconds())
	if err := out.Err(); err != nil {
		exitTotal.WithLabelValues(string(KindOf(err))).Inc()
		logger.Warn().
			Int(logging.FieldExitCode, out.ExitCode).
			Dur(logging.FieldDuration, out.Duration).
			Err(err).
			Msg("ffmpeg run failed")
	} else {
		exitTotal.WithLabelValues("success").Inc()
		logger.Info().
			Dur(logging.FieldDuration, out.Duration).
			Int64(logging.FieldOutputLen, out.OutputSize).
			Msg("ffmpeg run completed")
	}
	return out, nil
}

// drain reads r to EOF, logging and retaining each line. It always consumes
// the whole stream, even after a scan error, so the writer never blocks.
func drain(r io.Reader, ring *LineRing, logger zerolog.Logger) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxDiagnosticLine)
	scanner.Split(scanDiagnosticLines)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		ring.Add(line)
		logger.Debug().Str(logging.FieldLine, line).Msg("ffmpeg")
	}
	err := scanner.Err()
	if err != nil {
		_, _ = io.Copy(io.Discard, r)
	}
	return err
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
