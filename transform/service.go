// Package transform ties uploads, directive validation and ffmpeg runs
// together. Every job owns a private scope that is released on every path.
package transform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"fftransform/config"
	"fftransform/ffmpeg"
	"fftransform/logging"

	"github.com/rs/zerolog"
)

const defaultExt = ".mp4"

var extPattern = regexp.MustCompile(`^[A-Za-z0-9]{1,8}$`)

// ErrInputTooLarge is returned when an upload exceeds the configured limit.
var ErrInputTooLarge = errors.New("input exceeds size limit")

// Executor runs one ffmpeg invocation. *ffmpeg.Runner implements it.
type Executor interface {
	Run(ctx context.Context, inv ffmpeg.Invocation) (*ffmpeg.Outcome, error)
}

// Checker vetoes a run when the host is short on resources.
// *ffmpeg.ResourceChecker implements it.
type Checker interface {
	Check() error
}

// Request describes one upload to transform.
type Request struct {
	ID        string
	Input     io.Reader
	Filename  string
	OutputExt string
	// Directive is nil when the caller supplied none, which selects the
	// built-in default transform. An empty string is a real, empty directive.
	Directive *string
}

// Job is a validated, staged request ready to run.
type Job struct {
	ID    string
	Args  []string
	Scope *Scope
}

// Close releases the job's scope.
func (j *Job) Close() error {
	return j.Scope.Release()
}

// Service validates directives, stages uploads and runs ffmpeg.
type Service struct {
	sanitizer *ffmpeg.Sanitizer
	executor  Executor
	checker   Checker
	workDir   string
	maxInput  int64
	logger    zerolog.Logger
}

// NewService wires a Service. checker may be nil.
func NewService(cfg *config.Config, sanitizer *ffmpeg.Sanitizer, executor Executor, checker Checker) *Service {
	return &Service{
		sanitizer: sanitizer,
		executor:  executor,
		checker:   checker,
		workDir:   cfg.WorkDir,
		maxInput:  cfg.MaxInputSize,
		logger:    logging.WithComponent("transform"),
	}
}

// Validate resolves a directive into process arguments without touching the
// filesystem.
func (s *Service) Validate(directive *string) ([]string, error) {
	return s.sanitizer.Args(directive)
}

// Stage validates the directive, creates a scope and writes the upload into
// it. The directive is checked before anything is written. On error nothing
// is left behind; on success the caller owns the job and must Close it.
func (s *Service) Stage(ctx context.Context, req Request) (*Job, error) {
	logger := logging.FromContext(ctx, s.logger)

	args, err := s.sanitizer.Args(req.Directive)
	if err != nil {
		ev := logger.Info().Err(err)
		var rej *ffmpeg.Rejection
		if errors.As(err, &rej) {
			ev = ev.Str(logging.FieldRule, string(rej.Rule)).Str(logging.FieldToken, rej.Token)
		}
		ev.Msg("directive rejected")
		return nil, err
	}

	ext, err := outputExt(req.OutputExt, req.Filename)
	if err != nil {
		return nil, err
	}

	scope, err := newScope(s.workDir, req.ID, ext)
	if err != nil {
		return nil, ffmpeg.NewError(ffmpeg.KindResourceError, "could not create request scope", err)
	}
	if err := s.writeInput(scope.InputPath, req.Input); err != nil {
		if rerr := scope.Release(); rerr != nil {
			logger.Error().Err(rerr).Str(logging.FieldPath, scope.Dir).Msg("failed to release scope")
		}
		return nil, err
	}

	logger.Debug().Str(logging.FieldPath, scope.Dir).Strs(logging.FieldArgs, args).Msg("request staged")
	return &Job{ID: req.ID, Args: args, Scope: scope}, nil
}

// Execute runs ffmpeg for a staged job. The scope is left in place; the
// caller still owns it.
func (s *Service) Execute(ctx context.Context, job *Job) (*ffmpeg.Outcome, error) {
	if s.checker != nil {
		if err := s.checker.Check(); err != nil {
			return nil, err
		}
	}

	out, err := s.executor.Run(ctx, ffmpeg.Invocation{
		InputPath:  job.Scope.InputPath,
		OutputPath: job.Scope.OutputPath,
		Args:       job.Args,
	})
	if err != nil {
		return nil, err
	}
	if err := out.Err(); err != nil {
		return out, err
	}
	return out, nil
}

func (s *Service) writeInput(path string, r io.Reader) error {
	if r == nil {
		return ffmpeg.NewError(ffmpeg.KindInvalidInput, "no video uploaded", nil)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return ffmpeg.NewError(ffmpeg.KindResourceError, "could not create input artifact", err)
	}

	src := r
	if s.maxInput > 0 {
		src = io.LimitReader(r, s.maxInput+1)
	}
	written, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return ffmpeg.NewError(ffmpeg.KindResourceError, "could not write input artifact", err)
	}
	if s.maxInput > 0 && written > s.maxInput {
		return ffmpeg.NewError(ffmpeg.KindInvalidInput,
			fmt.Sprintf("input exceeds limit of %d bytes", s.maxInput), ErrInputTooLarge)
	}
	if written == 0 {
		return ffmpeg.NewError(ffmpeg.KindInvalidInput, "uploaded video is empty", nil)
	}
	return nil
}

// outputExt picks the artifact extension from the explicit request value or,
// failing that, the uploaded filename. An explicit but malformed value is an
// error; a malformed filename extension falls back to .mp4.
func outputExt(explicit, filename string) (string, error) {
	if explicit != "" {
		e := strings.TrimPrefix(explicit, ".")
		if !extPattern.MatchString(e) {
			return "", ffmpeg.NewError(ffmpeg.KindInvalidInput, fmt.Sprintf("invalid output extension %q", explicit), nil)
		}
		return "." + e, nil
	}
	if e := strings.TrimPrefix(filepath.Ext(filename), "."); extPattern.MatchString(e) {
		return "." + e, nil
	}
	return defaultExt, nil
}
