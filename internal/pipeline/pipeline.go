// Package pipeline sequences the ETL and aggregation stages of a run.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/pinleague/pipeline/internal/extract"
	"github.com/pinleague/pipeline/internal/storage"
)

// Status is the outcome of one stage in a run.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// StageResult is one line of the run summary.
type StageResult struct {
	Name   string
	Status Status
	Detail string
}

// Report is the structured summary of one pipeline invocation: load counts,
// accumulated validation problems with match identifiers, and per-stage status.
type Report struct {
	Season   int
	Counts   storage.Counts
	Problems []extract.Problem
	Stages   []StageResult
}

// Failed reports whether any stage failed.
func (r *Report) Failed() bool {
	for _, s := range r.Stages {
		if s.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Warnings returns only the non-fatal problems.
func (r *Report) Warnings() []extract.Problem {
	var out []extract.Problem
	for _, p := range r.Problems {
		if p.Severity == extract.SeverityWarning {
			out = append(out, p)
		}
	}
	return out
}

// Errors returns the problems that rejected a match.
func (r *Report) Errors() []extract.Problem {
	var out []extract.Problem
	for _, p := range r.Problems {
		if p.Severity == extract.SeverityError {
			out = append(out, p)
		}
	}
	return out
}

// fatalError marks a stage failure that makes further scheduling pointless,
// such as the store being unreachable.
type fatalError struct{ err error }

func (f *fatalError) Error() string { return f.err.Error() }
func (f *fatalError) Unwrap() error { return f.err }

// Fatal wraps an error so the runner aborts the remaining stages.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

func isFatal(err error) bool {
	var f *fatalError
	return errors.As(err, &f)
}

// Stage is one named pipeline step with declared dependencies. Run returns a
// short detail string (typically rows written) for the summary.
type Stage struct {
	Name string
	Deps []string
	Run  func(r *Report) (string, error)
}

// Runner executes stages in declaration order, which must already respect
// dependencies. Transitions are one-directional and there is no retry-in-place:
// a failed stage marks its dependents skipped, but independent branches still
// run, and every stage is individually idempotent so re-running from scratch
// after a partial failure is always safe.
type Runner struct {
	log    *logrus.Logger
	stages []Stage
}

func NewRunner(log *logrus.Logger) *Runner {
	return &Runner{log: log}
}

// Add appends a stage. Dependencies must refer to already-added stages; a
// dependency that was never added (deliberately skipped by a flag) is treated
// as satisfied, and the stage is expected to degrade gracefully.
func (r *Runner) Add(s Stage) {
	r.stages = append(r.stages, s)
}

// Run executes the registered stages and records one StageResult each.
func (r *Runner) Run(report *Report) {
	status := make(map[string]Status, len(r.stages))
	aborted := false

	for _, stage := range r.stages {
		if aborted {
			status[stage.Name] = StatusSkipped
			report.Stages = append(report.Stages, StageResult{
				Name: stage.Name, Status: StatusSkipped, Detail: "run aborted",
			})
			continue
		}

		if blocked, dep := blockedBy(stage, status); blocked {
			status[stage.Name] = StatusSkipped
			r.log.WithFields(logrus.Fields{"stage": stage.Name, "dependency": dep}).
				Warn("stage skipped: dependency did not succeed")
			report.Stages = append(report.Stages, StageResult{
				Name:   stage.Name,
				Status: StatusSkipped,
				Detail: fmt.Sprintf("dependency %s did not succeed", dep),
			})
			continue
		}

		r.log.WithField("stage", stage.Name).Info("stage starting")
		detail, err := stage.Run(report)
		if err != nil {
			status[stage.Name] = StatusFailed
			r.log.WithField("stage", stage.Name).WithError(err).Error("stage failed")
			report.Stages = append(report.Stages, StageResult{
				Name: stage.Name, Status: StatusFailed, Detail: err.Error(),
			})
			if isFatal(err) {
				aborted = true
			}
			continue
		}
		status[stage.Name] = StatusOK
		r.log.WithFields(logrus.Fields{"stage": stage.Name, "detail": detail}).Info("stage complete")
		report.Stages = append(report.Stages, StageResult{
			Name: stage.Name, Status: StatusOK, Detail: detail,
		})
	}
}

func blockedBy(s Stage, status map[string]Status) (bool, string) {
	for _, dep := range s.Deps {
		st, ran := status[dep]
		if ran && st != StatusOK {
			return true, dep
		}
	}
	return false, ""
}
