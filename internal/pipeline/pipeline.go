package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/canvasmirror/internal/model"
)

// Step is one stage of a sync run. Each step reads what the earlier steps
// left in the SyncReport and adds its own part.
type Step interface {
	// Do runs the step. A returned error aborts the run; per-file and
	// per-task failures belong in the report instead.
	Do(ctx context.Context, report *model.SyncReport) error

	// Name identifies the step in logs and in SyncReport.Steps.
	Name() string
}

// Pipeline runs its steps in order over one SyncReport.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0, 4),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends step.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends steps in order.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs every step over report.
//
// Cancellation is only checked between steps; a running step observes ctx
// itself. The first step error stops the run and is kept in report.Error.
func (p *Pipeline) Execute(ctx context.Context, report *model.SyncReport) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("sync cancelled", "before", step.Name(), "reason", err)
			report.Error = err.Error()
			return err
		}

		if err := p.run(ctx, step, report); err != nil {
			return err
		}
		report.Steps = append(report.Steps, step.Name())
	}
	return nil
}

func (p *Pipeline) run(ctx context.Context, step Step, report *model.SyncReport) error {
	logger := p.logger.With("step", step.Name(), "run_id", report.RunID)
	logger.Debug("executing step")

	start := time.Now()
	err := step.Do(ctx, report)
	elapsed := time.Since(start).Round(time.Millisecond)

	if err != nil {
		logger.Error("step failed", "elapsed", elapsed, "error", err)
		report.Error = err.Error()
		return err
	}
	logger.Debug("step completed", "elapsed", elapsed)
	return nil
}

// StepNames returns the step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
