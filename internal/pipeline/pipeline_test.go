package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/nao1215/canvasmirror/internal/model"
)

// stubStep is a Step whose behavior is supplied by the test.
type stubStep struct {
	name  string
	do    func(ctx context.Context, report *model.SyncReport) error
	calls int
}

func (s *stubStep) Do(ctx context.Context, report *model.SyncReport) error {
	s.calls++
	if s.do != nil {
		return s.do(ctx, report)
	}
	return nil
}

func (s *stubStep) Name() string {
	return s.name
}

func TestPipelineAddStep(t *testing.T) {
	t.Parallel()

	t.Run("new pipeline is empty", func(t *testing.T) {
		t.Parallel()

		p := New()
		if names := p.StepNames(); len(names) != 0 {
			t.Errorf("expected no names, got %v", names)
		}
	})

	t.Run("keeps insertion order", func(t *testing.T) {
		t.Parallel()

		p := New()
		p.AddStep(&stubStep{name: "discover"})
		p.AddSteps(&stubStep{name: "confirm"}, &stubStep{name: "download"})

		names := p.StepNames()
		want := []string{"discover", "confirm", "download"}
		if len(names) != len(want) {
			t.Fatalf("expected %d names, got %v", len(want), names)
		}
		for i := range want {
			if names[i] != want[i] {
				t.Errorf("step %d: got %q, want %q", i, names[i], want[i])
			}
		}
	})
}

func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("runs steps in order and records them", func(t *testing.T) {
		t.Parallel()

		var order []string
		p := New()
		for _, name := range []string{"discover", "download"} {
			p.AddStep(&stubStep{
				name: name,
				do: func(_ context.Context, _ *model.SyncReport) error {
					order = append(order, name)
					return nil
				},
			})
		}

		report := &model.SyncReport{RunID: "run-1"}
		if err := p.Execute(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(order) != 2 || order[0] != "discover" || order[1] != "download" {
			t.Errorf("wrong execution order: %v", order)
		}
		if len(report.Steps) != 2 {
			t.Errorf("expected 2 recorded steps, got %v", report.Steps)
		}
	})

	t.Run("stops on first error by default", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("discovery failed")
		next := &stubStep{name: "download"}

		p := New()
		p.AddSteps(&stubStep{
			name: "discover",
			do: func(context.Context, *model.SyncReport) error {
				return boom
			},
		}, next)

		report := &model.SyncReport{}
		err := p.Execute(context.Background(), report)
		if !errors.Is(err, boom) {
			t.Errorf("expected %v, got %v", boom, err)
		}
		if next.calls != 0 {
			t.Error("step after the failure should not run")
		}
		if report.Error != boom.Error() {
			t.Errorf("expected report error %q, got %q", boom.Error(), report.Error)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		step := &stubStep{name: "discover"}
		p := New(WithLogger(nil))
		p.AddStep(step)

		report := &model.SyncReport{}
		err := p.Execute(ctx, report)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if step.calls != 0 {
			t.Error("step should not have been called")
		}
		if report.Error == "" {
			t.Error("expected cancellation to be recorded")
		}
	})
}
