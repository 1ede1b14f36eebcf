package hookstest_test

import (
	"fmt"
	"testing"

	"github.com/vango-dev/hooks/internal/errors"
	"github.com/vango-dev/hooks/pkg/hooks"
	"github.com/vango-dev/hooks/pkg/hookstest"
)

// counter is a component with one state slot and one effect on it.
type counter struct {
	set   *hooks.Setter[int]
	calls []string
}

func (c *counter) body(inst *hooks.Instance) {
	n, set := hooks.UseState(inst, 0)
	c.set = set
	hooks.UseEffect(inst, func() hooks.Cleanup {
		c.calls = append(c.calls, fmt.Sprintf("effect %d", n))
		return func() { c.calls = append(c.calls, fmt.Sprintf("cleanup %d", n)) }
	}, hooks.DepsOf(n))
}

func TestNewFlushesFirstRender(t *testing.T) {
	c := &counter{}
	h := hookstest.New(t, "counter", c.body)

	h.ExpectGeneration(1)
	h.ExpectIdle()
	h.ExpectTranscript([]string{"counter effect_run slot=1 gen=1"}, hooks.EventEffectRun)
}

func TestLazyLeavesRenderQueued(t *testing.T) {
	c := &counter{}
	h := hookstest.New(t, "counter", c.body, hookstest.Lazy())

	h.ExpectGeneration(0)
	if h.Host.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", h.Host.Pending())
	}
	h.MustFlush()
	h.ExpectGeneration(1)
}

func TestDispatchBatchesWrites(t *testing.T) {
	c := &counter{}
	h := hookstest.New(t, "counter", c.body, hookstest.WithAutoFlush())

	err := h.Dispatch(func() {
		c.set.Set(1)
		c.set.Update(func(n int) int { return n + 1 })
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	h.ExpectGeneration(2)
	h.ExpectCount(hooks.EventRenderCommitted, 2)
	if want := []string{"effect 0", "cleanup 0", "effect 2"}; fmt.Sprint(c.calls) != fmt.Sprint(want) {
		t.Errorf("calls = %v, want %v", c.calls, want)
	}
}

func TestRemountStartsFresh(t *testing.T) {
	c := &counter{}
	h := hookstest.New(t, "counter", c.body)

	c.set.Set(5)
	h.MustFlush()
	h.ExpectGeneration(2)

	h.Remount()
	h.ExpectGeneration(1)
	if got := c.set.Get(); got != 0 {
		t.Errorf("state after remount = %d, want 0", got)
	}
	h.ExpectCount(hooks.EventTeardown, 1)

	want := []string{"effect 0", "cleanup 0", "effect 5", "cleanup 5", "effect 0"}
	if fmt.Sprint(c.calls) != fmt.Sprint(want) {
		t.Errorf("calls = %v, want %v", c.calls, want)
	}
}

func TestExtraObserver(t *testing.T) {
	rec := hooks.NewRecorder()
	c := &counter{}
	hookstest.New(t, "counter", c.body, hookstest.WithObserver(rec))

	if len(rec.Filter(hooks.EventCommitFinished)) != 1 {
		t.Errorf("extra observer saw %d commits, want 1", len(rec.Filter(hooks.EventCommitFinished)))
	}
}

func TestFlushReportsEffectFailure(t *testing.T) {
	h := hookstest.New(t, "broken", func(inst *hooks.Instance) {
		hooks.UseEffect(inst, func() hooks.Cleanup { panic("boom") }, hooks.DepsOf())
	}, hookstest.Lazy())

	hookstest.ExpectCode(t, h.Flush(), "H004")
}

func TestMaxPasses(t *testing.T) {
	h := hookstest.New(t, "runaway", func(inst *hooks.Instance) {
		n, set := hooks.UseState(inst, 0)
		hooks.UseEffect(inst, func() hooks.Cleanup {
			set.Set(n + 1)
			return nil
		}, nil)
	}, hookstest.Lazy(), hookstest.WithMaxPasses(3))

	hookstest.ExpectCode(t, h.Flush(), "H007")
	h.ExpectGeneration(3)
}

func TestHasCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
		want bool
	}{
		{"nil", nil, "H004", false},
		{"direct", errors.New("H004"), "H004", true},
		{"other code", errors.New("H005"), "H004", false},
		{"wrapped", fmt.Errorf("pass: %w", errors.New("H004")), "H004", true},
		{"joined", joinErrs(errors.New("H005"), errors.New("H004")), "H004", true},
		{"plain", fmt.Errorf("H004"), "H004", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hookstest.HasCode(tt.err, tt.code); got != tt.want {
				t.Errorf("HasCode(%v, %q) = %v, want %v", tt.err, tt.code, got, tt.want)
			}
		})
	}
}

func joinErrs(errs ...error) error {
	return fmt.Errorf("%w; %w", errs[0], errs[1])
}
