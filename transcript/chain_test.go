package transcript

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/core"
)

type fakeStrategy struct {
	name  string
	segs  []core.TranscriptSegment
	err   error
	calls int
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Fetch(context.Context, string) ([]core.TranscriptSegment, error) {
	f.calls++
	return f.segs, f.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func someSegs() []core.TranscriptSegment {
	return []core.TranscriptSegment{{Start: 0, End: 5, Text: "hello"}}
}

func TestChainUsesFirstSuccess(t *testing.T) {
	first := &fakeStrategy{name: "first", segs: someSegs()}
	second := &fakeStrategy{name: "second", segs: someSegs()}
	chain := NewChain(discard(), time.Second, first, second)

	segs, err := chain.Acquire(context.Background(), "https://example.com/v")
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 1 {
		t.Fatalf("got %d segments, want 1", len(segs))
	}
	if second.calls != 0 {
		t.Error("later strategies must not run after a success")
	}
}

func TestChainFallsThrough(t *testing.T) {
	first := &fakeStrategy{name: "first", err: errors.New("no access")}
	second := &fakeStrategy{name: "second"} // empty result counts as failure
	third := &fakeStrategy{name: "third", segs: someSegs()}
	chain := NewChain(discard(), time.Second, first, second, third)

	segs, err := chain.Acquire(context.Background(), "u")
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 1 || third.calls != 1 {
		t.Error("chain did not fall through to the third strategy")
	}
}

func TestChainAggregatesAllFailures(t *testing.T) {
	chain := NewChain(discard(), time.Second,
		&fakeStrategy{name: "alpha", err: errors.New("boom")},
		&fakeStrategy{name: "beta", err: errors.New("bang")},
	)
	_, err := chain.Acquire(context.Background(), "u")
	if !core.IsKind(err, core.KindAcquisitionFailed) {
		t.Fatalf("kind = %q, want acquisition_failed", core.ErrKind(err))
	}
	msg := err.Error()
	for _, want := range []string{"alpha", "boom", "beta", "bang"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q missing %q", msg, want)
		}
	}
}
