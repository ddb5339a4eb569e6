package core

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

func TestFormatTime(t *testing.T) {
	cases := []struct {
		sec  float64
		want string
	}{
		{0, "00:00"},
		{65, "01:05"},
		{599.9, "09:59"},
		{3605, "60:05"},
		{-3, "00:00"},
	}
	for _, c := range cases {
		if got := FormatTime(c.sec); got != c.want {
			t.Errorf("FormatTime(%v) = %q, want %q", c.sec, got, c.want)
		}
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("The Quick, brown FOX is on the mat!")
	want := []string{"quick", "brown", "fox", "mat"}
	if len(got) != len(want) {
		t.Fatalf("Tokenize = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLexicalCosine(t *testing.T) {
	a := LexicalVector("neural networks explained")
	if got := LexicalCosine(a, a); math.Abs(got-1) > 1e-9 {
		t.Errorf("self similarity = %v, want 1", got)
	}
	b := LexicalVector("cooking pasta recipes")
	if got := LexicalCosine(a, b); got != 0 {
		t.Errorf("disjoint similarity = %v, want 0", got)
	}
}

func TestCosine(t *testing.T) {
	if got := Cosine([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Errorf("orthogonal = %v, want 0", got)
	}
	if got := Cosine([]float32{1, 2}, []float32{1, 2}); math.Abs(got-1) > 1e-6 {
		t.Errorf("identical = %v, want 1", got)
	}
	if got := Cosine([]float32{1}, []float32{1, 2}); got != 0 {
		t.Errorf("mismatched lengths = %v, want 0", got)
	}
}

func TestRetryTransientOnce(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), time.Millisecond, func() error {
		calls++
		if calls == 1 {
			return MarkTransient(errors.New("flaky"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry = %v, want nil", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRetryNonTransientFailsFast(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), time.Millisecond, func() error {
		calls++
		return errors.New("bad input")
	})
	if err == nil {
		t.Fatal("Retry = nil, want error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryGivesUpAfterSecondFailure(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), time.Millisecond, func() error {
		calls++
		return MarkTransient(errors.New("still down"))
	})
	if err == nil {
		t.Fatal("Retry = nil, want error")
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}
