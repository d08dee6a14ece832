package console

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/justapithecus/driftwood/driftwood"
)

// newBlockedReader returns a reader whose Read blocks until the writer is
// closed, simulating a terminal with no input.
func newBlockedReader() (io.Reader, io.Closer) {
	r, w := io.Pipe()
	return r, w
}

func testRequest() driftwood.ConfirmationRequest {
	return driftwood.ConfirmationRequest{
		Estimate: driftwood.MemoryEstimate{
			AvailableBytes:         8112 << 20,
			EstimatedFragmentBytes: 29994 << 20,
			UsageRatio:             3.6975,
			Threshold:              0.8,
			RecommendedPercent:     2.1,
		},
		RequestedPercent: 10,
	}
}

func TestLineConfirmer_Answers(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"Y\n", true},
		{"yes\n", true},
		{"  YES  \n", true},
		{"n\n", false},
		{"no\n", false},
		{"\n", false}, // empty defaults to no
		{"whatever\n", false},
	}
	for _, tt := range tests {
		var out strings.Builder
		c := NewLineConfirmer(strings.NewReader(tt.input), &out)
		got, err := c.Confirm(context.Background(), testRequest())
		if err != nil {
			t.Errorf("input %q: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("input %q = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLineConfirmer_PromptFormat(t *testing.T) {
	var out strings.Builder
	c := NewLineConfirmer(strings.NewReader("n\n"), &out)
	if _, err := c.Confirm(context.Background(), testRequest()); err != nil {
		t.Fatal(err)
	}

	text := out.String()
	if !strings.Contains(text, "(y/n) [n]: ") {
		t.Errorf("prompt suffix missing:\n%s", text)
	}
	if !strings.Contains(text, "recommended percentage for this system: 2.1%") {
		t.Errorf("recommendation missing:\n%s", text)
	}
}

func TestLineConfirmer_EOFDeclines(t *testing.T) {
	var out strings.Builder
	c := NewLineConfirmer(strings.NewReader(""), &out)
	ok, err := c.Confirm(context.Background(), testRequest())
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("EOF should decline")
	}
}

func TestLineConfirmer_SecondRequestWhilePending(t *testing.T) {
	var out strings.Builder
	c := NewLineConfirmer(strings.NewReader("y\n"), &out)
	c.pending.Store(true)

	_, err := c.Confirm(context.Background(), testRequest())
	if !errors.Is(err, driftwood.ErrConfirmationPending) {
		t.Fatalf("expected ErrConfirmationPending, got %v", err)
	}
}

func TestLineConfirmer_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A reader that never delivers a line.
	blocked, _ := newBlockedReader()
	var out strings.Builder
	c := NewLineConfirmer(blocked, &out)
	if _, err := c.Confirm(ctx, testRequest()); err == nil {
		t.Error("cancelled context should surface an error")
	}
}
