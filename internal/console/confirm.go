package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/justapithecus/driftwood/driftwood"
)

// LineConfirmer resolves risky-run confirmations by prompting on a terminal
// and reading one line of input. Anything other than an affirmative answer
// declines; declining is always the safe default, including on EOF.
//
// At most one confirmation may be outstanding: there is one terminal, and
// interleaved prompts would race for the same input line.
type LineConfirmer struct {
	in      *bufio.Reader
	out     io.Writer
	pending atomic.Bool
}

// NewLineConfirmer builds a confirmer reading from in and prompting on out.
func NewLineConfirmer(in io.Reader, out io.Writer) *LineConfirmer {
	return &LineConfirmer{
		in:  bufio.NewReader(in),
		out: out,
	}
}

// Confirm prints the risk summary and prompt, then blocks on one input line
// or ctx cancellation, whichever comes first.
func (c *LineConfirmer) Confirm(ctx context.Context, req driftwood.ConfirmationRequest) (bool, error) {
	if !c.pending.CompareAndSwap(false, true) {
		return false, driftwood.ErrConfirmationPending
	}
	defer c.pending.Store(false)

	est := req.Estimate
	fmt.Fprintf(c.out, "\n%sestimated fragment memory (%.1f MB) is %.1f%% of available (%.1f MB)\n",
		PrefixWarning,
		float64(est.EstimatedFragmentBytes)/(1<<20),
		est.UsageRatio*100,
		float64(est.AvailableBytes)/(1<<20))
	if est.RecommendedPercent > 0 && est.RecommendedPercent < float64(req.RequestedPercent) {
		fmt.Fprintf(c.out, "%srecommended percentage for this system: %.1f%%\n",
			PrefixInfo, est.RecommendedPercent)
	}
	fmt.Fprintf(c.out, "Proceed with %d%% anyway? (y/n) [n]: ", req.RequestedPercent)

	type answer struct {
		line string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := c.in.ReadString('\n')
		ch <- answer{line, err}
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case a := <-ch:
		if a.err != nil && a.line == "" {
			// EOF with no input: decline cleanly.
			return false, nil
		}
		switch strings.ToLower(strings.TrimSpace(a.line)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}
