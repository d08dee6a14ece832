package console

import (
	"strings"
	"testing"

	"github.com/justapithecus/driftwood/driftwood"
)

func TestPrintReport_Prefixes(t *testing.T) {
	report := driftwood.InvalidReport("magic number mismatch")

	var out strings.Builder
	PrintReport(&out, report)
	text := out.String()

	if !strings.Contains(text, SummaryMarker) {
		t.Error("summary marker missing")
	}
	if !strings.Contains(text, PrefixError+"magic number mismatch") {
		t.Errorf("error line missing:\n%s", text)
	}
	if !strings.Contains(text, "RESULT: dataset is invalid") {
		t.Errorf("result line missing:\n%s", text)
	}
}

func TestPrintReport_MissingVariables(t *testing.T) {
	// A dataset missing all required variables classifies as
	// valid-with-missing and renders each as a MISSING line.
	report := &driftwood.ValidationReport{}
	report.Checks = append(report.Checks,
		driftwood.Check{Kind: driftwood.CheckPass, Message: "Required dimension 'trajectory' present (10 elements)"},
		driftwood.Check{Kind: driftwood.CheckMissing, Message: "settled (Particle settled on seafloor)"},
		driftwood.Check{Kind: driftwood.CheckInfo, Message: "Total data points: 100"},
		driftwood.Check{Kind: driftwood.CheckWarning, Message: "Very few trajectories (4)"},
	)
	report.Missing = []string{"settled"}
	report.Status = driftwood.StatusValidWithMissing

	var out strings.Builder
	PrintReport(&out, report)
	text := out.String()

	for _, want := range []string{
		PrefixPass + "Required dimension",
		PrefixMissing + "settled (Particle settled on seafloor)",
		PrefixInfo + "Total data points",
		PrefixWarning + "Very few trajectories",
		"missing 1 required variable",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}
