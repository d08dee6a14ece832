// Package console renders validation reports and run prompts for terminal
// use. Output formats are a stable contract: orchestrators grep for the
// glyph prefixes and the summary marker, so changes here are breaking.
package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/justapithecus/driftwood/driftwood"
)

// Glyph prefixes for report lines. Downstream tooling matches on these.
const (
	PrefixPass    = "✓ "
	PrefixMissing = "⚠️  MISSING: "
	PrefixInfo    = "ℹ️  INFO: "
	PrefixWarning = "⚠️  WARNING: "
	PrefixError   = "❌ ERROR: "
)

// SummaryMarker opens the report block.
const SummaryMarker = "VALIDATION SUMMARY"

const bannerWidth = 80

// PrintOverview writes the dataset identity block shown before checks run.
func PrintOverview(w io.Writer, ds *driftwood.Dataset) {
	fmt.Fprintf(w, "Validating: %s\n", ds.Path())
	fmt.Fprintf(w, "Size: %.2f MB\n", float64(ds.SizeBytes())/(1<<20))

	dims := ds.Dimensions()
	parts := make([]string, 0, len(dims))
	for _, d := range dims {
		parts = append(parts, fmt.Sprintf("%s=%d", d.Name, d.Length))
	}
	fmt.Fprintf(w, "Dimensions: %s\n", strings.Join(parts, ", "))
	fmt.Fprintf(w, "Variables: %d\n", len(ds.Variables()))
}

// PrintReport writes the full validation summary block.
func PrintReport(w io.Writer, report *driftwood.ValidationReport) {
	banner := strings.Repeat("=", bannerWidth)
	fmt.Fprintf(w, "\n%s\n%s\n%s\n", banner, SummaryMarker, banner)

	for _, c := range report.Checks {
		switch c.Kind {
		case driftwood.CheckPass:
			fmt.Fprintf(w, "%s%s\n", PrefixPass, c.Message)
		case driftwood.CheckMissing:
			fmt.Fprintf(w, "%s%s\n", PrefixMissing, c.Message)
		case driftwood.CheckInfo:
			fmt.Fprintf(w, "%s%s\n", PrefixInfo, c.Message)
		case driftwood.CheckWarning:
			fmt.Fprintf(w, "%s%s\n", PrefixWarning, c.Message)
		case driftwood.CheckError:
			fmt.Fprintf(w, "%s%s\n", PrefixError, c.Message)
		}
	}

	fmt.Fprintf(w, "\n%s\n", banner)
	fmt.Fprintf(w, "RESULT: %s\n", resultLine(report))
	fmt.Fprintf(w, "%s\n", banner)
}

func resultLine(report *driftwood.ValidationReport) string {
	switch report.Status {
	case driftwood.StatusFullyValid:
		return "dataset is fully valid"
	case driftwood.StatusValidWithMissing:
		return fmt.Sprintf("dataset is structurally valid but missing %d required variable(s); run the fragmenter to inject them", len(report.Missing))
	default:
		return "dataset is invalid"
	}
}
