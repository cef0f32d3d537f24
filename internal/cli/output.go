package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pfrederiksen/sydney-events/internal/scrape"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// WriteReport writes a scrape report in the specified format
func WriteReport(w io.Writer, report *scrape.Report, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, report)
	case FormatText:
		return writeText(w, report, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func writeJSON(w io.Writer, report *scrape.Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

func writeText(w io.Writer, report *scrape.Report, verbose bool) error {
	for _, sr := range report.Sources {
		if sr.Failed() {
			fmt.Fprintf(w, "%s: FAILED (%s)\n", sr.Source, sr.Error)
			continue
		}
		fmt.Fprintf(w, "%s: %d found, %d new, %d updated, %d inactive\n",
			sr.Source, sr.Found, sr.Counts.New, sr.Counts.Updated, sr.Counts.Inactive)
		if verbose {
			fmt.Fprintf(w, "    took %s\n", sr.Duration)
			for _, soft := range sr.SoftErrors {
				fmt.Fprintf(w, "    skipped: %s\n", soft)
			}
		}
	}

	fmt.Fprintf(w, "\nTotal: %d new, %d updated, %d inactive",
		report.Totals.New, report.Totals.Updated, report.Totals.Inactive)
	if report.Failures > 0 {
		fmt.Fprintf(w, " (%d sources failed)", report.Failures)
	}
	fmt.Fprintln(w)

	if report.Totals.New == 0 && report.Failures == 0 {
		fmt.Fprintln(w, "No new events found.")
	}
	return nil
}
