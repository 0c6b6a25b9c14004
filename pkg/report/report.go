// Package report formats an epub.ValidationReport for a command-line
// audience, as plain text or as JSON. It owns no severity or report
// type of its own: epub.ValidationReport is canonical, and this package
// is purely a presentation layer over it, grounded on the teacher's
// pkg/report (which bundled the report type and its writers together)
// narrowed down to just the writers now that pkg/epub owns the data.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/kdahlquist/epubkit/pkg/epub"
)

// jsonMessage mirrors epub.ValidationMessage for stable JSON field names
// independent of the epub package's internal Severity representation.
type jsonMessage struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// jsonReport is the JSON wire shape written by WriteJSON.
type jsonReport struct {
	Valid    bool          `json:"valid"`
	Errors   []jsonMessage `json:"errors"`
	Warnings []jsonMessage `json:"warnings"`
}

func toJSONMessages(msgs []epub.ValidationMessage) []jsonMessage {
	out := make([]jsonMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, jsonMessage{Severity: m.Severity.String(), Message: m.Message})
	}
	return out
}

// WriteJSON encodes the report as indented JSON. Errors and Warnings are
// always emitted as arrays, never null, so a zero-finding report reads
// as {"errors":[],"warnings":[]} rather than {"errors":null,...}.
func WriteJSON(w io.Writer, r *epub.ValidationReport) error {
	out := jsonReport{
		Valid:    r.IsValid(),
		Errors:   toJSONMessages(r.Errors),
		Warnings: toJSONMessages(r.Warnings),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// WriteText prints one line per finding, errors before warnings, then a
// summary line.
func WriteText(w io.Writer, r *epub.ValidationReport) {
	for _, m := range r.Errors {
		fmt.Fprintln(w, m.String())
	}
	for _, m := range r.Warnings {
		fmt.Fprintln(w, m.String())
	}
	if len(r.Errors) == 0 && len(r.Warnings) == 0 {
		fmt.Fprintln(w, "No errors or warnings detected.")
		return
	}
	fmt.Fprintf(w, "%d error(s), %d warning(s)\n", len(r.Errors), len(r.Warnings))
}
