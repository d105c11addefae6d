package batch

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// FormatResults renders the yield audit in the given format.
func (r *Result) FormatResults(format string) (string, error) {
	switch format {
	case FormatJSON:
		bts, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return "", err
		}
		return string(bts) + "\n", nil
	case FormatYAML:
		bts, err := yaml.Marshal(r)
		return string(bts), err
	case FormatText, "":
		return r.formatText(), nil
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// SaveResults writes the formatted audit to outputFile, or to w when
// outputFile is empty.
func (r *Result) SaveResults(format, outputFile string, w io.Writer) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		return nil
	}
	_, err = fmt.Fprint(w, output)
	return err
}

func (r *Result) formatText() string {
	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "Run: %s\n", r.RunID)
	if r.OutputPath != "" {
		_, _ = fmt.Fprintf(&b, "Feature table: %s\n", r.OutputPath)
	}
	_, _ = fmt.Fprintf(&b, "Attempted: %d\n", r.Attempted)
	_, _ = fmt.Fprintf(&b, "Retained: %d (%.1f%%)\n", r.Retained, 100*r.Yield())
	_, _ = fmt.Fprintf(&b, "No hand: %d\n", r.NoHand)
	_, _ = fmt.Fprintf(&b, "Failed: %d\n", r.Failed)
	_, _ = fmt.Fprintf(&b, "Workers: %d\n", r.WorkerCount)
	_, _ = fmt.Fprintf(&b, "Duration: %v\n\n", r.Duration.Round(time.Millisecond))

	labels := make([]string, 0, len(r.PerClass))
	for l := range r.PerClass {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(tw, "class\tattempted\tretained\tno_hand\tfailed\tyield\t")
	for _, l := range labels {
		c := r.PerClass[l]
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%.2f\t\n", l, c.Attempted, c.Retained, c.NoHand, c.Failed, c.Yield())
	}
	_ = tw.Flush()

	if len(r.LowYieldClasses) > 0 {
		_, _ = fmt.Fprintf(&b, "\nLow yield classes: %s\n", strings.Join(r.LowYieldClasses, ", "))
	}
	return b.String()
}
