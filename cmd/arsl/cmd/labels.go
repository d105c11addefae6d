package cmd

import (
	"encoding/json"
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/MeKo-Tech/arsl/internal/labels"
	"github.com/spf13/cobra"
)

// labelsCmd prints the glyph table.
var labelsCmd = &cobra.Command{
	Use:   "labels",
	Short: "List the recognized glyphs and configured aliases",
	Long: `Print the 30 class ids with their Arabic glyphs, followed by the
class name aliases configured under classifier.label_aliases.

Examples:
  arsl labels
  arsl labels --format json`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		mapper := cfg.LabelMapper()
		format, _ := cmd.Flags().GetString("format")

		switch format {
		case outputFormatJSON:
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Labels  []labels.Entry `json:"labels"`
				Aliases map[string]int `json:"aliases,omitempty"`
			}{labels.Table(), mapper.Aliases()})
		case outputFormatText:
		default:
			return fmt.Errorf("invalid output format: %s (must be one of: %s, %s)", format, outputFormatText, outputFormatJSON)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "ID\tGLYPH")
		for _, e := range labels.Table() {
			_, _ = fmt.Fprintf(tw, "%d\t%s\n", e.ID, e.Glyph)
		}

		aliases := mapper.Aliases()
		if len(aliases) > 0 {
			_, _ = fmt.Fprintln(tw)
			_, _ = fmt.Fprintln(tw, "ALIAS\tID\tGLYPH")
			names := make([]string, 0, len(aliases))
			for name := range aliases {
				names = append(names, name)
			}
			slices.Sort(names)
			for _, name := range names {
				g, _ := labels.Glyph(aliases[name])
				_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\n", name, aliases[name], g)
			}
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(labelsCmd)
	labelsCmd.Flags().StringP("format", "f", outputFormatText, "output format: text, json")
}
