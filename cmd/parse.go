package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"go-phrase/notation"
)

var parseTimes int

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().IntVarP(&parseTimes, "times", "n", 1, "parse repeatedly, feeding each rewrite back in")
}

var parseCmd = &cobra.Command{
	Use:   "parse <pattern>...",
	Short: "Print the sequence a pattern produces",
	Long: `parse prints each resulting sequence as JSON followed by the rewritten
pattern text. Sequential groups advance between passes.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := notation.New(notation.DefaultOptions())
		text := strings.Join(args, " ")
		out := cmd.OutOrStdout()
		for i := 0; i < max(parseTimes, 1); i++ {
			s, rw, err := p.ParseSequence(text)
			if err != nil {
				return err
			}
			data, err := json.Marshal(s)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))
			fmt.Fprintf(out, "-> %s\n", rw)
			text = rw
		}
		return nil
	},
}
