package commands

import (
	"fmt"
	"io"

	"unleash/pkg/refs"

	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [name]",
	Short: "List every interpretation of a name",
	Long:  `Resolve a name as an object id, a short id and every ref namespace, without guessing. Ambiguous names list all candidates.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}

		rr, err := refs.Resolve(cmd.Context(), UL.Store, UL.Refs.Store(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch m := rr.Match().(type) {
		case refs.NoMatch:
			return fmt.Errorf("%w: %s", refs.ErrRefNotFound, args[0])
		case refs.OneMatch:
			printCandidate(out, m.Candidate)
		case refs.ManyMatches:
			warnColor.Fprintf(out, "⚠️  %q is ambiguous, %d candidates:\n", args[0], len(m.Candidates))
			for _, c := range m.Candidates {
				printCandidate(out, c)
			}
		}
		return nil
	},
}

func printCandidate(w io.Writer, c refs.Candidate) {
	id := string(c.ID)
	if id == "" {
		id = "(dangling)"
	}
	fmt.Fprintf(w, "%-6s %s %s", c.Kind, hashColor.Sprint(id), c.FullName)
	if c.Symbolic {
		fmt.Fprintf(w, " -> %s", c.Target)
	}
	fmt.Fprintln(w)
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
