package commands

import (
	"fmt"
	"time"

	"unleash/pkg/core"
	"unleash/pkg/exporter"
	"unleash/pkg/lookup"

	"github.com/spf13/cobra"
)

var exportVerbose bool

var exportCmd = &cobra.Command{
	Use:   "export [commit] [dir]",
	Short: "Write the tree of a commit into a directory",
	Long:  `Materialize every file, directory and symlink of the commit's tree into dir. The target must not exist or be empty.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		start := time.Now()

		// 1. 解析目标 Commit，拿到根树
		hash, err := resolveCommit(ctx, args[0])
		if err != nil {
			return err
		}
		chain := newChain()
		commit, err := lookup.GetCommit(ctx, chain, hash)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "🔄 Exporting %s (Author: %s)...\n", hash.Short(), commit.Author)

		// 2. 导出
		files := 0
		err = exporter.ExportTree(ctx, chain, commit.Tree, args[1],
			exporter.WithLogger(UL.Log),
			exporter.WithCallback(func(path string, entry core.TreeEntry) {
				files++
				if exportVerbose {
					fmt.Fprintf(out, "   %s\n", path)
				}
			}),
		)
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		fmt.Fprintf(out, "✅ Exported %d files to %s in %s\n", files, args[1], time.Since(start).Round(time.Millisecond))
		return nil
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff [commit] [dir]",
	Short: "Check whether a directory differs from a commit",
	Long:  `Compare every file of the commit's tree with the files under dir. Extra files in dir are ignored. Exits with an error when they differ.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		ctx := cmd.Context()

		hash, err := resolveCommit(ctx, args[0])
		if err != nil {
			return err
		}
		chain := newChain()
		commit, err := lookup.GetCommit(ctx, chain, hash)
		if err != nil {
			return err
		}

		differs, err := exporter.Differs(ctx, chain, commit.Tree, args[1])
		if err != nil {
			return err
		}
		if differs {
			return fmt.Errorf("%s differs from %s", args[1], hash.Short())
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ %s matches %s\n", args[1], hash.Short())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(diffCmd)
	exportCmd.Flags().BoolVarP(&exportVerbose, "verbose", "v", false, "list exported files")
}
