package commands

import (
	"fmt"

	"unleash/pkg/exporter"
	"unleash/pkg/malleable"
	"unleash/pkg/refs"

	"github.com/spf13/cobra"
)

var catCmd = &cobra.Command{
	Use:   "cat [name] [path]",
	Short: "Show an object, or a file inside a commit",
	Long: `With one argument, print the object the name resolves to (commit, tree, tag or blob).
With a path, print the content of that file in the resolved commit.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		// 1. 只给名称: 打印对象本身
		if len(args) == 1 {
			rr, err := refs.Resolve(ctx, UL.Store, UL.Refs.Store(), args[0])
			if err != nil {
				return err
			}
			c, err := rr.Single()
			if err != nil {
				return err
			}
			if c.ID == "" {
				return fmt.Errorf("%w: %s is dangling", refs.ErrRefNotFound, c.FullName)
			}
			return exporter.PrintObject(ctx, newChain(), c.ID, out)
		}

		// 2. 名称 + 路径: 读 commit 中的文件
		hash, err := resolveCommit(ctx, args[0])
		if err != nil {
			return err
		}
		mc, err := malleable.FromExisting(ctx, UL.Store, hash, UL.CommitOptions()...)
		if err != nil {
			return err
		}
		data, err := mc.GetPathData(ctx, args[1])
		if err != nil {
			return err
		}
		if data == nil {
			return fmt.Errorf("%s is a directory", args[1])
		}
		_, err = out.Write(data)
		return err
	},
}

func init() {
	rootCmd.AddCommand(catCmd)
}
