package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initBranch string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize an unleash repository",
	Long:  `Create the object store and point HEAD at the initial branch. Re-running init on an existing repository is safe.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}

		ctx := cmd.Context()
		// 存储目录已由 App 创建，这里只需要建立 HEAD
		if err := UL.Refs.Init(ctx, initBranch); err != nil {
			return fmt.Errorf("failed to init HEAD: %w", err)
		}
		target, err := UL.Refs.HeadTarget(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✅ Initialized unleash repository in %s (HEAD -> %s)\n", UL.RepoPath, target)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVarP(&initBranch, "branch", "b", "master", "initial branch name")
}
