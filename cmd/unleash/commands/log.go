package commands

import (
	"errors"
	"fmt"
	"io"
	"time"

	"unleash/pkg/core"
	"unleash/pkg/depgraph"
	"unleash/pkg/lookup"
	"unleash/pkg/refs"
	"unleash/pkg/types"

	"github.com/spf13/cobra"
)

var (
	logLimit   int
	logAuthor  string
	logReverse bool
)

var logCmd = &cobra.Command{
	Use:   "log [commit]",
	Short: "Show commit logs",
	Long: `Display the first-parent history starting from the given commit (or HEAD).
With --author, query the SQL commit index instead (requires database.index_commits or refs.type=sql).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		// 按作者查询走 SQL 索引
		if logAuthor != "" {
			if UL.Meta == nil {
				return fmt.Errorf("commit index is not enabled")
			}
			commits, err := UL.Meta.FindCommitsByAuthor(ctx, logAuthor, logLimit)
			if err != nil {
				return err
			}
			for _, c := range commits {
				hashColor.Fprintf(out, "commit %s\n", c.Hash)
				fmt.Fprintf(out, "Author: %s\n", c.Author)
				fmt.Fprintf(out, "Date:   %s\n", time.Unix(c.Timestamp, 0).Format(time.RFC1123Z))
				fmt.Fprintf(out, "\n    %s\n\n", c.Message)
			}
			return nil
		}

		// 1. 确定起始点
		var current types.Hash
		if len(args) > 0 {
			h, err := resolveCommit(ctx, args[0])
			if err != nil {
				return err
			}
			current = h
		} else {
			head, err := UL.Refs.GetHead(ctx)
			if errors.Is(err, refs.ErrNoHead) {
				fmt.Fprintln(out, "No commits yet.")
				return nil
			}
			if err != nil {
				return err
			}
			current = head
		}

		chain := newChain()
		if logReverse {
			return printAncestry(cmd, chain, current)
		}

		// 2. 沿第一个父节点遍历
		for n := 0; current != "" && (logLimit <= 0 || n < logLimit); n++ {
			c, err := lookup.GetCommit(ctx, chain, current)
			if err != nil {
				return fmt.Errorf("failed to read commit %s: %w", current, err)
			}
			printCommitLog(out, c)

			current = ""
			if len(c.Parents) > 0 {
				current = c.Parents[0]
			}
		}
		return nil
	},
}

// printAncestry 收集全部祖先 (所有父节点)，按依赖顺序输出：根 commit 在前
func printAncestry(cmd *cobra.Command, chain *lookup.Chain, start types.Hash) error {
	ctx := cmd.Context()
	g := depgraph.New[types.Hash]()
	commits := make(map[types.Hash]*core.Commit)

	queue := []types.Hash{start}
	for len(queue) > 0 && (logLimit <= 0 || len(commits) < logLimit) {
		h := queue[0]
		queue = queue[1:]
		if _, ok := commits[h]; ok {
			continue
		}
		c, err := lookup.GetCommit(ctx, chain, h)
		if err != nil {
			return fmt.Errorf("failed to read commit %s: %w", h, err)
		}
		commits[h] = c
		if err := g.Add(h, c.Parents...); err != nil {
			return err
		}
		queue = append(queue, c.Parents...)
	}

	for _, h := range g.Order() {
		// 超出 max-count 的父节点只作为图中的边存在
		if c, ok := commits[h]; ok {
			printCommitLog(cmd.OutOrStdout(), c)
		}
	}
	return nil
}

// printCommitLog 仿 git log 格式输出
func printCommitLog(w io.Writer, c *core.Commit) {
	hashColor.Fprintf(w, "commit %s\n", c.ID())
	fmt.Fprintf(w, "Author: %s\n", c.Author)
	fmt.Fprintf(w, "Date:   %s\n", c.AuthorTime.Format(time.RFC1123Z))
	fmt.Fprintf(w, "\n    %s\n\n", c.Message)
}

func init() {
	rootCmd.AddCommand(logCmd)
	logCmd.Flags().IntVarP(&logLimit, "max-count", "n", 0, "limit the number of commits")
	logCmd.Flags().StringVar(&logAuthor, "author", "", "list indexed commits by author")
	logCmd.Flags().BoolVar(&logReverse, "reverse", false, "walk all parents and print oldest first")
}
