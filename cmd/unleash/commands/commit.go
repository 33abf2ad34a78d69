package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"unleash/pkg/core"
	"unleash/pkg/ignore"
	"unleash/pkg/ingester"
	"unleash/pkg/lookup"
	"unleash/pkg/malleable"
	"unleash/pkg/refs"
	"unleash/pkg/types"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	commitMsg    string
	commitBase   string
	commitAuthor string
	commitSet    []string
	commitRemove []string
	commitImport string
	commitPrefix string
	commitTag    string
	commitForce  bool
	commitBranch string
)

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Create a child commit without touching a working directory",
	Long: `Create a new commit on top of --base (default HEAD). Files are written with --set path=localfile,
removed with --rm, or imported from a directory with --import. Only the new objects reachable
from the commit are stored. HEAD moves only if it still points at the base commit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		if commitMsg == "" {
			return fmt.Errorf("commit message cannot be empty (use -m)")
		}

		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		start := time.Now()

		// ---------------------------------------------------------
		// Phase 1: 基于 base 创建子 commit
		// ---------------------------------------------------------
		mc, base, err := childCommit(ctx, commitBase)
		if err != nil {
			return err
		}
		if base == "" {
			fmt.Fprintln(out, "🌱 Initial Commit")
		}
		mc.Author = identity(commitAuthor)
		mc.Committer = mc.Author
		mc.Message = commitMsg
		if !strings.HasSuffix(mc.Message, "\n") {
			mc.Message += "\n"
		}

		// ---------------------------------------------------------
		// Phase 2: 路径级编辑
		// ---------------------------------------------------------
		if commitImport != "" {
			matcher, err := ignore.NewMatcher(commitImport)
			if err != nil {
				return err
			}
			st, err := ingester.NewIngester(matcher, UL.Log).IngestDir(ctx, mc, commitImport, commitPrefix)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "📦 Imported %d files, %d symlinks (%d ignored)\n", st.Files, st.Symlinks, st.Skipped)
		}
		for _, arg := range commitSet {
			if err := setFromFile(ctx, mc, arg); err != nil {
				return err
			}
		}
		for _, p := range commitRemove {
			if err := mc.RemovePath(ctx, p); err != nil {
				return fmt.Errorf("failed to remove %s: %w", p, err)
			}
		}

		// ---------------------------------------------------------
		// Phase 3: 保存 (只写入可达的新对象)
		// ---------------------------------------------------------
		hash, err := mc.Save(ctx)
		if err != nil {
			return fmt.Errorf("failed to save commit: %w", err)
		}

		if UL.Meta != nil {
			c, err := lookup.GetCommit(ctx, mc.Getter(), hash)
			if err == nil {
				err = UL.Meta.IndexCommit(ctx, c)
			}
			if err != nil {
				// commit 已经落盘，索引失败只提示
				warnColor.Fprintf(out, "⚠️  Warning: failed to index commit: %v\n", err)
			}
		}

		// ---------------------------------------------------------
		// Phase 4: 更新引用
		// ---------------------------------------------------------
		if commitTag != "" {
			if err := writeTag(ctx, commitTag, hash); err != nil {
				return err
			}
		}
		if commitBranch != "" {
			// 直接移动分支；HEAD 若符号指向它会随之前进
			if err := UL.Refs.Store().Set(ctx, refs.BranchRef(commitBranch), hash); err != nil {
				return fmt.Errorf("failed to update branch %s: %w", commitBranch, err)
			}
		} else if err := advanceHead(ctx, out, base, hash); err != nil {
			return err
		}

		fmt.Fprintf(out, "✅ [%s] %s\n", hashColor.Sprint(hash.Short()), strings.TrimSpace(commitMsg))
		fmt.Fprintf(out, "   Time: %s | Author: %s\n", time.Since(start).Round(time.Millisecond), mc.Author)
		return nil
	},
}

// childCommit 返回 base 的子 commit；base 为 HEAD 且仓库还没有提交时返回根 commit
func childCommit(ctx context.Context, base string) (*malleable.MalleableCommit, types.Hash, error) {
	if base == refs.Head {
		if _, err := UL.Refs.GetHead(ctx); errors.Is(err, refs.ErrNoHead) {
			return malleable.New(UL.Store, UL.CommitOptions()...), "", nil
		}
	}
	hash, err := resolveCommit(ctx, base)
	if err != nil {
		return nil, "", err
	}
	mc, err := malleable.FromParent(ctx, UL.Store, hash, UL.CommitOptions()...)
	if err != nil {
		return nil, "", err
	}
	return mc, hash, nil
}

// setFromFile 解析 "path=localfile" 并写入文件内容，可执行位决定模式
func setFromFile(ctx context.Context, mc *malleable.MalleableCommit, arg string) error {
	dst, src, ok := strings.Cut(arg, "=")
	if !ok || dst == "" || src == "" {
		return fmt.Errorf("invalid --set %q (want path=localfile)", arg)
	}
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	mode := core.ModeRegular
	if info.Mode().Perm()&0o111 != 0 {
		mode = core.ModeExecutable
	}
	if err := mc.SetPathData(ctx, dst, data, mode); err != nil {
		return fmt.Errorf("failed to set %s: %w", dst, err)
	}
	return nil
}

// writeTag 写入轻量标签，已存在时需要 --force
func writeTag(ctx context.Context, name string, hash types.Hash) error {
	ref := "refs/tags/" + name
	_, err := UL.Refs.Store().Get(ctx, ref)
	switch {
	case err == nil && !commitForce:
		return fmt.Errorf("tag %s already exists (use --force to overwrite)", name)
	case err != nil && !errors.Is(err, refs.ErrRefNotFound):
		return err
	}
	return UL.Refs.Store().Set(ctx, ref, hash)
}

// advanceHead 只在 HEAD 仍指向 base 时移动它
func advanceHead(ctx context.Context, out io.Writer, base, hash types.Hash) error {
	head, err := UL.Refs.GetHead(ctx)
	switch {
	case errors.Is(err, refs.ErrNoHead):
		if base != "" {
			warnColor.Fprintln(out, "⚠️  HEAD is unborn but the commit has a base. Not changing HEAD.")
			return nil
		}
	case err != nil:
		return err
	case head != base:
		UL.Log.Warn("HEAD moved away from base, not updating", zap.Stringer("head", head), zap.Stringer("base", base))
		warnColor.Fprintln(out, "⚠️  HEAD does not point at the same commit as base commit. Not changing HEAD.")
		return nil
	}
	if err := UL.Refs.UpdateHead(ctx, hash); err != nil {
		return fmt.Errorf("failed to update HEAD: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(commitCmd)

	f := commitCmd.Flags()
	f.StringVarP(&commitMsg, "message", "m", "", "commit message")
	f.StringVar(&commitBase, "base", refs.Head, "parent commit-ish")
	f.StringVar(&commitAuthor, "author", "", `author and committer, "Name <email>" (default from user.name/user.email)`)
	f.StringArrayVar(&commitSet, "set", nil, "write a file: path=localfile (repeatable)")
	f.StringArrayVar(&commitRemove, "rm", nil, "remove a path (repeatable)")
	f.StringVar(&commitImport, "import", "", "import a directory (honours .unleashignore)")
	f.StringVar(&commitPrefix, "prefix", "", "path inside the tree for --import")
	f.StringVarP(&commitTag, "tag", "t", "", "also write refs/tags/<tag>")
	f.BoolVarP(&commitForce, "force", "f", false, "overwrite an existing tag")
	f.StringVarP(&commitBranch, "branch", "b", "", "move this branch to the new commit instead of HEAD")
}
