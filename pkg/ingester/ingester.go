package ingester

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"unleash/pkg/core"
	"unleash/pkg/ignore"
	"unleash/pkg/logging"

	"github.com/go-git/go-git/v5/plumbing/filemode"
	"go.uber.org/zap"
)

// PathWriter 是导入的目标，通常是 *malleable.MalleableCommit
type PathWriter interface {
	SetPathData(ctx context.Context, path string, data []byte, mode filemode.FileMode) error
}

// Stats 汇总一次导入
type Stats struct {
	Files    int
	Symlinks int
	Skipped  int
}

type Ingester struct {
	matcher *ignore.Matcher
	log     *zap.Logger
}

func NewIngester(matcher *ignore.Matcher, log *zap.Logger) *Ingester {
	return &Ingester{matcher: matcher, log: logging.OrNop(log)}
}

// IngestDir 把 dir 下的文件写入 w 的 prefix 子路径
// 普通文件按可执行位区分 100644 / 100755；符号链接保存链接文本；空目录不记录
func (ing *Ingester) IngestDir(ctx context.Context, w PathWriter, dir, prefix string) (Stats, error) {
	var st Stats

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		// 1. 忽略规则
		if ing.matcher.Matches(rel) {
			st.Skipped++
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		target := path.Join(prefix, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}

		// 2. 按文件类型写入
		switch {
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(p)
			if err != nil {
				return fmt.Errorf("failed to read link %s: %w", p, err)
			}
			if err := w.SetPathData(ctx, target, []byte(link), core.ModeSymlink); err != nil {
				return err
			}
			st.Symlinks++
		case info.Mode().IsRegular():
			data, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", p, err)
			}
			mode := core.ModeRegular
			if info.Mode().Perm()&0o111 != 0 {
				mode = core.ModeExecutable
			}
			if err := w.SetPathData(ctx, target, data, mode); err != nil {
				return err
			}
			st.Files++
		default:
			ing.log.Warn("skipping special file", zap.String("path", rel), zap.Stringer("mode", info.Mode()))
			st.Skipped++
		}
		return nil
	})
	if err != nil {
		return st, fmt.Errorf("ingest %s: %w", dir, err)
	}

	ing.log.Debug("ingested directory",
		zap.String("dir", dir),
		zap.Int("files", st.Files),
		zap.Int("symlinks", st.Symlinks),
		zap.Int("skipped", st.Skipped),
	)
	return st, nil
}
