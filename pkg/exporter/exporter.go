package exporter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"unleash/pkg/core"
	"unleash/pkg/lookup"
	"unleash/pkg/treebuilder"
	"unleash/pkg/types"

	"github.com/go-git/go-git/v5/plumbing/filemode"
	"go.uber.org/zap"
)

// DirPerm 是导出目录的固定权限 (通过 chmod 设置，不受 umask 影响)
const DirPerm = 0o755

var ErrTargetNotEmpty = errors.New("target directory is not empty")

// UnsupportedEntryError 标识无法导出的条目 (gitlink 或未知模式)
type UnsupportedEntryError struct {
	Path string
	Mode filemode.FileMode
}

func (e *UnsupportedEntryError) Error() string {
	return fmt.Sprintf("cannot export %s: unsupported mode %s", e.Path, core.FormatMode(e.Mode))
}

func (e *UnsupportedEntryError) Unwrap() error { return core.ErrUnsupportedEntry }

// RestoreCallback 在每个文件或符号链接写出后被调用
type RestoreCallback func(path string, entry core.TreeEntry)

type options struct {
	log       *zap.Logger
	onRestore RestoreCallback
}

type Option func(*options)

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

func WithCallback(fn RestoreCallback) Option {
	return func(o *options) { o.onRestore = fn }
}

// ExportTree 把 treeHash 指向的树完整写到 dir
// dir 必须不存在或为空；遍历校验通过前不写任何内容
func ExportTree(ctx context.Context, g lookup.Getter, treeHash types.Hash, dir string, opts ...Option) error {
	o := options{log: zap.NewNop()}
	for _, fn := range opts {
		fn(&o)
	}

	// 1. 目标目录检查
	if err := checkTarget(dir); err != nil {
		return err
	}

	// 2. 校验：任何不支持的条目都在写入前失败
	if err := treebuilder.WalkTree(ctx, g, treeHash, func(path string, entry core.TreeEntry) error {
		// 条目名必须是单个路径段，否则拼接后可能落到 dir 之外
		if err := core.ValidEntryName(entry.Name); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if !entry.IsDir() && !core.IsFileMode(entry.Mode) {
			return &UnsupportedEntryError{Path: path, Mode: entry.Mode}
		}
		return nil
	}); err != nil {
		return err
	}

	// 3. 写出
	if err := os.MkdirAll(dir, DirPerm); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return treebuilder.WalkTree(ctx, g, treeHash, func(path string, entry core.TreeEntry) error {
		full := filepath.Join(dir, filepath.FromSlash(path))
		if err := writeEntry(ctx, g, full, entry); err != nil {
			return err
		}
		o.log.Debug("exported", zap.String("path", path), zap.String("mode", core.FormatMode(entry.Mode)))
		if !entry.IsDir() && o.onRestore != nil {
			o.onRestore(path, entry)
		}
		return nil
	})
}

func checkTarget(dir string) error {
	f, err := os.Open(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	names, err := f.Readdirnames(1)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read %s: %w", dir, err)
	}
	if len(names) > 0 {
		return fmt.Errorf("%w: %s", ErrTargetNotEmpty, dir)
	}
	return nil
}

func writeEntry(ctx context.Context, g lookup.Getter, full string, entry core.TreeEntry) error {
	if entry.IsDir() {
		if err := os.Mkdir(full, DirPerm); err != nil {
			return fmt.Errorf("failed to create dir %s: %w", full, err)
		}
		return os.Chmod(full, DirPerm)
	}

	blob, err := lookup.GetBlob(ctx, g, entry.Hash)
	if err != nil {
		return fmt.Errorf("load %s: %w", full, err)
	}

	if entry.Mode == core.ModeSymlink {
		if err := os.Symlink(string(blob.Bytes()), full); err != nil {
			return fmt.Errorf("failed to link %s: %w", full, err)
		}
		return nil
	}

	perm := os.FileMode(core.FilePerm(entry.Mode))
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", full, err)
	}
	if _, err := f.Write(blob.Bytes()); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", full, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	// OpenFile 的权限受 umask 影响
	return os.Chmod(full, perm)
}

// Differs 检查 dir 是否与树不一致：缺失或内容不同的条目都算不同，多余文件忽略
func Differs(ctx context.Context, g lookup.Getter, treeHash types.Hash, dir string) (bool, error) {
	errStop := errors.New("stop")

	err := treebuilder.WalkTree(ctx, g, treeHash, func(path string, entry core.TreeEntry) error {
		full := filepath.Join(dir, filepath.FromSlash(path))
		fi, err := os.Lstat(full)
		if errors.Is(err, os.ErrNotExist) {
			return errStop
		}
		if err != nil {
			return err
		}

		switch {
		case entry.IsDir():
			if !fi.IsDir() {
				return errStop
			}
			return nil
		case entry.Mode == core.ModeSymlink:
			target, err := os.Readlink(full)
			if err != nil {
				return errStop
			}
			if core.HashObject(core.TypeBlob, []byte(target)) != entry.Hash {
				return errStop
			}
			return nil
		case core.IsFileMode(entry.Mode):
			if !fi.Mode().IsRegular() {
				return errStop
			}
			data, err := os.ReadFile(full)
			if err != nil {
				return err
			}
			if core.HashObject(core.TypeBlob, data) != entry.Hash {
				return errStop
			}
			return nil
		default:
			return &UnsupportedEntryError{Path: path, Mode: entry.Mode}
		}
	})
	if errors.Is(err, errStop) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}
