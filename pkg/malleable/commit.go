// Package malleable 提供可变的 commit 表示：元数据字段可直接赋值，
// 工作树通过路径级 API 编辑，Save 之前存储不会被写入。
package malleable

import (
	"context"
	"errors"
	"fmt"
	"time"

	"unleash/pkg/core"
	"unleash/pkg/exporter"
	"unleash/pkg/lookup"
	"unleash/pkg/storage"
	"unleash/pkg/treebuilder"
	"unleash/pkg/types"

	"github.com/go-git/go-git/v5/plumbing/filemode"
)

var ErrInvariantViolation = errors.New("structural invariant violation")

// MalleableCommit 是一个尚未持久化的 commit
// 单一使用者；每个实例拥有自己的暂存区，互不共享
type MalleableCommit struct {
	Author     string
	AuthorTime time.Time
	Committer  string
	CommitTime time.Time
	Encoding   string
	Message    string
	Parents    []types.Hash

	store  storage.Store
	editor *treebuilder.Editor
	opts   options
}

// New 创建一个没有父节点、工作树为空的 commit (仓库的第一个 commit)
func New(store storage.Store, opts ...Option) *MalleableCommit {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	now := o.now().Truncate(time.Second)
	return &MalleableCommit{
		AuthorTime: now,
		CommitTime: now,
		Encoding:   core.DefaultEncoding,
		store:      store,
		editor:     treebuilder.NewEditor(lookup.NewChain(store, o.cacheSize), ""),
		opts:       o,
	}
}

// FromExisting 用已存储的 commit 填充全部字段，工作树即该 commit 的树
func FromExisting(ctx context.Context, store storage.Store, hash types.Hash, opts ...Option) (*MalleableCommit, error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	chain := lookup.NewChain(store, o.cacheSize)
	c, err := lookup.GetCommit(ctx, chain, hash)
	if err != nil {
		return nil, fmt.Errorf("load commit %s: %w", hash.Short(), err)
	}

	return &MalleableCommit{
		Author:     c.Author,
		AuthorTime: c.AuthorTime,
		Committer:  c.Committer,
		CommitTime: c.CommitTime,
		Encoding:   c.EncodingName(),
		Message:    c.Message,
		Parents:    append([]types.Hash(nil), c.Parents...),
		store:      store,
		editor:     treebuilder.NewEditor(chain, c.Tree),
		opts:       o,
	}, nil
}

// FromParent 创建 hash 的子 commit: 树与元数据沿用父 commit，
// Parents 设为 [hash]，时间戳取当前本地时间
func FromParent(ctx context.Context, store storage.Store, hash types.Hash, opts ...Option) (*MalleableCommit, error) {
	mc, err := FromExisting(ctx, store, hash, opts...)
	if err != nil {
		return nil, err
	}
	now := mc.opts.now().Truncate(time.Second)
	mc.Parents = []types.Hash{hash}
	mc.AuthorTime = now
	mc.CommitTime = now
	return mc, nil
}

// Tree 返回工作树当前的根 Hash
func (m *MalleableCommit) Tree() types.Hash { return m.editor.Root() }

// Getter 返回能看到暂存对象的查找链
func (m *MalleableCommit) Getter() lookup.Getter { return m.editor.Chain() }

// GetPathData 读取路径内容；目录返回 nil
func (m *MalleableCommit) GetPathData(ctx context.Context, path string) ([]byte, error) {
	return m.editor.Data(ctx, path)
}

// GetPathMode 读取路径的模式位
func (m *MalleableCommit) GetPathMode(ctx context.Context, path string) (filemode.FileMode, error) {
	return m.editor.Mode(ctx, path)
}

// SetPathData 写入文件内容
func (m *MalleableCommit) SetPathData(ctx context.Context, path string, data []byte, mode filemode.FileMode) error {
	_, err := m.editor.SetData(ctx, path, data, mode)
	return err
}

// SetPathID 让路径指向一个已有对象 (不校验其存在性，Save 时统一检查)
func (m *MalleableCommit) SetPathID(ctx context.Context, path string, hash types.Hash, mode filemode.FileMode) error {
	return m.editor.Set(ctx, path, hash, mode)
}

func (m *MalleableCommit) PathExists(ctx context.Context, path string) (bool, error) {
	return m.editor.Exists(ctx, path)
}

func (m *MalleableCommit) RemovePath(ctx context.Context, path string) error {
	return m.editor.Remove(ctx, path)
}

// Walk 遍历工作树
func (m *MalleableCommit) Walk(ctx context.Context, fn treebuilder.WalkFunc) error {
	return m.editor.Walk(ctx, fn)
}

// ExportTo 把工作树 (含未保存的修改) 导出到目录
func (m *MalleableCommit) ExportTo(ctx context.Context, dir string) error {
	return exporter.ExportTree(ctx, m.editor.Chain(), m.Tree(), dir)
}

// Commit 用当前字段构造不可变 commit，不写入存储
func (m *MalleableCommit) Commit() (*core.Commit, error) {
	return core.NewCommit(core.CommitData{
		Tree:       m.Tree(),
		Parents:    m.Parents,
		Author:     m.Author,
		AuthorTime: m.AuthorTime,
		Committer:  m.Committer,
		CommitTime: m.CommitTime,
		Encoding:   m.Encoding,
		Message:    m.Message,
	})
}
