package treebuilder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"unleash/pkg/core"
	"unleash/pkg/lookup"
	"unleash/pkg/storage"
	"unleash/pkg/types"

	"github.com/go-git/go-git/v5/plumbing/filemode"
)

var (
	// ErrPathNotFound 同时匹配 storage.ErrNotFound
	ErrPathNotFound = fmt.Errorf("path not found: %w", storage.ErrNotFound)
	ErrInvalidPath  = errors.New("invalid path")
)

// Editor 在不可变的 Tree 之上做路径级的写时复制编辑
// 每次修改都会产生新的根 Hash；新建的 Tree 放入 chain.Staged，存储不会被触碰
type Editor struct {
	root  types.Hash
	chain *lookup.Chain
}

// NewEditor 以 root 为工作树创建编辑器
// root 为空时从空树开始
func NewEditor(chain *lookup.Chain, root types.Hash) *Editor {
	if root == "" {
		root = chain.Stage(core.EmptyTree())
	}
	return &Editor{root: root, chain: chain}
}

// Root 返回当前工作树的根 Hash
func (e *Editor) Root() types.Hash { return e.root }

// Chain 返回编辑器使用的查找链
func (e *Editor) Chain() *lookup.Chain { return e.chain }

// SplitPath 把 "a/b/c" 切成路径段；首尾的 "/" 会被忽略
// 空路径返回 nil (表示根目录)
func SplitPath(path string) ([]string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, nil
	}
	segs := strings.Split(trimmed, "/")
	for _, s := range segs {
		if err := core.ValidEntryName(s); err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return segs, nil
}

// Set 把 path 指向 (hash, mode)，按需创建中间目录
func (e *Editor) Set(ctx context.Context, path string, hash types.Hash, mode filemode.FileMode) error {
	segs, err := SplitPath(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return fmt.Errorf("%w: cannot replace the root directory", ErrInvalidPath)
	}
	if !hash.IsValid() {
		return fmt.Errorf("%w: bad object id %q for %s", ErrInvalidPath, hash, path)
	}
	if !core.IsKnownMode(mode) {
		return fmt.Errorf("%w: %s has mode %o", core.ErrUnsupportedEntry, path, uint32(mode))
	}

	root, err := lookup.GetTree(ctx, e.chain, e.root)
	if err != nil {
		return fmt.Errorf("load root tree: %w", err)
	}
	next, err := e.setIn(ctx, root, segs, core.TreeEntry{Name: segs[len(segs)-1], Mode: mode, Hash: hash})
	if err != nil {
		return err
	}
	if next.ID() != e.root {
		e.root = e.chain.Stage(next)
	}
	return nil
}

// SetData 暂存一个 blob 并把 path 指向它，返回 blob 的 Hash
func (e *Editor) SetData(ctx context.Context, path string, data []byte, mode filemode.FileMode) (types.Hash, error) {
	if !core.IsFileMode(mode) {
		return "", fmt.Errorf("%w: mode %o cannot hold data", core.ErrUnsupportedEntry, uint32(mode))
	}
	// 先校验路径，避免为非法路径留下暂存 blob
	if segs, err := SplitPath(path); err != nil {
		return "", err
	} else if len(segs) == 0 {
		return "", fmt.Errorf("%w: cannot replace the root directory", ErrInvalidPath)
	}
	h := e.chain.Stage(core.NewBlob(data))
	if err := e.Set(ctx, path, h, mode); err != nil {
		return "", err
	}
	return h, nil
}

// setIn 递归地在 tree 中设置 entry，返回新的 tree (未变化时返回原对象)
func (e *Editor) setIn(ctx context.Context, tree *core.Tree, segs []string, entry core.TreeEntry) (*core.Tree, error) {
	name := segs[0]
	cur, ok := tree.Get(name)

	// 1. 最后一段：直接插入/覆盖条目
	if len(segs) == 1 {
		if ok && cur.Mode == entry.Mode && cur.Hash == entry.Hash {
			return tree, nil
		}
		return tree.With(entry)
	}

	// 2. 中间段：已有目录则下钻；文件挡路或不存在时从空树开始
	sub := core.EmptyTree()
	if ok && cur.IsDir() {
		t, err := lookup.GetTree(ctx, e.chain, cur.Hash)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
		sub = t
	}

	next, err := e.setIn(ctx, sub, segs[1:], entry)
	if err != nil {
		return nil, err
	}

	// 3. 子树没变，父节点也不动 (结构共享)
	if ok && cur.IsDir() && next.ID() == cur.Hash {
		return tree, nil
	}
	e.chain.Stage(next)
	return tree.With(core.TreeEntry{Name: name, Mode: core.ModeDir, Hash: next.ID()})
}

// Lookup 解析 path 对应的条目；空路径返回根目录
func (e *Editor) Lookup(ctx context.Context, path string) (core.TreeEntry, error) {
	segs, err := SplitPath(path)
	if err != nil {
		return core.TreeEntry{}, err
	}

	entry := core.TreeEntry{Mode: core.ModeDir, Hash: e.root}
	for i, seg := range segs {
		if !entry.IsDir() {
			// 文件挡住了后续路径
			return core.TreeEntry{}, fmt.Errorf("%w: %s", ErrPathNotFound, strings.Join(segs[:i+1], "/"))
		}
		tree, err := lookup.GetTree(ctx, e.chain, entry.Hash)
		if err != nil {
			return core.TreeEntry{}, err
		}
		next, ok := tree.Get(seg)
		if !ok {
			return core.TreeEntry{}, fmt.Errorf("%w: %s", ErrPathNotFound, strings.Join(segs[:i+1], "/"))
		}
		entry = next
	}
	return entry, nil
}

// Data 读取文件内容；目录返回 (nil, nil)
func (e *Editor) Data(ctx context.Context, path string) ([]byte, error) {
	entry, err := e.Lookup(ctx, path)
	if err != nil {
		return nil, err
	}
	if entry.IsDir() {
		return nil, nil
	}
	if !core.IsFileMode(entry.Mode) {
		return nil, fmt.Errorf("%w: %s has mode %o", core.ErrUnsupportedEntry, path, uint32(entry.Mode))
	}
	blob, err := lookup.GetBlob(ctx, e.chain, entry.Hash)
	if err != nil {
		return nil, err
	}
	return blob.Bytes(), nil
}

// Mode 返回 path 的模式位；目录返回 core.ModeDir
func (e *Editor) Mode(ctx context.Context, path string) (filemode.FileMode, error) {
	entry, err := e.Lookup(ctx, path)
	if err != nil {
		return filemode.Empty, err
	}
	return entry.Mode, nil
}

// Exists 当且仅当 Lookup 能成功时返回 true
func (e *Editor) Exists(ctx context.Context, path string) (bool, error) {
	_, err := e.Lookup(ctx, path)
	if errors.Is(err, ErrPathNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Remove 删除 path 对应的条目，变空的目录会一并删除 (Git 不保存空目录)
func (e *Editor) Remove(ctx context.Context, path string) error {
	segs, err := SplitPath(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return fmt.Errorf("%w: cannot remove the root directory", ErrInvalidPath)
	}

	root, err := lookup.GetTree(ctx, e.chain, e.root)
	if err != nil {
		return fmt.Errorf("load root tree: %w", err)
	}
	next, err := e.removeIn(ctx, root, segs, path)
	if err != nil {
		return err
	}
	if next.ID() != e.root {
		e.root = e.chain.Stage(next)
	}
	return nil
}

func (e *Editor) removeIn(ctx context.Context, tree *core.Tree, segs []string, path string) (*core.Tree, error) {
	name := segs[0]
	cur, ok := tree.Get(name)
	if !ok || (len(segs) > 1 && !cur.IsDir()) {
		return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
	}
	if len(segs) == 1 {
		return tree.Without(name)
	}

	sub, err := lookup.GetTree(ctx, e.chain, cur.Hash)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	next, err := e.removeIn(ctx, sub, segs[1:], path)
	if err != nil {
		return nil, err
	}
	if next.Len() == 0 {
		return tree.Without(name)
	}
	e.chain.Stage(next)
	return tree.With(core.TreeEntry{Name: name, Mode: core.ModeDir, Hash: next.ID()})
}

// WalkFunc 在每个条目上被调用；对目录返回 fs.SkipDir 可跳过其子树
type WalkFunc func(path string, entry core.TreeEntry) error

// Walk 按 Git 顺序深度优先遍历工作树
func (e *Editor) Walk(ctx context.Context, fn WalkFunc) error {
	return WalkTree(ctx, e.chain, e.root, fn)
}

// WalkTree 遍历任意 Getter 中以 root 为根的树
func WalkTree(ctx context.Context, g lookup.Getter, root types.Hash, fn WalkFunc) error {
	return walk(ctx, g, root, "", fn)
}

func walk(ctx context.Context, g lookup.Getter, hash types.Hash, prefix string, fn WalkFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tree, err := lookup.GetTree(ctx, g, hash)
	if err != nil {
		return err
	}
	for _, entry := range tree.Entries() {
		p := entry.Name
		if prefix != "" {
			p = prefix + "/" + entry.Name
		}
		err := fn(p, entry)
		if errors.Is(err, fs.SkipDir) && entry.IsDir() {
			continue
		}
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if err := walk(ctx, g, entry.Hash, p, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
