// Package lookup 提供“先查暂存区，再查存储”的对象读取链
package lookup

import (
	"context"
	"fmt"

	"unleash/pkg/core"
	"unleash/pkg/storage"
	"unleash/pkg/types"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize 是解码对象 LRU 的默认容量
const DefaultCacheSize = 1024

// Getter 是只读的对象来源，编辑器与导出器都依赖它
type Getter interface {
	Get(ctx context.Context, hash types.Hash) (core.Object, error)
	Has(ctx context.Context, hash types.Hash) (bool, error)
}

// Chain 按顺序查找: Staged -> LRU -> Store
// Staged 由持有者 (一个 MalleableCommit 会话) 独占，不加锁
type Chain struct {
	Staged map[types.Hash]core.Object
	Store  storage.Store

	cache *lru.Cache[types.Hash, core.Object]
}

// NewChain 创建查找链；cacheSize <= 0 时关闭 LRU
func NewChain(store storage.Store, cacheSize int) *Chain {
	c := &Chain{
		Staged: make(map[types.Hash]core.Object),
		Store:  store,
	}
	if cacheSize > 0 {
		// 只有 size <= 0 才会报错，这里已排除
		c.cache, _ = lru.New[types.Hash, core.Object](cacheSize)
	}
	return c
}

// Stage 把对象放入暂存区并返回其 Hash
// 同一 Hash 重复暂存是无害的 (内容相同)
func (c *Chain) Stage(obj core.Object) types.Hash {
	c.Staged[obj.ID()] = obj
	return obj.ID()
}

// IsStaged 判断对象是否来自本会话的暂存区
func (c *Chain) IsStaged(hash types.Hash) bool {
	_, ok := c.Staged[hash]
	return ok
}

// Get 读取对象，不存在时返回 storage.ErrNotFound
func (c *Chain) Get(ctx context.Context, hash types.Hash) (core.Object, error) {
	if obj, ok := c.Staged[hash]; ok {
		return obj, nil
	}
	if c.cache != nil {
		if obj, ok := c.cache.Get(hash); ok {
			return obj, nil
		}
	}
	if c.Store == nil {
		return nil, fmt.Errorf("object %s: %w", hash, storage.ErrNotFound)
	}
	obj, err := storage.ReadObject(ctx, c.Store, hash)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.Add(hash, obj)
	}
	return obj, nil
}

// Has 检查对象是否可见 (暂存区或存储)
func (c *Chain) Has(ctx context.Context, hash types.Hash) (bool, error) {
	if _, ok := c.Staged[hash]; ok {
		return true, nil
	}
	if c.cache != nil && c.cache.Contains(hash) {
		return true, nil
	}
	if c.Store == nil {
		return false, nil
	}
	return c.Store.Has(ctx, hash)
}

// GetTree 读取对象并断言其为 Tree
func GetTree(ctx context.Context, g Getter, hash types.Hash) (*core.Tree, error) {
	obj, err := g.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	tree, ok := obj.(*core.Tree)
	if !ok {
		return nil, fmt.Errorf("object %s is a %s, not a tree", hash.Short(), obj.Type())
	}
	return tree, nil
}

// GetCommit 读取对象并断言其为 Commit
func GetCommit(ctx context.Context, g Getter, hash types.Hash) (*core.Commit, error) {
	obj, err := g.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	commit, ok := obj.(*core.Commit)
	if !ok {
		return nil, fmt.Errorf("object %s is a %s, not a commit", hash.Short(), obj.Type())
	}
	return commit, nil
}

// GetBlob 读取对象并断言其为 Blob
func GetBlob(ctx context.Context, g Getter, hash types.Hash) (*core.Blob, error) {
	obj, err := g.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	blob, ok := obj.(*core.Blob)
	if !ok {
		return nil, fmt.Errorf("object %s is a %s, not a blob", hash.Short(), obj.Type())
	}
	return blob, nil
}
