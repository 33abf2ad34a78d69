package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"unleash/pkg/core"
	"unleash/pkg/types"
)

var (
	ErrNotFound       = errors.New("object not found")
	ErrAmbiguousHash  = errors.New("ambiguous hash prefix")
	ErrPrefixTooShort = errors.New("hash prefix too short")
)

// MinPrefixLen 是 ExpandHash 接受的最短前缀
const MinPrefixLen = 4

// Store defines the interface for a storage backend.
// Implementations can be local disk, cloud storage, or in-memory storage.
// 存储是只增不删的 (append-only)，并假定只有一个写入者。
type Store interface {
	// Put 将一个核心对象持久化
	// 它不需要返回 Hash，因为 Hash 已经在 core.Object 里了
	Put(ctx context.Context, obj core.Object) error

	// Get 根据 Hash 读取对象的规范字节 ("type len\0content")
	// 不存在时返回 ErrNotFound
	Get(ctx context.Context, hash types.Hash) (io.ReadCloser, error)

	// Has 检查对象是否存在 (用于去重逻辑)
	Has(ctx context.Context, hash types.Hash) (bool, error)
}

// Expander 是可选能力：把短哈希扩展为完整哈希
type Expander interface {
	ExpandHash(ctx context.Context, prefix types.HashPrefix) (types.Hash, error)
}

// ReadObject 读取并解码一个对象
func ReadObject(ctx context.Context, s Store, hash types.Hash) (core.Object, error) {
	rc, err := s.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", hash, err)
	}
	obj, err := core.DecodeObject(data)
	if err != nil {
		return nil, fmt.Errorf("decode object %s: %w", hash, err)
	}
	// 防御：内容与地址不符说明存储已损坏
	if obj.ID() != hash {
		return nil, fmt.Errorf("object %s: content hashes to %s", hash, obj.ID())
	}
	return obj, nil
}

// ExpandHash 在 store 支持时扩展短哈希；完整哈希直接校验存在性
func ExpandHash(ctx context.Context, s Store, prefix types.HashPrefix) (types.Hash, error) {
	if h := types.Hash(prefix); h.IsValid() {
		ok, err := s.Has(ctx, h)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", ErrNotFound
		}
		return h, nil
	}
	if len(prefix) < MinPrefixLen {
		return "", ErrPrefixTooShort
	}
	exp, ok := s.(Expander)
	if !ok {
		return "", fmt.Errorf("store %T cannot expand hash prefixes", s)
	}
	return exp.ExpandHash(ctx, prefix)
}
