package memory

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"

	"unleash/pkg/core"
	"unleash/pkg/storage"
	"unleash/pkg/types"
)

// Adapter 是进程内的 storage.Store，主要用于测试和一次性会话
// 与其他后端一样假定单写入者，不加锁
type Adapter struct {
	objects map[types.Hash][]byte
}

func NewAdapter() *Adapter {
	return &Adapter{objects: make(map[types.Hash][]byte)}
}

func (s *Adapter) Put(ctx context.Context, obj core.Object) error {
	if _, ok := s.objects[obj.ID()]; ok {
		return nil
	}
	s.objects[obj.ID()] = core.Encode(obj)
	return nil
}

func (s *Adapter) Get(ctx context.Context, hash types.Hash) (io.ReadCloser, error) {
	data, ok := s.objects[hash]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *Adapter) Has(ctx context.Context, hash types.Hash) (bool, error) {
	_, ok := s.objects[hash]
	return ok, nil
}

func (s *Adapter) ExpandHash(ctx context.Context, prefix types.HashPrefix) (types.Hash, error) {
	if len(prefix) < storage.MinPrefixLen {
		return "", storage.ErrPrefixTooShort
	}
	var found types.Hash
	for h := range s.objects {
		if !strings.HasPrefix(string(h), string(prefix)) {
			continue
		}
		if found != "" {
			return "", storage.ErrAmbiguousHash
		}
		found = h
	}
	if found == "" {
		return "", storage.ErrNotFound
	}
	return found, nil
}

// Hashes 返回所有对象 Hash (已排序)，测试中用来断言“写了什么”
func (s *Adapter) Hashes() []types.Hash {
	out := make([]types.Hash, 0, len(s.objects))
	for h := range s.objects {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len 返回对象数量
func (s *Adapter) Len() int { return len(s.objects) }
