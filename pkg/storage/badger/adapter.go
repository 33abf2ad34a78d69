package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"unleash/pkg/core"
	"unleash/pkg/storage"
	"unleash/pkg/types"

	"github.com/dgraph-io/badger/v4"
)

const keyPrefix = "obj:"

// Adapter 把对象的规范字节存进 Badger KV，key 为 "obj:<hash>"
type Adapter struct {
	db *badger.DB
}

// Open 在 path 下打开 (或创建) 一个 Badger 数据库
// path 为空时使用纯内存模式
func Open(path string) (*Adapter, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return &Adapter{db: db}, nil
}

// NewAdapter 包装一个已打开的 DB，生命周期由调用方管理
func NewAdapter(db *badger.DB) *Adapter {
	return &Adapter{db: db}
}

func makeKey(hash types.Hash) []byte {
	return []byte(keyPrefix + string(hash))
}

func (s *Adapter) Put(ctx context.Context, obj core.Object) error {
	key := makeKey(obj.ID())
	return s.db.Update(func(txn *badger.Txn) error {
		// 已存在则跳过 (内容寻址，覆盖没有意义)
		_, err := txn.Get(key)
		if err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, core.Encode(obj))
	})
}

func (s *Adapter) Get(ctx context.Context, hash types.Hash) (io.ReadCloser, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(makeKey(hash))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get %s: %w", hash, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *Adapter) Has(ctx context.Context, hash types.Hash) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(makeKey(hash))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ExpandHash 利用有序 key 做前缀扫描，最多看两个 key
func (s *Adapter) ExpandHash(ctx context.Context, prefix types.HashPrefix) (types.Hash, error) {
	if len(prefix) < storage.MinPrefixLen {
		return "", storage.ErrPrefixTooShort
	}
	var matches []types.Hash
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(keyPrefix + string(prefix))
		for it.Seek(p); it.ValidForPrefix(p) && len(matches) < 2; it.Next() {
			matches = append(matches, types.Hash(strings.TrimPrefix(string(it.Item().Key()), keyPrefix)))
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("badger scan: %w", err)
	}

	switch len(matches) {
	case 0:
		return "", storage.ErrNotFound
	case 1:
		return matches[0], nil
	default:
		return "", storage.ErrAmbiguousHash
	}
}

// Close 关闭底层 DB
func (s *Adapter) Close() error {
	return s.db.Close()
}
