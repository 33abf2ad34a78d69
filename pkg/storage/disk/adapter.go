package disk

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"unleash/pkg/core"
	"unleash/pkg/storage"
	"unleash/pkg/types"

	"github.com/klauspost/compress/zlib"
)

// Adapter 实现了 storage.Store 接口
// 布局与 Git 的 loose object 完全一致: objects/ab/cdef...，内容为 zlib("type len\0content")
// 因此可以直接指向一个真实仓库的 .git/objects (只读 loose 对象，不读 pack)
type Adapter struct {
	rootPath string // 比如: /home/user/project/.git/objects
}

// NewAdapter 创建一个新的磁盘存储适配器
func NewAdapter(root string) (*Adapter, error) {
	// 确保根目录存在
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root storage dir: %w", err)
	}
	return &Adapter{rootPath: root}, nil
}

// layout 返回哈希对应的物理路径
// 策略：使用前 2 个字符作为子目录 (Sharding)
// Example: hash "aabbcc..." -> root/aa/bbcc...
func (s *Adapter) layout(hash types.Hash) string {
	h := string(hash)
	if len(h) < 2 {
		return filepath.Join(s.rootPath, h)
	}
	return filepath.Join(s.rootPath, h[:2], h[2:])
}

func (s *Adapter) Put(ctx context.Context, obj core.Object) error {
	targetPath := s.layout(obj.ID())

	// 1. 检查是否存在 (幂等性)
	if _, err := os.Stat(targetPath); err == nil {
		return nil // 已经存在，直接跳过 (CAS 的好处)
	}

	// 2. 准备目录
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// 3. 压缩
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(core.Encode(obj)); err != nil {
		return fmt.Errorf("compress %s: %w", obj.ID(), err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compress %s: %w", obj.ID(), err)
	}

	// 4. 原子写入 (Atomic Write)
	// 先写到一个临时文件，然后 Rename。
	// 这样保证要么文件不存在，要么文件是完整的。
	tempFile, err := os.CreateTemp(dir, "tmp_obj_*")
	if err != nil {
		return err
	}
	defer os.Remove(tempFile.Name())

	if _, err := tempFile.Write(buf.Bytes()); err != nil {
		tempFile.Close()
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}

	// Git 的 loose object 是只读的
	if err := os.Chmod(tempFile.Name(), 0444); err != nil {
		return err
	}
	return os.Rename(tempFile.Name(), targetPath)
}

// zlibFile 同时关闭解压流和底层文件
type zlibFile struct {
	io.ReadCloser
	f *os.File
}

func (z *zlibFile) Close() error {
	err := z.ReadCloser.Close()
	if cerr := z.f.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *Adapter) Get(ctx context.Context, hash types.Hash) (io.ReadCloser, error) {
	f, err := os.Open(s.layout(hash))
	if os.IsNotExist(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	zr, err := zlib.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("object %s: corrupt zlib stream: %w", hash, err)
	}
	return &zlibFile{ReadCloser: zr, f: f}, nil
}

func (s *Adapter) Has(ctx context.Context, hash types.Hash) (bool, error) {
	_, err := os.Stat(s.layout(hash))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// ExpandHash 扫描分片目录，把短哈希扩展为唯一的完整哈希
func (s *Adapter) ExpandHash(ctx context.Context, prefix types.HashPrefix) (types.Hash, error) {
	p := string(prefix)
	if len(p) < storage.MinPrefixLen {
		return "", storage.ErrPrefixTooShort
	}

	entries, err := os.ReadDir(filepath.Join(s.rootPath, p[:2]))
	if os.IsNotExist(err) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", err
	}

	var found types.Hash
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), p[2:]) {
			continue
		}
		h := types.Hash(p[:2] + e.Name())
		if !h.IsValid() {
			continue // 跳过临时文件
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
