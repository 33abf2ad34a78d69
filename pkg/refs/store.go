package refs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"unleash/pkg/types"
)

var (
	ErrRefNotFound = errors.New("reference not found")
	ErrInvalidName = errors.New("invalid reference name")
	ErrSymrefLoop  = errors.New("symbolic reference chain too deep")
)

// MaxSymrefDepth 与 Git 的限制保持一致
const MaxSymrefDepth = 5

// Ref 是一个命名指针；Target 非空时表示符号引用 (Hash 为空)
type Ref struct {
	Name   string
	Hash   types.Hash
	Target string
}

func (r Ref) IsSymbolic() bool { return r.Target != "" }

// Store 是引用存储的抽象 (文件系统、SQL ...)
type Store interface {
	// Get 读取一层引用，不追踪符号链接；不存在时返回 ErrRefNotFound
	Get(ctx context.Context, name string) (Ref, error)
	Set(ctx context.Context, name string, hash types.Hash) error
	SetSymbolic(ctx context.Context, name, target string) error
	// List 返回所有引用名 (已排序)
	List(ctx context.Context) ([]string, error)
}

// Follow 沿符号引用链追踪到最终的对象 Hash
func Follow(ctx context.Context, s Store, name string) (types.Hash, error) {
	cur := name
	for i := 0; i <= MaxSymrefDepth; i++ {
		ref, err := s.Get(ctx, cur)
		if err != nil {
			return "", err
		}
		if !ref.IsSymbolic() {
			return ref.Hash, nil
		}
		cur = ref.Target
	}
	return "", fmt.Errorf("%w: %s", ErrSymrefLoop, name)
}

// FinalName 返回符号链最终落到的引用名 (可能尚不存在)
func FinalName(ctx context.Context, s Store, name string) (string, error) {
	cur := name
	for i := 0; i <= MaxSymrefDepth; i++ {
		ref, err := s.Get(ctx, cur)
		if errors.Is(err, ErrRefNotFound) {
			return cur, nil
		}
		if err != nil {
			return "", err
		}
		if !ref.IsSymbolic() {
			return cur, nil
		}
		cur = ref.Target
	}
	return "", fmt.Errorf("%w: %s", ErrSymrefLoop, name)
}

// ValidateName 检查引用名 (Git check-ref-format 的子集)
func ValidateName(name string) error {
	if name == "" || strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") ||
		strings.HasSuffix(name, ".lock") || strings.HasSuffix(name, ".") ||
		strings.Contains(name, "..") || strings.Contains(name, "//") || strings.Contains(name, "@{") ||
		strings.ContainsAny(name, " ~^:?*[\\\x00\x7f") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for _, seg := range strings.Split(name, "/") {
		if strings.HasPrefix(seg, ".") {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	for _, c := range name {
		if c < 0x20 {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return nil
}
