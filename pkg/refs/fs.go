package refs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"unleash/pkg/types"
)

const symrefPrefix = "ref: "

// FSStore 按 Git 的布局在磁盘上保存引用:
// <root>/HEAD, <root>/refs/heads/..., 以及只读的 <root>/packed-refs
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(filepath.Join(root, "refs"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create refs dir: %w", err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

func (s *FSStore) Get(ctx context.Context, name string) (Ref, error) {
	if err := ValidateName(name); err != nil {
		return Ref{}, err
	}

	data, err := os.ReadFile(s.path(name))
	switch {
	case err == nil:
		return parseLoose(name, data)
	case errors.Is(err, os.ErrNotExist), isDirErr(s.path(name)):
		// 回退到 packed-refs
	default:
		return Ref{}, fmt.Errorf("failed to read ref %s: %w", name, err)
	}

	packed, err := s.readPacked()
	if err != nil {
		return Ref{}, err
	}
	if h, ok := packed[name]; ok {
		return Ref{Name: name, Hash: h}, nil
	}
	return Ref{}, fmt.Errorf("%w: %s", ErrRefNotFound, name)
}

func (s *FSStore) Set(ctx context.Context, name string, hash types.Hash) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if !hash.IsValid() {
		return fmt.Errorf("ref %s: invalid object id %q", name, hash)
	}
	return s.write(name, string(hash)+"\n")
}

func (s *FSStore) SetSymbolic(ctx context.Context, name, target string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := ValidateName(target); err != nil {
		return err
	}
	return s.write(name, symrefPrefix+target+"\n")
}

func (s *FSStore) List(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})

	for _, top := range []string{"HEAD", "ORIG_HEAD", "FETCH_HEAD"} {
		if fi, err := os.Stat(s.path(top)); err == nil && fi.Mode().IsRegular() {
			seen[top] = struct{}{}
		}
	}

	refsDir := filepath.Join(s.root, "refs")
	err := filepath.WalkDir(refsDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(d.Name(), ".lock") || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		seen[filepath.ToSlash(rel)] = struct{}{}
		return nil
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to list refs: %w", err)
	}

	packed, err := s.readPacked()
	if err != nil {
		return nil, err
	}
	for name := range packed {
		seen[name] = struct{}{}
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// write 原子写入：临时文件 + Rename
func (s *FSStore) write(name, content string) error {
	target := s.path(name)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create dir for ref %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-ref-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // Rename 成功后这里会静默失败

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write ref %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("failed to update ref %s: %w", name, err)
	}
	return nil
}

// readPacked 解析 packed-refs；"^" 开头的 peeled 行被忽略
func (s *FSStore) readPacked() (map[string]types.Hash, error) {
	f, err := os.Open(filepath.Join(s.root, "packed-refs"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open packed-refs: %w", err)
	}
	defer f.Close()

	out := make(map[string]types.Hash)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || line[0] == '#' || line[0] == '^' {
			continue
		}
		hash, name, ok := strings.Cut(line, " ")
		if !ok || !types.Hash(hash).IsValid() {
			return nil, fmt.Errorf("malformed packed-refs line %q", line)
		}
		out[name] = types.Hash(hash)
	}
	return out, sc.Err()
}

func parseLoose(name string, data []byte) (Ref, error) {
	content := strings.TrimSpace(string(data))
	if target, ok := strings.CutPrefix(content, symrefPrefix); ok {
		return Ref{Name: name, Target: strings.TrimSpace(target)}, nil
	}
	h := types.Hash(content)
	if !h.IsValid() {
		return Ref{}, fmt.Errorf("ref %s: malformed content %q", name, content)
	}
	return Ref{Name: name, Hash: h}, nil
}

func isDirErr(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}
