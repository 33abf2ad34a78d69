package core

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"unleash/pkg/types"

	"github.com/go-git/go-git/v5/plumbing/filemode"
)

// TreeEntry 是 tree 中的一条记录: name -> (mode, hash)
type TreeEntry struct {
	Name string
	Mode filemode.FileMode
	Hash types.Hash
}

// IsDir 判断条目是否为子目录
func (e TreeEntry) IsDir() bool { return e.Mode == ModeDir }

// sortKey 按 Git 规则排序: 目录名比较时视为带 "/" 后缀
func (e TreeEntry) sortKey() string {
	if e.IsDir() {
		return e.Name + "/"
	}
	return e.Name
}

// Tree 是不可变的目录对象，条目按 Git 顺序排列
// 条目只能通过 Entries (副本) 或 Get 读取
type Tree struct {
	hash     types.Hash
	rawBytes []byte
	entries  []TreeEntry
}

// NewTree 创建一个新的目录树节点
// entries 会被复制并排序；重名或非法名称返回错误
func NewTree(entries []TreeEntry) (*Tree, error) {
	sorted := make([]TreeEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].sortKey() < sorted[j].sortKey()
	})

	seen := make(map[string]struct{}, len(sorted))
	var buf bytes.Buffer
	for _, e := range sorted {
		if err := ValidEntryName(e.Name); err != nil {
			return nil, err
		}
		if _, dup := seen[e.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate entry %q", ErrMalformedObject, e.Name)
		}
		seen[e.Name] = struct{}{}

		raw, err := e.Hash.Raw()
		if err != nil || len(raw) != types.HashSize {
			return nil, fmt.Errorf("%w: entry %q has invalid hash %q", ErrMalformedObject, e.Name, e.Hash)
		}
		// 格式: <mode> <name>\0<20 字节原始哈希>
		fmt.Fprintf(&buf, "%s %s\x00", FormatMode(e.Mode), e.Name)
		buf.Write(raw)
	}

	data := buf.Bytes()
	return &Tree{
		hash:     HashObject(TypeTree, data),
		rawBytes: data,
		entries:  sorted,
	}, nil
}

// EmptyTree 返回空目录树 (Git 中的 4b825dc...)
func EmptyTree() *Tree {
	t, _ := NewTree(nil)
	return t
}

// ValidEntryName 检查条目名是否是单个合法路径段
func ValidEntryName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\x00") {
		return fmt.Errorf("%w: invalid entry name %q", ErrMalformedObject, name)
	}
	return nil
}

// Entries 返回条目的副本，按 Git 顺序
func (t *Tree) Entries() []TreeEntry {
	out := make([]TreeEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len 返回条目数
func (t *Tree) Len() int { return len(t.entries) }

// Get 按名称查找条目
func (t *Tree) Get(name string) (TreeEntry, bool) {
	for _, e := range t.entries {
		if e.Name == name {
			return e, true
		}
	}
	return TreeEntry{}, false
}

// With 返回插入/覆盖一个条目后的新 Tree，原 Tree 不变
func (t *Tree) With(entry TreeEntry) (*Tree, error) {
	next := make([]TreeEntry, 0, len(t.entries)+1)
	for _, e := range t.entries {
		if e.Name != entry.Name {
			next = append(next, e)
		}
	}
	next = append(next, entry)
	return NewTree(next)
}

// Without 返回删除一个条目后的新 Tree，条目不存在时返回自身
func (t *Tree) Without(name string) (*Tree, error) {
	if _, ok := t.Get(name); !ok {
		return t, nil
	}
	next := make([]TreeEntry, 0, len(t.entries))
	for _, e := range t.entries {
		if e.Name != name {
			next = append(next, e)
		}
	}
	return NewTree(next)
}

func (t *Tree) Type() ObjectType { return TypeTree }
func (t *Tree) ID() types.Hash   { return t.hash }
func (t *Tree) Bytes() []byte    { return bytes.Clone(t.rawBytes) }

func parseTree(content []byte) (*Tree, error) {
	var entries []TreeEntry
	seen := make(map[string]struct{})
	rest := content
	for len(rest) > 0 {
		sp := bytes.IndexByte(rest, ' ')
		if sp < 0 {
			return nil, fmt.Errorf("%w: tree entry without mode", ErrMalformedObject)
		}
		mode, err := ParseMode(string(rest[:sp]))
		if err != nil {
			return nil, err
		}
		rest = rest[sp+1:]

		nul := bytes.IndexByte(rest, 0)
		if nul < 0 || len(rest) < nul+1+types.HashSize {
			return nil, fmt.Errorf("%w: truncated tree entry", ErrMalformedObject)
		}
		name := string(rest[:nul])
		if err := ValidEntryName(name); err != nil {
			return nil, err
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: duplicate entry %q", ErrMalformedObject, name)
		}
		seen[name] = struct{}{}
		hash := types.HashFromRaw(rest[nul+1 : nul+1+types.HashSize])
		rest = rest[nul+1+types.HashSize:]

		entries = append(entries, TreeEntry{Name: name, Mode: mode, Hash: hash})
	}

	// 读到的 tree 保留原始字节，哈希与存储完全一致
	data := make([]byte, len(content))
	copy(data, content)
	return &Tree{
		hash:     HashObject(TypeTree, data),
		rawBytes: data,
		entries:  entries,
	}, nil
}
