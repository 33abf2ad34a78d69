package refs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"unleash/pkg/core"
	"unleash/pkg/storage"
	"unleash/pkg/types"
)

var ErrAmbiguousReference = errors.New("ambiguous reference")

// probePrefixes 是短名展开的固定顺序 (空串表示名称本身)
var probePrefixes = []string{"", "refs/tags/", "refs/heads/", "refs/remotes/", "refs/"}

// Kind 区分候选项是对象本身还是引用
type Kind int

const (
	KindObject Kind = iota
	KindRef
)

func (k Kind) String() string {
	if k == KindObject {
		return "object"
	}
	return "ref"
}

// Candidate 是名称的一种解释
type Candidate struct {
	Kind     Kind
	FullName string
	// ID 是追踪完符号链后得到的对象；悬空引用为空
	ID types.Hash
	// Symbolic/Target 只描述一层，不继续追踪
	Symbolic bool
	Target   string
}

func (c Candidate) IsRef() bool    { return c.Kind == KindRef }
func (c Candidate) IsObject() bool { return c.Kind == KindObject }

// TagName 在候选项是 refs/tags/* 时返回标签名
func (c Candidate) TagName() (string, bool) {
	if c.Kind != KindRef {
		return "", false
	}
	return strings.CutPrefix(c.FullName, "refs/tags/")
}

// Object 读取候选项指向的对象
func (c Candidate) Object(ctx context.Context, store storage.Store) (core.Object, error) {
	if c.ID == "" {
		return nil, fmt.Errorf("%w: %s is dangling", ErrRefNotFound, c.FullName)
	}
	return storage.ReadObject(ctx, store, c.ID)
}

// Match 是解析结果的三态: NoMatch | OneMatch | ManyMatches
type Match interface {
	isMatch()
}

type NoMatch struct{}

type OneMatch struct {
	Candidate Candidate
}

type ManyMatches struct {
	Candidates []Candidate
}

func (NoMatch) isMatch()     {}
func (OneMatch) isMatch()    {}
func (ManyMatches) isMatch() {}

// AmbiguousError 在需要唯一候选却有多个时返回
type AmbiguousError struct {
	Name       string
	Candidates []Candidate
}

func (e *AmbiguousError) Error() string {
	names := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		names[i] = c.FullName
	}
	return fmt.Sprintf("ambiguous reference %q: %s", e.Name, strings.Join(names, ", "))
}

func (e *AmbiguousError) Unwrap() error { return ErrAmbiguousReference }

// ResolvedRef 是一次名称解析的结果，只持有 Hash 与名称
type ResolvedRef struct {
	Name       string
	Candidates []Candidate

	objects storage.Store
}

// Resolve 枚举 name 的全部解释，不做任何猜测
func Resolve(ctx context.Context, objects storage.Store, refStore Store, name string) (*ResolvedRef, error) {
	rr := &ResolvedRef{Name: name, objects: objects}

	// 1. 名称本身就是对象 (完整 Hash，或可唯一展开的短 Hash)
	if obj, err := probeObject(ctx, objects, name); err != nil {
		return nil, err
	} else if obj != "" {
		rr.Candidates = append(rr.Candidates, Candidate{Kind: KindObject, FullName: string(obj), ID: obj})
	}

	// 2. 按固定顺序探测引用
	seen := make(map[string]struct{})
	for _, prefix := range probePrefixes {
		full := prefix + name
		if _, dup := seen[full]; dup {
			continue
		}
		seen[full] = struct{}{}
		if ValidateName(full) != nil {
			continue
		}

		ref, err := refStore.Get(ctx, full)
		if errors.Is(err, ErrRefNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", full, err)
		}

		c := Candidate{Kind: KindRef, FullName: full, Symbolic: ref.IsSymbolic(), Target: ref.Target, ID: ref.Hash}
		if c.Symbolic {
			id, err := Follow(ctx, refStore, ref.Target)
			if err != nil && !errors.Is(err, ErrRefNotFound) {
				return nil, fmt.Errorf("resolve %s: %w", full, err)
			}
			c.ID = id
		}
		rr.Candidates = append(rr.Candidates, c)
	}
	return rr, nil
}

func probeObject(ctx context.Context, objects storage.Store, name string) (types.Hash, error) {
	if objects == nil || len(name) < storage.MinPrefixLen || !types.HashPrefix(name).IsHex() {
		return "", nil
	}
	h, err := storage.ExpandHash(ctx, objects, types.HashPrefix(name))
	switch {
	case err == nil:
		return h, nil
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrAmbiguousHash):
		return "", nil
	case types.Hash(name).IsValid():
		return "", err
	default:
		// 后端不支持前缀展开时，短 Hash 只当作引用名
		return "", nil
	}
}

// Match 返回三态结果
func (r *ResolvedRef) Match() Match {
	switch len(r.Candidates) {
	case 0:
		return NoMatch{}
	case 1:
		return OneMatch{Candidate: r.Candidates[0]}
	default:
		return ManyMatches{Candidates: append([]Candidate(nil), r.Candidates...)}
	}
}

// Found 至少有一个候选
func (r *ResolvedRef) Found() bool { return len(r.Candidates) > 0 }

// IsDefinite 候选数 <= 1
func (r *ResolvedRef) IsDefinite() bool { return len(r.Candidates) < 2 }

// Single 返回唯一候选；无匹配返回 ErrRefNotFound，多个返回 *AmbiguousError
func (r *ResolvedRef) Single() (Candidate, error) {
	switch m := r.Match().(type) {
	case OneMatch:
		return m.Candidate, nil
	case ManyMatches:
		return Candidate{}, &AmbiguousError{Name: r.Name, Candidates: m.Candidates}
	default:
		return Candidate{}, fmt.Errorf("%w: %s", ErrRefNotFound, r.Name)
	}
}

// Commit 要求唯一候选，并把附注标签剥离到 commit
func (r *ResolvedRef) Commit(ctx context.Context) (types.Hash, error) {
	c, err := r.Single()
	if err != nil {
		return "", err
	}
	obj, err := c.Object(ctx, r.objects)
	if err != nil {
		return "", err
	}
	for i := 0; i <= MaxSymrefDepth; i++ {
		switch o := obj.(type) {
		case *core.Commit:
			return o.ID(), nil
		case *core.Tag:
			if obj, err = storage.ReadObject(ctx, r.objects, o.Object); err != nil {
				return "", fmt.Errorf("peel tag %s: %w", o.Name, err)
			}
		default:
			return "", fmt.Errorf("%s resolves to a %s, not a commit", r.Name, obj.Type())
		}
	}
	return "", fmt.Errorf("%s: tag chain too deep", r.Name)
}
