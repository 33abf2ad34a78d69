package malleable

import (
	"context"
	"fmt"

	"unleash/pkg/core"
	"unleash/pkg/types"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// plan 是一次 Save 的写入计划
type plan struct {
	// writes 按子节点在前的顺序排列，commit 不在其中
	writes []core.Object
	// external 是被引用但不在暂存区的对象，必须已在存储中
	external []types.Hash
}

// Save 持久化新 commit 及其可达的、存储中尚不存在的暂存对象，返回 commit Hash
// 任何写入之前先校验结构不变量；暂存区中不可达的对象被丢弃
func (m *MalleableCommit) Save(ctx context.Context) (types.Hash, error) {
	commit, err := m.Commit()
	if err != nil {
		return "", fmt.Errorf("build commit: %w", err)
	}

	// 1. 从根树出发收集可达对象
	p, err := m.collect(ctx, commit)
	if err != nil {
		return "", err
	}

	// 2. 并发检查存在性 (只读)
	probe := make([]types.Hash, 0, len(p.writes)+len(p.external))
	for _, obj := range p.writes {
		probe = append(probe, obj.ID())
	}
	probe = append(probe, p.external...)
	present, err := m.probe(ctx, probe)
	if err != nil {
		return "", err
	}

	// 3. 校验不变量：外部引用必须全部存在
	for _, h := range p.external {
		if !present[h] {
			return "", fmt.Errorf("%w: commit %s references missing object %s",
				ErrInvariantViolation, commit.ID().Short(), h)
		}
	}

	// 4. 顺序写入：子节点在前，commit 最后
	written := 0
	for _, obj := range p.writes {
		if present[obj.ID()] {
			continue
		}
		if err := m.store.Put(ctx, obj); err != nil {
			return "", fmt.Errorf("write %s %s: %w", obj.Type(), obj.ID().Short(), err)
		}
		written++
	}
	if err := m.store.Put(ctx, commit); err != nil {
		return "", fmt.Errorf("write commit %s: %w", commit.ID().Short(), err)
	}

	// 5. 已写入存储，暂存区可以清空
	chain := m.editor.Chain()
	dropped := len(chain.Staged) - len(p.writes)
	for h := range chain.Staged {
		delete(chain.Staged, h)
	}

	m.opts.log.Debug("saved commit",
		zap.String("commit", commit.ID().Short()),
		zap.String("tree", commit.Tree.Short()),
		zap.Int("written", written),
		zap.Int("dropped", dropped),
	)
	return commit.ID(), nil
}

// collect 深度优先遍历暂存对象，后序输出
func (m *MalleableCommit) collect(ctx context.Context, commit *core.Commit) (*plan, error) {
	staged := m.editor.Chain().Staged
	p := &plan{}
	seen := make(map[types.Hash]struct{})

	var visit func(h types.Hash, want core.ObjectType) error
	visit = func(h types.Hash, want core.ObjectType) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := seen[h]; ok {
			return nil
		}
		seen[h] = struct{}{}

		obj, ok := staged[h]
		if !ok {
			p.external = append(p.external, h)
			return nil
		}
		if obj.Type() != want {
			return fmt.Errorf("%w: %s is a %s, expected %s", ErrInvariantViolation, h.Short(), obj.Type(), want)
		}
		if tree, isTree := obj.(*core.Tree); isTree {
			for _, e := range tree.Entries() {
				switch {
				case e.IsDir():
					if err := visit(e.Hash, core.TypeTree); err != nil {
						return err
					}
				case core.IsFileMode(e.Mode):
					if err := visit(e.Hash, core.TypeBlob); err != nil {
						return err
					}
				case e.Mode == core.ModeSubmodule:
					// gitlink 指向其他仓库的 commit，不在本存储中
				default:
					return fmt.Errorf("%w: %s/%s has unsupported mode %o: %w",
						ErrInvariantViolation, h.Short(), e.Name, uint32(e.Mode), core.ErrUnsupportedEntry)
				}
			}
		}
		p.writes = append(p.writes, obj)
		return nil
	}

	if err := visit(commit.Tree, core.TypeTree); err != nil {
		return nil, err
	}
	for _, parent := range commit.Parents {
		if _, ok := seen[parent]; !ok {
			seen[parent] = struct{}{}
			p.external = append(p.external, parent)
		}
	}
	return p, nil
}

// probe 并发调用 store.Has，返回存在性表
func (m *MalleableCommit) probe(ctx context.Context, hashes []types.Hash) (map[types.Hash]bool, error) {
	results := make([]bool, len(hashes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.probes)
	for i, h := range hashes {
		g.Go(func() error {
			ok, err := m.store.Has(gctx, h)
			if err != nil {
				return fmt.Errorf("check %s: %w", h.Short(), err)
			}
			results[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	present := make(map[types.Hash]bool, len(hashes))
	for i, h := range hashes {
		present[h] = results[i]
	}
	return present, nil
}
