package refs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"unleash/pkg/types"
)

const (
	Head          = "HEAD"
	BranchPrefix  = "refs/heads/"
	DefaultBranch = "master"
)

var ErrNoHead = errors.New("HEAD not found (clean repo)")

// Manager 负责管理 HEAD 以及它指向的分支
type Manager struct {
	store Store
}

func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Store 返回底层引用存储
func (m *Manager) Store() Store { return m.store }

// Init 让 HEAD 以符号引用指向 branch (HEAD 已存在时不做任何事)
func (m *Manager) Init(ctx context.Context, branch string) error {
	_, err := m.store.Get(ctx, Head)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrRefNotFound) {
		return err
	}
	return m.store.SetSymbolic(ctx, Head, BranchRef(branch))
}

// GetHead 读取当前的 Commit Hash
// 如果是新仓库（没提交过），返回 ErrNoHead
func (m *Manager) GetHead(ctx context.Context) (types.Hash, error) {
	h, err := Follow(ctx, m.store, Head)
	if errors.Is(err, ErrRefNotFound) {
		return "", ErrNoHead
	}
	if err != nil {
		return "", fmt.Errorf("failed to read HEAD: %w", err)
	}
	return h, nil
}

// HeadTarget 返回 HEAD 指向的引用名；分离头指针时返回空串
func (m *Manager) HeadTarget(ctx context.Context) (string, error) {
	ref, err := m.store.Get(ctx, Head)
	if errors.Is(err, ErrRefNotFound) {
		return "", ErrNoHead
	}
	if err != nil {
		return "", err
	}
	return ref.Target, nil
}

// PointsAt 判断 HEAD 是否 (符号地) 指向 branch
// branch 可以是短名 "master" 或全名 "refs/heads/master"
func (m *Manager) PointsAt(ctx context.Context, branch string) (bool, error) {
	target, err := m.HeadTarget(ctx)
	if errors.Is(err, ErrNoHead) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return target != "" && target == BranchRef(branch), nil
}

// UpdateHead 移动 HEAD 最终指向的分支；分离头指针时直接更新 HEAD
func (m *Manager) UpdateHead(ctx context.Context, commitHash types.Hash) error {
	name, err := FinalName(ctx, m.store, Head)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, name, commitHash)
}

// BranchRef 把短分支名补全为 refs/heads/<name>
func BranchRef(branch string) string {
	if strings.HasPrefix(branch, "refs/") {
		return branch
	}
	return BranchPrefix + branch
}
