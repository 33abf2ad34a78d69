package meta

import (
	"context"
	"errors"
	"fmt"

	"unleash/pkg/refs"
	"unleash/pkg/types"
)

// RefStore 把 Repository 适配为 refs.Store
// 每次写入都先读版本号再做 CAS，并发写入者会得到 ErrConcurrentUpdate
type RefStore struct {
	repo *Repository
}

var _ refs.Store = (*RefStore)(nil)

func NewRefStore(repo *Repository) *RefStore {
	return &RefStore{repo: repo}
}

func (s *RefStore) Get(ctx context.Context, name string) (refs.Ref, error) {
	row, err := s.repo.GetRef(ctx, name)
	if err != nil {
		return refs.Ref{}, err
	}
	return refs.Ref{Name: row.Name, Hash: types.Hash(row.CommitHash), Target: row.Target}, nil
}

func (s *RefStore) Set(ctx context.Context, name string, hash types.Hash) error {
	if err := refs.ValidateName(name); err != nil {
		return err
	}
	if !hash.IsValid() {
		return fmt.Errorf("ref %s: invalid object id %q", name, hash)
	}
	ver, err := s.version(ctx, name)
	if err != nil {
		return err
	}
	return s.repo.UpdateRef(ctx, name, hash, ver)
}

func (s *RefStore) SetSymbolic(ctx context.Context, name, target string) error {
	if err := refs.ValidateName(name); err != nil {
		return err
	}
	if err := refs.ValidateName(target); err != nil {
		return err
	}
	ver, err := s.version(ctx, name)
	if err != nil {
		return err
	}
	return s.repo.UpdateSymbolicRef(ctx, name, target, ver)
}

func (s *RefStore) List(ctx context.Context) ([]string, error) {
	return s.repo.ListRefs(ctx)
}

func (s *RefStore) version(ctx context.Context, name string) (int64, error) {
	row, err := s.repo.GetRef(ctx, name)
	if errors.Is(err, refs.ErrRefNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return row.Version, nil
}
