package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"unleash/pkg/core"
	"unleash/pkg/refs"
	"unleash/pkg/types"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrRefNotFound 同时匹配 refs.ErrRefNotFound
	ErrRefNotFound      = fmt.Errorf("sql: %w", refs.ErrRefNotFound)
	ErrConcurrentUpdate = errors.New("concurrent update detected (CAS failed)")
	ErrCommitNotFound   = errors.New("commit not found in metadata")
)

// Repository 封装所有对 SQL 数据库的操作
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// -----------------------------------------------------------------------------
// 1. 引用管理 (Refs / Branches)
// -----------------------------------------------------------------------------

// GetRef 获取引用的当前记录 (含版本号)
func (r *Repository) GetRef(ctx context.Context, name string) (*Ref, error) {
	var ref Ref
	err := r.db.GetConn().WithContext(ctx).
		Where("name = ?", name).
		First(&ref).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRefNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// UpdateRef 原子更新直接引用 (CAS - Compare And Swap)
// oldVersion: 之前读到的版本号，0 表示创建
func (r *Repository) UpdateRef(ctx context.Context, name string, newHash types.Hash, oldVersion int64) error {
	return r.casRef(ctx, name, string(newHash), "", oldVersion)
}

// UpdateSymbolicRef 原子地把 name 设为指向 target 的符号引用
func (r *Repository) UpdateSymbolicRef(ctx context.Context, name, target string, oldVersion int64) error {
	return r.casRef(ctx, name, "", target, oldVersion)
}

func (r *Repository) casRef(ctx context.Context, name, hash, target string, oldVersion int64) error {
	return r.db.GetConn().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 场景 A: 第一次创建 (Create)
		if oldVersion == 0 {
			ref := Ref{
				Name:       name,
				CommitHash: hash,
				Target:     target,
				Version:    1,
			}
			if err := tx.Create(&ref).Error; err != nil {
				// 兼容性: 处理不同数据库 (PG 与 SQLite) 的唯一约束错误
				if errors.Is(err, gorm.ErrDuplicatedKey) ||
					strings.Contains(err.Error(), "UNIQUE constraint failed") {
					return ErrConcurrentUpdate
				}
				return fmt.Errorf("failed to create ref: %w", err)
			}
			return nil
		}

		// 场景 B: 更新现有引用 (Update with CAS)
		// SQL: UPDATE refs SET ... , version = version + 1 WHERE name = ? AND version = ?
		result := tx.Model(&Ref{}).
			Where("name = ? AND version = ?", name, oldVersion).
			Updates(map[string]any{
				"commit_hash": hash,
				"target":      target,
				"version":     gorm.Expr("version + 1"),
				"updated_at":  time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}

		// 影响行数为 0，说明 version 不匹配 (被人抢先改了)
		if result.RowsAffected == 0 {
			return ErrConcurrentUpdate
		}
		return nil
	})
}

// ListRefs 返回全部引用名 (按名称排序)
func (r *Repository) ListRefs(ctx context.Context) ([]string, error) {
	var names []string
	err := r.db.GetConn().WithContext(ctx).
		Model(&Ref{}).
		Order("name").
		Pluck("name", &names).Error
	return names, err
}

// -----------------------------------------------------------------------------
// 2. 提交索引 (Commit Indexing)
// -----------------------------------------------------------------------------

type commitMeta struct {
	Encoding   string            `json:"encoding"`
	AuthorTime int64             `json:"author_time"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// IndexCommit 将 core.Commit 对象“投影”到 SQL 数据库中 (幂等)
func (r *Repository) IndexCommit(ctx context.Context, c *core.Commit) error {
	parents := c.Parents
	if parents == nil {
		parents = []types.Hash{}
	}
	parentsJSON, err := json.Marshal(parents)
	if err != nil {
		return fmt.Errorf("failed to marshal parents: %w", err)
	}

	m := commitMeta{Encoding: c.EncodingName(), AuthorTime: c.AuthorTime.Unix()}
	if len(c.Extra) > 0 {
		m.Extra = make(map[string]string, len(c.Extra))
		for _, h := range c.Extra {
			m.Extra[h.Key] = h.Value
		}
	}
	metaJSON, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal meta: %w", err)
	}

	model := CommitModel{
		Hash:      string(c.ID()),
		Author:    c.Author,
		Committer: c.Committer,
		Message:   c.Message,
		Timestamp: c.CommitTime.Unix(),
		TreeHash:  string(c.Tree),
		Parents:   datatypes.JSON(parentsJSON),
		Meta:      datatypes.JSON(metaJSON),
		CreatedAt: c.CommitTime,
	}

	// 如果 Hash 已存在，则什么都不做 (Do Nothing)
	err = r.db.GetConn().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "hash"}},
			DoNothing: true,
		}).
		Create(&model).Error
	if err != nil {
		return fmt.Errorf("failed to index commit: %w", err)
	}
	return nil
}

func (r *Repository) GetCommit(ctx context.Context, hash types.Hash) (*CommitModel, error) {
	var commit CommitModel
	err := r.db.GetConn().WithContext(ctx).
		Where("hash = ?", string(hash)).
		First(&commit).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCommitNotFound
	}
	if err != nil {
		return nil, err
	}
	return &commit, nil
}

// FindCommitsByAuthor 按作者查询，最新的在前；limit <= 0 表示不限
func (r *Repository) FindCommitsByAuthor(ctx context.Context, author string, limit int) ([]CommitModel, error) {
	if limit <= 0 {
		limit = -1
	}
	var commits []CommitModel
	err := r.db.GetConn().WithContext(ctx).
		Where("author = ?", author).
		Order("timestamp DESC").
		Limit(limit).
		Find(&commits).Error
	return commits, err
}
