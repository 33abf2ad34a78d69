package meta

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"testing"
	"time"

	"unleash/pkg/core"
	"unleash/pkg/types"

	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// 通用辅助函数 (Helpers)
// -----------------------------------------------------------------------------

// mockHash 生成合法的测试用 Hash
func mockHash(input string) types.Hash {
	sum := sha1.Sum([]byte(input))
	return types.Hash(hex.EncodeToString(sum[:]))
}

// mustNewCommit 创建 Commit，如果失败直接终止测试
func mustNewCommit(t *testing.T, treeHash types.Hash, parents []types.Hash, author string, ts int64, msg string, msgAndArgs ...any) *core.Commit {
	t.Helper()
	when := time.Unix(ts, 0).UTC()
	c, err := core.NewCommit(core.CommitData{
		Tree:       treeHash,
		Parents:    parents,
		Author:     author,
		AuthorTime: when,
		Committer:  author,
		CommitTime: when,
		Message:    msg,
	})
	require.NoError(t, err, msgAndArgs...)
	return c
}

// mustIndexCommit 强制索引 Commit，失败则终止
func mustIndexCommit(t *testing.T, repo *Repository, c *core.Commit, msgAndArgs ...any) {
	t.Helper()
	require.NoError(t, repo.IndexCommit(context.Background(), c), msgAndArgs...)
}

// mustUpdateRef 强制更新引用，失败则终止
func mustUpdateRef(t *testing.T, repo *Repository, name string, newHash types.Hash, oldVersion int64, msgAndArgs ...any) {
	t.Helper()
	require.NoError(t, repo.UpdateRef(context.Background(), name, newHash, oldVersion), msgAndArgs...)
}
