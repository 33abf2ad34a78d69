package core

import (
	"crypto/sha1"
	"encoding/hex"
	"testing"
	"time"

	"unleash/pkg/types"

	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// 辅助工具
// -----------------------------------------------------------------------------

// mockHash 生成一个合法的 20 字节 Hex 字符串 (40 字符长度)
// 用于满足 Tree/Commit 对 Hex 格式的要求
func mockHash(input string) types.Hash {
	sum := sha1.Sum([]byte(input))
	return types.Hash(hex.EncodeToString(sum[:]))
}

// mustNewCommit 创建 Commit，如果失败直接终止测试
func mustNewCommit(t *testing.T, treeHash types.Hash, parents []types.Hash, msg string, msgAndArgs ...any) *Commit {
	t.Helper()
	when := time.Unix(1700000000, 0).In(time.FixedZone("", 3600))
	c, err := NewCommit(CommitData{
		Tree:       treeHash,
		Parents:    parents,
		Author:     "Tester <tester@example.com>",
		AuthorTime: when,
		Committer:  "Tester <tester@example.com>",
		CommitTime: when,
		Message:    msg,
	})
	require.NoError(t, err, msgAndArgs...)
	return c
}

func mustNewTree(t *testing.T, entries ...TreeEntry) *Tree {
	t.Helper()
	tr, err := NewTree(entries)
	require.NoError(t, err)
	return tr
}
