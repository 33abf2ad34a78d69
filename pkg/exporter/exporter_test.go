package exporter

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"unleash/pkg/core"
	"unleash/pkg/lookup"
	"unleash/pkg/storage/memory"
	"unleash/pkg/treebuilder"
	"unleash/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTree 用编辑器构造一棵树，返回查找链与根 Hash
func buildTree(t *testing.T, files map[string]string, modes map[string]core.TreeEntry) (*lookup.Chain, types.Hash) {
	t.Helper()
	ctx := context.Background()
	ed := treebuilder.NewEditor(lookup.NewChain(nil, 0), "")
	for p, content := range files {
		_, err := ed.SetData(ctx, p, []byte(content), core.ModeRegular)
		require.NoError(t, err)
	}
	for p, e := range modes {
		require.NoError(t, ed.Set(ctx, p, e.Hash, e.Mode))
	}
	return ed.Chain(), ed.Root()
}

func TestExportTree_Completeness(t *testing.T) {
	ctx := context.Background()
	chain, root := buildTree(t, map[string]string{
		"sub/dir/dest.txt": "baz",
		"top.txt":          "top",
	}, nil)

	// 额外加一个可执行文件和一个符号链接
	ed := treebuilder.NewEditor(chain, root)
	_, err := ed.SetData(ctx, "bin/run", []byte("#!/bin/sh\n"), core.ModeExecutable)
	require.NoError(t, err)
	_, err = ed.SetData(ctx, "link", []byte("top.txt"), core.ModeSymlink)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "export")
	var restored []string
	err = ExportTree(ctx, chain, ed.Root(), out, WithCallback(func(path string, _ core.TreeEntry) {
		restored = append(restored, path)
	}))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(out, "sub/dir/dest.txt"))
	require.NoError(t, err)
	assert.Equal(t, "baz", string(data))

	fi, err := os.Stat(filepath.Join(out, "sub/dir/dest.txt"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), fi.Mode().Perm())

	fi, err = os.Stat(filepath.Join(out, "bin/run"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), fi.Mode().Perm())

	fi, err = os.Stat(filepath.Join(out, "sub"))
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
	assert.Equal(t, os.FileMode(DirPerm), fi.Mode().Perm())

	target, err := os.Readlink(filepath.Join(out, "link"))
	require.NoError(t, err)
	assert.Equal(t, "top.txt", target)

	assert.ElementsMatch(t, []string{"bin/run", "link", "sub/dir/dest.txt", "top.txt"}, restored)
}

func TestExportTree_RejectsNonEmptyTarget(t *testing.T) {
	chain, root := buildTree(t, map[string]string{"a.txt": "a"}, nil)

	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(out, "existing"), []byte("x"), 0o644))

	err := ExportTree(context.Background(), chain, root, out)
	assert.ErrorIs(t, err, ErrTargetNotEmpty)
	_, statErr := os.Stat(filepath.Join(out, "a.txt"))
	assert.True(t, os.IsNotExist(statErr), "失败时不应写入任何文件")
}

func TestExportTree_EmptyExistingDir(t *testing.T) {
	chain, root := buildTree(t, map[string]string{"a.txt": "a"}, nil)
	out := t.TempDir()
	require.NoError(t, ExportTree(context.Background(), chain, root, out))
	assert.FileExists(t, filepath.Join(out, "a.txt"))
}

func TestExportTree_RejectsGitlinkBeforeWriting(t *testing.T) {
	sub := core.HashObject(core.TypeCommit, []byte("some other repo"))
	chain, root := buildTree(t,
		map[string]string{"a.txt": "a"},
		map[string]core.TreeEntry{"vendor/lib": {Hash: sub, Mode: core.ModeSubmodule}},
	)

	out := filepath.Join(t.TempDir(), "export")
	err := ExportTree(context.Background(), chain, root, out)

	var unsupported *UnsupportedEntryError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "vendor/lib", unsupported.Path)
	assert.Equal(t, core.ModeSubmodule, unsupported.Mode)
	assert.ErrorIs(t, err, core.ErrUnsupportedEntry)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

// rawObject 让测试把任意内容写进存储，模拟被篡改的仓库
type rawObject struct {
	typ  core.ObjectType
	data []byte
}

func (o rawObject) Type() core.ObjectType { return o.typ }
func (o rawObject) ID() types.Hash       { return core.HashObject(o.typ, o.data) }
func (o rawObject) Bytes() []byte        { return o.data }

func TestExportTree_RejectsEscapingEntry(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAdapter()

	blob := core.NewBlob([]byte("pwned"))
	require.NoError(t, store.Put(ctx, blob))
	raw, err := blob.ID().Raw()
	require.NoError(t, err)

	evil := rawObject{typ: core.TypeTree, data: append([]byte("100644 ../escape.txt\x00"), raw...)}
	require.NoError(t, store.Put(ctx, evil))

	base := t.TempDir()
	out := filepath.Join(base, "out")
	err = ExportTree(ctx, lookup.NewChain(store, 0), evil.ID(), out)
	assert.ErrorIs(t, err, core.ErrMalformedObject)

	assert.NoFileExists(t, filepath.Join(base, "escape.txt"))
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDiffers(t *testing.T) {
	ctx := context.Background()
	chain, root := buildTree(t, map[string]string{
		"a.txt":     "a",
		"sub/b.txt": "b",
	}, nil)

	out := filepath.Join(t.TempDir(), "export")
	require.NoError(t, ExportTree(ctx, chain, root, out))

	differs, err := Differs(ctx, chain, root, out)
	require.NoError(t, err)
	assert.False(t, differs)

	// 多余文件不算差异
	require.NoError(t, os.WriteFile(filepath.Join(out, "extra"), []byte("x"), 0o644))
	differs, err = Differs(ctx, chain, root, out)
	require.NoError(t, err)
	assert.False(t, differs)

	require.NoError(t, os.Chmod(filepath.Join(out, "sub/b.txt"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(out, "sub/b.txt"), []byte("changed"), 0o644))
	differs, err = Differs(ctx, chain, root, out)
	require.NoError(t, err)
	assert.True(t, differs)

	require.NoError(t, os.Remove(filepath.Join(out, "a.txt")))
	differs, err = Differs(ctx, chain, root, filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.True(t, differs)
}

func TestPrintObject(t *testing.T) {
	ctx := context.Background()
	chain, root := buildTree(t, map[string]string{"sub/x.txt": "hello"}, nil)

	var buf bytes.Buffer
	require.NoError(t, PrintObject(ctx, chain, root, &buf))
	assert.Contains(t, buf.String(), "040000 tree")
	assert.Contains(t, buf.String(), "sub")

	c, err := core.NewCommit(core.CommitData{Tree: root, Author: "A <a@x>", Committer: "A <a@x>", Message: "msg\n"})
	require.NoError(t, err)
	chain.Stage(c)

	buf.Reset()
	require.NoError(t, PrintObject(ctx, chain, c.ID(), &buf))
	assert.Contains(t, buf.String(), "Tree:      "+string(root))
	assert.Contains(t, buf.String(), "msg")

	blob := core.NewBlob([]byte("raw content"))
	chain.Stage(blob)
	buf.Reset()
	require.NoError(t, PrintObject(ctx, chain, blob.ID(), &buf))
	assert.Equal(t, "raw content", buf.String())
}
