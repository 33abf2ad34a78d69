package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_DependenciesAndDependants(t *testing.T) {
	g := New[string]()
	require.NoError(t, g.Add("A", "B", "C"))
	require.NoError(t, g.Add("B", "D"))

	assert.Equal(t, []string{"B", "C"}, g.Dependencies("A"))
	assert.Equal(t, []string{"A"}, g.Dependants("B"))
	assert.Equal(t, []string{"B", "C", "D"}, g.FullDependencies("A"))
	assert.Equal(t, []string{"A", "B"}, g.FullDependants("D"))
	assert.Equal(t, 4, g.Len())
}

func TestGraph_RejectsCycles(t *testing.T) {
	g := New[string]()
	require.NoError(t, g.Add("A", "B"))
	require.NoError(t, g.Add("B", "C"))

	tests := []struct {
		name string
		fn   func() error
	}{
		{"self loop", func() error { return g.AddDependency("A", "A") }},
		{"direct", func() error { return g.AddDependency("B", "A") }},
		{"transitive", func() error { return g.AddDependency("C", "A") }},
		{"via Add", func() error { return g.Add("C", "X", "A") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.fn(), ErrCycle)
		})
	}

	// 失败的修改不留痕迹
	assert.False(t, g.Has("X"))
	assert.Empty(t, g.Dependencies("C"))
	assert.Equal(t, []string{"C", "B", "A"}, g.Order())
}

func TestGraph_OrderIsStable(t *testing.T) {
	g := New[string]()
	require.NoError(t, g.Add("app", "lib", "log"))
	require.NoError(t, g.Add("lib", "log"))
	require.NoError(t, g.Add("docs"))
	require.NoError(t, g.Add("zeta"))

	// 依赖在前；无约束的节点按插入顺序
	assert.Equal(t, []string{"log", "lib", "app", "docs", "zeta"}, g.Order())
}

func TestGraph_Remove(t *testing.T) {
	g := New[int]()
	require.NoError(t, g.Add(1, 2))
	require.NoError(t, g.Add(2, 3))

	require.NoError(t, g.RemoveDependency(1, 2))
	assert.Empty(t, g.Dependencies(1))
	assert.Empty(t, g.Dependants(2))
	assert.ErrorIs(t, g.RemoveDependency(1, 2), ErrUnknownNode)

	require.NoError(t, g.Remove(3))
	assert.False(t, g.Has(3))
	assert.Empty(t, g.Dependencies(2))
	assert.ErrorIs(t, g.Remove(3), ErrUnknownNode)

	// 删除后原本会成环的边可以添加
	require.NoError(t, g.AddDependency(2, 1))
	assert.Equal(t, []int{1, 2}, g.Order())
}
