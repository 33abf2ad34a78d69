// Package depgraph 实现带环检测的有向无环依赖图
package depgraph

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrCycle       = errors.New("dependency cycle")
	ErrUnknownNode = errors.New("unknown node")
)

// Graph 记录 "obj 依赖 dep" 形式的边
// 任何会引入环的修改都会被拒绝，图保持不变
type Graph[T comparable] struct {
	nodes []T // 插入顺序
	deps  map[T][]T
	rdeps map[T][]T
}

func New[T comparable]() *Graph[T] {
	return &Graph[T]{
		deps:  make(map[T][]T),
		rdeps: make(map[T][]T),
	}
}

func (g *Graph[T]) Has(obj T) bool {
	_, ok := g.deps[obj]
	return ok
}

func (g *Graph[T]) Len() int { return len(g.nodes) }

// Add 添加节点及其依赖；依赖节点不存在时自动创建
func (g *Graph[T]) Add(obj T, deps ...T) error {
	// 新边全部从 obj 出发，形成环当且仅当某个 dep 已能到达 obj
	for _, d := range deps {
		if d == obj || g.reaches(d, obj) {
			return fmt.Errorf("%w: adding %v with dependencies %v", ErrCycle, obj, deps)
		}
	}
	g.ensure(obj)
	for _, d := range deps {
		g.link(obj, d)
	}
	return nil
}

// AddDependency 添加一条 obj -> on 的依赖边
func (g *Graph[T]) AddDependency(obj, on T) error {
	if obj == on || g.reaches(on, obj) {
		return fmt.Errorf("%w: %v depending on %v", ErrCycle, obj, on)
	}
	g.ensure(obj)
	g.link(obj, on)
	return nil
}

// Dependencies 返回 obj 的直接依赖
func (g *Graph[T]) Dependencies(obj T) []T { return slices.Clone(g.deps[obj]) }

// Dependants 返回直接依赖 obj 的节点
func (g *Graph[T]) Dependants(obj T) []T { return slices.Clone(g.rdeps[obj]) }

// FullDependencies 返回 obj 传递依赖的全部节点 (按插入顺序)
func (g *Graph[T]) FullDependencies(obj T) []T { return g.closure(obj, g.deps) }

// FullDependants 返回传递地依赖 obj 的全部节点 (按插入顺序)
func (g *Graph[T]) FullDependants(obj T) []T { return g.closure(obj, g.rdeps) }

// Remove 删除节点及其所有边
func (g *Graph[T]) Remove(obj T) error {
	if !g.Has(obj) {
		return fmt.Errorf("%w: %v", ErrUnknownNode, obj)
	}
	for _, d := range g.deps[obj] {
		g.rdeps[d] = without(g.rdeps[d], obj)
	}
	for _, r := range g.rdeps[obj] {
		g.deps[r] = without(g.deps[r], obj)
	}
	delete(g.deps, obj)
	delete(g.rdeps, obj)
	g.nodes = without(g.nodes, obj)
	return nil
}

// RemoveDependency 删除一条边，节点保留
func (g *Graph[T]) RemoveDependency(obj, on T) error {
	if !slices.Contains(g.deps[obj], on) {
		return fmt.Errorf("%w: no edge %v -> %v", ErrUnknownNode, obj, on)
	}
	g.deps[obj] = without(g.deps[obj], on)
	g.rdeps[on] = without(g.rdeps[on], obj)
	return nil
}

// Order 返回拓扑序：依赖在前；多个可选时按插入顺序
func (g *Graph[T]) Order() []T {
	remaining := make(map[T]int, len(g.nodes))
	for _, n := range g.nodes {
		remaining[n] = len(g.deps[n])
	}

	out := make([]T, 0, len(g.nodes))
	done := make(map[T]bool, len(g.nodes))
	for len(out) < len(g.nodes) {
		progressed := false
		for _, n := range g.nodes {
			if done[n] || remaining[n] > 0 {
				continue
			}
			done[n] = true
			out = append(out, n)
			for _, r := range g.rdeps[n] {
				remaining[r]--
			}
			progressed = true
			// 每轮只取一个，保证插入顺序优先
			break
		}
		if !progressed {
			// 环在插入时已被拒绝
			panic("depgraph: cycle in graph")
		}
	}
	return out
}

func (g *Graph[T]) ensure(obj T) {
	if _, ok := g.deps[obj]; ok {
		return
	}
	g.nodes = append(g.nodes, obj)
	g.deps[obj] = nil
}

func (g *Graph[T]) link(obj, on T) {
	g.ensure(on)
	if slices.Contains(g.deps[obj], on) {
		return
	}
	g.deps[obj] = append(g.deps[obj], on)
	g.rdeps[on] = append(g.rdeps[on], obj)
}

// reaches 判断 from 是否能沿依赖边到达 to
func (g *Graph[T]) reaches(from, to T) bool {
	seen := map[T]bool{from: true}
	stack := []T{from}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == to {
			return true
		}
		for _, d := range g.deps[n] {
			if !seen[d] {
				seen[d] = true
				stack = append(stack, d)
			}
		}
	}
	return false
}

func (g *Graph[T]) closure(obj T, edges map[T][]T) []T {
	seen := map[T]bool{obj: true}
	stack := slices.Clone(edges[obj])
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		stack = append(stack, edges[n]...)
	}

	var out []T
	for _, n := range g.nodes {
		if n != obj && seen[n] {
			out = append(out, n)
		}
	}
	return out
}

func without[T comparable](s []T, v T) []T {
	return slices.DeleteFunc(slices.Clone(s), func(x T) bool { return x == v })
}
