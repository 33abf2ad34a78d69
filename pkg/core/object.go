package core

import (
	"errors"

	"unleash/pkg/types"
)

// ObjectType 定义了 Git 对象模型中的对象类型
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"   // 文件内容 (叶子节点)
	TypeTree   ObjectType = "tree"   // 目录树
	TypeCommit ObjectType = "commit" // 版本快照
	TypeTag    ObjectType = "tag"    // 附注标签 (只用于 peel)
)

var (
	ErrUnknownType      = errors.New("unknown object type")
	ErrMalformedObject  = errors.New("malformed object")
	ErrUnsupportedEntry = errors.New("unsupported tree entry kind")
)

// Object 是所有 Merkle DAG 节点的通用接口
// 所有实现都是不可变的: ID 在构造时计算，之后不再变化
type Object interface {
	// Type 返回对象类型
	Type() ObjectType

	// ID 返回对象的哈希值 (Git SHA-1)
	ID() types.Hash

	// Bytes 返回对象的内容部分 (不含 "type len\0" 头)
	Bytes() []byte
}
