package core

import (
	"bytes"

	"unleash/pkg/types"
)

// Blob 代表一段不可变的文件内容
// 它是 Merkle DAG 的叶子节点
type Blob struct {
	hash types.Hash
	data []byte
}

// NewBlob 复制 data 并计算 Hash，调用方之后修改 data 不会影响 Blob
func NewBlob(data []byte) *Blob {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Blob{
		hash: HashObject(TypeBlob, buf),
		data: buf,
	}
}

func (b *Blob) Type() ObjectType { return TypeBlob }
func (b *Blob) ID() types.Hash   { return b.hash }

// Bytes 返回内容的副本，修改它不会影响已计算的 Hash
func (b *Blob) Bytes() []byte { return bytes.Clone(b.data) }

func (b *Blob) Size() int64 { return int64(len(b.data)) }
