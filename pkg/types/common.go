// pkg/types/common.go
package types

import "encoding/hex"

// HashSize 是 Git 对象 ID (SHA-1) 的原始字节长度
const HashSize = 20

// Hash 代表对象的唯一标识符 (SHA-1 Hex String, 与 Git 完全兼容)
// 这是一个“值对象”，应当是不可变的。
type Hash string

func (h Hash) String() string { return string(h) }

// 验证 Hash 合法性
func (h Hash) IsZero() bool { return h == "" }
func (h Hash) IsValid() bool {
	if len(h) != HashSize*2 {
		return false
	}
	_, err := hex.DecodeString(string(h))
	return err == nil
}

// Short 返回前 8 位，用于日志与 CLI 输出
func (h Hash) Short() string {
	if len(h) <= 8 {
		return string(h)
	}
	return string(h[:8])
}

// Raw 返回 20 字节原始哈希 (Tree 序列化时使用)
func (h Hash) Raw() ([]byte, error) {
	return hex.DecodeString(string(h))
}

// HashFromRaw 将 20 字节原始哈希转换为 Hex 形式
func HashFromRaw(raw []byte) Hash {
	return Hash(hex.EncodeToString(raw))
}

type HashPrefix string

func (p HashPrefix) String() string { return string(p) }

// IsHex 检查前缀是否只包含小写十六进制字符
func (p HashPrefix) IsHex() bool {
	if p == "" {
		return false
	}
	for _, c := range p {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

// RepoPath 是树内以 "/" 分隔的路径，例如 "sub/dir/dest.txt"
type RepoPath string
