package core

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strconv"

	"unleash/pkg/types"
)

// header 生成 Git 对象头 "type len\0"
func header(objType ObjectType, size int) []byte {
	return []byte(fmt.Sprintf("%s %d\x00", objType, size))
}

// HashObject 计算 Git 风格的对象哈希: SHA-1("type len\0" + content)
// 类型标签参与哈希，所以内容相同的 blob 与 tree 不会冲突
func HashObject(objType ObjectType, content []byte) types.Hash {
	h := sha1.New()
	h.Write(header(objType, len(content)))
	h.Write(content)
	return types.Hash(hex.EncodeToString(h.Sum(nil)))
}

// Encode 返回对象的规范字节 (loose object 解压后的形式)
func Encode(obj Object) []byte {
	content := obj.Bytes()
	hdr := header(obj.Type(), len(content))
	out := make([]byte, 0, len(hdr)+len(content))
	out = append(out, hdr...)
	return append(out, content...)
}

// DecodeObject 解析 "type len\0content" 形式的规范字节
func DecodeObject(data []byte) (Object, error) {
	objType, content, err := splitEnvelope(data)
	if err != nil {
		return nil, err
	}
	return DecodeContent(objType, content)
}

// DecodeContent 根据类型解析对象内容
func DecodeContent(objType ObjectType, content []byte) (Object, error) {
	switch objType {
	case TypeBlob:
		return NewBlob(content), nil
	case TypeTree:
		return parseTree(content)
	case TypeCommit:
		return parseCommit(content)
	case TypeTag:
		return parseTag(content)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, objType)
	}
}

func splitEnvelope(data []byte) (ObjectType, []byte, error) {
	nul := bytes.IndexByte(data, 0)
	if nul < 0 {
		return "", nil, fmt.Errorf("%w: missing header terminator", ErrMalformedObject)
	}
	typ, sizeStr, ok := bytes.Cut(data[:nul], []byte(" "))
	if !ok {
		return "", nil, fmt.Errorf("%w: invalid header %q", ErrMalformedObject, data[:nul])
	}
	size, err := strconv.Atoi(string(sizeStr))
	if err != nil {
		return "", nil, fmt.Errorf("%w: invalid length %q", ErrMalformedObject, sizeStr)
	}
	content := data[nul+1:]
	if len(content) != size {
		return "", nil, fmt.Errorf("%w: length mismatch (header=%d, actual=%d)", ErrMalformedObject, size, len(content))
	}
	return ObjectType(typ), content, nil
}
