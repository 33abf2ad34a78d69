package core

import (
	"bytes"
	"fmt"

	"unleash/pkg/types"
)

// Tag 是附注标签对象
// 核心只需要它来把 refs/tags/* 剥离 (peel) 到 commit
type Tag struct {
	hash     types.Hash
	rawBytes []byte

	Object  types.Hash
	ObjType ObjectType
	Name    string
	Tagger  string
	Message string
}

// NewTag 构造附注标签 (主要用于测试和工具)
func NewTag(object types.Hash, objType ObjectType, name, tagger, message string) *Tag {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "object %s\ntype %s\ntag %s\n", object, objType, name)
	if tagger != "" {
		fmt.Fprintf(&buf, "tagger %s\n", tagger)
	}
	buf.WriteByte('\n')
	buf.WriteString(message)
	data := buf.Bytes()
	return &Tag{
		hash:     HashObject(TypeTag, data),
		rawBytes: data,
		Object:   object,
		ObjType:  objType,
		Name:     name,
		Tagger:   tagger,
		Message:  message,
	}
}

func (t *Tag) Type() ObjectType { return TypeTag }
func (t *Tag) ID() types.Hash   { return t.hash }
func (t *Tag) Bytes() []byte    { return bytes.Clone(t.rawBytes) }

func parseTag(content []byte) (*Tag, error) {
	headers, message, err := parseHeaders(content)
	if err != nil {
		return nil, fmt.Errorf("parse tag: %w", err)
	}
	t := &Tag{Message: message}
	for _, h := range headers {
		switch h.Key {
		case "object":
			t.Object = types.Hash(h.Value)
		case "type":
			t.ObjType = ObjectType(h.Value)
		case "tag":
			t.Name = h.Value
		case "tagger":
			t.Tagger = h.Value
		}
	}
	if !t.Object.IsValid() {
		return nil, fmt.Errorf("%w: tag without valid object", ErrMalformedObject)
	}
	data := make([]byte, len(content))
	copy(data, content)
	t.rawBytes = data
	t.hash = HashObject(TypeTag, data)
	return t, nil
}
