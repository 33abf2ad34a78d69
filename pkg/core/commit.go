package core

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"unleash/pkg/types"
)

// DefaultEncoding 是缺省 encoding 头时 Git 假定的编码
const DefaultEncoding = "UTF-8"

// Header 是 commit 中未被结构化解析的额外头 (gpgsig, mergetag ...)
type Header struct {
	Key   string
	Value string
}

// CommitData 是构造 Commit 所需的全部元数据
type CommitData struct {
	Tree       types.Hash
	Parents    []types.Hash
	Author     string // "Name <email>"
	AuthorTime time.Time
	Committer  string
	CommitTime time.Time
	Encoding   string // 空或 UTF-8 时不写入 encoding 头
	Extra      []Header
	Message    string
}

// Commit 是不可变的版本快照
// 通过 NewCommit 或解码得到，构造后不要修改字段
type Commit struct {
	hash     types.Hash
	rawBytes []byte

	CommitData
}

// NewCommit 序列化元数据并计算 Hash
func NewCommit(d CommitData) (*Commit, error) {
	if !d.Tree.IsValid() {
		return nil, fmt.Errorf("%w: commit tree hash %q", ErrMalformedObject, d.Tree)
	}
	for _, p := range d.Parents {
		if !p.IsValid() {
			return nil, fmt.Errorf("%w: commit parent hash %q", ErrMalformedObject, p)
		}
	}
	d.Parents = append([]types.Hash(nil), d.Parents...)
	d.Extra = append([]Header(nil), d.Extra...)

	data := marshalCommit(&d)
	return &Commit{
		hash:       HashObject(TypeCommit, data),
		rawBytes:   data,
		CommitData: d,
	}, nil
}

func (c *Commit) Type() ObjectType { return TypeCommit }
func (c *Commit) ID() types.Hash   { return c.hash }
func (c *Commit) Bytes() []byte    { return bytes.Clone(c.rawBytes) }

// EncodingName 返回生效的编码名 (缺省为 UTF-8)
func (c *Commit) EncodingName() string {
	if c.Encoding == "" {
		return DefaultEncoding
	}
	return c.Encoding
}

func marshalCommit(d *CommitData) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", d.Tree)
	for _, p := range d.Parents {
		fmt.Fprintf(&buf, "parent %s\n", p)
	}
	fmt.Fprintf(&buf, "author %s\n", FormatIdentity(d.Author, d.AuthorTime))
	fmt.Fprintf(&buf, "committer %s\n", FormatIdentity(d.Committer, d.CommitTime))
	if d.Encoding != "" && !strings.EqualFold(d.Encoding, DefaultEncoding) {
		fmt.Fprintf(&buf, "encoding %s\n", d.Encoding)
	}
	for _, h := range d.Extra {
		// 多行值的续行以一个空格开头
		fmt.Fprintf(&buf, "%s %s\n", h.Key, strings.ReplaceAll(h.Value, "\n", "\n "))
	}
	buf.WriteByte('\n')
	buf.WriteString(d.Message)
	return buf.Bytes()
}

func parseCommit(content []byte) (*Commit, error) {
	headers, message, err := parseHeaders(content)
	if err != nil {
		return nil, fmt.Errorf("parse commit: %w", err)
	}

	var d CommitData
	for _, h := range headers {
		switch h.Key {
		case "tree":
			d.Tree = types.Hash(h.Value)
		case "parent":
			d.Parents = append(d.Parents, types.Hash(h.Value))
		case "author":
			d.Author, d.AuthorTime, err = ParseIdentity(h.Value)
		case "committer":
			d.Committer, d.CommitTime, err = ParseIdentity(h.Value)
		case "encoding":
			d.Encoding = h.Value
		default:
			d.Extra = append(d.Extra, h)
		}
		if err != nil {
			return nil, fmt.Errorf("parse commit %s: %w", h.Key, err)
		}
	}
	d.Message = message
	if !d.Tree.IsValid() {
		return nil, fmt.Errorf("%w: commit without valid tree", ErrMalformedObject)
	}

	// 保留原始字节，保证哈希与存储一致 (即使编码细节与我们的输出略有差异)
	data := make([]byte, len(content))
	copy(data, content)
	return &Commit{
		hash:       HashObject(TypeCommit, data),
		rawBytes:   data,
		CommitData: d,
	}, nil
}

// parseHeaders 解析 "key value" 头部 (支持以空格开头的续行) 和消息体
func parseHeaders(content []byte) ([]Header, string, error) {
	text := string(content)
	head, message, ok := strings.Cut(text, "\n\n")
	if !ok {
		// 没有消息体时头部以单个换行结束
		head = strings.TrimSuffix(text, "\n")
		message = ""
	}

	var headers []Header
	for _, line := range strings.Split(head, "\n") {
		if strings.HasPrefix(line, " ") {
			if len(headers) == 0 {
				return nil, "", fmt.Errorf("%w: continuation line without header", ErrMalformedObject)
			}
			headers[len(headers)-1].Value += "\n" + line[1:]
			continue
		}
		key, val, found := strings.Cut(line, " ")
		if !found {
			return nil, "", fmt.Errorf("%w: malformed header line %q", ErrMalformedObject, line)
		}
		headers = append(headers, Header{Key: key, Value: val})
	}
	return headers, message, nil
}

// FormatIdentity 输出 "Name <email> <unix> <+hhmm>"
func FormatIdentity(who string, when time.Time) string {
	_, offset := when.Zone()
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	return fmt.Sprintf("%s %d %c%02d%02d", who, when.Unix(), sign, offset/3600, (offset%3600)/60)
}

// ParseIdentity 解析 FormatIdentity 的输出，时间带上原始时区偏移
func ParseIdentity(s string) (string, time.Time, error) {
	gt := strings.LastIndexByte(s, '>')
	if gt < 0 {
		return "", time.Time{}, fmt.Errorf("%w: identity %q", ErrMalformedObject, s)
	}
	who := s[:gt+1]
	fields := strings.Fields(s[gt+1:])
	if len(fields) != 2 {
		return "", time.Time{}, fmt.Errorf("%w: identity time %q", ErrMalformedObject, s)
	}
	unix, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: timestamp %q", ErrMalformedObject, fields[0])
	}
	offset, err := parseTZ(fields[1])
	if err != nil {
		return "", time.Time{}, err
	}
	return who, time.Unix(unix, 0).In(time.FixedZone("", offset)), nil
}

func parseTZ(s string) (int, error) {
	if len(s) != 5 || (s[0] != '+' && s[0] != '-') {
		return 0, fmt.Errorf("%w: timezone %q", ErrMalformedObject, s)
	}
	hh, err1 := strconv.Atoi(s[1:3])
	mm, err2 := strconv.Atoi(s[3:5])
	if err1 != nil || err2 != nil {
		return 0, fmt.Errorf("%w: timezone %q", ErrMalformedObject, s)
	}
	offset := hh*3600 + mm*60
	if s[0] == '-' {
		offset = -offset
	}
	return offset, nil
}
