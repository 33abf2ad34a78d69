package core

import (
	"fmt"
	"strconv"

	"github.com/go-git/go-git/v5/plumbing/filemode"
)

// 常用的 Git 模式位，直接复用 go-git 的定义，保证与现有仓库逐位兼容
const (
	ModeDir        = filemode.Dir        // 0040000
	ModeRegular    = filemode.Regular    // 0100644
	ModeExecutable = filemode.Executable // 0100755
	ModeSymlink    = filemode.Symlink    // 0120000
	ModeSubmodule  = filemode.Submodule  // 0160000 (gitlink)
)

// FormatMode 按 Git 写入 tree 的格式输出模式 (无前导 0，目录是 "40000")
func FormatMode(m filemode.FileMode) string {
	return strconv.FormatUint(uint64(m), 8)
}

// ParseMode 解析 tree 中的八进制模式字符串
// 未知但语法合法的模式会原样保留，由遍历方决定是否拒绝
func ParseMode(s string) (filemode.FileMode, error) {
	m, err := filemode.New(s)
	if err != nil {
		return filemode.Empty, fmt.Errorf("%w: bad mode %q", ErrMalformedObject, s)
	}
	return m, nil
}

// IsDir 判断模式是否为目录
func IsDir(m filemode.FileMode) bool { return m == ModeDir }

// IsFileMode 判断模式是否指向 blob (普通文件、可执行文件、符号链接)
func IsFileMode(m filemode.FileMode) bool { return m.IsFile() }

// IsKnownMode 判断模式是否是 Git 认识的条目类型 (目录、文件、符号链接、gitlink)
func IsKnownMode(m filemode.FileMode) bool {
	return m == ModeDir || m == ModeSubmodule || m.IsFile()
}

// FilePerm 从存储的模式中提取权限位 (只保留 0777，不重新应用类型位)
func FilePerm(m filemode.FileMode) uint32 {
	return uint32(m) & 0o777
}
