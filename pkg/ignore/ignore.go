package ignore

import (
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
)

// FileName 是用户自定义忽略规则文件名
const FileName = ".unleashignore"

// Matcher 封装了忽略逻辑
// 它负责判断一个文件在导入目录时是否应该被跳过
type Matcher struct {
	ignorer *gitignore.GitIgnore
}

// NewMatcher 初始化忽略匹配器
// rootPath: 被导入的目录 (用于查找 .unleashignore 文件)
func NewMatcher(rootPath string, extra ...string) (*Matcher, error) {
	// 1. 系统级默认忽略规则，强制生效
	defaultRules := []string{
		// --- 关键系统目录 ---
		".unleash", // 仓库元数据目录，导入它会造成自我引用
		".git",     // Git 仓库数据

		// --- 安全与配置 ---
		".env", // 防止环境变量文件泄露

		// --- 常见垃圾文件 ---
		".DS_Store", // macOS
		"Thumbs.db", // Windows
	}
	defaultRules = append(defaultRules, extra...)

	var ignorer *gitignore.GitIgnore
	var err error

	// 2. 检查用户是否有 .unleashignore 文件
	ignoreFilePath := filepath.Join(rootPath, FileName)

	if _, errStat := os.Stat(ignoreFilePath); errStat == nil {
		// 情况 A: 文件内容与默认规则合并编译
		ignorer, err = gitignore.CompileIgnoreFileAndLines(ignoreFilePath, defaultRules...)
	} else {
		// 情况 B: 仅编译默认规则
		ignorer = gitignore.CompileIgnoreLines(defaultRules...)
	}

	if err != nil {
		return nil, err
	}

	return &Matcher{ignorer: ignorer}, nil
}

// Matches 检查给定的路径是否匹配忽略规则
// path: 相对于导入根目录、以 "/" 分隔的路径 (例如 "data/model.bin")
// 返回: true 表示应该忽略 (Skip), false 表示应该保留 (Keep)
func (m *Matcher) Matches(path string) bool {
	if m == nil || m.ignorer == nil {
		return false
	}
	return m.ignorer.MatchesPath(path)
}
