package meta

import (
	"time"

	"gorm.io/datatypes"
)

// Ref 存储引用 (例如 "refs/heads/main")
// 对应 Git 的 .git/refs/*；Target 非空表示符号引用 (如 HEAD -> refs/heads/main)
type Ref struct {
	// Name 是主键，例如 "HEAD" 或 "refs/heads/main"
	Name string `gorm:"primaryKey;type:varchar(255)"`

	// CommitHash 指向对象 ID；符号引用时为空
	CommitHash string `gorm:"type:char(40)"`

	Target string `gorm:"type:varchar(255)"`

	// Version 用于乐观锁并发控制 (CAS)
	// 每次更新时 +1，防止并发覆盖
	Version int64 `gorm:"default:1"`

	UpdatedAt time.Time
}

// CommitModel 是 core.Commit 在关系型数据库中的投影 (索引)
// 用于快速查询历史，支持按作者、时间搜索
type CommitModel struct {
	Hash string `gorm:"primaryKey;type:char(40)"`

	Author    string `gorm:"index;type:varchar(255)"`
	Committer string `gorm:"type:varchar(255)"`
	Message   string `gorm:"type:text"`
	Timestamp int64  `gorm:"index"` // committer 时间，Unix 秒

	TreeHash string `gorm:"type:char(40);not null"`

	// Parents: ["hash1", "hash2"]
	Parents datatypes.JSON

	// Meta: encoding、author 时间、额外头等非结构化数据
	Meta datatypes.JSON

	CreatedAt time.Time
}

// TableName 强制指定表名
func (CommitModel) TableName() string {
	return "commits"
}
