package model

import "time"

// User 对应于数据库中的 'users' 表，记录一次文档上传会话。
// ID 在上传时生成（UUID，不可枚举），同一 ID 重新上传按 last-write-wins
// 覆盖并刷新 UpdatedAt；本核心从不删除该表记录。
type User struct {
	// ID 是上传时生成的 UUID，作为会话句柄。
	ID string `gorm:"type:varchar(36);primaryKey" json:"id"`
	// Filename 是上传文件的原始文件名。
	Filename string `gorm:"type:varchar(255)" json:"filename"`
	// ContentType 是上传文件的 MIME 类型。
	ContentType string `gorm:"type:varchar(100)" json:"contentType"`
	// DetectedKind 是文档类型分类结果（cv 或 paper）。
	DetectedKind DocumentKind `gorm:"type:varchar(10)" json:"detectedKind"`
	// Title 是从文档中提取的标题（论文标题或文件名兜底）。
	Title string `gorm:"type:varchar(512)" json:"title"`
	// Content 是提取出的纯文本内容。
	Content string `gorm:"type:longtext" json:"-"`
	// Embedding 是内容分块向量化后的代表向量；内容为空时为 NULL。
	Embedding Vector    `gorm:"type:json" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (User) TableName() string {
	return "users"
}

// HasEmbedding 判断该会话是否已有可用向量。
func (u *User) HasEmbedding() bool {
	return len(u.Embedding) > 0
}
