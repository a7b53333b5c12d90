package model

import "time"

// Profile 对应于数据库中的 'profiles' 表，记录一名研究者的画像。
// ID 是自然键（档案 URL 或邮箱）的确定性哈希，保证重复摄入幂等；
// 重复摄入按 last-write-wins 覆盖整行。
type Profile struct {
	// ID 是自然键的 MD5 十六进制摘要，作为主键。
	ID string `gorm:"type:varchar(32);primaryKey" json:"id"`
	// Name 是研究者姓名。
	Name string `gorm:"type:varchar(255)" json:"name"`
	// Email 是公开联系邮箱，可为空。
	Email string `gorm:"type:varchar(255)" json:"email"`
	// Title 是职称（教授、副教授等）。
	Title string `gorm:"type:varchar(255)" json:"title"`
	// ResearchArea 是研究方向的简短描述。
	ResearchArea string `gorm:"type:varchar(512)" json:"researchArea"`
	// Institution 是所属机构，作为检索过滤维度。
	Institution string `gorm:"type:varchar(255);index" json:"institution"`
	// Country 是机构所在国家。
	Country string `gorm:"type:varchar(100)" json:"country"`
	// ProfileURL 是官方主页地址，自然键的首选来源。
	ProfileURL string `gorm:"type:varchar(512);uniqueIndex" json:"profileUrl"`
	// Abstracts 是近期论文摘要，最多保留 5 条。
	Abstracts StringSlice `gorm:"type:json" json:"abstracts"`
	// Embedding 是摘要均值池化后的代表向量；没有摘要时为 NULL。
	// 不变量：摘要为空的记录不允许携带过期向量。
	Embedding Vector `gorm:"type:json" json:"-"`
	// ModelVersion 记录产出向量的模型，维度混配排查用。
	ModelVersion string    `gorm:"type:varchar(50)" json:"modelVersion"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Profile) TableName() string {
	return "profiles"
}

// MaxAbstractsPerProfile 是每个画像参与向量化的摘要数量上限。
const MaxAbstractsPerProfile = 5
