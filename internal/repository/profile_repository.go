// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pmatch-go/internal/model"
)

// ProfileRepository 接口定义了研究者画像数据的持久化操作。
// 冲突策略：profiles 表统一采用 last-write-wins，重复摄入覆盖整行。
type ProfileRepository interface {
	Upsert(profile *model.Profile) error
	FindByID(id string) (*model.Profile, error)
	FindByIDs(ids []string) ([]model.Profile, error)
	UpdateEmbedding(id string, embedding model.Vector, modelVersion string) error
	ListDistinctInstitutions() ([]string, error)
	DeleteWithoutAbstracts() (int64, error)
}

// profileRepository 是 ProfileRepository 接口的 GORM 实现。
type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository 创建一个新的 ProfileRepository 实例。
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

// Upsert 以主键（自然键哈希）为冲突键写入画像，冲突时覆盖全部列。
func (r *profileRepository) Upsert(profile *model.Profile) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(profile).Error
}

// FindByID 根据画像 ID 查找一条记录。
func (r *profileRepository) FindByID(id string) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.Where("id = ?", id).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// FindByIDs 批量查找画像记录，用于给检索命中补齐联系信息。
func (r *profileRepository) FindByIDs(ids []string) ([]model.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var profiles []model.Profile
	err := r.db.Where("id IN ?", ids).Find(&profiles).Error
	return profiles, err
}

// UpdateEmbedding 更新画像的代表向量与模型版本。
func (r *profileRepository) UpdateEmbedding(id string, embedding model.Vector, modelVersion string) error {
	return r.db.Model(&model.Profile{}).Where("id = ?", id).Updates(map[string]interface{}{
		"embedding":     embedding,
		"model_version": modelVersion,
	}).Error
}

// ListDistinctInstitutions 返回去重后的非空机构名，按字典序排列。
func (r *profileRepository) ListDistinctInstitutions() ([]string, error) {
	var institutions []string
	err := r.db.Model(&model.Profile{}).
		Where("institution IS NOT NULL AND institution <> ''").
		Distinct("institution").
		Order("institution").
		Pluck("institution", &institutions).Error
	return institutions, err
}

// DeleteWithoutAbstracts 清理没有任何摘要的画像记录，返回删除条数。
// 摘要为空的画像不可能有合法向量，留着只会污染机构过滤集合。
// 列值要么是 SQL NULL，要么是 JSON 数组，空数组按 JSON 长度判断。
func (r *profileRepository) DeleteWithoutAbstracts() (int64, error) {
	res := r.db.Where("abstracts IS NULL OR JSON_LENGTH(abstracts) = 0").
		Delete(&model.Profile{})
	return res.RowsAffected, res.Error
}
