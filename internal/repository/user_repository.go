package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pmatch-go/internal/model"
)

// UserRepository 接口定义了上传会话数据的持久化操作。
// 冲突策略：users 表统一采用 last-write-wins，同一会话重新上传整行覆盖，
// UpdatedAt 由 GORM 自动刷新。
type UserRepository interface {
	Upsert(user *model.User) error
	FindByID(id string) (*model.User, error)
}

// userRepository 是 UserRepository 接口的 GORM 实现。
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建一个新的 UserRepository 实例。
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Upsert 以会话 ID 为冲突键写入记录，冲突时覆盖全部列。
func (r *userRepository) Upsert(user *model.User) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(user).Error
}

// FindByID 根据会话 ID 查找一条记录。
func (r *userRepository) FindByID(id string) (*model.User, error) {
	var user model.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}
