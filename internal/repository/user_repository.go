package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/therapy-booking/internal/model"
)

type UserRepository interface {
	// Ребёнок, только если он принадлежит parentID.
	ChildOfParent(ctx context.Context, childID, parentID uuid.UUID) (*model.Child, error)
	// ID пользователей с указанной ролью.
	IDsWithRole(ctx context.Context, roleCode string) ([]uuid.UUID, error)
	// Назначить роль (у пользователя одна роль).
	SetRole(ctx context.Context, userID uuid.UUID, roleCode string) error
	// Код роли пользователя; gorm.ErrRecordNotFound, если роли нет.
	GetRole(ctx context.Context, userID uuid.UUID) (string, error)
}

type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) ChildOfParent(ctx context.Context, childID, parentID uuid.UUID) (*model.Child, error) {
	var c model.Child
	if err := r.db.WithContext(ctx).
		Where("id = ? AND parent_id = ?", childID, parentID).
		First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *GormUserRepository) IDsWithRole(ctx context.Context, roleCode string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&model.UserRole{}).
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Where("roles.code = ?", roleCode).
		Pluck("user_roles.user_id", &ids).Error
	return ids, err
}

func (r *GormUserRepository) SetRole(ctx context.Context, userID uuid.UUID, roleCode string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// роль создаётся при первом назначении
		var role model.Role
		if err := tx.Where("code = ?", roleCode).First(&role).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			role.Code = roleCode
			role.Name = roleCode
			if err := tx.Create(&role).Error; err != nil {
				return err
			}
		}

		// у пользователя одна роль
		if err := tx.Where("user_id = ?", userID).Delete(&model.UserRole{}).Error; err != nil {
			return err
		}

		return tx.Create(&model.UserRole{RoleID: role.ID, UserID: userID}).Error
	})
}

func (r *GormUserRepository) GetRole(ctx context.Context, userID uuid.UUID) (string, error) {
	var codes []string
	err := r.db.WithContext(ctx).
		Model(&model.UserRole{}).
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Where("user_roles.user_id = ?", userID).
		Limit(1).
		Pluck("roles.code", &codes).Error
	if err != nil {
		return "", err
	}
	if len(codes) == 0 {
		return "", gorm.ErrRecordNotFound
	}
	return codes[0], nil
}
