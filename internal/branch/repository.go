package branch

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("branch not found")

type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Branch, error)
	FindByID(ctx context.Context, id uint) (*Branch, error)
	FindSubUserByEmail(ctx context.Context, email string) (*SubUser, error)
	FindSubUserByID(ctx context.Context, id uint) (*SubUser, error)
	UpdatePassword(ctx context.Context, isSubUser bool, id uint, hash string) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*Branch, error) {
	var b Branch
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&b).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *repository) FindByID(ctx context.Context, id uint) (*Branch, error) {
	var b Branch
	err := r.db.WithContext(ctx).First(&b, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *repository) FindSubUserByEmail(ctx context.Context, email string) (*SubUser, error) {
	var su SubUser
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&su).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &su, nil
}

func (r *repository) FindSubUserByID(ctx context.Context, id uint) (*SubUser, error) {
	var su SubUser
	err := r.db.WithContext(ctx).First(&su, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &su, nil
}

func (r *repository) UpdatePassword(ctx context.Context, isSubUser bool, id uint, hash string) error {
	table := "branches"
	if isSubUser {
		table = "branch_sub_users"
	}
	// Clearing the session forces a fresh login with the new password.
	result := r.db.WithContext(ctx).
		Table(table).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"password":     hash,
			"login_token":  nil,
			"token_expiry": nil,
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
