package access

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	FindActor(ctx context.Context, kind ActorKind, id uint) (*Actor, error)
	SaveToken(ctx context.Context, kind ActorKind, id uint, token string, expiry time.Time) error
	ClearToken(ctx context.Context, kind ActorKind, id uint) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func tableFor(kind ActorKind) string {
	switch kind {
	case ActorAdmin:
		return "admins"
	case ActorSubUser:
		return "branch_sub_users"
	default:
		return "branches"
	}
}

type actorRow struct {
	ID          uint
	Status      int16
	LoginToken  *string
	TokenExpiry *time.Time
	Permissions []byte
}

func (r *repository) FindActor(ctx context.Context, kind ActorKind, id uint) (*Actor, error) {
	var row actorRow
	err := r.db.WithContext(ctx).
		Table(tableFor(kind)).
		Select("id, status, login_token, token_expiry, permissions").
		Where("id = ?", id).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrActorNotFound
		}
		return nil, err
	}

	return &Actor{
		ID:          row.ID,
		Kind:        kind,
		Status:      row.Status,
		LoginToken:  row.LoginToken,
		TokenExpiry: row.TokenExpiry,
		Permissions: row.Permissions,
	}, nil
}

func (r *repository) SaveToken(ctx context.Context, kind ActorKind, id uint, token string, expiry time.Time) error {
	result := r.db.WithContext(ctx).
		Table(tableFor(kind)).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"login_token":  token,
			"token_expiry": expiry,
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrActorNotFound
	}
	return nil
}

func (r *repository) ClearToken(ctx context.Context, kind ActorKind, id uint) error {
	return r.db.WithContext(ctx).
		Table(tableFor(kind)).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"login_token":  nil,
			"token_expiry": nil,
			"updated_at":   time.Now(),
		}).Error
}
