package mailer

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var (
	ErrTemplateNotFound   = errors.New("no active email template for module/action")
	ErrCredentialNotFound = errors.New("no active smtp credential for module/action")
)

type Repository interface {
	ActiveTemplate(ctx context.Context, module, action string) (*EmailTemplate, error)
	ActiveCredential(ctx context.Context, module, action string) (*SMTPCredential, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ActiveTemplate(ctx context.Context, module, action string) (*EmailTemplate, error) {
	var t EmailTemplate
	err := r.db.WithContext(ctx).
		Where("module = ? AND action = ? AND status = ?", module, action, 1).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *repository) ActiveCredential(ctx context.Context, module, action string) (*SMTPCredential, error) {
	var c SMTPCredential
	err := r.db.WithContext(ctx).
		Where("module = ? AND action = ? AND status = ?", module, action, 1).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}
	return &c, nil
}
