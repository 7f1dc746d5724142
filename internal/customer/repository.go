package customer

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("customer not found")

type Repository interface {
	FindByID(ctx context.Context, id uint) (*Customer, error)
	FindByBranchID(ctx context.Context, branchID uint) (*Customer, error)
	ListActive(ctx context.Context) ([]Customer, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, id uint) (*Customer, error) {
	var c Customer
	err := r.db.WithContext(ctx).First(&c, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *repository) FindByBranchID(ctx context.Context, branchID uint) (*Customer, error) {
	var c Customer
	err := r.db.WithContext(ctx).
		Joins("JOIN branches ON branches.customer_id = customers.id").
		Where("branches.id = ?", branchID).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *repository) ListActive(ctx context.Context) ([]Customer, error) {
	var customers []Customer
	err := r.db.WithContext(ctx).
		Where("status = ?", 1).
		Order("name ASC").
		Find(&customers).Error
	return customers, err
}
