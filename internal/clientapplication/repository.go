package clientapplication

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("application not found")

type Repository interface {
	Create(ctx context.Context, app *ClientApplication) error
	CreateBatch(ctx context.Context, apps []ClientApplication) error
	FindByID(ctx context.Context, id uint) (*ClientApplication, error)
	FindByApplicationID(ctx context.Context, applicationID string) (*ClientApplication, error)
	List(ctx context.Context, filter Filter) ([]ClientApplication, int64, error)
	Update(ctx context.Context, app *ClientApplication) error
	UpdateStatus(ctx context.Context, id uint, status string) error
	UpdateUploadPaths(ctx context.Context, id uint, photoPath string, documentPaths string) error
	DeleteCascade(ctx context.Context, id uint) error

	// LatestApplicationID returns the most recently created application id
	// for the customer, or "" when none exist.
	LatestApplicationID(ctx context.Context, customerID uint) (string, error)
	EmployeeIDExists(ctx context.Context, employeeID string, excludeID uint) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, app *ClientApplication) error {
	return r.db.WithContext(ctx).Create(app).Error
}

func (r *repository) CreateBatch(ctx context.Context, apps []ClientApplication) error {
	if len(apps) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&apps).Error
	})
}

func (r *repository) FindByID(ctx context.Context, id uint) (*ClientApplication, error) {
	var app ClientApplication
	err := r.db.WithContext(ctx).First(&app, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &app, nil
}

func (r *repository) FindByApplicationID(ctx context.Context, applicationID string) (*ClientApplication, error) {
	var app ClientApplication
	err := r.db.WithContext(ctx).Where("application_id = ?", applicationID).First(&app).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &app, nil
}

func (r *repository) List(ctx context.Context, filter Filter) ([]ClientApplication, int64, error) {
	query := r.db.WithContext(ctx).Model(&ClientApplication{})

	if filter.BranchID > 0 {
		query = query.Where("branch_id = ?", filter.BranchID)
	}
	if filter.CustomerID > 0 {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.Status != "" {
		query = query.Where("overall_status = ?", strings.ToLower(filter.Status))
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("name ILIKE ? OR employee_id ILIKE ? OR application_id ILIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Limit > 0 {
		offset := (filter.Page - 1) * filter.Limit
		if offset < 0 {
			offset = 0
		}
		query = query.Offset(offset).Limit(filter.Limit)
	}

	var apps []ClientApplication
	err := query.Order("created_at DESC").Find(&apps).Error
	return apps, total, err
}

func (r *repository) Update(ctx context.Context, app *ClientApplication) error {
	result := r.db.WithContext(ctx).
		Model(&ClientApplication{}).
		Where("id = ?", app.ID).
		Updates(map[string]interface{}{
			"name":           app.Name,
			"employee_id":    app.EmployeeID,
			"location":       app.Location,
			"mobile":         app.Mobile,
			"email":          app.Email,
			"spoc_id":        app.SpocID,
			"services":       app.Services,
			"package":        app.Package,
			"overall_status": app.OverallStatus,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uint, status string) error {
	result := r.db.WithContext(ctx).
		Model(&ClientApplication{}).
		Where("id = ?", id).
		Update("overall_status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) UpdateUploadPaths(ctx context.Context, id uint, photoPath string, documentPaths string) error {
	updates := map[string]interface{}{}
	if photoPath != "" {
		updates["photo_path"] = photoPath
	}
	if documentPaths != "" {
		updates["document_paths"] = documentPaths
	}
	if len(updates) == 0 {
		return nil
	}

	result := r.db.WithContext(ctx).
		Model(&ClientApplication{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCascade removes the application together with its tracker record
// and annexure rows in one transaction. Table names are referenced directly
// to keep the tracker package depending on this one, not the other way
// around.
func (r *repository) DeleteCascade(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var app ClientApplication
		if err := tx.First(&app, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var cmtIDs []uint
		if err := tx.Table("cmt_applications").
			Where("application_id = ?", app.ApplicationID).
			Pluck("id", &cmtIDs).Error; err != nil {
			return err
		}

		if len(cmtIDs) > 0 {
			if err := tx.Table("annexure_records").
				Where("cmt_application_id IN ?", cmtIDs).
				Delete(nil).Error; err != nil {
				return err
			}
			if err := tx.Table("cmt_applications").
				Where("id IN ?", cmtIDs).
				Delete(nil).Error; err != nil {
				return err
			}
		}

		return tx.Delete(&ClientApplication{}, id).Error
	})
}

func (r *repository) LatestApplicationID(ctx context.Context, customerID uint) (string, error) {
	var app ClientApplication
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		First(&app).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return app.ApplicationID, nil
}

func (r *repository) EmployeeIDExists(ctx context.Context, employeeID string, excludeID uint) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).
		Model(&ClientApplication{}).
		Where("employee_id = ?", employeeID)
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
