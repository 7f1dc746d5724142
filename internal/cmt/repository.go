package cmt

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound         = errors.New("tracker record not found")
	ErrAnnexureNotFound = errors.New("annexure record not found")
)

type Repository interface {
	FindByApplicationID(ctx context.Context, applicationID string) (*CMTApplication, error)

	// UpsertReport creates or refreshes the tracker row and its annexures
	// in one transaction so concurrent report generations cannot leave a
	// half-written aggregate.
	UpsertReport(ctx context.Context, cmt *CMTApplication, annexures []AnnexureRecord) (*CMTApplication, error)

	AnnexuresByCMT(ctx context.Context, cmtID uint) ([]AnnexureRecord, error)
	AnnexureByTable(ctx context.Context, cmtID uint, serviceTable string) (*AnnexureRecord, error)
	UpdateDocumentPaths(ctx context.Context, cmtID uint, paths string) error
	TrackerRows(ctx context.Context) ([]TrackerRow, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByApplicationID(ctx context.Context, applicationID string) (*CMTApplication, error) {
	var cmt CMTApplication
	err := r.db.WithContext(ctx).Where("application_id = ?", applicationID).First(&cmt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cmt, nil
}

func (r *repository) UpsertReport(ctx context.Context, cmt *CMTApplication, annexures []AnnexureRecord) (*CMTApplication, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing CMTApplication
		err := tx.Where("application_id = ?", cmt.ApplicationID).First(&existing).Error
		switch {
		case err == nil:
			cmt.ID = existing.ID
			cmt.CreatedAt = existing.CreatedAt
			// document_paths is not part of the update set; keep the stored
			// value on the returned row so notifications can attach it.
			cmt.DocumentPaths = existing.DocumentPaths
			if err := tx.Model(&CMTApplication{}).
				Where("id = ?", existing.ID).
				Updates(map[string]interface{}{
					"candidate_name": cmt.CandidateName,
					"gender":         cmt.Gender,
					"marital_status": cmt.MaritalStatus,
					"gender_title":   cmt.GenderTitle,
					"overall_status": cmt.OverallStatus,
					"is_verify":      cmt.IsVerify,
					"extra":          cmt.Extra,
				}).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(cmt).Error; err != nil {
				return err
			}
		default:
			return err
		}

		for i := range annexures {
			annexures[i].CMTApplicationID = cmt.ID

			var prior AnnexureRecord
			err := tx.Where("cmt_application_id = ? AND service_table = ?",
				cmt.ID, annexures[i].ServiceTable).First(&prior).Error
			switch {
			case err == nil:
				if err := tx.Model(&AnnexureRecord{}).
					Where("id = ?", prior.ID).
					Updates(map[string]interface{}{
						"color_status": annexures[i].ColorStatus,
						"data":         annexures[i].Data,
					}).Error; err != nil {
					return err
				}
				annexures[i].ID = prior.ID
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := tx.Create(&annexures[i]).Error; err != nil {
					return err
				}
			default:
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cmt, nil
}

func (r *repository) AnnexuresByCMT(ctx context.Context, cmtID uint) ([]AnnexureRecord, error) {
	var rows []AnnexureRecord
	err := r.db.WithContext(ctx).
		Where("cmt_application_id = ?", cmtID).
		Order("service_table ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) AnnexureByTable(ctx context.Context, cmtID uint, serviceTable string) (*AnnexureRecord, error) {
	var row AnnexureRecord
	err := r.db.WithContext(ctx).
		Where("cmt_application_id = ? AND service_table = ?", cmtID, serviceTable).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAnnexureNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *repository) UpdateDocumentPaths(ctx context.Context, cmtID uint, paths string) error {
	result := r.db.WithContext(ctx).
		Model(&CMTApplication{}).
		Where("id = ?", cmtID).
		Update("document_paths", paths)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) TrackerRows(ctx context.Context) ([]TrackerRow, error) {
	var rows []TrackerRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT c.id   AS customer_id,
		       c.name AS customer_name,
		       c.client_unique_id,
		       COUNT(DISTINCT b.id)  AS branch_count,
		       COUNT(DISTINCT a.id)  AS application_count,
		       COUNT(DISTINCT a.id) FILTER (WHERE a.overall_status IN ('completed', 'complete')) AS completed_count,
		       COUNT(DISTINCT a.id) FILTER (WHERE a.overall_status NOT IN ('completed', 'complete')) AS pending_count
		FROM customers c
		LEFT JOIN branches b ON b.customer_id = c.id
		LEFT JOIN client_applications a ON a.customer_id = c.id
		WHERE c.status = 1
		GROUP BY c.id, c.name, c.client_unique_id
		ORDER BY c.name ASC
	`).Scan(&rows).Error
	return rows, err
}
