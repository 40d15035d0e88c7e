package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"churchsite/internal/database"
	"churchsite/internal/model"
)

type CalendarRecordRepository struct {
	db *database.DB
}

func NewCalendarRecordRepository(db *database.DB) *CalendarRecordRepository {
	return &CalendarRecordRepository{db: db}
}

func (r *CalendarRecordRepository) GetByProviderID(ctx context.Context, providerID string) (*model.CalendarEventRecord, error) {
	var rec model.CalendarEventRecord
	if err := r.db.Gorm.WithContext(ctx).Where("provider_event_id = ?", providerID).First(&rec).Error; err != nil {
		return nil, database.Translate(err)
	}
	return &rec, nil
}

// Upsert looks the record up by provider id inside a transaction. If it
// exists, mutate is applied to it and it is saved; otherwise mutate is
// applied to the record returned by init and it is inserted. The returned
// bool reports whether a row was created.
func (r *CalendarRecordRepository) Upsert(
	ctx context.Context,
	providerID string,
	init func() model.CalendarEventRecord,
	mutate func(*model.CalendarEventRecord),
) (*model.CalendarEventRecord, bool, error) {
	var (
		out     model.CalendarEventRecord
		created bool
	)
	err := r.db.Gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("provider_event_id = ?", providerID).First(&out).Error
		switch {
		case err == nil:
			mutate(&out)
			out.ProviderEventID = providerID
			return tx.Save(&out).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			out = init()
			out.ProviderEventID = providerID
			if out.Status == "" {
				out.Status = model.StatusActive
			}
			mutate(&out)
			created = true
			return tx.Create(&out).Error
		default:
			return err
		}
	})
	if err != nil {
		return nil, false, err
	}
	return &out, created, nil
}

// List returns every record, active or not.
func (r *CalendarRecordRepository) List(ctx context.Context) ([]model.CalendarEventRecord, error) {
	var recs []model.CalendarEventRecord
	err := r.db.Gorm.WithContext(ctx).Order("start_time ASC").Find(&recs).Error
	return recs, err
}

// ListSpecial returns active special-event records ordered by start.
// External records are left out unless includeExternal is set.
func (r *CalendarRecordRepository) ListSpecial(ctx context.Context, includeExternal bool) ([]model.CalendarEventRecord, error) {
	q := r.db.Gorm.WithContext(ctx).
		Where("is_special_event = ?", true).
		Where("status <> ?", model.StatusInactive)
	if !includeExternal {
		q = q.Where("is_external = ?", false)
	}
	var recs []model.CalendarEventRecord
	err := q.Order("start_time ASC").Find(&recs).Error
	return recs, err
}

// SetExternalByIDs flips IsExternal on the given record ids.
func (r *CalendarRecordRepository) SetExternalByIDs(ctx context.Context, ids []uint, isExternal bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.Gorm.WithContext(ctx).Model(&model.CalendarEventRecord{}).
		Where("id IN ?", ids).
		Update("is_external", isExternal)
	return res.RowsAffected, res.Error
}
