package repository

import (
	"context"

	"churchsite/internal/database"
	"churchsite/internal/model"
)

type SpecialEventTypeRepository struct {
	db *database.DB
}

func NewSpecialEventTypeRepository(db *database.DB) *SpecialEventTypeRepository {
	return &SpecialEventTypeRepository{db: db}
}

func (r *SpecialEventTypeRepository) List(ctx context.Context) ([]model.SpecialEventType, error) {
	var out []model.SpecialEventType
	err := r.db.Gorm.WithContext(ctx).Order("name ASC").Find(&out).Error
	return out, err
}

func (r *SpecialEventTypeRepository) Get(ctx context.Context, id uint) (*model.SpecialEventType, error) {
	var t model.SpecialEventType
	if err := r.db.Gorm.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, database.Translate(err)
	}
	return &t, nil
}

func (r *SpecialEventTypeRepository) GetMany(ctx context.Context, ids []uint) (map[uint]model.SpecialEventType, error) {
	out := make(map[uint]model.SpecialEventType, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []model.SpecialEventType
	if err := r.db.Gorm.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, t := range rows {
		out[t.ID] = t
	}
	return out, nil
}

func (r *SpecialEventTypeRepository) Create(ctx context.Context, t *model.SpecialEventType) error {
	return database.Translate(r.db.Gorm.WithContext(ctx).Create(t).Error)
}
