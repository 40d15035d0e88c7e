package repository

import (
	"context"

	"churchsite/internal/database"
	"churchsite/internal/model"
)

type ContactMessageRepository struct {
	db *database.DB
}

func NewContactMessageRepository(db *database.DB) *ContactMessageRepository {
	return &ContactMessageRepository{db: db}
}

func (r *ContactMessageRepository) Create(ctx context.Context, m *model.ContactMessage) error {
	return r.db.Gorm.WithContext(ctx).Create(m).Error
}

func (r *ContactMessageRepository) Get(ctx context.Context, id string) (*model.ContactMessage, error) {
	var m model.ContactMessage
	if err := r.db.Gorm.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, database.Translate(err)
	}
	return &m, nil
}

func (r *ContactMessageRepository) SetDelivery(ctx context.Context, id, status, errMsg string) error {
	return r.db.Gorm.WithContext(ctx).Model(&model.ContactMessage{}).
		Where("id = ?", id).
		Updates(map[string]any{"delivery": status, "delivery_err": errMsg}).Error
}
