package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"churchsite/internal/database"
	"churchsite/internal/model"
)

const cacheMetaID = 1

type CachedEventRepository struct {
	db *database.DB
}

func NewCachedEventRepository(db *database.DB) *CachedEventRepository {
	return &CachedEventRepository{db: db}
}

// ReplaceWindow deletes every cached event starting in [start, end) and
// inserts events in their place, in one transaction. Events already cached
// under the same provider id outside the window are replaced too.
func (r *CachedEventRepository) ReplaceWindow(ctx context.Context, start, end time.Time, events []model.CachedEvent) error {
	return r.db.Gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("start_time >= ? AND start_time < ?", start.UTC(), end.UTC()).
			Delete(&model.CachedEvent{}).Error; err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		ids := make([]string, 0, len(events))
		for _, ev := range events {
			ids = append(ids, ev.ProviderID)
		}
		for _, chunk := range chunkStrings(ids, 500) {
			if err := tx.Where("provider_id IN ?", chunk).Delete(&model.CachedEvent{}).Error; err != nil {
				return err
			}
		}
		return tx.CreateInBatches(events, 200).Error
	})
}

// ListWindow returns cached events starting in [start, end), ordered by start.
func (r *CachedEventRepository) ListWindow(ctx context.Context, start, end time.Time) ([]model.CachedEvent, error) {
	var events []model.CachedEvent
	err := r.db.Gorm.WithContext(ctx).
		Where("start_time >= ? AND start_time < ?", start.UTC(), end.UTC()).
		Order("start_time ASC").
		Find(&events).Error
	return events, err
}

// All returns the full cache, ordered by start.
func (r *CachedEventRepository) All(ctx context.Context) ([]model.CachedEvent, error) {
	var events []model.CachedEvent
	err := r.db.Gorm.WithContext(ctx).Order("start_time ASC").Find(&events).Error
	return events, err
}

func (r *CachedEventRepository) Get(ctx context.Context, providerID string) (*model.CachedEvent, error) {
	var ev model.CachedEvent
	if err := r.db.Gorm.WithContext(ctx).Where("provider_id = ?", providerID).First(&ev).Error; err != nil {
		return nil, database.Translate(err)
	}
	return &ev, nil
}

// Meta returns the refresh bookkeeping row, or database.ErrNotFound before
// the first refresh attempt.
func (r *CachedEventRepository) Meta(ctx context.Context) (*model.CacheMeta, error) {
	var meta model.CacheMeta
	if err := r.db.Gorm.WithContext(ctx).First(&meta, cacheMetaID).Error; err != nil {
		return nil, database.Translate(err)
	}
	return &meta, nil
}

func (r *CachedEventRepository) SaveMeta(ctx context.Context, meta *model.CacheMeta) error {
	meta.ID = cacheMetaID
	return r.db.Gorm.WithContext(ctx).Save(meta).Error
}

func chunkStrings(in []string, size int) [][]string {
	var out [][]string
	for len(in) > size {
		out = append(out, in[:size])
		in = in[size:]
	}
	if len(in) > 0 {
		out = append(out, in)
	}
	return out
}
