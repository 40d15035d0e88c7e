package repository

import (
	"context"
	"strconv"

	"gorm.io/gorm"

	"churchsite/internal/database"
	"churchsite/internal/model"
)

type PatternRepository struct {
	db *database.DB
}

func NewPatternRepository(db *database.DB) *PatternRepository {
	return &PatternRepository{db: db}
}

// List returns patterns seen in the latest refresh, by day then time.
func (r *PatternRepository) List(ctx context.Context) ([]model.RecurringPatternSummary, error) {
	var out []model.RecurringPatternSummary
	err := r.db.Gorm.WithContext(ctx).
		Where("occurrence_count > 0").
		Order("day_of_week ASC").Order("time_of_day ASC").Order("title ASC").
		Find(&out).Error
	return out, err
}

// Rebuild stores a freshly derived set of patterns. Existing rows keep
// their IsExternal flag; rows not present in derived get a zero count and
// drop out of List, but are kept so the flag survives a gap in the feed.
func (r *PatternRepository) Rebuild(ctx context.Context, derived []model.RecurringPatternSummary) error {
	return r.db.Gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []model.RecurringPatternSummary
		if err := tx.Find(&existing).Error; err != nil {
			return err
		}
		byKey := make(map[string]model.RecurringPatternSummary, len(existing))
		for _, p := range existing {
			byKey[patternKey(p)] = p
		}

		seen := make(map[uint]bool, len(derived))
		for _, p := range derived {
			if old, ok := byKey[patternKey(p)]; ok {
				p.ID = old.ID
				p.IsExternal = old.IsExternal
				seen[old.ID] = true
				if err := tx.Save(&p).Error; err != nil {
					return err
				}
				continue
			}
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
		}

		for _, p := range existing {
			if seen[p.ID] || p.OccurrenceCount == 0 {
				continue
			}
			if err := tx.Model(&model.RecurringPatternSummary{}).
				Where("id = ?", p.ID).
				Update("occurrence_count", 0).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// SetExternal updates IsExternal on every pattern with the given key. A nil
// location matches only rows whose location IS NULL.
func (r *PatternRepository) SetExternal(ctx context.Context, title string, dayOfWeek int, timeOfDay string, location *string, isExternal bool) (int64, error) {
	q := r.db.Gorm.WithContext(ctx).Model(&model.RecurringPatternSummary{}).
		Where("title = ? AND day_of_week = ? AND time_of_day = ?", title, dayOfWeek, timeOfDay)
	if location == nil {
		q = q.Where("location IS NULL")
	} else {
		q = q.Where("location = ?", *location)
	}
	res := q.Update("is_external", isExternal)
	return res.RowsAffected, res.Error
}

func patternKey(p model.RecurringPatternSummary) string {
	loc := "\x00"
	if p.Location != nil {
		loc = *p.Location
	}
	return p.Title + "\x1f" + strconv.Itoa(p.DayOfWeek) + "\x1f" + p.TimeOfDay + "\x1f" + loc
}
