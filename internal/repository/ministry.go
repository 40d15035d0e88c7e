package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"churchsite/internal/database"
	"churchsite/internal/model"
)

type MinistryRepository struct {
	db *database.DB
}

func NewMinistryRepository(db *database.DB) *MinistryRepository {
	return &MinistryRepository{db: db}
}

func (r *MinistryRepository) List(ctx context.Context, activeOnly bool) ([]model.Ministry, error) {
	q := r.db.Gorm.WithContext(ctx)
	if activeOnly {
		q = q.Where("status <> ?", model.StatusInactive)
	}
	var out []model.Ministry
	err := q.Order("name ASC").Find(&out).Error
	return out, err
}

func (r *MinistryRepository) Get(ctx context.Context, id uint) (*model.Ministry, error) {
	var m model.Ministry
	if err := r.db.Gorm.WithContext(ctx).Preload("Leaders").First(&m, id).Error; err != nil {
		return nil, database.Translate(err)
	}
	return &m, nil
}

// GetMany loads ministries by id, keyed by id. Missing ids are absent.
func (r *MinistryRepository) GetMany(ctx context.Context, ids []uint) (map[uint]model.Ministry, error) {
	out := make(map[uint]model.Ministry, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []model.Ministry
	if err := r.db.Gorm.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, m := range rows {
		out[m.ID] = m
	}
	return out, nil
}

// FindByName matches case-insensitively.
func (r *MinistryRepository) FindByName(ctx context.Context, name string) (*model.Ministry, error) {
	var m model.Ministry
	if err := r.db.Gorm.WithContext(ctx).Where("LOWER(name) = LOWER(?)", name).First(&m).Error; err != nil {
		return nil, database.Translate(err)
	}
	return &m, nil
}

func (r *MinistryRepository) Create(ctx context.Context, m *model.Ministry) error {
	if m.Status == "" {
		m.Status = model.StatusActive
	}
	return database.Translate(r.db.Gorm.WithContext(ctx).Omit("Leaders").Create(m).Error)
}

func (r *MinistryRepository) Update(ctx context.Context, m *model.Ministry) error {
	return database.Translate(r.db.Gorm.WithContext(ctx).Omit("Leaders", "CreatedAt").Save(m).Error)
}

func (r *MinistryRepository) SetStatus(ctx context.Context, id uint, status model.Status) error {
	res := r.db.Gorm.WithContext(ctx).Model(&model.Ministry{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return database.ErrNotFound
	}
	return nil
}

// AddLeader links a member to a ministry; an existing link gets the new role.
func (r *MinistryRepository) AddLeader(ctx context.Context, ministryID, memberID uint, role string) error {
	return r.db.Gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		leader := model.MinistryLeader{MinistryID: ministryID, MemberID: memberID, Role: role}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ministry_id"}, {Name: "member_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"role"}),
		}).Create(&leader).Error
	})
}
