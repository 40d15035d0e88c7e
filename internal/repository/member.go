package repository

import (
	"context"

	"churchsite/internal/database"
	"churchsite/internal/model"
)

// MemberFilter narrows List. Zero values mean "any".
type MemberFilter struct {
	Status   model.Status
	FamilyID uint
	Search   string
}

type MemberRepository struct {
	db *database.DB
}

func NewMemberRepository(db *database.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

func (r *MemberRepository) List(ctx context.Context, f MemberFilter) ([]model.Member, error) {
	q := r.db.Gorm.WithContext(ctx)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.FamilyID != 0 {
		q = q.Where("family_id = ?", f.FamilyID)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("LOWER(first_name) LIKE LOWER(?) OR LOWER(last_name) LIKE LOWER(?) OR LOWER(email) LIKE LOWER(?)", like, like, like)
	}
	var out []model.Member
	err := q.Order("last_name ASC").Order("first_name ASC").Find(&out).Error
	return out, err
}

func (r *MemberRepository) Get(ctx context.Context, id uint) (*model.Member, error) {
	var m model.Member
	if err := r.db.Gorm.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, database.Translate(err)
	}
	return &m, nil
}

// FindByEmail matches case-insensitively.
func (r *MemberRepository) FindByEmail(ctx context.Context, email string) (*model.Member, error) {
	var m model.Member
	if err := r.db.Gorm.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&m).Error; err != nil {
		return nil, database.Translate(err)
	}
	return &m, nil
}

func (r *MemberRepository) Create(ctx context.Context, m *model.Member) error {
	if m.Status == "" {
		m.Status = model.StatusActive
	}
	return database.Translate(r.db.Gorm.WithContext(ctx).Create(m).Error)
}

func (r *MemberRepository) Update(ctx context.Context, m *model.Member) error {
	return database.Translate(r.db.Gorm.WithContext(ctx).Omit("CreatedAt").Save(m).Error)
}

func (r *MemberRepository) SetStatus(ctx context.Context, id uint, status model.Status) error {
	res := r.db.Gorm.WithContext(ctx).Model(&model.Member{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return database.ErrNotFound
	}
	return nil
}
