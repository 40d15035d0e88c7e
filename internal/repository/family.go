package repository

import (
	"context"

	"churchsite/internal/database"
	"churchsite/internal/model"
)

type FamilyRepository struct {
	db *database.DB
}

func NewFamilyRepository(db *database.DB) *FamilyRepository {
	return &FamilyRepository{db: db}
}

func (r *FamilyRepository) List(ctx context.Context) ([]model.Family, error) {
	var out []model.Family
	err := r.db.Gorm.WithContext(ctx).Order("family_name ASC").Find(&out).Error
	return out, err
}

// Get loads a family with its active members.
func (r *FamilyRepository) Get(ctx context.Context, id uint) (*model.Family, error) {
	var f model.Family
	err := r.db.Gorm.WithContext(ctx).
		Preload("Members", "status <> ?", model.StatusInactive).
		First(&f, id).Error
	if err != nil {
		return nil, database.Translate(err)
	}
	return &f, nil
}

// FindByName matches case-insensitively.
func (r *FamilyRepository) FindByName(ctx context.Context, name string) (*model.Family, error) {
	var f model.Family
	if err := r.db.Gorm.WithContext(ctx).Where("LOWER(family_name) = LOWER(?)", name).First(&f).Error; err != nil {
		return nil, database.Translate(err)
	}
	return &f, nil
}

func (r *FamilyRepository) Create(ctx context.Context, f *model.Family) error {
	return database.Translate(r.db.Gorm.WithContext(ctx).Omit("Members").Create(f).Error)
}

func (r *FamilyRepository) Update(ctx context.Context, f *model.Family) error {
	return database.Translate(r.db.Gorm.WithContext(ctx).Omit("Members", "CreatedAt").Save(f).Error)
}

// Delete removes a family row. Members keep their rows.
func (r *FamilyRepository) Delete(ctx context.Context, id uint) error {
	return database.Translate(r.db.Gorm.WithContext(ctx).Delete(&model.Family{}, id).Error)
}
