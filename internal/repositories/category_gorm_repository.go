package repositories

import (
	"context"
	"errors"
	"time"

	"catalog/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMCategoryRepository is a GORM implementation of CategoryRepository.
type GORMCategoryRepository struct {
	db *gorm.DB
}

func NewGORMCategoryRepository(db *gorm.DB) *GORMCategoryRepository {
	return &GORMCategoryRepository{db: db}
}

func (r *GORMCategoryRepository) FindAll(ctx context.Context) ([]models.Category, error) {
	var records []models.CategoryRecord
	if err := r.db.WithContext(ctx).Order("name").Find(&records).Error; err != nil {
		return nil, models.NewStorageError("find all categories", err)
	}
	categories := make([]models.Category, 0, len(records))
	for _, rec := range records {
		categories = append(categories, models.CategoryFromRecord(rec))
	}
	return categories, nil
}

func (r *GORMCategoryRepository) FindByID(ctx context.Context, id string) (*models.Category, error) {
	return r.first(ctx, "id = ?", id, id)
}

func (r *GORMCategoryRepository) FindByName(ctx context.Context, name string) (*models.Category, error) {
	return r.first(ctx, "name = ?", name, name)
}

func (r *GORMCategoryRepository) first(ctx context.Context, query string, arg, key string) (*models.Category, error) {
	var rec models.CategoryRecord
	if err := r.db.WithContext(ctx).First(&rec, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("category", key)
		}
		return nil, models.NewStorageError("find category "+key, err)
	}
	c := models.CategoryFromRecord(rec)
	return &c, nil
}

func (r *GORMCategoryRepository) Create(ctx context.Context, category *models.Category) error {
	if category.ID == "" {
		category.ID = uuid.New().String()
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now()
	}
	rec := category.ToRecord()
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return writeError("create category", err)
	}
	return nil
}

func (r *GORMCategoryRepository) Update(ctx context.Context, id string, update models.CategoryUpdate) (*models.Category, error) {
	fields := map[string]interface{}{}
	if update.Name != nil {
		fields["name"] = *update.Name
	}
	if update.Description != nil {
		fields["description"] = *update.Description
	}
	if len(fields) == 0 {
		return r.FindByID(ctx, id)
	}

	res := r.db.WithContext(ctx).Model(&models.CategoryRecord{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, writeError("update category "+id, res.Error)
	}
	// RowsAffected is 0 on MySQL when nothing changed, so existence is
	// decided by the re-read.
	return r.FindByID(ctx, id)
}

func (r *GORMCategoryRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.CategoryRecord{}, "id = ?", id)
	if res.Error != nil {
		return models.NewStorageError("delete category "+id, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("category", id)
	}
	return nil
}
