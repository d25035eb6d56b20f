package repositories

import (
	"context"
	"errors"
	"time"

	"catalog/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

func (r *GORMProductRepository) live(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.ProductRecord{}).Where("is_deleted = ?", false)
}

func (r *GORMProductRepository) find(tx *gorm.DB, op string) ([]models.Product, error) {
	var records []models.ProductRecord
	if err := tx.Find(&records).Error; err != nil {
		return nil, models.NewStorageError(op, err)
	}
	products := make([]models.Product, 0, len(records))
	for _, rec := range records {
		products = append(products, models.ProductFromRecord(rec))
	}
	return products, nil
}

// FindAll retrieves all live products from the database.
func (r *GORMProductRepository) FindAll(ctx context.Context) ([]models.Product, error) {
	return r.find(r.live(ctx).Order("created_at DESC").Order("id"), "find all products")
}

// FindByID retrieves a single product by its ID, including soft-deleted ones.
func (r *GORMProductRepository) FindByID(ctx context.Context, id string) (*models.Product, error) {
	var rec models.ProductRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("product", id)
		}
		return nil, models.NewStorageError("find product "+id, err)
	}
	p := models.ProductFromRecord(rec)
	return &p, nil
}

func (r *GORMProductRepository) FindByCategory(ctx context.Context, categoryID string) ([]models.Product, error) {
	return r.find(r.live(ctx).Where("category_id = ?", categoryID).Order("created_at DESC"), "find products by category")
}

func (r *GORMProductRepository) CountByCategory(ctx context.Context, categoryID string) (int, error) {
	var count int64
	if err := r.live(ctx).Where("category_id = ?", categoryID).Count(&count).Error; err != nil {
		return 0, models.NewStorageError("count products by category", err)
	}
	return int(count), nil
}

// Filter combines the supplied predicates with AND. Name matching is a
// case-sensitive substring test on every dialect but MySQL, whose default
// collation is case-insensitive.
func (r *GORMProductRepository) Filter(ctx context.Context, filter models.ProductFilter) (*models.FilterResult, error) {
	tx := r.live(ctx)
	if filter.SearchTerm != "" {
		if r.db.Dialector.Name() == "postgres" {
			tx = tx.Where("strpos(name, ?) > 0", filter.SearchTerm)
		} else {
			tx = tx.Where("instr(name, ?) > 0", filter.SearchTerm)
		}
	}
	if filter.CategoryID != "" {
		tx = tx.Where("category_id = ?", filter.CategoryID)
	}
	if filter.MinPrice != nil {
		tx = tx.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		tx = tx.Where("price <= ?", *filter.MaxPrice)
	}
	if filter.Cursor != "" {
		tx = tx.Where("id > ?", filter.Cursor)
	}
	tx = tx.Order("id")
	if filter.Limit > 0 {
		tx = tx.Limit(filter.Limit + 1)
	}

	products, err := r.find(tx, "filter products")
	if err != nil {
		return nil, err
	}
	return pageByID(products, "", filter.Limit), nil
}

// Create creates a new product in the database.
func (r *GORMProductRepository) Create(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	now := time.Now()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	if product.UpdatedAt.IsZero() {
		product.UpdatedAt = product.CreatedAt
	}
	rec := product.ToRecord()
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return models.NewStorageError("create product", err)
	}
	return nil
}

// Update applies the non-nil fields of update and returns the stored result.
func (r *GORMProductRepository) Update(ctx context.Context, id string, update models.ProductUpdate) (*models.Product, error) {
	fields := map[string]interface{}{"updated_at": time.Now()}
	if update.Name != nil {
		fields["name"] = *update.Name
	}
	if update.Price != nil {
		fields["price"] = *update.Price
	}
	if update.Quantity != nil {
		fields["quantity"] = *update.Quantity
	}
	if update.CategoryID != nil {
		fields["category_id"] = nullable(*update.CategoryID)
	}
	if update.ImageURL != nil {
		fields["image_url"] = nullable(*update.ImageURL)
	}

	res := r.db.WithContext(ctx).Model(&models.ProductRecord{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, models.NewStorageError("update product "+id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, notFound("product", id)
	}
	return r.FindByID(ctx, id)
}

// SoftDelete flags the product as deleted; the row stays in place.
func (r *GORMProductRepository) SoftDelete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&models.ProductRecord{}).Where("id = ?", id).
		Updates(map[string]interface{}{"is_deleted": true, "updated_at": time.Now()})
	if res.Error != nil {
		return models.NewStorageError("soft delete product "+id, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("product", id)
	}
	return nil
}

// HardDelete removes the row permanently.
func (r *GORMProductRepository) HardDelete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.ProductRecord{}, "id = ?", id)
	if res.Error != nil {
		return models.NewStorageError("delete product "+id, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("product", id)
	}
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
