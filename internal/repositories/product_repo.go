package repositories

import (
	"context"

	"catalog/internal/models"
)

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	// FindAll returns every product that is not soft-deleted.
	FindAll(ctx context.Context) ([]models.Product, error)
	// FindByID returns the raw record, soft-deleted or not.
	FindByID(ctx context.Context, id string) (*models.Product, error)
	FindByCategory(ctx context.Context, categoryID string) ([]models.Product, error)
	CountByCategory(ctx context.Context, categoryID string) (int, error)
	Filter(ctx context.Context, filter models.ProductFilter) (*models.FilterResult, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, id string, update models.ProductUpdate) (*models.Product, error)
	SoftDelete(ctx context.Context, id string) error
	HardDelete(ctx context.Context, id string) error
}
