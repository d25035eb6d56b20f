package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"catalog/internal/models"

	"github.com/google/uuid"
)

// MemoryProductRepository is an in-memory implementation of ProductRepository.
type MemoryProductRepository struct {
	products map[string]models.Product
	mu       sync.RWMutex
}

// NewMemoryProductRepository creates a new instance of MemoryProductRepository.
func NewMemoryProductRepository() *MemoryProductRepository {
	return &MemoryProductRepository{
		products: make(map[string]models.Product),
	}
}

func (r *MemoryProductRepository) collect(match func(models.Product) bool) []models.Product {
	r.mu.RLock()
	defer r.mu.RUnlock()

	productList := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		if match(p) {
			productList = append(productList, p)
		}
	}
	return productList
}

// FindAll returns all live products, newest first.
func (r *MemoryProductRepository) FindAll(ctx context.Context) ([]models.Product, error) {
	productList := r.collect(func(p models.Product) bool { return !p.IsDeleted })
	sort.Slice(productList, func(i, j int) bool {
		if !productList[i].CreatedAt.Equal(productList[j].CreatedAt) {
			return productList[i].CreatedAt.After(productList[j].CreatedAt)
		}
		return productList[i].ID < productList[j].ID
	})
	return productList, nil
}

// FindByID returns a product by its ID.
func (r *MemoryProductRepository) FindByID(ctx context.Context, id string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok {
		return nil, notFound("product", id)
	}
	return &product, nil
}

func (r *MemoryProductRepository) FindByCategory(ctx context.Context, categoryID string) ([]models.Product, error) {
	return r.collect(models.ProductFilter{CategoryID: categoryID}.Matches), nil
}

func (r *MemoryProductRepository) CountByCategory(ctx context.Context, categoryID string) (int, error) {
	return len(r.collect(models.ProductFilter{CategoryID: categoryID}.Matches)), nil
}

func (r *MemoryProductRepository) Filter(ctx context.Context, filter models.ProductFilter) (*models.FilterResult, error) {
	return pageByID(r.collect(filter.Matches), filter.Cursor, filter.Limit), nil
}

// Create adds a new product.
func (r *MemoryProductRepository) Create(ctx context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if _, exists := r.products[product.ID]; exists {
		return models.NewStorageError("create product", fmt.Errorf("product with ID %s already exists", product.ID))
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now()
	}
	if product.UpdatedAt.IsZero() {
		product.UpdatedAt = product.CreatedAt
	}
	r.products[product.ID] = *product
	return nil
}

// Update modifies an existing product.
func (r *MemoryProductRepository) Update(ctx context.Context, id string, update models.ProductUpdate) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[id]
	if !ok {
		return nil, notFound("product", id)
	}
	product = update.Apply(product)
	product.UpdatedAt = time.Now()
	r.products[id] = product
	return &product, nil
}

func (r *MemoryProductRepository) SoftDelete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[id]
	if !ok {
		return notFound("product", id)
	}
	product.IsDeleted = true
	product.UpdatedAt = time.Now()
	r.products[id] = product
	return nil
}

// HardDelete removes a product by its ID.
func (r *MemoryProductRepository) HardDelete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[id]; !ok {
		return notFound("product", id)
	}
	delete(r.products, id)
	return nil
}
