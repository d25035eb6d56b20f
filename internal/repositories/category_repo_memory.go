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

// MemoryCategoryRepository is an in-memory implementation of CategoryRepository.
type MemoryCategoryRepository struct {
	categories map[string]models.Category
	mu         sync.RWMutex
}

func NewMemoryCategoryRepository() *MemoryCategoryRepository {
	return &MemoryCategoryRepository{
		categories: make(map[string]models.Category),
	}
}

func (r *MemoryCategoryRepository) FindAll(ctx context.Context) ([]models.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]models.Category, 0, len(r.categories))
	for _, c := range r.categories {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

func (r *MemoryCategoryRepository) FindByID(ctx context.Context, id string) (*models.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.categories[id]
	if !ok {
		return nil, notFound("category", id)
	}
	return &c, nil
}

func (r *MemoryCategoryRepository) FindByName(ctx context.Context, name string) (*models.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.categories {
		if c.Name == name {
			found := c
			return &found, nil
		}
	}
	return nil, notFound("category", name)
}

func (r *MemoryCategoryRepository) Create(ctx context.Context, category *models.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if category.ID == "" {
		category.ID = uuid.New().String()
	}
	if _, exists := r.categories[category.ID]; exists {
		return models.NewStorageError("create category", fmt.Errorf("category with ID %s already exists", category.ID))
	}
	if r.nameTaken(category.Name, category.ID) {
		return models.NewStorageError("create category", fmt.Errorf("%w: name %s", models.ErrDuplicateKey, category.Name))
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now()
	}
	r.categories[category.ID] = *category
	return nil
}

func (r *MemoryCategoryRepository) Update(ctx context.Context, id string, update models.CategoryUpdate) (*models.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.categories[id]
	if !ok {
		return nil, notFound("category", id)
	}
	c = update.Apply(c)
	if r.nameTaken(c.Name, id) {
		return nil, models.NewStorageError("update category "+id, fmt.Errorf("%w: name %s", models.ErrDuplicateKey, c.Name))
	}
	r.categories[id] = c
	return &c, nil
}

// nameTaken mirrors the unique index on categories.name. Callers hold mu.
func (r *MemoryCategoryRepository) nameTaken(name, selfID string) bool {
	for id, c := range r.categories {
		if id != selfID && c.Name == name {
			return true
		}
	}
	return false
}

func (r *MemoryCategoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.categories[id]; !ok {
		return notFound("category", id)
	}
	delete(r.categories, id)
	return nil
}
