package services

import (
	"context"
	"fmt"
	"time"

	"catalog/internal/models"
	"catalog/internal/repositories"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DeletePolicy decides whether a category still referenced by products may be deleted.
type DeletePolicy string

const (
	// DeletePolicyAllow deletes anyway and reports the number of orphaned products.
	DeletePolicyAllow DeletePolicy = "allow"
	// DeletePolicyBlock refuses with a CategoryInUseError.
	DeletePolicyBlock DeletePolicy = "block"
)

// DeleteCategoryResult reports how many live products still point at the
// deleted category.
type DeleteCategoryResult struct {
	AffectedProducts int `json:"affectedProducts"`
}

// CategoryService handles business logic related to categories.
type CategoryService struct {
	repo     repositories.CategoryRepository
	products repositories.ProductRepository
	events   EventPublisher
	log      zerolog.Logger
	policy   DeletePolicy

	now   func() time.Time
	newID func() string
}

func NewCategoryService(repo repositories.CategoryRepository, products repositories.ProductRepository, events EventPublisher, log zerolog.Logger, policy DeletePolicy) *CategoryService {
	if policy != DeletePolicyBlock {
		policy = DeletePolicyAllow
	}
	return &CategoryService{
		repo:     repo,
		products: products,
		events:   events,
		log:      log.With().Str("component", "category_service").Logger(),
		policy:   policy,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

func (s *CategoryService) GetAllCategories(ctx context.Context) ([]models.Category, error) {
	return s.repo.FindAll(ctx)
}

func (s *CategoryService) GetCategoryByID(ctx context.Context, id string) (*models.Category, error) {
	return s.repo.FindByID(ctx, id)
}

// GetCategoryStats pairs every category with its live product count.
func (s *CategoryService) GetCategoryStats(ctx context.Context) ([]models.CategoryWithCount, error) {
	categories, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	stats := make([]models.CategoryWithCount, 0, len(categories))
	for _, c := range categories {
		count, err := s.products.CountByCategory(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count products of category %s: %w", c.ID, err)
		}
		stats = append(stats, models.CategoryWithCount{Category: c, ProductCount: count})
	}
	return stats, nil
}

// ensureUniqueName fails with a DuplicateNameError when another category
// already uses name. selfID is ignored so an update may keep its own name.
func (s *CategoryService) ensureUniqueName(ctx context.Context, name, selfID string) error {
	existing, err := s.repo.FindByName(ctx, name)
	switch {
	case models.IsNotFound(err):
		return nil
	case err != nil:
		return err
	case existing.ID != selfID:
		return &models.DuplicateNameError{Resource: "Category", Name: name}
	}
	return nil
}

func (s *CategoryService) CreateCategory(ctx context.Context, form models.CategoryForm) (*models.Category, error) {
	if err := models.AsValidationError(models.ValidateCategory(form)); err != nil {
		return nil, err
	}
	form = form.Trimmed()
	if err := s.ensureUniqueName(ctx, form.Name, ""); err != nil {
		return nil, err
	}

	category := models.NewCategoryFromInput(form, s.newID(), s.now())
	if err := s.repo.Create(ctx, &category); err != nil {
		if models.IsDuplicateKey(err) {
			return nil, &models.DuplicateNameError{Resource: "Category", Name: form.Name}
		}
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	s.log.Info().Str("category_id", category.ID).Str("name", category.Name).Msg("category created")
	publish(s.events, s.log, EventCategoryCreated, category)
	return &category, nil
}

func (s *CategoryService) UpdateCategory(ctx context.Context, id string, form models.CategoryForm) (*models.Category, error) {
	if err := models.AsValidationError(models.ValidateCategory(form)); err != nil {
		return nil, err
	}
	form = form.Trimmed()

	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	if err := s.ensureUniqueName(ctx, form.Name, id); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, id, models.CategoryUpdate{Name: &form.Name, Description: &form.Description})
	if err != nil {
		if models.IsDuplicateKey(err) {
			return nil, &models.DuplicateNameError{Resource: "Category", Name: form.Name}
		}
		return nil, fmt.Errorf("failed to update category: %w", err)
	}

	s.log.Info().Str("category_id", id).Msg("category updated")
	publish(s.events, s.log, EventCategoryUpdated, updated)
	return updated, nil
}

// DeleteCategory removes the category without touching its products. Under
// the allow policy the products keep their now dangling category id.
func (s *CategoryService) DeleteCategory(ctx context.Context, id string) (*DeleteCategoryResult, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}

	count, err := s.products.CountByCategory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count products of category %s: %w", id, err)
	}
	if count > 0 && s.policy == DeletePolicyBlock {
		return nil, &models.CategoryInUseError{ID: id, Products: count}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to delete category: %w", err)
	}

	s.log.Info().Str("category_id", id).Int("affected_products", count).Msg("category deleted")
	publish(s.events, s.log, EventCategoryDeleted, map[string]interface{}{"id": id, "affectedProducts": count})
	return &DeleteCategoryResult{AffectedProducts: count}, nil
}
