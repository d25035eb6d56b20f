package services

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"catalog/internal/models"
	"catalog/internal/repositories"
	"catalog/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100

	// filterBatchSize is how many records one repository Filter call returns
	// while SearchProducts drains the cursor.
	filterBatchSize = 200
)

// ImageUpload is an image attached to a create or update request.
type ImageUpload struct {
	models.ImageMeta
	Body io.Reader
}

// ProductQuery combines the list filters with the requested page.
type ProductQuery struct {
	SearchTerm string
	CategoryID string
	MinPrice   *float64
	MaxPrice   *float64
	Page       int
	PageSize   int
}

// ProductPage is one page of search results.
type ProductPage struct {
	Products   []models.Product `json:"products"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	TotalPages int              `json:"totalPages"`
}

// InventoryStats summarises the stock of all live products.
type InventoryStats struct {
	Total      int             `json:"total"`
	InStock    int             `json:"inStock"`
	LowStock   int             `json:"lowStock"`
	OutOfStock int             `json:"outOfStock"`
	TotalValue decimal.Decimal `json:"totalValue"`
}

// ProductService handles business logic related to products.
type ProductService struct {
	repo         repositories.ProductRepository
	images       storage.ImageStore
	events       EventPublisher
	log          zerolog.Logger
	maxImageSize int64

	now   func() time.Time
	newID func() string
}

// NewProductService creates a new ProductService. events may be nil.
func NewProductService(repo repositories.ProductRepository, images storage.ImageStore, events EventPublisher, log zerolog.Logger, maxImageSize int64) *ProductService {
	return &ProductService{
		repo:         repo,
		images:       images,
		events:       events,
		log:          log.With().Str("component", "product_service").Logger(),
		maxImageSize: maxImageSize,
		now:          time.Now,
		newID:        func() string { return uuid.New().String() },
	}
}

// GetAllProducts retrieves all live products, newest first.
func (s *ProductService) GetAllProducts(ctx context.Context) ([]models.Product, error) {
	return s.repo.FindAll(ctx)
}

// GetProductByID retrieves a live product; soft-deleted ones are reported as not found.
func (s *ProductService) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if product.IsDeleted {
		return nil, &models.NotFoundError{Resource: "product", ID: id}
	}
	return product, nil
}

func (s *ProductService) GetProductsByCategory(ctx context.Context, categoryID string) ([]models.Product, error) {
	return s.repo.FindByCategory(ctx, categoryID)
}

func (s *ProductService) CountProductsByCategory(ctx context.Context, categoryID string) (int, error) {
	return s.repo.CountByCategory(ctx, categoryID)
}

// SearchProducts collects every match, orders it newest first and cuts the
// requested page out of it.
func (s *ProductService) SearchProducts(ctx context.Context, q ProductQuery) (*ProductPage, error) {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}

	filter := models.ProductFilter{
		SearchTerm: q.SearchTerm,
		CategoryID: q.CategoryID,
		MinPrice:   q.MinPrice,
		MaxPrice:   q.MaxPrice,
		Limit:      filterBatchSize,
	}

	var matches []models.Product
	for {
		res, err := s.repo.Filter(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to search products: %w", err)
		}
		matches = append(matches, res.Items...)
		if res.NextCursor == "" {
			break
		}
		filter.Cursor = res.NextCursor
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		}
		return matches[i].ID < matches[j].ID
	})

	page := &ProductPage{
		Products:   []models.Product{},
		Total:      len(matches),
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: int(math.Ceil(float64(len(matches)) / float64(q.PageSize))),
	}
	// Compare pages before multiplying so a huge page number cannot overflow.
	if q.Page <= page.TotalPages {
		start := (q.Page - 1) * q.PageSize
		end := start + q.PageSize
		if end > len(matches) {
			end = len(matches)
		}
		page.Products = matches[start:end]
	}
	return page, nil
}

func (s *ProductService) validate(form models.ProductForm, image *ImageUpload) error {
	messages := models.ValidateProduct(form)
	if image != nil {
		messages = append(messages, models.ValidateImage(image.ImageMeta, s.maxImageSize)...)
	}
	return models.AsValidationError(messages)
}

func (s *ProductService) upload(ctx context.Context, productID string, image *ImageUpload) (string, error) {
	key := storage.ImageKey(productID, image.Filename)
	url, err := s.images.Upload(ctx, key, image.Body, image.ContentType)
	if err != nil {
		return "", models.NewStorageError("upload image "+key, err)
	}
	return url, nil
}

// removeImage deletes a stored image without ever failing the caller.
func (s *ProductService) removeImage(ctx context.Context, url string) {
	key := s.images.KeyFromURL(url)
	if key == "" {
		return
	}
	if err := s.images.Delete(ctx, key); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to delete image")
	}
}

// CreateProduct validates the form, uploads the optional image and stores the
// product. An image uploaded before a failed write is left in place.
func (s *ProductService) CreateProduct(ctx context.Context, form models.ProductForm, image *ImageUpload) (*models.Product, error) {
	if err := s.validate(form, image); err != nil {
		return nil, err
	}

	id := s.newID()
	var imageURL *string
	if image != nil {
		url, err := s.upload(ctx, id, image)
		if err != nil {
			return nil, err
		}
		imageURL = &url
	}

	product := models.NewProductFromInput(form.Input(), id, imageURL, s.now())
	if err := s.repo.Create(ctx, &product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.log.Info().Str("product_id", product.ID).Msg("product created")
	publish(s.events, s.log, EventProductCreated, product)
	return &product, nil
}

// UpdateProduct replaces the editable fields of a live product. A new image
// replaces the old one, which is then deleted best-effort.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, form models.ProductForm, image *ImageUpload) (*models.Product, error) {
	if err := s.validate(form, image); err != nil {
		return nil, err
	}

	existing, err := s.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}

	in := form.Input()
	categoryID := ""
	if in.CategoryID != nil {
		categoryID = *in.CategoryID
	}
	update := models.ProductUpdate{
		Name:       &in.Name,
		Price:      &in.Price,
		Quantity:   &in.Quantity,
		CategoryID: &categoryID,
	}

	oldURL := existing.ImageURLValue()
	if image != nil {
		url, err := s.upload(ctx, id, image)
		if err != nil {
			return nil, err
		}
		update.ImageURL = &url
	}

	updated, err := s.repo.Update(ctx, id, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	if update.ImageURL != nil && oldURL != "" && s.images.KeyFromURL(oldURL) != s.images.KeyFromURL(*update.ImageURL) {
		s.removeImage(ctx, oldURL)
	}

	s.log.Info().Str("product_id", id).Msg("product updated")
	publish(s.events, s.log, EventProductUpdated, updated)
	return updated, nil
}

// DeleteProduct soft-deletes a live product.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	if _, err := s.GetProductByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	s.log.Info().Str("product_id", id).Msg("product deleted")
	publish(s.events, s.log, EventProductDeleted, map[string]string{"id": id})
	return nil
}

// PermanentlyDeleteProduct removes the product, soft-deleted or not, together
// with its stored image.
func (s *ProductService) PermanentlyDeleteProduct(ctx context.Context, id string) error {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if url := product.ImageURLValue(); url != "" {
		s.removeImage(ctx, url)
	}

	if err := s.repo.HardDelete(ctx, id); err != nil {
		return fmt.Errorf("failed to permanently delete product: %w", err)
	}

	s.log.Info().Str("product_id", id).Msg("product permanently deleted")
	publish(s.events, s.log, EventProductPurged, map[string]string{"id": id})
	return nil
}

// InventoryStats classifies every live product by stock status and sums the
// stock value.
func (s *ProductService) InventoryStats(ctx context.Context) (*InventoryStats, error) {
	products, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory: %w", err)
	}

	stats := &InventoryStats{Total: len(products), TotalValue: decimal.Zero}
	for _, p := range products {
		switch p.StockStatus() {
		case models.StockIn:
			stats.InStock++
		case models.StockLow:
			stats.LowStock++
		case models.StockOut:
			stats.OutOfStock++
		}
		if p.Quantity > 0 {
			value := decimal.NewFromFloat(p.Price).Mul(decimal.NewFromInt(int64(p.Quantity)))
			stats.TotalValue = stats.TotalValue.Add(value)
		}
	}
	stats.TotalValue = stats.TotalValue.Round(2)
	return stats, nil
}
