package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"catalog/internal/models"
	"catalog/internal/repositories"
	"catalog/internal/services"
	"catalog/internal/storage"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const maxImageSize = 5 * 1024 * 1024

func validForm() models.ProductForm {
	return models.ProductForm{Name: "Espresso Machine", Price: "249.90", Quantity: "4", CategoryID: "cat-1"}
}

func pngUpload(name string, size int64) *services.ImageUpload {
	return &services.ImageUpload{
		ImageMeta: models.ImageMeta{Filename: name, ContentType: "image/png", Size: size},
		Body:      strings.NewReader("png"),
	}
}

func TestProductService_CreateProduct_InvalidInputWritesNothing(t *testing.T) {
	mockRepo := new(MockProductRepository)
	mockImages := new(MockImageStore)
	service := services.NewProductService(mockRepo, mockImages, nil, zerolog.Nop(), maxImageSize)

	tests := []struct {
		name  string
		form  models.ProductForm
		image *services.ImageUpload
	}{
		{"negative price", models.ProductForm{Name: "A", Price: "-1", Quantity: "1"}, nil},
		{"negative quantity", models.ProductForm{Name: "A", Price: "1", Quantity: "-3"}, nil},
		{"oversized image", validForm(), pngUpload("big.png", maxImageSize+1)},
		{"not an image", validForm(), &services.ImageUpload{ImageMeta: models.ImageMeta{Filename: "notes.txt", ContentType: "text/plain", Size: 10}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.CreateProduct(context.Background(), tt.form, tt.image)
			assert.True(t, models.IsValidation(err))
		})
	}

	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	mockImages.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProductService_CreateProduct_UploadsImageUnderProductKey(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockProductRepository)
	mockImages := new(MockImageStore)
	mockEvents := new(MockPublisher)
	service := services.NewProductService(mockRepo, mockImages, mockEvents, zerolog.Nop(), maxImageSize)

	var uploadedKey string
	mockImages.On("Upload", ctx, mock.AnythingOfType("string"), mock.Anything, "image/png").
		Run(func(args mock.Arguments) { uploadedKey = args.String(1) }).
		Return("https://cdn.example.com/img", nil).Once()
	mockRepo.On("Create", ctx, mock.AnythingOfType("*models.Product")).Return(nil).Once()
	mockEvents.On("Publish", services.EventProductCreated, mock.Anything).Return(nil).Once()

	product, err := service.CreateProduct(ctx, validForm(), pngUpload("photo.png", 1024))
	require.NoError(t, err)

	assert.Equal(t, "products/"+product.ID+"/photo.png", uploadedKey)
	assert.Equal(t, "https://cdn.example.com/img", product.ImageURLValue())
	assert.Equal(t, "Espresso Machine", product.Name)
	assert.Equal(t, 249.90, product.Price)
	assert.Equal(t, 4, product.Quantity)
	assert.Equal(t, "cat-1", product.CategoryIDValue())
	assert.False(t, product.CreatedAt.IsZero())

	mockRepo.AssertExpectations(t)
	mockImages.AssertExpectations(t)
	mockEvents.AssertExpectations(t)
}

func TestProductService_CreateProduct_UploadFailure(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockProductRepository)
	mockImages := new(MockImageStore)
	service := services.NewProductService(mockRepo, mockImages, nil, zerolog.Nop(), maxImageSize)

	mockImages.On("Upload", ctx, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("bucket unavailable")).Once()

	_, err := service.CreateProduct(ctx, validForm(), pngUpload("photo.png", 10))
	assert.True(t, models.IsStorage(err))
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestProductService_CreateProduct_WriteFailureLeavesImage(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockProductRepository)
	mockImages := new(MockImageStore)
	service := services.NewProductService(mockRepo, mockImages, nil, zerolog.Nop(), maxImageSize)

	mockImages.On("Upload", ctx, mock.Anything, mock.Anything, mock.Anything).Return("/uploads/x.png", nil).Once()
	storeErr := models.NewStorageError("create product", errors.New("disk full"))
	mockRepo.On("Create", ctx, mock.Anything).Return(storeErr).Once()

	_, err := service.CreateProduct(ctx, validForm(), pngUpload("x.png", 10))
	assert.ErrorIs(t, err, storeErr)
	mockImages.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestProductService_CreateThenFind_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMemoryProductRepository()
	images := storage.NewLocalImageStore(afero.NewMemMapFs(), "/uploads", "/uploads")
	service := services.NewProductService(repo, images, nil, zerolog.Nop(), maxImageSize)

	created, err := service.CreateProduct(ctx, validForm(), nil)
	require.NoError(t, err)

	found, err := service.GetProductByID(ctx, created.ID)
	require.NoError(t, err)

	assert.NotEmpty(t, found.ID)
	assert.False(t, found.CreatedAt.IsZero())
	assert.Equal(t, created.Name, found.Name)
	assert.Equal(t, created.Price, found.Price)
	assert.Equal(t, created.Quantity, found.Quantity)
	assert.Equal(t, created.CategoryID, found.CategoryID)
	assert.Nil(t, found.ImageURL)
	assert.False(t, found.IsDeleted)
}

func TestProductService_ProductsByCategory(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMemoryProductRepository()
	images := storage.NewLocalImageStore(afero.NewMemMapFs(), "/uploads", "/uploads")
	service := services.NewProductService(repo, images, nil, zerolog.Nop(), maxImageSize)

	inCategory, err := service.CreateProduct(ctx, validForm(), nil)
	require.NoError(t, err)
	deleted, err := service.CreateProduct(ctx, validForm(), nil)
	require.NoError(t, err)
	_, err = service.CreateProduct(ctx, models.ProductForm{Name: "Loose", Price: "1", Quantity: "1"}, nil)
	require.NoError(t, err)
	require.NoError(t, service.DeleteProduct(ctx, deleted.ID))

	products, err := service.GetProductsByCategory(ctx, "cat-1")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, inCategory.ID, products[0].ID)

	count, err := service.CountProductsByCategory(ctx, "cat-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestProductService_UpdateProduct_ReplacesImageBestEffort(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockProductRepository)
	mockImages := new(MockImageStore)
	service := services.NewProductService(mockRepo, mockImages, nil, zerolog.Nop(), maxImageSize)

	oldURL := "/uploads/products/p-1/old.png"
	newURL := "/uploads/products/p-1/new.png"
	existing := &models.Product{ID: "p-1", Name: "Old", ImageURL: &oldURL}

	mockRepo.On("FindByID", ctx, "p-1").Return(existing, nil).Once()
	mockImages.On("Upload", ctx, "products/p-1/new.png", mock.Anything, "image/png").Return(newURL, nil).Once()
	mockRepo.On("Update", ctx, "p-1", mock.MatchedBy(func(u models.ProductUpdate) bool {
		return u.ImageURL != nil && *u.ImageURL == newURL && *u.Name == "Espresso Machine" && *u.Quantity == 4
	})).Return(&models.Product{ID: "p-1", Name: "Espresso Machine", ImageURL: &newURL}, nil).Once()
	mockImages.On("KeyFromURL", oldURL).Return("products/p-1/old.png")
	mockImages.On("KeyFromURL", newURL).Return("products/p-1/new.png")
	mockImages.On("Delete", ctx, "products/p-1/old.png").Return(errors.New("access denied")).Once()

	updated, err := service.UpdateProduct(ctx, "p-1", validForm(), pngUpload("new.png", 10))
	require.NoError(t, err)
	assert.Equal(t, newURL, updated.ImageURLValue())

	mockRepo.AssertExpectations(t)
	mockImages.AssertExpectations(t)
}

func TestProductService_UpdateProduct_SameKeyKeepsImage(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockProductRepository)
	mockImages := new(MockImageStore)
	service := services.NewProductService(mockRepo, mockImages, nil, zerolog.Nop(), maxImageSize)

	url := "/uploads/products/p-1/photo.png"
	mockRepo.On("FindByID", ctx, "p-1").Return(&models.Product{ID: "p-1", ImageURL: &url}, nil).Once()
	mockImages.On("Upload", ctx, "products/p-1/photo.png", mock.Anything, mock.Anything).Return(url, nil).Once()
	mockRepo.On("Update", ctx, "p-1", mock.Anything).Return(&models.Product{ID: "p-1", ImageURL: &url}, nil).Once()
	mockImages.On("KeyFromURL", url).Return("products/p-1/photo.png")

	_, err := service.UpdateProduct(ctx, "p-1", validForm(), pngUpload("photo.png", 10))
	require.NoError(t, err)
	mockImages.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestProductService_UpdateProduct_ClearsCategory(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo, new(MockImageStore), nil, zerolog.Nop(), maxImageSize)

	form := validForm()
	form.CategoryID = ""
	mockRepo.On("FindByID", ctx, "p-1").Return(&models.Product{ID: "p-1"}, nil).Once()
	mockRepo.On("Update", ctx, "p-1", mock.MatchedBy(func(u models.ProductUpdate) bool {
		return u.CategoryID != nil && *u.CategoryID == "" && u.ImageURL == nil
	})).Return(&models.Product{ID: "p-1"}, nil).Once()

	_, err := service.UpdateProduct(ctx, "p-1", form, nil)
	require.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestProductService_UpdateProduct_InvalidWritesNothing(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo, new(MockImageStore), nil, zerolog.Nop(), maxImageSize)

	_, err := service.UpdateProduct(context.Background(), "p-1", models.ProductForm{Name: "A", Price: "-5", Quantity: "1"}, nil)
	assert.True(t, models.IsValidation(err))
	mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestProductService_SoftDeletedProductIsHidden(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo, new(MockImageStore), nil, zerolog.Nop(), maxImageSize)

	mockRepo.On("FindByID", ctx, "p-9").Return(&models.Product{ID: "p-9", IsDeleted: true}, nil)

	_, err := service.GetProductByID(ctx, "p-9")
	assert.True(t, models.IsNotFound(err))

	_, err = service.UpdateProduct(ctx, "p-9", validForm(), nil)
	assert.True(t, models.IsNotFound(err))

	assert.True(t, models.IsNotFound(service.DeleteProduct(ctx, "p-9")))
	mockRepo.AssertNotCalled(t, "SoftDelete", mock.Anything, mock.Anything)
}

func TestProductService_DeleteProduct(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockProductRepository)
	mockEvents := new(MockPublisher)
	service := services.NewProductService(mockRepo, new(MockImageStore), mockEvents, zerolog.Nop(), maxImageSize)

	mockRepo.On("FindByID", ctx, "p-1").Return(&models.Product{ID: "p-1"}, nil).Once()
	mockRepo.On("SoftDelete", ctx, "p-1").Return(nil).Once()
	mockEvents.On("Publish", services.EventProductDeleted, map[string]string{"id": "p-1"}).Return(errors.New("broker down")).Once()

	assert.NoError(t, service.DeleteProduct(ctx, "p-1"))
	mockRepo.AssertExpectations(t)
	mockEvents.AssertExpectations(t)
}

func TestProductService_PermanentlyDeleteProduct(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockProductRepository)
	mockImages := new(MockImageStore)
	service := services.NewProductService(mockRepo, mockImages, nil, zerolog.Nop(), maxImageSize)

	url := "/uploads/products/p-1/photo.png"
	mockRepo.On("FindByID", ctx, "p-1").Return(&models.Product{ID: "p-1", ImageURL: &url, IsDeleted: true}, nil).Once()
	mockImages.On("KeyFromURL", url).Return("products/p-1/photo.png").Once()
	mockImages.On("Delete", ctx, "products/p-1/photo.png").Return(errors.New("gone")).Once()
	mockRepo.On("HardDelete", ctx, "p-1").Return(nil).Once()

	assert.NoError(t, service.PermanentlyDeleteProduct(ctx, "p-1"))
	mockRepo.AssertExpectations(t)
	mockImages.AssertExpectations(t)

	mockRepo.On("FindByID", ctx, "missing").Return(nil, &models.NotFoundError{Resource: "product", ID: "missing"}).Once()
	assert.True(t, models.IsNotFound(service.PermanentlyDeleteProduct(ctx, "missing")))
}

func TestProductService_SearchProducts(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo, new(MockImageStore), nil, zerolog.Nop(), maxImageSize)

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	at := func(h int) time.Time { return base.Add(time.Duration(h) * time.Hour) }
	minPrice := 10.0

	firstBatch := &models.FilterResult{
		Items: []models.Product{
			{ID: "a", CreatedAt: at(1)},
			{ID: "b", CreatedAt: at(4)},
		},
		NextCursor: "b",
	}
	secondBatch := &models.FilterResult{
		Items: []models.Product{
			{ID: "c", CreatedAt: at(3)},
			{ID: "d", CreatedAt: at(4)},
			{ID: "e", CreatedAt: at(2)},
		},
	}

	filter := models.ProductFilter{SearchTerm: "Tea", MinPrice: &minPrice, Limit: 200}
	mockRepo.On("Filter", ctx, filter).Return(firstBatch, nil).Once()
	filter.Cursor = "b"
	mockRepo.On("Filter", ctx, filter).Return(secondBatch, nil).Once()

	page, err := service.SearchProducts(ctx, services.ProductQuery{SearchTerm: "Tea", MinPrice: &minPrice, Page: 2, PageSize: 2})
	require.NoError(t, err)

	// Newest first, ties broken by id: b, d, c, e, a.
	require.Len(t, page.Products, 2)
	assert.Equal(t, "c", page.Products[0].ID)
	assert.Equal(t, "e", page.Products[1].ID)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.PageSize)
	assert.Equal(t, 3, page.TotalPages)
	mockRepo.AssertExpectations(t)
}

func TestProductService_SearchProducts_DefaultsAndEmptyPage(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo, new(MockImageStore), nil, zerolog.Nop(), maxImageSize)

	mockRepo.On("Filter", ctx, models.ProductFilter{Limit: 200}).
		Return(&models.FilterResult{Items: []models.Product{{ID: "a"}}}, nil)

	page, err := service.SearchProducts(ctx, services.ProductQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 10, page.PageSize)
	assert.Len(t, page.Products, 1)

	page, err = service.SearchProducts(ctx, services.ProductQuery{Page: 5, PageSize: 10})
	require.NoError(t, err)
	assert.NotNil(t, page.Products)
	assert.Empty(t, page.Products)
	assert.Equal(t, 1, page.TotalPages)
}

func TestProductService_SearchProducts_HugePageIsEmpty(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMemoryProductRepository()
	images := storage.NewLocalImageStore(afero.NewMemMapFs(), "/uploads", "/uploads")
	service := services.NewProductService(repo, images, nil, zerolog.Nop(), maxImageSize)

	_, err := service.CreateProduct(ctx, validForm(), nil)
	require.NoError(t, err)

	page, err := service.SearchProducts(ctx, services.ProductQuery{Page: 1_000_000_000_000_000_000, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Products)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 1, page.TotalPages)
}

func TestProductService_InventoryStats(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo, new(MockImageStore), nil, zerolog.Nop(), maxImageSize)

	mockRepo.On("FindAll", ctx).Return([]models.Product{
		{ID: "1", Price: 10.10, Quantity: 0},
		{ID: "2", Price: 0.10, Quantity: 3},
		{ID: "3", Price: 19.99, Quantity: 5},
		{ID: "4", Price: 2.50, Quantity: 10},
	}, nil).Once()

	stats, err := service.InventoryStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.InStock)
	assert.Equal(t, 1, stats.LowStock)
	assert.Equal(t, 1, stats.OutOfStock)
	assert.Equal(t, "125.25", stats.TotalValue.StringFixed(2))
}
