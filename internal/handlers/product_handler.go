package handlers

import (
	"fmt"
	"strconv"

	"catalog/internal/middleware"
	"catalog/internal/models"
	"catalog/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// ProductHandler serves the product pages.
type ProductHandler struct {
	products   *services.ProductService
	categories *services.CategoryService
	sessions   *middleware.Sessions
	log        zerolog.Logger
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(products *services.ProductService, categories *services.CategoryService, sessions *middleware.Sessions, log zerolog.Logger) *ProductHandler {
	return &ProductHandler{
		products:   products,
		categories: categories,
		sessions:   sessions,
		log:        log.With().Str("component", "product_handler").Logger(),
	}
}

// RegisterRoutes registers the product routes. Reads need a signed-in user,
// changes need an admin.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	admin := middleware.RequireAdmin()

	productRoutes := router.Group("/products", middleware.RequireAuth())
	productRoutes.Get("/", h.ListProducts)
	productRoutes.Get("/api/inventory-stats", h.InventoryStats)
	productRoutes.Get("/create", admin, h.NewProduct)
	productRoutes.Post("/", admin, h.CreateProduct)
	productRoutes.Get("/:id", h.GetProduct)
	productRoutes.Get("/:id/edit", admin, h.EditProduct)
	productRoutes.Post("/:id", admin, h.UpdateProduct)
	productRoutes.Post("/:id/delete", admin, h.DeleteProduct)
	productRoutes.Post("/:id/destroy", admin, h.DestroyProduct)
}

// ListProducts renders one filtered page of products.
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	q, err := parseProductQuery(c)
	if err != nil {
		return err
	}

	page, err := h.products.SearchProducts(c.UserContext(), q)
	if err != nil {
		return err
	}
	categories, err := h.categories.GetAllCategories(c.UserContext())
	if err != nil {
		return err
	}

	names := make(map[string]string, len(categories))
	for _, cat := range categories {
		names[cat.ID] = cat.Name
	}

	data := fiber.Map{
		"Title":         "Products",
		"Page":          page,
		"Query":         q,
		"MinPrice":      formatPrice(q.MinPrice),
		"MaxPrice":      formatPrice(q.MaxPrice),
		"Categories":    categories,
		"CategoryNames": names,
	}
	if page.Page > 1 {
		data["PrevURL"] = pageURL(q, page.Page-1)
	}
	if page.Page < page.TotalPages {
		data["NextURL"] = pageURL(q, page.Page+1)
	}
	return render(c, fiber.StatusOK, "products/list", data)
}

// InventoryStats reports stock totals as JSON.
func (h *ProductHandler) InventoryStats(c *fiber.Ctx) error {
	stats, err := h.products.InventoryStats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"stats":   stats,
	})
}

// GetProduct renders a single product with its category, if it still exists.
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	product, err := h.products.GetProductByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}

	data := fiber.Map{
		"Title":   product.Name,
		"Product": product,
	}
	if product.CategoryID != nil {
		category, err := h.categories.GetCategoryByID(c.UserContext(), *product.CategoryID)
		switch {
		case err == nil:
			data["Category"] = category
		case !models.IsNotFound(err):
			return err
		}
	}
	return render(c, fiber.StatusOK, "products/detail", data)
}

// NewProduct renders the empty create form.
func (h *ProductHandler) NewProduct(c *fiber.Ctx) error {
	return h.renderCreate(c, fiber.StatusOK, models.ProductForm{}, nil)
}

// CreateProduct handles the create form submission.
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var form models.ProductForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid form data")
	}

	image, closeImage, err := imageUpload(c)
	if err != nil {
		return err
	}
	defer closeImage()

	product, err := h.products.CreateProduct(c.UserContext(), form, image)
	if err != nil {
		if status, messages, ok := formErrors(err); ok {
			return h.renderCreate(c, status, form, messages)
		}
		return err
	}

	h.flash(c, fmt.Sprintf("Product %q created successfully", product.Name))
	return redirect(c, "/products")
}

// EditProduct renders the edit form filled with the stored values.
func (h *ProductHandler) EditProduct(c *fiber.Ctx) error {
	product, err := h.products.GetProductByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}

	form := models.ProductForm{
		Name:       product.Name,
		Price:      strconv.FormatFloat(product.Price, 'f', -1, 64),
		Quantity:   strconv.Itoa(product.Quantity),
		CategoryID: product.CategoryIDValue(),
	}
	return h.renderEdit(c, fiber.StatusOK, product, form, nil)
}

// UpdateProduct handles the edit form submission. A new image replaces the old one.
func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	id := c.Params("id")

	var form models.ProductForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid form data")
	}

	image, closeImage, err := imageUpload(c)
	if err != nil {
		return err
	}
	defer closeImage()

	product, err := h.products.UpdateProduct(c.UserContext(), id, form, image)
	if err != nil {
		status, messages, ok := formErrors(err)
		if !ok {
			return err
		}
		existing, findErr := h.products.GetProductByID(c.UserContext(), id)
		if findErr != nil {
			return findErr
		}
		return h.renderEdit(c, status, existing, form, messages)
	}

	h.flash(c, fmt.Sprintf("Product %q updated successfully", product.Name))
	return redirect(c, "/products/"+product.ID)
}

// DeleteProduct soft-deletes a product.
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	if err := h.products.DeleteProduct(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	h.flash(c, "Product deleted successfully")
	return redirect(c, "/products")
}

// DestroyProduct removes a product and its image for good.
func (h *ProductHandler) DestroyProduct(c *fiber.Ctx) error {
	if err := h.products.PermanentlyDeleteProduct(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	h.flash(c, "Product permanently deleted")
	return redirect(c, "/products")
}

func (h *ProductHandler) renderCreate(c *fiber.Ctx, status int, form models.ProductForm, errs []string) error {
	categories, err := h.categories.GetAllCategories(c.UserContext())
	if err != nil {
		return err
	}
	return render(c, status, "products/create", fiber.Map{
		"Title":      "New product",
		"Action":     "/products",
		"Form":       form,
		"Categories": categories,
		"Errors":     errs,
	})
}

func (h *ProductHandler) renderEdit(c *fiber.Ctx, status int, product *models.Product, form models.ProductForm, errs []string) error {
	categories, err := h.categories.GetAllCategories(c.UserContext())
	if err != nil {
		return err
	}
	return render(c, status, "products/edit", fiber.Map{
		"Title":      "Edit " + product.Name,
		"Action":     "/products/" + product.ID,
		"Product":    product,
		"ImageURL":   product.ImageURLValue(),
		"Form":       form,
		"Categories": categories,
		"Errors":     errs,
	})
}

func (h *ProductHandler) flash(c *fiber.Ctx, message string) {
	if err := h.sessions.Flash(c, message); err != nil {
		h.log.Warn().Err(err).Msg("failed to store flash message")
	}
}

// imageUpload returns the optional "image" file of a multipart form. A
// missing file or an empty file name means no image was chosen.
func imageUpload(c *fiber.Ctx) (*services.ImageUpload, func(), error) {
	noop := func() {}

	header, err := c.FormFile("image")
	if err != nil || header == nil || header.Filename == "" {
		return nil, noop, nil
	}

	file, err := header.Open()
	if err != nil {
		return nil, noop, fmt.Errorf("failed to open uploaded image: %w", err)
	}
	upload := &services.ImageUpload{
		ImageMeta: models.ImageMeta{
			Filename:    header.Filename,
			ContentType: header.Header.Get(fiber.HeaderContentType),
			Size:        header.Size,
		},
		Body: file,
	}
	return upload, func() { _ = file.Close() }, nil
}
