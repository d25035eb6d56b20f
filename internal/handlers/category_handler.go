package handlers

import (
	"fmt"

	"catalog/internal/middleware"
	"catalog/internal/models"
	"catalog/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// CategoryHandler serves the category pages.
type CategoryHandler struct {
	categories *services.CategoryService
	sessions   *middleware.Sessions
	log        zerolog.Logger
}

func NewCategoryHandler(categories *services.CategoryService, sessions *middleware.Sessions, log zerolog.Logger) *CategoryHandler {
	return &CategoryHandler{
		categories: categories,
		sessions:   sessions,
		log:        log.With().Str("component", "category_handler").Logger(),
	}
}

func (h *CategoryHandler) RegisterRoutes(router fiber.Router) {
	admin := middleware.RequireAdmin()

	categoryRoutes := router.Group("/categories", middleware.RequireAuth())
	categoryRoutes.Get("/", h.ListCategories)
	categoryRoutes.Get("/api/all", h.AllCategories)
	categoryRoutes.Get("/create", admin, h.NewCategory)
	categoryRoutes.Post("/", admin, h.CreateCategory)
	categoryRoutes.Get("/:id/edit", admin, h.EditCategory)
	categoryRoutes.Post("/:id", admin, h.UpdateCategory)
	categoryRoutes.Post("/:id/delete", admin, h.DeleteCategory)
}

// ListCategories renders every category with its product count.
func (h *CategoryHandler) ListCategories(c *fiber.Ctx) error {
	return h.renderList(c, fiber.StatusOK, nil)
}

// AllCategories returns the categories as JSON, ordered by name.
func (h *CategoryHandler) AllCategories(c *fiber.Ctx) error {
	categories, err := h.categories.GetAllCategories(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"categories": categories,
	})
}

func (h *CategoryHandler) NewCategory(c *fiber.Ctx) error {
	return h.renderForm(c, fiber.StatusOK, "categories/create", "/categories", models.CategoryForm{}, nil)
}

func (h *CategoryHandler) CreateCategory(c *fiber.Ctx) error {
	var form models.CategoryForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid form data")
	}

	category, err := h.categories.CreateCategory(c.UserContext(), form)
	if err != nil {
		if status, messages, ok := formErrors(err); ok {
			return h.renderForm(c, status, "categories/create", "/categories", form, messages)
		}
		return err
	}

	h.flash(c, fmt.Sprintf("Category %q created successfully", category.Name))
	return redirect(c, "/categories")
}

func (h *CategoryHandler) EditCategory(c *fiber.Ctx) error {
	category, err := h.categories.GetCategoryByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	form := models.CategoryForm{Name: category.Name, Description: category.Description}
	return h.renderForm(c, fiber.StatusOK, "categories/edit", "/categories/"+category.ID, form, nil)
}

func (h *CategoryHandler) UpdateCategory(c *fiber.Ctx) error {
	id := c.Params("id")

	var form models.CategoryForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid form data")
	}

	category, err := h.categories.UpdateCategory(c.UserContext(), id, form)
	if err != nil {
		if status, messages, ok := formErrors(err); ok {
			return h.renderForm(c, status, "categories/edit", "/categories/"+id, form, messages)
		}
		return err
	}

	h.flash(c, fmt.Sprintf("Category %q updated successfully", category.Name))
	return redirect(c, "/categories")
}

// DeleteCategory removes a category. Products that pointed at it are left
// alone and counted in the flash message.
func (h *CategoryHandler) DeleteCategory(c *fiber.Ctx) error {
	result, err := h.categories.DeleteCategory(c.UserContext(), c.Params("id"))
	if err != nil {
		if status, messages, ok := formErrors(err); ok {
			return h.renderList(c, status, messages)
		}
		return err
	}

	message := "Category deleted successfully"
	if result.AffectedProducts > 0 {
		message = fmt.Sprintf("Category deleted. %d product(s) still reference it and are now uncategorized.", result.AffectedProducts)
	}
	h.flash(c, message)
	return redirect(c, "/categories")
}

func (h *CategoryHandler) renderList(c *fiber.Ctx, status int, errs []string) error {
	stats, err := h.categories.GetCategoryStats(c.UserContext())
	if err != nil {
		return err
	}
	return render(c, status, "categories/list", fiber.Map{
		"Title":      "Categories",
		"Categories": stats,
		"Errors":     errs,
	})
}

func (h *CategoryHandler) renderForm(c *fiber.Ctx, status int, view, action string, form models.CategoryForm, errs []string) error {
	return render(c, status, view, fiber.Map{
		"Title":  "Category",
		"Action": action,
		"Form":   form,
		"Errors": errs,
	})
}

func (h *CategoryHandler) flash(c *fiber.Ctx, message string) {
	if err := h.sessions.Flash(c, message); err != nil {
		h.log.Warn().Err(err).Msg("failed to store flash message")
	}
}
