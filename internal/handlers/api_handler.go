package handlers

import (
	"catalog/internal/middleware"
	"catalog/internal/models"
	"catalog/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// APIHandler serves the bearer-token JSON API under /api/v1.
type APIHandler struct {
	products   *services.ProductService
	categories *services.CategoryService
	auth       *services.AuthService
	loginLimit fiber.Handler
	log        zerolog.Logger
}

func NewAPIHandler(products *services.ProductService, categories *services.CategoryService, auth *services.AuthService, loginLimit fiber.Handler, log zerolog.Logger) *APIHandler {
	if loginLimit == nil {
		loginLimit = func(c *fiber.Ctx) error { return c.Next() }
	}
	return &APIHandler{
		products:   products,
		categories: categories,
		auth:       auth,
		loginLimit: loginLimit,
		log:        log.With().Str("component", "api_handler").Logger(),
	}
}

func (h *APIHandler) RegisterRoutes(router fiber.Router) {
	authRequired := middleware.AuthRequired(h.auth, h.log)

	api := router.Group("/api/v1")
	api.Post("/auth/login", h.loginLimit, h.Login)
	api.Get("/products", authRequired, h.ListProducts)
	api.Get("/products/:id", authRequired, h.GetProduct)
	api.Get("/categories", authRequired, h.ListCategories)
}

// Login exchanges credentials for a signed token.
func (h *APIHandler) Login(c *fiber.Ctx) error {
	var form models.LoginForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := models.AsValidationError(models.ValidateLogin(form)); err != nil {
		return err
	}

	user, err := h.auth.Login(c.UserContext(), form.Username, form.Password)
	if err != nil {
		return err
	}
	token, err := h.auth.IssueToken(*user)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"token":   token,
		"user":    user,
	})
}

func (h *APIHandler) ListProducts(c *fiber.Ctx) error {
	q, err := parseProductQuery(c)
	if err != nil {
		return err
	}
	page, err := h.products.SearchProducts(c.UserContext(), q)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"products": page.Products,
		"pagination": fiber.Map{
			"total":      page.Total,
			"page":       page.Page,
			"pageSize":   page.PageSize,
			"totalPages": page.TotalPages,
		},
	})
}

func (h *APIHandler) GetProduct(c *fiber.Ctx) error {
	product, err := h.products.GetProductByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"product": product,
	})
}

func (h *APIHandler) ListCategories(c *fiber.Ctx) error {
	categories, err := h.categories.GetAllCategories(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"categories": categories,
	})
}
