package handlers

import (
	"net/url"
	"strconv"
	"strings"

	"catalog/internal/services"

	"github.com/gofiber/fiber/v2"
)

// parseProductQuery reads the list filters and paging parameters. Missing or
// non-numeric page values fall back to the defaults; numeric values outside
// the allowed range and unparsable price bounds are rejected with 400.
func parseProductQuery(c *fiber.Ctx) (services.ProductQuery, error) {
	q := services.ProductQuery{
		SearchTerm: strings.TrimSpace(c.Query("search")),
		CategoryID: strings.TrimSpace(c.Query("categoryId")),
		Page:       services.DefaultPage,
		PageSize:   services.DefaultPageSize,
	}

	if page, ok := queryInt(c, "page"); ok {
		if page < 1 {
			return q, fiber.NewError(fiber.StatusBadRequest, "page must be at least 1")
		}
		q.Page = page
	}
	if size, ok := queryInt(c, "pageSize"); ok {
		if size < 1 || size > services.MaxPageSize {
			return q, fiber.NewError(fiber.StatusBadRequest, "pageSize must be between 1 and "+strconv.Itoa(services.MaxPageSize))
		}
		q.PageSize = size
	}

	var err error
	if q.MinPrice, err = queryPrice(c, "minPrice"); err != nil {
		return q, err
	}
	if q.MaxPrice, err = queryPrice(c, "maxPrice"); err != nil {
		return q, err
	}
	return q, nil
}

func queryInt(c *fiber.Ctx, key string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(c.Query(key)))
	if err != nil {
		return 0, false
	}
	return n, true
}

func queryPrice(c *fiber.Ctx, key string) (*float64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, key+" must be a number")
	}
	return &v, nil
}

func formatPrice(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// pageURL rebuilds the list URL for another page, keeping the active filters.
func pageURL(q services.ProductQuery, page int) string {
	values := url.Values{}
	if q.SearchTerm != "" {
		values.Set("search", q.SearchTerm)
	}
	if q.CategoryID != "" {
		values.Set("categoryId", q.CategoryID)
	}
	if q.MinPrice != nil {
		values.Set("minPrice", formatPrice(q.MinPrice))
	}
	if q.MaxPrice != nil {
		values.Set("maxPrice", formatPrice(q.MaxPrice))
	}
	if q.PageSize != services.DefaultPageSize {
		values.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	values.Set("page", strconv.Itoa(page))
	return "/products?" + values.Encode()
}
