package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"catalog/internal/models"

	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// Set bundles the repositories of one backing store.
type Set struct {
	Products   ProductRepository
	Categories CategoryRepository
	Users      UserRepository

	close func(context.Context) error
}

// Close releases the underlying store connection, if any.
func (s *Set) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// NewGORMSet wires the GORM repositories onto db.
func NewGORMSet(db *gorm.DB) *Set {
	return &Set{
		Products:   NewGORMProductRepository(db),
		Categories: NewGORMCategoryRepository(db),
		Users:      NewGORMUserRepository(db),
		close: func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	}
}

// NewMemorySet wires the in-memory repositories.
func NewMemorySet() *Set {
	return &Set{
		Products:   NewMemoryProductRepository(),
		Categories: NewMemoryCategoryRepository(),
		Users:      NewMemoryUserRepository(),
	}
}

// Migrate creates or updates the SQL schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.ProductRecord{}, &models.CategoryRecord{}, &models.UserRecord{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func notFound(resource, id string) error {
	return &models.NotFoundError{Resource: resource, ID: id}
}

// pageByID orders products by id and cuts one cursor page out of them.
func pageByID(products []models.Product, cursor string, limit int) *models.FilterResult {
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })

	start := 0
	if cursor != "" {
		start = sort.Search(len(products), func(i int) bool { return products[i].ID > cursor })
	}
	products = products[start:]

	result := &models.FilterResult{Items: products}
	if limit > 0 && len(products) > limit {
		result.Items = products[:limit]
		result.NextCursor = products[limit-1].ID
	}
	return result
}

// writeError wraps a failed insert or update. Unique index violations also
// match models.ErrDuplicateKey.
func writeError(op string, err error) error {
	if err != nil && isUniqueViolation(err) {
		err = fmt.Errorf("%w: %w", models.ErrDuplicateKey, err)
	}
	return models.NewStorageError(op, err)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) || mongo.IsDuplicateKeyError(err) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "duplicate key value") || // postgres
		strings.Contains(msg, "Duplicate entry") // mysql
}
