package repositories

import (
	"context"
	"errors"
	"time"

	"catalog/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

func (r *GORMUserRepository) list(tx *gorm.DB, op string) ([]models.User, error) {
	var records []models.UserRecord
	if err := tx.Order("username").Find(&records).Error; err != nil {
		return nil, models.NewStorageError(op, err)
	}
	users := make([]models.User, 0, len(records))
	for _, rec := range records {
		users = append(users, models.UserFromRecord(rec))
	}
	return users, nil
}

func (r *GORMUserRepository) FindAll(ctx context.Context) ([]models.User, error) {
	return r.list(r.db.WithContext(ctx), "find all users")
}

func (r *GORMUserRepository) FindByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	return r.list(r.db.WithContext(ctx).Where("role = ?", string(role)), "find users by role")
}

// FindByID retrieves a user by their ID from the database.
func (r *GORMUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.first(ctx, "id = ?", id)
}

// FindByUsername retrieves a user by their username from the database.
func (r *GORMUserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.first(ctx, "username = ?", username)
}

func (r *GORMUserRepository) first(ctx context.Context, query, arg string) (*models.User, error) {
	var rec models.UserRecord
	if err := r.db.WithContext(ctx).First(&rec, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("user", arg)
		}
		return nil, models.NewStorageError("find user "+arg, err)
	}
	u := models.UserFromRecord(rec)
	return &u, nil
}

// Create creates a new user in the database.
func (r *GORMUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	rec := user.ToRecord()
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return writeError("create user", err)
	}
	return nil
}

func (r *GORMUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res := r.db.WithContext(ctx).Model(&models.UserRecord{}).Where("id = ?", id).Update("password", passwordHash)
	if res.Error != nil {
		return models.NewStorageError("update password "+id, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("user", id)
	}
	return nil
}
