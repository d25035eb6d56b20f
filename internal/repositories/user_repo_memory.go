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

// MemoryUserRepository is an in-memory implementation of UserRepository.
type MemoryUserRepository struct {
	users map[string]models.User
	mu    sync.RWMutex
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[string]models.User),
	}
}

func (r *MemoryUserRepository) list(match func(models.User) bool) []models.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		if match(u) {
			list = append(list, u)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Username < list[j].Username })
	return list
}

func (r *MemoryUserRepository) FindAll(ctx context.Context) ([]models.User, error) {
	return r.list(func(models.User) bool { return true }), nil
}

func (r *MemoryUserRepository) FindByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	return r.list(func(u models.User) bool { return u.Role == role }), nil
}

func (r *MemoryUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	return &u, nil
}

func (r *MemoryUserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Username == username {
			found := u
			return &found, nil
		}
	}
	return nil, notFound("user", username)
}

func (r *MemoryUserRepository) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	for _, u := range r.users {
		if u.ID == user.ID {
			return models.NewStorageError("create user", fmt.Errorf("user with ID %s already exists", user.ID))
		}
		if u.Username == user.Username {
			return models.NewStorageError("create user", fmt.Errorf("%w: username %s", models.ErrDuplicateKey, user.Username))
		}
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	r.users[user.ID] = *user
	return nil
}

func (r *MemoryUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return notFound("user", id)
	}
	u.PasswordHash = passwordHash
	r.users[id] = u
	return nil
}
