package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"catalog/internal/models"
	"catalog/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo   repositories.UserRepository
	jwtSecret  []byte
	tokenDurat time.Duration // Duration for which JWT is valid
	events     EventPublisher
	log        zerolog.Logger

	now   func() time.Time
	newID func() string
}

// NewAuthService creates a new AuthService. A non-positive tokenTTL falls
// back to 24 hours.
func NewAuthService(userRepo repositories.UserRepository, jwtSecret string, tokenTTL time.Duration, events EventPublisher, log zerolog.Logger) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{
		userRepo:   userRepo,
		jwtSecret:  []byte(jwtSecret),
		tokenDurat: tokenTTL,
		events:     events,
		log:        log.With().Str("component", "auth_service").Logger(),
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
	}
}

// Register validates the form, rejects taken usernames, hashes the password
// and stores the user.
func (s *AuthService) Register(ctx context.Context, form models.RegisterForm) (*models.SafeUser, error) {
	if err := models.AsValidationError(models.ValidateRegistration(form)); err != nil {
		return nil, err
	}

	username := strings.TrimSpace(form.Username)
	_, err := s.userRepo.FindByUsername(ctx, username)
	if err == nil {
		return nil, &models.DuplicateNameError{Resource: "User", Name: username}
	}
	if !models.IsNotFound(err) {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(form.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.NewUserFromInput(form, s.newID(), string(hashedPassword), s.now())
	if err := s.userRepo.Create(ctx, &user); err != nil {
		if models.IsDuplicateKey(err) {
			return nil, &models.DuplicateNameError{Resource: "User", Name: username}
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	safe := user.Safe()
	s.log.Info().Str("user_id", safe.ID).Str("role", string(safe.Role)).Msg("user registered")
	publish(s.events, s.log, EventUserRegistered, safe)
	return &safe, nil
}

// dummyPasswordHash is compared against when the username is unknown so both
// failure paths pay for one bcrypt comparison.
var dummyPasswordHash = sync.OnceValue(func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("unknown-user-password"), bcrypt.DefaultCost)
	if err != nil {
		panic(fmt.Sprintf("auth: dummy password hash: %v", err))
	}
	return h
})

// Login authenticates a user. An unknown username and a wrong password fail
// with the same AuthenticationError.
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.SafeUser, error) {
	user, err := s.userRepo.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if models.IsNotFound(err) {
			_ = bcrypt.CompareHashAndPassword(dummyPasswordHash(), []byte(password))
			return nil, &models.AuthenticationError{}
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, &models.AuthenticationError{}
	}

	safe := user.Safe()
	return &safe, nil
}

// ChangePassword verifies the current password before storing the new one.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, form models.PasswordChangeForm) error {
	if err := models.AsValidationError(models.ValidatePasswordChange(form)); err != nil {
		return err
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(form.CurrentPassword)); err != nil {
		return &models.ValidationError{Messages: []string{"current password is incorrect"}}
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(form.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, userID, string(hashedPassword)); err != nil {
		return fmt.Errorf("failed to change password: %w", err)
	}

	s.log.Info().Str("user_id", userID).Msg("password changed")
	return nil
}

func (s *AuthService) GetUserByID(ctx context.Context, id string) (*models.SafeUser, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	safe := user.Safe()
	return &safe, nil
}

func (s *AuthService) GetAllUsers(ctx context.Context) ([]models.SafeUser, error) {
	users, err := s.userRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return safeUsers(users), nil
}

func (s *AuthService) GetUsersByRole(ctx context.Context, role models.Role) ([]models.SafeUser, error) {
	if !role.Valid() {
		return nil, &models.ValidationError{Messages: []string{"role must be 'admin' or 'staff'"}}
	}
	users, err := s.userRepo.FindByRole(ctx, role)
	if err != nil {
		return nil, err
	}
	return safeUsers(users), nil
}

func safeUsers(users []models.User) []models.SafeUser {
	out := make([]models.SafeUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Safe())
	}
	return out
}

// IssueToken signs an HS256 JWT for user.
func (s *AuthService) IssueToken(user models.SafeUser) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"role":     string(user.Role),
		"exp":      now.Add(s.tokenDurat).Unix(),
		"iat":      now.Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken parses and validates a JWT token, returning the identity it carries.
func (s *AuthService) ValidateToken(tokenString string) (*models.SafeUser, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	id, _ := claims["user_id"].(string)
	username, _ := claims["username"].(string)
	role := models.Role(fmt.Sprint(claims["role"]))
	if id == "" || !role.Valid() {
		return nil, fmt.Errorf("invalid token: missing identity claims")
	}
	return &models.SafeUser{ID: id, Username: username, Role: role}, nil
}
