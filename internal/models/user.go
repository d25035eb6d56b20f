package models

import (
	"strings"
	"time"
)

// Role is the authorization level of a user.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStaff
}

// User represents an account. PasswordHash never leaves the service layer;
// callers get a SafeUser instead.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

func (u User) IsStaff() bool { return u.Role == RoleStaff }

// Safe strips the password hash.
func (u User) Safe() SafeUser {
	return SafeUser{
		ID:        u.ID,
		Username:  u.Username,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

func (u User) ToRecord() UserRecord {
	return UserRecord{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
	}
}

// SafeUser is the password-free projection handed to callers and stored in sessions.
type SafeUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

func (u SafeUser) IsAdmin() bool { return u.Role == RoleAdmin }

// UserRecord is the stored shape of a user.
type UserRecord struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" bson:"_id"`
	Username     string    `gorm:"type:varchar(100);not null;uniqueIndex" bson:"username"`
	PasswordHash string    `gorm:"column:password;type:varchar(255);not null" bson:"password"`
	Role         string    `gorm:"type:varchar(20);not null;index" bson:"role"`
	CreatedAt    time.Time `bson:"created_at"`
}

func (UserRecord) TableName() string {
	return "users"
}

// UserFromRecord builds a User; an unknown stored role falls back to staff.
func UserFromRecord(r UserRecord) User {
	role := Role(r.Role)
	if !role.Valid() {
		role = RoleStaff
	}
	return User{
		ID:           r.ID,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		Role:         role,
		CreatedAt:    r.CreatedAt,
	}
}

// RegisterForm is the registration input.
type RegisterForm struct {
	Username        string `form:"username" json:"username" validate:"notblank,min=3,max=100"`
	Password        string `form:"password" json:"password" validate:"required,min=6"`
	ConfirmPassword string `form:"confirmPassword" json:"confirmPassword" validate:"eqfield=Password"`
	Role            string `form:"role" json:"role" validate:"omitempty,oneof=admin staff"`
}

// ValidateRegistration returns every rule the form violates.
func ValidateRegistration(form RegisterForm) []string {
	form.Username = strings.TrimSpace(form.Username)
	form.Role = strings.TrimSpace(form.Role)
	return messagesFor(form)
}

// NewUserFromInput builds a user from a validated registration. The role
// defaults to staff.
func NewUserFromInput(form RegisterForm, id, passwordHash string, now time.Time) User {
	role := Role(strings.TrimSpace(form.Role))
	if role == "" {
		role = RoleStaff
	}
	return User{
		ID:           id,
		Username:     strings.TrimSpace(form.Username),
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
	}
}

// LoginForm is the login input.
type LoginForm struct {
	Username string `form:"username" json:"username" validate:"notblank"`
	Password string `form:"password" json:"password" validate:"required"`
}

// ValidateLogin reports missing credentials.
func ValidateLogin(form LoginForm) []string {
	form.Username = strings.TrimSpace(form.Username)
	return messagesFor(form)
}

// PasswordChangeForm is the change-password input.
type PasswordChangeForm struct {
	CurrentPassword string `form:"currentPassword" json:"currentPassword" validate:"required"`
	NewPassword     string `form:"newPassword" json:"newPassword" validate:"required,min=6"`
	ConfirmPassword string `form:"confirmPassword" json:"confirmPassword" validate:"eqfield=NewPassword"`
}

func ValidatePasswordChange(form PasswordChangeForm) []string {
	return messagesFor(form)
}
