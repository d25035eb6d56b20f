package models

import (
	"strings"
	"time"
)

// Category groups products. Products reference categories weakly by id.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ToRecord converts the category to its storage shape.
func (c Category) ToRecord() CategoryRecord {
	return CategoryRecord{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
	}
}

// CategoryRecord is the stored shape of a category.
type CategoryRecord struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" bson:"_id"`
	Name        string    `gorm:"type:varchar(100);not null;uniqueIndex" bson:"name"`
	Description string    `gorm:"type:varchar(500)" bson:"description,omitempty"`
	CreatedAt   time.Time `bson:"created_at"`
}

func (CategoryRecord) TableName() string {
	return "categories"
}

func CategoryFromRecord(r CategoryRecord) Category {
	return Category{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
	}
}

// CategoryForm is the untrusted create/update input.
type CategoryForm struct {
	Name        string `form:"name" json:"name" validate:"notblank,max=100"`
	Description string `form:"description" json:"description" validate:"max=500"`
}

// ValidateCategory returns every rule the form violates.
func ValidateCategory(form CategoryForm) []string {
	return messagesFor(form.Trimmed())
}

// Trimmed returns the form with surrounding whitespace removed.
func (f CategoryForm) Trimmed() CategoryForm {
	return CategoryForm{
		Name:        strings.TrimSpace(f.Name),
		Description: strings.TrimSpace(f.Description),
	}
}

// NewCategoryFromInput builds a new category from a validated form.
func NewCategoryFromInput(form CategoryForm, id string, now time.Time) Category {
	t := form.Trimmed()
	return Category{
		ID:          id,
		Name:        t.Name,
		Description: t.Description,
		CreatedAt:   now,
	}
}

// CategoryUpdate is a partial update; nil fields keep their value.
type CategoryUpdate struct {
	Name        *string
	Description *string
}

func (u CategoryUpdate) Apply(c Category) Category {
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Description != nil {
		c.Description = *u.Description
	}
	return c
}

// CategoryWithCount pairs a category with the number of live products in it.
type CategoryWithCount struct {
	Category
	ProductCount int `json:"productCount"`
}
