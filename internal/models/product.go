package models

import (
	"strconv"
	"strings"
	"time"
)

// Product represents a product in the catalog.
type Product struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Price      float64   `json:"price"`
	Quantity   int       `json:"quantity"`
	CategoryID *string   `json:"categoryId"`
	ImageURL   *string   `json:"imageUrl"`
	IsDeleted  bool      `json:"isDeleted"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// StockStatus classifies the product's current quantity.
func (p Product) StockStatus() StockStatus {
	return StockStatusOf(p.Quantity)
}

// CategoryIDValue returns the category reference or "" when unset.
func (p Product) CategoryIDValue() string {
	if p.CategoryID == nil {
		return ""
	}
	return *p.CategoryID
}

// ImageURLValue returns the image URL or "" when unset.
func (p Product) ImageURLValue() string {
	if p.ImageURL == nil {
		return ""
	}
	return *p.ImageURL
}

// ToRecord converts the product to its storage shape.
func (p Product) ToRecord() ProductRecord {
	return ProductRecord{
		ID:         p.ID,
		Name:       p.Name,
		Price:      p.Price,
		Quantity:   p.Quantity,
		CategoryID: p.CategoryID,
		ImageURL:   p.ImageURL,
		IsDeleted:  p.IsDeleted,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

// ProductRecord is the stored shape of a product, shared by the SQL and
// document backends.
type ProductRecord struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" bson:"_id"`
	Name       string    `gorm:"type:varchar(255);not null;index" bson:"name"`
	Price      float64   `gorm:"not null" bson:"price"`
	Quantity   int       `gorm:"not null" bson:"quantity"`
	CategoryID *string   `gorm:"type:varchar(36);index" bson:"category_id,omitempty"`
	ImageURL   *string   `gorm:"type:varchar(1024)" bson:"image_url,omitempty"`
	IsDeleted  bool      `gorm:"not null;index" bson:"is_deleted"`
	CreatedAt  time.Time `bson:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

// TableName pins the SQL table name.
func (ProductRecord) TableName() string {
	return "products"
}

// ProductFromRecord builds a Product from a stored record. Empty optional
// references are normalised to nil.
func ProductFromRecord(r ProductRecord) Product {
	return Product{
		ID:         r.ID,
		Name:       r.Name,
		Price:      r.Price,
		Quantity:   r.Quantity,
		CategoryID: nonEmpty(r.CategoryID),
		ImageURL:   nonEmpty(r.ImageURL),
		IsDeleted:  r.IsDeleted,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// ProductForm is the untrusted create/update input as submitted by a form.
type ProductForm struct {
	Name       string `form:"name" json:"name" validate:"notblank,max=255"`
	Price      string `form:"price" json:"price" validate:"notblank,nonnegnum"`
	Quantity   string `form:"quantity" json:"quantity" validate:"notblank,nonnegint"`
	CategoryID string `form:"categoryId" json:"categoryId" validate:"omitempty,max=36"`
}

// ValidateProduct returns every rule the form violates.
func ValidateProduct(form ProductForm) []string {
	return messagesFor(form.trimmed())
}

func (f ProductForm) trimmed() ProductForm {
	return ProductForm{
		Name:       strings.TrimSpace(f.Name),
		Price:      strings.TrimSpace(f.Price),
		Quantity:   strings.TrimSpace(f.Quantity),
		CategoryID: strings.TrimSpace(f.CategoryID),
	}
}

// ProductInput holds the coerced values of a validated ProductForm.
type ProductInput struct {
	Name       string
	Price      float64
	Quantity   int
	CategoryID *string
}

// Input coerces the form values. Call it only after ValidateProduct passed.
func (f ProductForm) Input() ProductInput {
	t := f.trimmed()
	price, _ := strconv.ParseFloat(t.Price, 64)
	quantity, _ := strconv.ParseFloat(t.Quantity, 64)

	in := ProductInput{
		Name:     t.Name,
		Price:    price,
		Quantity: int(quantity),
	}
	if t.CategoryID != "" {
		id := t.CategoryID
		in.CategoryID = &id
	}
	return in
}

// NewProductFromInput builds a new product from validated input plus the
// derived fields the caller generated.
func NewProductFromInput(in ProductInput, id string, imageURL *string, now time.Time) Product {
	return Product{
		ID:         id,
		Name:       in.Name,
		Price:      in.Price,
		Quantity:   in.Quantity,
		CategoryID: in.CategoryID,
		ImageURL:   nonEmpty(imageURL),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// ProductUpdate is a partial update. Nil fields keep their stored value; an
// empty string for CategoryID or ImageURL clears the field.
type ProductUpdate struct {
	Name       *string
	Price      *float64
	Quantity   *int
	CategoryID *string
	ImageURL   *string
}

// IsEmpty reports whether the update changes nothing.
func (u ProductUpdate) IsEmpty() bool {
	return u.Name == nil && u.Price == nil && u.Quantity == nil && u.CategoryID == nil && u.ImageURL == nil
}

// Apply returns p with the update applied.
func (u ProductUpdate) Apply(p Product) Product {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.Quantity != nil {
		p.Quantity = *u.Quantity
	}
	if u.CategoryID != nil {
		p.CategoryID = nonEmpty(u.CategoryID)
	}
	if u.ImageURL != nil {
		p.ImageURL = nonEmpty(u.ImageURL)
	}
	return p
}

// ProductFilter is a conjunction of optional predicates. Nil/empty
// predicates are left out of the condition entirely.
type ProductFilter struct {
	SearchTerm string
	CategoryID string
	MinPrice   *float64
	MaxPrice   *float64

	// Limit caps the page size when > 0; Cursor resumes after the given id.
	Limit  int
	Cursor string
}

// Matches reports whether p satisfies every supplied predicate. Soft-deleted
// products never match.
func (f ProductFilter) Matches(p Product) bool {
	if p.IsDeleted {
		return false
	}
	if f.SearchTerm != "" && !strings.Contains(p.Name, f.SearchTerm) {
		return false
	}
	if f.CategoryID != "" && p.CategoryIDValue() != f.CategoryID {
		return false
	}
	if f.MinPrice != nil && p.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && p.Price > *f.MaxPrice {
		return false
	}
	return true
}

// FilterResult is one page of filter matches. NextCursor is empty once the
// store has no further records.
type FilterResult struct {
	Items      []Product
	NextCursor string
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}
