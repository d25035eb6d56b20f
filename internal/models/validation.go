package models

import (
	"fmt"
	"math"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report fields by their form name so messages match what the user typed into.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, "notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	mustRegister(v, "nonnegnum", func(fl validator.FieldLevel) bool {
		f, ok := parseNumber(fl.Field().String())
		return ok && f >= 0
	})
	mustRegister(v, "nonnegint", func(fl validator.FieldLevel) bool {
		f, ok := parseNumber(fl.Field().String())
		return ok && f >= 0 && f == math.Trunc(f) && f <= math.MaxInt32
	})

	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// fieldMessages maps "<field>.<tag>" to the message shown to the user.
var fieldMessages = map[string]string{
	"name.notblank":            "name is required",
	"description.max":          "description must not exceed 500 characters",
	"price.notblank":           "price is required",
	"price.nonnegnum":          "price must be a number greater than or equal to 0",
	"quantity.notblank":        "quantity is required",
	"quantity.nonnegint":       "quantity must be a whole number greater than or equal to 0",
	"categoryId.max":           "category is invalid",
	"username.notblank":        "username is required",
	"username.min":             "username must be at least 3 characters",
	"username.max":             "username must not exceed 100 characters",
	"password.required":        "password is required",
	"password.min":             "password must be at least 6 characters",
	"confirmPassword.eqfield":  "password confirmation does not match",
	"role.oneof":               "role must be 'admin' or 'staff'",
	"currentPassword.required": "current password is required",
	"newPassword.required":     "new password is required",
	"newPassword.min":          "new password must be at least 6 characters",
}

// messagesFor runs the struct validator and turns every failure into a message.
func messagesFor(s interface{}) []string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}

	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		if msg, ok := fieldMessages[e.Field()+"."+e.Tag()]; ok {
			messages = append(messages, msg)
			continue
		}
		if e.Tag() == "max" {
			messages = append(messages, fmt.Sprintf("%s must not exceed %s characters", e.Field(), e.Param()))
			continue
		}
		messages = append(messages, fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag()))
	}
	return messages
}

// AsValidationError returns a *ValidationError for a non-empty message list and nil otherwise.
func AsValidationError(messages []string) error {
	if len(messages) == 0 {
		return nil
	}
	return &ValidationError{Messages: messages}
}

// ImageMeta describes an uploaded image before it reaches object storage.
type ImageMeta struct {
	Filename    string
	ContentType string
	Size        int64
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".svg": true,
}

// ValidateImage checks an upload against the size cap and accepted types.
func ValidateImage(meta ImageMeta, maxSize int64) []string {
	var messages []string
	if strings.TrimSpace(meta.Filename) == "" {
		messages = append(messages, "image file name is required")
	}
	if maxSize > 0 && meta.Size > maxSize {
		messages = append(messages, fmt.Sprintf("image must not exceed %s", humanSize(maxSize)))
	}
	isImageType := strings.HasPrefix(strings.ToLower(meta.ContentType), "image/")
	if !isImageType && !imageExtensions[strings.ToLower(filepath.Ext(meta.Filename))] {
		messages = append(messages, "image must be a JPEG, PNG, GIF, WebP or SVG file")
	}
	return messages
}

func humanSize(n int64) string {
	const mb = 1024 * 1024
	if n%mb == 0 {
		return fmt.Sprintf("%d MB", n/mb)
	}
	return fmt.Sprintf("%d bytes", n)
}
