package storage

import (
	"context"
	"io"
	"path"
	"strings"
)

// ImageStore persists product images and hands back their public URL.
type ImageStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	// KeyFromURL maps a URL produced by Upload back to its key, or "" when the
	// URL does not belong to this store.
	KeyFromURL(url string) string
}

// ImageKey is the object key of a product image: products/<productID>/<filename>.
// Only the base name of filename is kept; names that would leave the
// product's directory become "image".
func ImageKey(productID, filename string) string {
	dir := path.Join("products", productID)
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	switch name {
	case "", ".", "..", "/":
		name = "image"
	}
	key := path.Join(dir, name)
	if path.Dir(key) != dir {
		key = path.Join(dir, "image")
	}
	return key
}

func keyFromURL(base, url string) string {
	prefix := strings.TrimRight(base, "/") + "/"
	if url == "" || !strings.HasPrefix(url, prefix) {
		return ""
	}
	return strings.TrimPrefix(url, prefix)
}
