// Package media stores the images a patissier uploads for their storefront:
// logo, cover and gallery pictures.
package media

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/patissio/patissio/internal/apierror"
	"github.com/patissio/patissio/internal/tenant"
	"github.com/patissio/patissio/internal/validation"
)

// MaxUploadBytes is the largest accepted image.
const MaxUploadBytes = 5 << 20

var (
	ErrImageNotFound   = fmt.Errorf("image %w", apierror.ErrNotFound)
	ErrTooLarge        = apierror.New("file_too_large", "images are limited to 5MB", validation.ErrInvalid)
	ErrUnsupportedType = apierror.New("unsupported_type", "only JPEG, PNG and WebP images are accepted", validation.ErrInvalid)
)

// Kind is where an image is used.
type Kind string

const (
	KindLogo    Kind = "logo"
	KindCover   Kind = "cover"
	KindGallery Kind = "gallery"
)

// ValidKind reports whether k is a known image kind.
func ValidKind(k Kind) bool {
	return k == KindLogo || k == KindCover || k == KindGallery
}

// contentTypes maps accepted MIME types to file extensions.
var contentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Image is an uploaded file.
type Image struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"patissierId"`
	Kind        Kind      `json:"kind"`
	URL         string    `json:"url"`
	StorageKey  string    `json:"-"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Blob stores file contents under a key and serves them at a public URL.
type Blob interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// Store persists image metadata.
type Store interface {
	Create(ctx context.Context, img *Image) error
	Get(ctx context.Context, scope tenant.Scope, id string) (*Image, error)
	// List returns images newest first, optionally filtered by kind.
	List(ctx context.Context, scope tenant.Scope, kind Kind) ([]*Image, error)
	Delete(ctx context.Context, scope tenant.Scope, id string) error
}
