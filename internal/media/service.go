package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/patissio/patissio/internal/idgen"
	"github.com/patissio/patissio/internal/logging"
	"github.com/patissio/patissio/internal/tenant"
	"github.com/patissio/patissio/internal/validation"
)

// Service validates uploads, writes them to the blob store and keeps the
// profile's logo and cover in sync.
type Service struct {
	store   Store
	blob    Blob
	tenants tenant.Store
	now     func() time.Time
}

func NewService(store Store, blob Blob, tenants tenant.Store) *Service {
	return &Service{store: store, blob: blob, tenants: tenants, now: time.Now}
}

// sniff returns the accepted MIME type of data, judged by content.
func sniff(data []byte) (string, error) {
	detected := mimetype.Detect(data)
	for ct := range contentTypes {
		if detected.Is(ct) {
			return ct, nil
		}
	}
	return "", ErrUnsupportedType
}

// Upload stores r as an image of kind. A logo or cover becomes the
// profile's current one.
func (s *Service) Upload(ctx context.Context, t *tenant.Tenant, kind Kind, r io.Reader) (*Image, error) {
	if err := validation.Validate(
		validation.Required("kind", string(kind)),
		validation.OneOf("kind", string(kind), string(KindLogo), string(KindCover), string(KindGallery)),
	); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, ErrTooLarge
	}
	if len(data) == 0 {
		return nil, validation.Invalid("file", "is empty")
	}
	contentType, err := sniff(data)
	if err != nil {
		return nil, err
	}

	id := idgen.WithPrefix("img_")
	key := t.ID + "/" + id + contentTypes[contentType]
	if err := s.blob.Put(ctx, key, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}

	img := &Image{
		ID:          id,
		TenantID:    t.ID,
		Kind:        kind,
		URL:         s.blob.URL(key),
		StorageKey:  key,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.Create(ctx, img); err != nil {
		_ = s.blob.Delete(ctx, key)
		return nil, fmt.Errorf("save image: %w", err)
	}

	switch kind {
	case KindLogo:
		t.LogoURL = img.URL
	case KindCover:
		t.CoverURL = img.URL
	}
	if kind != KindGallery {
		if err := s.tenants.Update(ctx, t); err != nil {
			return nil, fmt.Errorf("set profile %s: %w", kind, err)
		}
	}
	logging.L(ctx).Info("image uploaded", "image_id", id, "kind", kind, "bytes", img.SizeBytes)
	return img, nil
}

// List returns the shop's images, optionally of one kind.
func (s *Service) List(ctx context.Context, scope tenant.Scope, kind Kind) ([]*Image, error) {
	if kind != "" && !ValidKind(kind) {
		return nil, validation.Invalid("kind", "must be one of: logo, cover, gallery")
	}
	return s.store.List(ctx, scope, kind)
}

// Delete removes an image. If it is the current logo or cover, the profile
// field is cleared.
func (s *Service) Delete(ctx context.Context, t *tenant.Tenant, id string) error {
	scope := tenant.ScopeOf(t)
	img, err := s.store.Get(ctx, scope, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, scope, id); err != nil {
		return err
	}
	if err := s.blob.Delete(ctx, img.StorageKey); err != nil {
		logging.L(ctx).Warn("image file not removed", "image_id", id, "key", img.StorageKey, "error", err)
	}

	changed := false
	if t.LogoURL == img.URL {
		t.LogoURL, changed = "", true
	}
	if t.CoverURL == img.URL {
		t.CoverURL, changed = "", true
	}
	if changed {
		if err := s.tenants.Update(ctx, t); err != nil {
			return fmt.Errorf("clear profile image: %w", err)
		}
	}
	return nil
}
