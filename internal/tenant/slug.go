package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FallbackSlug is used when a business name has no usable characters.
const FallbackSlug = "boutique"

const maxSlugLength = 60

// ReservedSlugs are path segments owned by the platform itself. They can
// never be used as a shop slug.
var ReservedSlugs = map[string]struct{}{
	"login": {}, "register": {}, "settings": {}, "dashboard": {},
	"admin": {}, "superadmin": {}, "api": {}, "site": {},
	"auth": {}, "public": {}, "billing": {}, "pricing": {},
	"about": {}, "contact": {}, "legal": {}, "privacy": {},
	"terms": {}, "www": {}, "app": {}, "static": {},
	"assets": {}, "_next": {}, "support": {}, "help": {},
	"blog": {}, "docs": {},
}

// IsReserved reports whether slug belongs to the platform.
func IsReserved(slug string) bool {
	_, ok := ReservedSlugs[strings.ToLower(slug)]
	return ok
}

// Ligatures do not decompose under NFD.
var ligatures = strings.NewReplacer("œ", "oe", "Œ", "OE", "æ", "ae", "Æ", "AE", "ß", "ss")

// GenerateSlug turns a business name into a URL-safe slug:
// "Pâtisserie Éloïse" becomes "patisserie-eloise".
func GenerateSlug(name string) string {
	stripped, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		ligatures.Replace(name),
	)
	if err != nil {
		stripped = name
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(stripped) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}

	slug := b.String()
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		return FallbackSlug
	}
	return slug
}

// UniqueSlug generates a slug for name and appends -2, -3, ... until it is
// neither reserved nor taken.
func UniqueSlug(ctx context.Context, store Store, name string) (string, error) {
	base := GenerateSlug(name)
	candidate := base
	for i := 2; ; i++ {
		if !IsReserved(candidate) {
			_, err := store.GetBySlug(ctx, candidate)
			if errors.Is(err, ErrTenantNotFound) {
				return candidate, nil
			}
			if err != nil {
				return "", fmt.Errorf("check slug %q: %w", candidate, err)
			}
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}
