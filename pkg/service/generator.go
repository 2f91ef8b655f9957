package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"regexp"

	"redirector/pkg/storage"
)

const (
	slugLength  = 6
	slugCharset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

// Custom slugs are 3-16 characters of the generated alphabet plus - and _.
var slugRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,16}$`)

// SlugGenerator produces random slugs that are unused at the moment of
// check. The check and the subsequent insert are not atomic; the unique
// constraint on redirections.slug is the final arbiter.
type SlugGenerator struct {
	storage storage.RedirectionStorage
}

func NewSlugGenerator(storage storage.RedirectionStorage) *SlugGenerator {
	return &SlugGenerator{storage: storage}
}

// Generate returns a fixed-length random slug, regenerating until it finds
// one with no existing redirection. No retry cap: the space is large
// enough that collisions are rare.
func (g *SlugGenerator) Generate(ctx context.Context) (string, error) {
	for {
		slug, err := randomSlug(slugLength)
		if err != nil {
			return "", fmt.Errorf("failed to generate slug: %w", err)
		}
		exists, err := g.storage.ExistsBySlug(ctx, slug)
		if err != nil {
			return "", err
		}
		if !exists {
			return slug, nil
		}
	}
}

func randomSlug(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = slugCharset[int(b)%len(slugCharset)]
	}
	return string(buf), nil
}

func ValidateSlug(slug string) bool {
	return slugRegex.MatchString(slug)
}
