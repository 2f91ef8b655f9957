package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"redirector/pkg/logging"
	"redirector/pkg/storage"
)

const (
	// DefaultSource tags redirections created without an explicit origin.
	DefaultSource = "system"

	// Redirections expire 30 days after the start of their creation day,
	// so everything created the same day expires at the same instant.
	expirationWindowDays = 30
)

// Registry owns all lifecycle operations on redirections and their visits.
// It is stateless between calls; all durable state lives in storage.
type Registry struct {
	redirections storage.RedirectionStorage
	visits       storage.VisitStorage
	generator    *SlugGenerator
	logger       *logging.Logger
}

func NewRegistry(redirections storage.RedirectionStorage, visits storage.VisitStorage, logger *logging.Logger) *Registry {
	return &Registry{
		redirections: redirections,
		visits:       visits,
		generator:    NewSlugGenerator(redirections),
		logger:       logger,
	}
}

type CreateRedirectionRequest struct {
	URL        string  `json:"url"`
	Source     *string `json:"source,omitempty"`
	CustomSlug *string `json:"custom_slug,omitempty"`
}

type CreateRedirectionResponse struct {
	Slug string `json:"slug"`
}

// VisitMetadata carries the enrichment fields attached to a visit. Every
// field is optional; the enrichment layer fills in whatever it resolved.
type VisitMetadata struct {
	UserAgent *string
	Language  *string
	Platform  *string
	Browser   *string
	Device    *string
	OS        *string
	IP        *string
	Country   *string
	Region    *string
	City      *string
}

// CreateRedirection creates a redirection with a generated or caller-supplied
// slug and returns the assigned slug only.
func (s *Registry) CreateRedirection(ctx context.Context, req *CreateRedirectionRequest) (*CreateRedirectionResponse, error) {
	if !hasHTTPScheme(req.URL) {
		s.logger.LogURLValidation(ctx, false, urlScheme(req.URL))
		return nil, ErrInvalidURL
	}
	s.logger.LogURLValidation(ctx, true, urlScheme(req.URL))

	var slug string
	if req.CustomSlug != nil {
		// The existence pre-check and the insert are two separate
		// operations; if another writer wins the race in between, the
		// unique constraint rejects the insert and that failure
		// propagates as a storage error, not as ErrSlugAlreadyExists.
		exists, err := s.redirections.ExistsBySlug(ctx, *req.CustomSlug)
		if err != nil {
			return nil, fmt.Errorf("failed to check slug: %w", err)
		}
		if exists {
			return nil, ErrSlugAlreadyExists
		}
		slug = *req.CustomSlug
	} else {
		generated, err := s.generator.Generate(ctx)
		if err != nil {
			return nil, err
		}
		slug = generated
	}

	source := DefaultSource
	if req.Source != nil && *req.Source != "" {
		source = *req.Source
	}

	created, err := s.redirections.Create(ctx, &storage.Redirection{
		Slug:           slug,
		URL:            req.URL,
		Source:         source,
		ExpirationDate: startOfDay(time.Now().UTC()).AddDate(0, 0, expirationWindowDays),
	})
	if err != nil {
		s.logger.LogRedirectionOperation(ctx, "create", slug, false)
		return nil, fmt.Errorf("failed to create redirection: %w", err)
	}

	s.logger.LogRedirectionOperation(ctx, "create", created.Slug, true)
	return &CreateRedirectionResponse{Slug: created.Slug}, nil
}

// GetRedirectionBySlug looks up a redirection without enforcing expiration.
// Mutation paths use it so expired-but-not-yet-deleted rows stay reachable.
func (s *Registry) GetRedirectionBySlug(ctx context.Context, slug string) (*storage.Redirection, error) {
	if slug == "" {
		return nil, ErrMissingSlug
	}
	redirection, err := s.redirections.GetBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to get redirection: %w", err)
	}
	if redirection == nil {
		return nil, ErrRedirectionNotFound
	}
	return redirection, nil
}

// GetRedirectionDetailsBySlug returns the redirection with its visit
// aggregates. Expiration is checked on every call; a redirection becomes
// inaccessible here the instant its expiration passes.
func (s *Registry) GetRedirectionDetailsBySlug(ctx context.Context, slug string) (*storage.RedirectionStats, error) {
	redirection, err := s.GetRedirectionBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if time.Now().UTC().After(redirection.ExpirationDate) {
		return nil, ErrRedirectionExpired
	}

	count, lastVisitedAt, err := s.visits.Stats(ctx, redirection.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute visit stats: %w", err)
	}
	return &storage.RedirectionStats{
		Redirection:   *redirection,
		VisitsCount:   count,
		LastVisitedAt: lastVisitedAt,
	}, nil
}

// TrackVisit appends a visit built from the metadata fields actually
// present. When the metadata is empty nothing is recorded and (nil, nil)
// is returned. Expiration is deliberately not checked here: it gates the
// lookup path, not the write path.
func (s *Registry) TrackVisit(ctx context.Context, slug string, metadata *VisitMetadata) (*storage.Visit, error) {
	redirection, err := s.GetRedirectionBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	visit := &storage.Visit{RedirectionID: redirection.ID}
	if metadata != nil {
		visit.UserAgent = metadata.UserAgent
		visit.Language = metadata.Language
		visit.Platform = metadata.Platform
		visit.Browser = metadata.Browser
		visit.Device = metadata.Device
		visit.OS = metadata.OS
		visit.IP = metadata.IP
		visit.Country = metadata.Country
		visit.Region = metadata.Region
		visit.City = metadata.City
	}
	if !visit.HasMetadata() {
		return nil, nil
	}

	created, err := s.visits.Create(ctx, visit)
	if err != nil {
		return nil, fmt.Errorf("failed to record visit: %w", err)
	}
	return created, nil
}

type RedirectResponse struct {
	URL string `json:"url"`
}

// Redirect resolves the destination URL for a visitor and records the
// visit. A not-found or expired lookup propagates unchanged and records
// nothing.
func (s *Registry) Redirect(ctx context.Context, slug string, metadata *VisitMetadata) (*RedirectResponse, error) {
	details, err := s.GetRedirectionDetailsBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if _, err := s.TrackVisit(ctx, slug, metadata); err != nil {
		return nil, err
	}
	s.logger.LogRedirectionOperation(ctx, "redirect", slug, true)
	return &RedirectResponse{URL: details.URL}, nil
}

// UpdateRedirectionBySlug replaces the destination URL. Slug, source and
// expiration date are immutable; expired redirections remain updatable.
func (s *Registry) UpdateRedirectionBySlug(ctx context.Context, slug, url string) (*storage.Redirection, error) {
	if _, err := s.GetRedirectionBySlug(ctx, slug); err != nil {
		return nil, err
	}
	if !hasHTTPScheme(url) {
		s.logger.LogURLValidation(ctx, false, urlScheme(url))
		return nil, ErrInvalidURL
	}

	updated, err := s.redirections.UpdateURL(ctx, slug, url)
	if err != nil {
		return nil, fmt.Errorf("failed to update redirection: %w", err)
	}
	if updated == nil {
		// Deleted between lookup and update.
		return nil, ErrRedirectionNotFound
	}
	s.logger.LogRedirectionOperation(ctx, "update", slug, true)
	return updated, nil
}

// DeleteRedirectionBySlug removes the redirection and returns the deleted
// row. Storage cascades the delete to associated visits.
func (s *Registry) DeleteRedirectionBySlug(ctx context.Context, slug string) (*storage.Redirection, error) {
	redirection, err := s.GetRedirectionBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := s.redirections.Delete(ctx, redirection.ID); err != nil {
		return nil, fmt.Errorf("failed to delete redirection: %w", err)
	}
	s.logger.LogRedirectionOperation(ctx, "delete", slug, true)
	return redirection, nil
}

func hasHTTPScheme(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

func urlScheme(url string) string {
	if idx := strings.Index(url, "://"); idx > 0 {
		return url[:idx]
	}
	return ""
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
