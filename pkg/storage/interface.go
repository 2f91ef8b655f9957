package storage

import (
	"context"
	"time"
)

type RedirectionStorage interface {
	Create(ctx context.Context, redirection *Redirection) (*Redirection, error)
	GetBySlug(ctx context.Context, slug string) (*Redirection, error)
	ExistsBySlug(ctx context.Context, slug string) (bool, error)
	UpdateURL(ctx context.Context, slug, url string) (*Redirection, error)
	Delete(ctx context.Context, id int) error
}

type VisitStorage interface {
	Create(ctx context.Context, visit *Visit) (*Visit, error)
	Stats(ctx context.Context, redirectionID int) (count int64, lastVisitedAt *time.Time, err error)
}
