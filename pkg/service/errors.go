package service

import "errors"

// Closed set of operation errors. Callers branch with errors.Is; anything
// outside this set is a persistence failure wrapped with context.
var (
	ErrInvalidURL          = errors.New("invalid url: must start with http:// or https://")
	ErrMissingSlug         = errors.New("missing slug")
	ErrSlugAlreadyExists   = errors.New("slug already exists")
	ErrRedirectionNotFound = errors.New("redirection not found")
	ErrRedirectionExpired  = errors.New("redirection expired")
)
