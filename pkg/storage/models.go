package storage

import (
	"time"
)

type Redirection struct {
	ID             int       `json:"id" db:"id"`
	Slug           string    `json:"slug" db:"slug"`
	URL            string    `json:"url" db:"url"`
	Source         string    `json:"source" db:"source"`
	ExpirationDate time.Time `json:"expiration_date" db:"expiration_date"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// RedirectionStats is a Redirection augmented with aggregates computed
// over its visits at read time. Nothing here is stored redundantly.
type RedirectionStats struct {
	Redirection
	VisitsCount   int64      `json:"visits_count"`
	LastVisitedAt *time.Time `json:"last_visited_at,omitempty"`
}

type Visit struct {
	ID            int       `json:"id" db:"id"`
	RedirectionID int       `json:"redirection_id" db:"redirection_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UserAgent     *string   `json:"user_agent,omitempty" db:"user_agent"`
	Language      *string   `json:"language,omitempty" db:"language"`
	Platform      *string   `json:"platform,omitempty" db:"platform"`
	Browser       *string   `json:"browser,omitempty" db:"browser"`
	Device        *string   `json:"device,omitempty" db:"device"`
	OS            *string   `json:"os,omitempty" db:"os"`
	IP            *string   `json:"ip,omitempty" db:"ip"`
	Country       *string   `json:"country,omitempty" db:"country"`
	Region        *string   `json:"region,omitempty" db:"region"`
	City          *string   `json:"city,omitempty" db:"city"`
}

// HasMetadata reports whether the visit carries any enrichment field.
func (v *Visit) HasMetadata() bool {
	for _, field := range []*string{
		v.UserAgent, v.Language, v.Platform, v.Browser, v.Device,
		v.OS, v.IP, v.Country, v.Region, v.City,
	} {
		if field != nil {
			return true
		}
	}
	return false
}
