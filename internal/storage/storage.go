// Package storage persists candidate profiles and reports on-disk footprint.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/saiyo/internal/models"
	"github.com/hyperjump/saiyo/internal/profile"
)

// ErrProfileNotFound is returned when no profile has the requested identity.
var ErrProfileNotFound = errors.New("profile not found")

// ProfileStore is the read side search needs to resolve ranked identities.
type ProfileStore interface {
	GetProfileSummary(ctx context.Context, identity string) (*models.ProfileSummary, error)
}

// Storage defines profile persistence operations.
type Storage interface {
	ProfileStore
	UpsertProfile(ctx context.Context, p *profile.Profile) error
	GetProfile(ctx context.Context, identity string) (*profile.Profile, error)
	DeleteProfile(ctx context.Context, identity string) error
	ListProfiles(ctx context.Context, offset, limit int) ([]*profile.Profile, error)
	CountProfiles(ctx context.Context) (int64, error)
	Close() error
}
