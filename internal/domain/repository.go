package domain

import (
	"context"
	"errors"
)

// ErrSessionNotFound is returned by a SessionStore when no live session exists.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore persists conversation state by session id.
type SessionStore interface {
	// Get returns ErrSessionNotFound for unknown or expired ids.
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// LeadRepository stores captured leads.
type LeadRepository interface {
	Create(ctx context.Context, lead *Lead) error
	// ListRecent returns the newest leads first.
	ListRecent(ctx context.Context, limit int) ([]*Lead, error)
}
