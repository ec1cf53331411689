// Package store persists one document blob per room id. Two backends are
// provided: a relational one (postgres in production, sqlite for local runs
// and tests) and a redis one.
package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("room not found")
	ErrAlreadyExists = errors.New("room already exists")
)

// Store is the durable room-id -> document mapping consumed by the session
// gateway. Upsert must be idempotent; Create must fail on id collision so
// that room creation can surface duplicates.
type Store interface {
	Get(ctx context.Context, id string) (string, error)
	Create(ctx context.Context, id, document string) error
	Upsert(ctx context.Context, id, document string) error
	Exists(ctx context.Context, id string) (bool, error)
	Close() error
}
