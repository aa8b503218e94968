package circuit

import (
	"context"
	"io"

	"github.com/scttfrdmn/coldfetch/pkg/types"
)

// Store guards every call to an ObjectStore with a Breaker
type Store struct {
	next    types.ObjectStore
	breaker *Breaker
}

var _ types.ObjectStore = (*Store)(nil)

// Guard wraps next so that its calls fail fast while breaker is open
func Guard(next types.ObjectStore, breaker *Breaker) *Store {
	return &Store{next: next, breaker: breaker}
}

// Breaker returns the breaker guarding the store
func (s *Store) Breaker() *Breaker {
	return s.breaker
}

func (s *Store) ListObjectsPage(ctx context.Context, container, prefix, token string) (types.ObjectPage, error) {
	var page types.ObjectPage
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		page, err = s.next.ListObjectsPage(ctx, container, prefix, token)
		return err
	})
	return page, err
}

func (s *Store) HeadObject(ctx context.Context, container, key string) (types.ObjectMetadata, error) {
	var meta types.ObjectMetadata
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		meta, err = s.next.HeadObject(ctx, container, key)
		return err
	})
	return meta, err
}

func (s *Store) RestoreObject(ctx context.Context, container, key string, days int, tier types.TierSpeed) error {
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.next.RestoreObject(ctx, container, key, days, tier)
	})
}

// GetObject guards opening the body only; read errors on the stream are
// seen by the downloader.
func (s *Store) GetObject(ctx context.Context, container, key string) (io.ReadCloser, error) {
	var body io.ReadCloser
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		body, err = s.next.GetObject(ctx, container, key)
		return err
	})
	return body, err
}
