package dataset

import (
	"context"
	"time"

	"github.com/susu3304/ruesquiz/internal/geo"
)

// Store bundles the street and exclusion caches.
type Store struct {
	streets    *Cache[*Streets]
	exclusions *Cache[[]geo.Polygon]
}

func NewStore(streets LoadFunc[*Streets], exclusions LoadFunc[[]geo.Polygon], ttl time.Duration) *Store {
	return &Store{
		streets:    NewCache(streets, ttl),
		exclusions: NewCache(exclusions, ttl),
	}
}

// NewHTTPStore wires a Store to a Loader.
func NewHTTPStore(loader *Loader, ttl time.Duration) *Store {
	return NewStore(loader.LoadStreets, loader.LoadExclusions, ttl)
}

func (s *Store) Streets(ctx context.Context) (*Streets, error) {
	return s.streets.Get(ctx)
}

func (s *Store) Exclusions(ctx context.Context) ([]geo.Polygon, error) {
	return s.exclusions.Get(ctx)
}

func (s *Store) Clear() {
	s.streets.Clear()
	s.exclusions.Clear()
}
