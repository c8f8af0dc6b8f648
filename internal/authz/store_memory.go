package authz

import (
	"context"
	"sort"
	"sync"

	"github.com/vet360/vet360/internal/shared"
)

// MemoryProfileStore keeps profiles in memory for development and tests.
type MemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewMemoryProfileStore constructs a store seeded with profiles.
func NewMemoryProfileStore(profiles ...Profile) *MemoryProfileStore {
	s := &MemoryProfileStore{profiles: make(map[string]Profile, len(profiles))}
	for _, p := range profiles {
		s.profiles[p.UID] = p
	}
	return s
}

// Put inserts or replaces a profile.
func (s *MemoryProfileStore) Put(p Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UID] = p
}

func (s *MemoryProfileStore) Fetch(_ context.Context, uid string) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[uid]
	if !ok {
		return Profile{}, shared.ErrNotFound
	}
	return p.WithPermissions(), nil
}

func (s *MemoryProfileStore) Update(_ context.Context, uid string, update ProfileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[uid]
	if !ok {
		return shared.ErrNotFound
	}
	update.Apply(&p)
	s.profiles[uid] = p
	return nil
}

// List returns every profile ordered by last and first name.
func (s *MemoryProfileStore) List(_ context.Context) ([]Profile, error) {
	s.mu.RLock()
	profiles := make([]Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		profiles = append(profiles, p.WithPermissions())
	}
	s.mu.RUnlock()
	sort.Slice(profiles, func(i, j int) bool {
		a, b := profiles[i], profiles[j]
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		if a.FirstName != b.FirstName {
			return a.FirstName < b.FirstName
		}
		return a.UID < b.UID
	})
	return profiles, nil
}

var _ ProfileStore = (*MemoryProfileStore)(nil)
