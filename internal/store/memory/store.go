// Package memory provides an in-process activity store for local development and tests.
package memory

import (
	"context"
	"sync"

	"example.com/mergington/internal/domain"
)

// Store keeps activities in memory. It satisfies domain.Store.
type Store struct {
	mu         sync.RWMutex
	order      []string
	activities map[string]domain.Activity
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{activities: make(map[string]domain.Activity)}
}

// Count implements domain.Store.
func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.activities)), nil
}

// InsertMany implements domain.Store. Existing names are left untouched.
func (s *Store) InsertMany(ctx context.Context, activities []domain.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range activities {
		if _, exists := s.activities[a.Name]; exists {
			continue
		}
		s.activities[a.Name] = a.Clone()
		s.order = append(s.order, a.Name)
	}
	return nil
}

// Find implements domain.Store.
func (s *Store) Find(ctx context.Context, name string) (*domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	activity, ok := s.activities[name]
	if !ok {
		return nil, nil
	}
	out := activity.Clone()
	return &out, nil
}

// List implements domain.Store, returning activities in insertion order.
func (s *Store) List(ctx context.Context) ([]domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Activity, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.activities[name].Clone())
	}
	return out, nil
}

// AddParticipant implements domain.Store.
func (s *Store) AddParticipant(ctx context.Context, name, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	activity, ok := s.activities[name]
	if !ok || activity.HasParticipant(email) {
		return false, nil
	}
	activity.Participants = append(activity.Clone().Participants, email)
	s.activities[name] = activity
	return true, nil
}

// RemoveParticipant implements domain.Store.
func (s *Store) RemoveParticipant(ctx context.Context, name, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	activity, ok := s.activities[name]
	if !ok {
		return false, nil
	}
	kept := make([]string, 0, len(activity.Participants))
	for _, p := range activity.Participants {
		if p != email {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(activity.Participants) {
		return false, nil
	}
	activity.Participants = kept
	s.activities[name] = activity
	return true, nil
}
