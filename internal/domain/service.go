// Package domain defines the business logic for the activity directory.
package domain

import (
	"context"
	"errors"
	"fmt"

	"example.com/mergington/internal/observability"
)

var (
	// ErrActivityNotFound is returned when no activity exists under the requested name.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrAlreadySignedUp is returned when the email is already on the activity roster.
	ErrAlreadySignedUp = errors.New("student already signed up for this activity")
	// ErrNotSignedUp is returned when unregistering an email that is not on the roster.
	ErrNotSignedUp = errors.New("student not registered for this activity")
)

// Store captures the document store operations the directory depends on.
//
// AddParticipant and RemoveParticipant report false when the store applied no change,
// either because the activity vanished or because membership already matched the request.
type Store interface {
	Count(ctx context.Context) (int64, error)
	InsertMany(ctx context.Context, activities []Activity) error
	Find(ctx context.Context, name string) (*Activity, error)
	List(ctx context.Context) ([]Activity, error)
	AddParticipant(ctx context.Context, name, email string) (bool, error)
	RemoveParticipant(ctx context.Context, name, email string) (bool, error)
}

// Service mediates roster changes against the Store.
type Service struct {
	store Store
}

// NewService constructs a Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// ListActivities returns every activity keyed by name.
func (s *Service) ListActivities(ctx context.Context) (map[string]Activity, error) {
	activities, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	out := make(map[string]Activity, len(activities))
	for _, a := range activities {
		out[a.Name] = a
	}
	return out, nil
}

// SignUp appends email to the roster of the named activity.
// max_participants is not consulted.
func (s *Service) SignUp(ctx context.Context, activityName, email string) (string, error) {
	err := s.signUp(ctx, activityName, email)
	observability.RecordMembership(observability.OperationSignUp, outcome(err))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Signed up %s for %s", email, activityName), nil
}

func (s *Service) signUp(ctx context.Context, activityName, email string) error {
	activity, err := s.store.Find(ctx, activityName)
	if err != nil {
		return fmt.Errorf("find activity %q: %w", activityName, err)
	}
	if activity == nil {
		return ErrActivityNotFound
	}
	if activity.HasParticipant(email) {
		return ErrAlreadySignedUp
	}

	added, err := s.store.AddParticipant(ctx, activityName, email)
	if err != nil {
		return fmt.Errorf("add participant to %q: %w", activityName, err)
	}
	if !added {
		// Lost a race with a concurrent signup of the same email.
		return ErrAlreadySignedUp
	}
	return nil
}

// Unregister removes email from the roster of the named activity.
func (s *Service) Unregister(ctx context.Context, activityName, email string) (string, error) {
	err := s.unregister(ctx, activityName, email)
	observability.RecordMembership(observability.OperationUnregister, outcome(err))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Unregistered %s from %s", email, activityName), nil
}

func (s *Service) unregister(ctx context.Context, activityName, email string) error {
	activity, err := s.store.Find(ctx, activityName)
	if err != nil {
		return fmt.Errorf("find activity %q: %w", activityName, err)
	}
	if activity == nil {
		return ErrActivityNotFound
	}
	if !activity.HasParticipant(email) {
		return ErrNotSignedUp
	}

	removed, err := s.store.RemoveParticipant(ctx, activityName, email)
	if err != nil {
		return fmt.Errorf("remove participant from %q: %w", activityName, err)
	}
	if !removed {
		return ErrNotSignedUp
	}
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeOK
	case errors.Is(err, ErrActivityNotFound):
		return observability.OutcomeNotFound
	case errors.Is(err, ErrAlreadySignedUp), errors.Is(err, ErrNotSignedUp):
		return observability.OutcomeConflict
	default:
		return observability.OutcomeError
	}
}
