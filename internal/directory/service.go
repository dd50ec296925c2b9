package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/lib/pq"
	"github.com/mailgrove/mailgrove/internal/models"
	"github.com/mailgrove/mailgrove/internal/store"
)

// Sentinel errors returned by Service methods.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidAddress    = errors.New("invalid email address")
	ErrAlreadyRegistered = errors.New("address already registered")
)

// Service looks up verified user identities by email address. The delivery
// core only ever reads from it.
type Service struct {
	users store.UserStore
}

func NewService(users store.UserStore) *Service {
	return &Service{users: users}
}

// FindVerifiedByEmail returns the verified identity for the given address, or
// ErrUserNotFound when the address is unknown or not verified.
func (s *Service) FindVerifiedByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if !user.Verified {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// FindVerifiedByEmails resolves a set of addresses in one lookup. The result
// is keyed by lowercased address and contains only verified identities;
// callers decide how to treat misses.
func (s *Service) FindVerifiedByEmails(ctx context.Context, emails []string) (map[string]*models.User, error) {
	if len(emails) == 0 {
		return map[string]*models.User{}, nil
	}

	users, err := s.users.GetUsersByEmails(ctx, emails)
	if err != nil {
		return nil, fmt.Errorf("looking up users: %w", err)
	}

	found := make(map[string]*models.User, len(users))
	for i := range users {
		if users[i].Verified {
			found[strings.ToLower(users[i].Email)] = &users[i]
		}
	}
	return found, nil
}

// Register creates a verified identity for the given address. Used for
// seeding the simulation; credential handling lives outside this service.
func (s *Service) Register(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidAddress
	}

	user, err := s.users.CreateUser(ctx, email, true)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}
