package memory

import (
	"context"
	"strings"
	"time"

	"posledger/internal/domain"
	"posledger/internal/store"
)

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.users[username]; exists {
		return nil, store.ErrConflict
	}
	user.Username = username
	user.ID = s.nextID("users")
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.users[username] = user
	return &user, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := make(map[int64]domain.UserAccount, len(s.users))
	for _, user := range s.users {
		byID[user.ID] = user
	}
	return sortedByID(byID, func(u domain.UserAccount) int64 { return u.ID }), nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.users[username] = user
	return nil
}
