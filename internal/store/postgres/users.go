package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"posledger/internal/domain"
	"posledger/internal/store"
)

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" {
		return nil, store.ErrInvalidInput
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO users (username, name, password, role, is_active)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, created_at
	`, user.Username, user.Name, user.Password, user.Role, user.Active).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, username, name, password, role, is_active, created_at
		FROM users
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.UserAccount, error) {
		var u domain.UserAccount
		err := row.Scan(&u.ID, &u.Username, &u.Name, &u.Password, &u.Role, &u.Active, &u.CreatedAt)
		return u, err
	})
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	tag, err := s.db.Exec(ctx, `UPDATE users SET password = $2 WHERE username = $1`, username, password)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
