package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"
)

// UpsertUser inserts the user or refreshes its username, name and image.
func (s *Store) UpsertUser(ctx context.Context, u User) (*User, error) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, name, image_url, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE users.name END,
			image_url = CASE WHEN excluded.image_url != '' THEN excluded.image_url ELSE users.image_url END`,
		u.ID, u.Username, u.Name, u.ImageURL, u.CreatedAt)
	if err != nil {
		return nil, dbError("upsert user", err)
	}
	return s.userBy(ctx, "id", u.ID)
}

// UserByUsername looks a user up by username.
func (s *Store) UserByUsername(ctx context.Context, username string) (*User, error) {
	return s.userBy(ctx, "username", username)
}

// UserByID looks a user up by id.
func (s *Store) UserByID(ctx context.Context, id string) (*User, error) {
	return s.userBy(ctx, "id", id)
}

func (s *Store) userBy(ctx context.Context, column, value string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, name, image_url, created_at FROM users WHERE `+column+` = ?`, value).
		Scan(&u.ID, &u.Username, &u.Name, &u.ImageURL, &u.CreatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, dbError("load user", err)
	}
	return &u, nil
}
