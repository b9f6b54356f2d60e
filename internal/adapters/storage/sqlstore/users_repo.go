package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"dawailo/internal/domain/users"
	"dawailo/internal/ports/auth"
)

type UsersRepo struct {
	s *Store
}

func NewUsersRepo(s *Store) *UsersRepo {
	return &UsersRepo{s: s}
}

const userColumns = `id, name, email, password_hash, role, created_at`

func (r *UsersRepo) Create(ctx context.Context, u users.User) error {
	_, err := r.s.db.ExecContext(ctx, r.s.q(`
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`),
		u.ID,
		u.Name,
		u.Email,
		u.PasswordHash,
		string(u.Role),
		r.s.ts(u.CreatedAt),
	)
	if isUniqueViolation(err) {
		return users.ErrEmailTaken
	}
	return err
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (users.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return users.User{}, users.ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (users.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return users.User{}, users.ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *UsersRepo) ListByRole(ctx context.Context, role auth.Role) ([]users.User, error) {
	return r.list(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE role = ?
		ORDER BY created_at DESC, id ASC
	`, string(role))
}

func (r *UsersRepo) Search(ctx context.Context, role auth.Role, query string) ([]users.User, error) {
	pattern := likePattern(query)
	return r.list(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE role = ?
		  AND (LOWER(name) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\')
		ORDER BY created_at DESC, id ASC
	`, string(role), pattern, pattern)
}

func (r *UsersRepo) getOne(ctx context.Context, query string, args ...any) (users.User, error) {
	u, err := scanUser(r.s.db.QueryRowContext(ctx, r.s.q(query), args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return users.User{}, users.ErrNotFound
		}
		return users.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) list(ctx context.Context, query string, args ...any) ([]users.User, error) {
	rows, err := r.s.db.QueryContext(ctx, r.s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]users.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (users.User, error) {
	var (
		u       users.User
		role    string
		created scanTime
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &created); err != nil {
		return users.User{}, err
	}
	u.Role = auth.Role(role)
	u.CreatedAt = created.t
	return u, nil
}
