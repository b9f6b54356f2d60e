package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"dawailo/internal/domain/users"
	"dawailo/internal/ports/auth"
)

type usersRepo struct {
	mu      sync.RWMutex
	byID    map[string]users.User
	byEmail map[string]string
}

func NewUsersRepo() users.Repository {
	return &usersRepo{
		byID:    make(map[string]users.User),
		byEmail: make(map[string]string),
	}
}

func (r *usersRepo) Create(ctx context.Context, u users.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(u.ID) == "" {
		return errors.New("user id required")
	}
	if _, exists := r.byID[u.ID]; exists {
		return errors.New("user already exists")
	}
	if _, taken := r.byEmail[u.Email]; taken {
		return users.ErrEmailTaken
	}
	r.byID[u.ID] = u
	r.byEmail[u.Email] = u.ID
	return nil
}

func (r *usersRepo) GetByID(ctx context.Context, id string) (users.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return users.User{}, users.ErrNotFound
	}
	return u, nil
}

func (r *usersRepo) GetByEmail(ctx context.Context, email string) (users.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return users.User{}, users.ErrNotFound
	}
	return r.byID[id], nil
}

func (r *usersRepo) ListByRole(ctx context.Context, role auth.Role) ([]users.User, error) {
	return r.filter(role, func(users.User) bool { return true }), nil
}

func (r *usersRepo) Search(ctx context.Context, role auth.Role, query string) ([]users.User, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	return r.filter(role, func(u users.User) bool {
		return strings.Contains(strings.ToLower(u.Name), q) || strings.Contains(u.Email, q)
	}), nil
}

func (r *usersRepo) filter(role auth.Role, keep func(users.User) bool) []users.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]users.User, 0)
	for _, u := range r.byID {
		if u.Role == role && keep(u) {
			out = append(out, u)
		}
	}

	// created_at desc, id como desempate
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
