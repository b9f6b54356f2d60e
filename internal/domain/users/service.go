package users

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"dawailo/internal/platform/logger"
	"dawailo/internal/ports/auth"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const minPasswordLen = 6

type Service struct {
	repo   Repository
	issuer auth.TokenIssuer // nil en modo dev: login sin token
	log    logger.Logger
	now    func() time.Time
	cost   int
}

func NewService(repo Repository, issuer auth.TokenIssuer, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:   repo,
		issuer: issuer,
		log:    log.With(map[string]any{"component": "users"}),
		now:    time.Now,
		cost:   bcrypt.DefaultCost,
	}
}

type LoginResult struct {
	User      User
	Token     string
	ExpiresAt *time.Time
}

func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	res := LoginResult{User: u}
	if s.issuer != nil {
		token, exp, err := s.issuer.Issue(ctx, ClaimsOf(u))
		if err != nil {
			return LoginResult{}, err
		}
		res.Token = token
		res.ExpiresAt = &exp
	}

	s.log.Info("user logged in", map[string]any{"user_id": u.ID, "role": string(u.Role)})
	return res, nil
}

type RegisterPatientInput struct {
	Name     string
	Email    string
	Password string
}

func (s *Service) RegisterPatient(ctx context.Context, in RegisterPatientInput) (User, error) {
	return s.create(ctx, "", auth.RolePatient, in.Name, in.Email, in.Password)
}

func (s *Service) GetPatient(ctx context.Context, id string) (User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, ErrInvalidInput
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if u.Role != auth.RolePatient {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (User, error) {
	return s.repo.GetByID(ctx, strings.TrimSpace(id))
}

func (s *Service) ListPatients(ctx context.Context) ([]User, error) {
	return s.repo.ListByRole(ctx, auth.RolePatient)
}

func (s *Service) SearchPatients(ctx context.Context, query string) ([]User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.ListPatients(ctx)
	}
	return s.repo.Search(ctx, auth.RolePatient, query)
}

// IsPatient se usa desde prescripciones para validar la referencia al paciente.
func (s *Service) IsPatient(ctx context.Context, id string) (bool, error) {
	_, err := s.GetPatient(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidInput):
		return false, nil
	default:
		return false, err
	}
}

func (s *Service) create(ctx context.Context, id string, role auth.Role, name, email, password string) (User, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)

	if name == "" || !role.Valid() {
		return User{}, ErrInvalidInput
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return User{}, ErrInvalidInput
	}
	if len(password) < minPasswordLen {
		return User{}, ErrInvalidInput
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return User{}, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return User{}, err
	}

	if id == "" {
		id = uuid.NewString()
	}
	u := User{
		ID:           id,
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    s.now(),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return User{}, err
	}

	s.log.Info("user created", map[string]any{"user_id": u.ID, "role": string(role)})
	return u, nil
}

// ClaimsOf arma los claims de sesión de un usuario.
func ClaimsOf(u User) auth.Claims {
	return auth.Claims{
		UserID: u.ID,
		Email:  u.Email,
		Name:   u.Name,
		Role:   u.Role,
	}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
