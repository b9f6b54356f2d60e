package users

import (
	"context"
	"errors"

	"dawailo/internal/ports/auth"
)

type seedUser struct {
	id, name, email, password string
	role                      auth.Role
}

// Cuentas demo (mismos ids que usa el front para pruebas manuales).
var demoUsers = []seedUser{
	{"doc1", "Dr. Sharma", "doctor@test.com", "doctor123", auth.RoleDoctor},
	{"pharma1", "Pharmacist Kumar", "pharmacist@test.com", "pharma123", auth.RolePharmacist},
	{"patient1", "Rajesh Singh", "patient@test.com", "patient123", auth.RolePatient},
	{"patient2", "Priya Patel", "patient2@test.com", "patient123", auth.RolePatient},
	{"patient3", "Amit Verma", "patient3@test.com", "patient123", auth.RolePatient},
}

// SeedDemo crea las cuentas demo que falten. Es idempotente.
func (s *Service) SeedDemo(ctx context.Context) (int, error) {
	created := 0
	for _, d := range demoUsers {
		_, err := s.create(ctx, d.id, d.role, d.name, d.email, d.password)
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrEmailTaken):
			// ya existe
		default:
			return created, err
		}
	}
	if created > 0 {
		s.log.Info("demo users seeded", map[string]any{"created": created})
	}
	return created, nil
}
