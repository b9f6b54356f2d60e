package users

import (
	"time"

	"dawailo/internal/ports/auth"
)

// User es una cuenta del sistema: doctor, farmacéutico o paciente.
type User struct {
	ID    string
	Name  string
	Email string // siempre en minúsculas

	PasswordHash string
	Role         auth.Role

	CreatedAt time.Time
}
