package roles

import (
	"context"
	"errors"
	"strings"

	"dawailo/internal/ports/auth"
	"dawailo/internal/ports/capabilities"
)

var (
	ErrCapabilityRequired = errors.New("capability required")
)

// Resolver resuelve capabilities a partir del rol, con una tabla estática.
// Reemplaza el guard de rutas por rol que antes vivía en el cliente.
type Resolver struct {
	table map[auth.Role]map[capabilities.Capability]struct{}
}

// DefaultTable es la matriz rol -> capabilities del producto.
func DefaultTable() map[auth.Role][]capabilities.Capability {
	return map[auth.Role][]capabilities.Capability{
		auth.RoleDoctor: {
			capabilities.PatientsRead,
			capabilities.PatientsWrite,
			capabilities.PrescriptionsRead,
			capabilities.PrescriptionsWrite,
			capabilities.ScheduleRead,
			capabilities.AdherenceRead,
		},
		auth.RolePharmacist: {
			capabilities.PatientsRead,
			capabilities.PrescriptionsRead,
		},
		auth.RolePatient: {
			capabilities.PrescriptionsRead,
			capabilities.ScheduleRead,
			capabilities.AdherenceRead,
			capabilities.AdherenceWrite,
		},
	}
}

func NewResolver(table map[auth.Role][]capabilities.Capability) *Resolver {
	if table == nil {
		table = DefaultTable()
	}
	idx := make(map[auth.Role]map[capabilities.Capability]struct{}, len(table))
	for role, caps := range table {
		set := make(map[capabilities.Capability]struct{}, len(caps))
		for _, c := range caps {
			set[c] = struct{}{}
		}
		idx[role] = set
	}
	return &Resolver{table: idx}
}

func (r *Resolver) HasFeature(_ context.Context, in capabilities.CapabilityCheck) (bool, error) {
	if strings.TrimSpace(string(in.Capability)) == "" {
		return false, ErrCapabilityRequired
	}
	set, ok := r.table[in.Role]
	if !ok {
		return false, nil
	}
	_, ok = set[in.Capability]
	return ok, nil
}
