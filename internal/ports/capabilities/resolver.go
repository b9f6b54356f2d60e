package capabilities

import (
	"context"

	"dawailo/internal/ports/auth"
)

type Capability string

const (
	PatientsRead       Capability = "patients:read"
	PatientsWrite      Capability = "patients:write"
	PrescriptionsRead  Capability = "prescriptions:read"
	PrescriptionsWrite Capability = "prescriptions:write"
	ScheduleRead       Capability = "schedule:read"
	AdherenceRead      Capability = "adherence:read"
	AdherenceWrite     Capability = "adherence:write"
)

type CapabilityCheck struct {
	UserID     string
	Role       auth.Role
	Capability Capability
}

type CapabilitiesResolver interface {
	HasFeature(ctx context.Context, in CapabilityCheck) (bool, error)
}
