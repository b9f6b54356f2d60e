package auth

// Role es el rol de negocio del usuario autenticado.
type Role string

const (
	RoleDoctor     Role = "doctor"
	RolePharmacist Role = "pharmacist"
	RolePatient    Role = "patient"
)

func (r Role) Valid() bool {
	switch r {
	case RoleDoctor, RolePharmacist, RolePatient:
		return true
	default:
		return false
	}
}

// Claims representa la información extraída del token.
type Claims struct {
	UserID string
	Email  string
	Name   string
	Role   Role
}
