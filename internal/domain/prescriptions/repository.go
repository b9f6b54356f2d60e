package prescriptions

import "context"

type Repository interface {
	// Create guarda la prescripción junto con sus medicamentos.
	Create(ctx context.Context, p Prescription) error
	// Save actualiza UpdatedAt e inserta o actualiza (por id) cada medicamento de p.
	// Nunca borra medicamentos.
	Save(ctx context.Context, p Prescription) error

	GetByID(ctx context.Context, id string) (Prescription, error)
	ListByPatient(ctx context.Context, patientID string) ([]Prescription, error)
	ListByDoctor(ctx context.Context, doctorID string) ([]Prescription, error)
	ListAll(ctx context.Context) ([]Prescription, error)

	GetMedicine(ctx context.Context, id string) (Medicine, error)
	SetMedicineStatus(ctx context.Context, id string, status Status) error
	// ListMedicinesByPatient devuelve todos los medicamentos del paciente,
	// cualquier status, ordenados por id.
	ListMedicinesByPatient(ctx context.Context, patientID string) ([]Medicine, error)
}
