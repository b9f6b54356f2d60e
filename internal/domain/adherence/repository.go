package adherence

import (
	"context"

	"dawailo/internal/domain/calendar"
)

type Repository interface {
	// Insert devuelve ErrDuplicateLog si el slot ya tiene log.
	Insert(ctx context.Context, l Log) error
	// GetBySlot devuelve ErrNotFound si el slot no tiene log.
	GetBySlot(ctx context.Context, medicineID string, slot calendar.SlotKey) (Log, error)
	// ListByPatient ordena por scheduled_time desc.
	ListByPatient(ctx context.Context, patientID string) ([]Log, error)
}
