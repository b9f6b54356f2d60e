package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"dawailo/internal/domain/adherence"
	"dawailo/internal/domain/calendar"
)

type slotKey struct {
	medicineID string
	at         calendar.SlotKey
}

// adherenceRepo es append-only; el índice por slot cumple el rol del
// UNIQUE (medicine_id, scheduled_time) de las tablas SQL.
type adherenceRepo struct {
	mu     sync.RWMutex
	logs   []adherence.Log
	bySlot map[slotKey]int
}

func NewAdherenceRepo() adherence.Repository {
	return &adherenceRepo{
		bySlot: make(map[slotKey]int),
	}
}

func (r *adherenceRepo) Insert(ctx context.Context, l adherence.Log) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(l.ID) == "" {
		return errors.New("log id required")
	}
	k := slotKey{medicineID: l.MedicineID, at: l.ScheduledTime}
	if _, exists := r.bySlot[k]; exists {
		return adherence.ErrDuplicateLog
	}
	r.bySlot[k] = len(r.logs)
	r.logs = append(r.logs, l)
	return nil
}

func (r *adherenceRepo) GetBySlot(ctx context.Context, medicineID string, slot calendar.SlotKey) (adherence.Log, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.bySlot[slotKey{medicineID: medicineID, at: slot}]
	if !ok {
		return adherence.Log{}, adherence.ErrNotFound
	}
	return r.logs[i], nil
}

func (r *adherenceRepo) ListByPatient(ctx context.Context, patientID string) ([]adherence.Log, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]adherence.Log, 0)
	for _, l := range r.logs {
		if l.PatientID == patientID {
			out = append(out, l)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].ScheduledTime.String(), out[j].ScheduledTime.String()
		if a != b {
			return a > b
		}
		return out[i].MedicineID < out[j].MedicineID
	})
	return out, nil
}
