package adherence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"dawailo/internal/domain/calendar"
	"dawailo/internal/platform/logger"
	"dawailo/internal/platform/metrics"

	"github.com/google/uuid"
)

var (
	ErrInvalidStatus = errors.New("status must be taken or missed")
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("medicine not found")
	ErrForbidden     = errors.New("medicine does not belong to patient")
	ErrDuplicateLog  = errors.New("dose already recorded")
	ErrStorage       = errors.New("storage error")
)

// MedicineLookup evita depender del paquete prescriptions.
// ok=false si el medicamento no existe.
type MedicineLookup interface {
	MedicineOwner(ctx context.Context, medicineID string) (patientID string, ok bool, err error)
}

type Service struct {
	repo      Repository
	medicines MedicineLookup
	metrics   *metrics.Metrics
	log       logger.Logger
	slots     *slotLocks
	now       func() time.Time
}

func NewService(repo Repository, medicines MedicineLookup, m *metrics.Metrics, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:      repo,
		medicines: medicines,
		metrics:   m,
		log:       log.With(map[string]any{"component": "adherence"}),
		slots:     newSlotLocks(),
		now:       time.Now,
	}
}

type MarkDoseInput struct {
	MedicineID    string
	PatientID     string
	ScheduledTime calendar.SlotKey
	Status        Status
}

// MarkDose registra el resultado de un slot. Un segundo registro para el
// mismo (medicamento, slot) falla con ErrDuplicateLog, sin importar el status.
func (s *Service) MarkDose(ctx context.Context, in MarkDoseInput) (Log, error) {
	in.MedicineID = strings.TrimSpace(in.MedicineID)
	in.PatientID = strings.TrimSpace(in.PatientID)

	if !in.Status.Valid() {
		s.metrics.DoseRejected("invalid_status")
		return Log{}, ErrInvalidStatus
	}
	if in.MedicineID == "" || in.PatientID == "" || in.ScheduledTime.IsZero() {
		s.metrics.DoseRejected("invalid_input")
		return Log{}, ErrInvalidInput
	}

	owner, ok, err := s.medicines.MedicineOwner(ctx, in.MedicineID)
	if err != nil {
		return Log{}, s.storageErr("lookup medicine", in, err)
	}
	if !ok {
		s.metrics.DoseRejected("not_found")
		return Log{}, ErrNotFound
	}
	if owner != in.PatientID {
		s.metrics.DoseRejected("forbidden")
		return Log{}, ErrForbidden
	}

	release, err := s.slots.acquire(ctx, in.MedicineID+"|"+in.ScheduledTime.String())
	if err != nil {
		return Log{}, s.storageErr("acquire slot", in, err)
	}
	defer release()

	if _, err := s.repo.GetBySlot(ctx, in.MedicineID, in.ScheduledTime); err == nil {
		s.metrics.DoseRejected("duplicate")
		return Log{}, ErrDuplicateLog
	} else if !errors.Is(err, ErrNotFound) {
		return Log{}, s.storageErr("check slot", in, err)
	}

	l := Log{
		ID:            uuid.NewString(),
		MedicineID:    in.MedicineID,
		PatientID:     in.PatientID,
		ScheduledTime: in.ScheduledTime,
		Status:        in.Status,
		MarkedAt:      s.now().UTC(),
	}
	if err := s.repo.Insert(ctx, l); err != nil {
		// El store también tiene constraint único (otra instancia pudo ganar).
		if errors.Is(err, ErrDuplicateLog) {
			s.metrics.DoseRejected("duplicate")
			return Log{}, ErrDuplicateLog
		}
		return Log{}, s.storageErr("insert log", in, err)
	}

	s.metrics.DoseRecorded(string(l.Status))
	s.log.Info("dose recorded", map[string]any{
		"log_id":         l.ID,
		"medicine_id":    l.MedicineID,
		"patient_id":     l.PatientID,
		"scheduled_time": l.ScheduledTime.String(),
		"status":         string(l.Status),
	})
	return l, nil
}

func (s *Service) ListForPatient(ctx context.Context, patientID string) ([]Log, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, ErrInvalidInput
	}
	logs, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return logs, nil
}

// DayLogs agrupa los logs de un día.
type DayLogs struct {
	Date   calendar.Date
	Taken  int
	Missed int
	Logs   []Log
}

// History agrupa los logs por fecha del slot, fechas más recientes primero.
// Dentro de cada día los logs van por hora ascendente.
func (s *Service) History(ctx context.Context, patientID string) ([]DayLogs, error) {
	logs, err := s.ListForPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return groupByDate(logs), nil
}

func groupByDate(logs []Log) []DayLogs {
	idx := make(map[calendar.Date]int)
	out := make([]DayLogs, 0)
	for _, l := range logs {
		d := l.ScheduledTime.Date
		i, ok := idx[d]
		if !ok {
			i = len(out)
			idx[d] = i
			out = append(out, DayLogs{Date: d})
		}
		out[i].Logs = append(out[i].Logs, l)
		switch l.Status {
		case StatusTaken:
			out[i].Taken++
		case StatusMissed:
			out[i].Missed++
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	for _, day := range out {
		sort.SliceStable(day.Logs, func(i, j int) bool {
			if c := day.Logs[i].ScheduledTime.Time.Compare(day.Logs[j].ScheduledTime.Time); c != 0 {
				return c < 0
			}
			return day.Logs[i].MedicineID < day.Logs[j].MedicineID
		})
	}
	return out
}

func (s *Service) storageErr(op string, in MarkDoseInput, err error) error {
	s.metrics.DoseRejected("storage")
	s.log.Error("mark dose failed", map[string]any{
		"op":             op,
		"medicine_id":    in.MedicineID,
		"patient_id":     in.PatientID,
		"scheduled_time": in.ScheduledTime.String(),
		"error":          err,
	})
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}
