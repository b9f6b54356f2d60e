package schedule

import (
	"context"
	"strings"
	"time"

	"dawailo/internal/domain/adherence"
	"dawailo/internal/domain/calendar"
	"dawailo/internal/domain/prescriptions"
	"dawailo/internal/platform/logger"

	"golang.org/x/sync/errgroup"
)

// MedicineSource lo implementa prescriptions.Service.
type MedicineSource interface {
	ActiveMedicinesForPatient(ctx context.Context, patientID string, asOf calendar.Date) ([]prescriptions.Medicine, error)
}

// LogSource lo implementa adherence.Service.
type LogSource interface {
	ListForPatient(ctx context.Context, patientID string) ([]adherence.Log, error)
}

type Service struct {
	medicines MedicineSource
	logs      LogSource
	loc       *time.Location
	log       logger.Logger
	now       func() time.Time
}

// NewService: loc define qué es "hoy"; nil = UTC.
func NewService(medicines MedicineSource, logs LogSource, loc *time.Location, log logger.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		medicines: medicines,
		logs:      logs,
		loc:       loc,
		log:       log.With(map[string]any{"component": "schedule"}),
		now:       time.Now,
	}
}

func (s *Service) Today() calendar.Date {
	return calendar.DateOf(s.now(), s.loc)
}

func (s *Service) TodaySchedule(ctx context.Context, patientID string) ([]Slot, error) {
	return s.ScheduleFor(ctx, patientID, s.Today())
}

// ScheduleFor lee medicamentos y logs en paralelo y devuelve los slots de day
// con su status resuelto.
func (s *Service) ScheduleFor(ctx context.Context, patientID string, day calendar.Date) ([]Slot, error) {
	patientID = strings.TrimSpace(patientID)

	var (
		meds []prescriptions.Medicine
		logs []adherence.Log
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		meds, err = s.medicines.ActiveMedicinesForPatient(gctx, patientID, day)
		return err
	})
	g.Go(func() error {
		var err error
		logs, err = s.logs.ListForPatient(gctx, patientID)
		return err
	})
	if err := g.Wait(); err != nil {
		s.log.Error("load schedule failed", map[string]any{
			"patient_id": patientID,
			"date":       day.String(),
			"error":      err,
		})
		return nil, err
	}

	return Correlate(Derive(meds, day), logs), nil
}

func (s *Service) AdherenceStats(ctx context.Context, patientID string) (Stats, error) {
	return s.StatsFor(ctx, patientID, s.Today())
}

func (s *Service) StatsFor(ctx context.Context, patientID string, day calendar.Date) (Stats, error) {
	slots, err := s.ScheduleFor(ctx, patientID, day)
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(slots), nil
}

// Upcoming: slots de hoy todavía pending cuya hora no pasó.
// Es el feed que usa el cliente para los recordatorios.
func (s *Service) Upcoming(ctx context.Context, patientID string) ([]Slot, error) {
	now := s.now()
	slots, err := s.ScheduleFor(ctx, patientID, calendar.DateOf(now, s.loc))
	if err != nil {
		return nil, err
	}

	current := calendar.TimeOfDayOf(now, s.loc)
	out := make([]Slot, 0, len(slots))
	for _, sl := range slots {
		if sl.Status == SlotPending && sl.Time.Compare(current) >= 0 {
			out = append(out, sl)
		}
	}
	return out, nil
}
