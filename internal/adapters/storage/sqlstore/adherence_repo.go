package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dawailo/internal/domain/adherence"
	"dawailo/internal/domain/calendar"
)

type AdherenceRepo struct {
	s *Store
}

func NewAdherenceRepo(s *Store) *AdherenceRepo {
	return &AdherenceRepo{s: s}
}

const logColumns = `id, medicine_id, patient_id, scheduled_time, status, marked_at`

// Insert depende del UNIQUE (medicine_id, scheduled_time) para el caso de
// varias instancias compitiendo por el mismo slot.
func (r *AdherenceRepo) Insert(ctx context.Context, l adherence.Log) error {
	_, err := r.s.db.ExecContext(ctx, r.s.q(`
		INSERT INTO adherence_logs (`+logColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`),
		l.ID,
		l.MedicineID,
		l.PatientID,
		l.ScheduledTime.String(),
		string(l.Status),
		r.s.ts(l.MarkedAt),
	)
	if isUniqueViolation(err) {
		return adherence.ErrDuplicateLog
	}
	return err
}

func (r *AdherenceRepo) GetBySlot(ctx context.Context, medicineID string, slot calendar.SlotKey) (adherence.Log, error) {
	row := r.s.db.QueryRowContext(ctx, r.s.q(`
		SELECT `+logColumns+`
		FROM adherence_logs
		WHERE medicine_id = ? AND scheduled_time = ?
	`), medicineID, slot.String())

	l, err := scanLog(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return adherence.Log{}, adherence.ErrNotFound
		}
		return adherence.Log{}, err
	}
	return l, nil
}

func (r *AdherenceRepo) ListByPatient(ctx context.Context, patientID string) ([]adherence.Log, error) {
	rows, err := r.s.db.QueryContext(ctx, r.s.q(`
		SELECT `+logColumns+`
		FROM adherence_logs
		WHERE patient_id = ?
		ORDER BY scheduled_time DESC, medicine_id ASC
	`), patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]adherence.Log, 0)
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanLog(row rowScanner) (adherence.Log, error) {
	var (
		l        adherence.Log
		slot     string
		status   string
		markedAt scanTime
	)
	if err := row.Scan(&l.ID, &l.MedicineID, &l.PatientID, &slot, &status, &markedAt); err != nil {
		return adherence.Log{}, err
	}

	key, err := calendar.ParseSlotKey(slot)
	if err != nil {
		return adherence.Log{}, fmt.Errorf("adherence log %s: %w", l.ID, err)
	}
	l.ScheduledTime = key
	l.Status = adherence.Status(status)
	l.MarkedAt = markedAt.t
	return l, nil
}
