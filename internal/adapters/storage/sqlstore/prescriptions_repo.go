package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"dawailo/internal/domain/calendar"
	"dawailo/internal/domain/prescriptions"
)

type PrescriptionsRepo struct {
	s *Store
}

func NewPrescriptionsRepo(s *Store) *PrescriptionsRepo {
	return &PrescriptionsRepo{s: s}
}

const medicineSelect = `
	SELECT
		m.id, m.prescription_id, p.patient_id,
		m.name, m.dosage, m.frequency, m.times,
		m.start_date, m.end_date, m.status, m.created_at
	FROM medicines m
	JOIN prescriptions p ON p.id = m.prescription_id
`

func (r *PrescriptionsRepo) Create(ctx context.Context, p prescriptions.Prescription) error {
	tx, err := r.s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer rollback(tx)

	if _, err := tx.ExecContext(ctx, r.s.q(`
		INSERT INTO prescriptions (id, patient_id, doctor_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`), p.ID, p.PatientID, p.DoctorID, r.s.ts(p.CreatedAt), r.s.ts(p.UpdatedAt)); err != nil {
		return err
	}

	for _, m := range p.Medicines {
		if err := r.upsertMedicine(ctx, tx, p.ID, m); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *PrescriptionsRepo) Save(ctx context.Context, p prescriptions.Prescription) error {
	tx, err := r.s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer rollback(tx)

	res, err := tx.ExecContext(ctx, r.s.q(`UPDATE prescriptions SET updated_at = ? WHERE id = ?`), r.s.ts(p.UpdatedAt), p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return prescriptions.ErrNotFound
	}

	for _, m := range p.Medicines {
		if err := r.upsertMedicine(ctx, tx, p.ID, m); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *PrescriptionsRepo) upsertMedicine(ctx context.Context, tx *sql.Tx, prescriptionID string, m prescriptions.Medicine) error {
	times, err := encodeTimes(m.Times)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, r.s.q(`
		INSERT INTO medicines (
			id, prescription_id,
			name, dosage, frequency, times,
			start_date, end_date, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			dosage = excluded.dosage,
			frequency = excluded.frequency,
			times = excluded.times,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			status = excluded.status
	`),
		m.ID,
		prescriptionID,
		m.Name,
		m.Dosage,
		m.Frequency,
		times,
		m.StartDate.String(),
		m.EndDate.String(),
		string(m.Status),
		r.s.ts(m.CreatedAt),
	)
	return err
}

func (r *PrescriptionsRepo) GetByID(ctx context.Context, id string) (prescriptions.Prescription, error) {
	items, err := r.list(ctx, `WHERE id = ?`, strings.TrimSpace(id))
	if err != nil {
		return prescriptions.Prescription{}, err
	}
	if len(items) == 0 {
		return prescriptions.Prescription{}, prescriptions.ErrNotFound
	}
	return items[0], nil
}

func (r *PrescriptionsRepo) ListByPatient(ctx context.Context, patientID string) ([]prescriptions.Prescription, error) {
	return r.list(ctx, `WHERE patient_id = ?`, patientID)
}

func (r *PrescriptionsRepo) ListByDoctor(ctx context.Context, doctorID string) ([]prescriptions.Prescription, error) {
	return r.list(ctx, `WHERE doctor_id = ?`, doctorID)
}

func (r *PrescriptionsRepo) ListAll(ctx context.Context) ([]prescriptions.Prescription, error) {
	return r.list(ctx, ``)
}

// list carga prescripciones (más recientes primero) y después sus
// medicamentos en una sola query.
func (r *PrescriptionsRepo) list(ctx context.Context, where string, args ...any) ([]prescriptions.Prescription, error) {
	rows, err := r.s.db.QueryContext(ctx, r.s.q(`
		SELECT id, patient_id, doctor_id, created_at, updated_at
		FROM prescriptions
		`+where+`
		ORDER BY created_at DESC, id ASC
	`), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]prescriptions.Prescription, 0)
	index := make(map[string]int)
	for rows.Next() {
		var (
			p                prescriptions.Prescription
			created, updated scanTime
		)
		if err := rows.Scan(&p.ID, &p.PatientID, &p.DoctorID, &created, &updated); err != nil {
			return nil, err
		}
		p.CreatedAt, p.UpdatedAt = created.t, updated.t
		p.Medicines = []prescriptions.Medicine{}
		index[p.ID] = len(out)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]any, 0, len(out))
	for _, p := range out {
		ids = append(ids, p.ID)
	}
	meds, err := r.listMedicines(ctx, `WHERE m.prescription_id IN (`+placeholders(len(ids))+`) ORDER BY m.created_at ASC, m.id ASC`, ids...)
	if err != nil {
		return nil, err
	}
	for _, m := range meds {
		i := index[m.PrescriptionID]
		out[i].Medicines = append(out[i].Medicines, m)
	}
	return out, nil
}

func (r *PrescriptionsRepo) GetMedicine(ctx context.Context, id string) (prescriptions.Medicine, error) {
	meds, err := r.listMedicines(ctx, `WHERE m.id = ?`, strings.TrimSpace(id))
	if err != nil {
		return prescriptions.Medicine{}, err
	}
	if len(meds) == 0 {
		return prescriptions.Medicine{}, prescriptions.ErrNotFound
	}
	return meds[0], nil
}

func (r *PrescriptionsRepo) SetMedicineStatus(ctx context.Context, id string, status prescriptions.Status) error {
	res, err := r.s.db.ExecContext(ctx, r.s.q(`UPDATE medicines SET status = ? WHERE id = ?`), string(status), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return prescriptions.ErrNotFound
	}
	return nil
}

func (r *PrescriptionsRepo) ListMedicinesByPatient(ctx context.Context, patientID string) ([]prescriptions.Medicine, error) {
	return r.listMedicines(ctx, `WHERE p.patient_id = ? ORDER BY m.id ASC`, patientID)
}

func (r *PrescriptionsRepo) listMedicines(ctx context.Context, tail string, args ...any) ([]prescriptions.Medicine, error) {
	rows, err := r.s.db.QueryContext(ctx, r.s.q(medicineSelect+tail), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]prescriptions.Medicine, 0)
	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMedicine(row rowScanner) (prescriptions.Medicine, error) {
	var (
		m          prescriptions.Medicine
		times      []byte
		start, end scanText
		status     string
		created    scanTime
	)
	if err := row.Scan(
		&m.ID,
		&m.PrescriptionID,
		&m.PatientID,
		&m.Name,
		&m.Dosage,
		&m.Frequency,
		&times,
		&start,
		&end,
		&status,
		&created,
	); err != nil {
		return prescriptions.Medicine{}, err
	}

	var err error
	if m.Times, err = decodeTimes(times); err != nil {
		return prescriptions.Medicine{}, fmt.Errorf("medicine %s: %w", m.ID, err)
	}
	if m.StartDate, err = calendar.ParseDate(start.s); err != nil {
		return prescriptions.Medicine{}, fmt.Errorf("medicine %s: start_date: %w", m.ID, err)
	}
	if m.EndDate, err = calendar.ParseDate(end.s); err != nil {
		return prescriptions.Medicine{}, fmt.Errorf("medicine %s: end_date: %w", m.ID, err)
	}
	m.Status = prescriptions.Status(status)
	m.CreatedAt = created.t
	return m, nil
}

// times se guarda como arreglo JSON de "HH:MM".
func encodeTimes(times []calendar.TimeOfDay) (string, error) {
	if times == nil {
		times = []calendar.TimeOfDay{}
	}
	b, err := json.Marshal(times)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeTimes tolera filas viejas sin horas: devuelve lista vacía.
func decodeTimes(raw []byte) ([]calendar.TimeOfDay, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return []calendar.TimeOfDay{}, nil
	}
	var out []calendar.TimeOfDay
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Join(calendar.ErrInvalidTimeOfDay, err)
	}
	return out, nil
}
