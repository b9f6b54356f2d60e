package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"dawailo/internal/domain/adherence"
	"dawailo/internal/domain/calendar"
	"dawailo/internal/domain/prescriptions"
	"dawailo/internal/domain/users"
	"dawailo/internal/ports/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "dawailo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	n, err := s.Migrate(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	return s
}

var t0 = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

func seedUsers(t *testing.T, s *Store) {
	t.Helper()
	repo := NewUsersRepo(s)
	for i, u := range []users.User{
		{ID: "doc1", Name: "Dr. Sharma", Email: "doctor@test.com", Role: auth.RoleDoctor},
		{ID: "patient1", Name: "Rajesh Singh", Email: "patient@test.com", Role: auth.RolePatient},
		{ID: "patient2", Name: "Priya Patel", Email: "patient2@test.com", Role: auth.RolePatient},
	} {
		u.PasswordHash = "hash"
		u.CreatedAt = t0.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(context.Background(), u))
	}
}

func TestPlaceholderRebind(t *testing.T) {
	pg := &Store{dialect: Postgres}
	lite := &Store{dialect: SQLite}

	q := `SELECT * FROM t WHERE a = ? AND b IN (` + placeholders(2) + `)`
	assert.Equal(t, `SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)`, pg.q(q))
	assert.Equal(t, `SELECT * FROM t WHERE a = ? AND b IN (?, ?)`, lite.q(q))
}

func TestMigrate_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n, err := s.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	v, err := s.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestUsersRepo(t *testing.T) {
	s := openTestStore(t)
	seedUsers(t, s)
	repo := NewUsersRepo(s)
	ctx := context.Background()

	u, err := repo.GetByEmail(ctx, "Patient@Test.com")
	require.NoError(t, err)
	assert.Equal(t, "patient1", u.ID)
	assert.Equal(t, auth.RolePatient, u.Role)
	assert.True(t, u.CreatedAt.Equal(t0.Add(time.Minute)))

	_, err = repo.GetByID(ctx, "ghost")
	assert.ErrorIs(t, err, users.ErrNotFound)

	err = repo.Create(ctx, users.User{ID: "x", Name: "Dup", Email: "doctor@test.com", PasswordHash: "h", Role: auth.RoleDoctor, CreatedAt: t0})
	assert.ErrorIs(t, err, users.ErrEmailTaken)

	list, err := repo.ListByRole(ctx, auth.RolePatient)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "patient2", list[0].ID, "newest first")

	found, err := repo.Search(ctx, auth.RolePatient, "PRIYA")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "patient2", found[0].ID)

	found, err = repo.Search(ctx, auth.RolePatient, "%")
	require.NoError(t, err)
	assert.Empty(t, found, "LIKE wildcards must be escaped")
}

func newPrescription(id string, meds ...prescriptions.Medicine) prescriptions.Prescription {
	p := prescriptions.Prescription{
		ID:        id,
		PatientID: "patient1",
		DoctorID:  "doc1",
		CreatedAt: t0,
		UpdatedAt: t0,
	}
	for _, m := range meds {
		m.PrescriptionID = id
		m.PatientID = "patient1"
		p.Medicines = append(p.Medicines, m)
	}
	return p
}

func newMedicine(id string, times ...string) prescriptions.Medicine {
	tt := make([]calendar.TimeOfDay, 0, len(times))
	for _, s := range times {
		tt = append(tt, calendar.MustTimeOfDay(s))
	}
	return prescriptions.Medicine{
		ID:        id,
		Name:      "Med " + id,
		Dosage:    "500mg",
		Frequency: len(times),
		Times:     tt,
		StartDate: calendar.NewDate(2026, time.October, 1),
		EndDate:   calendar.NewDate(2026, time.October, 31),
		Status:    prescriptions.StatusActive,
		CreatedAt: t0,
	}
}

func TestPrescriptionsRepo_RoundTripAndUpsert(t *testing.T) {
	s := openTestStore(t)
	seedUsers(t, s)
	repo := NewPrescriptionsRepo(s)
	ctx := context.Background()

	p := newPrescription("rx1", newMedicine("m1", "08:00", "20:00"), newMedicine("m2", "12:00"))
	require.NoError(t, repo.Create(ctx, p))

	got, err := repo.GetByID(ctx, "rx1")
	require.NoError(t, err)
	require.Len(t, got.Medicines, 2)
	m1 := got.Medicines[0]
	assert.Equal(t, "m1", m1.ID)
	assert.Equal(t, "patient1", m1.PatientID)
	assert.Equal(t, []string{"08:00", "20:00"}, []string{m1.Times[0].String(), m1.Times[1].String()})
	assert.Equal(t, "2026-10-01", m1.StartDate.String())
	assert.Equal(t, "2026-10-31", m1.EndDate.String())

	// Save: actualiza m1, agrega m3, m2 queda como está
	upd := newMedicine("m1", "09:00")
	upd.Dosage = "1g"
	got.Medicines = []prescriptions.Medicine{upd, newMedicine("m3", "21:00")}
	got.UpdatedAt = t0.Add(time.Hour)
	require.NoError(t, repo.Save(ctx, got))

	meds, err := repo.ListMedicinesByPatient(ctx, "patient1")
	require.NoError(t, err)
	require.Len(t, meds, 3)
	assert.Equal(t, "1g", meds[0].Dosage)
	assert.Equal(t, "09:00", meds[0].Times[0].String())

	require.NoError(t, repo.SetMedicineStatus(ctx, "m2", prescriptions.StatusStopped))
	m2, err := repo.GetMedicine(ctx, "m2")
	require.NoError(t, err)
	assert.Equal(t, prescriptions.StatusStopped, m2.Status)

	_, err = repo.GetMedicine(ctx, "nope")
	assert.ErrorIs(t, err, prescriptions.ErrNotFound)
	assert.ErrorIs(t, repo.SetMedicineStatus(ctx, "nope", prescriptions.StatusStopped), prescriptions.ErrNotFound)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].UpdatedAt.Equal(t0.Add(time.Hour)))

	byDoctor, err := repo.ListByDoctor(ctx, "doc1")
	require.NoError(t, err)
	assert.Len(t, byDoctor, 1)

	none, err := repo.ListByPatient(ctx, "patient2")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAdherenceRepo_UniqueSlot(t *testing.T) {
	s := openTestStore(t)
	seedUsers(t, s)
	ctx := context.Background()
	require.NoError(t, NewPrescriptionsRepo(s).Create(ctx, newPrescription("rx1", newMedicine("m1", "08:00", "20:00"))))

	repo := NewAdherenceRepo(s)
	at, err := calendar.ParseSlotKey("2026-10-16T08:00")
	require.NoError(t, err)

	_, err = repo.GetBySlot(ctx, "m1", at)
	assert.ErrorIs(t, err, adherence.ErrNotFound)

	l := adherence.Log{ID: "l1", MedicineID: "m1", PatientID: "patient1", ScheduledTime: at, Status: adherence.StatusTaken, MarkedAt: t0}
	require.NoError(t, repo.Insert(ctx, l))

	dup := l
	dup.ID = "l2"
	dup.Status = adherence.StatusMissed
	err = repo.Insert(ctx, dup)
	assert.True(t, errors.Is(err, adherence.ErrDuplicateLog), "got %v", err)

	evening, _ := calendar.ParseSlotKey("2026-10-16T20:00")
	require.NoError(t, repo.Insert(ctx, adherence.Log{ID: "l3", MedicineID: "m1", PatientID: "patient1", ScheduledTime: evening, Status: adherence.StatusMissed, MarkedAt: t0}))

	got, err := repo.GetBySlot(ctx, "m1", at)
	require.NoError(t, err)
	assert.Equal(t, "l1", got.ID)
	assert.Equal(t, at, got.ScheduledTime)

	logs, err := repo.ListByPatient(ctx, "patient1")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "l3", logs[0].ID, "newest slot first")
}
