package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dawailo/internal/adapters/auth/jwt"
	"dawailo/internal/adapters/storage/sqlstore"
	"dawailo/internal/platform/metrics"
	"dawailo/internal/router"
)

const (
	doctorID     = "doc1"
	pharmacistID = "pharma1"
)

func TestHTTP_EndToEnd_DoseFlow_Memory(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{SeedDemo: true}))
	defer ts.Close()

	runDoseFlow(t, ts.URL)
}

func TestHTTP_EndToEnd_DoseFlow_SQLite(t *testing.T) {
	store, err := sqlstore.OpenSQLite(filepath.Join(t.TempDir(), "dawailo.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer store.Close()
	if _, err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ts := httptest.NewServer(router.NewRouter(router.Options{Store: store, SeedDemo: true}))
	defer ts.Close()

	runDoseFlow(t, ts.URL)
}

func runDoseFlow(t *testing.T, baseURL string) {
	t.Helper()

	// 1) Doctor registra paciente
	patientID := registerPatient(t, baseURL, "Neha Rao", "neha@test.com")

	// 2) Doctor crea prescripción con dos horarios (desordenados a propósito)
	medicineID := createPrescription(t, baseURL, patientID, map[string]any{
		"name":       "Metformin",
		"dosage":     "500mg",
		"frequency":  2,
		"times":      []string{"20:00", "08:00"},
		"start_date": "2026-03-01",
		"end_date":   "2026-03-31",
	})

	// 3) Paciente ve su plan: dos slots pending, ordenados por hora
	{
		slots := getSchedule(t, baseURL, patientID, "2026-03-10")
		if len(slots) != 2 {
			t.Fatalf("expected 2 slots, got %d", len(slots))
		}
		if slots[0].ScheduledTime != "2026-03-10T08:00" || slots[1].ScheduledTime != "2026-03-10T20:00" {
			t.Fatalf("unexpected slot order: %+v", slots)
		}
		for _, s := range slots {
			if s.Status != "pending" || s.MedicineID != medicineID {
				t.Fatalf("expected pending slot for %s, got %+v", medicineID, s)
			}
		}
	}

	// 4) Fuera del rango no hay slots
	{
		if slots := getSchedule(t, baseURL, patientID, "2026-04-01"); len(slots) != 0 {
			t.Fatalf("expected no slots after end_date, got %+v", slots)
		}
	}

	dose := map[string]any{
		"medicine_id":    medicineID,
		"scheduled_time": "2026-03-10T08:00",
		"status":         "taken",
	}

	// 5) Paciente marca la dosis de las 08:00
	var logID string
	{
		st, body := doReq(t, baseURL, "POST", "/adherence", patientID, "patient", dose)
		if st != http.StatusCreated {
			t.Fatalf("expected 201 mark dose, got %d body=%s", st, string(body))
		}
		var resp struct {
			Success bool   `json:"success"`
			LogID   string `json:"log_id"`
		}
		_ = json.Unmarshal(body, &resp)
		if !resp.Success || resp.LogID == "" {
			t.Fatalf("mark dose: unexpected body=%s", string(body))
		}
		logID = resp.LogID
	}

	// 6) El mismo slot no se registra dos veces
	{
		dose["status"] = "missed"
		st, body := doReq(t, baseURL, "POST", "/adherence", patientID, "patient", dose)
		if st != http.StatusConflict {
			t.Fatalf("expected 409 duplicate dose, got %d body=%s", st, string(body))
		}
	}

	// 7) Status fuera de taken/missed
	{
		st, _ := doReq(t, baseURL, "POST", "/adherence", patientID, "patient", map[string]any{
			"medicine_id":    medicineID,
			"scheduled_time": "2026-03-10T20:00",
			"status":         "snoozed",
		})
		if st != http.StatusBadRequest {
			t.Fatalf("expected 400 invalid status, got %d", st)
		}
	}

	// 8) Medicamento inexistente
	{
		st, _ := doReq(t, baseURL, "POST", "/adherence", patientID, "patient", map[string]any{
			"medicine_id":    "nope",
			"scheduled_time": "2026-03-10T20:00",
			"status":         "taken",
		})
		if st != http.StatusNotFound {
			t.Fatalf("expected 404 unknown medicine, got %d", st)
		}
	}

	// 9) El plan refleja el log
	{
		slots := getSchedule(t, baseURL, patientID, "2026-03-10")
		if len(slots) != 2 || slots[0].Status != "taken" || slots[0].LogID != logID || slots[1].Status != "pending" {
			t.Fatalf("expected [taken, pending], got %+v", slots)
		}
	}

	// 10) Stats del día: 1 de 2
	{
		st, body := doReq(t, baseURL, "GET", "/patients/"+patientID+"/adherence/stats?date=2026-03-10", patientID, "patient", nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 stats, got %d body=%s", st, string(body))
		}
		var resp struct {
			Total      int `json:"total"`
			Taken      int `json:"taken"`
			Percentage int `json:"percentage"`
		}
		_ = json.Unmarshal(body, &resp)
		if resp.Total != 2 || resp.Taken != 1 || resp.Percentage != 50 {
			t.Fatalf("unexpected stats body=%s", string(body))
		}
	}

	// 11) Historial agrupado por día
	{
		st, body := doReq(t, baseURL, "GET", "/patients/"+patientID+"/adherence/history", patientID, "patient", nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 history, got %d body=%s", st, string(body))
		}
		var days []struct {
			Date  string `json:"date"`
			Taken int    `json:"taken"`
		}
		_ = json.Unmarshal(body, &days)
		if len(days) != 1 || days[0].Date != "2026-03-10" || days[0].Taken != 1 {
			t.Fatalf("unexpected history body=%s", string(body))
		}
	}

	// 12) Un paciente no ve datos de otro
	{
		st, _ := doReq(t, baseURL, "GET", "/patients/patient1/schedule", patientID, "patient", nil)
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 foreign schedule, got %d", st)
		}
		st, _ = doReq(t, baseURL, "POST", "/adherence", patientID, "patient", map[string]any{
			"medicine_id":    medicineID,
			"patient_id":     "patient1",
			"scheduled_time": "2026-03-10T20:00",
			"status":         "taken",
		})
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 marking for another patient, got %d", st)
		}
	}

	// 13) Otro paciente no puede marcar un medicamento ajeno
	{
		st, _ := doReq(t, baseURL, "POST", "/adherence", "patient1", "patient", map[string]any{
			"medicine_id":    medicineID,
			"scheduled_time": "2026-03-10T20:00",
			"status":         "taken",
		})
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 foreign medicine, got %d", st)
		}
	}

	// 14) Farmacéutico lee prescripciones pero no receta, no marca y no ve el plan
	{
		st, _ := doReq(t, baseURL, "GET", "/patients/"+patientID+"/prescriptions", pharmacistID, "pharmacist", nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 prescriptions for pharmacist, got %d", st)
		}
		st, _ = doReq(t, baseURL, "GET", "/patients/"+patientID+"/schedule?date=2026-03-10", pharmacistID, "pharmacist", nil)
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 schedule for pharmacist, got %d", st)
		}
		st, _ = doReq(t, baseURL, "POST", "/prescriptions", pharmacistID, "pharmacist", map[string]any{
			"patient_id": patientID,
			"medicines":  []any{},
		})
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 pharmacist prescribing, got %d", st)
		}
		st, _ = doReq(t, baseURL, "POST", "/adherence", pharmacistID, "pharmacist", dose)
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 pharmacist marking dose, got %d", st)
		}
	}

	// 15) Doctor suspende el medicamento: desaparece del plan
	{
		st, body := doReq(t, baseURL, "PATCH", "/medicines/"+medicineID+"/stop", doctorID, "doctor", nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 stop medicine, got %d body=%s", st, string(body))
		}
		if slots := getSchedule(t, baseURL, patientID, "2026-03-10"); len(slots) != 0 {
			t.Fatalf("expected no slots after stop, got %+v", slots)
		}
	}
}

func TestHTTP_RequiresAuthentication(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{}))
	defer ts.Close()

	for _, path := range []string{"/me", "/patients", "/prescriptions", "/patients/patient1/schedule"} {
		st, _ := doReq(t, ts.URL, "GET", path, "", "", nil)
		if st != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %s, got %d", path, st)
		}
	}

	// Rol inválido en modo dev = sin claims
	st, _ := doReq(t, ts.URL, "GET", "/patients", doctorID, "admin", nil)
	if st != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown role, got %d", st)
	}
}

func TestHTTP_InvalidInputs(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{SeedDemo: true}))
	defer ts.Close()

	{
		st, _ := doReq(t, ts.URL, "GET", "/patients/patient1/schedule?date=10-03-2026", "patient1", "patient", nil)
		if st != http.StatusBadRequest {
			t.Fatalf("expected 400 bad date, got %d", st)
		}
	}
	{
		st, _ := doReq(t, ts.URL, "POST", "/adherence", "patient1", "patient", map[string]any{
			"medicine_id":    "m1",
			"scheduled_time": "2026-03-10 08:00",
			"status":         "taken",
		})
		if st != http.StatusBadRequest {
			t.Fatalf("expected 400 bad scheduled_time, got %d", st)
		}
	}
	{
		st, _ := doReq(t, ts.URL, "POST", "/prescriptions", doctorID, "doctor", map[string]any{
			"patient_id": "patient1",
			"medicines": []map[string]any{{
				"name": "X", "dosage": "1", "frequency": 1, "times": []string{"8am"},
				"start_date": "2026-03-01", "end_date": "2026-03-31",
			}},
		})
		if st != http.StatusBadRequest {
			t.Fatalf("expected 400 bad time, got %d", st)
		}
	}
	{
		st, _ := doReq(t, ts.URL, "POST", "/prescriptions", doctorID, "doctor", map[string]any{
			"patient_id": "ghost",
			"medicines": []map[string]any{{
				"name": "X", "dosage": "1", "frequency": 1, "times": []string{"08:00"},
				"start_date": "2026-03-01", "end_date": "2026-03-31",
			}},
		})
		if st != http.StatusNotFound {
			t.Fatalf("expected 404 unknown patient, got %d", st)
		}
	}
}

func TestHTTP_JWTLogin(t *testing.T) {
	tokens, err := jwt.New(jwt.Config{Secret: "0123456789abcdef-test", TTL: time.Hour})
	if err != nil {
		t.Fatalf("jwt.New: %v", err)
	}

	ts := httptest.NewServer(router.NewRouter(router.Options{
		AuthVerifier: tokens,
		TokenIssuer:  tokens,
		SeedDemo:     true,
	}))
	defer ts.Close()

	st, body := doReq(t, ts.URL, "POST", "/auth/login", "", "", map[string]any{
		"email":    "doctor@test.com",
		"password": "doctor123",
	})
	if st != http.StatusOK {
		t.Fatalf("expected 200 login, got %d body=%s", st, string(body))
	}
	var login struct {
		Token string `json:"token"`
	}
	_ = json.Unmarshal(body, &login)
	if login.Token == "" {
		t.Fatalf("login: missing token body=%s", string(body))
	}

	st, _ = doReq(t, ts.URL, "POST", "/auth/login", "", "", map[string]any{
		"email":    "doctor@test.com",
		"password": "wrong",
	})
	if st != http.StatusUnauthorized {
		t.Fatalf("expected 401 bad password, got %d", st)
	}

	req, _ := http.NewRequest("GET", ts.URL+"/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	me, _ := io.ReadAll(res.Body)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(me), `"role":"doctor"`) {
		t.Fatalf("expected 200 /me as doctor, got %d body=%s", res.StatusCode, string(me))
	}

	// Con verifier configurado los headers de debug no autentican
	st, _ = doReq(t, ts.URL, "GET", "/me", doctorID, "doctor", nil)
	if st != http.StatusUnauthorized {
		t.Fatalf("expected 401 debug headers in jwt mode, got %d", st)
	}
}

func TestHTTP_HealthAndMetrics(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{Metrics: metrics.New()}))
	defer ts.Close()

	st, body := doReq(t, ts.URL, "GET", "/health", "", "", nil)
	if st != http.StatusOK || string(body) != "ok" {
		t.Fatalf("expected 200 ok health, got %d body=%s", st, string(body))
	}

	st, body = doReq(t, ts.URL, "GET", "/metrics", "", "", nil)
	if st != http.StatusOK || !strings.Contains(string(body), `route="/health"`) {
		t.Fatalf("expected health request in metrics, got %d body=%s", st, string(body))
	}
}

type slot struct {
	MedicineID    string `json:"medicine_id"`
	ScheduledTime string `json:"scheduled_time"`
	Status        string `json:"status"`
	LogID         string `json:"log_id"`
}

func getSchedule(t *testing.T, baseURL, patientID, date string) []slot {
	t.Helper()

	st, body := doReq(t, baseURL, "GET", "/patients/"+patientID+"/schedule?date="+date, patientID, "patient", nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 schedule, got %d body=%s", st, string(body))
	}

	var resp struct {
		Date  string `json:"date"`
		Slots []slot `json:"slots"`
	}
	_ = json.Unmarshal(body, &resp)
	if resp.Date != date {
		t.Fatalf("schedule: expected date %s body=%s", date, string(body))
	}
	return resp.Slots
}

func registerPatient(t *testing.T, baseURL, name, email string) string {
	t.Helper()

	st, body := doReq(t, baseURL, "POST", "/patients", doctorID, "doctor", map[string]any{
		"name":     name,
		"email":    email,
		"password": "secret123",
	})
	if st != http.StatusCreated {
		t.Fatalf("expected 201 register patient, got %d body=%s", st, string(body))
	}

	var resp struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(body, &resp)
	if resp.ID == "" {
		t.Fatalf("register patient: missing id body=%s", string(body))
	}
	return resp.ID
}

func createPrescription(t *testing.T, baseURL, patientID string, medicine map[string]any) string {
	t.Helper()

	st, body := doReq(t, baseURL, "POST", "/prescriptions", doctorID, "doctor", map[string]any{
		"patient_id": patientID,
		"medicines":  []map[string]any{medicine},
	})
	if st != http.StatusCreated {
		t.Fatalf("expected 201 create prescription, got %d body=%s", st, string(body))
	}

	var resp struct {
		ID        string `json:"id"`
		Medicines []struct {
			ID    string   `json:"id"`
			Times []string `json:"times"`
		} `json:"medicines"`
	}
	_ = json.Unmarshal(body, &resp)
	if resp.ID == "" || len(resp.Medicines) != 1 || resp.Medicines[0].ID == "" {
		t.Fatalf("create prescription: unexpected body=%s", string(body))
	}
	if got := resp.Medicines[0].Times; len(got) != 2 || got[0] != "08:00" {
		t.Fatalf("expected sorted times, got %v", got)
	}
	return resp.Medicines[0].ID
}

func doReq(t *testing.T, baseURL, method, path, debugUserID, debugRole string, body any) (int, []byte) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, baseURL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if debugUserID != "" {
		req.Header.Set("X-Debug-User-ID", debugUserID)
		req.Header.Set("X-Debug-User-Role", debugRole)
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()

	respBody, _ := io.ReadAll(res.Body)
	return res.StatusCode, respBody
}
