package prescriptions

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"dawailo/internal/domain/calendar"
	"dawailo/internal/middleware"
	"dawailo/internal/ports/auth"
	"dawailo/internal/ports/capabilities"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service, guard *middleware.Guard, loc *time.Location) {
	read := guard.Require(capabilities.PrescriptionsRead)
	write := guard.Require(capabilities.PrescriptionsWrite)

	r.With(read).Get("/prescriptions", listPrescriptionsHandler(svc))
	r.With(write).Post("/prescriptions", createPrescriptionHandler(svc))
	r.With(read).Get("/prescriptions/{prescriptionID}", getPrescriptionHandler(svc))
	r.With(write).Put("/prescriptions/{prescriptionID}", amendPrescriptionHandler(svc))

	r.With(read).Get("/doctors/{doctorID}/prescriptions", listDoctorPrescriptionsHandler(svc))

	r.With(guard.RequirePatientScope(capabilities.PrescriptionsRead)).Get("/patients/{patientID}/prescriptions", listPatientPrescriptionsHandler(svc))
	r.With(guard.RequirePatientScope(capabilities.PrescriptionsRead)).Get("/patients/{patientID}/medicines", listActiveMedicinesHandler(svc, loc))

	r.With(write).Patch("/medicines/{medicineID}/stop", stopMedicineHandler(svc))
}

// medicineRequest acepta start_date/end_date y también startDate/endDate
// (el front viejo manda camelCase). Se normaliza acá y en ningún otro lado.
type medicineRequest struct {
	ID        string   `json:"id,omitempty"`
	Name      string   `json:"name"`
	Dosage    string   `json:"dosage"`
	Frequency int      `json:"frequency"`
	Times     []string `json:"times"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	Status    string   `json:"status,omitempty"`

	StartDateCamel string `json:"startDate,omitempty" swaggerignore:"true"`
	EndDateCamel   string `json:"endDate,omitempty" swaggerignore:"true"`
}

type createPrescriptionRequest struct {
	PatientID string            `json:"patient_id"`
	Medicines []medicineRequest `json:"medicines"`

	PatientIDCamel string `json:"patientId,omitempty" swaggerignore:"true"`
}

type amendPrescriptionRequest struct {
	Medicines []medicineRequest `json:"medicines"`
}

type medicineResponse struct {
	ID             string               `json:"id"`
	PrescriptionID string               `json:"prescription_id"`
	PatientID      string               `json:"patient_id"`
	Name           string               `json:"name"`
	Dosage         string               `json:"dosage"`
	Frequency      int                  `json:"frequency"`
	Times          []calendar.TimeOfDay `json:"times" swaggertype:"array,string"`
	StartDate      calendar.Date        `json:"start_date" swaggertype:"string" example:"2026-01-01"`
	EndDate        calendar.Date        `json:"end_date" swaggertype:"string" example:"2026-01-31"`
	Status         Status               `json:"status"`
	CreatedAt      time.Time            `json:"created_at"`
}

type prescriptionResponse struct {
	ID        string             `json:"id"`
	PatientID string             `json:"patient_id"`
	DoctorID  string             `json:"doctor_id"`
	Medicines []medicineResponse `json:"medicines"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// listPrescriptionsHandler godoc
// @Summary Listar prescripciones
// @Description Doctor y farmacéutico ven todas; un paciente solo las suyas.
// @Tags prescriptions
// @Produce json
// @Param Authorization header string false "Bearer token"
// @Success 200 {array} prescriptionResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Router /prescriptions [get]
func listPrescriptionsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())

		var (
			items []Prescription
			err   error
		)
		if claims.Role == auth.RolePatient {
			items, err = svc.ListByPatient(r.Context(), claims.UserID)
		} else {
			items, err = svc.ListAll(r.Context())
		}
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toPrescriptionResponses(items))
	}
}

// createPrescriptionHandler godoc
// @Summary Crear prescripción
// @Description Solo doctores. Fechas YYYY-MM-DD, horas HH:MM.
// @Tags prescriptions
// @Accept json
// @Produce json
// @Param Authorization header string false "Bearer token"
// @Param payload body createPrescriptionRequest true "Paciente y medicamentos"
// @Success 201 {object} prescriptionResponse
// @Failure 400 {string} string "invalid json / datos inválidos"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "patient not found"
// @Router /prescriptions [post]
func createPrescriptionHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())

		var req createPrescriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		meds, err := toMedicineInputs(req.Medicines)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		patientID := firstNonEmpty(req.PatientID, req.PatientIDCamel)
		p, err := svc.Create(r.Context(), claims.UserID, patientID, meds)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toPrescriptionResponse(p))
	}
}

// getPrescriptionHandler godoc
// @Summary Ver prescripción
// @Tags prescriptions
// @Produce json
// @Param Authorization header string false "Bearer token"
// @Param prescriptionID path string true "ID de la prescripción"
// @Success 200 {object} prescriptionResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "prescription not found"
// @Router /prescriptions/{prescriptionID} [get]
func getPrescriptionHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())

		p, err := svc.GetByID(r.Context(), chi.URLParam(r, "prescriptionID"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		// 404 y no 403 para no revelar que existe.
		if claims.Role == auth.RolePatient && p.PatientID != claims.UserID {
			http.Error(w, "prescription not found", http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, toPrescriptionResponse(p))
	}
}

// amendPrescriptionHandler godoc
// @Summary Modificar prescripción
// @Description Reemplaza la lista de medicamentos. Los omitidos quedan stopped.
// @Tags prescriptions
// @Accept json
// @Produce json
// @Param Authorization header string false "Bearer token"
// @Param prescriptionID path string true "ID de la prescripción"
// @Param payload body amendPrescriptionRequest true "Medicamentos"
// @Success 200 {object} prescriptionResponse
// @Failure 400 {string} string "invalid json / datos inválidos"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "prescription not found"
// @Router /prescriptions/{prescriptionID} [put]
func amendPrescriptionHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())

		var req amendPrescriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		meds, err := toMedicineInputs(req.Medicines)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		p, err := svc.Amend(r.Context(), chi.URLParam(r, "prescriptionID"), claims.UserID, meds)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toPrescriptionResponse(p))
	}
}

// listDoctorPrescriptionsHandler godoc
// @Summary Prescripciones de un doctor
// @Tags prescriptions
// @Produce json
// @Param Authorization header string false "Bearer token"
// @Param doctorID path string true "ID del doctor"
// @Success 200 {array} prescriptionResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Router /doctors/{doctorID}/prescriptions [get]
func listDoctorPrescriptionsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())
		if claims.Role == auth.RolePatient {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		items, err := svc.ListByDoctor(r.Context(), chi.URLParam(r, "doctorID"))
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toPrescriptionResponses(items))
	}
}

// listPatientPrescriptionsHandler godoc
// @Summary Prescripciones de un paciente
// @Tags prescriptions
// @Produce json
// @Param Authorization header string false "Bearer token"
// @Param patientID path string true "ID del paciente"
// @Success 200 {array} prescriptionResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Router /patients/{patientID}/prescriptions [get]
func listPatientPrescriptionsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.ListByPatient(r.Context(), chi.URLParam(r, "patientID"))
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toPrescriptionResponses(items))
	}
}

// listActiveMedicinesHandler godoc
// @Summary Medicamentos vigentes de un paciente
// @Tags prescriptions
// @Produce json
// @Param Authorization header string false "Bearer token"
// @Param patientID path string true "ID del paciente"
// @Param date query string false "Día a evaluar (YYYY-MM-DD). Por defecto hoy"
// @Success 200 {array} medicineResponse
// @Failure 400 {string} string "date must be YYYY-MM-DD"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Router /patients/{patientID}/medicines [get]
func listActiveMedicinesHandler(svc *Service, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asOf := calendar.DateOf(svc.now(), loc)
		if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
			d, err := calendar.ParseDate(raw)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			asOf = d
		}

		items, err := svc.ActiveMedicinesForPatient(r.Context(), chi.URLParam(r, "patientID"), asOf)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]medicineResponse, 0, len(items))
		for _, m := range items {
			out = append(out, toMedicineResponse(m))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// stopMedicineHandler godoc
// @Summary Suspender medicamento
// @Description Idempotente. Solo el doctor que lo recetó.
// @Tags prescriptions
// @Produce json
// @Param Authorization header string false "Bearer token"
// @Param medicineID path string true "ID del medicamento"
// @Success 200 {object} medicineResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "medicine not found"
// @Router /medicines/{medicineID}/stop [patch]
func stopMedicineHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())

		m, err := svc.StopMedicine(r.Context(), chi.URLParam(r, "medicineID"), claims.UserID)
		if err != nil {
			if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidInput) {
				http.Error(w, "medicine not found", http.StatusNotFound)
				return
			}
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toMedicineResponse(m))
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrPatientNotFound):
		http.Error(w, "patient not found", http.StatusNotFound)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "prescription not found", http.StatusNotFound)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toMedicineInputs(reqs []medicineRequest) ([]MedicineInput, error) {
	out := make([]MedicineInput, 0, len(reqs))
	for i, req := range reqs {
		start, err := calendar.ParseDate(firstNonEmpty(req.StartDate, req.StartDateCamel))
		if err != nil {
			return nil, fmt.Errorf("medicine %d: start_date: %w", i+1, err)
		}
		end, err := calendar.ParseDate(firstNonEmpty(req.EndDate, req.EndDateCamel))
		if err != nil {
			return nil, fmt.Errorf("medicine %d: end_date: %w", i+1, err)
		}

		times := make([]calendar.TimeOfDay, 0, len(req.Times))
		for _, raw := range req.Times {
			t, err := calendar.ParseTimeOfDay(raw)
			if err != nil {
				return nil, fmt.Errorf("medicine %d: times: %w", i+1, err)
			}
			times = append(times, t)
		}

		out = append(out, MedicineInput{
			ID:        req.ID,
			Name:      req.Name,
			Dosage:    req.Dosage,
			Frequency: req.Frequency,
			Times:     times,
			StartDate: start,
			EndDate:   end,
			Status:    Status(strings.ToLower(strings.TrimSpace(req.Status))),
		})
	}
	return out, nil
}

func toMedicineResponse(m Medicine) medicineResponse {
	times := m.Times
	if times == nil {
		times = []calendar.TimeOfDay{}
	}
	return medicineResponse{
		ID:             m.ID,
		PrescriptionID: m.PrescriptionID,
		PatientID:      m.PatientID,
		Name:           m.Name,
		Dosage:         m.Dosage,
		Frequency:      m.Frequency,
		Times:          times,
		StartDate:      m.StartDate,
		EndDate:        m.EndDate,
		Status:         m.Status,
		CreatedAt:      m.CreatedAt,
	}
}

func toPrescriptionResponse(p Prescription) prescriptionResponse {
	meds := make([]medicineResponse, 0, len(p.Medicines))
	for _, m := range p.Medicines {
		meds = append(meds, toMedicineResponse(m))
	}
	return prescriptionResponse{
		ID:        p.ID,
		PatientID: p.PatientID,
		DoctorID:  p.DoctorID,
		Medicines: meds,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func toPrescriptionResponses(items []Prescription) []prescriptionResponse {
	out := make([]prescriptionResponse, 0, len(items))
	for _, p := range items {
		out = append(out, toPrescriptionResponse(p))
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// writeJSON duplicado a propósito por módulo (ver users/handler.go).
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
