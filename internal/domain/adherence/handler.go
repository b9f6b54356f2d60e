package adherence

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"dawailo/internal/domain/calendar"
	"dawailo/internal/middleware"
	"dawailo/internal/ports/capabilities"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service, guard *middleware.Guard) {
	r.With(guard.Require(capabilities.AdherenceWrite)).Post("/adherence", markDoseHandler(svc))

	read := guard.RequirePatientScope(capabilities.AdherenceRead)
	r.With(read).Get("/patients/{patientID}/adherence", listLogsHandler(svc))
	r.With(read).Get("/patients/{patientID}/adherence/history", historyHandler(svc))
}

type markDoseRequest struct {
	MedicineID    string `json:"medicine_id"`
	PatientID     string `json:"patient_id,omitempty"`
	ScheduledTime string `json:"scheduled_time" example:"2026-10-16T08:00"`
	Status        string `json:"status" enums:"taken,missed"`

	MedicineIDCamel    string `json:"medicineId,omitempty" swaggerignore:"true"`
	PatientIDCamel     string `json:"patientId,omitempty" swaggerignore:"true"`
	ScheduledTimeCamel string `json:"scheduledTime,omitempty" swaggerignore:"true"`
}

type markDoseResponse struct {
	Success bool   `json:"success"`
	LogID   string `json:"log_id"`
}

type logResponse struct {
	ID            string    `json:"id"`
	MedicineID    string    `json:"medicine_id"`
	PatientID     string    `json:"patient_id"`
	ScheduledTime string    `json:"scheduled_time"`
	Status        Status    `json:"status"`
	MarkedAt      time.Time `json:"marked_at"`
}

type dayResponse struct {
	Date   string        `json:"date"`
	Taken  int           `json:"taken"`
	Missed int           `json:"missed"`
	Logs   []logResponse `json:"logs"`
}

// markDoseHandler godoc
// @Summary Registrar toma de una dosis
// @Description Un solo registro por (medicamento, slot). El paciente solo registra las suyas.
// @Tags adherence
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev"
// @Param X-Debug-User-Role header string false "Solo en modo dev (patient)"
// @Param Authorization header string false "Bearer token"
// @Param payload body markDoseRequest true "Slot y resultado"
// @Success 201 {object} markDoseResponse
// @Failure 400 {string} string "invalid json / status inválido / scheduled_time inválido"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "medicine not found"
// @Failure 409 {string} string "dose already recorded"
// @Failure 500 {string} string "internal error"
// @Router /adherence [post]
func markDoseHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())

		var req markDoseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		patientID := firstNonEmpty(req.PatientID, req.PatientIDCamel)
		if patientID == "" {
			patientID = claims.UserID
		}
		if patientID != claims.UserID {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		status := Status(strings.ToLower(strings.TrimSpace(req.Status)))
		if !status.Valid() {
			svc.metrics.DoseRejected("invalid_status")
			http.Error(w, ErrInvalidStatus.Error(), http.StatusBadRequest)
			return
		}

		slot, err := calendar.ParseSlotKey(firstNonEmpty(req.ScheduledTime, req.ScheduledTimeCamel))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		l, err := svc.MarkDose(r.Context(), MarkDoseInput{
			MedicineID:    firstNonEmpty(req.MedicineID, req.MedicineIDCamel),
			PatientID:     patientID,
			ScheduledTime: slot,
			Status:        status,
		})
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrInvalidInput):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, ErrNotFound):
				http.Error(w, err.Error(), http.StatusNotFound)
			case errors.Is(err, ErrForbidden):
				http.Error(w, "forbidden", http.StatusForbidden)
			case errors.Is(err, ErrDuplicateLog):
				http.Error(w, err.Error(), http.StatusConflict)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusCreated, markDoseResponse{Success: true, LogID: l.ID})
	}
}

// listLogsHandler godoc
// @Summary Logs de adherencia de un paciente
// @Description Más recientes primero (por scheduled_time).
// @Tags adherence
// @Produce json
// @Param Authorization header string false "Bearer token"
// @Param patientID path string true "ID del paciente"
// @Success 200 {array} logResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Router /patients/{patientID}/adherence [get]
func listLogsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logs, err := svc.ListForPatient(r.Context(), chi.URLParam(r, "patientID"))
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toLogResponses(logs))
	}
}

// historyHandler godoc
// @Summary Historial de adherencia agrupado por día
// @Tags adherence
// @Produce json
// @Param Authorization header string false "Bearer token"
// @Param patientID path string true "ID del paciente"
// @Success 200 {array} dayResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Router /patients/{patientID}/adherence/history [get]
func historyHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days, err := svc.History(r.Context(), chi.URLParam(r, "patientID"))
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]dayResponse, 0, len(days))
		for _, d := range days {
			out = append(out, dayResponse{
				Date:   d.Date.String(),
				Taken:  d.Taken,
				Missed: d.Missed,
				Logs:   toLogResponses(d.Logs),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func toLogResponses(logs []Log) []logResponse {
	out := make([]logResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, logResponse{
			ID:            l.ID,
			MedicineID:    l.MedicineID,
			PatientID:     l.PatientID,
			ScheduledTime: l.ScheduledTime.String(),
			Status:        l.Status,
			MarkedAt:      l.MarkedAt,
		})
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
