package schedule

import (
	"encoding/json"
	"net/http"
	"strings"

	"dawailo/internal/domain/calendar"
	"dawailo/internal/middleware"
	"dawailo/internal/ports/capabilities"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service, guard *middleware.Guard) {
	sched := guard.RequirePatientScope(capabilities.ScheduleRead)
	r.With(sched).Get("/patients/{patientID}/schedule", scheduleHandler(svc))
	r.With(sched).Get("/patients/{patientID}/schedule/upcoming", upcomingHandler(svc))

	r.With(guard.RequirePatientScope(capabilities.AdherenceRead)).Get("/patients/{patientID}/adherence/stats", statsHandler(svc))
}

type slotResponse struct {
	MedicineID    string     `json:"medicine_id"`
	MedicineName  string     `json:"medicine_name"`
	Dosage        string     `json:"dosage"`
	Time          string     `json:"time" example:"08:00"`
	ScheduledTime string     `json:"scheduled_time" example:"2026-10-16T08:00"`
	Status        SlotStatus `json:"status" enums:"pending,taken,missed"`
	LogID         string     `json:"log_id,omitempty"`
}

type scheduleResponse struct {
	Date  string         `json:"date"`
	Slots []slotResponse `json:"slots"`
}

type statsResponse struct {
	Date       string `json:"date"`
	Total      int    `json:"total"`
	Taken      int    `json:"taken"`
	Percentage int    `json:"percentage"`
}

// scheduleHandler godoc
// @Summary Plan de dosis del día
// @Description Slots ordenados por hora con status pending/taken/missed.
// @Tags schedule
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev"
// @Param X-Debug-User-Role header string false "Solo en modo dev"
// @Param Authorization header string false "Bearer token"
// @Param patientID path string true "ID del paciente"
// @Param date query string false "Día (YYYY-MM-DD). Por defecto hoy"
// @Success 200 {object} scheduleResponse
// @Failure 400 {string} string "date must be YYYY-MM-DD"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 500 {string} string "internal error"
// @Router /patients/{patientID}/schedule [get]
func scheduleHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		day, ok := dayParam(w, r, svc)
		if !ok {
			return
		}

		slots, err := svc.ScheduleFor(r.Context(), chi.URLParam(r, "patientID"), day)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, scheduleResponse{Date: day.String(), Slots: toSlotResponses(slots)})
	}
}

// upcomingHandler godoc
// @Summary Próximas dosis de hoy
// @Description Slots pending cuya hora todavía no pasó.
// @Tags schedule
// @Produce json
// @Param Authorization header string false "Bearer token"
// @Param patientID path string true "ID del paciente"
// @Success 200 {array} slotResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 500 {string} string "internal error"
// @Router /patients/{patientID}/schedule/upcoming [get]
func upcomingHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slots, err := svc.Upcoming(r.Context(), chi.URLParam(r, "patientID"))
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toSlotResponses(slots))
	}
}

// statsHandler godoc
// @Summary Adherencia del día
// @Tags adherence
// @Produce json
// @Param Authorization header string false "Bearer token"
// @Param patientID path string true "ID del paciente"
// @Param date query string false "Día (YYYY-MM-DD). Por defecto hoy"
// @Success 200 {object} statsResponse
// @Failure 400 {string} string "date must be YYYY-MM-DD"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 500 {string} string "internal error"
// @Router /patients/{patientID}/adherence/stats [get]
func statsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		day, ok := dayParam(w, r, svc)
		if !ok {
			return
		}

		st, err := svc.StatsFor(r.Context(), chi.URLParam(r, "patientID"), day)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, statsResponse{
			Date:       day.String(),
			Total:      st.Total,
			Taken:      st.Taken,
			Percentage: st.Percentage,
		})
	}
}

// dayParam lee ?date=; sin date es hoy. Si es inválido ya respondió 400.
func dayParam(w http.ResponseWriter, r *http.Request, svc *Service) (calendar.Date, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	if raw == "" {
		return svc.Today(), true
	}
	d, err := calendar.ParseDate(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return calendar.Date{}, false
	}
	return d, true
}

func toSlotResponses(slots []Slot) []slotResponse {
	out := make([]slotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, slotResponse{
			MedicineID:    s.Medicine.ID,
			MedicineName:  s.Medicine.Name,
			Dosage:        s.Medicine.Dosage,
			Time:          s.Time.String(),
			ScheduledTime: s.ScheduledTime.String(),
			Status:        s.Status,
			LogID:         s.LogID,
		})
	}
	return out
}

// writeJSON duplicado a propósito por módulo (ver users/handler.go).
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
