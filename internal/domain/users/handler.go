package users

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"dawailo/internal/middleware"
	"dawailo/internal/ports/auth"
	"dawailo/internal/ports/capabilities"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service, guard *middleware.Guard) {
	r.Post("/auth/login", loginHandler(svc))
	r.With(guard.Authenticated).Get("/me", meHandler(svc))

	r.With(guard.Require(capabilities.PatientsRead)).Get("/patients", listPatientsHandler(svc))
	r.With(guard.Require(capabilities.PatientsWrite)).Post("/patients", registerPatientHandler(svc))
	r.With(guard.Require(capabilities.PatientsRead)).Get("/patients/search", searchPatientsHandler(svc))

	// El paciente puede ver su propia ficha.
	r.With(guard.RequirePatientScope(capabilities.PatientsRead)).Get("/patients/{patientID}", getPatientHandler(svc))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string       `json:"token,omitempty"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
	User      userResponse `json:"user"`
}

type registerPatientRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      auth.Role `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// loginHandler godoc
// @Summary Login con email y contraseña
// @Description En modo jwt devuelve un bearer token; en modo dev solo el usuario.
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body loginRequest true "Credenciales"
// @Success 200 {object} loginResponse
// @Failure 400 {string} string "invalid json"
// @Failure 401 {string} string "invalid credentials"
// @Router /auth/login [post]
func loginHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		res, err := svc.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, ErrInvalidCredentials) {
				http.Error(w, "invalid credentials", http.StatusUnauthorized)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, loginResponse{
			Token:     res.Token,
			ExpiresAt: res.ExpiresAt,
			User:      toUserResponse(res.User),
		})
	}
}

// meHandler godoc
// @Summary Usuario autenticado
// @Tags auth
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev"
// @Param X-Debug-User-Role header string false "Solo en modo dev (doctor|pharmacist|patient)"
// @Param Authorization header string false "Bearer token"
// @Success 200 {object} userResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "user not found"
// @Router /me [get]
func meHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())

		u, err := svc.GetByID(r.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				http.Error(w, "user not found", http.StatusNotFound)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, toUserResponse(u))
	}
}

// listPatientsHandler godoc
// @Summary Listar pacientes
// @Description Más recientes primero. Doctor y farmacéutico.
// @Tags patients
// @Produce json
// @Param Authorization header string false "Bearer token"
// @Success 200 {array} userResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Router /patients [get]
func listPatientsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.ListPatients(r.Context())
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toUserResponses(items))
	}
}

// searchPatientsHandler godoc
// @Summary Buscar pacientes por nombre o email
// @Tags patients
// @Produce json
// @Param Authorization header string false "Bearer token"
// @Param q query string false "Texto a buscar (sin q lista todos)"
// @Success 200 {array} userResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Router /patients/search [get]
func searchPatientsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.SearchPatients(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toUserResponses(items))
	}
}

// registerPatientHandler godoc
// @Summary Registrar paciente
// @Description Solo doctores.
// @Tags patients
// @Accept json
// @Produce json
// @Param Authorization header string false "Bearer token"
// @Param payload body registerPatientRequest true "Datos del paciente"
// @Success 201 {object} userResponse
// @Failure 400 {string} string "invalid json / datos inválidos"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 409 {string} string "email already registered"
// @Router /patients [post]
func registerPatientHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerPatientRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		u, err := svc.RegisterPatient(r.Context(), RegisterPatientInput{
			Name:     req.Name,
			Email:    req.Email,
			Password: req.Password,
		})
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, "name, valid email and password (min 6 chars) are required", http.StatusBadRequest)
			case errors.Is(err, ErrEmailTaken):
				http.Error(w, err.Error(), http.StatusConflict)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusCreated, toUserResponse(u))
	}
}

// getPatientHandler godoc
// @Summary Ficha de un paciente
// @Tags patients
// @Produce json
// @Param Authorization header string false "Bearer token"
// @Param patientID path string true "ID del paciente"
// @Success 200 {object} userResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "patient not found"
// @Router /patients/{patientID} [get]
func getPatientHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := svc.GetPatient(r.Context(), strings.TrimSpace(chi.URLParam(r, "patientID")))
		if err != nil {
			if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidInput) {
				http.Error(w, "patient not found", http.StatusNotFound)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toUserResponse(u))
	}
}

func toUserResponse(u User) userResponse {
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

func toUserResponses(items []User) []userResponse {
	out := make([]userResponse, 0, len(items))
	for _, u := range items {
		out = append(out, toUserResponse(u))
	}
	return out
}

// writeJSON está duplicado intencionalmente en los handlers de cada módulo
// para no crear un paquete compartido solo por esto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
