package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"supplydesk/backend/internal/domain"
	"supplydesk/backend/internal/logger"
	"supplydesk/backend/internal/service"
	"supplydesk/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	backend       string
	log           zerolog.Logger
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, backend string) *API {
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		backend:       backend,
		log:           logger.WithComponent("httpapi"),
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)

	mux.HandleFunc("/api/v1/views/pivot", a.requireAuth(a.handlePivot, domain.RoleStaff, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/views/kpi", a.requireAuth(a.handleKPI, domain.RoleStaff, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/restaurants/", a.requireAuth(a.handleRestaurantActions, domain.RoleStaff, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/sales/summary", a.requireAuth(a.handleSalesSummary, domain.RoleStaff, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/order-window", a.requireAuth(a.handleOrderWindow, domain.RoleStaff, domain.RoleAdmin))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"backend": a.backend,
		"at":      time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handlePivot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	grid, err := a.service.DailyPivot(r.Context(), a.service.Now())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grid)
}

func (a *API) handleKPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	rollup, err := a.service.KPIs(r.Context(), a.service.Now())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rollup)
}

// handleRestaurantActions serves
//
//	GET  /api/v1/restaurants/{id}/periods
//	POST /api/v1/restaurants/{id}/periods/{key}/payment
func (a *API) handleRestaurantActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/restaurants/"
	tail := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	parts := strings.Split(tail, "/")

	switch {
	case len(parts) == 2 && parts[0] != "" && parts[1] == "periods":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		consolidation, err := a.service.BillingPeriods(r.Context(), parts[0])
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, consolidation)

	case len(parts) == 4 && parts[0] != "" && parts[1] == "periods" && parts[2] != "" && parts[3] == "payment":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		actor, ok := service.ActorFromContext(r.Context())
		if !ok || actor.Role != domain.RoleAdmin {
			writeError(w, http.StatusForbidden, errors.New("admin role required"))
			return
		}
		a.handlePeriodPayment(w, r, parts[0], parts[2])

	default:
		writeError(w, http.StatusNotFound, errors.New("unknown restaurant action"))
	}
}

type paymentRequest struct {
	Paid *bool `json:"paid"`
}

func (a *API) handlePeriodPayment(w http.ResponseWriter, r *http.Request, restaurantID string, periodKey string) {
	var req paymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Paid == nil {
		writeError(w, http.StatusBadRequest, errors.New("paid is required"))
		return
	}

	update, err := a.service.SetPeriodPaid(r.Context(), restaurantID, periodKey, *req.Paid)
	if err != nil {
		if errors.Is(err, store.ErrPartialWrite) {
			writeJSON(w, http.StatusMultiStatus, update)
			return
		}
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, update)
}

func (a *API) handleSalesSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	q := r.URL.Query()
	report, err := a.service.SalesSummary(r.Context(), strings.TrimSpace(q.Get("month")), strings.TrimSpace(q.Get("date")))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleOrderWindow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, a.service.OrderWindow(a.service.Now()))
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		a.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(startedAt)).
			Msg("request")
	})
}

func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status >= 500 {
		a.log.Error().Err(err).Int("status", status).Msg("request failed")
	}
	writeError(w, status, err)
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies stay generic; 4xx messages are meant for the caller.
	msg := err.Error()
	if status >= 500 {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
