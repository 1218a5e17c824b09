// Package api exposes HTTP handlers for the EcoTrack service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"example.com/ecotrack/internal/auth"
	"example.com/ecotrack/internal/domain"
	"example.com/ecotrack/internal/emission"
	"example.com/ecotrack/internal/persistence"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	live    http.Handler
	logger  zerolog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithLiveHandler mounts the websocket endpoint on /v1/live.
func WithLiveHandler(live http.Handler) Option {
	return func(h *Handler) {
		h.live = live
	}
}

// WithLogger overrides the handler logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, opts ...Option) *Handler {
	h := &Handler{service: service, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/activities", h.createActivity)
	mux.HandleFunc("GET /v1/activities", h.listActivities)
	mux.HandleFunc("GET /v1/activities/{id}", h.getActivity)
	mux.HandleFunc("GET /v1/footprint", h.footprint)
	mux.HandleFunc("GET /v1/factors", h.factors)
	mux.HandleFunc("POST /v1/estimate", h.estimate)
	mux.HandleFunc("GET /v1/community/feed", h.feed)
	mux.HandleFunc("GET /v1/community/leaderboard", h.leaderboard)
	mux.HandleFunc("GET /v1/community/challenge", h.challenge)
	mux.HandleFunc("POST /v1/community/challenge/{id}/join", h.joinChallenge)
	mux.HandleFunc("GET /v1/profile", h.profile)
	if h.live != nil {
		mux.Handle("GET /v1/live", h.requireRead(h.live))
	}
	mux.HandleFunc("GET /healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	var req CreateActivityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	activity, replay, err := h.service.LogActivity(r.Context(), domain.LogActivityInput{
		OwnerID:        claims.Subject,
		OwnerName:      claims.Name,
		Kind:           req.Kind,
		Subtype:        req.Subtype,
		Quantity:       float64(req.Quantity),
		Description:    req.Description,
		Details:        req.Details,
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	status := http.StatusCreated
	if replay {
		status = http.StatusOK
	}
	writeJSON(w, status, CreateActivityResponse{
		Activity: toActivityView(*activity),
		Replay:   replay,
	})
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "missing activity id")
		return
	}

	activity, err := h.service.GetActivity(r.Context(), claims.Subject, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*activity))
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	activities, next, err := h.service.ListActivities(r.Context(), claims.Subject, cursor, queryLimit(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	items := make([]ActivityView, 0, len(activities))
	for _, a := range activities {
		items = append(items, toActivityView(a))
	}
	writeJSON(w, http.StatusOK, ListActivitiesResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) footprint(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	report, err := h.service.Footprint(r.Context(), claims.Subject)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) factors(w http.ResponseWriter, r *http.Request) {
	if _, ok := authorize(w, r); !ok {
		return
	}

	table := h.service.Estimator().Table()
	resp := FactorsResponse{Kinds: make([]KindFactors, 0, len(emission.Kinds))}
	rows := table.Rows()
	for _, kind := range emission.Kinds {
		resp.Kinds = append(resp.Kinds, KindFactors{
			Kind:     string(kind),
			Unit:     kind.Unit(),
			Subtypes: table.Subtypes(kind),
			Factors:  rows[string(kind)],
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) estimate(w http.ResponseWriter, r *http.Request) {
	if _, ok := authorize(w, r); !ok {
		return
	}

	var req EstimateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	kind, mass, err := h.service.Estimate(domain.EstimateInput{
		Kind:     req.Kind,
		Subtype:  req.Subtype,
		Quantity: float64(req.Quantity),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, EstimateResponse{
		Kind:          string(kind),
		Subtype:       strings.ToLower(strings.TrimSpace(req.Subtype)),
		Quantity:      float64(req.Quantity),
		Unit:          kind.Unit(),
		EstimatedMass: mass,
	})
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	profile, err := h.service.Profile(r.Context(), claims.Subject)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileView{
		OwnerID:         profile.OwnerID,
		Name:            claims.Name,
		Scopes:          claims.ScopeList(),
		ActivityCount:   profile.ActivityCount,
		TotalMass:       profile.TotalMass,
		FirstActivityAt: profile.FirstActivityAt,
		LastActivityAt:  profile.LastActivityAt,
	})
}

// requireRead guards a plain handler with the read scopes.
func (h *Handler) requireRead(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := authorize(w, r, auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite); !ok {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authorize returns the caller claims. With scopes given, at least one must be granted.
func authorize(w http.ResponseWriter, r *http.Request, scopes ...string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if len(scopes) == 0 {
		return claims, true
	}
	for _, scope := range scopes {
		if claims.HasScope(scope) {
			return claims, true
		}
	}
	writeError(w, http.StatusForbidden, "forbidden", "scope "+scopes[0]+" required")
	return nil, false
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "unable to parse body")
		return false
	}
	return true
}

func queryLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return 0
	}
	return parsed
}

// writeServiceError maps domain errors onto HTTP responses.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, emission.ErrUnknownKind),
		errors.Is(err, emission.ErrUnknownSubtype),
		errors.Is(err, emission.ErrQuantityOutOfRange),
		errors.Is(err, domain.ErrInvalidDescription),
		errors.Is(err, domain.ErrInvalidSubtype),
		errors.Is(err, persistence.ErrInvalidCursor):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrActivityNotFound), errors.Is(err, domain.ErrChallengeNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrPersistence):
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("persistence failure")
		writeError(w, http.StatusServiceUnavailable, "persistence_failed", domain.ErrPersistence.Error())
	default:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
