package gamification

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/recoagua/backend/internal/auth"
	"github.com/recoagua/backend/internal/logger"
	"github.com/recoagua/backend/internal/models"
)

type Handler struct {
	service *Service
	log     *logger.Logger
}

func NewHandler(service *Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{service: service, log: log.With("component", "gamification")}
}

// Register mounts the user routes on r. Admin routes go through RegisterAdmin.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/blocks/{id}/responses", h.SubmitBlockResponse).Methods("POST")
	r.HandleFunc("/blocks/{id}/stats", h.GetBlockStats).Methods("GET")
	r.HandleFunc("/responses", h.ListResponses).Methods("GET")
	r.HandleFunc("/responses/stats", h.GetResponseStats).Methods("GET")
	r.HandleFunc("/guides/{id}/progress", h.GetGuideProgress).Methods("GET")
	r.HandleFunc("/progress/stats", h.GetProgressStats).Methods("GET")
	r.HandleFunc("/challenges", h.ListChallenges).Methods("GET")
	r.HandleFunc("/challenges/{id}/start", h.StartChallenge).Methods("POST")
	r.HandleFunc("/challenges/{id}/complete", h.CompleteChallenge).Methods("POST")
	r.HandleFunc("/me/profile", h.GetProfile).Methods("GET")
	r.HandleFunc("/me/badges", h.ListBadges).Methods("GET")
}

func (h *Handler) RegisterAdmin(r *mux.Router) {
	r.HandleFunc("/users/{userId}/badges/{badgeId}", h.GrantBadge).Methods("POST")
}

// ── Block Responses ─────────────────────────────────────

func (h *Handler) SubmitBlockResponse(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}
	blockID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req models.SubmitBlockResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	resp, err := h.service.SubmitBlockResponse(r.Context(), userID, blockID, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) GetBlockStats(w http.ResponseWriter, r *http.Request) {
	blockID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	stats, err := h.service.BlockStats(r.Context(), blockID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) ListResponses(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	var blockID *int64
	if s := r.URL.Query().Get("block_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid block_id"})
			return
		}
		blockID = &id
	}

	responses, err := h.service.ListResponses(r.Context(), userID, blockID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, responses)
}

func (h *Handler) GetResponseStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}
	stats, err := h.service.UserResponseStats(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ── Progress ────────────────────────────────────────────

func (h *Handler) GetGuideProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}
	guideID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	resp, err := h.service.GuideProgress(r.Context(), userID, guideID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetProgressStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}
	stats, err := h.service.ProgressStats(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ── Challenges ──────────────────────────────────────────

func (h *Handler) ListChallenges(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}
	list, err := h.service.ListUserChallenges(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) StartChallenge(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}
	challengeID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	uc, err := h.service.StartChallenge(r.Context(), userID, challengeID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, uc)
}

func (h *Handler) CompleteChallenge(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}
	challengeID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	resp, err := h.service.CompleteChallenge(r.Context(), userID, challengeID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ── Profile & Badges ────────────────────────────────────

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}
	profile, err := h.service.Profile(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) ListBadges(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}
	badges, err := h.service.ListUserBadges(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, badges)
}

func (h *Handler) GrantBadge(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	badgeID, ok := pathID(w, r, "badgeId")
	if !ok {
		return
	}
	resp, err := h.service.GrantManualBadge(r.Context(), userID, badgeID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	status := http.StatusOK
	if resp.Granted {
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}

// ── Helpers ─────────────────────────────────────────────

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", "error", err)
		msg = "Internal server error"
	}
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrUserNotFound),
		errors.Is(err, models.ErrBlockNotFound),
		errors.Is(err, models.ErrGuideNotFound),
		errors.Is(err, models.ErrChallengeNotFound),
		errors.Is(err, models.ErrBadgeNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrNotGradable),
		errors.Is(err, models.ErrUnknownReference),
		errors.Is(err, models.ErrNegativeExperience),
		errors.Is(err, models.ErrManualOnly),
		errors.Is(err, models.ErrNotManual):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrAlreadyStarted):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func pathID(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[key], 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid " + key})
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
