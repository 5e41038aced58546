package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/susu3304/ruesquiz/internal/daily"
	"github.com/susu3304/ruesquiz/internal/geo"
	"github.com/susu3304/ruesquiz/internal/logger"
)

const maxBodyBytes = 4 << 10

var validate = validator.New()

type attemptRequest struct {
	ClickLat  *float64 `json:"click_lat" validate:"required"`
	ClickLng  *float64 `json:"click_lng" validate:"required"`
	InputType string   `json:"input_type" validate:"max=16"`
}

// handleAttempt checks the body before the token, so a malformed request
// never reaches the identity service.
func (a *API) handleAttempt(w http.ResponseWriter, r *http.Request) {
	var req attemptRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	user, ok := a.authenticate(w, r)
	if !ok {
		return
	}
	if !a.allowAttempt(w, user.ID) {
		return
	}

	a.syncProfile(r.Context(), user.ID, user.Username)

	result, err := a.service.Attempt(r.Context(), daily.AttemptInput{
		UserID:    user.ID,
		Point:     geo.LatLng{Lat: *req.ClickLat, Lng: *req.ClickLng},
		InputType: req.InputType,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		logger.Error("Daily attempt failed for %s: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "Unable to record daily attempt.")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// validationMessage maps validator failures to the client-facing message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Field() == "InputType" {
				return "input_type is invalid."
			}
		}
	}
	return "click_lat and click_lng are required."
}

// syncProfile stores the display name. Failures only cost a stale leaderboard name.
func (a *API) syncProfile(ctx context.Context, userID uuid.UUID, username string) {
	if a.options.Profiles == nil || username == "" {
		return
	}
	if err := a.options.Profiles.UpsertProfile(ctx, userID, username); err != nil {
		logger.Warning("Failed to save profile for %s: %v", userID, err)
	}
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required.")
		return
	}

	status, err := a.service.Status(r.Context(), user.ID)
	if err != nil {
		logger.Error("Daily status failed for %s: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "Unable to load daily status.")
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (a *API) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	date := query.Get("date")

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer.")
			return
		}
		limit = n
	}

	board, err := a.service.Leaderboard(r.Context(), date, limit)
	if err != nil {
		if errors.Is(err, daily.ErrInvalidDate) {
			writeError(w, http.StatusBadRequest, "date must use YYYY-MM-DD.")
			return
		}
		logger.Error("Daily leaderboard failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Unable to load daily leaderboard.")
		return
	}

	writeJSON(w, http.StatusOK, board)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if a.options.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.options.Health.Ping(ctx); err != nil {
			logger.Warning("Health check failed: %v", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
