// Package auth exposes login and working-day endpoints backed by the remote
// account system and the local session store.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/falconrep/falconrep/internal/platform/httpx"
	"github.com/falconrep/falconrep/internal/remote"
	"github.com/falconrep/falconrep/internal/session"
)

var validate = validator.New()

// API is the slice of the backend client this package needs. Credentials are
// never stored locally; every login goes to the backend.
type API interface {
	Online(ctx context.Context) bool
	Login(ctx context.Context, username, password string) (*remote.LoginResult, error)
	ValidateSession(ctx context.Context, repID int64) (bool, error)
}

// Handler serves authentication and day-route endpoints.
type Handler struct {
	logger   *slog.Logger
	api      API
	sessions *session.Store
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, api API, sessions *session.Store) *Handler {
	return &Handler{logger: logger, api: api, sessions: sessions}
}

// MountRoutes registers auth routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.login)
	r.Post("/logout", h.logout)
	r.Get("/session", h.showSession)
	r.Post("/day/start", h.startDay)
	r.Post("/day/end", h.endDay)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := validate.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	res, err := h.api.Login(r.Context(), in.Username, in.Password)
	switch {
	case errors.Is(err, remote.ErrOffline):
		httpx.RespondError(w, httpx.ErrUnavailable)
		return
	case errors.Is(err, remote.ErrLoginFailed):
		h.logger.Warn("login rejected", slog.String("username", in.Username))
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	case err != nil:
		h.logger.Error("login failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	sess, err := h.sessions.SignIn(r.Context(), res.RepID.Int64(), res.Username, res.FullName)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("representative signed in", slog.Int64("rep_id", sess.RepID))
	httpx.JSON(w, http.StatusOK, sess)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.SignOut(r.Context()); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) showSession(w http.ResponseWriter, r *http.Request) {
	rep, err := h.sessions.Current(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	day, err := h.sessions.Day(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	lastSync, err := h.sessions.LastSync(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	out := map[string]any{
		"session": rep,
		"online":  h.api.Online(r.Context()),
	}
	if day != nil {
		out["day"] = day
	}
	if !lastSync.IsZero() {
		out["last_sync"] = lastSync
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) startDay(w http.ResponseWriter, r *http.Request) {
	if _, err := h.sessions.Current(r.Context()); err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in struct {
		RouteID    int64  `json:"route_id" validate:"required,gt=0"`
		RouteName  string `json:"route_name"`
		MeterStart int64  `json:"meter_start" validate:"gte=0"`
	}
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := validate.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.sessions.StartDay(r.Context(), in.RouteID, in.RouteName, in.MeterStart); err != nil {
		httpx.RespondError(w, err)
		return
	}
	day, err := h.sessions.Day(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, day)
}

func (h *Handler) endDay(w http.ResponseWriter, r *http.Request) {
	if _, err := h.sessions.Current(r.Context()); err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in struct {
		MeterEnd int64 `json:"meter_end" validate:"gte=0"`
	}
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.sessions.EndDay(r.Context(), in.MeterEnd); err != nil {
		httpx.RespondError(w, err)
		return
	}
	day, err := h.sessions.Day(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, day)
}
