package admin

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"gatepass/entity"
	"gatepass/internal/http-server/handlers/fail"
	"gatepass/lib/api/response"
	"gatepass/lib/sl"
)

type Core interface {
	GenerateCodes(ctx context.Context, count int) ([]string, error)
	Validate(ctx context.Context, key string) (*entity.ValidationResult, error)
	Attendees(ctx context.Context) ([]*entity.Attendee, error)
	DeleteAttendee(ctx context.Context, id string) error
}

// Gate trades the admin password for the bearer token.
type Gate interface {
	Login(password string) (string, error)
}

func Login(log *slog.Logger, gate Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.admin")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req entity.AdminLoginRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}

		token, err := gate.Login(req.Password)
		if err != nil {
			logger.Error("admin login rejected")
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.Error("Invalid password"))
			return
		}
		logger.Info("admin login")

		render.JSON(w, r, response.Ok(entity.Token{Token: token}))
	}
}

func GenerateCodes(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.admin")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		count, err := strconv.Atoi(r.URL.Query().Get("count"))
		if err != nil {
			logger.Error("parse count", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error("Invalid request: count query parameter required"))
			return
		}
		logger = logger.With(slog.Int("count", count))

		codes, err := handler.GenerateCodes(r.Context(), count)
		if err != nil {
			logger.Error("generate codes", sl.Err(err))
			fail.Render(w, r, err)
			return
		}
		logger.Debug("codes generated")

		render.JSON(w, r, response.Ok(entity.CodeBatch{Codes: codes}))
	}
}

// Validate is the door scan endpoint: accepts a code or email decoded
// from the QR, flips attended once, rejects reuse.
func Validate(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.admin")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req entity.LookupRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}
		logger = logger.With(sl.Secret("key", req.Key()))

		result, err := handler.Validate(r.Context(), req.Key())
		if err != nil {
			logger.Error("validate attendee", sl.Err(err))
			fail.Render(w, r, err)
			return
		}
		logger.Debug("attendee validated")

		render.JSON(w, r, response.Ok(result))
	}
}

func Users(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.admin")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		attendees, err := handler.Attendees(r.Context())
		if err != nil {
			logger.Error("list attendees", sl.Err(err))
			fail.Render(w, r, err)
			return
		}
		logger.Debug("attendees listed", slog.Int("count", len(attendees)))

		render.JSON(w, r, response.Ok(attendees))
	}
}

func DeleteUser(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.admin")

		id := chi.URLParam(r, "id")
		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("id", id),
		)

		if err := handler.DeleteAttendee(r.Context(), id); err != nil {
			logger.Error("delete attendee", sl.Err(err))
			fail.Render(w, r, err)
			return
		}
		logger.Info("attendee deleted")

		render.JSON(w, r, response.Ok(nil))
	}
}
