package register

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"gatepass/entity"
	"gatepass/internal/http-server/handlers/fail"
	"gatepass/lib/api/response"
	"gatepass/lib/sl"
)

type Core interface {
	Register(ctx context.Context, req *entity.RegisterRequest) (*entity.Attendee, error)
	Login(ctx context.Context, key string) (*entity.Attendee, error)
}

// Register binds name/email to a pre-issued code, exactly once.
func Register(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.register")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req entity.RegisterRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}
		logger = logger.With(
			sl.Secret("code", req.Code),
			slog.String("email", req.Email),
		)

		attendee, err := handler.Register(r.Context(), &req)
		if err != nil {
			logger.Error("register attendee", sl.Err(err))
			fail.Render(w, r, err)
			return
		}
		logger.Debug("attendee registered")

		render.JSON(w, r, response.Ok(attendee))
	}
}

// Login returns the attendee record for a code or email, so the client
// can re-display the ticket.
func Login(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.register")

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

		attendee, err := handler.Login(r.Context(), req.Key())
		if err != nil {
			logger.Error("login attendee", sl.Err(err))
			fail.Render(w, r, err)
			return
		}
		logger.Debug("attendee login", slog.String("email", attendee.Email))

		render.JSON(w, r, response.Ok(attendee))
	}
}
