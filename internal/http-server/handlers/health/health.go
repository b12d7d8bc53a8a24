package health

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"gatepass/internal/http-server/handlers/fail"
	"gatepass/lib/api/response"
	"gatepass/lib/sl"
)

type Core interface {
	Ready(ctx context.Context) error
}

func Check(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.health")

		if err := handler.Ready(r.Context()); err != nil {
			log.With(mod).Error("store unreachable", sl.Err(err))
			fail.Render(w, r, err)
			return
		}
		render.JSON(w, r, response.Ok(map[string]string{"status": "ok"}))
	}
}
