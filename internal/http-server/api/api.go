package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"gatepass/internal/config"
	"gatepass/internal/http-server/handlers/admin"
	"gatepass/internal/http-server/handlers/errors"
	"gatepass/internal/http-server/handlers/health"
	"gatepass/internal/http-server/handlers/register"
	"gatepass/internal/http-server/handlers/tickets"
	"gatepass/internal/http-server/middleware/authenticate"
	"gatepass/internal/http-server/middleware/timeout"
	"gatepass/lib/sl"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	register.Core
	admin.Core
	tickets.Core
	health.Core
}

// Gate is the admin secret check used by both the login handler and the
// bearer middleware.
type Gate interface {
	admin.Gate
	authenticate.Gate
}

func New(conf *config.Config, log *slog.Logger, handler Handler, gate Gate, proofs tickets.Proofs) error {

	server := Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	router := chi.NewRouter()
	router.Use(timeout.Timeout(5))
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(render.SetContentType(render.ContentTypeJSON))
	if len(conf.Cors.Origins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   conf.Cors.Origins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	router.Get("/health", health.Check(log, handler))

	router.Route("/v1", func(rootApi chi.Router) {
		rootApi.Post("/register", register.Register(log, handler))
		rootApi.Post("/login", register.Login(log, handler))
		rootApi.Post("/tickets/purchase", tickets.Purchase(log, handler))

		rootApi.Route("/admin", func(adm chi.Router) {
			adm.Post("/login", admin.Login(log, gate))
			adm.Group(func(g chi.Router) {
				g.Use(authenticate.New(log, gate))
				g.Get("/users", admin.Users(log, handler))
				g.Delete("/users/{id}", admin.DeleteUser(log, handler))
				g.Post("/generate-codes", admin.GenerateCodes(log, handler))
				g.Post("/validate", admin.Validate(log, handler))
				g.Get("/tickets", tickets.Pending(log, handler))
				g.Post("/tickets/{id}/verify", tickets.Verify(log, handler))
				g.Get("/uploads/{name}", tickets.Proof(log, proofs))
			})
		})
	})

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:      router,
		ErrorLog:     httpLog,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverAddress := fmt.Sprintf("%s:%s", conf.Listen.BindIp, conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	server.log.Info("starting api server", slog.String("address", serverAddress))

	return server.httpServer.Serve(listener)
}
