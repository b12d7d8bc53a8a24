package tickets

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"gatepass/entity"
	"gatepass/internal/http-server/handlers/fail"
	"gatepass/lib/api/response"
	"gatepass/lib/sl"
)

// maxUploadBytes caps the multipart purchase form; proof images are
// photos of a payment confirmation, not raw camera dumps.
const maxUploadBytes = 10 << 20

type Core interface {
	Purchase(ctx context.Context, req *entity.PurchaseRequest, proof io.Reader, proofName string) (*entity.Ticket, error)
	PendingTickets(ctx context.Context) ([]*entity.Ticket, error)
	VerifyTicket(ctx context.Context, id string) (*entity.VerifiedTicket, error)
}

// Proofs serves stored payment-proof files to admins.
type Proofs interface {
	Open(name string) (*os.File, error)
}

func Purchase(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.tickets")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			logger.Error("parse multipart form", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}

		req := entity.PurchaseRequest{
			Name:          r.FormValue("name"),
			Email:         r.FormValue("email"),
			Phone:         r.FormValue("phone"),
			TicketType:    entity.TicketType(r.FormValue("ticket_type")),
			PaymentMethod: entity.PaymentMethod(r.FormValue("payment_method")),
		}
		logger = logger.With(
			slog.String("email", req.Email),
			slog.String("type", string(req.TicketType)),
		)

		proof, header, err := r.FormFile("payment_proof")
		if err != nil {
			logger.Error("payment proof missing", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error("Invalid request: payment_proof file is required"))
			return
		}
		defer proof.Close()

		ticket, err := handler.Purchase(r.Context(), &req, proof, header.Filename)
		if err != nil {
			logger.Error("purchase ticket", sl.Err(err))
			fail.Render(w, r, err)
			return
		}
		logger.Debug("ticket purchased")

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.Ok(ticket))
	}
}

func Pending(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.tickets")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		pending, err := handler.PendingTickets(r.Context())
		if err != nil {
			logger.Error("list pending tickets", sl.Err(err))
			fail.Render(w, r, err)
			return
		}
		logger.Debug("pending tickets listed", slog.Int("count", len(pending)))

		render.JSON(w, r, response.Ok(pending))
	}
}

func Verify(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.tickets")

		id := chi.URLParam(r, "id")
		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("id", id),
		)

		verified, err := handler.VerifyTicket(r.Context(), id)
		if err != nil {
			logger.Error("verify ticket", sl.Err(err))
			fail.Render(w, r, err)
			return
		}
		logger.Info("ticket verified", slog.String("email", verified.Ticket.Email))

		render.JSON(w, r, response.Ok(verified))
	}
}

// Proof streams a stored payment-proof file to the reviewing admin.
func Proof(log *slog.Logger, proofs Proofs) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.tickets")

		name := chi.URLParam(r, "name")
		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("name", name),
		)

		file, err := proofs.Open(name)
		if err != nil {
			logger.Error("open proof", sl.Err(err))
			render.Status(r, 404)
			render.JSON(w, r, response.Error("Requested resource not found"))
			return
		}
		defer file.Close()

		stat, err := file.Stat()
		if err != nil {
			logger.Error("stat proof", sl.Err(err))
			fail.Render(w, r, err)
			return
		}
		http.ServeContent(w, r, name, stat.ModTime(), file)
	}
}
