package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"gatepass/entity"
	"gatepass/internal/codegen"
	"gatepass/lib/sl"
)

// MaxCodeBatch caps one generate-codes request.
const MaxCodeBatch = 500

// Database defines the storage operations the services depend on.
// Implemented by internal/database/mongo.go.
type Database interface {
	Ping(ctx context.Context) error
	InsertAttendee(ctx context.Context, attendee *entity.Attendee) error
	GetAttendee(ctx context.Context, key string) (*entity.Attendee, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	ListAttendees(ctx context.Context) ([]*entity.Attendee, error)
	DeleteAttendee(ctx context.Context, id string) error
	RegisterAttendee(ctx context.Context, code, name, email, phone string) (*entity.Attendee, error)
	MarkAttended(ctx context.Context, key string) (*entity.Attendee, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	InsertTicket(ctx context.Context, ticket *entity.Ticket) error
	GetTicket(ctx context.Context, id string) (*entity.Ticket, error)
	ListPendingTickets(ctx context.Context) ([]*entity.Ticket, error)
	SetTicketVerified(ctx context.Context, id string) (*entity.Ticket, error)
}

// Uploads persists payment-proof files.
type Uploads interface {
	Save(src io.Reader, originalName string) (string, error)
	Remove(name string) error
}

// Notifier announces ticket lifecycle events to the admin channel.
type Notifier interface {
	TicketPurchased(ticket *entity.Ticket)
	TicketVerified(ticket *entity.Ticket, attendee *entity.Attendee)
}

type Core struct {
	db      Database
	codes   *codegen.Generator
	uploads Uploads
	notify  Notifier
	log     *slog.Logger
}

func New(db Database, uploads Uploads, log *slog.Logger) *Core {
	if db == nil {
		panic("database is nil")
	}
	return &Core{
		db:      db,
		codes:   codegen.New(db),
		uploads: uploads,
		log:     log.With(sl.Module("core")),
	}
}

// SetNotifier attaches the optional admin notification channel.
func (c *Core) SetNotifier(notify Notifier) {
	c.notify = notify
}

// Ready reports whether the store is reachable.
func (c *Core) Ready(ctx context.Context) error {
	if err := c.db.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %s", entity.ErrUnavailable, err)
	}
	return nil
}

// GenerateCodes mints count codes and persists each as an empty admission
// slot. A concurrent insert landing on the same code re-rolls the slot.
func (c *Core) GenerateCodes(ctx context.Context, count int) ([]string, error) {
	if count < 1 || count > MaxCodeBatch {
		return nil, fmt.Errorf("%w: count must be between 1 and %d", entity.ErrValidation, MaxCodeBatch)
	}
	codes := make([]string, 0, count)
	for len(codes) < count {
		code, err := c.codes.Generate(ctx, codegen.DefaultLength)
		if err != nil {
			return nil, err
		}
		err = c.db.InsertAttendee(ctx, &entity.Attendee{
			Code:      code,
			CreatedAt: time.Now().UTC(),
		})
		if errors.Is(err, entity.ErrDuplicate) {
			continue
		}
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	c.log.Info("codes generated", slog.Int("count", count))
	return codes, nil
}

// Register binds an identity to a pre-issued code exactly once.
func (c *Core) Register(ctx context.Context, req *entity.RegisterRequest) (*entity.Attendee, error) {
	attendee, err := c.db.RegisterAttendee(ctx, req.Code, req.Name, req.Email, req.Phone)
	if err != nil {
		return nil, err
	}
	c.log.Info("attendee registered",
		sl.Secret("code", attendee.Code),
		slog.String("email", attendee.Email),
	)
	return attendee, nil
}

// Login looks up a bound attendee by code or email. Issued-but-unbound
// codes are reported as unknown.
func (c *Core) Login(ctx context.Context, key string) (*entity.Attendee, error) {
	attendee, err := c.db.GetAttendee(ctx, key)
	if err != nil {
		return nil, err
	}
	if !attendee.IsBound() {
		return nil, entity.ErrNotFound
	}
	return attendee, nil
}

// Validate is the door scan: single-use, flips attended false→true.
func (c *Core) Validate(ctx context.Context, key string) (*entity.ValidationResult, error) {
	attendee, err := c.db.MarkAttended(ctx, key)
	if err != nil {
		return nil, err
	}
	c.log.Info("attendee validated",
		sl.Secret("code", attendee.Code),
		slog.Int("entries", attendee.Entries),
	)
	return &entity.ValidationResult{IsValid: true, User: attendee}, nil
}

// Purchase queues a self-service ticket with its payment proof. The proof
// is written first and removed again if anything after it fails.
func (c *Core) Purchase(ctx context.Context, req *entity.PurchaseRequest, proof io.Reader, proofName string) (*entity.Ticket, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", entity.ErrValidation, err)
	}
	if proof == nil || proofName == "" {
		return nil, fmt.Errorf("%w: payment proof is required", entity.ErrValidation)
	}
	taken, err := c.db.EmailTaken(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: email already registered", entity.ErrDuplicate)
	}

	stored, err := c.uploads.Save(proof, proofName)
	if err != nil {
		return nil, err
	}
	ticket := &entity.Ticket{
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		TicketType:    req.TicketType,
		PaymentMethod: req.PaymentMethod,
		PaymentProof:  stored,
		CreatedAt:     time.Now().UTC(),
	}
	if err = c.db.InsertTicket(ctx, ticket); err != nil {
		if removeErr := c.uploads.Remove(stored); removeErr != nil {
			c.log.Error("remove orphaned proof", sl.Err(removeErr))
		}
		return nil, err
	}

	c.log.Info("ticket purchased",
		slog.String("email", ticket.Email),
		slog.String("type", string(ticket.TicketType)),
	)
	if c.notify != nil {
		c.notify.TicketPurchased(ticket)
	}
	return ticket, nil
}

// VerifyTicket promotes a pending ticket into an attendee with a fresh
// code. The attendee is created before the verified flag is set, so an
// interruption between the two writes leaves the ticket re-verifiable;
// the retry reuses the attendee instead of minting a second one.
func (c *Core) VerifyTicket(ctx context.Context, id string) (*entity.VerifiedTicket, error) {
	ticket, err := c.db.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if ticket.IsVerified {
		return nil, entity.ErrAlreadyVerified
	}

	code, err := c.codes.Generate(ctx, codegen.DefaultLength)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	attendee := &entity.Attendee{
		Name:         ticket.Name,
		Email:        ticket.Email,
		Phone:        ticket.Phone,
		Code:         code,
		CreatedAt:    now,
		RegisteredAt: now,
	}
	err = c.db.InsertAttendee(ctx, attendee)
	if errors.Is(err, entity.ErrDuplicate) {
		// A previous attempt already created the attendee; finish the
		// interrupted verification with the existing record.
		attendee, err = c.db.GetAttendee(ctx, ticket.Email)
	}
	if err != nil {
		return nil, err
	}

	verified, err := c.db.SetTicketVerified(ctx, id)
	if err != nil {
		return nil, err
	}

	c.log.Info("ticket verified",
		slog.String("email", verified.Email),
		sl.Secret("code", attendee.Code),
	)
	if c.notify != nil {
		c.notify.TicketVerified(verified, attendee)
	}
	return &entity.VerifiedTicket{User: attendee, Ticket: verified}, nil
}

// Attendees lists all admission slots, bound and unbound.
func (c *Core) Attendees(ctx context.Context) ([]*entity.Attendee, error) {
	return c.db.ListAttendees(ctx)
}

// PendingTickets lists purchases awaiting proof review.
func (c *Core) PendingTickets(ctx context.Context) ([]*entity.Ticket, error) {
	return c.db.ListPendingTickets(ctx)
}

// DeleteAttendee removes an admission slot by id.
func (c *Core) DeleteAttendee(ctx context.Context, id string) error {
	if err := c.db.DeleteAttendee(ctx, id); err != nil {
		return err
	}
	c.log.Info("attendee deleted", slog.String("id", id))
	return nil
}
