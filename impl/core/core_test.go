package core_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"gatepass/entity"
	"gatepass/impl/core"
)

// memStore mirrors the conditional-update semantics of the mongo layer:
// unique codes, unique non-empty emails, one-way flag transitions.
type memStore struct {
	mu        sync.Mutex
	attendees []*entity.Attendee
	tickets   []*entity.Ticket
	pingErr   error
}

func (s *memStore) Ping(_ context.Context) error {
	return s.pingErr
}

func (s *memStore) InsertAttendee(_ context.Context, attendee *entity.Attendee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attendees {
		if a.Code == attendee.Code {
			return entity.ErrDuplicate
		}
		if attendee.Email != "" && a.Email == attendee.Email {
			return entity.ErrDuplicate
		}
	}
	if attendee.Id.IsZero() {
		attendee.Id = primitive.NewObjectID()
	}
	clone := *attendee
	s.attendees = append(s.attendees, &clone)
	return nil
}

func (s *memStore) GetAttendee(_ context.Context, key string) (*entity.Attendee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attendees {
		if a.Code == key || (a.Email != "" && a.Email == key) {
			clone := *a
			return &clone, nil
		}
	}
	return nil, entity.ErrNotFound
}

func (s *memStore) CodeExists(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attendees {
		if a.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) ListAttendees(_ context.Context) ([]*entity.Attendee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]*entity.Attendee, 0, len(s.attendees))
	for _, a := range s.attendees {
		clone := *a
		list = append(list, &clone)
	}
	return list, nil
}

func (s *memStore) DeleteAttendee(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.attendees {
		if a.Id.Hex() == id {
			s.attendees = append(s.attendees[:i], s.attendees[i+1:]...)
			return nil
		}
	}
	return entity.ErrNotFound
}

func (s *memStore) RegisterAttendee(_ context.Context, code, name, email, phone string) (*entity.Attendee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var target *entity.Attendee
	for _, a := range s.attendees {
		if a.Code == code {
			target = a
		}
		if a.Email != "" && a.Email == email {
			return nil, entity.ErrDuplicate
		}
	}
	if target == nil {
		return nil, entity.ErrNotFound
	}
	if target.Email != "" {
		return nil, entity.ErrAlreadyUsed
	}
	target.Name = name
	target.Email = email
	target.Phone = phone
	target.RegisteredAt = time.Now().UTC()
	clone := *target
	return &clone, nil
}

func (s *memStore) MarkAttended(_ context.Context, key string) (*entity.Attendee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attendees {
		if a.Code != key && a.Email != key {
			continue
		}
		if a.Email == "" {
			return nil, entity.ErrNotFound
		}
		if a.Attended {
			return nil, entity.ErrAlreadyUsed
		}
		a.Attended = true
		a.Entries++
		a.ValidatedAt = time.Now().UTC()
		clone := *a
		return &clone, nil
	}
	return nil, entity.ErrNotFound
}

func (s *memStore) EmailTaken(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attendees {
		if a.Email == email {
			return true, nil
		}
	}
	for _, tk := range s.tickets {
		if tk.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) InsertTicket(_ context.Context, ticket *entity.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tk := range s.tickets {
		if tk.Email == ticket.Email {
			return entity.ErrDuplicate
		}
	}
	if ticket.Id.IsZero() {
		ticket.Id = primitive.NewObjectID()
	}
	clone := *ticket
	s.tickets = append(s.tickets, &clone)
	return nil
}

func (s *memStore) GetTicket(_ context.Context, id string) (*entity.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tk := range s.tickets {
		if tk.Id.Hex() == id {
			clone := *tk
			return &clone, nil
		}
	}
	return nil, entity.ErrNotFound
}

func (s *memStore) ListPendingTickets(_ context.Context) ([]*entity.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []*entity.Ticket
	for _, tk := range s.tickets {
		if !tk.IsVerified {
			clone := *tk
			pending = append(pending, &clone)
		}
	}
	return pending, nil
}

func (s *memStore) SetTicketVerified(_ context.Context, id string) (*entity.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tk := range s.tickets {
		if tk.Id.Hex() != id {
			continue
		}
		if tk.IsVerified {
			return nil, entity.ErrAlreadyVerified
		}
		tk.IsVerified = true
		tk.VerifiedAt = time.Now().UTC()
		clone := *tk
		return &clone, nil
	}
	return nil, entity.ErrNotFound
}

type fakeUploads struct {
	saved   []string
	removed []string
	saveErr error
}

func (f *fakeUploads) Save(_ io.Reader, _ string) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	name := fmt.Sprintf("proof-%d.png", len(f.saved)+1)
	f.saved = append(f.saved, name)
	return name, nil
}

func (f *fakeUploads) Remove(name string) error {
	f.removed = append(f.removed, name)
	return nil
}

type fakeNotifier struct {
	purchased int
	verified  int
}

func (f *fakeNotifier) TicketPurchased(_ *entity.Ticket) { f.purchased++ }

func (f *fakeNotifier) TicketVerified(_ *entity.Ticket, _ *entity.Attendee) { f.verified++ }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newCore(t *testing.T) (*core.Core, *memStore, *fakeUploads) {
	t.Helper()
	store := &memStore{}
	files := &fakeUploads{}
	return core.New(store, files, discardLogger()), store, files
}

func purchaseRequest(email string) *entity.PurchaseRequest {
	return &entity.PurchaseRequest{
		Name:          "Ada",
		Email:         email,
		TicketType:    entity.TicketSingle,
		PaymentMethod: entity.PayTelda,
	}
}

func TestGenerateCodes(t *testing.T) {
	c, _, _ := newCore(t)
	ctx := context.Background()

	codes, err := c.GenerateCodes(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, codes, 5)

	attendees, err := c.Attendees(ctx)
	require.NoError(t, err)
	assert.Len(t, attendees, 5)
	for _, a := range attendees {
		assert.Len(t, a.Code, 6)
		assert.False(t, a.IsBound())
		assert.False(t, a.Attended)
	}
}

func TestGenerateCodesInvalidCount(t *testing.T) {
	c, _, _ := newCore(t)

	for _, count := range []int{0, -1, core.MaxCodeBatch + 1} {
		_, err := c.GenerateCodes(context.Background(), count)
		assert.ErrorIs(t, err, entity.ErrValidation, "count %d", count)
	}
}

func TestRegisterOnce(t *testing.T) {
	c, _, _ := newCore(t)
	ctx := context.Background()

	codes, err := c.GenerateCodes(ctx, 1)
	require.NoError(t, err)

	req := &entity.RegisterRequest{Code: codes[0], Name: "Ada", Email: "ada@example.com"}
	attendee, err := c.Register(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", attendee.Email)
	assert.False(t, attendee.RegisteredAt.IsZero())

	// The second registration against the same code must lose, even with
	// a different identity.
	_, err = c.Register(ctx, &entity.RegisterRequest{Code: codes[0], Name: "Bob", Email: "bob@example.com"})
	assert.ErrorIs(t, err, entity.ErrAlreadyUsed)

	stored, err := c.Login(ctx, codes[0])
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", stored.Email)
}

func TestRegisterUnknownCode(t *testing.T) {
	c, _, _ := newCore(t)

	_, err := c.Register(context.Background(), &entity.RegisterRequest{Code: "NOPE01", Name: "Ada", Email: "ada@example.com"})
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	c, _, _ := newCore(t)
	ctx := context.Background()

	codes, err := c.GenerateCodes(ctx, 2)
	require.NoError(t, err)

	_, err = c.Register(ctx, &entity.RegisterRequest{Code: codes[0], Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	_, err = c.Register(ctx, &entity.RegisterRequest{Code: codes[1], Name: "Ada", Email: "ada@example.com"})
	assert.ErrorIs(t, err, entity.ErrDuplicate)
}

func TestLoginUnboundCode(t *testing.T) {
	c, _, _ := newCore(t)
	ctx := context.Background()

	codes, err := c.GenerateCodes(ctx, 1)
	require.NoError(t, err)

	// Issued but never registered: invisible to login.
	_, err = c.Login(ctx, codes[0])
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestValidateSingleUse(t *testing.T) {
	c, _, _ := newCore(t)
	ctx := context.Background()

	codes, err := c.GenerateCodes(ctx, 1)
	require.NoError(t, err)
	_, err = c.Register(ctx, &entity.RegisterRequest{Code: codes[0], Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	result, err := c.Validate(ctx, codes[0])
	require.NoError(t, err)
	assert.True(t, result.IsValid)
	assert.True(t, result.User.Attended)
	assert.Equal(t, 1, result.User.Entries)

	_, err = c.Validate(ctx, codes[0])
	assert.ErrorIs(t, err, entity.ErrAlreadyUsed)

	// No further mutation after the rejection.
	stored, err := c.Login(ctx, codes[0])
	require.NoError(t, err)
	assert.True(t, stored.Attended)
	assert.Equal(t, 1, stored.Entries)
}

func TestValidateByEmail(t *testing.T) {
	c, _, _ := newCore(t)
	ctx := context.Background()

	codes, err := c.GenerateCodes(ctx, 1)
	require.NoError(t, err)
	_, err = c.Register(ctx, &entity.RegisterRequest{Code: codes[0], Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	result, err := c.Validate(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.True(t, result.IsValid)
}

func TestValidateUnregisteredCode(t *testing.T) {
	c, _, _ := newCore(t)
	ctx := context.Background()

	codes, err := c.GenerateCodes(ctx, 1)
	require.NoError(t, err)

	_, err = c.Validate(ctx, codes[0])
	assert.ErrorIs(t, err, entity.ErrNotFound)

	_, err = c.Validate(ctx, "UNKNOWN")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestPurchase(t *testing.T) {
	c, _, files := newCore(t)
	notifier := &fakeNotifier{}
	c.SetNotifier(notifier)
	ctx := context.Background()

	ticket, err := c.Purchase(ctx, purchaseRequest("ada@example.com"), strings.NewReader("img"), "receipt.png")
	require.NoError(t, err)
	assert.False(t, ticket.IsVerified)
	assert.Equal(t, "proof-1.png", ticket.PaymentProof)
	assert.Len(t, files.saved, 1)
	assert.Equal(t, 1, notifier.purchased)

	pending, err := c.PendingTickets(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestPurchaseMissingProof(t *testing.T) {
	c, _, files := newCore(t)

	_, err := c.Purchase(context.Background(), purchaseRequest("ada@example.com"), nil, "")
	assert.ErrorIs(t, err, entity.ErrValidation)
	assert.Empty(t, files.saved)

	pending, err := c.PendingTickets(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestPurchaseInvalidFields(t *testing.T) {
	c, _, files := newCore(t)

	req := purchaseRequest("ada@example.com")
	req.PaymentMethod = "cash"
	_, err := c.Purchase(context.Background(), req, strings.NewReader("img"), "receipt.png")
	assert.ErrorIs(t, err, entity.ErrValidation)
	assert.Empty(t, files.saved)
}

func TestPurchaseDuplicateEmail(t *testing.T) {
	c, _, files := newCore(t)
	ctx := context.Background()

	_, err := c.Purchase(ctx, purchaseRequest("ada@example.com"), strings.NewReader("img"), "receipt.png")
	require.NoError(t, err)

	_, err = c.Purchase(ctx, purchaseRequest("ada@example.com"), strings.NewReader("img"), "receipt.png")
	assert.ErrorIs(t, err, entity.ErrDuplicate)
	// The duplicate was caught before a second file was written.
	assert.Len(t, files.saved, 1)
	assert.Empty(t, files.removed)
}

// failingInsert simulates a concurrent purchase slipping in between the
// email check and the insert; the stored proof must be compensated.
type failingInsert struct {
	*memStore
	failed bool
}

func (s *failingInsert) InsertTicket(ctx context.Context, ticket *entity.Ticket) error {
	if !s.failed {
		s.failed = true
		return entity.ErrDuplicate
	}
	return s.memStore.InsertTicket(ctx, ticket)
}

func TestPurchaseCleansUpProofOnInsertFailure(t *testing.T) {
	store := &failingInsert{memStore: &memStore{}}
	files := &fakeUploads{}
	c := core.New(store, files, discardLogger())

	_, err := c.Purchase(context.Background(), purchaseRequest("ada@example.com"), strings.NewReader("img"), "receipt.png")
	assert.ErrorIs(t, err, entity.ErrDuplicate)
	require.Len(t, files.saved, 1)
	assert.Equal(t, files.saved, files.removed)
}

func TestVerifyTicketOnce(t *testing.T) {
	c, _, _ := newCore(t)
	notifier := &fakeNotifier{}
	c.SetNotifier(notifier)
	ctx := context.Background()

	ticket, err := c.Purchase(ctx, purchaseRequest("ada@example.com"), strings.NewReader("img"), "receipt.png")
	require.NoError(t, err)

	verified, err := c.VerifyTicket(ctx, ticket.Id.Hex())
	require.NoError(t, err)
	assert.True(t, verified.Ticket.IsVerified)
	assert.False(t, verified.Ticket.VerifiedAt.IsZero())
	assert.Equal(t, "ada@example.com", verified.User.Email)
	assert.Len(t, verified.User.Code, 6)
	assert.Equal(t, 1, notifier.verified)

	attendees, err := c.Attendees(ctx)
	require.NoError(t, err)
	assert.Len(t, attendees, 1)

	_, err = c.VerifyTicket(ctx, ticket.Id.Hex())
	assert.ErrorIs(t, err, entity.ErrAlreadyVerified)

	// Still exactly one attendee.
	attendees, err = c.Attendees(ctx)
	require.NoError(t, err)
	assert.Len(t, attendees, 1)
}

func TestVerifyTicketUnknown(t *testing.T) {
	c, _, _ := newCore(t)

	_, err := c.VerifyTicket(context.Background(), primitive.NewObjectID().Hex())
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestVerifyResumesAfterPartialFailure(t *testing.T) {
	c, store, _ := newCore(t)
	ctx := context.Background()

	ticket, err := c.Purchase(ctx, purchaseRequest("ada@example.com"), strings.NewReader("img"), "receipt.png")
	require.NoError(t, err)

	// Simulate a crash after the attendee insert but before the verified
	// flag was set: the attendee already exists, the ticket does not know.
	err = store.InsertAttendee(ctx, &entity.Attendee{
		Name:         "Ada",
		Email:        "ada@example.com",
		Code:         "CRASH1",
		CreatedAt:    time.Now().UTC(),
		RegisteredAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	verified, err := c.VerifyTicket(ctx, ticket.Id.Hex())
	require.NoError(t, err)
	assert.Equal(t, "CRASH1", verified.User.Code)
	assert.True(t, verified.Ticket.IsVerified)

	attendees, err := c.Attendees(ctx)
	require.NoError(t, err)
	assert.Len(t, attendees, 1)
}

func TestValidateVerifiedTicketHolder(t *testing.T) {
	c, _, _ := newCore(t)
	ctx := context.Background()

	ticket, err := c.Purchase(ctx, purchaseRequest("ada@example.com"), strings.NewReader("img"), "receipt.png")
	require.NoError(t, err)
	verified, err := c.VerifyTicket(ctx, ticket.Id.Hex())
	require.NoError(t, err)

	result, err := c.Validate(ctx, verified.User.Code)
	require.NoError(t, err)
	assert.True(t, result.IsValid)

	_, err = c.Validate(ctx, verified.User.Code)
	assert.ErrorIs(t, err, entity.ErrAlreadyUsed)
}

func TestDeleteAttendee(t *testing.T) {
	c, _, _ := newCore(t)
	ctx := context.Background()

	codes, err := c.GenerateCodes(ctx, 1)
	require.NoError(t, err)
	attendee, err := c.Register(ctx, &entity.RegisterRequest{Code: codes[0], Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	require.NoError(t, c.DeleteAttendee(ctx, attendee.Id.Hex()))
	assert.ErrorIs(t, c.DeleteAttendee(ctx, attendee.Id.Hex()), entity.ErrNotFound)
}

func TestReady(t *testing.T) {
	c, store, _ := newCore(t)

	assert.NoError(t, c.Ready(context.Background()))

	store.pingErr = fmt.Errorf("connection refused")
	assert.ErrorIs(t, c.Ready(context.Background()), entity.ErrUnavailable)
}
