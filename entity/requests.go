package entity

import (
	"net/http"

	"gatepass/lib/validate"
)

// RegisterRequest binds an identity to a pre-issued code.
type RegisterRequest struct {
	Code  string `json:"code" validate:"required,alphanum"`
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"omitempty"`
}

func (r *RegisterRequest) Bind(_ *http.Request) error {
	return validate.Struct(r)
}

// LookupRequest carries a code or an email; exactly one is enough.
// Used by both attendee login and admin door validation.
type LookupRequest struct {
	Code  string `json:"code" validate:"omitempty,alphanum"`
	Email string `json:"email" validate:"omitempty,email"`
}

func (r *LookupRequest) Bind(_ *http.Request) error {
	if r.Code == "" && r.Email == "" {
		return ErrValidation
	}
	return validate.Struct(r)
}

// Key returns whichever lookup key is present, preferring the code.
func (r *LookupRequest) Key() string {
	if r.Code != "" {
		return r.Code
	}
	return r.Email
}

// AdminLoginRequest trades the shared admin password for the bearer token.
type AdminLoginRequest struct {
	Password string `json:"password" validate:"required"`
}

func (r *AdminLoginRequest) Bind(_ *http.Request) error {
	return validate.Struct(r)
}

// PurchaseRequest is the non-file part of the multipart purchase form.
// The proof file is handled separately by the uploads store.
type PurchaseRequest struct {
	Name          string        `json:"name" validate:"required"`
	Email         string        `json:"email" validate:"required,email"`
	Phone         string        `json:"phone" validate:"omitempty"`
	TicketType    TicketType    `json:"ticket_type" validate:"required,oneof=single group"`
	PaymentMethod PaymentMethod `json:"payment_method" validate:"required,oneof=telda instapay"`
}

func (r *PurchaseRequest) Validate() error {
	return validate.Struct(r)
}

// CodeBatch is the generate-codes response payload.
type CodeBatch struct {
	Codes []string `json:"codes"`
}

// Token is the admin login response payload.
type Token struct {
	Token string `json:"token"`
}
