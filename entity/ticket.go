package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TicketType string

const (
	TicketSingle TicketType = "single"
	TicketGroup  TicketType = "group"
)

type PaymentMethod string

const (
	PayTelda    PaymentMethod = "telda"
	PayInstapay PaymentMethod = "instapay"
)

// Ticket is a self-service purchase awaiting manual payment verification.
// Verification is one-way: is_verified flips false→true exactly once and
// spawns the Attendee; the ticket is never mutated again.
type Ticket struct {
	Id            primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Name          string             `json:"name" bson:"name"`
	Email         string             `json:"email" bson:"email"`
	Phone         string             `json:"phone,omitempty" bson:"phone,omitempty"`
	TicketType    TicketType         `json:"ticket_type" bson:"ticket_type"`
	PaymentMethod PaymentMethod      `json:"payment_method" bson:"payment_method"`
	PaymentProof  string             `json:"payment_proof" bson:"payment_proof"`
	IsVerified    bool               `json:"is_verified" bson:"is_verified"`
	VerifiedAt    time.Time          `json:"verified_at,omitempty" bson:"verified_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
}

// VerifiedTicket pairs the promoted attendee with its source ticket.
type VerifiedTicket struct {
	User   *Attendee `json:"user"`
	Ticket *Ticket   `json:"ticket"`
}
