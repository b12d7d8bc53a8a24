package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Attendee is one admission slot. Created empty-identity by code generation,
// or fully bound by ticket verification. The code doubles as the QR payload
// printed on the ticket.
type Attendee struct {
	Id           primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Name         string             `json:"name" bson:"name"`
	Email        string             `json:"email" bson:"email"`
	Phone        string             `json:"phone,omitempty" bson:"phone,omitempty"`
	Code         string             `json:"code" bson:"code"`
	Attended     bool               `json:"attended" bson:"attended"`
	Entries      int                `json:"entries" bson:"entries"`
	CreatedAt    time.Time          `json:"created_at" bson:"created_at"`
	RegisteredAt time.Time          `json:"registered_at,omitempty" bson:"registered_at,omitempty"`
	ValidatedAt  time.Time          `json:"validated_at,omitempty" bson:"validated_at,omitempty"`
}

// IsBound reports whether an identity has been registered against the code.
// An issued-but-unbound attendee is invisible to login and door validation.
func (a *Attendee) IsBound() bool {
	return a.Email != ""
}

// ValidationResult is the door-scan response: the matched attendee plus
// the verdict the scanner UI acts on.
type ValidationResult struct {
	IsValid bool      `json:"is_valid"`
	User    *Attendee `json:"user,omitempty"`
}
