package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"gatepass/entity"
	"gatepass/internal/config"
)

const (
	collectionAttendees = "attendees"
	collectionTickets   = "tickets"
)

type MongoDB struct {
	client   *mongo.Client
	database string
}

func NewMongoClient(ctx context.Context, conf *config.Config) (*MongoDB, error) {
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	return &MongoDB{
		client:   client,
		database: conf.Mongo.Database,
	}, nil
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *MongoDB) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

// EnsureIndexes creates the uniqueness constraints the services rely on:
// one attendee per code, one bound attendee per email, one pending ticket
// per email. Email uniqueness on attendees is partial so that batches of
// freshly generated, identity-less codes do not collide on the empty string.
func (m *MongoDB) EnsureIndexes(ctx context.Context) error {
	attendees := m.collection(collectionAttendees)
	_, err := attendees.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "email", Value: bson.D{{Key: "$gt", Value: ""}}}}),
		},
	})
	if err != nil {
		return fmt.Errorf("mongodb attendee indexes: %w", err)
	}
	tickets := m.collection(collectionTickets)
	_, err = tickets.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongodb ticket indexes: %w", err)
	}
	return nil
}

func (m *MongoDB) collection(name string) *mongo.Collection {
	return m.client.Database(m.database).Collection(name)
}

func (m *MongoDB) wrapError(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return entity.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return entity.ErrDuplicate
	}
	return fmt.Errorf("mongodb: %w", err)
}

// keyFilter matches an attendee by code or by email.
func keyFilter(key string) bson.D {
	return bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "code", Value: key}},
		bson.D{{Key: "email", Value: key}},
	}}}
}

func (m *MongoDB) InsertAttendee(ctx context.Context, attendee *entity.Attendee) error {
	if attendee.Id.IsZero() {
		attendee.Id = primitive.NewObjectID()
	}
	_, err := m.collection(collectionAttendees).InsertOne(ctx, attendee)
	if err != nil {
		return m.wrapError(err)
	}
	return nil
}

func (m *MongoDB) GetAttendee(ctx context.Context, key string) (*entity.Attendee, error) {
	var attendee entity.Attendee
	err := m.collection(collectionAttendees).FindOne(ctx, keyFilter(key)).Decode(&attendee)
	if err != nil {
		return nil, m.wrapError(err)
	}
	return &attendee, nil
}

func (m *MongoDB) CodeExists(ctx context.Context, code string) (bool, error) {
	count, err := m.collection(collectionAttendees).CountDocuments(ctx, bson.D{{Key: "code", Value: code}})
	if err != nil {
		return false, m.wrapError(err)
	}
	return count > 0, nil
}

func (m *MongoDB) ListAttendees(ctx context.Context) ([]*entity.Attendee, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := m.collection(collectionAttendees).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, m.wrapError(err)
	}
	defer cursor.Close(ctx)

	var attendees []*entity.Attendee
	if err = cursor.All(ctx, &attendees); err != nil {
		return nil, m.wrapError(err)
	}
	return attendees, nil
}

func (m *MongoDB) DeleteAttendee(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return entity.ErrNotFound
	}
	result, err := m.collection(collectionAttendees).DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return m.wrapError(err)
	}
	if result.DeletedCount == 0 {
		return entity.ErrNotFound
	}
	return nil
}

// RegisterAttendee binds an identity to a code in one conditional write.
// The filter asserts the slot is still unbound, so two concurrent
// registrations against the same code cannot both win.
func (m *MongoDB) RegisterAttendee(ctx context.Context, code, name, email, phone string) (*entity.Attendee, error) {
	filter := bson.D{{Key: "code", Value: code}, {Key: "email", Value: ""}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "name", Value: name},
		{Key: "email", Value: email},
		{Key: "phone", Value: phone},
		{Key: "registered_at", Value: time.Now().UTC()},
	}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var attendee entity.Attendee
	err := m.collection(collectionAttendees).FindOneAndUpdate(ctx, filter, update, opts).Decode(&attendee)
	if err == nil {
		return &attendee, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, m.wrapError(err)
	}
	// No unbound slot matched: either the code is unknown or it was
	// registered already.
	existing, lookupErr := m.GetAttendee(ctx, code)
	if lookupErr != nil {
		return nil, lookupErr
	}
	if existing.IsBound() {
		return nil, entity.ErrAlreadyUsed
	}
	return nil, entity.ErrNotFound
}

// MarkAttended flips attended false→true for a bound attendee in one
// conditional write and bumps the entries audit counter on the same
// document. A second validation finds no match and is rejected.
func (m *MongoDB) MarkAttended(ctx context.Context, key string) (*entity.Attendee, error) {
	filter := bson.D{
		{Key: "$or", Value: bson.A{
			bson.D{{Key: "code", Value: key}},
			bson.D{{Key: "email", Value: key}},
		}},
		{Key: "email", Value: bson.D{{Key: "$ne", Value: ""}}},
		{Key: "attended", Value: false},
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "attended", Value: true},
			{Key: "validated_at", Value: time.Now().UTC()},
		}},
		{Key: "$inc", Value: bson.D{{Key: "entries", Value: 1}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var attendee entity.Attendee
	err := m.collection(collectionAttendees).FindOneAndUpdate(ctx, filter, update, opts).Decode(&attendee)
	if err == nil {
		return &attendee, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, m.wrapError(err)
	}
	existing, lookupErr := m.GetAttendee(ctx, key)
	if lookupErr != nil {
		return nil, lookupErr
	}
	if !existing.IsBound() {
		// Issued but never registered: indistinguishable from unknown.
		return nil, entity.ErrNotFound
	}
	if existing.Attended {
		return nil, entity.ErrAlreadyUsed
	}
	return nil, fmt.Errorf("mongodb: attendee %s not updated", existing.Id.Hex())
}

// EmailTaken reports whether an email is held by any attendee or any
// pending ticket.
func (m *MongoDB) EmailTaken(ctx context.Context, email string) (bool, error) {
	count, err := m.collection(collectionAttendees).CountDocuments(ctx, bson.D{{Key: "email", Value: email}})
	if err != nil {
		return false, m.wrapError(err)
	}
	if count > 0 {
		return true, nil
	}
	count, err = m.collection(collectionTickets).CountDocuments(ctx, bson.D{{Key: "email", Value: email}})
	if err != nil {
		return false, m.wrapError(err)
	}
	return count > 0, nil
}

func (m *MongoDB) InsertTicket(ctx context.Context, ticket *entity.Ticket) error {
	if ticket.Id.IsZero() {
		ticket.Id = primitive.NewObjectID()
	}
	_, err := m.collection(collectionTickets).InsertOne(ctx, ticket)
	if err != nil {
		return m.wrapError(err)
	}
	return nil
}

func (m *MongoDB) GetTicket(ctx context.Context, id string) (*entity.Ticket, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, entity.ErrNotFound
	}
	var ticket entity.Ticket
	err = m.collection(collectionTickets).FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&ticket)
	if err != nil {
		return nil, m.wrapError(err)
	}
	return &ticket, nil
}

func (m *MongoDB) ListPendingTickets(ctx context.Context) ([]*entity.Ticket, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := m.collection(collectionTickets).Find(ctx, bson.D{{Key: "is_verified", Value: false}}, opts)
	if err != nil {
		return nil, m.wrapError(err)
	}
	defer cursor.Close(ctx)

	var tickets []*entity.Ticket
	if err = cursor.All(ctx, &tickets); err != nil {
		return nil, m.wrapError(err)
	}
	return tickets, nil
}

// SetTicketVerified flips is_verified false→true once. The caller must
// have durably created the attendee first; a crash between the two writes
// leaves the ticket re-verifiable instead of dropping the attendee.
func (m *MongoDB) SetTicketVerified(ctx context.Context, id string) (*entity.Ticket, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, entity.ErrNotFound
	}
	filter := bson.D{{Key: "_id", Value: oid}, {Key: "is_verified", Value: false}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "is_verified", Value: true},
		{Key: "verified_at", Value: time.Now().UTC()},
	}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var ticket entity.Ticket
	err = m.collection(collectionTickets).FindOneAndUpdate(ctx, filter, update, opts).Decode(&ticket)
	if err == nil {
		return &ticket, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, m.wrapError(err)
	}
	existing, lookupErr := m.GetTicket(ctx, id)
	if lookupErr != nil {
		return nil, lookupErr
	}
	if existing.IsVerified {
		return nil, entity.ErrAlreadyVerified
	}
	return nil, fmt.Errorf("mongodb: ticket %s not updated", id)
}
