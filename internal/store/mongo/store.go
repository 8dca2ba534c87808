// Package mongo stores activities as documents in a MongoDB collection keyed by activity name.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"example.com/mergington/internal/domain"
)

// document mirrors the stored layout: the activity name is the primary key.
type document struct {
	Name            string   `bson:"_id"`
	Description     string   `bson:"description"`
	Schedule        string   `bson:"schedule"`
	MaxParticipants int      `bson:"max_participants"`
	Participants    []string `bson:"participants"`
}

// Connect dials MongoDB and verifies the primary is reachable.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// Store provides MongoDB-backed persistence for activities.
type Store struct {
	collection *mongo.Collection
}

// NewStore constructs a Store over the given collection.
func NewStore(collection *mongo.Collection) *Store {
	return &Store{collection: collection}
}

// Count implements domain.Store.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.collection.CountDocuments(ctx, bson.D{})
}

// InsertMany implements domain.Store.
func (s *Store) InsertMany(ctx context.Context, activities []domain.Activity) error {
	if len(activities) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(activities))
	for _, a := range activities {
		docs = append(docs, toDocument(a))
	}
	_, err := s.collection.InsertMany(ctx, docs)
	return err
}

// Find implements domain.Store.
func (s *Store) Find(ctx context.Context, name string) (*domain.Activity, error) {
	var doc document
	err := s.collection.FindOne(ctx, bson.M{"_id": name}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	activity := fromDocument(doc)
	return &activity, nil
}

// List implements domain.Store.
func (s *Store) List(ctx context.Context) ([]domain.Activity, error) {
	cursor, err := s.collection.Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Activity, 0, len(docs))
	for _, doc := range docs {
		out = append(out, fromDocument(doc))
	}
	return out, nil
}

// AddParticipant pushes email unless it is already present, in a single update.
func (s *Store) AddParticipant(ctx context.Context, name, email string) (bool, error) {
	filter := bson.M{"_id": name, "participants": bson.M{"$ne": email}}
	update := bson.M{"$push": bson.M{"participants": email}}
	res, err := s.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// RemoveParticipant pulls every occurrence of email.
func (s *Store) RemoveParticipant(ctx context.Context, name, email string) (bool, error) {
	filter := bson.M{"_id": name, "participants": email}
	update := bson.M{"$pull": bson.M{"participants": email}}
	res, err := s.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func toDocument(a domain.Activity) document {
	participants := a.Participants
	if participants == nil {
		// $push fails against a null field.
		participants = []string{}
	}
	return document{
		Name:            a.Name,
		Description:     a.Description,
		Schedule:        a.Schedule,
		MaxParticipants: a.MaxParticipants,
		Participants:    participants,
	}
}

func fromDocument(doc document) domain.Activity {
	participants := doc.Participants
	if participants == nil {
		participants = []string{}
	}
	return domain.Activity{
		Name:            doc.Name,
		Description:     doc.Description,
		Schedule:        doc.Schedule,
		MaxParticipants: doc.MaxParticipants,
		Participants:    participants,
	}
}
