package mentor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"civicsync/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MentorsCollection holds the mentor registry.
const MentorsCollection = "mentors"

// MongoProvider reads capability from the mentor registry collection.
type MongoProvider struct {
	mentors *mongo.Collection
}

// NewMongoProvider returns a provider over db's mentor registry.
func NewMongoProvider(db *mongo.Database) *MongoProvider {
	return &MongoProvider{mentors: db.Collection(MentorsCollection)}
}

func (p *MongoProvider) IsMentor(ctx context.Context, actorID primitive.ObjectID) (bool, error) {
	var mentor models.Mentor
	err := p.mentors.FindOne(ctx, bson.M{"userId": actorID}).Decode(&mentor)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, fmt.Errorf("failed to retrieve mentor: %w", err)
	}
	return mentor.CanMentor(), nil
}

// EnsureMentorIndex creates a unique index on userId.
func EnsureMentorIndex(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true),
	}

	_, err := db.Collection(MentorsCollection).Indexes().CreateOne(ctx, indexModel)
	return err
}
