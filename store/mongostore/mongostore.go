// Package mongostore implements store.IssueStore on MongoDB.
//
// Optimistic locking uses the issue's version field as the update filter;
// counters are maintained with $inc so versioned saves never race them.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"civicsync/apperr"
	"civicsync/models"
	"civicsync/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	IssuesCollection    = "issues"
	UpvotesCollection   = "upvotes"
	ResponsesCollection = "responses"
)

// Store holds the three collections backing the issue core.
type Store struct {
	issues    *mongo.Collection
	upvotes   *mongo.Collection
	responses *mongo.Collection
}

var _ store.IssueStore = (*Store)(nil)

// New returns a store over db. Call EnsureIndexes once at deploy time.
func New(db *mongo.Database) *Store {
	return &Store{
		issues:    db.Collection(IssuesCollection),
		upvotes:   db.Collection(UpvotesCollection),
		responses: db.Collection(ResponsesCollection),
	}
}

func issueNotFound(id primitive.ObjectID) error {
	return fmt.Errorf("issue %s: %w", id.Hex(), apperr.ErrNotFound)
}

func responseNotFound(id primitive.ObjectID) error {
	return fmt.Errorf("response %s: %w", id.Hex(), apperr.ErrNotFound)
}

func (s *Store) CreateIssue(ctx context.Context, issue *models.Issue) error {
	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	if issue.Images == nil {
		issue.Images = []string{}
	}
	if _, err := s.issues.InsertOne(ctx, issue); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("issue %s: %w", issue.ID.Hex(), store.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert issue: %w", err)
	}
	return nil
}

func (s *Store) GetIssue(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	var issue models.Issue
	err := s.issues.FindOne(ctx, bson.M{"_id": id}).Decode(&issue)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, issueNotFound(id)
		}
		return nil, fmt.Errorf("failed to retrieve issue: %w", err)
	}
	return &issue, nil
}

// saveIssueUpdate builds the versioned update for SaveIssue. Counters,
// reporter and creation time are never written; nil optional fields are
// unset so the stored document matches the record.
func saveIssueUpdate(issue *models.Issue, expectedVersion int64) bson.M {
	set := bson.M{
		"title":       issue.Title,
		"description": issue.Description,
		"category":    issue.Category,
		"priority":    issue.Priority,
		"status":      issue.Status,
		"images":      issue.Images,
		"updatedAt":   issue.UpdatedAt,
		"version":     expectedVersion + 1,
	}
	unset := bson.M{}

	optional := []struct {
		key   string
		isNil bool
		value any
	}{
		{"location", issue.Location == nil, issue.Location},
		{"assignedMentorId", issue.AssignedMentorID == nil, issue.AssignedMentorID},
		{"acceptedResponseId", issue.AcceptedResponseID == nil, issue.AcceptedResponseID},
		{"resolvedAt", issue.ResolvedAt == nil, issue.ResolvedAt},
	}
	for _, f := range optional {
		if f.isNil {
			unset[f.key] = ""
		} else {
			set[f.key] = f.value
		}
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update
}

// SaveIssue writes issue if the stored version is expectedVersion. On
// success issue carries the new version and the stored counters.
func (s *Store) SaveIssue(ctx context.Context, issue *models.Issue, expectedVersion int64) error {
	filter := bson.M{"_id": issue.ID, "version": expectedVersion}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var saved models.Issue
	err := s.issues.FindOneAndUpdate(ctx, filter, saveIssueUpdate(issue, expectedVersion), opts).Decode(&saved)
	if err == nil {
		issue.Version = saved.Version
		issue.UpvoteCount = saved.UpvoteCount
		issue.ResponseCount = saved.ResponseCount
		return nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("failed to update issue: %w", err)
	}

	count, err := s.issues.CountDocuments(ctx, bson.M{"_id": issue.ID})
	if err != nil {
		return fmt.Errorf("failed to check issue: %w", err)
	}
	if count == 0 {
		return issueNotFound(issue.ID)
	}
	return fmt.Errorf("issue %s moved past version %d: %w", issue.ID.Hex(), expectedVersion, store.ErrVersionConflict)
}

func issueFilterDoc(filter store.IssueFilter) bson.M {
	doc := bson.M{}
	if filter.Category != "" {
		doc["category"] = filter.Category
	}
	if filter.Status != "" {
		doc["status"] = filter.Status
	}
	if filter.ReporterID != nil {
		doc["reporterId"] = *filter.ReporterID
	}
	if filter.HasLocation {
		doc["location"] = bson.M{"$exists": true, "$ne": nil}
	}
	if filter.Search != "" {
		pattern := regexp.QuoteMeta(filter.Search)
		doc["$or"] = []bson.M{
			{"title": bson.M{"$regex": pattern, "$options": "i"}},
			{"description": bson.M{"$regex": pattern, "$options": "i"}},
		}
	}
	return doc
}

func (s *Store) ListIssues(ctx context.Context, filter store.IssueFilter) ([]*models.Issue, int64, error) {
	doc := issueFilterDoc(filter)

	total, err := s.issues.CountDocuments(ctx, doc)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count issues: %w", err)
	}

	var sortOptions bson.D
	switch filter.Sort {
	case store.SortOldest:
		sortOptions = bson.D{{Key: "createdAt", Value: 1}}
	case store.SortUpvotes:
		sortOptions = bson.D{{Key: "upvoteCount", Value: -1}, {Key: "createdAt", Value: -1}}
	default:
		sortOptions = bson.D{{Key: "createdAt", Value: -1}}
	}

	findOptions := options.Find().
		SetSort(sortOptions).
		SetSkip(int64(filter.Skip))
	if filter.Limit > 0 {
		findOptions.SetLimit(int64(filter.Limit))
	}

	cursor, err := s.issues.Find(ctx, doc, findOptions)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to retrieve issues: %w", err)
	}
	defer cursor.Close(ctx)

	issues := []*models.Issue{}
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, 0, fmt.Errorf("failed to decode issues: %w", err)
	}
	return issues, total, nil
}

func (s *Store) AdjustCounters(ctx context.Context, issueID primitive.ObjectID, upvoteDelta, responseDelta int64) (*models.Issue, error) {
	update := bson.M{"$inc": bson.M{
		"upvoteCount":   upvoteDelta,
		"responseCount": responseDelta,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var issue models.Issue
	err := s.issues.FindOneAndUpdate(ctx, bson.M{"_id": issueID}, update, opts).Decode(&issue)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, issueNotFound(issueID)
		}
		return nil, fmt.Errorf("failed to adjust counters: %w", err)
	}
	return &issue, nil
}

func (s *Store) GetUpvote(ctx context.Context, issueID, actorID primitive.ObjectID) (*models.Upvote, error) {
	var upvote models.Upvote
	err := s.upvotes.FindOne(ctx, bson.M{"issueId": issueID, "actorId": actorID}).Decode(&upvote)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("upvote on %s by %s: %w", issueID.Hex(), actorID.Hex(), apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to check existing upvote: %w", err)
	}
	return &upvote, nil
}

func (s *Store) InsertUpvote(ctx context.Context, upvote *models.Upvote) error {
	if upvote.ID.IsZero() {
		upvote.ID = primitive.NewObjectID()
	}
	if _, err := s.upvotes.InsertOne(ctx, upvote); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("upvote on %s by %s: %w", upvote.IssueID.Hex(), upvote.ActorID.Hex(), store.ErrDuplicate)
		}
		return fmt.Errorf("failed to cast upvote: %w", err)
	}
	return nil
}

func (s *Store) DeleteUpvote(ctx context.Context, issueID, actorID primitive.ObjectID) error {
	result, err := s.upvotes.DeleteOne(ctx, bson.M{"issueId": issueID, "actorId": actorID})
	if err != nil {
		return fmt.Errorf("failed to remove upvote: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("upvote on %s by %s: %w", issueID.Hex(), actorID.Hex(), apperr.ErrNotFound)
	}
	return nil
}

func (s *Store) InsertResponse(ctx context.Context, response *models.Response) error {
	if response.ID.IsZero() {
		response.ID = primitive.NewObjectID()
	}
	if _, err := s.responses.InsertOne(ctx, response); err != nil {
		return fmt.Errorf("failed to insert response: %w", err)
	}
	return nil
}

func (s *Store) GetResponse(ctx context.Context, issueID, responseID primitive.ObjectID) (*models.Response, error) {
	var response models.Response
	err := s.responses.FindOne(ctx, bson.M{"_id": responseID, "issueId": issueID}).Decode(&response)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, responseNotFound(responseID)
		}
		return nil, fmt.Errorf("failed to retrieve response: %w", err)
	}
	return &response, nil
}

func (s *Store) MarkResponseAccepted(ctx context.Context, issueID, responseID primitive.ObjectID) (*models.Response, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	filter := bson.M{"_id": responseID, "issueId": issueID}

	var response models.Response
	err := s.responses.FindOneAndUpdate(ctx, filter, bson.M{"$set": bson.M{"isAccepted": true}}, opts).Decode(&response)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, responseNotFound(responseID)
		}
		return nil, fmt.Errorf("failed to accept response: %w", err)
	}
	return &response, nil
}

func (s *Store) IncrementResponseLikes(ctx context.Context, issueID, responseID primitive.ObjectID) (*models.Response, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	filter := bson.M{"_id": responseID, "issueId": issueID}

	var response models.Response
	err := s.responses.FindOneAndUpdate(ctx, filter, bson.M{"$inc": bson.M{"likesCount": 1}}, opts).Decode(&response)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, responseNotFound(responseID)
		}
		return nil, fmt.Errorf("failed to like response: %w", err)
	}
	return &response, nil
}

func responseSort(order store.ResponseOrder) bson.D {
	if order == store.OrderChronological {
		return bson.D{{Key: "createdAt", Value: 1}}
	}
	return bson.D{
		{Key: "isAccepted", Value: -1},
		{Key: "isSolution", Value: -1},
		{Key: "likesCount", Value: -1},
		{Key: "createdAt", Value: 1},
	}
}

func (s *Store) ListResponses(ctx context.Context, issueID primitive.ObjectID, order store.ResponseOrder) ([]*models.Response, error) {
	cursor, err := s.responses.Find(ctx, bson.M{"issueId": issueID}, options.Find().SetSort(responseSort(order)))
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve responses: %w", err)
	}
	defer cursor.Close(ctx)

	responses := []*models.Response{}
	if err := cursor.All(ctx, &responses); err != nil {
		return nil, fmt.Errorf("failed to decode responses: %w", err)
	}
	return responses, nil
}

// EnsureIndexes creates the unique upvote pair index and the lookup indexes
// used by the queries above.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if err := models.EnsureUpvoteIndex(ctx, s.upvotes); err != nil {
		return fmt.Errorf("failed to create upvote index: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.responses.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "issueId", Value: 1}, {Key: "createdAt", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create response index: %w", err)
	}

	_, err = s.issues.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "reporterId", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "category", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create issue indexes: %w", err)
	}
	return nil
}
