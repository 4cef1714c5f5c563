package mongostore

import (
	"context"
	"testing"
	"time"

	"civicsync/apperr"
	"civicsync/models"
	"civicsync/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestIssueFilterDoc(t *testing.T) {
	reporter := primitive.NewObjectID()

	assert.Empty(t, issueFilterDoc(store.IssueFilter{}))

	doc := issueFilterDoc(store.IssueFilter{
		Category:    models.Noise,
		Status:      models.StatusOpen,
		ReporterID:  &reporter,
		HasLocation: true,
	})
	assert.Equal(t, models.Noise, doc["category"])
	assert.Equal(t, models.StatusOpen, doc["status"])
	assert.Equal(t, reporter, doc["reporterId"])
	assert.Equal(t, bson.M{"$exists": true, "$ne": nil}, doc["location"])
}

func TestIssueFilterDocEscapesSearch(t *testing.T) {
	doc := issueFilterDoc(store.IssueFilter{Search: "a.b*"})

	or, ok := doc["$or"].([]bson.M)
	if assert.True(t, ok) && assert.Len(t, or, 2) {
		assert.Equal(t, bson.M{"$regex": `a\.b\*`, "$options": "i"}, or[0]["title"])
	}
}

func TestResponseSort(t *testing.T) {
	assert.Equal(t, bson.D{{Key: "createdAt", Value: 1}}, responseSort(store.OrderChronological))

	ranked := responseSort(store.OrderRanked)
	keys := make([]string, 0, len(ranked))
	for _, e := range ranked {
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []string{"isAccepted", "isSolution", "likesCount", "createdAt"}, keys)
}

func TestSaveIssueUpdate(t *testing.T) {
	mentorID := primitive.NewObjectID()
	issue := &models.Issue{
		ID:               primitive.NewObjectID(),
		Title:            "Broken streetlight",
		Status:           models.StatusAssigned,
		Images:           []string{},
		AssignedMentorID: &mentorID,
		UpvoteCount:      7,
		ResponseCount:    2,
	}

	update := saveIssueUpdate(issue, 3)

	set, ok := update["$set"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, int64(4), set["version"])
	assert.Equal(t, &mentorID, set["assignedMentorId"])
	assert.Equal(t, models.StatusAssigned, set["status"])
	assert.NotContains(t, set, "upvoteCount")
	assert.NotContains(t, set, "responseCount")
	assert.NotContains(t, set, "resolvedAt")

	unset, ok := update["$unset"].(bson.M)
	require.True(t, ok)
	assert.Contains(t, unset, "resolvedAt")
	assert.Contains(t, unset, "location")
	assert.Contains(t, unset, "acceptedResponseId")
	assert.NotContains(t, unset, "assignedMentorId")

	resolved := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	issue.ResolvedAt = &resolved
	issue.Location = &models.Location{Latitude: 1, Longitude: 2}
	acceptedID := primitive.NewObjectID()
	issue.AcceptedResponseID = &acceptedID
	update = saveIssueUpdate(issue, 3)
	assert.NotContains(t, update, "$unset")
	assert.Equal(t, &resolved, update["$set"].(bson.M)["resolvedAt"])
}

func TestMongoStoreWrites(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("save refreshes version and counters", func(mt *mtest.T) {
		issue := &models.Issue{ID: primitive.NewObjectID(), Title: "Pothole", Status: models.StatusOpen, Version: 2}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: issue.ID},
			{Key: "title", Value: "Pothole"},
			{Key: "version", Value: int64(3)},
			{Key: "upvoteCount", Value: int64(5)},
			{Key: "responseCount", Value: int64(1)},
		}}))

		require.NoError(mt, New(mt.DB).SaveIssue(ctx, issue, 2))
		assert.Equal(mt, int64(3), issue.Version)
		assert.Equal(mt, int64(5), issue.UpvoteCount)
		assert.Equal(mt, int64(1), issue.ResponseCount)

		cmd := mt.GetStartedEvent().Command
		version, err := cmd.LookupErr("query", "version")
		require.NoError(mt, err)
		assert.Equal(mt, int64(2), version.Int64())
		_, err = cmd.LookupErr("update", "$unset", "resolvedAt")
		assert.NoError(mt, err)
	})

	mt.Run("stale version is a conflict", func(mt *mtest.T) {
		issue := &models.Issue{ID: primitive.NewObjectID(), Version: 2}
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, "civicsync.issues", mtest.FirstBatch, bson.D{{Key: "n", Value: int64(1)}}),
		)

		err := New(mt.DB).SaveIssue(ctx, issue, 2)
		assert.ErrorIs(mt, err, store.ErrVersionConflict)
		assert.Equal(mt, int64(2), issue.Version)
	})

	mt.Run("missing issue is not found", func(mt *mtest.T) {
		issue := &models.Issue{ID: primitive.NewObjectID(), Version: 2}
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, "civicsync.issues", mtest.FirstBatch),
		)

		err := New(mt.DB).SaveIssue(ctx, issue, 2)
		assert.ErrorIs(mt, err, apperr.ErrNotFound)
		assert.NotErrorIs(mt, err, store.ErrVersionConflict)
	})

	mt.Run("second upvote is a duplicate", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error",
		}))

		err := New(mt.DB).InsertUpvote(ctx, &models.Upvote{IssueID: primitive.NewObjectID(), ActorID: primitive.NewObjectID()})
		assert.ErrorIs(mt, err, store.ErrDuplicate)
	})

	mt.Run("removing an absent upvote is not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		err := New(mt.DB).DeleteUpvote(ctx, primitive.NewObjectID(), primitive.NewObjectID())
		assert.ErrorIs(mt, err, apperr.ErrNotFound)
	})

	mt.Run("accepting writes only the flag", func(mt *mtest.T) {
		issueID, responseID := primitive.NewObjectID(), primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: responseID},
			{Key: "issueId", Value: issueID},
			{Key: "isAccepted", Value: true},
			{Key: "likesCount", Value: int64(4)},
		}}))

		accepted, err := New(mt.DB).MarkResponseAccepted(ctx, issueID, responseID)
		require.NoError(mt, err)
		assert.True(mt, accepted.IsAccepted)
		assert.Equal(mt, int64(4), accepted.LikesCount)

		set, err := mt.GetStartedEvent().Command.LookupErr("update", "$set")
		require.NoError(mt, err)
		elems, err := set.Document().Elements()
		require.NoError(mt, err)
		assert.Len(mt, elems, 1)
	})

	mt.Run("accepting an unknown response is not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		_, err := New(mt.DB).MarkResponseAccepted(ctx, primitive.NewObjectID(), primitive.NewObjectID())
		assert.ErrorIs(mt, err, apperr.ErrNotFound)
	})
}
