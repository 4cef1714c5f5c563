package engagement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"civicsync/apperr"
	"civicsync/models"
	"civicsync/store/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fixture struct {
	store    *memstore.Store
	ledger   *Ledger
	issue    *models.Issue
	reporter primitive.ObjectID
	mentor   primitive.ObjectID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memstore.New()
	reporter := primitive.NewObjectID()
	mentorID := primitive.NewObjectID()
	now := time.Date(2024, 4, 2, 8, 0, 0, 0, time.UTC)
	issue := &models.Issue{
		ID:               primitive.NewObjectID(),
		Title:            "Pothole",
		Description:      "Deep pothole at the crossing",
		Category:         models.Transportation,
		Priority:         models.PriorityMedium,
		Status:           models.StatusAssigned,
		ReporterID:       reporter,
		AssignedMentorID: &mentorID,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, s.CreateIssue(context.Background(), issue))

	var (
		mu   sync.Mutex
		tick = now
	)
	ledger := NewLedger(s, WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick = tick.Add(time.Second)
		return tick
	}))
	return &fixture{store: s, ledger: ledger, issue: issue, reporter: reporter, mentor: mentorID}
}

func (f *fixture) upvoteCount(t *testing.T) int64 {
	t.Helper()
	issue, err := f.store.GetIssue(context.Background(), f.issue.ID)
	require.NoError(t, err)
	return issue.UpvoteCount
}

func TestToggleUpvoteScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := primitive.NewObjectID()
	b := primitive.NewObjectID()

	res, err := f.ledger.ToggleUpvote(ctx, f.issue.ID, a)
	require.NoError(t, err)
	assert.Equal(t, UpvoteResult{Upvoted: true, NewCount: 1}, res)

	res, err = f.ledger.ToggleUpvote(ctx, f.issue.ID, a)
	require.NoError(t, err)
	assert.Equal(t, UpvoteResult{Upvoted: false, NewCount: 0}, res)

	res, err = f.ledger.ToggleUpvote(ctx, f.issue.ID, b)
	require.NoError(t, err)
	assert.Equal(t, UpvoteResult{Upvoted: true, NewCount: 1}, res)

	assert.Equal(t, int64(1), f.upvoteCount(t))
	assert.Equal(t, 1, f.store.UpvoteCount(f.issue.ID))

	aVoted, err := f.ledger.HasUpvoted(ctx, f.issue.ID, a)
	require.NoError(t, err)
	assert.False(t, aVoted)
	bVoted, err := f.ledger.HasUpvoted(ctx, f.issue.ID, b)
	require.NoError(t, err)
	assert.True(t, bVoted)
}

func TestToggleUpvoteMissingIssue(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.ToggleUpvote(context.Background(), primitive.NewObjectID(), primitive.NewObjectID())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestToggleUpvoteConcurrentActors(t *testing.T) {
	const actors = 20
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < actors; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.ToggleUpvote(ctx, f.issue.ID, primitive.NewObjectID())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(actors), f.upvoteCount(t))
	assert.Equal(t, actors, f.store.UpvoteCount(f.issue.ID))
}

func TestToggleUpvoteCountTracksRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := primitive.NewObjectID()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.ToggleUpvote(ctx, f.issue.ID, a)
			if err != nil {
				assert.ErrorIs(t, err, apperr.ErrConflict)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(f.store.UpvoteCount(f.issue.ID)), f.upvoteCount(t))
}

func TestToggleUpvoteDoesNotTouchVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.ToggleUpvote(ctx, f.issue.ID, primitive.NewObjectID())
	require.NoError(t, err)

	issue, err := f.store.GetIssue(ctx, f.issue.ID)
	require.NoError(t, err)
	assert.Equal(t, f.issue.Version, issue.Version)
	assert.Equal(t, models.StatusAssigned, issue.Status)
}

func TestAddResponse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	citizen := primitive.NewObjectID()

	r, err := f.ledger.AddResponse(ctx, f.issue.ID, citizen, "  same here  ", false)
	require.NoError(t, err)
	assert.Equal(t, "same here", r.Content)
	assert.False(t, r.IsSolution)
	assert.False(t, r.IsAccepted)

	sol, err := f.ledger.AddResponse(ctx, f.issue.ID, f.mentor, "Crew scheduled for Monday", true)
	require.NoError(t, err)
	assert.True(t, sol.IsSolution)

	issue, err := f.store.GetIssue(ctx, f.issue.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), issue.ResponseCount)
}

func TestAddResponseRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.AddResponse(ctx, f.issue.ID, f.mentor, " \n\t ", true)
	assert.ErrorIs(t, err, apperr.ErrEmptyContent)

	_, err = f.ledger.AddResponse(ctx, primitive.NewObjectID(), f.mentor, "hello", true)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	issue, err := f.store.GetIssue(ctx, f.issue.ID)
	require.NoError(t, err)
	assert.Zero(t, issue.ResponseCount)
}

func TestAcceptSolutionScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.ledger.AddResponse(ctx, f.issue.ID, f.mentor, "Filled the pothole", true)
	require.NoError(t, err)
	second, err := f.ledger.AddResponse(ctx, f.issue.ID, f.mentor, "Repaved the lane", true)
	require.NoError(t, err)

	accepted, err := f.ledger.AcceptSolution(ctx, f.issue.ID, first.ID, f.reporter)
	require.NoError(t, err)
	assert.True(t, accepted.IsAccepted)

	_, err = f.ledger.AcceptSolution(ctx, f.issue.ID, second.ID, f.reporter)
	assert.ErrorIs(t, err, apperr.ErrAlreadyAccepted)

	_, err = f.ledger.AcceptSolution(ctx, f.issue.ID, first.ID, f.reporter)
	assert.ErrorIs(t, err, apperr.ErrAlreadyAccepted)

	responses, err := f.ledger.ListResponses(ctx, f.issue.ID)
	require.NoError(t, err)
	acceptedCount := 0
	for _, r := range responses {
		if r.IsAccepted {
			acceptedCount++
		}
	}
	assert.Equal(t, 1, acceptedCount)
}

func TestAcceptSolutionRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	plain, err := f.ledger.AddResponse(ctx, f.issue.ID, primitive.NewObjectID(), "me too", false)
	require.NoError(t, err)
	sol, err := f.ledger.AddResponse(ctx, f.issue.ID, f.mentor, "fixed", true)
	require.NoError(t, err)

	tests := []struct {
		name       string
		responseID primitive.ObjectID
		actor      primitive.ObjectID
		want       error
	}{
		{name: "assigned mentor is not the reporter", responseID: sol.ID, actor: f.mentor, want: apperr.ErrForbidden},
		{name: "stranger", responseID: sol.ID, actor: primitive.NewObjectID(), want: apperr.ErrForbidden},
		{name: "plain response", responseID: plain.ID, actor: f.reporter, want: apperr.ErrNotASolutionResponse},
		{name: "unknown response", responseID: primitive.NewObjectID(), actor: f.reporter, want: apperr.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.AcceptSolution(ctx, f.issue.ID, tt.responseID, tt.actor)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	got, err := f.store.GetResponse(ctx, f.issue.ID, sol.ID)
	require.NoError(t, err)
	assert.False(t, got.IsAccepted)
}

func TestAcceptSolutionConcurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ids []primitive.ObjectID
	for i := 0; i < 5; i++ {
		r, err := f.ledger.AddResponse(ctx, f.issue.ID, f.mentor, "option", true)
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id primitive.ObjectID) {
			defer wg.Done()
			_, err := f.ledger.AcceptSolution(ctx, f.issue.ID, id, f.reporter)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, apperr.ErrAlreadyAccepted)
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestListResponsesOrdering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old, err := f.ledger.AddResponse(ctx, f.issue.ID, primitive.NewObjectID(), "first", false)
	require.NoError(t, err)
	liked, err := f.ledger.AddResponse(ctx, f.issue.ID, primitive.NewObjectID(), "popular", false)
	require.NoError(t, err)
	sol, err := f.ledger.AddResponse(ctx, f.issue.ID, f.mentor, "a fix", true)
	require.NoError(t, err)
	best, err := f.ledger.AddResponse(ctx, f.issue.ID, f.mentor, "the fix", true)
	require.NoError(t, err)

	_, err = f.ledger.LikeResponse(ctx, f.issue.ID, liked.ID)
	require.NoError(t, err)
	_, err = f.ledger.AcceptSolution(ctx, f.issue.ID, best.ID, f.reporter)
	require.NoError(t, err)

	responses, err := f.ledger.ListResponses(ctx, f.issue.ID)
	require.NoError(t, err)
	require.Len(t, responses, 4)

	got := []primitive.ObjectID{responses[0].ID, responses[1].ID, responses[2].ID, responses[3].ID}
	assert.Equal(t, []primitive.ObjectID{best.ID, sol.ID, liked.ID, old.ID}, got)
}

func TestLikeResponse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.ledger.AddResponse(ctx, f.issue.ID, primitive.NewObjectID(), "thanks", false)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = f.ledger.LikeResponse(ctx, f.issue.ID, r.ID)
		require.NoError(t, err)
	}
	got, err := f.store.GetResponse(ctx, f.issue.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.LikesCount)

	_, err = f.ledger.LikeResponse(ctx, f.issue.ID, primitive.NewObjectID())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

// likeDuringRead likes the response right after it has been read, the
// window between AcceptSolution's read and its write.
type likeDuringRead struct {
	*memstore.Store
}

func (s likeDuringRead) GetResponse(ctx context.Context, issueID, responseID primitive.ObjectID) (*models.Response, error) {
	r, err := s.Store.GetResponse(ctx, issueID, responseID)
	if err != nil {
		return nil, err
	}
	if _, err := s.Store.IncrementResponseLikes(ctx, issueID, responseID); err != nil {
		return nil, err
	}
	return r, nil
}

func TestAcceptSolutionKeepsConcurrentLike(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sol, err := f.ledger.AddResponse(ctx, f.issue.ID, f.mentor, "Crew dispatched", true)
	require.NoError(t, err)

	ledger := NewLedger(likeDuringRead{f.store})
	accepted, err := ledger.AcceptSolution(ctx, f.issue.ID, sol.ID, f.reporter)
	require.NoError(t, err)
	assert.True(t, accepted.IsAccepted)
	assert.Equal(t, int64(1), accepted.LikesCount)

	got, err := f.store.GetResponse(ctx, f.issue.ID, sol.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAccepted)
	assert.Equal(t, int64(1), got.LikesCount)
}

// failingCounters refuses every counter adjustment.
type failingCounters struct {
	*memstore.Store
}

func (failingCounters) AdjustCounters(context.Context, primitive.ObjectID, int64, int64) (*models.Issue, error) {
	return nil, errors.New("counter write failed")
}

func TestAddResponseSurvivesCounterFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ledger := NewLedger(failingCounters{f.store})
	r, err := ledger.AddResponse(ctx, f.issue.ID, f.mentor, "On my way", true)
	require.NoError(t, err)
	require.NotNil(t, r)

	stored, err := f.store.GetResponse(ctx, f.issue.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "On my way", stored.Content)

	responses, err := f.ledger.ListResponses(ctx, f.issue.ID)
	require.NoError(t, err)
	assert.Len(t, responses, 1)
}
