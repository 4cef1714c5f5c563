// Package engagement keeps the per-issue upvote and response ledger.
//
// Counters on the issue are only ever moved by the operations here, and
// only after the underlying upvote or response record change succeeded, so
// they track record existence rather than call count.
package engagement

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"civicsync/apperr"
	"civicsync/models"
	"civicsync/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// errToggleRaced marks a toggle that lost a race with the same actor's
// other toggle; it is retried like any optimistic conflict.
var errToggleRaced = fmt.Errorf("upvote changed concurrently: %w", store.ErrVersionConflict)

// UpvoteResult is the state after a toggle.
type UpvoteResult struct {
	Upvoted  bool  `json:"upvoted"`
	NewCount int64 `json:"newCount"`
}

// Ledger records upvotes and responses.
type Ledger struct {
	store    store.IssueStore
	now      func() time.Time
	attempts int
	logger   *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithConflictAttempts overrides how often a conflicting write is tried.
func WithConflictAttempts(n int) Option {
	return func(l *Ledger) { l.attempts = n }
}

// WithLogger sets where non-fatal counter failures are reported.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// NewLedger creates a Ledger over s.
func NewLedger(s store.IssueStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:    s,
		now:      func() time.Time { return time.Now().UTC() },
		attempts: store.DefaultConflictAttempts,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ToggleUpvote adds actorID's upvote if absent, removes it if present.
func (l *Ledger) ToggleUpvote(ctx context.Context, issueID, actorID primitive.ObjectID) (UpvoteResult, error) {
	if _, err := l.store.GetIssue(ctx, issueID); err != nil {
		return UpvoteResult{}, err
	}

	var result UpvoteResult
	err := store.RetryOnConflict(ctx, l.attempts, func() error {
		_, err := l.store.GetUpvote(ctx, issueID, actorID)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			return l.addUpvote(ctx, issueID, actorID, &result)
		case err != nil:
			return err
		default:
			return l.removeUpvote(ctx, issueID, actorID, &result)
		}
	})
	return result, err
}

func (l *Ledger) addUpvote(ctx context.Context, issueID, actorID primitive.ObjectID, result *UpvoteResult) error {
	err := l.store.InsertUpvote(ctx, &models.Upvote{
		IssueID:   issueID,
		ActorID:   actorID,
		CreatedAt: l.now(),
	})
	if errors.Is(err, store.ErrDuplicate) {
		return errToggleRaced
	}
	if err != nil {
		return err
	}

	issue, err := l.store.AdjustCounters(ctx, issueID, 1, 0)
	if err != nil {
		return fmt.Errorf("failed to count upvote: %w", err)
	}
	*result = UpvoteResult{Upvoted: true, NewCount: issue.UpvoteCount}
	return nil
}

func (l *Ledger) removeUpvote(ctx context.Context, issueID, actorID primitive.ObjectID, result *UpvoteResult) error {
	err := l.store.DeleteUpvote(ctx, issueID, actorID)
	if errors.Is(err, apperr.ErrNotFound) {
		return errToggleRaced
	}
	if err != nil {
		return err
	}

	issue, err := l.store.AdjustCounters(ctx, issueID, -1, 0)
	if err != nil {
		return fmt.Errorf("failed to count upvote removal: %w", err)
	}
	*result = UpvoteResult{Upvoted: false, NewCount: issue.UpvoteCount}
	return nil
}

// HasUpvoted reports whether actorID currently upvotes the issue.
func (l *Ledger) HasUpvoted(ctx context.Context, issueID, actorID primitive.ObjectID) (bool, error) {
	_, err := l.store.GetUpvote(ctx, issueID, actorID)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AddResponse posts a response. responderIsMentor is evaluated by the caller
// at post time and frozen into IsSolution.
//
// Once the response is stored it is returned even if bumping the issue's
// response count fails; that failure is logged, so a client retry never
// posts the same response twice.
func (l *Ledger) AddResponse(ctx context.Context, issueID, responderID primitive.ObjectID, content string, responderIsMentor bool) (*models.Response, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("response content is blank: %w", apperr.ErrEmptyContent)
	}
	if _, err := l.store.GetIssue(ctx, issueID); err != nil {
		return nil, err
	}

	response := &models.Response{
		ID:          primitive.NewObjectID(),
		IssueID:     issueID,
		ResponderID: responderID,
		Content:     content,
		IsSolution:  responderIsMentor,
		CreatedAt:   l.now(),
	}
	if err := l.store.InsertResponse(ctx, response); err != nil {
		return nil, fmt.Errorf("failed to add response: %w", err)
	}
	if _, err := l.store.AdjustCounters(ctx, issueID, 0, 1); err != nil {
		l.logger.Error("failed to count response",
			"issue", issueID.Hex(), "response", response.ID.Hex(), "error", err)
	}
	return response, nil
}

// AcceptSolution marks a solution response as the accepted one. Only the
// issue's reporter may accept, and only once per issue.
//
// The issue records the accepted response id under its version lock, which
// is what serialises competing acceptances; the response flag follows.
func (l *Ledger) AcceptSolution(ctx context.Context, issueID, responseID, actorID primitive.ObjectID) (*models.Response, error) {
	var accepted *models.Response

	err := store.RetryOnConflict(ctx, l.attempts, func() error {
		issue, err := l.store.GetIssue(ctx, issueID)
		if err != nil {
			return err
		}
		if !issue.IsReporter(actorID) {
			return fmt.Errorf("only the reporter can accept a solution on issue %s: %w", issueID.Hex(), apperr.ErrForbidden)
		}

		response, err := l.store.GetResponse(ctx, issueID, responseID)
		if err != nil {
			return err
		}
		if !response.IsSolution {
			return fmt.Errorf("response %s: %w", responseID.Hex(), apperr.ErrNotASolutionResponse)
		}

		if issue.AcceptedResponseID != nil {
			if *issue.AcceptedResponseID == responseID && !response.IsAccepted {
				// A previous acceptance recorded the id but never flagged the response.
				return l.markAccepted(ctx, response, &accepted)
			}
			return fmt.Errorf("issue %s already accepted response %s: %w",
				issueID.Hex(), issue.AcceptedResponseID.Hex(), apperr.ErrAlreadyAccepted)
		}
		if response.IsAccepted {
			return fmt.Errorf("response %s: %w", responseID.Hex(), apperr.ErrAlreadyAccepted)
		}

		expected := issue.Version
		id := responseID
		issue.AcceptedResponseID = &id
		issue.UpdatedAt = l.now()
		if err := l.store.SaveIssue(ctx, issue, expected); err != nil {
			return err
		}
		return l.markAccepted(ctx, response, &accepted)
	})
	if err != nil {
		return nil, err
	}
	return accepted, nil
}

func (l *Ledger) markAccepted(ctx context.Context, response *models.Response, out **models.Response) error {
	accepted, err := l.store.MarkResponseAccepted(ctx, response.IssueID, response.ID)
	if err != nil {
		return fmt.Errorf("failed to accept response: %w", err)
	}
	*out = accepted
	return nil
}

// ListResponses lists an issue's responses, accepted first, then
// solutions, then most liked, then oldest.
func (l *Ledger) ListResponses(ctx context.Context, issueID primitive.ObjectID) ([]*models.Response, error) {
	if _, err := l.store.GetIssue(ctx, issueID); err != nil {
		return nil, err
	}
	return l.store.ListResponses(ctx, issueID, store.OrderRanked)
}

// LikeResponse bumps a response's like counter.
func (l *Ledger) LikeResponse(ctx context.Context, issueID, responseID primitive.ObjectID) (*models.Response, error) {
	return l.store.IncrementResponseLikes(ctx, issueID, responseID)
}
