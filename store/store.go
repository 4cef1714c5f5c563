// Package store defines the persistence port used by the issue core.
//
// Implementations live in the memstore and mongostore sub-packages. Missing
// records are reported with apperr.ErrNotFound.
package store

import (
	"context"
	"errors"
	"sort"

	"civicsync/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrVersionConflict is returned by SaveIssue when the stored version no
// longer matches the expected version.
var ErrVersionConflict = errors.New("version conflict")

// ErrDuplicate is returned when inserting a record that violates a unique key.
var ErrDuplicate = errors.New("duplicate record")

// IssueSort selects the ordering of ListIssues.
type IssueSort string

const (
	SortNewest  IssueSort = "newest"
	SortOldest  IssueSort = "oldest"
	SortUpvotes IssueSort = "upvotes"
)

// IssueFilter narrows ListIssues. Zero values mean "any".
type IssueFilter struct {
	Category    models.IssueCategory
	Status      models.IssueStatus
	ReporterID  *primitive.ObjectID
	Search      string
	HasLocation bool
	Sort        IssueSort
	Skip        int
	Limit       int
}

// ResponseOrder selects the ordering of ListResponses.
type ResponseOrder int

const (
	// OrderRanked lists accepted first, then solutions, then by likes
	// descending, then oldest first.
	OrderRanked ResponseOrder = iota
	// OrderChronological lists oldest first.
	OrderChronological
)

// IssueStore is the persistence port for issues, upvotes and responses.
type IssueStore interface {
	// CreateIssue inserts a new issue. The caller assigns ID and Version.
	CreateIssue(ctx context.Context, issue *models.Issue) error

	// GetIssue retrieves an issue by ID.
	GetIssue(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)

	// SaveIssue writes the issue if the stored version equals expectedVersion.
	// On success issue.Version is bumped and issue's counters are refreshed
	// from the stored record. Counter fields are never written; use
	// AdjustCounters for those.
	SaveIssue(ctx context.Context, issue *models.Issue, expectedVersion int64) error

	// ListIssues returns one page of matching issues and the total match count.
	ListIssues(ctx context.Context, filter IssueFilter) ([]*models.Issue, int64, error)

	// AdjustCounters atomically adds the deltas to the cached counters and
	// returns the updated issue.
	AdjustCounters(ctx context.Context, issueID primitive.ObjectID, upvoteDelta, responseDelta int64) (*models.Issue, error)

	// GetUpvote retrieves the upvote for the (issue, actor) pair.
	GetUpvote(ctx context.Context, issueID, actorID primitive.ObjectID) (*models.Upvote, error)

	// InsertUpvote inserts an upvote, returning ErrDuplicate if the pair exists.
	InsertUpvote(ctx context.Context, upvote *models.Upvote) error

	// DeleteUpvote removes the upvote for the pair, returning
	// apperr.ErrNotFound if none existed.
	DeleteUpvote(ctx context.Context, issueID, actorID primitive.ObjectID) error

	// InsertResponse appends a response.
	InsertResponse(ctx context.Context, response *models.Response) error

	// GetResponse retrieves a response that belongs to the given issue.
	GetResponse(ctx context.Context, issueID, responseID primitive.ObjectID) (*models.Response, error)

	// MarkResponseAccepted sets is_accepted on one response and returns it.
	// Only that field is written, so concurrent like increments survive.
	MarkResponseAccepted(ctx context.Context, issueID, responseID primitive.ObjectID) (*models.Response, error)

	// IncrementResponseLikes atomically bumps likes_count.
	IncrementResponseLikes(ctx context.Context, issueID, responseID primitive.ObjectID) (*models.Response, error)

	// ListResponses lists all responses for an issue in the given order.
	ListResponses(ctx context.Context, issueID primitive.ObjectID, order ResponseOrder) ([]*models.Response, error)
}

// SortResponses orders responses in place.
func SortResponses(responses []*models.Response, order ResponseOrder) {
	sort.SliceStable(responses, func(i, j int) bool {
		a, b := responses[i], responses[j]
		if order == OrderRanked {
			if a.IsAccepted != b.IsAccepted {
				return a.IsAccepted
			}
			if a.IsSolution != b.IsSolution {
				return a.IsSolution
			}
			if a.LikesCount != b.LikesCount {
				return a.LikesCount > b.LikesCount
			}
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}
