// Package memstore is an in-memory store.IssueStore used by tests and by
// the server's memory mode.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"civicsync/apperr"
	"civicsync/models"
	"civicsync/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type upvoteKey struct {
	issue primitive.ObjectID
	actor primitive.ObjectID
}

// Store keeps every record behind a single mutex. Records are cloned on the
// way in and out so callers never alias stored state.
type Store struct {
	mu        sync.RWMutex
	issues    map[primitive.ObjectID]*models.Issue
	upvotes   map[upvoteKey]*models.Upvote
	responses map[primitive.ObjectID][]*models.Response
}

var _ store.IssueStore = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		issues:    make(map[primitive.ObjectID]*models.Issue),
		upvotes:   make(map[upvoteKey]*models.Upvote),
		responses: make(map[primitive.ObjectID][]*models.Response),
	}
}

func issueNotFound(id primitive.ObjectID) error {
	return fmt.Errorf("issue %s: %w", id.Hex(), apperr.ErrNotFound)
}

func responseNotFound(id primitive.ObjectID) error {
	return fmt.Errorf("response %s: %w", id.Hex(), apperr.ErrNotFound)
}

func (s *Store) CreateIssue(_ context.Context, issue *models.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	if _, exists := s.issues[issue.ID]; exists {
		return fmt.Errorf("issue %s: %w", issue.ID.Hex(), store.ErrDuplicate)
	}
	s.issues[issue.ID] = issue.Clone()
	return nil
}

func (s *Store) GetIssue(_ context.Context, id primitive.ObjectID) (*models.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	issue, ok := s.issues[id]
	if !ok {
		return nil, issueNotFound(id)
	}
	return issue.Clone(), nil
}

func (s *Store) SaveIssue(_ context.Context, issue *models.Issue, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.issues[issue.ID]
	if !ok {
		return issueNotFound(issue.ID)
	}
	if current.Version != expectedVersion {
		return fmt.Errorf("issue %s at version %d, expected %d: %w",
			issue.ID.Hex(), current.Version, expectedVersion, store.ErrVersionConflict)
	}

	saved := issue.Clone()
	saved.Version = expectedVersion + 1
	saved.UpvoteCount = current.UpvoteCount
	saved.ResponseCount = current.ResponseCount
	saved.ReporterID = current.ReporterID
	saved.CreatedAt = current.CreatedAt
	s.issues[issue.ID] = saved

	issue.Version = saved.Version
	issue.UpvoteCount = saved.UpvoteCount
	issue.ResponseCount = saved.ResponseCount
	return nil
}

func (s *Store) ListIssues(_ context.Context, filter store.IssueFilter) ([]*models.Issue, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	var matched []*models.Issue
	for _, issue := range s.issues {
		if filter.Category != "" && issue.Category != filter.Category {
			continue
		}
		if filter.Status != "" && issue.Status != filter.Status {
			continue
		}
		if filter.ReporterID != nil && issue.ReporterID != *filter.ReporterID {
			continue
		}
		if filter.HasLocation && issue.Location == nil {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(issue.Title), search) &&
			!strings.Contains(strings.ToLower(issue.Description), search) {
			continue
		}
		matched = append(matched, issue.Clone())
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch filter.Sort {
		case store.SortOldest:
			return a.CreatedAt.Before(b.CreatedAt)
		case store.SortUpvotes:
			if a.UpvoteCount != b.UpvoteCount {
				return a.UpvoteCount > b.UpvoteCount
			}
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	total := int64(len(matched))
	if filter.Skip >= len(matched) {
		return []*models.Issue{}, total, nil
	}
	matched = matched[filter.Skip:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (s *Store) AdjustCounters(_ context.Context, issueID primitive.ObjectID, upvoteDelta, responseDelta int64) (*models.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue, ok := s.issues[issueID]
	if !ok {
		return nil, issueNotFound(issueID)
	}
	issue.UpvoteCount += upvoteDelta
	issue.ResponseCount += responseDelta
	return issue.Clone(), nil
}

func (s *Store) GetUpvote(_ context.Context, issueID, actorID primitive.ObjectID) (*models.Upvote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	upvote, ok := s.upvotes[upvoteKey{issueID, actorID}]
	if !ok {
		return nil, fmt.Errorf("upvote on %s by %s: %w", issueID.Hex(), actorID.Hex(), apperr.ErrNotFound)
	}
	cp := *upvote
	return &cp, nil
}

func (s *Store) InsertUpvote(_ context.Context, upvote *models.Upvote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := upvoteKey{upvote.IssueID, upvote.ActorID}
	if _, exists := s.upvotes[key]; exists {
		return fmt.Errorf("upvote on %s by %s: %w", upvote.IssueID.Hex(), upvote.ActorID.Hex(), store.ErrDuplicate)
	}
	if upvote.ID.IsZero() {
		upvote.ID = primitive.NewObjectID()
	}
	cp := *upvote
	s.upvotes[key] = &cp
	return nil
}

func (s *Store) DeleteUpvote(_ context.Context, issueID, actorID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := upvoteKey{issueID, actorID}
	if _, exists := s.upvotes[key]; !exists {
		return fmt.Errorf("upvote on %s by %s: %w", issueID.Hex(), actorID.Hex(), apperr.ErrNotFound)
	}
	delete(s.upvotes, key)
	return nil
}

// UpvoteCount counts stored upvote records for an issue.
func (s *Store) UpvoteCount(issueID primitive.ObjectID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for key := range s.upvotes {
		if key.issue == issueID {
			n++
		}
	}
	return n
}

func (s *Store) InsertResponse(_ context.Context, response *models.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.issues[response.IssueID]; !ok {
		return issueNotFound(response.IssueID)
	}
	if response.ID.IsZero() {
		response.ID = primitive.NewObjectID()
	}
	cp := *response
	s.responses[response.IssueID] = append(s.responses[response.IssueID], &cp)
	return nil
}

// findResponse must be called with s.mu held.
func (s *Store) findResponse(issueID, responseID primitive.ObjectID) (*models.Response, bool) {
	for _, r := range s.responses[issueID] {
		if r.ID == responseID {
			return r, true
		}
	}
	return nil, false
}

func (s *Store) GetResponse(_ context.Context, issueID, responseID primitive.ObjectID) (*models.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.findResponse(issueID, responseID)
	if !ok {
		return nil, responseNotFound(responseID)
	}
	cp := *r
	return &cp, nil
}

func (s *Store) MarkResponseAccepted(_ context.Context, issueID, responseID primitive.ObjectID) (*models.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.findResponse(issueID, responseID)
	if !ok {
		return nil, responseNotFound(responseID)
	}
	r.IsAccepted = true
	cp := *r
	return &cp, nil
}

func (s *Store) IncrementResponseLikes(_ context.Context, issueID, responseID primitive.ObjectID) (*models.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.findResponse(issueID, responseID)
	if !ok {
		return nil, responseNotFound(responseID)
	}
	r.LikesCount++
	cp := *r
	return &cp, nil
}

func (s *Store) ListResponses(_ context.Context, issueID primitive.ObjectID, order store.ResponseOrder) ([]*models.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Response, 0, len(s.responses[issueID]))
	for _, r := range s.responses[issueID] {
		cp := *r
		out = append(out, &cp)
	}
	store.SortResponses(out, order)
	return out, nil
}
