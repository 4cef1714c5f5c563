package lifecycle

import (
	"context"
	"fmt"
	"time"

	"civicsync/identity"
	"civicsync/mentor"
	"civicsync/models"
	"civicsync/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Engine drives issues through their lifecycle. Every write is a
// compare-and-set on the issue version, retried a bounded number of times.
type Engine struct {
	store    store.IssueStore
	resolver *mentor.Resolver
	now      func() time.Time
	attempts int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithConflictAttempts overrides how often a conflicting write is tried.
func WithConflictAttempts(n int) Option {
	return func(e *Engine) { e.attempts = n }
}

// NewEngine creates an Engine with injected dependencies.
func NewEngine(s store.IssueStore, resolver *mentor.Resolver, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		resolver: resolver,
		now:      func() time.Time { return time.Now().UTC() },
		attempts: store.DefaultConflictAttempts,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Create files a new issue on behalf of reporterID.
func (e *Engine) Create(ctx context.Context, reporterID primitive.ObjectID, input NewIssue) (*models.Issue, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	now := e.now()
	images := input.Images
	if images == nil {
		images = []string{}
	}
	issue := &models.Issue{
		ID:          primitive.NewObjectID(),
		Title:       input.Title,
		Description: input.Description,
		Category:    input.Category,
		Priority:    input.Priority,
		Status:      InitialStatus(),
		Location:    input.Location,
		Images:      images,
		ReporterID:  reporterID,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := e.store.CreateIssue(ctx, issue); err != nil {
		return nil, fmt.Errorf("failed to create issue: %w", err)
	}
	return issue, nil
}

// GetIssue retrieves an issue by ID.
func (e *Engine) GetIssue(ctx context.Context, issueID primitive.ObjectID) (*models.Issue, error) {
	return e.store.GetIssue(ctx, issueID)
}

// GetStatus returns the current status of an issue.
func (e *Engine) GetStatus(ctx context.Context, issueID primitive.ObjectID) (models.IssueStatus, error) {
	issue, err := e.store.GetIssue(ctx, issueID)
	if err != nil {
		return "", err
	}
	return issue.Status, nil
}

// ListIssues returns a page of issues and the total match count.
// Limit is clamped to 1..100 and defaults to 10.
func (e *Engine) ListIssues(ctx context.Context, filter store.IssueFilter) ([]*models.Issue, int64, error) {
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 10
	}
	if filter.Skip < 0 {
		filter.Skip = 0
	}
	return e.store.ListIssues(ctx, filter)
}

// Claim assigns the issue to actorID and moves it to assigned. Concurrent
// claims on one issue produce exactly one winner; the rest see
// ErrAlreadyAssigned once the winner's write lands.
func (e *Engine) Claim(ctx context.Context, issueID, actorID primitive.ObjectID) (*models.Issue, error) {
	var claimed *models.Issue

	err := store.RetryOnConflict(ctx, e.attempts, func() error {
		issue, err := e.store.GetIssue(ctx, issueID)
		if err != nil {
			return err
		}
		if err := e.resolver.CheckClaim(ctx, issue, actorID); err != nil {
			return err
		}

		expected := issue.Version
		mentorID := actorID
		issue.AssignedMentorID = &mentorID
		ApplyStatus(issue, models.StatusAssigned, e.now())

		if err := e.store.SaveIssue(ctx, issue, expected); err != nil {
			return err
		}
		claimed = issue
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// AdvanceStatus moves the issue to target if the transition table and the
// actor's relationship to the issue allow it.
func (e *Engine) AdvanceStatus(ctx context.Context, issueID primitive.ObjectID, actor identity.Actor, target models.IssueStatus) (*models.Issue, error) {
	var advanced *models.Issue

	err := store.RetryOnConflict(ctx, e.attempts, func() error {
		issue, err := e.store.GetIssue(ctx, issueID)
		if err != nil {
			return err
		}

		guard := CheckAdvance(AdvanceContext{
			IssueID:          issue.ID.Hex(),
			From:             issue.Status,
			To:               target,
			IsReporter:       issue.IsReporter(actor.ID),
			IsAssignedMentor: issue.IsAssignedMentor(actor.ID),
			IsAdmin:          actor.IsAdmin,
		})
		if !guard.Allowed {
			return guard.Error()
		}

		expected := issue.Version
		ApplyStatus(issue, target, e.now())
		if err := e.store.SaveIssue(ctx, issue, expected); err != nil {
			return err
		}
		advanced = issue
		return nil
	})
	if err != nil {
		return nil, err
	}
	return advanced, nil
}

// UpdatePriority changes the priority of an issue. Only the reporter or an
// admin may do so.
func (e *Engine) UpdatePriority(ctx context.Context, issueID primitive.ObjectID, actor identity.Actor, priority models.IssuePriority) (*models.Issue, error) {
	var updated *models.Issue

	err := store.RetryOnConflict(ctx, e.attempts, func() error {
		issue, err := e.store.GetIssue(ctx, issueID)
		if err != nil {
			return err
		}

		guard := CheckPriorityChange(PriorityContext{
			IssueID:    issue.ID.Hex(),
			Status:     issue.Status,
			Priority:   priority,
			IsReporter: issue.IsReporter(actor.ID),
			IsAdmin:    actor.IsAdmin,
		})
		if !guard.Allowed {
			return guard.Error()
		}
		if issue.Priority == priority {
			updated = issue
			return nil
		}

		expected := issue.Version
		issue.Priority = priority
		issue.UpdatedAt = e.now()
		if err := e.store.SaveIssue(ctx, issue, expected); err != nil {
			return err
		}
		updated = issue
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateDetails edits the reported details of an issue: title, description,
// category, location and images. Only the reporter or an admin may do so,
// and closed issues are frozen. The merged result is validated like a new
// report.
func (e *Engine) UpdateDetails(ctx context.Context, issueID primitive.ObjectID, actor identity.Actor, patch IssuePatch) (*models.Issue, error) {
	var updated *models.Issue

	err := store.RetryOnConflict(ctx, e.attempts, func() error {
		issue, err := e.store.GetIssue(ctx, issueID)
		if err != nil {
			return err
		}

		guard := CheckDetailsChange(DetailsContext{
			IssueID:    issue.ID.Hex(),
			Status:     issue.Status,
			IsReporter: issue.IsReporter(actor.ID),
			IsAdmin:    actor.IsAdmin,
		})
		if !guard.Allowed {
			return guard.Error()
		}
		if patch.IsEmpty() {
			updated = issue
			return nil
		}

		details := patch.applyTo(issue)
		if err := details.validate(); err != nil {
			return err
		}

		expected := issue.Version
		issue.Title = details.Title
		issue.Description = details.Description
		issue.Category = details.Category
		issue.Location = details.Location
		issue.Images = details.Images
		if issue.Images == nil {
			issue.Images = []string{}
		}
		issue.UpdatedAt = e.now()
		if err := e.store.SaveIssue(ctx, issue, expected); err != nil {
			return err
		}
		updated = issue
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
