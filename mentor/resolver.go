package mentor

import (
	"context"
	"errors"
	"fmt"

	"civicsync/apperr"
	"civicsync/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Resolver gates claims and solution marking on mentor capability.
type Resolver struct {
	provider Provider
}

// NewResolver creates a Resolver backed by provider.
func NewResolver(provider Provider) *Resolver {
	return &Resolver{provider: provider}
}

// IsMentor reports whether actorID holds mentor capability right now.
func (r *Resolver) IsMentor(ctx context.Context, actorID primitive.ObjectID) (bool, error) {
	ok, err := r.provider.IsMentor(ctx, actorID)
	if err != nil {
		return false, fmt.Errorf("failed to resolve mentor capability for %s: %w", actorID.Hex(), err)
	}
	return ok, nil
}

// CheckClaim returns nil if actorID may claim issue, otherwise the reason.
// Rules, in order:
// - issue must not already have a mentor (regardless of who asks)
// - issue must be open
// - actor must hold mentor capability
func (r *Resolver) CheckClaim(ctx context.Context, issue *models.Issue, actorID primitive.ObjectID) error {
	if issue.AssignedMentorID != nil {
		return fmt.Errorf("issue %s is assigned to %s: %w",
			issue.ID.Hex(), issue.AssignedMentorID.Hex(), apperr.ErrAlreadyAssigned)
	}
	if issue.Status != models.StatusOpen {
		return fmt.Errorf("cannot claim issue %s in status %s: %w",
			issue.ID.Hex(), issue.Status, apperr.ErrInvalidTransition)
	}

	ok, err := r.IsMentor(ctx, actorID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("actor %s is not a mentor: %w", actorID.Hex(), apperr.ErrNotEligible)
	}
	return nil
}

// CanClaim reports whether actorID is a mentor and issue is open and unassigned.
func (r *Resolver) CanClaim(ctx context.Context, issue *models.Issue, actorID primitive.ObjectID) (bool, error) {
	err := r.CheckClaim(ctx, issue, actorID)
	if err == nil {
		return true, nil
	}
	if isClaimRefusal(err) {
		return false, nil
	}
	return false, err
}

func isClaimRefusal(err error) bool {
	return errors.Is(err, apperr.ErrAlreadyAssigned) ||
		errors.Is(err, apperr.ErrInvalidTransition) ||
		errors.Is(err, apperr.ErrNotEligible)
}
