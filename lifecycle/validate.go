package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	"civicsync/apperr"
	"civicsync/models"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// NewIssue is the reporter-supplied part of an issue.
type NewIssue struct {
	Title       string               `validate:"required,max=200"`
	Description string               `validate:"required,max=1000"`
	Category    models.IssueCategory `validate:"required"`
	Priority    models.IssuePriority
	Location    *models.Location `validate:"omitempty"`
	Images      []string         `validate:"max=10,dive,required"`
}

// normalize trims text fields and fills defaults before validation. The
// location is copied so the caller's value is left as it was.
func (n *NewIssue) normalize() {
	n.Title = strings.TrimSpace(n.Title)
	n.Description = strings.TrimSpace(n.Description)
	if n.Priority == "" {
		n.Priority = models.PriorityMedium
	}
	if n.Location != nil {
		loc := *n.Location
		loc.Address = strings.TrimSpace(loc.Address)
		n.Location = &loc
	}
}

func (n *NewIssue) validate() error {
	n.normalize()

	if err := validate.Struct(n); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("field %s failed %s: %w", fe.Namespace(), fe.Tag(), apperr.ErrInvalidInput)
		}
		return fmt.Errorf("%v: %w", err, apperr.ErrInvalidInput)
	}
	if !n.Category.Valid() {
		return fmt.Errorf("unknown category %q: %w", n.Category, apperr.ErrInvalidInput)
	}
	if !n.Priority.Valid() {
		return fmt.Errorf("unknown priority %q: %w", n.Priority, apperr.ErrInvalidInput)
	}
	return nil
}

// IssuePatch holds reporter edits to an issue's details. Nil fields are left
// unchanged. Status and priority have their own operations.
type IssuePatch struct {
	Title       *string
	Description *string
	Category    *models.IssueCategory
	Location    *models.Location
	Images      []string
}

// IsEmpty reports whether the patch changes nothing.
func (p IssuePatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Category == nil &&
		p.Location == nil && p.Images == nil
}

// applyTo overlays the patch on the issue's current details.
func (p IssuePatch) applyTo(issue *models.Issue) NewIssue {
	n := NewIssue{
		Title:       issue.Title,
		Description: issue.Description,
		Category:    issue.Category,
		Priority:    issue.Priority,
		Location:    issue.Location,
		Images:      issue.Images,
	}
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Description != nil {
		n.Description = *p.Description
	}
	if p.Category != nil {
		n.Category = *p.Category
	}
	if p.Location != nil {
		n.Location = p.Location
	}
	if p.Images != nil {
		n.Images = p.Images
	}
	return n
}
