// Package lifecycle owns the issue state machine.
//
// transitions.go holds the pure rules: which status may follow which, who
// may drive each move, and what a move does to the record. engine.go applies
// them against the store.
package lifecycle

import (
	"fmt"
	"time"

	"civicsync/apperr"
	"civicsync/models"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
	Kind    error // apperr kind when not allowed
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s: %w", r.Reason, r.Kind)
}

func allow() GuardResult { return GuardResult{Allowed: true} }

func deny(kind error, format string, args ...any) GuardResult {
	return GuardResult{Allowed: false, Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// advanceTargets lists the statuses reachable through AdvanceStatus.
// open→assigned is reachable only by claiming, and reopening a resolved
// issue is an administrative action outside this table.
var advanceTargets = map[models.IssueStatus][]models.IssueStatus{
	models.StatusOpen:       {models.StatusResolved, models.StatusClosed},
	models.StatusAssigned:   {models.StatusInProgress, models.StatusResolved, models.StatusClosed},
	models.StatusInProgress: {models.StatusResolved, models.StatusClosed},
	models.StatusResolved:   {models.StatusClosed},
	models.StatusClosed:     nil,
}

// IsTerminal reports whether no transition leaves status.
func IsTerminal(status models.IssueStatus) bool {
	return len(advanceTargets[status]) == 0
}

// CanAdvance reports whether to is reachable from from via AdvanceStatus.
func CanAdvance(from, to models.IssueStatus) bool {
	for _, target := range advanceTargets[from] {
		if target == to {
			return true
		}
	}
	return false
}

// AdvanceContext provides context for status advance guards.
type AdvanceContext struct {
	IssueID          string
	From             models.IssueStatus
	To               models.IssueStatus
	IsReporter       bool
	IsAssignedMentor bool
	IsAdmin          bool
}

// CheckAdvance evaluates whether a status advance may happen.
// Rules:
// - To must be reachable from From (checked first, so closed stays terminal for everyone)
// - closing requires the reporter or an admin
// - any other move requires the reporter, the assigned mentor, or an admin
func CheckAdvance(ctx AdvanceContext) GuardResult {
	if !CanAdvance(ctx.From, ctx.To) {
		return deny(apperr.ErrInvalidTransition,
			"issue %s cannot move from %s to %s", ctx.IssueID, ctx.From, ctx.To)
	}

	if ctx.To == models.StatusClosed {
		if ctx.IsReporter || ctx.IsAdmin {
			return allow()
		}
		return deny(apperr.ErrForbidden,
			"only the reporter can close issue %s", ctx.IssueID)
	}

	if ctx.IsReporter || ctx.IsAssignedMentor || ctx.IsAdmin {
		return allow()
	}
	return deny(apperr.ErrForbidden,
		"only the reporter or assigned mentor can move issue %s to %s", ctx.IssueID, ctx.To)
}

// PriorityContext provides context for priority change guards.
type PriorityContext struct {
	IssueID    string
	Status     models.IssueStatus
	Priority   models.IssuePriority
	IsReporter bool
	IsAdmin    bool
}

// CheckPriorityChange evaluates whether the priority may be changed.
// Rules:
// - Priority must be a known value
// - Only the reporter or an admin may change it
// - Closed issues are frozen
func CheckPriorityChange(ctx PriorityContext) GuardResult {
	if !ctx.Priority.Valid() {
		return deny(apperr.ErrInvalidInput, "unknown priority %q", ctx.Priority)
	}
	if !ctx.IsReporter && !ctx.IsAdmin {
		return deny(apperr.ErrForbidden,
			"only the reporter can change the priority of issue %s", ctx.IssueID)
	}
	if IsTerminal(ctx.Status) {
		return deny(apperr.ErrInvalidTransition,
			"issue %s is %s", ctx.IssueID, ctx.Status)
	}
	return allow()
}

// DetailsContext provides context for detail edit guards.
type DetailsContext struct {
	IssueID    string
	Status     models.IssueStatus
	IsReporter bool
	IsAdmin    bool
}

// CheckDetailsChange evaluates whether the reported details may be edited.
// Rules:
// - Only the reporter or an admin may edit
// - Closed issues are frozen
func CheckDetailsChange(ctx DetailsContext) GuardResult {
	if !ctx.IsReporter && !ctx.IsAdmin {
		return deny(apperr.ErrForbidden,
			"only the reporter can edit issue %s", ctx.IssueID)
	}
	if IsTerminal(ctx.Status) {
		return deny(apperr.ErrInvalidTransition,
			"issue %s is %s", ctx.IssueID, ctx.Status)
	}
	return allow()
}

// ApplyStatus moves issue to status and keeps ResolvedAt in step:
// it is set when status becomes resolved and cleared on any other status.
// The caller passes the current time to enable testing.
func ApplyStatus(issue *models.Issue, status models.IssueStatus, now time.Time) {
	issue.Status = status
	issue.UpdatedAt = now
	if status == models.StatusResolved {
		issue.ResolvedAt = &now
	} else {
		issue.ResolvedAt = nil
	}
}

// InitialStatus returns the status of a newly reported issue.
func InitialStatus() models.IssueStatus {
	return models.StatusOpen
}
