package lifecycle

import (
	"errors"
	"testing"
	"time"

	"civicsync/apperr"
	"civicsync/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAdvance(t *testing.T) {
	tests := []struct {
		name        string
		ctx         AdvanceContext
		wantAllowed bool
		wantKind    error
	}{
		{
			name:        "assigned mentor starts work",
			ctx:         AdvanceContext{From: models.StatusAssigned, To: models.StatusInProgress, IsAssignedMentor: true},
			wantAllowed: true,
		},
		{
			name:        "reporter resolves open issue",
			ctx:         AdvanceContext{From: models.StatusOpen, To: models.StatusResolved, IsReporter: true},
			wantAllowed: true,
		},
		{
			name:        "assigned mentor resolves",
			ctx:         AdvanceContext{From: models.StatusInProgress, To: models.StatusResolved, IsAssignedMentor: true},
			wantAllowed: true,
		},
		{
			name:     "stranger cannot resolve",
			ctx:      AdvanceContext{From: models.StatusInProgress, To: models.StatusResolved},
			wantKind: apperr.ErrForbidden,
		},
		{
			name:     "assigned mentor cannot close",
			ctx:      AdvanceContext{From: models.StatusResolved, To: models.StatusClosed, IsAssignedMentor: true},
			wantKind: apperr.ErrForbidden,
		},
		{
			name:        "reporter closes resolved issue",
			ctx:         AdvanceContext{From: models.StatusResolved, To: models.StatusClosed, IsReporter: true},
			wantAllowed: true,
		},
		{
			name:        "admin closes open issue",
			ctx:         AdvanceContext{From: models.StatusOpen, To: models.StatusClosed, IsAdmin: true},
			wantAllowed: true,
		},
		{
			name:     "closed is terminal even for the reporter",
			ctx:      AdvanceContext{From: models.StatusClosed, To: models.StatusOpen, IsReporter: true},
			wantKind: apperr.ErrInvalidTransition,
		},
		{
			name:     "closed is terminal even for an admin",
			ctx:      AdvanceContext{From: models.StatusClosed, To: models.StatusResolved, IsAdmin: true},
			wantKind: apperr.ErrInvalidTransition,
		},
		{
			name:     "open to assigned only through claim",
			ctx:      AdvanceContext{From: models.StatusOpen, To: models.StatusAssigned, IsReporter: true},
			wantKind: apperr.ErrInvalidTransition,
		},
		{
			name:     "same status is not a move",
			ctx:      AdvanceContext{From: models.StatusInProgress, To: models.StatusInProgress, IsReporter: true},
			wantKind: apperr.ErrInvalidTransition,
		},
		{
			name:     "unknown target",
			ctx:      AdvanceContext{From: models.StatusOpen, To: "archived", IsReporter: true},
			wantKind: apperr.ErrInvalidTransition,
		},
		{
			name:     "transition checked before permission",
			ctx:      AdvanceContext{From: models.StatusClosed, To: models.StatusResolved},
			wantKind: apperr.ErrInvalidTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.ctx.IssueID = "ISSUE-1"
			result := CheckAdvance(tt.ctx)

			assert.Equal(t, tt.wantAllowed, result.Allowed)
			if tt.wantAllowed {
				assert.NoError(t, result.Error())
				return
			}
			assert.NotEmpty(t, result.Reason)
			assert.True(t, errors.Is(result.Error(), tt.wantKind), "got %v, want %v", result.Error(), tt.wantKind)
		})
	}
}

func TestCheckPriorityChange(t *testing.T) {
	tests := []struct {
		name     string
		ctx      PriorityContext
		wantKind error
	}{
		{
			name: "reporter raises priority",
			ctx:  PriorityContext{Status: models.StatusOpen, Priority: models.PriorityUrgent, IsReporter: true},
		},
		{
			name: "admin changes priority",
			ctx:  PriorityContext{Status: models.StatusInProgress, Priority: models.PriorityLow, IsAdmin: true},
		},
		{
			name:     "unknown priority",
			ctx:      PriorityContext{Status: models.StatusOpen, Priority: "critical", IsReporter: true},
			wantKind: apperr.ErrInvalidInput,
		},
		{
			name:     "stranger",
			ctx:      PriorityContext{Status: models.StatusOpen, Priority: models.PriorityHigh},
			wantKind: apperr.ErrForbidden,
		},
		{
			name:     "closed issue is frozen",
			ctx:      PriorityContext{Status: models.StatusClosed, Priority: models.PriorityHigh, IsReporter: true},
			wantKind: apperr.ErrInvalidTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckPriorityChange(tt.ctx)
			if tt.wantKind == nil {
				assert.True(t, result.Allowed)
				return
			}
			assert.False(t, result.Allowed)
			assert.ErrorIs(t, result.Error(), tt.wantKind)
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(models.StatusClosed))
	for _, s := range []models.IssueStatus{
		models.StatusOpen, models.StatusAssigned, models.StatusInProgress, models.StatusResolved,
	} {
		assert.False(t, IsTerminal(s), s)
	}
}

func TestApplyStatusKeepsResolvedAtInStep(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	issue := &models.Issue{Status: models.StatusInProgress}

	ApplyStatus(issue, models.StatusResolved, now)
	require.NotNil(t, issue.ResolvedAt)
	assert.Equal(t, now, *issue.ResolvedAt)
	assert.Equal(t, now, issue.UpdatedAt)

	later := now.Add(time.Hour)
	ApplyStatus(issue, models.StatusClosed, later)
	assert.Nil(t, issue.ResolvedAt)
	assert.Equal(t, models.StatusClosed, issue.Status)
	assert.Equal(t, later, issue.UpdatedAt)
}

func TestInitialStatus(t *testing.T) {
	assert.Equal(t, models.StatusOpen, InitialStatus())
}

func TestCheckDetailsChange(t *testing.T) {
	tests := []struct {
		name     string
		ctx      DetailsContext
		wantKind error
	}{
		{name: "reporter", ctx: DetailsContext{Status: models.StatusAssigned, IsReporter: true}},
		{name: "admin", ctx: DetailsContext{Status: models.StatusResolved, IsAdmin: true}},
		{name: "stranger", ctx: DetailsContext{Status: models.StatusOpen}, wantKind: apperr.ErrForbidden},
		{name: "closed issue is frozen", ctx: DetailsContext{Status: models.StatusClosed, IsReporter: true}, wantKind: apperr.ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckDetailsChange(tt.ctx)
			if tt.wantKind == nil {
				assert.True(t, result.Allowed)
				return
			}
			assert.False(t, result.Allowed)
			assert.ErrorIs(t, result.Error(), tt.wantKind)
		})
	}
}

func TestNewIssueValidateLeavesCallerLocation(t *testing.T) {
	loc := &models.Location{Latitude: 10, Longitude: 20, Address: "  Main St  "}
	n := NewIssue{Title: "t", Description: "d", Category: models.Safety, Location: loc}

	require.NoError(t, n.validate())
	assert.Equal(t, "Main St", n.Location.Address)
	assert.Equal(t, "  Main St  ", loc.Address)
}
