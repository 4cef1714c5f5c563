package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IssueCategory enum
type IssueCategory string

const (
	Infrastructure IssueCategory = "infrastructure"
	Sanitation     IssueCategory = "sanitation"
	Utilities      IssueCategory = "utilities"
	Safety         IssueCategory = "safety"
	Environment    IssueCategory = "environment"
	Transportation IssueCategory = "transportation"
	Noise          IssueCategory = "noise"
	Animals        IssueCategory = "animals"
	Other          IssueCategory = "other"
)

// Categories lists every accepted category in display order.
var Categories = []IssueCategory{
	Infrastructure, Sanitation, Utilities, Safety, Environment,
	Transportation, Noise, Animals, Other,
}

// Valid reports whether c is one of the known categories.
func (c IssueCategory) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// IssuePriority enum
type IssuePriority string

const (
	PriorityLow    IssuePriority = "low"
	PriorityMedium IssuePriority = "medium"
	PriorityHigh   IssuePriority = "high"
	PriorityUrgent IssuePriority = "urgent"
)

// Valid reports whether p is one of the known priorities.
func (p IssuePriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// IssueStatus enum
type IssueStatus string

const (
	StatusOpen       IssueStatus = "open"
	StatusAssigned   IssueStatus = "assigned"
	StatusInProgress IssueStatus = "in_progress"
	StatusResolved   IssueStatus = "resolved"
	StatusClosed     IssueStatus = "closed"
)

// Valid reports whether s is one of the known statuses.
func (s IssueStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusAssigned, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// Location pins an issue on the map. Address is free text.
type Location struct {
	Latitude  float64 `bson:"latitude" json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `bson:"longitude" json:"longitude" validate:"gte=-180,lte=180"`
	Address   string  `bson:"address,omitempty" json:"address,omitempty" validate:"max=200"`
}

// Issue represents a civic issue reported by a user.
//
// UpvoteCount and ResponseCount are maintained by the engagement ledger
// through atomic increments and are never written by a versioned save.
type Issue struct {
	ID                 primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Title              string              `bson:"title" json:"title"`
	Description        string              `bson:"description" json:"description"`
	Category           IssueCategory       `bson:"category" json:"category"`
	Priority           IssuePriority       `bson:"priority" json:"priority"`
	Status             IssueStatus         `bson:"status" json:"status"`
	Location           *Location           `bson:"location,omitempty" json:"location,omitempty"`
	Images             []string            `bson:"images" json:"images"`
	UpvoteCount        int64               `bson:"upvoteCount" json:"upvoteCount"`
	ResponseCount      int64               `bson:"responseCount" json:"responseCount"`
	ReporterID         primitive.ObjectID  `bson:"reporterId" json:"reporterId"`
	AssignedMentorID   *primitive.ObjectID `bson:"assignedMentorId,omitempty" json:"assignedMentorId,omitempty"`
	AcceptedResponseID *primitive.ObjectID `bson:"acceptedResponseId,omitempty" json:"acceptedResponseId,omitempty"`
	Version            int64               `bson:"version" json:"version"`
	CreatedAt          time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time           `bson:"updatedAt" json:"updatedAt"`
	ResolvedAt         *time.Time          `bson:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
}

// IsReporter reports whether actorID filed the issue.
func (i *Issue) IsReporter(actorID primitive.ObjectID) bool {
	return i.ReporterID == actorID
}

// IsAssignedMentor reports whether actorID is the mentor who claimed the issue.
func (i *Issue) IsAssignedMentor(actorID primitive.ObjectID) bool {
	return i.AssignedMentorID != nil && *i.AssignedMentorID == actorID
}

// Clone returns a deep copy so callers can mutate without aliasing store state.
func (i *Issue) Clone() *Issue {
	c := *i
	if i.Location != nil {
		loc := *i.Location
		c.Location = &loc
	}
	if i.Images != nil {
		c.Images = append([]string(nil), i.Images...)
	}
	if i.AssignedMentorID != nil {
		id := *i.AssignedMentorID
		c.AssignedMentorID = &id
	}
	if i.AcceptedResponseID != nil {
		id := *i.AcceptedResponseID
		c.AcceptedResponseID = &id
	}
	if i.ResolvedAt != nil {
		t := *i.ResolvedAt
		c.ResolvedAt = &t
	}
	return &c
}
