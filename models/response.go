package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Response is a comment posted on an issue.
//
// IsSolution is fixed when the response is posted: it records whether the
// responder held mentor capability at that moment. IsAccepted flips to true
// at most once and only on a solution response.
type Response struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	IssueID     primitive.ObjectID `bson:"issueId" json:"issueId"`
	ResponderID primitive.ObjectID `bson:"responderId" json:"responderId"`
	Content     string             `bson:"content" json:"content"`
	IsSolution  bool               `bson:"isSolution" json:"isSolution"`
	IsAccepted  bool               `bson:"isAccepted" json:"isAccepted"`
	LikesCount  int64              `bson:"likesCount" json:"likesCount"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}
