package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Mentor is an entry in the mentor registry. Only verified, available
// mentors may claim issues or post solution responses.
type Mentor struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID `bson:"userId" json:"userId"`
	Expertise   []string           `bson:"expertise,omitempty" json:"expertise,omitempty"`
	IsVerified  bool               `bson:"isVerified" json:"isVerified"`
	IsAvailable bool               `bson:"isAvailable" json:"isAvailable"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}

// CanMentor reports whether the registry entry grants mentor capability.
func (m *Mentor) CanMentor() bool {
	return m.IsVerified && m.IsAvailable
}
