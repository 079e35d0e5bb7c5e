package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UnassignedName is the denormalized assignee name stored on a task that has
// no assigned user.
const UnassignedName = "unassigned"

type Task struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name             string             `bson:"name" json:"name"`
	Description      string             `bson:"description" json:"description"`
	Deadline         time.Time          `bson:"deadline" json:"deadline"`
	Completed        bool               `bson:"completed" json:"completed"`
	AssignedUser     string             `bson:"assignedUser" json:"assignedUser"`
	AssignedUserName string             `bson:"assignedUserName" json:"assignedUserName"`
	DateCreated      time.Time          `bson:"dateCreated" json:"dateCreated"`
}
