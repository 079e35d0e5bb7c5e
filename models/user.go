package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	PendingTasks []string           `bson:"pendingTasks" json:"pendingTasks"`
	DateCreated  time.Time          `bson:"dateCreated" json:"dateCreated"`
}
