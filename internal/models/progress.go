package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Progress records where a user left off in one book: the last page for the
// PDF reader, the playback position for the audiobook player. One document
// per (user, book), upserted on every save.
type Progress struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	UserID          string             `bson:"user_id" json:"user_id"`
	BookID          string             `bson:"book_id" json:"book_id"`
	Page            int                `bson:"page,omitempty" json:"page,omitempty"`
	PositionSeconds float64            `bson:"position_seconds,omitempty" json:"position_seconds,omitempty"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updated_at"`
}

const (
	ProgressEntity = "progress"
)
