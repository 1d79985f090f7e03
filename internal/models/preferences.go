package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Preferences is the per-user reader settings document, one per user. The
// mobile clients persist these so a reader reopens the way it was left.
type Preferences struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	UserID        string             `bson:"user_id" json:"user_id"`
	ReaderTheme   string             `bson:"reader_theme,omitempty" json:"reader_theme,omitempty"`
	FontScale     float64            `bson:"font_scale,omitempty" json:"font_scale,omitempty"`
	PlaybackSpeed float64            `bson:"playback_speed,omitempty" json:"playback_speed,omitempty"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
}

const (
	PreferencesEntity = "preferences"
)

var ValidReaderThemes = map[string]bool{
	"light": true,
	"dark":  true,
	"sepia": true,
}

func IsValidReaderTheme(theme string) bool {
	return ValidReaderThemes[theme]
}

// DefaultPreferences are returned for users who never saved any.
func DefaultPreferences(userID string) Preferences {
	return Preferences{
		UserID:        userID,
		ReaderTheme:   "light",
		FontScale:     1.0,
		PlaybackSpeed: 1.0,
	}
}
