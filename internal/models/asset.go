package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AssetKind string

const (
	AssetCover AssetKind = "COVER"
	AssetPDF   AssetKind = "PDF"
	AssetAudio AssetKind = "AUDIO"

	AssetEntity = "asset"
)

// Asset is the metadata record for one stored media file. The bytes live in
// the media store under Key; only this document is in the database.
type Asset struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Key         string             `bson:"key" json:"key"`
	Kind        AssetKind          `bson:"kind" json:"kind"`
	ContentType string             `bson:"content_type" json:"content_type"`
	Size        int64              `bson:"size" json:"size"`
	Filename    string             `bson:"filename,omitempty" json:"filename,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

var ValidAssetKinds = map[string]bool{
	string(AssetCover): true,
	string(AssetPDF):   true,
	string(AssetAudio): true,
}

func IsValidAssetKind(kind string) bool {
	return ValidAssetKinds[kind]
}

var assetContentTypes = map[AssetKind]map[string]bool{
	AssetCover: {
		"image/jpeg": true,
		"image/png":  true,
		"image/webp": true,
	},
	AssetPDF: {
		"application/pdf": true,
	},
	AssetAudio: {
		"audio/mpeg":  true,
		"audio/mp4":   true,
		"audio/x-m4a": true,
		"audio/ogg":   true,
	},
}

// KindAcceptsContentType checks the declared content type against the kind.
func KindAcceptsContentType(kind AssetKind, contentType string) bool {
	return assetContentTypes[kind][contentType]
}
