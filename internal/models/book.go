package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Book is a catalog entry. Author, publisher, category and media assets are
// referenced by hex id strings and resolved with individual look-ups at read
// time; a dangling reference is not an error.
type Book struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title         string             `bson:"title" json:"title"`
	Description   string             `bson:"description,omitempty" json:"description,omitempty"`
	ISBN          string             `bson:"isbn,omitempty" json:"isbn,omitempty"`
	AuthorID      string             `bson:"author_id,omitempty" json:"author_id,omitempty"`
	PublisherID   string             `bson:"publisher_id,omitempty" json:"publisher_id,omitempty"`
	CategoryID    string             `bson:"category_id,omitempty" json:"category_id,omitempty"`
	Language      string             `bson:"language,omitempty" json:"language,omitempty"`
	PageCount     int                `bson:"page_count,omitempty" json:"page_count,omitempty"`
	PublishedYear int                `bson:"published_year,omitempty" json:"published_year,omitempty"`
	CoverAssetID  string             `bson:"cover_asset_id,omitempty" json:"cover_asset_id,omitempty"`
	PDFAssetID    string             `bson:"pdf_asset_id,omitempty" json:"pdf_asset_id,omitempty"`
	AudioAssetID  string             `bson:"audio_asset_id,omitempty" json:"audio_asset_id,omitempty"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
}

const (
	BookEntity = "book"
)

// NormalizeISBN strips separators so checksum validation sees digits only.
func NormalizeISBN(s string) string {
	s = strings.ReplaceAll(s, "-", "")
	return strings.ReplaceAll(s, " ", "")
}

// HasAudio reports whether the book can be played as an audiobook.
func (b Book) HasAudio() bool {
	return b.AudioAssetID != ""
}

// HasPDF reports whether the book can be opened in the reader.
func (b Book) HasPDF() bool {
	return b.PDFAssetID != ""
}
