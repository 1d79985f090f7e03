package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type BorrowStatus string

const (
	BorrowActive   BorrowStatus = "ACTIVE"
	BorrowReturned BorrowStatus = "RETURNED"

	BorrowEntity = "borrow"
)

// Borrow links a user and a book for a lending period. Overdue is never
// stored: it is derived from DueDate on every read, and the sweeper is the
// only writer that retires an ACTIVE borrow without a user request.
type Borrow struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID       string             `bson:"user_id" json:"user_id"`
	BookID       string             `bson:"book_id" json:"book_id"`
	BorrowDate   time.Time          `bson:"borrow_date" json:"borrow_date"`
	DueDate      time.Time          `bson:"due_date" json:"due_date"`
	Status       BorrowStatus       `bson:"status" json:"status"`
	ReturnDate   *time.Time         `bson:"return_date,omitempty" json:"return_date,omitempty"`
	AutoReturned bool               `bson:"auto_returned,omitempty" json:"auto_returned,omitempty"`

	// Overdue is computed by handlers before encoding responses.
	Overdue bool `bson:"-" json:"overdue"`
}

var ValidBorrowStatuses = map[string]bool{
	string(BorrowActive):   true,
	string(BorrowReturned): true,
}

func IsValidBorrowStatus(status string) bool {
	return ValidBorrowStatuses[status]
}

// IsOverdue reports whether the borrow is past due and still open.
func (b Borrow) IsOverdue(now time.Time) bool {
	return b.Status == BorrowActive && now.After(b.DueDate)
}
