package models_test

import (
	"testing"
	"time"

	"candil-egov/internal/models"
)

func TestBorrowIsOverdue(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		borrow  models.Borrow
		overdue bool
	}{
		{
			"Active past due",
			models.Borrow{Status: models.BorrowActive, DueDate: now.AddDate(0, 0, -1)},
			true,
		},
		{
			"Active not yet due",
			models.Borrow{Status: models.BorrowActive, DueDate: now.AddDate(0, 0, 3)},
			false,
		},
		{
			"Returned past due",
			models.Borrow{Status: models.BorrowReturned, DueDate: now.AddDate(0, 0, -10)},
			false,
		},
		{
			"Due exactly now",
			models.Borrow{Status: models.BorrowActive, DueDate: now},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.borrow.IsOverdue(now); got != tt.overdue {
				t.Errorf("IsOverdue() = %v, want %v", got, tt.overdue)
			}
		})
	}
}

func TestIsValidBorrowStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		isValid bool
	}{
		{"Active", string(models.BorrowActive), true},
		{"Returned", string(models.BorrowReturned), true},
		{"Invalid", "LOST", false},
		{"Empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := models.IsValidBorrowStatus(tt.status); got != tt.isValid {
				t.Errorf("IsValidBorrowStatus() = %v, want %v", got, tt.isValid)
			}
		})
	}
}
