package utils

import (
	"context"
	"fmt"
)

// AppendToNotificationLog stands in for the push channel that tells a user
// their overdue borrow was returned automatically.
func AppendToNotificationLog(ctx context.Context, userID string, bookID string) {
	fmt.Printf("[NOTIFY LOG] User %s: borrow of book %s auto-returned as overdue\n", userID, bookID)
}
