// Package dispatch contains the contracts shared by the notification fan-out:
// the push platform, the user directory and the study post store.
package dispatch

import (
	"context"

	"github.com/tinywideclouds/go-platform/pkg/notification/v1"
)

// Messenger defines the contract for a push platform that can deliver one
// notification to a batch of device tokens in a single call.
type Messenger interface {
	// SendMulticast sends the content to every token in the batch.
	// A returned error means the whole batch failed; per-token failures are
	// reported in the BatchResponse, positionally aligned with tokens.
	SendMulticast(ctx context.Context, tokens []string, content notification.NotificationContent, data map[string]string) (*BatchResponse, error)
}

// UserDirectory is the view of the `users` collection the service needs.
type UserDirectory interface {
	// ListUsers reads every user record. There is no pagination.
	ListUsers(ctx context.Context) ([]User, error)

	// GetUser returns ErrNotFound when no record exists for id.
	GetUser(ctx context.Context, id string) (*User, error)

	// ClearFCMToken deletes the fcmToken field of the user record.
	// It is idempotent.
	ClearFCMToken(ctx context.Context, id string) error

	// SetFCMToken stores token as the user's current device token.
	SetFCMToken(ctx context.Context, id string, token string) error
}

// PostStore reads study posts.
type PostStore interface {
	// GetStudyPost returns ErrNotFound when the post does not exist.
	GetStudyPost(ctx context.Context, postID string) (*StudyPost, error)
}

// Notifier broadcasts a notification to every user except excludedUserID.
type Notifier interface {
	Send(ctx context.Context, n Notification, excludedUserID string) (Result, error)
}
