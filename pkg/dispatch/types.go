package dispatch

import (
	"errors"

	"github.com/tinywideclouds/go-platform/pkg/notification/v1"
)

var (
	// ErrNotFound is returned by stores when the requested document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrBatchFailed marks a multicast call that failed as a whole.
	// Batches after the failed one are never attempted.
	ErrBatchFailed = errors.New("multicast batch failed")
)

// User is a record of the `users` collection.
type User struct {
	ID string `json:"id"`
	// FCMToken is empty unless the stored field is a non-empty string.
	FCMToken string `json:"fcmToken,omitempty"`
	Nickname string `json:"nickname,omitempty"`
}

// StudyPost is a record of the `study_posts` collection.
type StudyPost struct {
	ID               string
	RecordedSentence string
	UserID           string
}

// Notification is the per-event payload broadcast to all recipients.
type Notification struct {
	Content notification.NotificationContent
	Data    map[string]string
}

// FailureReason is the machine-readable cause of a per-token delivery failure.
type FailureReason string

const (
	ReasonNotRegistered FailureReason = "messaging/registration-token-not-registered"
	ReasonInvalidToken  FailureReason = "messaging/invalid-registration-token"
	ReasonUnknown       FailureReason = "unknown"
)

// IsPermanent reports whether the token can never be delivered to again.
func (r FailureReason) IsPermanent() bool {
	return r == ReasonNotRegistered || r == ReasonInvalidToken
}

// TokenResponse is the outcome for a single token of a batch.
type TokenResponse struct {
	Success   bool
	MessageID string
	Reason    FailureReason
	Err       error
}

// BatchResponse is the result of one multicast call.
type BatchResponse struct {
	SuccessCount int
	FailureCount int
	Responses    []TokenResponse
}

// Outcome summarises what an invocation did.
type Outcome string

const (
	OutcomeSent         Outcome = "sent"
	OutcomeNoRecipients Outcome = "no_recipients"
	// OutcomeSkipped is used by trigger handlers that decide not to notify at all.
	OutcomeSkipped Outcome = "skipped"
)

// Result is returned by a Notifier. On a batch failure it holds the counts of
// the batches that completed before the failure.
type Result struct {
	Outcome      Outcome
	Recipients   int
	Batches      int
	SuccessCount int
	FailureCount int
	StaleTokens  int
}
