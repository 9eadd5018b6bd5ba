// Package dispatcher broadcasts a notification to every registered device,
// in bounded multicast batches, and clears device tokens the push platform
// reports as permanently invalid.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tinywideclouds/go-recipe-notifier/pkg/dispatch"
)

// DefaultBatchSize is the per-call multicast limit we stay under.
const DefaultBatchSize = 450

// MaxBatchSize is the hard limit FCM accepts for one multicast call.
const MaxBatchSize = 500

// Dispatcher implements dispatch.Notifier over a UserDirectory and a Messenger.
type Dispatcher struct {
	users     dispatch.UserDirectory
	messenger dispatch.Messenger
	batchSize int
	logger    *slog.Logger

	// cleanups tracks the detached token deletions.
	cleanups sync.WaitGroup
}

// New creates a Dispatcher. A batchSize outside 1..MaxBatchSize falls back to
// DefaultBatchSize.
func New(users dispatch.UserDirectory, messenger dispatch.Messenger, batchSize int, logger *slog.Logger) *Dispatcher {
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = DefaultBatchSize
	}
	return &Dispatcher{
		users:     users,
		messenger: messenger,
		batchSize: batchSize,
		logger:    logger.With("component", "NotificationDispatcher"),
	}
}

// recipients is the result of the single pass over the user collection.
type recipients struct {
	tokens []string
	owners map[string]string // token -> user id
}

func (d *Dispatcher) collect(users []dispatch.User, excludedUserID string) recipients {
	r := recipients{owners: make(map[string]string)}
	for _, u := range users {
		if u.FCMToken == "" {
			d.logger.Debug("User has no device token", "user_id", u.ID)
			continue
		}
		if excludedUserID != "" && u.ID == excludedUserID {
			d.logger.Debug("Skipping sender", "user_id", u.ID)
			continue
		}
		// The last owner seen wins. Two records sharing a token is not
		// prevented by the data model, so we only flag it.
		if prev, dup := r.owners[u.FCMToken]; dup {
			d.logger.Warn("Device token registered to more than one user", "previous_owner", prev, "owner", u.ID)
		}
		r.tokens = append(r.tokens, u.FCMToken)
		r.owners[u.FCMToken] = u.ID
	}
	return r
}

// Send reads the full user collection and broadcasts n to every device token
// except those owned by excludedUserID.
//
// A failed multicast call aborts the remaining batches and returns an error
// wrapping dispatch.ErrBatchFailed along with the counts gathered so far.
// Token cleanups run in the background; their outcome only shows in the logs.
func (d *Dispatcher) Send(ctx context.Context, n dispatch.Notification, excludedUserID string) (dispatch.Result, error) {
	users, err := d.users.ListUsers(ctx)
	if err != nil {
		return dispatch.Result{}, fmt.Errorf("failed to list users: %w", err)
	}
	d.logger.Debug("Loaded user collection", "count", len(users))

	r := d.collect(users, excludedUserID)
	result := dispatch.Result{Recipients: len(r.tokens)}
	if len(r.tokens) == 0 {
		d.logger.Info("No device tokens to notify")
		result.Outcome = dispatch.OutcomeNoRecipients
		return result, nil
	}

	data := n.Data
	if data == nil {
		data = map[string]string{}
	}

	for i, batch := range chunk(r.tokens, d.batchSize) {
		br, err := d.messenger.SendMulticast(ctx, batch, n.Content, data)
		if err != nil {
			d.logger.Error("Multicast send failed, aborting remaining batches", "batch", i, "size", len(batch), "err", err)
			return result, fmt.Errorf("%w: batch %d: %w", dispatch.ErrBatchFailed, i, err)
		}
		result.Batches++
		result.SuccessCount += br.SuccessCount
		result.FailureCount += br.FailureCount
		d.logger.Info("Multicast batch sent", "batch", i, "size", len(batch), "success", br.SuccessCount, "failure", br.FailureCount)

		for idx, resp := range br.Responses {
			if resp.Success || idx >= len(batch) {
				continue
			}
			token := batch[idx]
			if !resp.Reason.IsPermanent() {
				d.logger.Warn("Delivery failed", "user_id", r.owners[token], "reason", resp.Reason, "err", resp.Err)
				continue
			}
			owner, ok := r.owners[token]
			if !ok {
				continue
			}
			result.StaleTokens++
			d.clearToken(ctx, owner, resp.Reason)
		}
	}

	result.Outcome = dispatch.OutcomeSent
	return result, nil
}

// clearToken removes the stale token from its owner without blocking the
// caller. The write is detached from ctx cancellation so it can outlive the
// invocation.
func (d *Dispatcher) clearToken(ctx context.Context, userID string, reason dispatch.FailureReason) {
	cleanupCtx := context.WithoutCancel(ctx)
	d.cleanups.Add(1)
	go func() {
		defer d.cleanups.Done()
		if err := d.users.ClearFCMToken(cleanupCtx, userID); err != nil {
			d.logger.Error("Failed to remove invalid device token", "user_id", userID, "err", err)
			return
		}
		d.logger.Info("Removed invalid device token", "user_id", userID, "reason", reason)
	}()
}

// Wait blocks until every background token cleanup has finished.
func (d *Dispatcher) Wait() {
	d.cleanups.Wait()
}
