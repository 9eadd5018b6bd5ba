// Package fcm delivers multicast notifications through Firebase Cloud Messaging.
package fcm

import (
	"context"
	"fmt"
	"log/slog"

	"firebase.google.com/go/v4/messaging"
	"github.com/tinywideclouds/go-platform/pkg/notification/v1"

	"github.com/tinywideclouds/go-recipe-notifier/pkg/dispatch"
)

// DefaultWebIcon is shown by browsers for web push deliveries.
const DefaultWebIcon = "/assets/icons/icon-192x192.png"

// MessagingClient defines the subset of the Firebase Messaging API we use.
// *messaging.Client satisfies it.
type MessagingClient interface {
	SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// Messenger implements dispatch.Messenger on FCM.
type Messenger struct {
	client  MessagingClient
	webIcon string
	logger  *slog.Logger
}

// NewMessenger uses DefaultWebIcon when webIcon is empty.
func NewMessenger(client MessagingClient, webIcon string, logger *slog.Logger) *Messenger {
	if webIcon == "" {
		webIcon = DefaultWebIcon
	}
	return &Messenger{
		client:  client,
		webIcon: webIcon,
		logger:  logger.With("component", "FCMMessenger"),
	}
}

// SendMulticast sends one multicast message. The per-token responses keep the
// order of tokens.
func (m *Messenger) SendMulticast(ctx context.Context, tokens []string, content notification.NotificationContent, data map[string]string) (*dispatch.BatchResponse, error) {
	if len(tokens) == 0 {
		return &dispatch.BatchResponse{}, nil
	}

	msg := &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   data,
		Notification: &messaging.Notification{
			Title: content.Title,
			Body:  content.Body,
		},
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: content.Title,
				Body:  content.Body,
				Icon:  m.webIcon,
			},
		},
	}

	br, err := m.client.SendEachForMulticast(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("fcm transport failed: %w", err)
	}

	out := &dispatch.BatchResponse{
		SuccessCount: br.SuccessCount,
		FailureCount: br.FailureCount,
		Responses:    make([]dispatch.TokenResponse, 0, len(br.Responses)),
	}
	for _, resp := range br.Responses {
		if resp.Success {
			out.Responses = append(out.Responses, dispatch.TokenResponse{Success: true, MessageID: resp.MessageID})
			continue
		}
		out.Responses = append(out.Responses, dispatch.TokenResponse{
			Reason: Classify(resp.Error),
			Err:    resp.Error,
		})
	}
	return out, nil
}

// Classify maps a per-token FCM error onto a dispatch.FailureReason.
func Classify(err error) dispatch.FailureReason {
	switch {
	case err == nil:
		return dispatch.ReasonUnknown
	case messaging.IsUnregistered(err), messaging.IsRegistrationTokenNotRegistered(err):
		return dispatch.ReasonNotRegistered
	case messaging.IsInvalidArgument(err):
		// The v1 API reports malformed registration tokens as INVALID_ARGUMENT.
		return dispatch.ReasonInvalidToken
	default:
		return dispatch.ReasonUnknown
	}
}
