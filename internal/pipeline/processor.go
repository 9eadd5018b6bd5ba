package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/tinywideclouds/go-recipe-notifier/internal/triggers"
	"github.com/tinywideclouds/go-recipe-notifier/pkg/dispatch"
)

// TriggerHandlers is implemented by *triggers.Handlers.
type TriggerHandlers interface {
	OnRecipeCreated(ctx context.Context, recipeID string, recipe triggers.Recipe) (dispatch.Result, error)
	OnStudyPostCreated(ctx context.Context, postID string, post dispatch.StudyPost) (dispatch.Result, error)
	OnCommentAdded(ctx context.Context, postID, commentID string, comment triggers.Comment) (dispatch.Result, error)
}

// NewProcessor routes each created document to its trigger handler.
//
// Errors raised before anything was pushed (store reads) are returned so the
// message is redelivered. A failed multicast batch is logged and acked: some
// devices may already have been notified and there is no deduplication.
func NewProcessor(handlers TriggerHandlers, logger *slog.Logger) messagepipeline.StreamProcessor[DocumentEvent] {
	return func(ctx context.Context, original messagepipeline.Message, ev *DocumentEvent) error {
		invocationID := original.ID
		if invocationID == "" {
			invocationID = uuid.NewString()
		}
		procLogger := logger.With("invocation_id", invocationID, "document", ev.Path)

		if !ev.IsCreate {
			procLogger.Debug("Ignoring non-create document event")
			return nil
		}

		var (
			result dispatch.Result
			err    error
		)
		s := ev.Segments
		switch {
		case len(s) == 2 && s[0] == "recipes":
			result, err = handlers.OnRecipeCreated(ctx, s[1], triggers.Recipe{
				Title:    ev.Fields["title"],
				Category: ev.Fields["category"],
				UserID:   ev.Fields["userId"],
			})
		case len(s) == 2 && s[0] == "study_posts":
			result, err = handlers.OnStudyPostCreated(ctx, s[1], dispatch.StudyPost{
				ID:               s[1],
				RecordedSentence: ev.Fields["recordedSentence"],
				UserID:           ev.Fields["userId"],
			})
		case len(s) == 4 && s[0] == "study_posts" && s[2] == "comments":
			result, err = handlers.OnCommentAdded(ctx, s[1], s[3], triggers.Comment{
				UserID: ev.Fields["userId"],
			})
		default:
			procLogger.Debug("No trigger registered for document path")
			return nil
		}

		if errors.Is(err, dispatch.ErrBatchFailed) {
			procLogger.Error("Notification fan-out aborted", "err", err,
				"batches_sent", result.Batches, "recipients", result.Recipients)
			return nil
		}
		if err != nil {
			procLogger.Error("Trigger failed", "err", err)
			return err
		}

		procLogger.Info("Trigger handled",
			"outcome", result.Outcome,
			"recipients", result.Recipients,
			"batches", result.Batches,
			"success", result.SuccessCount,
			"failure", result.FailureCount,
			"stale_tokens", result.StaleTokens,
		)
		return nil
	}
}
