// Package triggers turns created recipe, study post and comment documents into
// broadcast notifications.
package triggers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tinywideclouds/go-platform/pkg/notification/v1"

	"github.com/tinywideclouds/go-recipe-notifier/pkg/dispatch"
)

// maxExcerpt is the number of characters of user content quoted in a body.
const maxExcerpt = 50

const (
	recipeTitle         = "커피 리뷰 쓰라잉!"
	recipeBodySuffix    = " 추가했으니 리뷰 빨리 쓰쇼!"
	recipeDefaultTitle  = "제목 없는 레시피"
	recipeDefaultCateg  = "unknown"
	studyPostTitle      = "회화 등록! 공부하쟈"
	studyPostBodySuffix = " 등록, 벤교오 스루 이키마스!"
	studyPostDefault    = "내용 없는 게시글"
	commentTitle        = "누군가가 댓글을 달았다 !"
	commentBodySuffix   = "사마가 댓글을 달아주셨다!"
	defaultNickname     = "새로운 사용자"
)

// Data payload types.
const (
	TypeRecipeCreated    = "recipe_created"
	TypeStudyPostCreated = "study_post_created"
	TypeCommentAdded     = "comment_added"
)

// Recipe holds the fields of a created `recipes/{recipeId}` document.
type Recipe struct {
	Title    string
	Category string
	UserID   string
}

// Comment holds the fields of a created
// `study_posts/{postId}/comments/{commentId}` document.
type Comment struct {
	UserID string
}

// Handlers builds the notification for each created document and hands it
// to the notifier.
type Handlers struct {
	notifier dispatch.Notifier
	posts    dispatch.PostStore
	users    dispatch.UserDirectory
	logger   *slog.Logger
}

// NewHandlers creates the trigger handlers.
func NewHandlers(notifier dispatch.Notifier, posts dispatch.PostStore, users dispatch.UserDirectory, logger *slog.Logger) *Handlers {
	return &Handlers{
		notifier: notifier,
		posts:    posts,
		users:    users,
		logger:   logger.With("component", "Triggers"),
	}
}

// OnRecipeCreated notifies everyone but the author about a new recipe.
func (h *Handlers) OnRecipeCreated(ctx context.Context, recipeID string, recipe Recipe) (dispatch.Result, error) {
	n := dispatch.Notification{
		Content: notification.NotificationContent{
			Title: recipeTitle,
			Body:  excerpt(recipe.Title, recipeDefaultTitle) + recipeBodySuffix,
		},
		Data: map[string]string{
			"type":     TypeRecipeCreated,
			"recipeId": recipeID,
			"category": orDefault(recipe.Category, recipeDefaultCateg),
		},
	}
	return h.notifier.Send(ctx, n, recipe.UserID)
}

// OnStudyPostCreated notifies everyone but the author about a new study post.
func (h *Handlers) OnStudyPostCreated(ctx context.Context, postID string, post dispatch.StudyPost) (dispatch.Result, error) {
	n := dispatch.Notification{
		Content: notification.NotificationContent{
			Title: studyPostTitle,
			Body:  excerpt(post.RecordedSentence, studyPostDefault) + studyPostBodySuffix,
		},
		Data: map[string]string{
			"type":   TypeStudyPostCreated,
			"postId": postID,
		},
	}
	return h.notifier.Send(ctx, n, post.UserID)
}

// OnCommentAdded broadcasts a new comment to everyone but the commenter.
// Nothing is sent when the parent post is gone, has no author, or the
// commenter is the author.
func (h *Handlers) OnCommentAdded(ctx context.Context, postID, commentID string, comment Comment) (dispatch.Result, error) {
	log := h.logger.With("post_id", postID, "comment_id", commentID)

	post, err := h.posts.GetStudyPost(ctx, postID)
	if errors.Is(err, dispatch.ErrNotFound) {
		log.Info("Parent post not found; ignoring comment")
		return dispatch.Result{Outcome: dispatch.OutcomeSkipped}, nil
	}
	if err != nil {
		return dispatch.Result{}, fmt.Errorf("failed to read parent post %s: %w", postID, err)
	}

	if post.UserID == "" || post.UserID == comment.UserID {
		log.Debug("No one to notify for this comment", "author_id", post.UserID)
		return dispatch.Result{Outcome: dispatch.OutcomeSkipped}, nil
	}

	nickname, err := h.nickname(ctx, comment.UserID)
	if err != nil {
		return dispatch.Result{}, err
	}

	n := dispatch.Notification{
		Content: notification.NotificationContent{
			Title: commentTitle,
			Body:  nickname + commentBodySuffix,
		},
		Data: map[string]string{
			"type":      TypeCommentAdded,
			"postId":    postID,
			"commentId": commentID,
		},
	}
	return h.notifier.Send(ctx, n, comment.UserID)
}

func (h *Handlers) nickname(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return defaultNickname, nil
	}
	user, err := h.users.GetUser(ctx, userID)
	if errors.Is(err, dispatch.ErrNotFound) {
		return defaultNickname, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read commenter %s: %w", userID, err)
	}
	return orDefault(user.Nickname, defaultNickname), nil
}

// excerpt returns at most maxExcerpt characters of s, or def when s is empty.
func excerpt(s, def string) string {
	s = orDefault(s, def)
	r := []rune(s)
	if len(r) <= maxExcerpt {
		return s
	}
	return string(r[:maxExcerpt])
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
