// Package firestore implements the user directory and study post store on
// Google Cloud Firestore.
package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tinywideclouds/go-recipe-notifier/pkg/dispatch"
)

const (
	usersCollection      = "users"
	studyPostsCollection = "study_posts"

	fieldFCMToken         = "fcmToken"
	fieldNickname         = "nickname"
	fieldUserID           = "userId"
	fieldRecordedSentence = "recordedSentence"
)

// Store implements dispatch.UserDirectory and dispatch.PostStore.
type Store struct {
	client *firestore.Client
}

func NewStore(client *firestore.Client) *Store {
	return &Store{client: client}
}

// ListUsers scans the whole users collection.
func (s *Store) ListUsers(ctx context.Context) ([]dispatch.User, error) {
	iter := s.client.Collection(usersCollection).Documents(ctx)
	defer iter.Stop()

	var users []dispatch.User
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore iteration failed: %w", err)
		}
		users = append(users, userFromData(doc.Ref.ID, doc.Data()))
	}
	return users, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*dispatch.User, error) {
	doc, err := s.client.Collection(usersCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, dispatch.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	u := userFromData(doc.Ref.ID, doc.Data())
	return &u, nil
}

// ClearFCMToken deletes the fcmToken field. A missing user record is not an error.
func (s *Store) ClearFCMToken(ctx context.Context, id string) error {
	_, err := s.client.Collection(usersCollection).Doc(id).Update(ctx, []firestore.Update{
		{Path: fieldFCMToken, Value: firestore.Delete},
	})
	if status.Code(err) == codes.NotFound {
		return nil
	}
	return err
}

func (s *Store) SetFCMToken(ctx context.Context, id string, token string) error {
	_, err := s.client.Collection(usersCollection).Doc(id).Set(ctx, map[string]interface{}{
		fieldFCMToken: token,
	}, firestore.MergeAll)
	return err
}

func (s *Store) GetStudyPost(ctx context.Context, postID string) (*dispatch.StudyPost, error) {
	doc, err := s.client.Collection(studyPostsCollection).Doc(postID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, dispatch.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get study post %s: %w", postID, err)
	}
	data := doc.Data()
	return &dispatch.StudyPost{
		ID:               doc.Ref.ID,
		RecordedSentence: stringField(data, fieldRecordedSentence),
		UserID:           stringField(data, fieldUserID),
	}, nil
}

// userFromData reads the record loosely: the app writes these documents and a
// field of the wrong type is treated as absent.
func userFromData(id string, data map[string]interface{}) dispatch.User {
	return dispatch.User{
		ID:       id,
		FCMToken: stringField(data, fieldFCMToken),
		Nickname: stringField(data, fieldNickname),
	}
}

func stringField(data map[string]interface{}, key string) string {
	s, _ := data[key].(string)
	return s
}
