// Package pipeline contains the message processing stages that turn Firestore
// document events, delivered over Pub/Sub, into trigger handler calls.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
)

// documentsMarker separates the database prefix from the document path in a
// Firestore resource name.
const documentsMarker = "/documents/"

// DocumentEvent is a decoded Firestore document event.
type DocumentEvent struct {
	// Path is relative to the database root, e.g. "recipes/abc".
	Path     string
	Segments []string
	// Fields holds the document's string fields; other value types are dropped.
	Fields map[string]string
	// IsCreate is true when the event carries a new document version and no
	// previous one.
	IsCreate bool
}

// firestoreValue is a Firestore typed value in its JSON encoding. Only string
// values are read by this service.
type firestoreValue struct {
	StringValue *string `json:"stringValue,omitempty"`
}

type firestoreDocument struct {
	Name   string                    `json:"name"`
	Fields map[string]firestoreValue `json:"fields"`
}

// documentEventData is the JSON encoding of google.events.cloud.firestore.v1.DocumentEventData.
type documentEventData struct {
	Value    *firestoreDocument `json:"value"`
	OldValue *firestoreDocument `json:"oldValue"`
}

// DocumentEventTransformer is a dataflow Transformer that decodes a raw
// Eventarc Firestore payload into a DocumentEvent.
//
// Malformed payloads return an error with skip=true so the StreamingService
// nacks them and the subscription's dead letter policy takes over.
func DocumentEventTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*DocumentEvent, bool, error) {
	var raw documentEventData
	if err := json.Unmarshal(msg.Payload, &raw); err != nil {
		return nil, true, fmt.Errorf("failed to unmarshal document event from message %s: %w", msg.ID, err)
	}
	// Deletes carry only the old version of the document.
	doc := raw.Value
	if doc == nil {
		doc = raw.OldValue
	}
	if doc == nil {
		return nil, true, fmt.Errorf("document event in message %s has no value", msg.ID)
	}

	path, err := documentPath(doc.Name)
	if err != nil {
		return nil, true, fmt.Errorf("message %s: %w", msg.ID, err)
	}

	fields := make(map[string]string, len(doc.Fields))
	for k, v := range doc.Fields {
		if v.StringValue != nil {
			fields[k] = *v.StringValue
		}
	}

	return &DocumentEvent{
		Path:     path,
		Segments: strings.Split(path, "/"),
		Fields:   fields,
		IsCreate: raw.Value != nil && raw.OldValue == nil,
	}, false, nil
}

// documentPath strips "projects/{p}/databases/{d}/documents/" from a resource name.
func documentPath(name string) (string, error) {
	idx := strings.Index(name, documentsMarker)
	if idx < 0 {
		return "", fmt.Errorf("invalid document name %q", name)
	}
	path := strings.Trim(name[idx+len(documentsMarker):], "/")
	if path == "" {
		return "", fmt.Errorf("invalid document name %q", name)
	}
	return path, nil
}
