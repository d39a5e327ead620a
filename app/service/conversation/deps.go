package conversation

import (
	"context"
	"healthmate/app/service/history"
	"healthmate/app/service/knowledge"
	"healthmate/app/service/patient"
)

type KnowledgeStore interface {
	Upsert(ctx context.Context, entities []knowledge.Entity, relationships []knowledge.Relationship) error
	Vocabulary(ctx context.Context, subject string) (knowledge.Vocabulary, error)
	Query(ctx context.Context, query string) ([]knowledge.Row, error)
}

type ReferenceStore interface {
	Search(ctx context.Context, query string) ([]string, error)
}

type ProfileDirectory interface {
	Lookup(ctx context.Context, id string) (*patient.Profile, error)
}

// CheckpointStore persists opaque session blobs.
type CheckpointStore interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, data []byte) error
}

type TranscriptRecorder interface {
	Record(ctx context.Context, entry history.Entry) error
}
