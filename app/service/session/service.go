package session

import (
	"context"
	"database/sql"
	"errors"
	"healthmate/app/client/sqlite"
	"time"

	"github.com/samber/do"
	"github.com/samber/oops"
)

// Service checkpoints serialized conversation state by session key.
type Service struct {
	db *sql.DB
}

func New(di *do.Injector) (*Service, error) {
	return NewWithDB(do.MustInvoke[*sqlite.Client](di).DB()), nil
}

func NewWithDB(db *sql.DB) *Service {
	return &Service{db: db}
}

// Load returns the last saved checkpoint; ok is false for an unknown key.
func (s *Service) Load(ctx context.Context, key string) (data []byte, ok bool, err error) {
	var state string

	err = s.db.QueryRowContext(ctx, `SELECT state FROM sessions WHERE key = ?`, key).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, oops.In("session").With("key", key).Wrapf(err, "failed to load session")
	}

	return []byte(state), true, nil
}

func (s *Service) Save(ctx context.Context, key string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (key, state, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			state = excluded.state,
			updated_at = excluded.updated_at
	`, key, string(data), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return oops.In("session").With("key", key).Wrapf(err, "failed to save session")
	}

	return nil
}
