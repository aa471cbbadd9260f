package sqlxkv

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
)

var NowFunc = time.Now // mockable

const (
	getQuery = `SELECT value FROM client_storage WHERE storage_key = ?`
	setQuery = `INSERT INTO client_storage (storage_key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT (storage_key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	deleteQuery = `DELETE FROM client_storage WHERE storage_key IN (?)`
)

// store keeps client storage in the `client_storage` table (see storage/database/migrations).
type store struct {
	db *sqlx.DB
}

var _ core.KeyValueBackend = (*store)(nil)

func New(db *sqlx.DB) core.KeyValueBackend {
	return &store{db: db}
}

func (s *store) Get(ctx context.Context, key string) (string, error) {
	var val string
	if err := s.db.GetContext(ctx, &val, s.db.Rebind(getQuery), key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", core.ErrKeyNotFound
		}
		return "", errors.Wrapf(err, "selecting %s", key)
	}
	return val, nil
}

func (s *store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(setQuery), key, value, NowFunc().UTC())
	return errors.Wrapf(err, "upserting %s", key)
}

func (s *store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	query, args, err := sqlx.In(deleteQuery, keys)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	return errors.Wrap(err, "deleting keys")
}

func (s *store) Close() error {
	return s.db.Close()
}
