package kv

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/storage/database"
	"github.com/trezcool/masomo-portal/storage/kv/file"
	"github.com/trezcool/masomo-portal/storage/kv/inmem"
	"github.com/trezcool/masomo-portal/storage/kv/redis"
	"github.com/trezcool/masomo-portal/storage/kv/sqlx"
)

// Open opens the client storage backend selected by `storage.engine`.
func Open(ctx context.Context, conf core.StorageConfig) (core.KeyValueBackend, error) {
	switch conf.Engine {
	case core.StorageMemory, "":
		return inmemkv.Open(), nil
	case core.StorageFile:
		return filekv.Open(conf.FilePath)
	case core.StorageRedis:
		return rediskv.Open(ctx, conf.Redis)
	case core.StoragePostgres:
		db, err := database.Open(ctx, conf.Database)
		if err != nil {
			return nil, err
		}
		return sqlxkv.New(db), nil
	default:
		return nil, errors.Errorf("unknown storage engine %q", conf.Engine)
	}
}
