package docstore

import (
	"fmt"

	"github.com/lotes/backend/internal/domain/directory"
	"github.com/lotes/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New builds the store selected by cfg.Backend. db is required for "sql" and
// rdb for "redis".
func New(cfg config.DirectoryConfig, db *gorm.DB, rdb *redis.Client) (directory.Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("directory backend redis requires a redis client")
		}
		return NewRedisStore(rdb, cfg.KeyPrefix, cfg.MaxTransactionAttempts), nil
	case "sql":
		if db == nil {
			return nil, fmt.Errorf("directory backend sql requires a database")
		}
		return NewSQLStore(db, cfg.MaxTransactionAttempts), nil
	default:
		return nil, fmt.Errorf("unknown directory backend %q", cfg.Backend)
	}
}
