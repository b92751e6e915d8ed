package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lotes/backend/internal/domain/directory"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentModel is the persistence model for one directory document.
// Version implements optimistic locking: every write is conditioned on the
// version that was read.
type DocumentModel struct {
	Path      string    `gorm:"type:varchar(1600);primaryKey"`
	Body      string    `gorm:"type:text;not null"`
	Version   int64     `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DocumentModel) TableName() string {
	return "directory_documents"
}

// SQLStore keeps documents in a relational table through GORM.
type SQLStore struct {
	db          *gorm.DB
	maxAttempts int
}

// NewSQLStore creates a store on an open database
func NewSQLStore(db *gorm.DB, maxAttempts int) *SQLStore {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &SQLStore{db: db, maxAttempts: maxAttempts}
}

// Get implements directory.Store
func (s *SQLStore) Get(ctx context.Context, path string) ([]byte, error) {
	loc, err := locate(path)
	if err != nil {
		return nil, err
	}
	doc, found, err := s.load(ctx, loc.key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, directory.ErrNotFound
	}
	value, err := readAt([]byte(doc.Body), loc.fields)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, directory.ErrNotFound
	}
	return value, nil
}

// Set implements directory.Store
func (s *SQLStore) Set(ctx context.Context, path string, value []byte) error {
	_, _, err := s.apply(ctx, path, overwrite(value))
	return err
}

// Delete implements directory.Store
func (s *SQLStore) Delete(ctx context.Context, path string) error {
	_, _, err := s.apply(ctx, path, overwrite(nil))
	return err
}

// List implements directory.Store
func (s *SQLStore) List(ctx context.Context, collection string) ([]string, error) {
	if err := validCollection(collection); err != nil {
		return nil, err
	}
	prefix := collection + "/"
	var paths []string
	err := s.db.WithContext(ctx).
		Model(&DocumentModel{}).
		Where("path LIKE ?", prefix+"%").
		Order("path ASC").
		Pluck("path", &paths).Error
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	ids := make([]string, 0, len(paths))
	for _, p := range paths {
		ids = append(ids, strings.TrimPrefix(p, prefix))
	}
	return ids, nil
}

// Transaction implements directory.Store
func (s *SQLStore) Transaction(ctx context.Context, path string, m directory.Mutation, done directory.Completion) {
	go func() {
		committed, snapshot, err := s.apply(ctx, path, m)
		done(committed, snapshot, err)
	}()
}

func (s *SQLStore) load(ctx context.Context, key string) (DocumentModel, bool, error) {
	var doc DocumentModel
	err := s.db.WithContext(ctx).Where("path = ?", key).Take(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DocumentModel{}, false, nil
	}
	if err != nil {
		return DocumentModel{}, false, fmt.Errorf("load %s: %w", key, err)
	}
	return doc, true, nil
}

// apply reads the document, runs the mutation and writes the result back
// conditioned on the version it read. A write that matches no row lost a race
// and the whole cycle is retried on the fresh document.
func (s *SQLStore) apply(ctx context.Context, path string, m directory.Mutation) (bool, []byte, error) {
	loc, err := locate(path)
	if err != nil {
		return false, nil, err
	}

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		doc, found, err := s.load(ctx, loc.key)
		if err != nil {
			return false, nil, err
		}

		var body []byte
		if found {
			body = []byte(doc.Body)
		}
		updated, value, current, ok, err := applyMutation(body, loc, m)
		if err != nil {
			return false, nil, err
		}
		if !ok {
			return false, current, nil
		}

		won, err := s.write(ctx, loc.key, doc, found, updated)
		if err != nil {
			return false, nil, err
		}
		if won {
			return true, value, nil
		}
	}

	doc, found, err := s.load(ctx, loc.key)
	if err != nil {
		return false, nil, err
	}
	var body []byte
	if found {
		body = []byte(doc.Body)
	}
	return exhausted(body, loc, m)
}

// write stores updated in place of doc and reports whether no concurrent
// writer got there first.
func (s *SQLStore) write(ctx context.Context, key string, doc DocumentModel, found bool, updated []byte) (bool, error) {
	db := s.db.WithContext(ctx)
	now := time.Now().UTC()

	switch {
	case !found && updated == nil:
		return true, nil

	case !found:
		result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&DocumentModel{
			Path:      key,
			Body:      string(updated),
			Version:   1,
			UpdatedAt: now,
		})
		if result.Error != nil {
			return false, fmt.Errorf("insert %s: %w", key, result.Error)
		}
		return result.RowsAffected == 1, nil

	case updated == nil:
		result := db.Where("path = ? AND version = ?", key, doc.Version).Delete(&DocumentModel{})
		if result.Error != nil {
			return false, fmt.Errorf("delete %s: %w", key, result.Error)
		}
		return result.RowsAffected == 1, nil

	default:
		result := db.Model(&DocumentModel{}).
			Where("path = ? AND version = ?", key, doc.Version).
			Updates(map[string]interface{}{
				"body":       string(updated),
				"version":    doc.Version + 1,
				"updated_at": now,
			})
		if result.Error != nil {
			return false, fmt.Errorf("update %s: %w", key, result.Error)
		}
		return result.RowsAffected == 1, nil
	}
}

// Ping implements directory.Store
func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close implements directory.Store. The database is owned by the caller.
func (s *SQLStore) Close() error {
	return nil
}
