// Package sqlsource stores templates in an SQLite table and serves them to a
// pagetemplate.Parser.
package sqlsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/soft_delete"

	pagetemplate "github.com/brianwisti/PageTemplate"
	"github.com/brianwisti/PageTemplate/internal/ctxlog"
)

// Template is one stored template body. Deleted rows are kept, flagged by
// the time they were deleted, so a name can be stored again afterwards.
type Template struct {
	ID        int64                 `gorm:"primaryKey"`
	Name      string                `gorm:"uniqueIndex:idx_templates_name;not null"`
	Body      string                `gorm:"not null"`
	UpdatedAt int64                 `gorm:"autoUpdateTime:nano"`
	Deleted   soft_delete.DeletedAt `gorm:"uniqueIndex:idx_templates_name;softDelete:milli;default:0"`
}

func (Template) TableName() string {
	return "templates"
}

type entry struct {
	updated int64
	doc     *pagetemplate.Document
}

// Source is a pagetemplate.Source reading from the templates table.
// Compiled documents are dropped when their row is updated.
type Source struct {
	db  *gorm.DB
	log *slog.Logger

	mu      sync.Mutex
	cache   map[string]entry
	pending map[string]int64
}

// Open opens or creates the SQLite database at path.
func Open(ctx context.Context, path string) (*Source, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open template database %s: %w", path, err)
	}
	return New(ctx, db)
}

// New wraps an open database, creating the templates table if needed.
func New(ctx context.Context, db *gorm.DB) (*Source, error) {
	log := ctxlog.FromContext(ctx)
	if err := db.WithContext(ctx).AutoMigrate(&Template{}); err != nil {
		return nil, fmt.Errorf("failed to migrate template table: %w", err)
	}
	log.Debug("Template database ready.")
	return &Source{
		db:      db,
		log:     log,
		cache:   map[string]entry{},
		pending: map[string]int64{},
	}, nil
}

// Close closes the underlying database.
func (s *Source) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Put stores body under name, replacing any current body.
func (s *Source) Put(ctx context.Context, name, body string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t Template
		err := tx.Where("name = ?", name).Take(&t).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&Template{Name: name, Body: body}).Error
		case err != nil:
			return err
		}
		t.Body = body
		return tx.Save(&t).Error
	})
	if err != nil {
		return &pagetemplate.SourceError{Name: name, Err: err}
	}
	s.log.Debug("Template stored.", "name", name, "bytes", len(body))
	return nil
}

// Delete soft deletes name.
func (s *Source) Delete(ctx context.Context, name string) error {
	res := s.db.WithContext(ctx).Where("name = ?", name).Delete(&Template{})
	if res.Error != nil {
		return &pagetemplate.SourceError{Name: name, Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return &pagetemplate.SourceError{Name: name, Err: pagetemplate.ErrNotFound}
	}

	s.mu.Lock()
	delete(s.cache, name)
	delete(s.pending, name)
	s.mu.Unlock()
	s.log.Debug("Template deleted.", "name", name)
	return nil
}

// Names lists the stored templates in order.
func (s *Source) Names(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).Model(&Template{}).Order("name").Pluck("name", &names).Error
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (s *Source) Get(name string) (string, *pagetemplate.Document, error) {
	var t Template
	err := s.db.Where("name = ?", name).Take(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, &pagetemplate.SourceError{Name: name, Err: pagetemplate.ErrNotFound}
	}
	if err != nil {
		return "", nil, &pagetemplate.SourceError{Name: name, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.cache[name]; ok && e.updated == t.UpdatedAt {
		return t.Body, e.doc, nil
	}
	s.pending[name] = t.UpdatedAt
	return t.Body, nil, nil
}

// Cache keeps doc for the row version seen by the last Get of name.
func (s *Source) Cache(name string, doc *pagetemplate.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated, ok := s.pending[name]
	if !ok {
		return
	}
	delete(s.pending, name)
	s.cache[name] = entry{updated: updated, doc: doc}
}
