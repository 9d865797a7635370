// Package store is the MySQL implementation of the persistence interfaces
// declared by the domain packages.
package store

import (
	"context"

	"github.com/mmdatafocus/rms_backend/appctx"
	"github.com/mmdatafocus/rms_backend/utils"
	"gorm.io/gorm"
)

type Store struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// conn returns the transaction bound to ctx, or the root handle.
func (s *Store) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(appctx.ContextKeyTx).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx)
	}
	return s.DB.WithContext(ctx)
}

// Transaction runs fn inside a database transaction carried by the context
// passed to fn. Nested calls use savepoints.
func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(appctx.Set(ctx, appctx.ContextKeyTx, tx))
	})
}

func first[T any](q *gorm.DB) (*T, error) {
	var out T
	if err := q.First(&out).Error; err != nil {
		return nil, utils.TranslateDBError(err)
	}
	return &out, nil
}

func list[T any](q *gorm.DB) ([]*T, error) {
	var out []*T
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func create(q *gorm.DB, v any) error {
	return utils.TranslateDBError(q.Create(v).Error)
}
