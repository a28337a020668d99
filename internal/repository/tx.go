package repository

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

// TxManager runs units of work in a database transaction carried by the
// context. Repositories pick the transaction up through conn.
type TxManager struct {
	db *gorm.DB
}

// NewTxManager creates a TxManager.
func NewTxManager(db *gorm.DB) *TxManager {
	return &TxManager{db: db}
}

// WithinTransaction runs fn in a transaction. Nested calls join the outer one.
func (m *TxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// conn returns the transaction in ctx, or db when there is none.
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

// Models lists every persistence model for AutoMigrate.
func Models() []any {
	return []any{
		&ReservationModel{},
		&CancellationModel{},
		&PaymentModel{},
		&PromotionModel{},
	}
}

// page normalises pagination parameters.
func page(p, limit int) (int, int) {
	if p < 1 {
		p = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return p, limit
}
