package ports

import "context"

// Tx is an opaque transaction handle. The persistence adapter owns the
// concrete type (for example, *gorm.DB).
type Tx interface{}

// UnitOfWork runs fn inside one transaction: an error rolls back, nil commits.
// Table store adapters use it to make a single read-modify-write call atomic.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

func WithTxContext(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns the transaction stored by WithTxContext, if any.
func TxFromContext(ctx context.Context) Tx {
	return ctx.Value(txKey{})
}
