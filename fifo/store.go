package fifo

import (
	"context"
	"errors"
)

// ErrDuplicateRefKey is returned by Store.InsertTransaction when the unique
// index on ref_key rejects the row.
var ErrDuplicateRefKey = errors.New("duplicate fifo ref key")

// Store persists ledger rows. Implementations are expected to be scoped to
// the caller's database transaction; the Writer never begins one itself.
// Insert* methods set the generated ID on the passed record.
type Store interface {
	TransactionExists(ctx context.Context, key RefKey) (bool, error)
	InsertTransaction(ctx context.Context, tx *Transaction) error
	InsertLayer(ctx context.Context, layer *Layer) error
	InsertLandedPrice(ctx context.Context, lp *LandedPrice) error
}

// Reader is the read side used by the layers endpoint and by CheckLinkage.
// An empty sku means all SKUs.
type Reader interface {
	Transactions(ctx context.Context, sku string) ([]Transaction, error)
	Layers(ctx context.Context, sku string) ([]Layer, error)
	LandedPrices(ctx context.Context, sku string) ([]LandedPrice, error)
}
