/*
store.go - Persistence interface for the reconciliation core

The Store is always used through TxStore.WithTx: every operation in this
package runs as one database transaction so that a half-applied correction
(shipment updated but PO not, diff resolved but event missing) is never
observable.

Lookup methods return (nil, nil) when the row does not exist; the service
turns that into a NotFoundError with the right context.

The ledger tables are written through the same transaction, so Store embeds
fifo.Store, and fifo.Reader for the read paths.

IMPLEMENTATIONS:
  - store/sqlite: sqlx over mattn/go-sqlite3
*/
package reconcile

import (
	"context"

	"github.com/warp/receive-engine/fifo"
)

type Store interface {
	fifo.Store
	fifo.Reader

	// Shipments / PO (upstream-owned, mutated by corrections)
	Shipment(ctx context.Context, logisticNum string) (*Shipment, error)
	ShipmentByID(ctx context.Context, id int64) (*Shipment, error)
	ShipmentItem(ctx context.Context, logisticNum, sku string) (*ShipmentItem, error)
	CountChildShipments(ctx context.Context, parentLogisticNum string) (int, error)
	CreateShipment(ctx context.Context, s *Shipment) error
	UpdateShipmentItemQuantity(ctx context.Context, id int64, qty int64) error
	POItem(ctx context.Context, poNum, sku string) (*POItem, error)
	UpdatePOItemQuantity(ctx context.Context, id int64, qty int64) error

	// Receives
	InsertReceive(ctx context.Context, r *Receive) error
	Receive(ctx context.Context, id int64) (*Receive, error)
	ReceivesByLogisticNum(ctx context.Context, logisticNum string) ([]Receive, error)
	UpdateReceiveSentQuantity(ctx context.Context, id int64, qty int64) error

	// Diffs
	InsertDiff(ctx context.Context, d *ReceiveDiff) error
	UpdateDiff(ctx context.Context, d *ReceiveDiff) error
	Diff(ctx context.Context, id int64) (*ReceiveDiff, error)
	DiffsByReceive(ctx context.Context, receiveID int64) ([]ReceiveDiff, error)
	DiffsByLogisticNum(ctx context.Context, logisticNum string) ([]ReceiveDiff, error)
	PendingDiffs(ctx context.Context) ([]ReceiveDiff, error)
	AllDiffs(ctx context.Context) ([]ReceiveDiff, error)

	// Events (append-only: no update, no delete)
	MaxEventSeq(ctx context.Context, logisticNum string) (int, error)
	InsertEvent(ctx context.Context, e *DiffEvent) error
	Events(ctx context.Context, logisticNum string) ([]DiffEvent, error)
}

// TxStore runs fn inside one database transaction. fn returning an error
// rolls everything back.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}

// Locker grants exclusive intent on an aggregate key (the logistic number)
// for the duration of one write. Release must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
