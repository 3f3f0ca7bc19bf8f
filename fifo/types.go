/*
Package fifo holds the inventory costing ledger written by the receive path.

PURPOSE:
  Every unit-batch received against a shipment becomes one cost layer that
  downstream costing consumes in first-in-first-out order. This package owns
  the three append-only record types and the writer that creates them.

KEY TYPES:
  Transaction: the inbound movement (action=in, tranType=purchase)
  Layer:       the cost layer created by a Transaction
  LandedPrice: the per-layer price record (base vs landed, USD)
  RefKey:      natural idempotency key derived from {logisticNum, sku}

LINKAGE:
  Layer.InTranID          -> Transaction.ID
  LandedPrice.FifoTranID  -> Transaction.ID
  LandedPrice.FifoLayerID -> Layer.ID

  CheckLinkage verifies these without relying on foreign keys.

NOT HERE:
  Consumption (sales side) and freight apportionment. Rows are written once
  and never mutated by this package.

SEE ALSO:
  - writer.go: the only write path
  - store/sqlite/fifo.go: persistence
*/
package fifo

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENUMS
// =============================================================================

type Action string

// Only inbound movements are written here; the sales side posts its own.
const ActionIn Action = "in"

type TranType string

const TranTypePurchase TranType = "purchase"

// =============================================================================
// REF KEY - natural idempotency key
// =============================================================================

// RefKey identifies the business event that produced a Transaction.
// Storage enforces uniqueness on it.
type RefKey string

// ReceiveRefKey derives the key for a receive line. The logistic number is
// length-prefixed so that underscores inside either part cannot collide
// ("A_B"+"C" vs "A"+"B_C").
func ReceiveRefKey(logisticNum, sku string) RefKey {
	return RefKey(fmt.Sprintf("receive_%d:%s_%s", len(logisticNum), logisticNum, sku))
}

func (k RefKey) String() string { return string(k) }

// =============================================================================
// RECORDS
// =============================================================================

type Transaction struct {
	ID        int64           `db:"id" json:"id"`
	RefKey    RefKey          `db:"ref_key" json:"refKey"`
	SKU       string          `db:"sku" json:"sku"`
	Action    Action          `db:"action" json:"action"`
	TranType  TranType        `db:"tran_type" json:"tranType"`
	Quantity  int64           `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unitPrice"`
	TranDate  time.Time       `db:"tran_date" json:"tranDate"`
	Note      string          `db:"note" json:"note"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
}

type Layer struct {
	ID           int64           `db:"id" json:"id"`
	InTranID     int64           `db:"in_tran_id" json:"inTranId"`
	SKU          string          `db:"sku" json:"sku"`
	QtyIn        int64           `db:"qty_in" json:"qtyIn"`
	QtyRemaining int64           `db:"qty_remaining" json:"qtyRemaining"`
	UnitCost     decimal.Decimal `db:"unit_cost" json:"unitCost"`
	LandedCost   decimal.Decimal `db:"landed_cost" json:"landedCost"`
	InDate       time.Time       `db:"in_date" json:"inDate"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
}

type LandedPrice struct {
	ID             int64           `db:"id" json:"id"`
	FifoTranID     int64           `db:"fifo_tran_id" json:"fifoTranId"`
	FifoLayerID    int64           `db:"fifo_layer_id" json:"fifoLayerId"`
	LogisticNum    string          `db:"logistic_num" json:"logisticNum"`
	PONum          string          `db:"po_num" json:"poNum"`
	SKU            string          `db:"sku" json:"sku"`
	Quantity       int64           `db:"quantity" json:"quantity"`
	BasePriceUSD   decimal.Decimal `db:"base_price_usd" json:"basePriceUsd"`
	LandedPriceUSD decimal.Decimal `db:"landed_price_usd" json:"landedPriceUsd"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
}

// Entry is one received line handed to the Writer.
type Entry struct {
	LogisticNum string
	PONum       string
	SKU         string
	Quantity    int64
	UnitPrice   decimal.Decimal
	Date        time.Time
}

// Posting is what the Writer produced for one Entry. Skipped is true when
// the RefKey already existed and nothing was written.
type Posting struct {
	RefKey      RefKey
	Skipped     bool
	Transaction *Transaction
	Layer       *Layer
	LandedPrice *LandedPrice
}
