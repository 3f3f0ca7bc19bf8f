/*
writer.go - Inbound posting for received goods

Each received line with a positive quantity produces exactly one
Transaction -> Layer -> LandedPrice chain, written in that order so each row
can reference the IDs of the previous ones.

IDEMPOTENCY:
  The RefKey is checked first; an existing key makes the write a no-op and
  the Posting comes back with Skipped=true. A concurrent writer that slips
  past the check is caught by the unique index and reported the same way.

INITIAL COST:
  qtyRemaining = qtyIn and unitCost = landedCost = unitPrice. Base and
  landed USD prices are equal at creation; apportionment happens elsewhere.
*/
package fifo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type Writer struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewWriter(logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Write posts e through store. Entries with a non-positive quantity are
// ignored and return a nil Posting.
func (w *Writer) Write(ctx context.Context, store Store, e Entry) (*Posting, error) {
	if e.Quantity <= 0 {
		return nil, nil
	}

	key := ReceiveRefKey(e.LogisticNum, e.SKU)
	exists, err := store.TransactionExists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("check ref key %s: %w", key, err)
	}
	if exists {
		w.logger.Warn("fifo posting skipped, ref key exists",
			zap.String("ref_key", key.String()),
			zap.String("logistic_num", e.LogisticNum),
			zap.String("sku", e.SKU))
		return &Posting{RefKey: key, Skipped: true}, nil
	}

	now := w.now()
	tran := &Transaction{
		RefKey:    key,
		SKU:       e.SKU,
		Action:    ActionIn,
		TranType:  TranTypePurchase,
		Quantity:  e.Quantity,
		UnitPrice: e.UnitPrice,
		TranDate:  e.Date,
		Note:      fmt.Sprintf("receive from shipment %s", e.LogisticNum),
		CreatedAt: now,
	}
	if err := store.InsertTransaction(ctx, tran); err != nil {
		if errors.Is(err, ErrDuplicateRefKey) {
			return &Posting{RefKey: key, Skipped: true}, nil
		}
		return nil, fmt.Errorf("insert fifo transaction: %w", err)
	}

	layer := &Layer{
		InTranID:     tran.ID,
		SKU:          e.SKU,
		QtyIn:        e.Quantity,
		QtyRemaining: e.Quantity,
		UnitCost:     e.UnitPrice,
		LandedCost:   e.UnitPrice,
		InDate:       e.Date,
		CreatedAt:    now,
	}
	if err := store.InsertLayer(ctx, layer); err != nil {
		return nil, fmt.Errorf("insert fifo layer: %w", err)
	}

	lp := &LandedPrice{
		FifoTranID:     tran.ID,
		FifoLayerID:    layer.ID,
		LogisticNum:    e.LogisticNum,
		PONum:          e.PONum,
		SKU:            e.SKU,
		Quantity:       e.Quantity,
		BasePriceUSD:   e.UnitPrice,
		LandedPriceUSD: e.UnitPrice,
		CreatedAt:      now,
	}
	if err := store.InsertLandedPrice(ctx, lp); err != nil {
		return nil, fmt.Errorf("insert landed price: %w", err)
	}

	w.logger.Debug("fifo layer created",
		zap.String("ref_key", key.String()),
		zap.Int64("tran_id", tran.ID),
		zap.Int64("layer_id", layer.ID),
		zap.Int64("qty", e.Quantity))

	return &Posting{RefKey: key, Transaction: tran, Layer: layer, LandedPrice: lp}, nil
}
