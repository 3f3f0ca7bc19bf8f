package sqlite

import (
	"context"
	"fmt"

	"github.com/warp/receive-engine/fifo"
)

// =============================================================================
// FIFO LEDGER (fifo.Store / fifo.Reader)
// =============================================================================

func (qs *queries) TransactionExists(ctx context.Context, key fifo.RefKey) (bool, error) {
	var n int
	_, err := qs.get(ctx, &n, `SELECT COUNT(*) FROM fifo_transactions WHERE ref_key = ?`, key)
	return n > 0, err
}

func (qs *queries) InsertTransaction(ctx context.Context, t *fifo.Transaction) error {
	id, err := qs.insert(ctx, `
		INSERT INTO fifo_transactions
		(ref_key, sku, "action", tran_type, quantity, unit_price, tran_date, note, created_at)
		VALUES
		(:ref_key, :sku, :action, :tran_type, :quantity, :unit_price, :tran_date, :note, :created_at)`, t)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fifo.ErrDuplicateRefKey
		}
		return fmt.Errorf("failed to insert fifo transaction: %w", err)
	}
	t.ID = id
	return nil
}

func (qs *queries) InsertLayer(ctx context.Context, l *fifo.Layer) error {
	id, err := qs.insert(ctx, `
		INSERT INTO fifo_layers
		(in_tran_id, sku, qty_in, qty_remaining, unit_cost, landed_cost, in_date, created_at)
		VALUES
		(:in_tran_id, :sku, :qty_in, :qty_remaining, :unit_cost, :landed_cost, :in_date, :created_at)`, l)
	if err != nil {
		return fmt.Errorf("failed to insert fifo layer: %w", err)
	}
	l.ID = id
	return nil
}

func (qs *queries) InsertLandedPrice(ctx context.Context, lp *fifo.LandedPrice) error {
	id, err := qs.insert(ctx, `
		INSERT INTO landed_prices
		(fifo_tran_id, fifo_layer_id, logistic_num, po_num, sku, quantity, base_price_usd, landed_price_usd, created_at)
		VALUES
		(:fifo_tran_id, :fifo_layer_id, :logistic_num, :po_num, :sku, :quantity, :base_price_usd, :landed_price_usd, :created_at)`, lp)
	if err != nil {
		return fmt.Errorf("failed to insert landed price: %w", err)
	}
	lp.ID = id
	return nil
}

func (qs *queries) Transactions(ctx context.Context, sku string) ([]fifo.Transaction, error) {
	var out []fifo.Transaction
	err := qs.selectAll(ctx, &out, `
		SELECT id, ref_key, sku, "action", tran_type, quantity, unit_price, tran_date, note, created_at
		FROM fifo_transactions WHERE (? = '' OR sku = ?) ORDER BY id`, sku, sku)
	return out, err
}

// Layers returns layers oldest first, the order FIFO consumption walks them.
func (qs *queries) Layers(ctx context.Context, sku string) ([]fifo.Layer, error) {
	var out []fifo.Layer
	err := qs.selectAll(ctx, &out, `
		SELECT id, in_tran_id, sku, qty_in, qty_remaining, unit_cost, landed_cost, in_date, created_at
		FROM fifo_layers WHERE (? = '' OR sku = ?) ORDER BY in_date, id`, sku, sku)
	return out, err
}

func (qs *queries) LandedPrices(ctx context.Context, sku string) ([]fifo.LandedPrice, error) {
	var out []fifo.LandedPrice
	err := qs.selectAll(ctx, &out, `
		SELECT id, fifo_tran_id, fifo_layer_id, logistic_num, po_num, sku, quantity,
		       base_price_usd, landed_price_usd, created_at
		FROM landed_prices WHERE (? = '' OR sku = ?) ORDER BY id`, sku, sku)
	return out, err
}
