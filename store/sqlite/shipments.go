package sqlite

import (
	"context"
	"fmt"

	"github.com/warp/receive-engine/reconcile"
)

// =============================================================================
// SHIPMENTS
// =============================================================================

const shipmentColumns = `id, logistic_num, parent_logistic_num, sent_date, note, created_at`

// Shipment returns the shipment with its items, or nil.
func (qs *queries) Shipment(ctx context.Context, logisticNum string) (*reconcile.Shipment, error) {
	var sh reconcile.Shipment
	ok, err := qs.get(ctx, &sh, `SELECT `+shipmentColumns+` FROM shipments WHERE logistic_num = ?`, logisticNum)
	if err != nil || !ok {
		return nil, err
	}
	return qs.withItems(ctx, &sh)
}

func (qs *queries) ShipmentByID(ctx context.Context, id int64) (*reconcile.Shipment, error) {
	var sh reconcile.Shipment
	ok, err := qs.get(ctx, &sh, `SELECT `+shipmentColumns+` FROM shipments WHERE id = ?`, id)
	if err != nil || !ok {
		return nil, err
	}
	return qs.withItems(ctx, &sh)
}

func (qs *queries) withItems(ctx context.Context, sh *reconcile.Shipment) (*reconcile.Shipment, error) {
	sh.Items = []reconcile.ShipmentItem{}
	err := qs.selectAll(ctx, &sh.Items, `
		SELECT id, shipment_id, logistic_num, po_num, sku, quantity, unit_price
		FROM shipment_items WHERE shipment_id = ? ORDER BY id`, sh.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load shipment items: %w", err)
	}
	return sh, nil
}

func (qs *queries) ShipmentItem(ctx context.Context, logisticNum, sku string) (*reconcile.ShipmentItem, error) {
	var it reconcile.ShipmentItem
	ok, err := qs.get(ctx, &it, `
		SELECT id, shipment_id, logistic_num, po_num, sku, quantity, unit_price
		FROM shipment_items WHERE logistic_num = ? AND sku = ?`, logisticNum, sku)
	if err != nil || !ok {
		return nil, err
	}
	return &it, nil
}

func (qs *queries) CountChildShipments(ctx context.Context, parentLogisticNum string) (int, error) {
	var n int
	_, err := qs.get(ctx, &n, `SELECT COUNT(*) FROM shipments WHERE parent_logistic_num = ?`, parentLogisticNum)
	return n, err
}

// CreateShipment inserts the shipment and its items. Item shipment IDs and
// logistic numbers are filled in from the shipment.
func (qs *queries) CreateShipment(ctx context.Context, sh *reconcile.Shipment) error {
	id, err := qs.insert(ctx, `
		INSERT INTO shipments (logistic_num, parent_logistic_num, sent_date, note, created_at)
		VALUES (:logistic_num, :parent_logistic_num, :sent_date, :note, :created_at)`, sh)
	if err != nil {
		return fmt.Errorf("failed to insert shipment %s: %w", sh.LogisticNum, err)
	}
	sh.ID = id

	for i := range sh.Items {
		it := &sh.Items[i]
		it.ShipmentID = sh.ID
		it.LogisticNum = sh.LogisticNum
		id, err := qs.insert(ctx, `
			INSERT INTO shipment_items (shipment_id, logistic_num, po_num, sku, quantity, unit_price)
			VALUES (:shipment_id, :logistic_num, :po_num, :sku, :quantity, :unit_price)`, it)
		if err != nil {
			return fmt.Errorf("failed to insert shipment item %s/%s: %w", sh.LogisticNum, it.SKU, err)
		}
		it.ID = id
	}
	return nil
}

func (qs *queries) UpdateShipmentItemQuantity(ctx context.Context, id int64, qty int64) error {
	return qs.exec(ctx, "shipment item", `UPDATE shipment_items SET quantity = ? WHERE id = ?`, qty, id)
}

// =============================================================================
// PURCHASE ORDER ITEMS
// =============================================================================

func (qs *queries) POItem(ctx context.Context, poNum, sku string) (*reconcile.POItem, error) {
	var it reconcile.POItem
	ok, err := qs.get(ctx, &it, `
		SELECT id, po_num, sku, quantity, unit_price
		FROM purchase_order_items WHERE po_num = ? AND sku = ?`, poNum, sku)
	if err != nil || !ok {
		return nil, err
	}
	return &it, nil
}

func (qs *queries) UpdatePOItemQuantity(ctx context.Context, id int64, qty int64) error {
	return qs.exec(ctx, "purchase order item", `UPDATE purchase_order_items SET quantity = ? WHERE id = ?`, qty, id)
}

// UpsertPOItem creates or overwrites the PO line {poNum, sku}. Purchasing
// CRUD owns these rows; this is the seeding entry point for it and for tests.
func (qs *queries) UpsertPOItem(ctx context.Context, it *reconcile.POItem) error {
	query, args, err := qs.q.BindNamed(`
		INSERT INTO purchase_order_items (po_num, sku, quantity, unit_price)
		VALUES (:po_num, :sku, :quantity, :unit_price)
		ON CONFLICT (po_num, sku) DO UPDATE SET
			quantity = excluded.quantity,
			unit_price = excluded.unit_price
		RETURNING id`, it)
	if err != nil {
		return err
	}
	if _, err := qs.get(ctx, &it.ID, query, args...); err != nil {
		return fmt.Errorf("failed to upsert purchase order item %s/%s: %w", it.PONum, it.SKU, err)
	}
	return nil
}
