package sqlite

import (
	"context"
	"fmt"

	"github.com/warp/receive-engine/reconcile"
)

// =============================================================================
// RECEIVES
// =============================================================================

const receiveColumns = `id, logistic_num, po_num, sku, sent_quantity, receive_quantity,
	unit_price, receive_date, operator, created_at`

func (qs *queries) InsertReceive(ctx context.Context, r *reconcile.Receive) error {
	id, err := qs.insert(ctx, `
		INSERT INTO receives
		(logistic_num, po_num, sku, sent_quantity, receive_quantity, unit_price, receive_date, operator, created_at)
		VALUES
		(:logistic_num, :po_num, :sku, :sent_quantity, :receive_quantity, :unit_price, :receive_date, :operator, :created_at)`, r)
	if err != nil {
		return fmt.Errorf("failed to insert receive: %w", err)
	}
	r.ID = id
	return nil
}

func (qs *queries) Receive(ctx context.Context, id int64) (*reconcile.Receive, error) {
	var r reconcile.Receive
	ok, err := qs.get(ctx, &r, `SELECT `+receiveColumns+` FROM receives WHERE id = ?`, id)
	if err != nil || !ok {
		return nil, err
	}
	return &r, nil
}

func (qs *queries) ReceivesByLogisticNum(ctx context.Context, logisticNum string) ([]reconcile.Receive, error) {
	var out []reconcile.Receive
	err := qs.selectAll(ctx, &out, `SELECT `+receiveColumns+` FROM receives WHERE logistic_num = ? ORDER BY id`, logisticNum)
	return out, err
}

func (qs *queries) UpdateReceiveSentQuantity(ctx context.Context, id int64, qty int64) error {
	return qs.exec(ctx, "receive", `UPDATE receives SET sent_quantity = ? WHERE id = ?`, qty, id)
}

// =============================================================================
// DIFFS
// =============================================================================

const diffColumns = `id, receive_id, logistic_num, po_num, sku, sent_quantity, receive_quantity,
	diff_quantity, status, resolution_note, deleted_at, created_at, updated_at`

func (qs *queries) InsertDiff(ctx context.Context, d *reconcile.ReceiveDiff) error {
	id, err := qs.insert(ctx, `
		INSERT INTO receive_diffs
		(receive_id, logistic_num, po_num, sku, sent_quantity, receive_quantity, diff_quantity,
		 status, resolution_note, deleted_at, created_at, updated_at)
		VALUES
		(:receive_id, :logistic_num, :po_num, :sku, :sent_quantity, :receive_quantity, :diff_quantity,
		 :status, :resolution_note, :deleted_at, :created_at, :updated_at)`, d)
	if err != nil {
		return fmt.Errorf("failed to insert receive diff: %w", err)
	}
	d.ID = id
	return nil
}

// UpdateDiff writes the mutable part of a diff: status, quantity, note and
// the deletion timestamp.
func (qs *queries) UpdateDiff(ctx context.Context, d *reconcile.ReceiveDiff) error {
	return qs.exec(ctx, "receive diff", `
		UPDATE receive_diffs
		SET status = ?, diff_quantity = ?, resolution_note = ?, deleted_at = ?, updated_at = ?
		WHERE id = ?`,
		d.Status, d.DiffQuantity, d.ResolutionNote, d.DeletedAt, d.UpdatedAt, d.ID)
}

func (qs *queries) Diff(ctx context.Context, id int64) (*reconcile.ReceiveDiff, error) {
	var d reconcile.ReceiveDiff
	ok, err := qs.get(ctx, &d, `SELECT `+diffColumns+` FROM receive_diffs WHERE id = ?`, id)
	if err != nil || !ok {
		return nil, err
	}
	return &d, nil
}

func (qs *queries) DiffsByReceive(ctx context.Context, receiveID int64) ([]reconcile.ReceiveDiff, error) {
	return qs.diffs(ctx, `WHERE receive_id = ?`, receiveID)
}

func (qs *queries) DiffsByLogisticNum(ctx context.Context, logisticNum string) ([]reconcile.ReceiveDiff, error) {
	return qs.diffs(ctx, `WHERE logistic_num = ?`, logisticNum)
}

func (qs *queries) PendingDiffs(ctx context.Context) ([]reconcile.ReceiveDiff, error) {
	return qs.diffs(ctx, `WHERE status = 'pending'`)
}

func (qs *queries) AllDiffs(ctx context.Context) ([]reconcile.ReceiveDiff, error) {
	return qs.diffs(ctx, ``)
}

func (qs *queries) diffs(ctx context.Context, where string, args ...any) ([]reconcile.ReceiveDiff, error) {
	var out []reconcile.ReceiveDiff
	err := qs.selectAll(ctx, &out, `SELECT `+diffColumns+` FROM receive_diffs `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query receive diffs: %w", err)
	}
	return out, nil
}

// =============================================================================
// EVENTS (append-only)
// =============================================================================

func (qs *queries) MaxEventSeq(ctx context.Context, logisticNum string) (int, error) {
	var n int
	_, err := qs.get(ctx, &n, `SELECT COALESCE(MAX(event_seq), 0) FROM receive_diff_events WHERE logistic_num = ?`, logisticNum)
	return n, err
}

func (qs *queries) InsertEvent(ctx context.Context, e *reconcile.DiffEvent) error {
	id, err := qs.insert(ctx, `
		INSERT INTO receive_diff_events
		(uid, logistic_num, event_type, event_seq, changes, note, operator, created_at)
		VALUES
		(:uid, :logistic_num, :event_type, :event_seq, :changes, :note, :operator, :created_at)`, e)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s#%d", reconcile.ErrDuplicateEventSeq, e.LogisticNum, e.EventSeq)
		}
		return fmt.Errorf("failed to insert event: %w", err)
	}
	e.ID = id
	return nil
}

func (qs *queries) Events(ctx context.Context, logisticNum string) ([]reconcile.DiffEvent, error) {
	var out []reconcile.DiffEvent
	err := qs.selectAll(ctx, &out, `
		SELECT id, uid, logistic_num, event_type, event_seq, changes, note, operator, created_at
		FROM receive_diff_events WHERE logistic_num = ? ORDER BY event_seq`, logisticNum)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	return out, nil
}
