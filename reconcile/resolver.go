package reconcile

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

// ResolveDiff acknowledges a pending diff. The quantities are kept as they
// are and no event is written. Resolving a diff twice is a NotFound.
func (s *Service) ResolveDiff(ctx context.Context, id int64, note string) (*ReceiveDiff, error) {
	key := strconv.FormatInt(id, 10)

	current, err := s.store.Diff(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load diff: %w", err)
	}
	if current == nil {
		return nil, notFound("receive diff", key)
	}

	var out *ReceiveDiff
	err = s.withLock(ctx, current.LogisticNum, func() error {
		return s.store.WithTx(ctx, func(tx Store) error {
			d, err := tx.Diff(ctx, id)
			if err != nil {
				return fmt.Errorf("load diff: %w", err)
			}
			if d == nil {
				return notFound("receive diff", key)
			}
			if !d.IsPending() {
				return &NotFoundError{Entity: "pending receive diff", Key: key, Reason: "already resolved"}
			}

			d.Status = DiffResolved
			d.ResolutionNote = note
			d.UpdatedAt = s.now()
			if err := tx.UpdateDiff(ctx, d); err != nil {
				return fmt.Errorf("update diff: %w", err)
			}
			out = d
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("diff resolved",
		zap.Int64("diff_id", id),
		zap.String("logistic_num", out.LogisticNum),
		zap.String("sku", out.SKU),
		zap.Int64("diff_qty", out.DiffQuantity))
	return out, nil
}
