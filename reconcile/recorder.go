/*
recorder.go - Receive Recorder and Diff Detector

One submission = one transaction:
  for each line
    1. load ShipmentItem{logisticNum, sku}      (NotFound if absent)
       a receive already recorded for the sku   (Conflict, nothing written)
    2. insert Receive, sentQuantity copied from the shipment item
    3. insert ReceiveDiff iff sent != received  (DetectDiff)
    4. post to the FIFO ledger if received > 0  (idempotent on RefKey)

Lines are evaluated independently: an exact-match SKU next to a short SKU
only produces a diff for the short one.
*/
package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/warp/receive-engine/fifo"
)

// SubmitReceive records a warehouse receipt against a shipment.
func (s *Service) SubmitReceive(ctx context.Context, sub ReceiveSubmission) ([]Receive, error) {
	if err := validateSubmission(sub); err != nil {
		return nil, err
	}

	var (
		out     []Receive
		diffs   int
		skipped int
	)
	err := s.withLock(ctx, sub.LogisticNum, func() error {
		return s.store.WithTx(ctx, func(tx Store) error {
			out, diffs, skipped = nil, 0, 0
			now := s.now()

			existing, err := tx.ReceivesByLogisticNum(ctx, sub.LogisticNum)
			if err != nil {
				return fmt.Errorf("load receives: %w", err)
			}
			recorded := make(map[string]int64, len(existing))
			for _, r := range existing {
				recorded[r.SKU] = r.ID
			}

			for _, line := range sub.Items {
				item, err := tx.ShipmentItem(ctx, sub.LogisticNum, line.SKU)
				if err != nil {
					return fmt.Errorf("load shipment item: %w", err)
				}
				if item == nil {
					return notFound("shipment item", sub.LogisticNum+"/"+line.SKU)
				}
				if id, ok := recorded[line.SKU]; ok {
					return &ConflictError{
						Key:    fifo.ReceiveRefKey(sub.LogisticNum, line.SKU).String(),
						Reason: fmt.Sprintf("already received as receive %d", id),
					}
				}

				r := Receive{
					LogisticNum:     sub.LogisticNum,
					PONum:           item.PONum,
					SKU:             line.SKU,
					SentQuantity:    item.Quantity,
					ReceiveQuantity: line.ReceiveQuantity,
					UnitPrice:       line.UnitPrice,
					ReceiveDate:     DateOnly(line.ReceiveDate),
					Operator:        sub.Operator,
					CreatedAt:       now,
				}
				if err := tx.InsertReceive(ctx, &r); err != nil {
					return fmt.Errorf("insert receive: %w", err)
				}

				if d := DetectDiff(r, now); d != nil {
					if err := tx.InsertDiff(ctx, d); err != nil {
						return fmt.Errorf("insert receive diff: %w", err)
					}
					r.Diff = d
					diffs++
				}

				posting, err := s.ledger.Write(ctx, tx, fifo.Entry{
					LogisticNum: r.LogisticNum,
					PONum:       r.PONum,
					SKU:         r.SKU,
					Quantity:    r.ReceiveQuantity,
					UnitPrice:   r.UnitPrice,
					Date:        r.ReceiveDate,
				})
				if err != nil {
					return err
				}
				if posting != nil && posting.Skipped {
					skipped++
				}

				out = append(out, r)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("receive recorded",
		zap.String("logistic_num", sub.LogisticNum),
		zap.Int("lines", len(out)),
		zap.Int("diffs", diffs),
		zap.Int("ledger_skipped", skipped),
		zap.String("operator", sub.Operator))
	return out, nil
}

// DetectDiff returns the discrepancy for r, or nil when the quantities match.
func DetectDiff(r Receive, at time.Time) *ReceiveDiff {
	if r.SentQuantity == r.ReceiveQuantity {
		return nil
	}
	return &ReceiveDiff{
		ReceiveID:       r.ID,
		LogisticNum:     r.LogisticNum,
		PONum:           r.PONum,
		SKU:             r.SKU,
		SentQuantity:    r.SentQuantity,
		ReceiveQuantity: r.ReceiveQuantity,
		DiffQuantity:    r.SentQuantity - r.ReceiveQuantity,
		Status:          DiffPending,
		CreatedAt:       at,
		UpdatedAt:       at,
	}
}

func validateSubmission(sub ReceiveSubmission) error {
	if sub.LogisticNum == "" {
		return invalid("logisticNum", "required")
	}
	if len(sub.Items) == 0 {
		return invalid("items", "at least one item is required")
	}
	seen := make(map[string]bool, len(sub.Items))
	for i, line := range sub.Items {
		field := fmt.Sprintf("items[%d]", i)
		switch {
		case line.SKU == "":
			return invalid(field+".sku", "required")
		case seen[line.SKU]:
			return invalid(field+".sku", "duplicate sku %s in one submission", line.SKU)
		case line.ReceiveQuantity < 0:
			return invalid(field+".receiveQuantity", "must not be negative")
		case line.UnitPrice.IsNegative():
			return invalid(field+".unitPrice", "must not be negative")
		case line.ReceiveDate.IsZero():
			return invalid(field+".receiveDate", "required")
		}
		seen[line.SKU] = true
	}
	return nil
}
