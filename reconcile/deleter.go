package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DeleteAbnormal closes out a logistic shipment whose diffs are all
// resolved. Each diff gets DeletedAt and the deletion marker in front of
// its note, and one DELETED event is appended. A non-nil receiveDate limits
// the deletion to diffs received on that day; the pending check always
// covers the whole shipment.
func (s *Service) DeleteAbnormal(ctx context.Context, logisticNum string, receiveDate *time.Time, operator string) (*DeleteResult, error) {
	if logisticNum == "" {
		return nil, invalid("logisticNum", "required")
	}

	var result DeleteResult
	err := s.withLock(ctx, logisticNum, func() error {
		return s.store.WithTx(ctx, func(tx Store) error {
			result = DeleteResult{}

			all, err := diffTargets(ctx, tx, logisticNum, nil)
			if err != nil {
				return err
			}
			if len(all) == 0 {
				return &NotFoundError{Entity: "abnormal shipment", Key: logisticNum, Reason: "has no receive diffs"}
			}

			pending := 0
			for _, t := range all {
				if t.diff.IsPending() {
					pending++
				}
			}
			if pending > 0 {
				return invalid("logisticNum", "%s still has %d pending diffs", logisticNum, pending)
			}

			var targets []target
			for _, t := range all {
				if receiveDate != nil && !sameDay(t.receive.ReceiveDate, *receiveDate) {
					continue
				}
				if t.diff.IsDeleted() {
					return invalid("logisticNum", "%s is already deleted", logisticNum)
				}
				targets = append(targets, t)
			}
			if len(targets) == 0 {
				return &NotFoundError{Entity: "abnormal shipment", Key: logisticNum, Reason: "no diffs on the given receive date"}
			}

			now := s.now()
			before := Snapshot{DiffSnapshot: DiffSnapshot{Status: DiffResolved}}
			after := Snapshot{DiffSnapshot: DiffSnapshot{Status: DiffStatus(AbnormalDeleted)}}

			for _, t := range targets {
				d := t.diff
				before.Diffs = append(before.Diffs, snapshotOf(d))

				d.ResolutionNote = markDeleted(d.ResolutionNote)
				d.DeletedAt = &now
				d.UpdatedAt = now
				if err := tx.UpdateDiff(ctx, &d); err != nil {
					return fmt.Errorf("update diff: %w", err)
				}
				after.Diffs = append(after.Diffs, snapshotOf(d))
			}

			changes := EventChanges{Before: before, After: after}
			if _, err := s.appendEvent(ctx, tx, logisticNum, EventDeleted, changes, DeletedMarker, operator); err != nil {
				return err
			}
			result.DeletedCount = len(targets)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("abnormal deleted",
		zap.String("logistic_num", logisticNum),
		zap.Int("deleted", result.DeletedCount),
		zap.String("operator", operator))
	return &result, nil
}
