/*
audit.go - Append-only event trail per logistic shipment

SEQUENCING:
  eventSeq = MAX(event_seq for logisticNum) + 1, computed inside the caller's
  transaction while the logisticNum lock is held. The unique index on
  (logistic_num, event_seq) is the backstop: a writer that races past the
  lock fails with ErrDuplicateEventSeq, surfaced as a ConflictError, and its
  whole transaction rolls back.

Events are never updated or deleted.
*/
package reconcile

import (
	"context"
	"errors"
	"fmt"
)

func (s *Service) appendEvent(
	ctx context.Context,
	tx Store,
	logisticNum string,
	eventType EventType,
	changes EventChanges,
	note, operator string,
) (*DiffEvent, error) {
	maxSeq, err := tx.MaxEventSeq(ctx, logisticNum)
	if err != nil {
		return nil, fmt.Errorf("read event sequence: %w", err)
	}

	e := &DiffEvent{
		UID:         s.newUID(),
		LogisticNum: logisticNum,
		EventType:   eventType,
		EventSeq:    maxSeq + 1,
		Changes:     changes,
		Note:        note,
		Operator:    operator,
		CreatedAt:   s.now(),
	}
	if err := tx.InsertEvent(ctx, e); err != nil {
		if errors.Is(err, ErrDuplicateEventSeq) {
			return nil, &ConflictError{
				Key:    fmt.Sprintf("%s#%d", logisticNum, e.EventSeq),
				Reason: "event sequence already taken",
				Err:    err,
			}
		}
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return e, nil
}

// History returns the events of logisticNum ordered by eventSeq. No events
// is an empty list, not an error.
func (s *Service) History(ctx context.Context, logisticNum string) ([]DiffEvent, error) {
	events, err := s.store.Events(ctx, logisticNum)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	if events == nil {
		events = []DiffEvent{}
	}
	return events, nil
}

func snapshotOf(d ReceiveDiff) DiffSnapshot {
	return DiffSnapshot{
		DiffID:          d.ID,
		SKU:             d.SKU,
		PONum:           d.PONum,
		Status:          d.Status,
		SentQuantity:    d.SentQuantity,
		ReceiveQuantity: d.ReceiveQuantity,
		DiffQuantity:    d.DiffQuantity,
		ResolutionNote:  d.ResolutionNote,
	}
}
