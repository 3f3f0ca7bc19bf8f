/*
processor.go - Abnormal Processor

FLOW (one transaction, logisticNum locked):
  1. load diffs of logisticNum (optionally narrowed to one receive date)
  2. for each pending diff, pick the code from poMethods[diff.poNum] by sign
       no method for that sign -> skip, diff stays pending
  3. strategy.Plan(...) -> MutationSet
  4. apply: shipment item, PO item, receive row, child shipment, diff
  5. append one PROCESS_M{n} event with before/after snapshots

Any failure inside step 3-5 rolls back every diff of the request: the
caller sees all of it or none of it.
*/
package reconcile

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// target pairs a diff with the receive row it was detected on.
type target struct {
	diff    ReceiveDiff
	receive Receive
}

// ProcessAbnormal applies the caller-selected correction strategy to every
// pending diff of req.LogisticNum that has a method configured for its PO
// and sign.
func (s *Service) ProcessAbnormal(ctx context.Context, req ProcessRequest) (*ProcessResult, error) {
	if err := validateProcessRequest(req); err != nil {
		return nil, err
	}

	var result ProcessResult
	err := s.withLock(ctx, req.LogisticNum, func() error {
		return s.store.WithTx(ctx, func(tx Store) error {
			result = ProcessResult{Details: []string{}}

			targets, err := diffTargets(ctx, tx, req.LogisticNum, req.ReceiveDate)
			if err != nil {
				return err
			}

			for _, t := range targets {
				if !t.diff.IsPending() || t.diff.IsDeleted() {
					continue
				}
				code, ok := req.POMethods[t.diff.PONum].CodeFor(t.diff.DiffQuantity)
				if !ok {
					s.logger.Debug("diff left pending, no method for po",
						zap.Int64("diff_id", t.diff.ID),
						zap.String("po_num", t.diff.PONum),
						zap.Int64("diff_qty", t.diff.DiffQuantity))
					continue
				}
				strategy, err := StrategyForCode(code)
				if err != nil {
					return err
				}

				child, err := s.applyStrategy(ctx, tx, req, strategy, t)
				if err != nil {
					return err
				}

				result.ProcessedCount++
				result.Details = append(result.Details, t.diff.SKU+":M"+strconv.Itoa(strategy.Code()))
				if child != "" {
					result.ChildShipments = append(result.ChildShipments, child)
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("abnormal processed",
		zap.String("logistic_num", req.LogisticNum),
		zap.Int("processed", result.ProcessedCount),
		zap.Strings("details", result.Details),
		zap.String("operator", req.Operator))
	return &result, nil
}

func (s *Service) applyStrategy(
	ctx context.Context,
	tx Store,
	req ProcessRequest,
	strategy CorrectionStrategy,
	t target,
) (string, error) {
	d := t.diff

	item, err := tx.ShipmentItem(ctx, d.LogisticNum, d.SKU)
	if err != nil {
		return "", fmt.Errorf("load shipment item: %w", err)
	}
	if item == nil {
		return "", notFound("shipment item", d.LogisticNum+"/"+d.SKU)
	}
	po, err := tx.POItem(ctx, d.PONum, d.SKU)
	if err != nil {
		return "", fmt.Errorf("load purchase order item: %w", err)
	}

	plan, err := strategy.Plan(StrategyInput{
		Diff:         d,
		ShipmentItem: *item,
		POItem:       po,
		Receive:      t.receive,
		DelayDate:    req.DelayDate,
	})
	if err != nil {
		return "", err
	}

	before := snapshotOf(d)
	before.ShipmentQuantity = qty(item.Quantity)
	shipAfter := item.Quantity
	var poAfter *int64
	if po != nil {
		before.POQuantity = qty(po.Quantity)
		poAfter = qty(po.Quantity)
	}

	if v := plan.ShipmentItemQuantity; v != nil {
		if err := tx.UpdateShipmentItemQuantity(ctx, item.ID, *v); err != nil {
			return "", fmt.Errorf("update shipment item: %w", err)
		}
		shipAfter = *v
	}
	if v := plan.POItemQuantity; v != nil {
		if po == nil {
			return "", notFound("purchase order item", d.PONum+"/"+d.SKU)
		}
		if err := tx.UpdatePOItemQuantity(ctx, po.ID, *v); err != nil {
			return "", fmt.Errorf("update purchase order item: %w", err)
		}
		poAfter = qty(*v)
	}
	if v := plan.ReceiveSentQuantity; v != nil {
		if err := tx.UpdateReceiveSentQuantity(ctx, t.receive.ID, *v); err != nil {
			return "", fmt.Errorf("update receive: %w", err)
		}
	}

	var child string
	if plan.ChildShipment != nil {
		child, err = s.createChildShipment(ctx, tx, d.LogisticNum, *plan.ChildShipment)
		if err != nil {
			return "", err
		}
	}

	note := composeNote(req.Note, Marker(strategy), child)
	d.Status = plan.DiffStatus
	d.DiffQuantity = plan.DiffQuantity
	d.ResolutionNote = note
	d.UpdatedAt = s.now()
	if err := tx.UpdateDiff(ctx, &d); err != nil {
		return "", fmt.Errorf("update diff: %w", err)
	}

	after := snapshotOf(d)
	after.ShipmentQuantity = qty(shipAfter)
	after.POQuantity = poAfter

	changes := EventChanges{
		Before: Snapshot{DiffSnapshot: before},
		After:  Snapshot{DiffSnapshot: after, ChildLogisticNum: child},
	}
	if _, err := s.appendEvent(ctx, tx, d.LogisticNum, strategy.EventType(), changes, note, req.Operator); err != nil {
		return "", err
	}
	return child, nil
}

// ChildLogisticNum names the seq-th delayed shipment split off parent.
func ChildLogisticNum(parent string, seq int) string {
	return fmt.Sprintf("%s_delay_V%02d", parent, seq)
}

func (s *Service) createChildShipment(ctx context.Context, tx Store, parent string, plan ChildShipmentPlan) (string, error) {
	n, err := tx.CountChildShipments(ctx, parent)
	if err != nil {
		return "", fmt.Errorf("count child shipments: %w", err)
	}
	name := ChildLogisticNum(parent, n+1)
	sent := DateOnly(plan.SentDate)

	child := &Shipment{
		LogisticNum:       name,
		ParentLogisticNum: parent,
		SentDate:          &sent,
		Note:              "delayed from " + parent,
		CreatedAt:         s.now(),
		Items: []ShipmentItem{{
			LogisticNum: name,
			PONum:       plan.PONum,
			SKU:         plan.SKU,
			Quantity:    plan.Quantity,
			UnitPrice:   plan.UnitPrice,
		}},
	}
	if err := tx.CreateShipment(ctx, child); err != nil {
		return "", fmt.Errorf("create child shipment %s: %w", name, err)
	}
	return name, nil
}

// diffTargets loads the diffs of logisticNum together with their receive
// rows. A non-nil receiveDate keeps only diffs received on that day.
func diffTargets(ctx context.Context, tx Store, logisticNum string, receiveDate *time.Time) ([]target, error) {
	diffs, err := tx.DiffsByLogisticNum(ctx, logisticNum)
	if err != nil {
		return nil, fmt.Errorf("load diffs: %w", err)
	}
	out := make([]target, 0, len(diffs))
	for _, d := range diffs {
		r, err := tx.Receive(ctx, d.ReceiveID)
		if err != nil {
			return nil, fmt.Errorf("load receive: %w", err)
		}
		if r == nil {
			return nil, notFound("receive", strconv.FormatInt(d.ReceiveID, 10))
		}
		if receiveDate != nil && !sameDay(r.ReceiveDate, *receiveDate) {
			continue
		}
		out = append(out, target{diff: d, receive: *r})
	}
	return out, nil
}

func composeNote(note, marker, child string) string {
	parts := make([]string, 0, 3)
	if n := strings.TrimSpace(note); n != "" {
		parts = append(parts, n)
	}
	parts = append(parts, marker)
	if child != "" {
		parts = append(parts, "delay:"+child)
	}
	return strings.Join(parts, " ")
}

func validateProcessRequest(req ProcessRequest) error {
	if req.LogisticNum == "" {
		return invalid("logisticNum", "required")
	}
	if len(req.POMethods) == 0 {
		return invalid("poMethods", "at least one purchase order method is required")
	}
	for _, po := range slices.Sorted(maps.Keys(req.POMethods)) {
		m := req.POMethods[po]
		if m.Positive == nil && m.Negative == nil {
			return invalid("poMethods."+po, "positive or negative strategy code required")
		}
		for _, code := range []*int{m.Positive, m.Negative} {
			if code == nil {
				continue
			}
			if _, err := StrategyForCode(*code); err != nil {
				return invalid("poMethods."+po, "unknown strategy code %d", *code)
			}
		}
	}
	return nil
}
