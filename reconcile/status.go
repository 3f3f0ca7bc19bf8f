/*
status.go - Status Deriver and the abnormal read views

The aggregate status of a logistic shipment is never stored:

  any diff deleted (DeletedAt set or note carries DeletedMarker) -> deleted
  sum(|diffQuantity|) == 0                                       -> resolved
  otherwise                                                      -> pending

A shipment without diffs was never abnormal and has no status.

The status column of a diff is not consulted: a manually resolved diff keeps
its diffQuantity, so its shipment still derives as pending until a
correction zeroes it.
*/
package reconcile

import (
	"context"
	"fmt"
	"strings"
)

// DeletedMarker prefixes the resolution note of every deleted diff. Rows
// written before the deleted_at column existed carry only the marker.
const DeletedMarker = "删除异常处理"

func HasDeletedMarker(note string) bool {
	return strings.HasPrefix(note, DeletedMarker)
}

func markDeleted(note string) string {
	if note == "" {
		return DeletedMarker
	}
	return DeletedMarker + " " + note
}

// DeriveStatus returns the aggregate status of diffs. ok is false when
// there are none.
func DeriveStatus(diffs []ReceiveDiff) (status AbnormalStatus, ok bool) {
	if len(diffs) == 0 {
		return "", false
	}
	var total int64
	for _, d := range diffs {
		if d.IsDeleted() {
			return AbnormalDeleted, true
		}
		total += abs(d.DiffQuantity)
	}
	if total == 0 {
		return AbnormalResolved, true
	}
	return AbnormalPending, true
}

// Summarize totals diffs for the detail view. TotalDiff is signed;
// UnderReceived and OverReceived are both reported as positive amounts.
func Summarize(diffs []ReceiveDiff) DetailSummary {
	var sum DetailSummary
	skus := make(map[string]struct{}, len(diffs))
	for _, d := range diffs {
		skus[d.SKU] = struct{}{}
		sum.TotalDiff += d.DiffQuantity
		switch {
		case d.DiffQuantity > 0:
			sum.UnderReceived += d.DiffQuantity
		case d.DiffQuantity < 0:
			sum.OverReceived -= d.DiffQuantity
		}
	}
	sum.TotalSKUs = len(skus)
	return sum
}

// ListAbnormal lists every logistic shipment with at least one diff,
// optionally filtered by derived status ("" means all).
func (s *Service) ListAbnormal(ctx context.Context, status string) ([]AbnormalSummary, error) {
	var filter AbnormalStatus
	if status != "" {
		st, err := ParseAbnormalStatus(status)
		if err != nil {
			return nil, err
		}
		filter = st
	}

	diffs, err := s.store.AllDiffs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load diffs: %w", err)
	}

	var order []string
	groups := make(map[string][]ReceiveDiff)
	for _, d := range diffs {
		if _, seen := groups[d.LogisticNum]; !seen {
			order = append(order, d.LogisticNum)
		}
		groups[d.LogisticNum] = append(groups[d.LogisticNum], d)
	}

	out := make([]AbnormalSummary, 0, len(order))
	for _, ln := range order {
		group := groups[ln]
		st, _ := DeriveStatus(group)
		if filter != "" && st != filter {
			continue
		}
		out = append(out, AbnormalSummary{
			LogisticNum: ln,
			SKUCount:    Summarize(group).TotalSKUs,
			Status:      st,
		})
	}
	return out, nil
}

// AbnormalDetail returns the diffs of logisticNum and their totals. A
// shipment without diffs yields empty items and a zero summary.
func (s *Service) AbnormalDetail(ctx context.Context, logisticNum string) (*AbnormalDetail, error) {
	diffs, err := s.store.DiffsByLogisticNum(ctx, logisticNum)
	if err != nil {
		return nil, fmt.Errorf("load diffs: %w", err)
	}
	if diffs == nil {
		diffs = []ReceiveDiff{}
	}
	st, _ := DeriveStatus(diffs)
	return &AbnormalDetail{
		LogisticNum: logisticNum,
		Status:      st,
		Items:       diffs,
		Summary:     Summarize(diffs),
	}, nil
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
