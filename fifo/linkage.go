package fifo

import (
	"context"
	"fmt"
	"strings"
)

// LinkageViolation describes one broken reference or initial-state mismatch.
type LinkageViolation struct {
	Table  string
	ID     int64
	Reason string
}

func (v LinkageViolation) String() string {
	return fmt.Sprintf("%s#%d: %s", v.Table, v.ID, v.Reason)
}

// LinkageError wraps every violation found by VerifyLinkage.
type LinkageError struct {
	Violations []LinkageViolation
}

func (e *LinkageError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return "fifo linkage broken: " + strings.Join(parts, "; ")
}

// CheckLinkage verifies references between the three record sets and the
// creation-time state of every layer. Nothing here consumes layers, so a
// layer must still hold qty_remaining == qty_in and unit_cost == landed_cost.
func CheckLinkage(txs []Transaction, layers []Layer, prices []LandedPrice) []LinkageViolation {
	tranIDs := make(map[int64]bool, len(txs))
	for _, t := range txs {
		tranIDs[t.ID] = true
	}
	layerIDs := make(map[int64]bool, len(layers))

	var out []LinkageViolation
	for _, l := range layers {
		layerIDs[l.ID] = true
		if !tranIDs[l.InTranID] {
			out = append(out, LinkageViolation{"fifo_layers", l.ID, fmt.Sprintf("in_tran_id %d missing", l.InTranID)})
		}
		if l.QtyRemaining != l.QtyIn {
			out = append(out, LinkageViolation{"fifo_layers", l.ID, fmt.Sprintf("qty_remaining %d != qty_in %d", l.QtyRemaining, l.QtyIn)})
		}
		if !l.UnitCost.Equal(l.LandedCost) {
			out = append(out, LinkageViolation{"fifo_layers", l.ID, fmt.Sprintf("unit_cost %s != landed_cost %s", l.UnitCost, l.LandedCost)})
		}
	}
	for _, p := range prices {
		if !tranIDs[p.FifoTranID] {
			out = append(out, LinkageViolation{"landed_prices", p.ID, fmt.Sprintf("fifo_tran_id %d missing", p.FifoTranID)})
		}
		if !layerIDs[p.FifoLayerID] {
			out = append(out, LinkageViolation{"landed_prices", p.ID, fmt.Sprintf("fifo_layer_id %d missing", p.FifoLayerID)})
		}
	}
	return out
}

// VerifyLinkage loads the ledger for sku (all SKUs when empty) and returns a
// *LinkageError if CheckLinkage finds anything.
func VerifyLinkage(ctx context.Context, r Reader, sku string) error {
	txs, err := r.Transactions(ctx, sku)
	if err != nil {
		return err
	}
	layers, err := r.Layers(ctx, sku)
	if err != nil {
		return err
	}
	prices, err := r.LandedPrices(ctx, sku)
	if err != nil {
		return err
	}
	if v := CheckLinkage(txs, layers, prices); len(v) > 0 {
		return &LinkageError{Violations: v}
	}
	return nil
}
