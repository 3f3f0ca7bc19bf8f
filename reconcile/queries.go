package reconcile

import (
	"context"
	"fmt"
	"strconv"

	"github.com/warp/receive-engine/fifo"
)

// =============================================================================
// READ PATHS - no lock, plain reads
// =============================================================================

func (s *Service) ReceivesByShipment(ctx context.Context, shipmentID int64) ([]Receive, error) {
	sh, err := s.store.ShipmentByID(ctx, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("load shipment: %w", err)
	}
	if sh == nil {
		return nil, notFound("shipment", strconv.FormatInt(shipmentID, 10))
	}
	receives, err := s.store.ReceivesByLogisticNum(ctx, sh.LogisticNum)
	if err != nil {
		return nil, fmt.Errorf("load receives: %w", err)
	}
	if receives == nil {
		receives = []Receive{}
	}
	return receives, nil
}

func (s *Service) DiffsByReceive(ctx context.Context, receiveID int64) ([]ReceiveDiff, error) {
	r, err := s.store.Receive(ctx, receiveID)
	if err != nil {
		return nil, fmt.Errorf("load receive: %w", err)
	}
	if r == nil {
		return nil, notFound("receive", strconv.FormatInt(receiveID, 10))
	}
	diffs, err := s.store.DiffsByReceive(ctx, receiveID)
	if err != nil {
		return nil, fmt.Errorf("load diffs: %w", err)
	}
	if diffs == nil {
		diffs = []ReceiveDiff{}
	}
	return diffs, nil
}

func (s *Service) PendingDiffs(ctx context.Context) ([]ReceiveDiff, error) {
	diffs, err := s.store.PendingDiffs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pending diffs: %w", err)
	}
	if diffs == nil {
		diffs = []ReceiveDiff{}
	}
	return diffs, nil
}

// FifoLayers returns the cost layers of sku ("" for all SKUs), oldest
// first, each joined with its transaction and landed price.
func (s *Service) FifoLayers(ctx context.Context, sku string) ([]fifo.LayerView, error) {
	txs, err := s.store.Transactions(ctx, sku)
	if err != nil {
		return nil, fmt.Errorf("load fifo transactions: %w", err)
	}
	layers, err := s.store.Layers(ctx, sku)
	if err != nil {
		return nil, fmt.Errorf("load fifo layers: %w", err)
	}
	prices, err := s.store.LandedPrices(ctx, sku)
	if err != nil {
		return nil, fmt.Errorf("load landed prices: %w", err)
	}
	return fifo.JoinLayers(txs, layers, prices), nil
}

// VerifyLedger checks the ledger linkage of sku ("" for all SKUs).
func (s *Service) VerifyLedger(ctx context.Context, sku string) error {
	return fifo.VerifyLinkage(ctx, s.store, sku)
}
