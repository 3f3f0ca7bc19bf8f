/*
strategy.go - Correction strategies for receive discrepancies

The processor never branches on a strategy code. It resolves the code to a
CorrectionStrategy once, hands it the rows involved in one diff and applies
the MutationSet it gets back. Plan is pure: it reads its input and returns
what should change.

  | Code | Strategy          | Shipment qty | PO qty        | Receive sent | Diff after      |
  |------|-------------------|--------------|---------------|--------------|-----------------|
  | 1    | FixShipment       | -> received  | -             | -            | resolved, 0     |
  | 2    | FixShipmentAndPO  | -> received  | -> received   | -            | resolved, 0     |
  | 3    | Delay             | -            | -             | -            | resolved, as-is |
  |      |                   |   + child shipment {parent}_delay_V{nn} for the shortfall |
  | 4    | VendorAdjust      | -> received  | qty - diff    | -> received  | resolved, 0     |

Codes 1-3 only apply to shortages. Code 4 applies to either sign.

The set is closed: strategies implement an unexported method.
*/
package reconcile

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// StrategyInput is everything a strategy may look at for one diff.
// POItem may be nil when the PO line does not exist.
type StrategyInput struct {
	Diff         ReceiveDiff
	ShipmentItem ShipmentItem
	POItem       *POItem
	Receive      Receive
	DelayDate    *time.Time
}

// ChildShipmentPlan asks the processor to create a delayed shipment holding
// the shortfall.
type ChildShipmentPlan struct {
	PONum     string
	SKU       string
	Quantity  int64
	SentDate  time.Time
	UnitPrice decimal.Decimal
}

// MutationSet is the result of planning one correction. Nil pointers mean
// "leave unchanged".
type MutationSet struct {
	ShipmentItemQuantity *int64
	POItemQuantity       *int64
	ReceiveSentQuantity  *int64
	ChildShipment        *ChildShipmentPlan

	DiffStatus   DiffStatus
	DiffQuantity int64
}

type CorrectionStrategy interface {
	Code() int
	EventType() EventType
	Plan(in StrategyInput) (MutationSet, error)

	sealed()
}

// Marker is the tag written into notes for a strategy, e.g. "#M2".
func Marker(s CorrectionStrategy) string {
	return "#M" + strconv.Itoa(s.Code())
}

// StrategyForCode maps a caller-supplied code to its strategy.
func StrategyForCode(code int) (CorrectionStrategy, error) {
	switch code {
	case 1:
		return FixShipment{}, nil
	case 2:
		return FixShipmentAndPO{}, nil
	case 3:
		return Delay{}, nil
	case 4:
		return VendorAdjust{}, nil
	}
	return nil, invalid("poMethods", "unknown strategy code %d", code)
}

func requireShortage(s CorrectionStrategy, d ReceiveDiff) error {
	if !d.IsShortage() {
		return invalid("poMethods", "strategy M%d requires a shortage, diff %d on %s has diffQuantity %d",
			s.Code(), d.ID, d.SKU, d.DiffQuantity)
	}
	return nil
}

func requirePOItem(s CorrectionStrategy, in StrategyInput) error {
	if in.POItem == nil {
		return &NotFoundError{
			Entity: "purchase order item",
			Key:    in.Diff.PONum + "/" + in.Diff.SKU,
			Reason: fmt.Sprintf("required by strategy M%d", s.Code()),
		}
	}
	return nil
}

func qty(v int64) *int64 { return &v }

// =============================================================================
// M1 - fix shipment only
// =============================================================================

type FixShipment struct{}

func (FixShipment) Code() int            { return 1 }
func (FixShipment) EventType() EventType { return EventProcessM1 }
func (FixShipment) sealed()              {}

func (s FixShipment) Plan(in StrategyInput) (MutationSet, error) {
	if err := requireShortage(s, in.Diff); err != nil {
		return MutationSet{}, err
	}
	return MutationSet{
		ShipmentItemQuantity: qty(in.Receive.ReceiveQuantity),
		DiffStatus:           DiffResolved,
		DiffQuantity:         0,
	}, nil
}

// =============================================================================
// M2 - fix shipment and PO
// =============================================================================

type FixShipmentAndPO struct{}

func (FixShipmentAndPO) Code() int            { return 2 }
func (FixShipmentAndPO) EventType() EventType { return EventProcessM2 }
func (FixShipmentAndPO) sealed()              {}

func (s FixShipmentAndPO) Plan(in StrategyInput) (MutationSet, error) {
	if err := requireShortage(s, in.Diff); err != nil {
		return MutationSet{}, err
	}
	if err := requirePOItem(s, in); err != nil {
		return MutationSet{}, err
	}
	return MutationSet{
		ShipmentItemQuantity: qty(in.Receive.ReceiveQuantity),
		POItemQuantity:       qty(in.Receive.ReceiveQuantity),
		DiffStatus:           DiffResolved,
		DiffQuantity:         0,
	}, nil
}

// =============================================================================
// M3 - delay the shortfall into a child shipment
// =============================================================================

type Delay struct{}

func (Delay) Code() int            { return 3 }
func (Delay) EventType() EventType { return EventProcessM3 }
func (Delay) sealed()              {}

func (s Delay) Plan(in StrategyInput) (MutationSet, error) {
	if err := requireShortage(s, in.Diff); err != nil {
		return MutationSet{}, err
	}
	if in.DelayDate == nil {
		return MutationSet{}, invalid("delayDate", "required by strategy M3")
	}
	return MutationSet{
		ChildShipment: &ChildShipmentPlan{
			PONum:     in.Diff.PONum,
			SKU:       in.Diff.SKU,
			Quantity:  in.Diff.DiffQuantity,
			SentDate:  *in.DelayDate,
			UnitPrice: in.ShipmentItem.UnitPrice,
		},
		DiffStatus:   DiffResolved,
		DiffQuantity: in.Diff.DiffQuantity,
	}, nil
}

// =============================================================================
// M4 - vendor error adjustment
// =============================================================================

type VendorAdjust struct{}

func (VendorAdjust) Code() int            { return 4 }
func (VendorAdjust) EventType() EventType { return EventProcessM4 }
func (VendorAdjust) sealed()              {}

// Plan raises the PO by the overage: diffQuantity is negative for overage,
// so qty - diff increases it.
func (s VendorAdjust) Plan(in StrategyInput) (MutationSet, error) {
	if err := requirePOItem(s, in); err != nil {
		return MutationSet{}, err
	}
	return MutationSet{
		ShipmentItemQuantity: qty(in.Receive.ReceiveQuantity),
		POItemQuantity:       qty(in.POItem.Quantity - in.Diff.DiffQuantity),
		ReceiveSentQuantity:  qty(in.Receive.ReceiveQuantity),
		DiffStatus:           DiffResolved,
		DiffQuantity:         0,
	}, nil
}
