/*
Package reconcile is the receive reconciliation core.

PURPOSE:
  When goods arrive against a shipment, the received quantity of each SKU is
  compared with what was sent. Mismatches become ReceiveDiff rows that are
  later acknowledged (resolve), corrected with one of four strategies
  (process) or closed out (delete). Every correction and deletion appends a
  sequenced DiffEvent. Every received unit-batch is posted to the FIFO
  ledger in the same database transaction.

KEY CONCEPTS IN THIS FILE (types.go):
  - Shipment / ShipmentItem / POItem: upstream-owned rows this core mutates
  - Receive:      one received line per {logisticNum, sku}
  - ReceiveDiff:  materialized iff sentQuantity != receiveQuantity
  - DiffEvent:    append-only audit row, eventSeq is gapless per logisticNum
  - AbnormalStatus: derived, never stored (see status.go)

SIGN CONVENTION:
  DiffQuantity = SentQuantity - ReceiveQuantity
  positive -> shortage (received less than sent)
  negative -> overage  (received more than sent)

SEE ALSO:
  - recorder.go:  submit receive + diff detection
  - processor.go: correction state machine
  - strategy.go:  the closed set of correction strategies
  - status.go:    status derivation for list/detail views
*/
package reconcile

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// UPSTREAM ENTITIES - created by purchasing/logistics CRUD
// =============================================================================

type Shipment struct {
	ID                int64      `db:"id" json:"id"`
	LogisticNum       string     `db:"logistic_num" json:"logisticNum"`
	ParentLogisticNum string     `db:"parent_logistic_num" json:"parentLogisticNum,omitempty"`
	SentDate          *time.Time `db:"sent_date" json:"sentDate,omitempty"`
	Note              string     `db:"note" json:"note"`
	CreatedAt         time.Time  `db:"created_at" json:"createdAt"`

	Items []ShipmentItem `db:"-" json:"items,omitempty"`
}

type ShipmentItem struct {
	ID          int64           `db:"id" json:"id"`
	ShipmentID  int64           `db:"shipment_id" json:"shipmentId"`
	LogisticNum string          `db:"logistic_num" json:"logisticNum"`
	PONum       string          `db:"po_num" json:"poNum"`
	SKU         string          `db:"sku" json:"sku"`
	Quantity    int64           `db:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unitPrice"`
}

type POItem struct {
	ID        int64           `db:"id" json:"id"`
	PONum     string          `db:"po_num" json:"poNum"`
	SKU       string          `db:"sku" json:"sku"`
	Quantity  int64           `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unitPrice"`
}

// =============================================================================
// RECEIVE
// =============================================================================

type Receive struct {
	ID              int64           `db:"id" json:"id"`
	LogisticNum     string          `db:"logistic_num" json:"logisticNum"`
	PONum           string          `db:"po_num" json:"poNum"`
	SKU             string          `db:"sku" json:"sku"`
	SentQuantity    int64           `db:"sent_quantity" json:"sentQuantity"`
	ReceiveQuantity int64           `db:"receive_quantity" json:"receiveQuantity"`
	UnitPrice       decimal.Decimal `db:"unit_price" json:"unitPrice"`
	ReceiveDate     time.Time       `db:"receive_date" json:"receiveDate"`
	Operator        string          `db:"operator" json:"operator"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`

	// Diff is the discrepancy detected for this line, if any. Only set on
	// the result of SubmitReceive.
	Diff *ReceiveDiff `db:"-" json:"diff,omitempty"`
}

// ReceiveLine is one warehouse-reported line of a submission.
type ReceiveLine struct {
	SKU             string
	UnitPrice       decimal.Decimal
	ReceiveQuantity int64
	ReceiveDate     time.Time
}

type ReceiveSubmission struct {
	LogisticNum string
	Operator    string
	Items       []ReceiveLine
}

// =============================================================================
// RECEIVE DIFF
// =============================================================================

type DiffStatus string

const (
	DiffPending  DiffStatus = "pending"
	DiffResolved DiffStatus = "resolved"
)

type ReceiveDiff struct {
	ID              int64      `db:"id" json:"id"`
	ReceiveID       int64      `db:"receive_id" json:"receiveId"`
	LogisticNum     string     `db:"logistic_num" json:"logisticNum"`
	PONum           string     `db:"po_num" json:"poNum"`
	SKU             string     `db:"sku" json:"sku"`
	SentQuantity    int64      `db:"sent_quantity" json:"sentQuantity"`
	ReceiveQuantity int64      `db:"receive_quantity" json:"receiveQuantity"`
	DiffQuantity    int64      `db:"diff_quantity" json:"diffQuantity"`
	Status          DiffStatus `db:"status" json:"status"`
	ResolutionNote  string     `db:"resolution_note" json:"resolutionNote"`
	DeletedAt       *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updatedAt"`
}

func (d ReceiveDiff) IsShortage() bool { return d.DiffQuantity > 0 }
func (d ReceiveDiff) IsOverage() bool  { return d.DiffQuantity < 0 }
func (d ReceiveDiff) IsPending() bool  { return d.Status == DiffPending }

// IsDeleted reports the deleted state, either from the explicit column or
// from the legacy note marker.
func (d ReceiveDiff) IsDeleted() bool {
	return d.DeletedAt != nil || HasDeletedMarker(d.ResolutionNote)
}

// =============================================================================
// DIFF EVENT - append-only audit trail
// =============================================================================

type EventType string

const (
	EventProcessM1 EventType = "PROCESS_M1"
	EventProcessM2 EventType = "PROCESS_M2"
	EventProcessM3 EventType = "PROCESS_M3"
	EventProcessM4 EventType = "PROCESS_M4"
	EventDeleted   EventType = "DELETED"
)

type DiffEvent struct {
	ID          int64        `db:"id" json:"id"`
	UID         string       `db:"uid" json:"uid"`
	LogisticNum string       `db:"logistic_num" json:"logisticNum"`
	EventType   EventType    `db:"event_type" json:"eventType"`
	EventSeq    int          `db:"event_seq" json:"eventSeq"`
	Changes     EventChanges `db:"changes" json:"changes"`
	Note        string       `db:"note" json:"note"`
	Operator    string       `db:"operator" json:"operator"`
	CreatedAt   time.Time    `db:"created_at" json:"createdAt"`
}

// DiffSnapshot captures one diff row plus the quantities a correction
// touched.
type DiffSnapshot struct {
	DiffID           int64      `json:"diffId"`
	SKU              string     `json:"sku"`
	PONum            string     `json:"poNum"`
	Status           DiffStatus `json:"status"`
	SentQuantity     int64      `json:"sentQuantity"`
	ReceiveQuantity  int64      `json:"receiveQuantity"`
	DiffQuantity     int64      `json:"diffQuantity"`
	ResolutionNote   string     `json:"resolutionNote,omitempty"`
	ShipmentQuantity *int64     `json:"shipmentQuantity,omitempty"`
	POQuantity       *int64     `json:"poQuantity,omitempty"`
}

// Snapshot is one side of an event's changes. Process events describe a
// single diff through the embedded fields; deletion events list every
// affected diff in Diffs and carry the aggregate state in Status.
type Snapshot struct {
	DiffSnapshot
	Diffs            []DiffSnapshot `json:"diffs,omitempty"`
	ChildLogisticNum string         `json:"childLogisticNum,omitempty"`
}

type EventChanges struct {
	Before Snapshot `json:"before"`
	After  Snapshot `json:"after"`
}

// Value stores the changes as a JSON text column.
func (c EventChanges) Value() (driver.Value, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (c *EventChanges) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c = EventChanges{}
		return nil
	case string:
		return json.Unmarshal([]byte(v), c)
	case []byte:
		return json.Unmarshal(v, c)
	default:
		return errors.New("event changes: unsupported column type")
	}
}

// =============================================================================
// ABNORMAL PROCESSING - requests and results
// =============================================================================

// POMethod selects a strategy code per diff sign for one PO.
// Positive applies to shortages, Negative to overages.
type POMethod struct {
	Positive *int `json:"positive,omitempty"`
	Negative *int `json:"negative,omitempty"`
}

// CodeFor returns the configured code for the sign of diffQuantity.
func (m POMethod) CodeFor(diffQuantity int64) (int, bool) {
	switch {
	case diffQuantity > 0 && m.Positive != nil:
		return *m.Positive, true
	case diffQuantity < 0 && m.Negative != nil:
		return *m.Negative, true
	}
	return 0, false
}

type ProcessRequest struct {
	LogisticNum string
	ReceiveDate *time.Time
	Note        string
	Operator    string
	POMethods   map[string]POMethod
	DelayDate   *time.Time
}

type ProcessResult struct {
	ProcessedCount int      `json:"processedCount"`
	Details        []string `json:"details"`
	ChildShipments []string `json:"childShipments,omitempty"`
}

type DeleteResult struct {
	DeletedCount int `json:"deletedCount"`
}

// =============================================================================
// ABNORMAL VIEWS
// =============================================================================

type AbnormalStatus string

const (
	AbnormalPending  AbnormalStatus = "pending"
	AbnormalResolved AbnormalStatus = "resolved"
	AbnormalDeleted  AbnormalStatus = "deleted"
)

func ParseAbnormalStatus(s string) (AbnormalStatus, error) {
	switch AbnormalStatus(s) {
	case AbnormalPending, AbnormalResolved, AbnormalDeleted:
		return AbnormalStatus(s), nil
	}
	return "", &ValidationError{Field: "status", Message: "must be one of pending, resolved, deleted"}
}

type AbnormalSummary struct {
	LogisticNum string         `json:"logisticNum"`
	SKUCount    int            `json:"skuCount"`
	Status      AbnormalStatus `json:"status"`
}

type DetailSummary struct {
	TotalSKUs     int   `json:"totalSkus"`
	TotalDiff     int64 `json:"totalDiff"`
	OverReceived  int64 `json:"overReceived"`
	UnderReceived int64 `json:"underReceived"`
}

type AbnormalDetail struct {
	LogisticNum string         `json:"logisticNum"`
	Status      AbnormalStatus `json:"status,omitempty"`
	Items       []ReceiveDiff  `json:"items"`
	Summary     DetailSummary  `json:"summary"`
}
