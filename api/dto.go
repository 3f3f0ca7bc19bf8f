/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON request bodies and the error envelope. Responses reuse the domain
  types, which already carry json tags.

NAMING CONVENTION:
  - *Request: request body types from clients
  - *Response: response wrappers

VALIDATION:
  Shape checks (required fields, non-negative quantities) use validator
  struct tags and run in decode(). Business rules (unknown strategy code,
  duplicate SKU, pending diffs on delete) are checked by reconcile and come
  back as reconcile.ValidationError.

DATES:
  Date accepts "2006-01-02" or RFC 3339 and is always truncated to the day
  in UTC.
*/
package api

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/receive-engine/reconcile"
)

// =============================================================================
// DATES
// =============================================================================

type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	t, err := ParseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(time.DateOnly))
}

// ParseDate parses a calendar day, with or without a time part.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return reconcile.DateOnly(t), nil
}

func (d *Date) ptr() *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

// =============================================================================
// RECEIVES
// =============================================================================

type SubmitReceiveRequest struct {
	LogisticNum string             `json:"logisticNum" validate:"required"`
	Items       []ReceiveItemInput `json:"items" validate:"required,min=1,dive"`
}

type ReceiveItemInput struct {
	SKU             string          `json:"sku" validate:"required"`
	UnitPrice       decimal.Decimal `json:"unitPrice"`
	ReceiveQuantity int64           `json:"receiveQuantity" validate:"gte=0"`
	ReceiveDate     Date            `json:"receiveDate"`
}

func (r SubmitReceiveRequest) toSubmission(operator string) reconcile.ReceiveSubmission {
	sub := reconcile.ReceiveSubmission{LogisticNum: r.LogisticNum, Operator: operator}
	for _, it := range r.Items {
		sub.Items = append(sub.Items, reconcile.ReceiveLine{
			SKU:             it.SKU,
			UnitPrice:       it.UnitPrice,
			ReceiveQuantity: it.ReceiveQuantity,
			ReceiveDate:     it.ReceiveDate.Time,
		})
	}
	return sub
}

// =============================================================================
// DIFFS
// =============================================================================

type ResolveDiffRequest struct {
	ResolutionNote string `json:"resolutionNote"`
}

// =============================================================================
// ABNORMAL PROCESSING
// =============================================================================

type ProcessAbnormalRequest struct {
	LogisticNum string                        `json:"logisticNum" validate:"required"`
	ReceiveDate *Date                         `json:"receiveDate,omitempty"`
	Note        string                        `json:"note"`
	POMethods   map[string]reconcile.POMethod `json:"poMethods" validate:"required,min=1"`
	DelayDate   *Date                         `json:"delayDate,omitempty"`
}

func (r ProcessAbnormalRequest) toRequest(operator string) reconcile.ProcessRequest {
	return reconcile.ProcessRequest{
		LogisticNum: r.LogisticNum,
		ReceiveDate: r.ReceiveDate.ptr(),
		Note:        r.Note,
		Operator:    operator,
		POMethods:   r.POMethods,
		DelayDate:   r.DelayDate.ptr(),
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}
