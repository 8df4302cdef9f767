package exchange

import (
	"fmt"
	"math"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hlsubmit/pkg/perf"
)

// Core order-submission types shared by venue implementations.
// Prices and sizes are decimals so the wire representation never drifts through float64.

// OrderSide represents order direction.
type OrderSide string

const (
	// OrderSideBuy executes a buy.
	OrderSideBuy OrderSide = "buy"
	// OrderSideSell executes a sell.
	OrderSideSell OrderSide = "sell"
)

// Time-in-force tags accepted by limit orders.
const (
	TIFAlo = "Alo"
	TIFIoc = "Ioc"
	TIFGtc = "Gtc"
)

// OrderType captures the order-type variant. Exactly one of Limit or Trigger is set.
type OrderType struct {
	Limit   *LimitOrderType   `json:"limit,omitempty"`
	Trigger *TriggerOrderType `json:"trigger,omitempty"`
}

// LimitOrderType defines limit order specific fields.
type LimitOrderType struct {
	TIF string `json:"tif"` // Valid values: "Alo", "Ioc", "Gtc"
}

// TriggerOrderType defines stop / take-profit trigger parameters.
type TriggerOrderType struct {
	IsMarket  bool            `json:"isMarket"`
	TriggerPx decimal.Decimal `json:"triggerPx"`
	Tpsl      string          `json:"tpsl"` // "tp" or "sl"
}

// Order describes a single order before it is resolved against the asset catalog.
type Order struct {
	Coin       string          `json:"coin"`            // Asset symbol, resolved to an index by the catalog.
	IsBuy      bool            `json:"isBuy"`           // true for buy, false for sell.
	ReduceOnly bool            `json:"reduceOnly"`      // Only reduces an existing position.
	LimitPx    decimal.Decimal `json:"limitPx"`         // Limit price.
	Sz         decimal.Decimal `json:"sz"`              // Size, already rounded to the asset's szDecimals.
	Cloid      *uuid.UUID      `json:"cloid,omitempty"` // Optional client order identifier.
	OrderType  OrderType       `json:"orderType"`
}

// Side returns the order direction.
func (o Order) Side() OrderSide {
	if o.IsBuy {
		return OrderSideBuy
	}
	return OrderSideSell
}

// NewLimitOrder builds a limit order from float inputs. Non-finite values are
// rejected here because decimal construction would otherwise panic.
func NewLimitOrder(coin string, isBuy bool, limitPx, sz float64, tif string, reduceOnly bool) (Order, error) {
	if math.IsNaN(limitPx) || math.IsInf(limitPx, 0) {
		return Order{}, &EncodingError{Field: "limitPx", Err: fmt.Errorf("non-finite value %v", limitPx)}
	}
	if math.IsNaN(sz) || math.IsInf(sz, 0) {
		return Order{}, &EncodingError{Field: "sz", Err: fmt.Errorf("non-finite value %v", sz)}
	}
	return Order{
		Coin:       strings.TrimSpace(coin),
		IsBuy:      isBuy,
		ReduceOnly: reduceOnly,
		LimitPx:    decimal.NewFromFloat(limitPx),
		Sz:         decimal.NewFromFloat(sz),
		OrderType:  OrderType{Limit: &LimitOrderType{TIF: tif}},
	}, nil
}

// OutcomeKind tags the accepted-response variants of a submission.
type OutcomeKind string

const (
	// OutcomeFilled means the order matched immediately.
	OutcomeFilled OutcomeKind = "filled"
	// OutcomeResting means the order was accepted and rests on the book.
	OutcomeResting OutcomeKind = "resting"
	// OutcomeRejected means the venue answered with an error status for the order.
	OutcomeRejected OutcomeKind = "rejected"
	// OutcomeOther covers any other status, including bodies that failed to decode.
	OutcomeOther OutcomeKind = "other"
)

// Outcome is the decoded result of a submission the server accepted at the HTTP level.
// Client, server and transport failures are returned as typed errors instead.
type Outcome struct {
	Kind     OutcomeKind           `json:"kind"`
	Oid      int64                 `json:"oid,omitempty"`
	TotalSz  string                `json:"totalSz,omitempty"`
	AvgPx    string                `json:"avgPx,omitempty"`
	Message  string                `json:"message,omitempty"`
	Raw      string                `json:"raw,omitempty"`
	Statuses []OrderStatusResponse `json:"statuses,omitempty"`
	Nonce    uint64                `json:"nonce,omitempty"`
	Timing   *perf.Report          `json:"timing,omitempty"`
}

// OrderResponse captures the standard exchange response after an order submission.
type OrderResponse struct {
	Status   string             `json:"status"` // "ok" or "err".
	Response *OrderResponseData `json:"response,omitempty"`
	Data     *OrderStatuses     `json:"data,omitempty"`
}

// OrderResponseData wraps the response payload.
type OrderResponseData struct {
	Type string         `json:"type"` // Typically "order".
	Data *OrderStatuses `json:"data,omitempty"`
}

// OrderStatuses contains the per-order statuses.
type OrderStatuses struct {
	Statuses []OrderStatusResponse `json:"statuses"`
}

// OrderStatusResponse tracks the status of an individual order request.
// Plain string statuses such as "success" or "waitingForFill" land in Text.
type OrderStatusResponse struct {
	Resting *RestingOrder `json:"resting,omitempty"`
	Filled  *FilledOrder  `json:"filled,omitempty"`
	Error   string        `json:"error,omitempty"`
	Text    string        `json:"-"`
}

// RestingOrder represents an order that is currently resting on the book.
type RestingOrder struct {
	Oid   int64  `json:"oid"`
	Cloid string `json:"cloid,omitempty"`
}

// FilledOrder represents a fully matched order.
type FilledOrder struct {
	TotalSz string `json:"totalSz"`
	AvgPx   string `json:"avgPx"`
	Oid     int64  `json:"oid"`
	Cloid   string `json:"cloid,omitempty"`
}

// UnmarshalJSON accepts both object statuses and bare string statuses.
func (s *OrderStatusResponse) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		*s = OrderStatusResponse{}
		return json.Unmarshal(data, &s.Text)
	}
	type alias OrderStatusResponse
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*s = OrderStatusResponse(a)
	return nil
}

// MarshalJSON mirrors UnmarshalJSON so bare string statuses survive a round trip.
func (s OrderStatusResponse) MarshalJSON() ([]byte, error) {
	if s.Text != "" && s.Resting == nil && s.Filled == nil && s.Error == "" {
		return json.Marshal(s.Text)
	}
	type alias OrderStatusResponse
	return json.Marshal(alias(s))
}
