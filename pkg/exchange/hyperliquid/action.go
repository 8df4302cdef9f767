package hyperliquid

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"

	"hlsubmit/pkg/exchange"
)

// maxWireDecimals is the most fractional digits the venue hashes for prices and sizes.
const maxWireDecimals = 8

var (
	errNonPositive    = errors.New("must be positive")
	errTooPrecise     = fmt.Errorf("more than %d fractional digits", maxWireDecimals)
	errUnknownTIF     = errors.New("unknown time-in-force")
	errNoOrderType    = errors.New("order type not specified (limit or trigger)")
	errBothTypes      = errors.New("order type must be limit or trigger, not both")
	errUnknownTpsl    = errors.New("tpsl must be \"tp\" or \"sl\"")
	errEmptyCoin      = errors.New("empty coin symbol")
	errSzPrecision    = errors.New("size has more fractional digits than the asset allows")
	errInvalidCloid   = errors.New("cloid must be 0x followed by 32 hex characters")
	errInvalidBuilder = errors.New("builder address must be a 20-byte hex address")
)

// Encoded holds the two representations of one action: the canonical msgpack
// bytes that get hashed, and the JSON that goes on the wire.
type Encoded struct {
	Canonical []byte
	JSON      []byte
}

// BuildOrderAction resolves each order against its asset and wraps them in a bulk order action.
// assets[i] must describe orders[i].Coin.
func BuildOrderAction(orders []exchange.Order, assets []AssetInfo, grouping string, builder *BuilderInfo) (Action, error) {
	if len(orders) == 0 {
		return Action{}, exchange.ErrNoOrders
	}
	if len(assets) != len(orders) {
		return Action{}, fmt.Errorf("hyperliquid: %d orders but %d assets", len(orders), len(assets))
	}
	if grouping == "" {
		grouping = GroupingNA
	}
	if builder != nil {
		b, err := normaliseBuilder(*builder)
		if err != nil {
			return Action{}, err
		}
		builder = &b
	}
	wires := make([]OrderWire, len(orders))
	for i, order := range orders {
		wire, err := convertOrder(order, assets[i])
		if err != nil {
			return Action{}, annotateOrderIndex(i, err)
		}
		wires[i] = wire
	}
	return Action{
		Type:     ActionTypeOrder,
		Orders:   wires,
		Grouping: grouping,
		Builder:  builder,
	}, nil
}

func annotateOrderIndex(i int, err error) error {
	var encErr *exchange.EncodingError
	if errors.As(err, &encErr) {
		return &exchange.EncodingError{Field: fmt.Sprintf("order[%d].%s", i, encErr.Field), Err: encErr.Err}
	}
	return fmt.Errorf("order[%d]: %w", i, err)
}

func convertOrder(order exchange.Order, asset AssetInfo) (OrderWire, error) {
	if strings.TrimSpace(order.Coin) == "" {
		return OrderWire{}, &exchange.EncodingError{Field: "coin", Err: errEmptyCoin}
	}
	if asset.Index < 0 {
		return OrderWire{}, &exchange.EncodingError{Field: "asset", Err: fmt.Errorf("negative asset index %d", asset.Index)}
	}
	if !order.LimitPx.IsPositive() {
		return OrderWire{}, &exchange.EncodingError{Field: "limitPx", Err: errNonPositive}
	}
	if !order.Sz.IsPositive() {
		return OrderWire{}, &exchange.EncodingError{Field: "sz", Err: errNonPositive}
	}
	if !order.Sz.Equal(order.Sz.Truncate(int32(asset.SzDecimals))) {
		return OrderWire{}, &exchange.EncodingError{Field: "sz", Err: fmt.Errorf("%w (%s, szDecimals=%d)", errSzPrecision, order.Sz, asset.SzDecimals)}
	}
	px, err := FormatDecimal(order.LimitPx)
	if err != nil {
		return OrderWire{}, &exchange.EncodingError{Field: "limitPx", Err: err}
	}
	sz, err := FormatDecimal(order.Sz)
	if err != nil {
		return OrderWire{}, &exchange.EncodingError{Field: "sz", Err: err}
	}
	orderType, err := convertOrderType(order.OrderType)
	if err != nil {
		return OrderWire{}, err
	}
	wire := OrderWire{
		Asset:      uint32(asset.Index),
		IsBuy:      order.IsBuy,
		LimitPx:    px,
		Sz:         sz,
		ReduceOnly: order.ReduceOnly,
		OrderType:  orderType,
	}
	if order.Cloid != nil {
		wire.Cloid = FormatCloid(*order.Cloid)
	}
	return wire, nil
}

func convertOrderType(ot exchange.OrderType) (OrderTypeWire, error) {
	switch {
	case ot.Limit != nil && ot.Trigger != nil:
		return OrderTypeWire{}, &exchange.EncodingError{Field: "orderType", Err: errBothTypes}
	case ot.Limit != nil:
		switch ot.Limit.TIF {
		case exchange.TIFAlo, exchange.TIFIoc, exchange.TIFGtc:
		default:
			return OrderTypeWire{}, &exchange.EncodingError{Field: "orderType.tif", Err: fmt.Errorf("%w %q", errUnknownTIF, ot.Limit.TIF)}
		}
		return OrderTypeWire{Limit: &LimitWire{TIF: ot.Limit.TIF}}, nil
	case ot.Trigger != nil:
		if ot.Trigger.Tpsl != "tp" && ot.Trigger.Tpsl != "sl" {
			return OrderTypeWire{}, &exchange.EncodingError{Field: "orderType.tpsl", Err: errUnknownTpsl}
		}
		if !ot.Trigger.TriggerPx.IsPositive() {
			return OrderTypeWire{}, &exchange.EncodingError{Field: "orderType.triggerPx", Err: errNonPositive}
		}
		px, err := FormatDecimal(ot.Trigger.TriggerPx)
		if err != nil {
			return OrderTypeWire{}, &exchange.EncodingError{Field: "orderType.triggerPx", Err: err}
		}
		return OrderTypeWire{Trigger: &TriggerWire{IsMarket: ot.Trigger.IsMarket, TriggerPx: px, Tpsl: ot.Trigger.Tpsl}}, nil
	default:
		return OrderTypeWire{}, &exchange.EncodingError{Field: "orderType", Err: errNoOrderType}
	}
}

func normaliseBuilder(b BuilderInfo) (BuilderInfo, error) {
	addr := strings.ToLower(strings.TrimSpace(b.Address))
	raw := strings.TrimPrefix(addr, "0x")
	if len(raw) != 40 {
		return BuilderInfo{}, &exchange.EncodingError{Field: "builder", Err: errInvalidBuilder}
	}
	if _, err := hex.DecodeString(raw); err != nil {
		return BuilderInfo{}, &exchange.EncodingError{Field: "builder", Err: errInvalidBuilder}
	}
	return BuilderInfo{Address: "0x" + raw, Fee: b.Fee}, nil
}

// FormatDecimal renders d the way the venue hashes numbers: at most eight
// fractional digits, no trailing zeros, no exponent.
func FormatDecimal(d decimal.Decimal) (string, error) {
	rounded := d.Round(maxWireDecimals)
	if !rounded.Equal(d) {
		return "", fmt.Errorf("%w: %s", errTooPrecise, d.String())
	}
	return rounded.String(), nil
}

// FormatCloid renders a client order id as 0x-prefixed 32 hex characters.
func FormatCloid(id uuid.UUID) string {
	return "0x" + hex.EncodeToString(id[:])
}

// ParseCloid is the inverse of FormatCloid.
func ParseCloid(s string) (uuid.UUID, error) {
	raw := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	if len(raw) != 32 {
		return uuid.UUID{}, errInvalidCloid
	}
	var id uuid.UUID
	if _, err := hex.Decode(id[:], []byte(raw)); err != nil {
		return uuid.UUID{}, errInvalidCloid
	}
	return id, nil
}

// EncodeAction produces the canonical msgpack bytes and the JSON form of action.
// Both are derived from the same struct so they cannot describe different orders.
func EncodeAction(action Action) (Encoded, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	if err := enc.Encode(action); err != nil {
		return Encoded{}, &exchange.EncodingError{Field: "action", Err: fmt.Errorf("msgpack: %w", err)}
	}
	js, err := json.Marshal(action)
	if err != nil {
		return Encoded{}, &exchange.EncodingError{Field: "action", Err: fmt.Errorf("json: %w", err)}
	}
	return Encoded{Canonical: buf.Bytes(), JSON: js}, nil
}

// DecodeAction parses canonical msgpack bytes back into an Action.
func DecodeAction(canonical []byte) (Action, error) {
	var action Action
	if err := msgpack.Unmarshal(canonical, &action); err != nil {
		return Action{}, &exchange.EncodingError{Field: "action", Err: fmt.Errorf("msgpack decode: %w", err)}
	}
	return action, nil
}

// OrderFromWire reconstructs the order a wire entry was built from. coin is
// supplied by the caller because the wire only carries the asset index.
func OrderFromWire(coin string, w OrderWire) (exchange.Order, error) {
	px, err := decimal.NewFromString(w.LimitPx)
	if err != nil {
		return exchange.Order{}, &exchange.EncodingError{Field: "p", Err: err}
	}
	sz, err := decimal.NewFromString(w.Sz)
	if err != nil {
		return exchange.Order{}, &exchange.EncodingError{Field: "s", Err: err}
	}
	order := exchange.Order{
		Coin:       coin,
		IsBuy:      w.IsBuy,
		ReduceOnly: w.ReduceOnly,
		LimitPx:    px,
		Sz:         sz,
	}
	switch {
	case w.OrderType.Limit != nil:
		order.OrderType.Limit = &exchange.LimitOrderType{TIF: w.OrderType.Limit.TIF}
	case w.OrderType.Trigger != nil:
		tpx, err := decimal.NewFromString(w.OrderType.Trigger.TriggerPx)
		if err != nil {
			return exchange.Order{}, &exchange.EncodingError{Field: "t.trigger.triggerPx", Err: err}
		}
		order.OrderType.Trigger = &exchange.TriggerOrderType{
			IsMarket:  w.OrderType.Trigger.IsMarket,
			TriggerPx: tpx,
			Tpsl:      w.OrderType.Trigger.Tpsl,
		}
	}
	if w.Cloid != "" {
		id, err := ParseCloid(w.Cloid)
		if err != nil {
			return exchange.Order{}, &exchange.EncodingError{Field: "c", Err: err}
		}
		order.Cloid = &id
	}
	return order, nil
}
