// Package sim is an in-process stand-in for the venue's HTTP API. It verifies
// envelopes the way the venue does, matches orders against a configured mid
// price and keeps a per-account position ledger.
package sim

import (
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"hlsubmit/pkg/exchange"
	hl "hlsubmit/pkg/exchange/hyperliquid"
)

// Error codes of structured 4xx bodies.
const (
	CodeBadNonce     uint16 = 12
	CodeBadSignature uint16 = 13
)

const (
	// nonces must fall within this distance of the venue clock
	nonceLookback  = 2 * 24 * time.Hour
	nonceLookahead = 24 * time.Hour
	// highest nonces remembered per signer
	nonceMemory = 100

	msgDeserialize = "Failed to deserialize the JSON body into the target type"
	msgNoMatch     = "Order could not immediately match against any resting orders."
	msgPostOnly    = "Post only order would have immediately matched, bbo was %s."
	msgBadSize     = "Order has invalid size."
	msgBadPrice    = "Order has invalid price."
	msgNoAsset     = "Asset not found."
	msgReduceOnly  = "Reduce only order would increase position."
	msgExpired     = "Signed action expired."
)

// Asset is one listing of the simulated universe; its index is its position in the list.
type Asset struct {
	Name        string
	SzDecimals  int
	MaxLeverage float64
	Mid         decimal.Decimal
}

// DefaultAssets is the universe used when none is configured.
func DefaultAssets() []Asset {
	return []Asset{
		{Name: "BTC", SzDecimals: 5, MaxLeverage: 40, Mid: decimal.RequireFromString("65000")},
		{Name: "ETH", SzDecimals: 4, MaxLeverage: 25, Mid: decimal.RequireFromString("3000")},
		{Name: "SOL", SzDecimals: 2, MaxLeverage: 20, Mid: decimal.RequireFromString("150")},
	}
}

// Option customises a Venue.
type Option func(*Venue)

// WithNetwork selects the signing domain the venue verifies against (default Mainnet).
func WithNetwork(n hl.Network) Option { return func(v *Venue) { v.network = n } }

// WithAssets replaces the universe.
func WithAssets(assets ...Asset) Option {
	return func(v *Venue) { v.assets = append([]Asset(nil), assets...) }
}

// WithClock overrides the venue clock used for nonce and expiry checks.
func WithClock(clock func() time.Time) Option {
	return func(v *Venue) {
		if clock != nil {
			v.clock = clock
		}
	}
}

// WithLatency delays every response by d.
func WithLatency(d time.Duration) Option { return func(v *Venue) { v.latency = d } }

// WithAccounts restricts signing to the given wallets. By default any recovered signer trades.
func WithAccounts(addrs ...common.Address) Option {
	return func(v *Venue) {
		v.accounts = make(map[common.Address]bool, len(addrs))
		for _, a := range addrs {
			v.accounts[a] = true
		}
	}
}

// Venue implements http.Handler for POST /info and POST /exchange.
type Venue struct {
	network  hl.Network
	clock    func() time.Time
	latency  time.Duration
	accounts map[common.Address]bool

	mu         sync.Mutex
	assets     []Asset
	nonces     map[common.Address][]uint64
	ledgers    map[common.Address]*ledger
	nextOid    int64
	failures   int
	failStatus int
	requests   int
}

// NewVenue builds a venue with DefaultAssets unless WithAssets is given.
func NewVenue(opts ...Option) *Venue {
	v := &Venue{
		network: hl.Mainnet,
		clock:   time.Now,
		assets:  DefaultAssets(),
		nonces:  make(map[common.Address][]uint64),
		ledgers: make(map[common.Address]*ledger),
		nextOid: 1,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// SetMid moves the reference price of coin.
func (v *Venue) SetMid(coin string, px decimal.Decimal) error {
	if !px.IsPositive() {
		return fmt.Errorf("sim: mid price must be positive")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	i, ok := v.indexLocked(coin)
	if !ok {
		return fmt.Errorf("sim: unknown coin %q", coin)
	}
	v.assets[i].Mid = px
	return nil
}

// FailNext makes the next n requests answer with status and an empty body.
func (v *Venue) FailNext(n, status int) {
	v.mu.Lock()
	v.failures, v.failStatus = n, status
	v.mu.Unlock()
}

// Requests returns the number of requests served.
func (v *Venue) Requests() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.requests
}

// Positions returns the open positions of account, sorted by coin.
func (v *Venue) Positions(account common.Address) []Position {
	v.mu.Lock()
	defer v.mu.Unlock()
	l, ok := v.ledgers[account]
	if !ok {
		return nil
	}
	return l.snapshot()
}

// ServeHTTP implements http.Handler.
func (v *Venue) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if v.latency > 0 {
		select {
		case <-time.After(v.latency):
		case <-r.Context().Done():
			return
		}
	}

	v.mu.Lock()
	v.requests++
	fail := v.failures > 0
	if fail {
		v.failures--
	}
	failStatus := v.failStatus
	v.mu.Unlock()
	if fail {
		w.WriteHeader(failStatus)
		return
	}

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeRaw(w, http.StatusBadRequest, err.Error())
		return
	}
	switch r.URL.Path {
	case hl.InfoPath:
		v.serveInfo(w, body)
	case hl.ExchangePath:
		v.serveExchange(w, body)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (v *Venue) serveInfo(w http.ResponseWriter, body []byte) {
	var req hl.InfoRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeRaw(w, http.StatusUnprocessableEntity, msgDeserialize)
		return
	}

	v.mu.Lock()
	assets := append([]Asset(nil), v.assets...)
	v.mu.Unlock()

	switch req.Type {
	case "metaAndAssetCtxs":
		universe := make([]hl.AssetUniverseEntry, len(assets))
		ctxs := make([]hl.AssetCtx, len(assets))
		for i, a := range assets {
			universe[i] = hl.AssetUniverseEntry{Name: a.Name, SzDecimals: a.SzDecimals, MaxLeverage: a.MaxLeverage}
			mid := a.Mid.String()
			ctxs[i] = hl.AssetCtx{MarkPx: mid, MidPx: mid, OraclePx: mid}
		}
		writeJSON(w, http.StatusOK, []any{map[string]any{"universe": universe}, ctxs})
	case "allMids":
		mids := make(map[string]string, len(assets))
		for _, a := range assets {
			mids[a.Name] = a.Mid.String()
		}
		writeJSON(w, http.StatusOK, mids)
	default:
		writeRaw(w, http.StatusUnprocessableEntity, msgDeserialize)
	}
}

func (v *Venue) serveExchange(w http.ResponseWriter, body []byte) {
	env, action, err := hl.UnmarshalEnvelope(body)
	if err != nil || action.Type != hl.ActionTypeOrder {
		writeRaw(w, http.StatusUnprocessableEntity, msgDeserialize)
		return
	}
	encoded, err := hl.EncodeAction(action)
	if err != nil {
		writeRaw(w, http.StatusUnprocessableEntity, msgDeserialize)
		return
	}
	var vault *common.Address
	if env.VaultAddress != nil {
		if !common.IsHexAddress(*env.VaultAddress) {
			writeRaw(w, http.StatusUnprocessableEntity, msgDeserialize)
			return
		}
		addr := common.HexToAddress(*env.VaultAddress)
		vault = &addr
	}

	connectionID := hl.ConnectionID(encoded.Canonical, env.Nonce, vault, env.ExpiresAfter)
	signer, err := hl.RecoverL1Signer(connectionID, v.network, env.Signature)
	if err != nil {
		writeError(w, CodeBadSignature, "invalid signature", err.Error())
		return
	}
	if v.accounts != nil && !v.accounts[signer] {
		writeJSON(w, http.StatusOK, errStatus(fmt.Sprintf("User or API Wallet %s does not exist.", strings.ToLower(signer.Hex()))))
		return
	}

	now := v.clock()
	if env.ExpiresAfter != nil && uint64(now.UnixMilli()) > *env.ExpiresAfter {
		writeJSON(w, http.StatusOK, errStatus(msgExpired))
		return
	}

	account := signer
	if vault != nil {
		account = *vault
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if msg := v.checkNonceLocked(signer, env.Nonce, now); msg != "" {
		writeError(w, CodeBadNonce, msg, fmt.Sprint(env.Nonce))
		return
	}
	v.rememberNonceLocked(signer, env.Nonce)

	l, ok := v.ledgers[account]
	if !ok {
		l = newLedger()
		v.ledgers[account] = l
	}
	statuses := make([]exchange.OrderStatusResponse, len(action.Orders))
	for i, wire := range action.Orders {
		statuses[i] = v.matchLocked(l, wire)
	}
	logx.Debugf("sim: order account=%s nonce=%d orders=%d", account.Hex(), env.Nonce, len(statuses))
	writeJSON(w, http.StatusOK, exchange.OrderResponse{
		Status:   "ok",
		Response: &exchange.OrderResponseData{Type: "order", Data: &exchange.OrderStatuses{Statuses: statuses}},
	})
}

// checkNonceLocked accepts a nonce inside the time window that was never used
// and is above the lowest of the signer's remembered nonces. It returns an
// empty string when the nonce is acceptable.
func (v *Venue) checkNonceLocked(signer common.Address, nonce uint64, now time.Time) string {
	seen := v.nonces[signer]
	if _, dup := slices.BinarySearch(seen, nonce); dup {
		return "Invalid nonce: duplicate nonce"
	}
	if len(seen) >= nonceMemory && nonce < seen[0] {
		return "Invalid nonce: nonce too low"
	}
	lo := uint64(now.Add(-nonceLookback).UnixMilli())
	hi := uint64(now.Add(nonceLookahead).UnixMilli())
	if nonce < lo || nonce > hi {
		return "Invalid nonce: outside of the allowed time window"
	}
	return ""
}

func (v *Venue) rememberNonceLocked(signer common.Address, nonce uint64) {
	seen := v.nonces[signer]
	i, _ := slices.BinarySearch(seen, nonce)
	seen = slices.Insert(seen, i, nonce)
	if len(seen) > nonceMemory {
		seen = seen[len(seen)-nonceMemory:]
	}
	v.nonces[signer] = seen
}

func (v *Venue) matchLocked(l *ledger, wire hl.OrderWire) exchange.OrderStatusResponse {
	if int(wire.Asset) >= len(v.assets) {
		return exchange.OrderStatusResponse{Error: msgNoAsset}
	}
	asset := v.assets[wire.Asset]

	px, err := decimal.NewFromString(wire.LimitPx)
	if err != nil || !px.IsPositive() {
		return exchange.OrderStatusResponse{Error: msgBadPrice}
	}
	sz, err := decimal.NewFromString(wire.Sz)
	if err != nil || !sz.IsPositive() || !sz.Equal(sz.Truncate(int32(asset.SzDecimals))) {
		return exchange.OrderStatusResponse{Error: msgBadSize}
	}

	oid := v.nextOid
	v.nextOid++
	if wire.OrderType.Trigger != nil {
		return exchange.OrderStatusResponse{Resting: &exchange.RestingOrder{Oid: oid, Cloid: wire.Cloid}}
	}

	crosses := px.GreaterThanOrEqual(asset.Mid)
	if !wire.IsBuy {
		crosses = px.LessThanOrEqual(asset.Mid)
	}
	tif := exchange.TIFGtc
	if wire.OrderType.Limit != nil {
		tif = wire.OrderType.Limit.TIF
	}
	switch {
	case crosses && tif == exchange.TIFAlo:
		return exchange.OrderStatusResponse{Error: fmt.Sprintf(msgPostOnly, asset.Mid)}
	case !crosses && tif == exchange.TIFIoc:
		return exchange.OrderStatusResponse{Error: msgNoMatch}
	case !crosses:
		return exchange.OrderStatusResponse{Resting: &exchange.RestingOrder{Oid: oid, Cloid: wire.Cloid}}
	}

	filled, err := l.apply(asset.Name, asset.Mid, sz, wire.IsBuy, wire.ReduceOnly)
	if err != nil {
		return exchange.OrderStatusResponse{Error: msgReduceOnly}
	}
	return exchange.OrderStatusResponse{Filled: &exchange.FilledOrder{
		TotalSz: filled.String(),
		AvgPx:   asset.Mid.String(),
		Oid:     oid,
		Cloid:   wire.Cloid,
	}}
}

func (v *Venue) indexLocked(coin string) (int, bool) {
	for i, a := range v.assets {
		if strings.EqualFold(a.Name, strings.TrimSpace(coin)) {
			return i, true
		}
	}
	return 0, false
}

func errStatus(msg string) map[string]string {
	return map[string]string{"status": "err", "response": msg}
}

func writeError(w http.ResponseWriter, code uint16, msg, data string) {
	writeJSON(w, http.StatusUnprocessableEntity, hl.ErrorBody{Code: code, Msg: msg, Data: data})
}

func writeRaw(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, text)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		writeRaw(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
