package core

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"VaultLedger/internal/allocation"
	"VaultLedger/internal/event"
	"VaultLedger/internal/observability"
	"VaultLedger/internal/oracle"
	"VaultLedger/internal/pool"
	"VaultLedger/internal/vault"
)

// Config fixes a market core's identity and collaborator parameters.
type Config struct {
	Market string

	Vault vault.Config

	// MinTimeToExpiration gates owner cancellation of pending liquidity
	// requests, in seconds.
	MinTimeToExpiration int64

	// DedupCapacity bounds the in-memory idempotency LRU.
	DedupCapacity int
}

// MarketCore is the single-threaded event processor for one market. Every
// inbound event flows through the same pipeline: dedup, sequence validation,
// dispatch into the pool and vault engines, state digest, hash chain,
// envelope emission. The core never calls time.Now() for anything that
// reaches state or the event log; all timestamps are versioned inputs.
type MarketCore struct {
	cfg      Config
	market   string
	sequence int64
	hasher   *StateHasher

	pool     *pool.Engine
	vault    *vault.Engine
	prices   *oracle.Static
	pnl      *PnlBook
	requests *vault.RequestBook

	idempotency       *IdempotencyChecker
	sequenceValidator *SequenceValidator
	metrics           *observability.Metrics

	persistChan    chan<- Output
	projectionChan chan<- Output
}

// Output is what the core emits per applied event: the log envelope plus a
// detached state view projections can render without touching the core.
type Output struct {
	Envelope *event.Envelope

	// Instruments in market order, deep copies.
	Instruments []*pool.Instrument

	Vault *VaultSummary
}

// VaultSummary is the vault ledger's headline figures after the event.
type VaultSummary struct {
	LongBalance  *big.Int
	LongReserved *big.Int
	LongFees     *big.Int

	ShortBalance  *big.Int
	ShortReserved *big.Int
	ShortFees     *big.Int

	TotalSupply     *big.Int
	PendingRequests int
}

func NewMarketCore(
	cfg Config,
	bank vault.TokenBank,
	startSequence int64,
	persistChan, projectionChan chan<- Output,
	dbChecker DBIdempotencyChecker,
	metrics *observability.Metrics,
) *MarketCore {
	prices := oracle.NewStatic()
	pnl := NewPnlBook()

	poolEngine := pool.NewEngine(cfg.Market)
	vaultEngine := vault.NewEngine(cfg.Vault, bank, poolEngine, pnl)
	poolEngine.SetLiquidityProvider(vaultEngine)

	dedupCapacity := cfg.DedupCapacity
	if dedupCapacity <= 0 {
		dedupCapacity = 1_000_000
	}

	return &MarketCore{
		cfg:               cfg,
		market:            cfg.Market,
		sequence:          startSequence,
		hasher:            NewStateHasher(),
		pool:              poolEngine,
		vault:             vaultEngine,
		prices:            prices,
		pnl:               pnl,
		requests:          vault.NewRequestBook(cfg.MinTimeToExpiration),
		idempotency:       NewIdempotencyChecker(dedupCapacity, dbChecker),
		sequenceValidator: NewSequenceValidator(),
		metrics:           metrics,
		persistChan:       persistChan,
		projectionChan:    projectionChan,
	}
}

// ProcessEvent is the main processing pipeline.
func (c *MarketCore) ProcessEvent(evt event.Event) error {
	start := time.Now()
	eventType := evt.EventType().String()
	idempotencyKey := evt.IdempotencyKey()

	// Step 1: Idempotency check (two-tier)
	isDuplicate := c.idempotency.IsDuplicate(eventType, idempotencyKey)

	// Step 2: Sequence validation. Oracle feed events tolerate gaps; keeper
	// partitions are strict.
	sourceSequence := evt.SourceSequence()

	if priceEvt, ok := evt.(*event.PriceUpdate); ok {
		if err := c.sequenceValidator.ValidatePriceSequence(priceEvt.Ticker, priceEvt.Sequence); err != nil {
			return err
		}
	} else {
		partition := c.getPartition(evt)
		if err := c.sequenceValidator.ValidateSequence(partition, sourceSequence, idempotencyKey, isDuplicate); err != nil {
			return fmt.Errorf("sequence validation failed: %w", err)
		}
	}

	// If duplicate, skip processing
	if isDuplicate {
		if c.metrics != nil {
			c.metrics.CoreEventsRejected.WithLabelValues(eventType, "duplicate").Inc()
		}
		return nil
	}

	// Step 3: Dispatch into the engines
	if err := c.dispatchEvent(evt); err != nil {
		if c.metrics != nil {
			c.metrics.CoreEventsRejected.WithLabelValues(eventType, "rejected").Inc()
		}
		return fmt.Errorf("dispatch failed: %w", err)
	}

	// Step 4: State digest + hash chain
	hashStart := time.Now()
	stateDigest := c.computeStateDigest()
	prevHash := c.hasher.GetPrevHash()
	stateHash := c.hasher.ComputeHash(c.sequence, stateDigest)
	if c.metrics != nil {
		c.metrics.CoreStateHashDur.Observe(time.Since(hashStart).Seconds())
	}

	// Step 5: Envelope
	payload, err := json.Marshal(evt)
	if err != nil {
		panic(fmt.Sprintf("FATAL: cannot encode applied event %s: %v", eventType, err))
	}

	envelope := &event.Envelope{
		Sequence:       c.sequence,
		IdempotencyKey: idempotencyKey,
		EventType:      evt.EventType(),
		Market:         evt.Market(),
		Timestamp:      c.getEventTimestamp(evt),
		SourceSequence: sourceSequence,
		Payload:        payload,
		StateHash:      stateHash,
		PrevHash:       prevHash,
	}

	output := Output{
		Envelope:    envelope,
		Instruments: c.pool.ExportInstruments(),
		Vault:       c.vaultSummary(),
	}

	c.sequence++

	// Step 6: Emit. Persistence uses a BLOCKING send so no applied event is
	// ever lost; projections use a NON-BLOCKING send and drop on full, since
	// they can rebuild from the event log.
	c.persistChan <- output

	select {
	case c.projectionChan <- output:
	default:
		if c.metrics != nil {
			c.metrics.ProjectionDrops.WithLabelValues("state").Inc()
		}
	}

	// Step 7: Mark as processed (add to LRU)
	c.idempotency.MarkProcessed(eventType, idempotencyKey)

	if c.metrics != nil {
		c.metrics.CoreEventsApplied.WithLabelValues(eventType).Inc()
		c.metrics.CoreEventDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
		c.metrics.CoreSequence.Set(float64(c.sequence))
		c.metrics.RequestsPending.Set(float64(c.requests.Pending()))
	}

	return nil
}

// ReplayEvent re-applies an already-logged event during startup recovery.
// Dedup and channel emission are skipped: the event is known-applied and its
// row already sits in the log. The returned hash is the chain tip after the
// event, for comparison against the stored state_hash.
func (c *MarketCore) ReplayEvent(evt event.Event) ([32]byte, error) {
	if priceEvt, ok := evt.(*event.PriceUpdate); ok {
		if err := c.sequenceValidator.ValidatePriceSequence(priceEvt.Ticker, priceEvt.Sequence); err != nil {
			return [32]byte{}, err
		}
	} else {
		partition := c.getPartition(evt)
		if err := c.sequenceValidator.ValidateSequence(partition, evt.SourceSequence(), evt.IdempotencyKey(), false); err != nil {
			return [32]byte{}, fmt.Errorf("sequence validation failed: %w", err)
		}
	}

	if err := c.dispatchEvent(evt); err != nil {
		return [32]byte{}, fmt.Errorf("dispatch failed: %w", err)
	}

	stateHash := c.hasher.ComputeHash(c.sequence, c.computeStateDigest())
	c.sequence++
	c.idempotency.MarkProcessed(evt.EventType().String(), evt.IdempotencyKey())

	return stateHash, nil
}

// getPartition determines the partition key for sequence validation. All
// keeper-originated events for one market share a partition; the PnL feed
// runs its own.
func (c *MarketCore) getPartition(evt event.Event) string {
	if _, ok := evt.(*event.NetPnlUpdate); ok {
		return fmt.Sprintf("pnl:%s", evt.Market())
	}
	return fmt.Sprintf("market:%s", evt.Market())
}

// getEventTimestamp extracts the versioned timestamp from the event. The
// core MUST NOT call time.Now(); all timestamps are versioned inputs.
func (c *MarketCore) getEventTimestamp(evt event.Event) time.Time {
	switch e := evt.(type) {
	case *event.TradeExecuted:
		return e.Timestamp
	case *event.PriceUpdate:
		return e.Timestamp
	case *event.NetPnlUpdate:
		return e.Timestamp
	case *event.DepositRequested:
		return e.Timestamp
	case *event.DepositExecuted:
		return e.Timestamp
	case *event.DepositCancelled:
		return e.Timestamp
	case *event.WithdrawalRequested:
		return e.Timestamp
	case *event.WithdrawalExecuted:
		return e.Timestamp
	case *event.WithdrawalCancelled:
		return e.Timestamp
	case *event.Reallocate:
		return e.Timestamp
	case *event.InstrumentAdded:
		return e.Timestamp
	case *event.InstrumentRemoved:
		return e.Timestamp
	case *event.ImpactPoolDelta:
		return e.Timestamp
	case *event.CollateralUpdate:
		return e.Timestamp
	case *event.ReservationUpdate:
		return e.Timestamp
	case *event.FeeCollection:
		return e.Timestamp
	default:
		panic(fmt.Sprintf("FATAL: getEventTimestamp called with unhandled event type %T — deterministic core cannot use wall-clock time", evt))
	}
}

func (c *MarketCore) dispatchEvent(evt event.Event) error {
	switch e := evt.(type) {
	case *event.TradeExecuted:
		return c.handleTradeExecuted(e)
	case *event.PriceUpdate:
		return c.handlePriceUpdate(e)
	case *event.NetPnlUpdate:
		c.pnl.Set(e.Mkt, e.PnlUsd)
		return nil
	case *event.DepositRequested:
		return c.handleDepositRequested(e)
	case *event.DepositExecuted:
		return c.handleDepositExecuted(e)
	case *event.DepositCancelled:
		return c.handleRequestCancelled(e.RequestKey, e.Caller, vault.KindDeposit, e.Timestamp.Unix())
	case *event.WithdrawalRequested:
		return c.handleWithdrawalRequested(e)
	case *event.WithdrawalExecuted:
		return c.handleWithdrawalExecuted(e)
	case *event.WithdrawalCancelled:
		return c.handleRequestCancelled(e.RequestKey, e.Caller, vault.KindWithdrawal, e.Timestamp.Unix())
	case *event.Reallocate:
		return c.handleReallocate(e)
	case *event.InstrumentAdded:
		return c.handleInstrumentAdded(e)
	case *event.InstrumentRemoved:
		return c.handleInstrumentRemoved(e)
	case *event.ImpactPoolDelta:
		return c.pool.ApplyImpact(e.Ticker, e.DeltaUsd, e.Timestamp.Unix())
	case *event.CollateralUpdate:
		return c.vault.UpdateCollateral(e.User, e.IsLong, e.Delta)
	case *event.ReservationUpdate:
		return c.vault.UpdateReservation(e.User, e.IsLong, e.Delta)
	case *event.FeeCollection:
		_, err := c.vault.CollectFees(e.IsLong, e.Recipient)
		return err
	default:
		return fmt.Errorf("unknown event type: %T", evt)
	}
}

func (c *MarketCore) handleTradeExecuted(evt *event.TradeExecuted) error {
	return c.pool.UpdateState(pool.TradeParams{
		Ticker:             evt.Ticker,
		SizeDeltaUsd:       evt.SizeDeltaUsd,
		IndexPrice:         evt.IndexPrice,
		ImpactedPrice:      evt.ImpactedPrice,
		CollateralPrice:    evt.CollateralPrice,
		CollateralBaseUnit: evt.CollateralBaseUnit,
		IsLong:             evt.IsLong,
		IsIncrease:         evt.IsIncrease,
		Now:                evt.Timestamp.Unix(),
	})
}

func (c *MarketCore) handlePriceUpdate(evt *event.PriceUpdate) error {
	if evt.BaseUnit != nil && evt.BaseUnit.Sign() > 0 {
		c.prices.SetBaseUnit(evt.Ticker, evt.BaseUnit)
	}
	return c.prices.SetPrice(evt.Ticker, evt.Bid, evt.Ask, evt.Sequence)
}

func (c *MarketCore) handleDepositRequested(evt *event.DepositRequested) error {
	return c.requests.Create(vault.Request{
		Key:          evt.RequestKey,
		Kind:         vault.KindDeposit,
		Owner:        evt.Owner,
		IsLong:       evt.IsLong,
		AmountIn:     evt.AmountIn,
		ExecutionFee: evt.ExecutionFee,
		CreatedAt:    evt.Timestamp.Unix(),
	})
}

func (c *MarketCore) handleDepositExecuted(evt *event.DepositExecuted) error {
	req, err := c.requests.Take(evt.RequestKey)
	if err != nil {
		return err
	}
	if req.Kind != vault.KindDeposit {
		c.putBack(req)
		return fmt.Errorf("request %s is a %s, not a deposit", evt.RequestKey, req.Kind)
	}

	snap, err := c.collateralSnapshot()
	if err != nil {
		c.putBack(req)
		return err
	}
	if _, err := c.vault.ExecuteDeposit(req.Owner, req.IsLong, req.AmountIn, snap); err != nil {
		// A failed settlement leaves the request pending.
		c.putBack(req)
		return err
	}
	if c.metrics != nil {
		c.metrics.DepositsExecuted.WithLabelValues(observability.SideLabel(req.IsLong)).Inc()
	}
	return nil
}

func (c *MarketCore) handleWithdrawalRequested(evt *event.WithdrawalRequested) error {
	return c.requests.Create(vault.Request{
		Key:          evt.RequestKey,
		Kind:         vault.KindWithdrawal,
		Owner:        evt.Owner,
		IsLong:       evt.IsLong,
		AmountIn:     evt.Shares,
		ExecutionFee: evt.ExecutionFee,
		CreatedAt:    evt.Timestamp.Unix(),
	})
}

func (c *MarketCore) handleWithdrawalExecuted(evt *event.WithdrawalExecuted) error {
	req, err := c.requests.Take(evt.RequestKey)
	if err != nil {
		return err
	}
	if req.Kind != vault.KindWithdrawal {
		c.putBack(req)
		return fmt.Errorf("request %s is a %s, not a withdrawal", evt.RequestKey, req.Kind)
	}

	snap, err := c.collateralSnapshot()
	if err != nil {
		c.putBack(req)
		return err
	}
	if _, err := c.vault.ExecuteWithdrawal(req.Owner, req.IsLong, req.AmountIn, snap); err != nil {
		c.putBack(req)
		return err
	}
	if c.metrics != nil {
		c.metrics.WithdrawalsDone.WithLabelValues(observability.SideLabel(req.IsLong)).Inc()
	}
	return nil
}

// putBack re-registers a taken request after a failed settlement.
func (c *MarketCore) putBack(req *vault.Request) {
	if err := c.requests.Create(*req); err != nil {
		panic(fmt.Sprintf("FATAL: cannot restore taken request %s: %v", req.Key, err))
	}
}

func (c *MarketCore) handleRequestCancelled(key uuid.UUID, caller string, kind vault.RequestKind, now int64) error {
	if req, ok := c.requests.Get(key); ok && req.Kind != kind {
		return fmt.Errorf("request %s is a %s, not a %s", key, req.Kind, kind)
	}
	_, err := c.requests.Cancel(key, caller, now)
	return err
}

func (c *MarketCore) handleReallocate(evt *event.Reallocate) error {
	weights, err := allocation.Decode(evt.EncodedWeights, evt.Count)
	if err != nil {
		return err
	}
	snap, snapErr := c.collateralSnapshot()
	if snapErr != nil {
		return snapErr
	}
	err = c.pool.Reallocate(weights, snap, evt.Timestamp.Unix())
	c.recordReallocation(err)
	return err
}

func (c *MarketCore) handleInstrumentAdded(evt *event.InstrumentAdded) error {
	weights, err := allocation.Decode(evt.EncodedWeights, evt.Count)
	if err != nil {
		return err
	}
	snap, snapErr := c.collateralSnapshot()
	if snapErr != nil {
		return snapErr
	}
	err = c.pool.AddInstrument(poolConfigFromWire(evt.Config), weights, snap, evt.Timestamp.Unix())
	c.recordReallocation(err)
	return err
}

func (c *MarketCore) handleInstrumentRemoved(evt *event.InstrumentRemoved) error {
	weights, err := allocation.Decode(evt.EncodedWeights, evt.Count)
	if err != nil {
		return err
	}
	snap, snapErr := c.collateralSnapshot()
	if snapErr != nil {
		return snapErr
	}
	err = c.pool.RemoveInstrument(evt.Ticker, weights, snap, evt.Timestamp.Unix())
	c.recordReallocation(err)
	return err
}

func (c *MarketCore) recordReallocation(err error) {
	if c.metrics == nil {
		return
	}
	outcome := "applied"
	if err != nil {
		outcome = "rejected"
	}
	c.metrics.Reallocations.WithLabelValues(outcome).Inc()
}

// collateralSnapshot captures a consistent price view for both collateral
// tickers; every vault pricing and allocation capacity check reads it.
func (c *MarketCore) collateralSnapshot() (*oracle.Snapshot, error) {
	return c.prices.SnapshotFor([]string{c.cfg.Vault.LongTicker, c.cfg.Vault.ShortTicker})
}

// poolConfigFromWire converts the admin wire form into the engine config.
func poolConfigFromWire(w event.InstrumentConfig) pool.Config {
	return pool.Config{
		Ticker:                     w.Ticker,
		MaxLeverageBps:             w.MaxLeverageBps,
		MaintenanceMarginBps:       w.MaintenanceMarginBps,
		ReserveFactorBps:           w.ReserveFactorBps,
		MaxFundingVelocity:         w.MaxFundingVelocity,
		MaxFundingRate:             w.MaxFundingRate,
		SkewScale:                  w.SkewScale,
		FundingDeadZoneUsd:         w.FundingDeadZoneUsd,
		BorrowingFactor:            w.BorrowingFactor,
		BorrowingExponent:          w.BorrowingExponent,
		FeeForSmallerSide:          w.FeeForSmallerSide,
		PositiveSkewScalarBps:      w.PositiveSkewScalarBps,
		NegativeSkewScalarBps:      w.NegativeSkewScalarBps,
		PositiveLiquidityScalarBps: w.PositiveLiquidityScalarBps,
		NegativeLiquidityScalarBps: w.NegativeLiquidityScalarBps,
	}
}

// computeStateDigest builds the canonical byte form of the whole market
// state. Instruments contribute in market order, then the vault ledger and
// the PnL book; any ordering change breaks hash-chain reproducibility.
func (c *MarketCore) computeStateDigest() []byte {
	digest := make([]byte, 0, 1024)

	for _, in := range c.pool.ExportInstruments() {
		digest = appendString(digest, in.Config.Ticker)
		digest = appendUint16(digest, in.AllocationWeight)
		digest = appendBig(digest, in.LongOpenInterestUsd)
		digest = appendBig(digest, in.ShortOpenInterestUsd)
		digest = appendBig(digest, in.Cumulatives.LongAvgEntryPriceUsd)
		digest = appendBig(digest, in.Cumulatives.ShortAvgEntryPriceUsd)
		digest = appendBig(digest, in.Cumulatives.LongBorrowFee)
		digest = appendBig(digest, in.Cumulatives.ShortBorrowFee)
		digest = appendBig(digest, in.Cumulatives.WeightedAvgLongCumulative)
		digest = appendBig(digest, in.Cumulatives.WeightedAvgShortCumulative)
		digest = appendBig(digest, in.FundingRate)
		digest = appendBig(digest, in.FundingRateVelocity)
		digest = appendBig(digest, in.FundingAccruedUsd)
		digest = appendBig(digest, in.LongBorrowingRate)
		digest = appendBig(digest, in.ShortBorrowingRate)
		digest = appendBig(digest, in.ImpactPoolUsd)
		digest = appendInt64LE(digest, in.LastUpdate)
	}

	for _, isLong := range []bool{true, false} {
		digest = appendBig(digest, c.vault.Balance(isLong))
		digest = appendBig(digest, c.vault.Reserved(isLong))
		digest = appendBig(digest, c.vault.AccumulatedFees(isLong))
	}
	digest = appendBig(digest, c.vault.TotalSupply())
	digest = appendBig(digest, c.pnl.CumulativeNetPnl(c.market))

	return digest
}

func appendString(buf []byte, s string) []byte {
	buf = append(buf, byte(len(s)))
	return append(buf, s...)
}

func appendUint16(buf []byte, v uint16) []byte {
	return append(buf, byte(v), byte(v>>8))
}

// appendBig encodes sign, magnitude length, magnitude bytes.
func appendBig(buf []byte, v *big.Int) []byte {
	sign := byte(0)
	if v.Sign() < 0 {
		sign = 1
	}
	mag := v.Bytes()
	buf = append(buf, sign, byte(len(mag)))
	return append(buf, mag...)
}

func appendInt64LE(buf []byte, v int64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}

func (c *MarketCore) vaultSummary() *VaultSummary {
	return &VaultSummary{
		LongBalance:     c.vault.Balance(true),
		LongReserved:    c.vault.Reserved(true),
		LongFees:        c.vault.AccumulatedFees(true),
		ShortBalance:    c.vault.Balance(false),
		ShortReserved:   c.vault.Reserved(false),
		ShortFees:       c.vault.AccumulatedFees(false),
		TotalSupply:     c.vault.TotalSupply(),
		PendingRequests: c.requests.Pending(),
	}
}

// --- Snapshot Restore & Startup Methods ---

// SnapshotState holds the serializable in-memory state for restore.
type SnapshotState struct {
	Sequence  int64
	StateHash [32]byte

	Instruments []*pool.Instrument
	Ledger      *vault.LedgerState
	Prices      *oracle.SourceState
	Requests    []vault.Request
	NetPnl      map[string]*big.Int

	SequenceState   map[string]int64
	IdempotencyKeys []string
}

// RestoreFromSnapshot restores the core's in-memory state. On warm restart
// the latest snapshot loads first, then events past it replay.
func (c *MarketCore) RestoreFromSnapshot(snap *SnapshotState) {
	c.sequence = snap.Sequence + 1 // Next sequence to assign

	c.hasher.SetPrevHash(snap.StateHash)

	c.pool.RestoreInstruments(snap.Instruments)
	if snap.Ledger != nil {
		c.vault.RestoreLedger(snap.Ledger)
	}
	if snap.Prices != nil {
		c.prices.Restore(snap.Prices)
	}
	c.requests.Restore(snap.Requests)
	c.pnl.Restore(snap.NetPnl)

	for partition, nextSeq := range snap.SequenceState {
		c.sequenceValidator.RestorePartition(partition, nextSeq)
	}
}

// WarmLRU loads recent idempotency keys into the LRU cache so freshly
// replayed events skip the cold-path DB lookup.
func (c *MarketCore) WarmLRU(keys []string) {
	c.idempotency.lru.WarmFromKeys(keys)
}

// CreateSnapshotState captures the current in-memory state for persistence.
func (c *MarketCore) CreateSnapshotState() *SnapshotState {
	return &SnapshotState{
		Sequence:        c.sequence - 1, // Last processed sequence
		StateHash:       c.hasher.GetPrevHash(),
		Instruments:     c.pool.ExportInstruments(),
		Ledger:          c.vault.ExportLedger(),
		Prices:          c.prices.Export(),
		Requests:        c.requests.Export(),
		NetPnl:          c.pnl.Export(),
		SequenceState:   c.sequenceValidator.GetAllPartitions(),
		IdempotencyKeys: c.idempotency.lru.GetAllKeys(),
	}
}

// GetSequence returns the current global sequence number.
func (c *MarketCore) GetSequence() int64 {
	return c.sequence
}

// GetStateHash returns the current state hash (chain tip).
func (c *MarketCore) GetStateHash() [32]byte {
	return c.hasher.GetPrevHash()
}

// Pool exposes the pool engine for read paths. Callers run on the core's
// goroutine; concurrent access is not supported.
func (c *MarketCore) Pool() *pool.Engine {
	return c.pool
}

// Vault exposes the vault engine for read paths, same caveat as Pool.
func (c *MarketCore) Vault() *vault.Engine {
	return c.vault
}

// Requests exposes the pending liquidity request book.
func (c *MarketCore) Requests() *vault.RequestBook {
	return c.requests
}
