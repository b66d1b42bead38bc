package vault

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"VaultLedger/internal/fixmath"
)

var (
	ErrUnknownRequest    = errors.New("vault: no request with that key")
	ErrDuplicateRequest  = errors.New("vault: request key already present")
	ErrNotRequestOwner   = errors.New("vault: caller does not own the request")
	ErrRequestNotExpired = errors.New("vault: request has not reached its expiration window")
)

// RequestKind discriminates the two liquidity request flavors.
type RequestKind int

const (
	KindDeposit RequestKind = iota + 1
	KindWithdrawal
)

func (k RequestKind) String() string {
	switch k {
	case KindDeposit:
		return "deposit"
	case KindWithdrawal:
		return "withdrawal"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Request is one pending liquidity request. AmountIn is collateral tokens
// for deposits and pool shares for withdrawals.
type Request struct {
	Key          uuid.UUID
	Kind         RequestKind
	Owner        string
	IsLong       bool
	AmountIn     *big.Int
	ExecutionFee *big.Int
	CreatedAt    int64
}

// RequestBook holds pending deposit/withdrawal requests between creation and
// execution. Cancellation is owner-only and gated behind the expiration
// window; execution (by the keeper) may happen any time.
type RequestBook struct {
	minTimeToExpiration int64
	requests            map[uuid.UUID]*Request
}

func NewRequestBook(minTimeToExpiration int64) *RequestBook {
	return &RequestBook{
		minTimeToExpiration: minTimeToExpiration,
		requests:            make(map[uuid.UUID]*Request),
	}
}

// Create registers a pending request under the caller-supplied key.
func (b *RequestBook) Create(req Request) error {
	if _, exists := b.requests[req.Key]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRequest, req.Key)
	}
	if req.AmountIn == nil || req.AmountIn.Sign() <= 0 {
		return fmt.Errorf("%w: amountIn=%s", ErrInvalidAmount, req.AmountIn)
	}

	stored := req
	stored.AmountIn = fixmath.Copy(req.AmountIn)
	if req.ExecutionFee != nil {
		stored.ExecutionFee = fixmath.Copy(req.ExecutionFee)
	} else {
		stored.ExecutionFee = big.NewInt(0)
	}
	b.requests[req.Key] = &stored
	return nil
}

// Take removes and returns the request for execution.
func (b *RequestBook) Take(key uuid.UUID) (*Request, error) {
	req, ok := b.requests[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRequest, key)
	}
	delete(b.requests, key)
	return req, nil
}

// Cancel removes a request on the owner's behalf. Only the owner may cancel,
// and only after the expiration window has passed.
func (b *RequestBook) Cancel(key uuid.UUID, caller string, now int64) (*Request, error) {
	req, ok := b.requests[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRequest, key)
	}
	if req.Owner != caller {
		return nil, fmt.Errorf("%w: key=%s caller=%s", ErrNotRequestOwner, key, caller)
	}
	if now < req.CreatedAt+b.minTimeToExpiration {
		return nil, fmt.Errorf("%w: key=%s expires at %d, now %d",
			ErrRequestNotExpired, key, req.CreatedAt+b.minTimeToExpiration, now)
	}
	delete(b.requests, key)
	return req, nil
}

// Export returns copies of all pending requests for snapshots.
func (b *RequestBook) Export() []Request {
	out := make([]Request, 0, len(b.requests))
	for _, req := range b.requests {
		r := *req
		r.AmountIn = fixmath.Copy(req.AmountIn)
		r.ExecutionFee = fixmath.Copy(req.ExecutionFee)
		out = append(out, r)
	}
	return out
}

// Restore replaces the pending set. Used on warm restart before replay.
func (b *RequestBook) Restore(reqs []Request) {
	b.requests = make(map[uuid.UUID]*Request, len(reqs))
	for _, req := range reqs {
		stored := req
		stored.AmountIn = fixmath.Copy(req.AmountIn)
		stored.ExecutionFee = fixmath.Copy(req.ExecutionFee)
		b.requests[req.Key] = &stored
	}
}

// Pending reports the number of requests awaiting execution.
func (b *RequestBook) Pending() int {
	return len(b.requests)
}

// Get returns a pending request without removing it.
func (b *RequestBook) Get(key uuid.UUID) (*Request, bool) {
	req, ok := b.requests[key]
	return req, ok
}
