package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"toyshop/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type MemoryStore struct {
	initial  decimal.Decimal
	accounts sync.Map // accountID -> *atomic.Pointer[decimal.Decimal]

	mu      sync.RWMutex
	txs     map[uuid.UUID]*domain.Transaction
	byOrder map[string][]uuid.UUID
}

func NewMemoryStore(initial decimal.Decimal) *MemoryStore {
	return &MemoryStore{
		initial: initial,
		txs:     make(map[uuid.UUID]*domain.Transaction),
		byOrder: make(map[string][]uuid.UUID),
	}
}

func (s *MemoryStore) account(id string) *atomic.Pointer[decimal.Decimal] {
	if p, ok := s.accounts.Load(id); ok {
		return p.(*atomic.Pointer[decimal.Decimal])
	}
	fresh := &atomic.Pointer[decimal.Decimal]{}
	initial := s.initial
	fresh.Store(&initial)
	p, _ := s.accounts.LoadOrStore(id, fresh)
	return p.(*atomic.Pointer[decimal.Decimal])
}

func (s *MemoryStore) Balance(_ context.Context, accountID string) (decimal.Decimal, error) {
	return *s.account(accountID).Load(), nil
}

// Deduct subtracts amount with a compare-and-swap loop so concurrent
// deductions never lose an update or drive the balance negative.
func (s *MemoryStore) Deduct(_ context.Context, accountID string, amount decimal.Decimal) error {
	p := s.account(accountID)
	for {
		cur := p.Load()
		if cur.LessThan(amount) {
			return ErrInsufficientFunds
		}
		next := cur.Sub(amount)
		if p.CompareAndSwap(cur, &next) {
			return nil
		}
	}
}

func (s *MemoryStore) Credit(_ context.Context, accountID string, amount decimal.Decimal) error {
	p := s.account(accountID)
	for {
		cur := p.Load()
		next := cur.Add(amount)
		if p.CompareAndSwap(cur, &next) {
			return nil
		}
	}
}

func (s *MemoryStore) Charge(ctx context.Context, tx *domain.Transaction) error {
	err := s.Deduct(ctx, tx.AccountID, tx.Amount)
	if err != nil {
		tx.Status = domain.TransactionFailed
	} else {
		tx.Status = domain.TransactionPaid
	}
	s.record(tx)
	return err
}

func (s *MemoryStore) record(tx *domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tx
	s.txs[tx.ID] = &cp
	s.byOrder[tx.OrderID] = append(s.byOrder[tx.OrderID], tx.ID)
}

func (s *MemoryStore) FindTransaction(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.txs[id]
	if !ok {
		return nil, nil
	}
	cp := *tx
	return &cp, nil
}

func (s *MemoryStore) LatestForOrder(_ context.Context, orderID string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byOrder[orderID]
	if len(ids) == 0 {
		return nil, nil
	}
	cp := *s.txs[ids[len(ids)-1]]
	return &cp, nil
}

func (s *MemoryStore) Transition(_ context.Context, id uuid.UUID, from, to domain.TransactionStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(id, from, to), nil
}

func (s *MemoryStore) transitionLocked(id uuid.UUID, from, to domain.TransactionStatus) bool {
	tx, ok := s.txs[id]
	if !ok || tx.Status != from {
		return false
	}
	tx.Status = to
	tx.UpdatedAt = time.Now()
	return true
}

func (s *MemoryStore) Refund(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	if !s.transitionLocked(id, domain.TransactionPaid, domain.TransactionRefunded) {
		s.mu.Unlock()
		return false, nil
	}
	account, amount := s.txs[id].AccountID, s.txs[id].Amount
	s.mu.Unlock()

	return true, s.Credit(ctx, account, amount)
}
