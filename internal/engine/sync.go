package engine

import (
	"sync"
	"time"

	"backtester/types"

	"github.com/shopspring/decimal"
)

// SyncPortfolio serializes access to a Portfolio with a single mutex, for
// drivers that feed prices from several goroutines. Cash and position updates
// are only consistent with each other under the lock.
type SyncPortfolio struct {
	mu sync.Mutex
	p  *Portfolio
}

func NewSyncPortfolio(p *Portfolio) *SyncPortfolio {
	return &SyncPortfolio{p: p}
}

func (s *SyncPortfolio) SubmitOrder(order *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.SubmitOrder(order)
}

func (s *SyncPortfolio) Execute(order *Order, price decimal.Decimal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.Execute(order, price)
}

func (s *SyncPortfolio) SweepPending(prices map[string]decimal.Decimal) []*Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.SweepPending(prices)
}

func (s *SyncPortfolio) Revalue(prices map[string]decimal.Decimal, t time.Time) types.ValuationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.Revalue(prices, t)
}

func (s *SyncPortfolio) Summary() types.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.Summary()
}

func (s *SyncPortfolio) Cash() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.Cash()
}

func (s *SyncPortfolio) Positions() []types.PositionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.Positions()
}
