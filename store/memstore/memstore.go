// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package memstore 以記憶體實作 ledger.Store，供開發模式、測試與模擬使用。
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zintix-labs/dicelab/errs"
	"github.com/zintix-labs/dicelab/ledger"
)

type Store struct {
	mu       sync.RWMutex
	balances map[string]decimal.Decimal
	rounds   map[string]ledger.Round
	byUser   map[string][]string // 依寫入順序（舊到新）
	now      func() time.Time
	closed   bool
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		balances: make(map[string]decimal.Decimal),
		rounds:   make(map[string]ledger.Round),
		byUser:   make(map[string][]string),
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (s *Store) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getBalance(userID)
}

func (s *Store) SetBalance(ctx context.Context, userID string, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.balances[userID]; !ok {
		return errs.NotFoundf("account %s not found", userID)
	}
	s.balances[userID] = balance
	return nil
}

func (s *Store) OpenAccount(ctx context.Context, userID string, initial decimal.Decimal) (decimal.Decimal, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.balances[userID]; ok {
		return b, false, nil
	}
	s.balances[userID] = initial
	return initial, true, nil
}

func (s *Store) AppendRound(ctx context.Context, r ledger.Round) (ledger.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r = s.stamp(r)
	s.putRound(r)
	return r, nil
}

func (s *Store) ListRounds(ctx context.Context, userID string, limit int) ([]ledger.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listRounds(userID, limit), nil
}

func (s *Store) GetRound(ctx context.Context, id string) (ledger.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rounds[id]
	if !ok {
		return ledger.Round{}, errs.NotFoundf("round %s not found", id)
	}
	return r, nil
}

// WithinTx 持有寫鎖執行 fn；寫入先暫存在 txn，fn 成功才一次套用。
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errs.Closedf("memstore closed")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "memstore tx")
	}
	tx := &txn{s: s, balances: make(map[string]decimal.Decimal)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for id, b := range tx.balances {
		s.balances[id] = b
	}
	for _, r := range tx.rounds {
		s.putRound(r)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// 以下 helper 呼叫前必須已持有鎖。

func (s *Store) getBalance(userID string) (decimal.Decimal, error) {
	b, ok := s.balances[userID]
	if !ok {
		return decimal.Zero, errs.NotFoundf("account %s not found", userID)
	}
	return b, nil
}

func (s *Store) stamp(r ledger.Round) ledger.Round {
	r.ID = uuid.NewString()
	r.CreatedAt = s.now()
	return r
}

func (s *Store) putRound(r ledger.Round) {
	s.rounds[r.ID] = r
	s.byUser[r.UserID] = append(s.byUser[r.UserID], r.ID)
}

func (s *Store) listRounds(userID string, limit int) []ledger.Round {
	ids := s.byUser[userID]
	n := len(ids)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]ledger.Round, 0, n)
	for i := len(ids) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.rounds[ids[i]])
	}
	return out
}

// txn 交易內的暫存層，讀取時先看暫存再看底層。
type txn struct {
	s        *Store
	balances map[string]decimal.Decimal
	rounds   []ledger.Round
}

func (t *txn) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	if b, ok := t.balances[userID]; ok {
		return b, nil
	}
	return t.s.getBalance(userID)
}

func (t *txn) SetBalance(ctx context.Context, userID string, balance decimal.Decimal) error {
	if _, err := t.GetBalance(ctx, userID); err != nil {
		return err
	}
	t.balances[userID] = balance
	return nil
}

func (t *txn) OpenAccount(ctx context.Context, userID string, initial decimal.Decimal) (decimal.Decimal, bool, error) {
	if b, err := t.GetBalance(ctx, userID); err == nil {
		return b, false, nil
	}
	t.balances[userID] = initial
	return initial, true, nil
}

func (t *txn) AppendRound(ctx context.Context, r ledger.Round) (ledger.Round, error) {
	r = t.s.stamp(r)
	t.rounds = append(t.rounds, r)
	return r, nil
}

func (t *txn) ListRounds(ctx context.Context, userID string, limit int) ([]ledger.Round, error) {
	var staged []ledger.Round
	for i := len(t.rounds) - 1; i >= 0; i-- {
		if t.rounds[i].UserID == userID {
			staged = append(staged, t.rounds[i])
		}
	}
	out := append(staged, t.s.listRounds(userID, 0)...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *txn) GetRound(ctx context.Context, id string) (ledger.Round, error) {
	for _, r := range t.rounds {
		if r.ID == id {
			return r, nil
		}
	}
	r, ok := t.s.rounds[id]
	if !ok {
		return ledger.Round{}, errs.NotFoundf("round %s not found", id)
	}
	return r, nil
}
