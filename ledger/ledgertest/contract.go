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


// Package ledgertest 提供 ledger.Store 實作共用的契約測試。
package ledgertest

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/dicelab/errs"
	"github.com/zintix-labs/dicelab/fairness"
	"github.com/zintix-labs/dicelab/ledger"
)

// Factory 每次呼叫回傳一個全新、空白的 Store。
type Factory func(t *testing.T) ledger.Store

// SampleRound 回傳一筆可通過 Verify 的紀錄（ID/CreatedAt 由 store 指派）。
func SampleRound(userID string) ledger.Round {
	seed := "a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90"
	target := decimal.NewFromInt(50)
	out, _ := fairness.Derive("contract", seed, target, fairness.Under)
	mult := decimal.RequireFromString("1.98")
	payout := decimal.Zero
	if out.Won {
		payout = decimal.NewFromInt(10).Mul(mult)
	}
	return ledger.Round{
		UserID:         userID,
		BetAmount:      decimal.NewFromInt(10),
		Target:         target,
		Direction:      fairness.Under,
		Multiplier:     mult,
		ClientSeed:     "contract",
		ServerSeed:     seed,
		ServerSeedHash: fairness.HashSeed(seed),
		Roll:           out.Roll,
		Won:            out.Won,
		Payout:         payout,
	}
}

// Run 對 Store 實作跑完整契約。
func Run(t *testing.T, newStore Factory) {
	t.Run("open_account_idempotent", func(t *testing.T) { testOpenAccount(t, newStore(t)) })
	t.Run("balance_not_found", func(t *testing.T) { testBalanceNotFound(t, newStore(t)) })
	t.Run("append_and_list", func(t *testing.T) { testAppendAndList(t, newStore(t)) })
	t.Run("tx_commit", func(t *testing.T) { testTxCommit(t, newStore(t)) })
	t.Run("tx_rollback", func(t *testing.T) { testTxRollback(t, newStore(t)) })
	t.Run("round_fields_preserved", func(t *testing.T) { testRoundFields(t, newStore(t)) })
}

func testOpenAccount(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	bal, created, err := s.OpenAccount(ctx, "u1", decimal.NewFromInt(1000))
	if err != nil || !created || !bal.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("OpenAccount = %s %t %v", bal, created, err)
	}
	if err := s.SetBalance(ctx, "u1", decimal.RequireFromString("12.5")); err != nil {
		t.Fatalf("SetBalance error = %v", err)
	}
	bal, created, err = s.OpenAccount(ctx, "u1", decimal.NewFromInt(1000))
	if err != nil || created || !bal.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("second OpenAccount = %s %t %v", bal, created, err)
	}
}

func testBalanceNotFound(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	if _, err := s.GetBalance(ctx, "ghost"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("GetBalance error = %v, want not found", err)
	}
	if err := s.SetBalance(ctx, "ghost", decimal.NewFromInt(1)); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("SetBalance error = %v, want not found", err)
	}
	if _, err := s.GetRound(ctx, "missing"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("GetRound error = %v, want not found", err)
	}
}

func testAppendAndList(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	var ids []string
	for i := 0; i < 5; i++ {
		r, err := s.AppendRound(ctx, SampleRound("u1"))
		if err != nil {
			t.Fatalf("AppendRound error = %v", err)
		}
		if r.ID == "" || r.CreatedAt.IsZero() {
			t.Fatalf("AppendRound must assign id and created_at: %+v", r)
		}
		ids = append(ids, r.ID)
	}
	if _, err := s.AppendRound(ctx, SampleRound("u2")); err != nil {
		t.Fatalf("AppendRound error = %v", err)
	}

	all, err := s.ListRounds(ctx, "u1", 0)
	if err != nil || len(all) != 5 {
		t.Fatalf("ListRounds all = %d, %v", len(all), err)
	}
	for i := range all {
		if all[i].ID != ids[len(ids)-1-i] {
			t.Fatalf("ListRounds not newest first at %d", i)
		}
	}
	two, err := s.ListRounds(ctx, "u1", 2)
	if err != nil || len(two) != 2 || two[0].ID != ids[4] {
		t.Fatalf("ListRounds limit = %v, %v", two, err)
	}
	none, err := s.ListRounds(ctx, "nobody", 10)
	if err != nil || len(none) != 0 {
		t.Fatalf("ListRounds unknown user = %v, %v", none, err)
	}
}

func testTxCommit(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	if _, _, err := s.OpenAccount(ctx, "u1", decimal.NewFromInt(100)); err != nil {
		t.Fatalf("OpenAccount error = %v", err)
	}
	var id string
	err := s.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		bal, err := tx.GetBalance(ctx, "u1")
		if err != nil {
			return err
		}
		if err := tx.SetBalance(ctx, "u1", bal.Sub(decimal.NewFromInt(10))); err != nil {
			return err
		}
		// 交易內讀得到自己的寫入
		if b, _ := tx.GetBalance(ctx, "u1"); !b.Equal(decimal.NewFromInt(90)) {
			t.Errorf("read-your-writes balance = %s", b)
		}
		r, err := tx.AppendRound(ctx, SampleRound("u1"))
		id = r.ID
		return err
	})
	if err != nil {
		t.Fatalf("WithinTx error = %v", err)
	}
	if bal, _ := s.GetBalance(ctx, "u1"); !bal.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("committed balance = %s", bal)
	}
	if _, err := s.GetRound(ctx, id); err != nil {
		t.Fatalf("committed round missing: %v", err)
	}
}

func testTxRollback(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	if _, _, err := s.OpenAccount(ctx, "u1", decimal.NewFromInt(100)); err != nil {
		t.Fatalf("OpenAccount error = %v", err)
	}
	boom := errs.Invalidf("boom")
	err := s.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if err := tx.SetBalance(ctx, "u1", decimal.Zero); err != nil {
			return err
		}
		if _, err := tx.AppendRound(ctx, SampleRound("u1")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("WithinTx error = %v, want the fn error", err)
	}
	if bal, _ := s.GetBalance(ctx, "u1"); !bal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("balance after rollback = %s", bal)
	}
	if rs, _ := s.ListRounds(ctx, "u1", 0); len(rs) != 0 {
		t.Fatalf("rounds after rollback = %d", len(rs))
	}
}

func testRoundFields(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	in := SampleRound("u9")
	in.BetAmount = decimal.RequireFromString("0.12345678")
	in.Payout = decimal.Zero
	in.Won = false
	saved, err := s.AppendRound(ctx, in)
	if err != nil {
		t.Fatalf("AppendRound error = %v", err)
	}
	got, err := s.GetRound(ctx, saved.ID)
	if err != nil {
		t.Fatalf("GetRound error = %v", err)
	}
	if got.UserID != in.UserID || !got.BetAmount.Equal(in.BetAmount) || !got.Target.Equal(in.Target) ||
		got.Direction != in.Direction || !got.Multiplier.Equal(in.Multiplier) ||
		got.ClientSeed != in.ClientSeed || got.ServerSeed != in.ServerSeed ||
		got.ServerSeedHash != in.ServerSeedHash || !got.Roll.Equal(in.Roll) ||
		got.Won != in.Won || !got.Payout.Equal(in.Payout) {
		t.Fatalf("round fields changed:\n got  %+v\n want %+v", got, in)
	}
	if !got.CreatedAt.Equal(saved.CreatedAt) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, saved.CreatedAt)
	}
}
