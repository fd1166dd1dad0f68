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


package ledger_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/dicelab/errs"
	"github.com/zintix-labs/dicelab/fairness"
	"github.com/zintix-labs/dicelab/ledger"
	"github.com/zintix-labs/dicelab/odds"
	"github.com/zintix-labs/dicelab/store/memstore"
)

var seedA = strings.Repeat("a", 64)

func newLedger(t *testing.T, balance int64) *ledger.Ledger {
	t.Helper()
	l := ledger.New(memstore.New(), 4)
	if _, _, err := l.Open(context.Background(), "u1", decimal.NewFromInt(balance)); err != nil {
		t.Fatalf("Open error = %v", err)
	}
	return l
}

func settleScenario(t *testing.T, l *ledger.Ledger, bet decimal.Decimal) (ledger.Settlement, error) {
	t.Helper()
	req := ledger.Request{UserID: "u1", BetAmount: bet, Target: decimal.NewFromInt(50), Direction: fairness.Under, ClientSeed: "client-1324"}
	out, err := fairness.Derive(req.ClientSeed, seedA, req.Target, req.Direction)
	if err != nil {
		t.Fatalf("Derive error = %v", err)
	}
	mult, _ := odds.Multiplier(req.Target, req.Direction)
	cm := fairness.Commitment{ServerSeed: seedA, ServerSeedHash: fairness.HashSeed(seedA)}
	return l.Settle(context.Background(), req, cm, out, mult)
}

func TestSettleWinningScenario(t *testing.T) {
	l := newLedger(t, 1000)
	res, err := settleScenario(t, l, decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("Settle error = %v", err)
	}
	// roll 25.00 < 50 => won, 10 × 1.98 = 19.8
	if !res.Round.Won || !res.Round.Payout.Equal(decimal.RequireFromString("19.8")) {
		t.Fatalf("round = %+v", res.Round)
	}
	if !res.NewBalance.Equal(decimal.RequireFromString("1009.8")) {
		t.Fatalf("new balance = %s", res.NewBalance)
	}
	if res.Round.ID == "" || res.Round.ServerSeed != seedA {
		t.Fatalf("round must carry id and revealed seed: %+v", res.Round)
	}
	if _, err := res.Round.Verify(); err != nil {
		t.Fatalf("Verify error = %v", err)
	}
	bal, _ := l.Store().GetBalance(context.Background(), "u1")
	if !bal.Equal(res.NewBalance) {
		t.Fatalf("stored balance = %s", bal)
	}
}

func TestSettleRejectsWithoutEffect(t *testing.T) {
	l := newLedger(t, 5)
	if _, err := settleScenario(t, l, decimal.NewFromInt(6)); !errors.Is(err, errs.ErrInsufficientBalance) {
		t.Fatalf("error = %v, want insufficient balance", err)
	}
	if _, err := settleScenario(t, l, decimal.Zero); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("error = %v, want invalid input", err)
	}
	if _, err := settleScenario(t, l, decimal.NewFromInt(-1)); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("error = %v, want invalid input", err)
	}
	bal, _ := l.Store().GetBalance(context.Background(), "u1")
	rounds, _ := l.Store().ListRounds(context.Background(), "u1", 0)
	if !bal.Equal(decimal.NewFromInt(5)) || len(rounds) != 0 {
		t.Fatalf("rejection had effect: balance %s rounds %d", bal, len(rounds))
	}
	m := l.Metrics()
	if m.Rejected != 3 || m.Settled != 0 {
		t.Fatalf("metrics = %+v", m)
	}
}

func TestSettleUnknownAccount(t *testing.T) {
	l := ledger.New(memstore.New(), 0)
	if _, err := settleScenario(t, l, decimal.NewFromInt(1)); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
}

func TestConcurrentSettleNeverOverdraws(t *testing.T) {
	l := newLedger(t, 100)
	ctx := context.Background()
	// 每局都輸：Over 98 配 roll 25.00
	req := ledger.Request{UserID: "u1", BetAmount: decimal.NewFromInt(7), Target: decimal.NewFromInt(98), Direction: fairness.Over, ClientSeed: "client-1324"}
	out, _ := fairness.Derive(req.ClientSeed, seedA, req.Target, req.Direction)
	if out.Won {
		t.Fatalf("expected a losing outcome")
	}
	mult, _ := odds.Multiplier(req.Target, req.Direction)
	cm := fairness.Commitment{ServerSeed: seedA, ServerSeedHash: fairness.HashSeed(seedA)}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, poor int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Settle(ctx, req, cm, out, mult)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, errs.ErrInsufficientBalance):
				poor++
			default:
				t.Errorf("unexpected error = %v", err)
			}
		}()
	}
	wg.Wait()
	if ok != 14 || poor != 36 {
		t.Fatalf("settled %d rejected %d, want 14/36", ok, poor)
	}
	bal, _ := l.Store().GetBalance(ctx, "u1")
	if !bal.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("final balance = %s, want 2", bal)
	}
}

func TestSettleCancelledContext(t *testing.T) {
	l := newLedger(t, 100)
	cctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := ledger.Request{UserID: "u1", BetAmount: decimal.NewFromInt(1), Target: decimal.NewFromInt(50), Direction: fairness.Over, ClientSeed: "c"}
	cm := fairness.Commitment{ServerSeed: seedA, ServerSeedHash: fairness.HashSeed(seedA)}
	_, err := l.Settle(cctx, req, cm, fairness.Outcome{Roll: decimal.NewFromInt(25)}, decimal.RequireFromString("1.98"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context canceled", err)
	}
	if bal, _ := l.Store().GetBalance(context.Background(), "u1"); !bal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("cancelled settlement changed balance: %s", bal)
	}
}

func TestClosedLedger(t *testing.T) {
	l := newLedger(t, 100)
	l.Close("maintenance")
	l.Close("again")
	if _, err := settleScenario(t, l, decimal.NewFromInt(1)); !errors.Is(err, errs.ErrClosed) {
		t.Fatalf("error = %v, want closed", err)
	}
	m := l.Metrics()
	if !m.Closed || m.CloseReason != "maintenance" {
		t.Fatalf("metrics = %+v", m)
	}
}

func TestRoundVerifyDetectsTampering(t *testing.T) {
	l := newLedger(t, 1000)
	res, err := settleScenario(t, l, decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("Settle error = %v", err)
	}
	tamper := []func(r *ledger.Round){
		func(r *ledger.Round) { r.ServerSeed = strings.Repeat("b", 64) },
		func(r *ledger.Round) { r.ServerSeedHash = fairness.HashSeed("x") },
		func(r *ledger.Round) { r.ClientSeed = "other" },
		func(r *ledger.Round) { r.Roll = decimal.RequireFromString("25.01") },
		func(r *ledger.Round) { r.Won = false },
		func(r *ledger.Round) { r.Multiplier = decimal.NewFromInt(2) },
		func(r *ledger.Round) { r.Payout = decimal.NewFromInt(20) },
		func(r *ledger.Round) { r.Target = decimal.NewFromInt(20) },
		func(r *ledger.Round) { r.Direction = fairness.Over },
	}
	for i, f := range tamper {
		r := res.Round
		f(&r)
		if _, err := r.Verify(); !errors.Is(err, errs.ErrVerificationMismatch) {
			t.Fatalf("tamper %d: error = %v, want mismatch", i, err)
		}
	}
}

func TestMetricsVolume(t *testing.T) {
	l := newLedger(t, 1000)
	for i := 0; i < 3; i++ {
		if _, err := settleScenario(t, l, decimal.NewFromInt(10)); err != nil {
			t.Fatalf("Settle error = %v", err)
		}
	}
	m := l.Metrics()
	if m.Settled != 3 || m.Wagered != "30" || m.PaidOut != "59.4" || m.Inflight != 0 {
		t.Fatalf("metrics = %+v", m)
	}
}
