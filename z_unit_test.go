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


package dicelab_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/dicelab"
	"github.com/zintix-labs/dicelab/autobet"
	"github.com/zintix-labs/dicelab/errs"
	"github.com/zintix-labs/dicelab/fairness"
	"github.com/zintix-labs/dicelab/house"
	"github.com/zintix-labs/dicelab/ledger"
	"github.com/zintix-labs/dicelab/store/memstore"
	"github.com/zintix-labs/dicelab/strategy"
)

// constReader 每個位元組都回傳同一個值；0xaa 讓 server seed 為 64 個 'a'。
type constReader byte

func (c constReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(c)
	}
	return len(p), nil
}

type failReader struct{}

func (failReader) Read(p []byte) (int, error) { return 0, errors.New("no entropy") }

var seedA = strings.Repeat("a", 64)

func newEngine(t *testing.T, opts ...dicelab.Option) *dicelab.Engine {
	t.Helper()
	opts = append([]dicelab.Option{dicelab.WithRand(constReader(0xaa))}, opts...)
	e, err := dicelab.New(memstore.New(), opts...)
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	return e
}

func under50(user, clientSeed string, bet int64) dicelab.PlaceRequest {
	return dicelab.PlaceRequest{Request: ledger.Request{
		UserID:     user,
		BetAmount:  decimal.NewFromInt(bet),
		Target:     decimal.NewFromInt(50),
		Direction:  fairness.Under,
		ClientSeed: clientSeed,
	}}
}

func TestCommitPlaceReveal(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	hash, err := e.Commit(ctx, "u1")
	if err != nil {
		t.Fatalf("Commit error = %v", err)
	}
	if hash != fairness.HashSeed(seedA) {
		t.Fatalf("hash = %s", hash)
	}
	req := under50("u1", "client-1324", 10)
	req.ServerSeedHash = hash
	res, err := e.Place(ctx, req)
	if err != nil {
		t.Fatalf("Place error = %v", err)
	}
	if res.ServerSeed != seedA || res.ServerSeedHash != hash {
		t.Fatalf("seed not revealed: %+v", res)
	}
	if res.Round.Roll.StringFixed(2) != "25.00" || !res.Round.Won || !res.Round.Multiplier.Equal(decimal.RequireFromString("1.98")) {
		t.Fatalf("round = %+v", res.Round)
	}
	if !res.NewBalance.Equal(decimal.RequireFromString("1009.8")) {
		t.Fatalf("balance = %s", res.NewBalance)
	}
	if res.NextServerSeedHash == "" {
		t.Fatalf("next commitment missing")
	}
	if next, _ := e.Commit(ctx, "u1"); next != res.NextServerSeedHash {
		t.Fatalf("Commit after Place = %s, want %s", next, res.NextServerSeedHash)
	}
	r, out, err := e.VerifyRound(ctx, res.Round.ID)
	if err != nil || r.ID != res.Round.ID || !out.Won {
		t.Fatalf("VerifyRound = %+v %+v %v", r, out, err)
	}
}

func TestPlaceRequiresPendingCommitment(t *testing.T) {
	e := newEngine(t)
	_, err := e.Place(context.Background(), under50("u1", "c", 1))
	if !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("error = %v, want invalid input", err)
	}
}

func TestFailedPlaceKeepsCommitment(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	hash, _ := e.Commit(ctx, "u1")

	stale := under50("u1", "c", 1)
	stale.ServerSeedHash = "00"
	if _, err := e.Place(ctx, stale); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("stale hash error = %v", err)
	}
	if _, err := e.Place(ctx, under50("u1", "c", 5000)); !errors.Is(err, errs.ErrInsufficientBalance) {
		t.Fatalf("overdraw error = %v", err)
	}
	if _, err := e.Place(ctx, under50("u1", "", 1)); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("empty client seed error = %v", err)
	}
	if again, _ := e.Commit(ctx, "u1"); again != hash {
		t.Fatalf("failed bets must not consume the commitment")
	}
	if bal, _ := e.Balance(ctx, "u1"); !bal.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("balance = %s", bal)
	}
	if rs, _ := e.Rounds(ctx, "u1", 0); len(rs) != 0 {
		t.Fatalf("rounds = %d", len(rs))
	}
}

func TestRoundsNewestFirstAndDefaultUser(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	var ids []string
	for i := 0; i < 3; i++ {
		if _, err := e.Commit(ctx, ""); err != nil {
			t.Fatalf("Commit error = %v", err)
		}
		res, err := e.Place(ctx, under50("", "client-1324", 1))
		if err != nil {
			t.Fatalf("Place error = %v", err)
		}
		if res.Round.UserID != "1" {
			t.Fatalf("default user = %q", res.Round.UserID)
		}
		ids = append(ids, res.Round.ID)
	}
	rs, err := e.Rounds(ctx, "1", 2)
	if err != nil || len(rs) != 2 || rs[0].ID != ids[2] || rs[1].ID != ids[1] {
		t.Fatalf("Rounds = %v, %v", rs, err)
	}
	if _, err := e.Round(ctx, "missing"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("Round error = %v", err)
	}
}

func TestHouseBetLimits(t *testing.T) {
	s, err := house.SettingByYAML([]byte("initial_balance: \"100\"\nmin_bet: \"1\"\nmax_bet: \"10\"\n"))
	if err != nil {
		t.Fatalf("setting error = %v", err)
	}
	e := newEngine(t, dicelab.WithHouse(s))
	ctx := context.Background()
	if bal, _ := e.Balance(ctx, "u1"); !bal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("initial balance = %s", bal)
	}
	_, _ = e.Commit(ctx, "u1")
	if _, err := e.Place(ctx, under50("u1", "c", 11)); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("above max error = %v", err)
	}
}

func TestEntropyFailureSurfaces(t *testing.T) {
	e, err := dicelab.New(memstore.New(), dicelab.WithRand(failReader{}))
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	if _, err := e.Commit(context.Background(), "u1"); !errors.Is(err, errs.ErrEntropyUnavailable) {
		t.Fatalf("Commit error = %v", err)
	}
	if _, err := e.ClientSeed(); !errors.Is(err, errs.ErrEntropyUnavailable) {
		t.Fatalf("ClientSeed error = %v", err)
	}
}

func TestVerifyStateless(t *testing.T) {
	e := newEngine(t)
	v, err := e.Verify("client-1324", seedA, fairness.HashSeed(seedA), decimal.NewFromInt(50), fairness.Under)
	if err != nil || !v.Outcome.Won || v.HashOK == nil || !*v.HashOK {
		t.Fatalf("Verify = %+v, %v", v, err)
	}
	if _, err := e.Verify("client-1324", seedA, "bad", decimal.NewFromInt(50), fairness.Under); !errors.Is(err, errs.ErrVerificationMismatch) {
		t.Fatalf("Verify mismatch error = %v", err)
	}
}

func TestQuote(t *testing.T) {
	e := newEngine(t)
	q, err := e.Quote(decimal.NewFromInt(50), fairness.Over, decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("Quote error = %v", err)
	}
	if !q.Multiplier.Equal(decimal.RequireFromString("1.98")) || !q.PayoutOnWin.Equal(decimal.RequireFromString("19.8")) ||
		!q.ProfitOnWin.Equal(decimal.RequireFromString("9.8")) || !q.WinChance.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("quote = %+v", q)
	}
}

func TestCloseRejectsWrites(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	_, _ = e.Commit(ctx, "u1")
	e.Close("maintenance")
	if _, err := e.Place(ctx, under50("u1", "c", 1)); !errors.Is(err, errs.ErrClosed) {
		t.Fatalf("Place error = %v", err)
	}
	if e.ClosedReason() != "maintenance" || !e.Metrics().Closed {
		t.Fatalf("close reason = %q", e.ClosedReason())
	}
}

func TestReservationBlocksManualBets(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	_, _ = e.Commit(ctx, "u1")
	r, err := e.Reserve("u1")
	if err != nil {
		t.Fatalf("Reserve error = %v", err)
	}
	if _, err := e.Reserve("u1"); !errors.Is(err, errs.ErrBusy) {
		t.Fatalf("second Reserve error = %v", err)
	}
	if _, err := e.Place(ctx, under50("u1", "c", 1)); !errors.Is(err, errs.ErrBusy) {
		t.Fatalf("manual Place error = %v", err)
	}
	st, err := r.Place(ctx, under50("u1", "client-1324", 1).Request)
	if err != nil || !st.Round.Won {
		t.Fatalf("reserved Place = %+v, %v", st, err)
	}
	r.Release()
	r.Release()
	_, _ = e.Commit(ctx, "u1")
	if _, err := e.Place(ctx, under50("u1", "c", 1)); err != nil {
		t.Fatalf("Place after release error = %v", err)
	}
}

func TestAutoBetThroughEngine(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	m := autobet.NewManager(e.AutoBetVenue(), e.House(), nil,
		autobet.WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }))
	defer m.Close()

	cfg := autobet.Config{
		Config:       strategy.Config{Kind: strategy.Fibonacci, BaseBet: decimal.NewFromInt(2), MaxBet: decimal.NewFromInt(50)},
		Target:       decimal.NewFromInt(50),
		Direction:    fairness.Over,
		NumberOfBets: 4,
		DelayMs:      500,
	}
	if _, err := m.Start(ctx, "u7", cfg); err != nil {
		t.Fatalf("Start error = %v", err)
	}
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := m.Wait(wctx, "u7"); err != nil {
		t.Fatalf("Wait error = %v", err)
	}
	st := m.Status("u7")
	if st.StopReason != autobet.ReasonCount || st.BetsPlaced != 4 {
		t.Fatalf("state = %+v", st)
	}
	rs, _ := e.Rounds(ctx, "u7", 0)
	if len(rs) != 4 {
		t.Fatalf("rounds = %d", len(rs))
	}
	bal, _ := e.Balance(ctx, "u7")
	if !bal.Equal(st.Balance) {
		t.Fatalf("balance %s != run balance %s", bal, st.Balance)
	}
	for _, r := range rs {
		if _, err := r.Verify(); err != nil {
			t.Fatalf("auto round does not verify: %v", err)
		}
	}
}

// gatedStore 上膛後，下一個交易停在 entered / release 之間。
type gatedStore struct {
	*memstore.Store
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (s *gatedStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	if s.armed.CompareAndSwap(true, false) {
		close(s.entered)
		<-s.release
	}
	return s.Store.WithinTx(ctx, fn)
}

func TestManualRoundInFlightExcludesAutoBet(t *testing.T) {
	ctx := context.Background()
	gs := &gatedStore{Store: memstore.New(), entered: make(chan struct{}), release: make(chan struct{})}
	e, err := dicelab.New(gs, dicelab.WithRand(constReader(0xaa)))
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	m := autobet.NewManager(e.AutoBetVenue(), e.House(), nil,
		autobet.WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }))
	defer m.Close()
	cfg := autobet.Config{
		Config:       strategy.Config{Kind: strategy.Martingale, BaseBet: decimal.NewFromInt(1), MaxBet: decimal.NewFromInt(10)},
		Target:       decimal.NewFromInt(50),
		Direction:    fairness.Over,
		NumberOfBets: 1,
		DelayMs:      500,
	}

	if _, err := e.Commit(ctx, "u1"); err != nil {
		t.Fatalf("Commit error = %v", err)
	}
	gs.armed.Store(true)
	placed := make(chan error, 1)
	go func() {
		_, err := e.Place(ctx, under50("u1", "client-1324", 10))
		placed <- err
	}()
	<-gs.entered

	// 手動局結算中：自動下注、保留與第二筆手動下注都要被擋下
	if _, err := m.Start(ctx, "u1", cfg); !errors.Is(err, errs.ErrBusy) {
		t.Fatalf("Start during manual round error = %v, want busy", err)
	}
	if _, err := e.Reserve("u1"); !errors.Is(err, errs.ErrBusy) {
		t.Fatalf("Reserve during manual round error = %v, want busy", err)
	}
	if _, err := e.Place(ctx, under50("u1", "c", 1)); !errors.Is(err, errs.ErrBusy) {
		t.Fatalf("second manual Place error = %v, want busy", err)
	}

	close(gs.release)
	if err := <-placed; err != nil {
		t.Fatalf("manual Place error = %v", err)
	}
	afterManual, _ := e.Balance(ctx, "u1")

	// 手動局結束後可以開始自動下注，run 的起始餘額已包含手動局
	st, err := m.Start(ctx, "u1", cfg)
	if err != nil {
		t.Fatalf("Start after manual round error = %v", err)
	}
	if !st.StartingBalance.Equal(afterManual) {
		t.Fatalf("starting balance = %s, want %s", st.StartingBalance, afterManual)
	}
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := m.Wait(wctx, "u1"); err != nil {
		t.Fatalf("Wait error = %v", err)
	}
	if rs, _ := e.Rounds(ctx, "u1", 0); len(rs) != 2 {
		t.Fatalf("rounds = %d, want 2", len(rs))
	}
}
