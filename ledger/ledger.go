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


// Package ledger 是餘額唯一的寫入者：單局結算（扣注、派彩、寫入紀錄）在同一個交易內完成。
//
// 同一位使用者的結算依到達順序逐一執行。排隊以固定數量的 shard 完成，
// 每個 shard 是容量為 1 的 channel，使用者以 fnv32a(userID) 對應到 shard；
// 不同使用者只有在 shard 碰撞時才會互相等待。
package ledger

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/dicelab/errs"
	"github.com/zintix-labs/dicelab/fairness"
	"github.com/zintix-labs/dicelab/odds"
)

// DefaultShards 預設 shard 數量。
const DefaultShards = 64

// Request 一局下注請求，送出後不可變。
type Request struct {
	UserID     string
	BetAmount  decimal.Decimal
	Target     decimal.Decimal
	Direction  fairness.Direction
	ClientSeed string
}

// Validate 只檢查與餘額無關的欄位。
func (r Request) Validate() error {
	if r.UserID == "" {
		return errs.Invalidf("user id is required")
	}
	if !r.BetAmount.IsPositive() {
		return errs.Invalidf("bet amount must be positive, got %s", r.BetAmount)
	}
	if r.ClientSeed == "" {
		return errs.Invalidf("client seed is required")
	}
	if !r.Direction.Valid() {
		return errs.Invalidf("invalid direction")
	}
	return fairness.ValidateTarget(r.Target)
}

// Settlement 結算結果。
type Settlement struct {
	NewBalance decimal.Decimal `json:"new_balance"`
	Round      Round           `json:"round"`
}

type Ledger struct {
	store  Store
	shards []chan struct{}

	done      chan struct{}
	closeOnce sync.Once
	reason    atomic.Value // string

	settled  atomic.Int64
	rejected atomic.Int64
	failed   atomic.Int64
	inflight atomic.Int32
	volume   decimalCounter
}

// New 建立 Ledger；shards <= 0 時使用 DefaultShards。
func New(store Store, shards int) *Ledger {
	if shards <= 0 {
		shards = DefaultShards
	}
	l := &Ledger{
		store:  store,
		shards: make([]chan struct{}, shards),
		done:   make(chan struct{}),
	}
	for i := range l.shards {
		l.shards[i] = make(chan struct{}, 1)
	}
	l.reason.Store("")
	return l
}

func (l *Ledger) Store() Store { return l.store }

func (l *Ledger) shardOf(userID string) chan struct{} {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return l.shards[h.Sum32()%uint32(len(l.shards))]
}

// acquire 進入使用者的佇列。ctx 取消時離開佇列，不留下任何效果。
func (l *Ledger) acquire(ctx context.Context, userID string) (release func(), err error) {
	sh := l.shardOf(userID)
	select {
	case <-l.done:
		return nil, errs.Closedf("ledger closed: %s", l.ClosedReason())
	default:
	}
	select {
	case <-l.done:
		return nil, errs.Closedf("ledger closed: %s", l.ClosedReason())
	case <-ctx.Done():
		return nil, errs.Wrap(ctx.Err(), "settlement queue")
	case sh <- struct{}{}:
	}
	l.inflight.Add(1)
	return func() {
		l.inflight.Add(-1)
		<-sh
	}, nil
}

// Settle 在單一交易內完成：讀餘額、檢查 bet <= balance、
// newBalance = balance − bet + payout、寫回餘額、追加 Round。
// 任何拒絕都發生在寫入之前。
func (l *Ledger) Settle(ctx context.Context, req Request, cm fairness.Commitment, out fairness.Outcome, multiplier decimal.Decimal) (Settlement, error) {
	if err := req.Validate(); err != nil {
		l.rejected.Add(1)
		return Settlement{}, err
	}
	release, err := l.acquire(ctx, req.UserID)
	if err != nil {
		return Settlement{}, err
	}
	defer release()

	payout := odds.Payout(req.BetAmount, multiplier, out.Won)
	var res Settlement
	err = l.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		bal, err := tx.GetBalance(ctx, req.UserID)
		if err != nil {
			return err
		}
		if req.BetAmount.GreaterThan(bal) {
			return errs.Insufficientf("bet %s exceeds balance %s", req.BetAmount, bal)
		}
		newBal := bal.Sub(req.BetAmount).Add(payout)
		if err := tx.SetBalance(ctx, req.UserID, newBal); err != nil {
			return err
		}
		r, err := tx.AppendRound(ctx, Round{
			UserID:         req.UserID,
			BetAmount:      req.BetAmount,
			Target:         req.Target,
			Direction:      req.Direction,
			Multiplier:     multiplier,
			ClientSeed:     req.ClientSeed,
			ServerSeed:     cm.ServerSeed,
			ServerSeedHash: cm.ServerSeedHash,
			Roll:           out.Roll,
			Won:            out.Won,
			Payout:         payout,
		})
		if err != nil {
			return err
		}
		res = Settlement{NewBalance: newBal, Round: r}
		return nil
	})
	if err != nil {
		if errs.Level(err) == errs.Warn {
			l.rejected.Add(1)
		} else {
			l.failed.Add(1)
		}
		return Settlement{}, err
	}
	l.settled.Add(1)
	l.volume.add(req.BetAmount, payout)
	return res, nil
}

// Open 開戶（冪等），與結算走同一個佇列。
func (l *Ledger) Open(ctx context.Context, userID string, initial decimal.Decimal) (decimal.Decimal, bool, error) {
	if userID == "" {
		return decimal.Zero, false, errs.Invalidf("user id is required")
	}
	if initial.IsNegative() {
		return decimal.Zero, false, errs.Invalidf("initial balance must not be negative")
	}
	release, err := l.acquire(ctx, userID)
	if err != nil {
		return decimal.Zero, false, err
	}
	defer release()
	return l.store.OpenAccount(ctx, userID, initial)
}

// Close 進入關閉狀態，之後的 Settle/Open 直接回 ErrClosed。可重複呼叫。
func (l *Ledger) Close(reason string) {
	l.closeOnce.Do(func() {
		if reason == "" {
			reason = "closed"
		}
		l.reason.Store(reason)
		close(l.done)
	})
}

func (l *Ledger) Closed() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

func (l *Ledger) ClosedReason() string {
	if s, ok := l.reason.Load().(string); ok {
		return s
	}
	return ""
}

// Metrics 拉取式觀測快照；不綁任何 telemetry SDK。
type Metrics struct {
	Shards      int    `json:"shards"`
	Inflight    int    `json:"inflight"`
	Settled     int64  `json:"settled"`
	Rejected    int64  `json:"rejected"` // 可預期的拒絕（餘額不足、參數錯誤）
	Errors      int64  `json:"errors"`   // 非預期錯誤（store 故障等）
	Wagered     string `json:"wagered"`
	PaidOut     string `json:"paid_out"`
	Closed      bool   `json:"closed"`
	CloseReason string `json:"close_reason"`
}

func (l *Ledger) Metrics() Metrics {
	w, p := l.volume.load()
	return Metrics{
		Shards:      len(l.shards),
		Inflight:    int(l.inflight.Load()),
		Settled:     l.settled.Load(),
		Rejected:    l.rejected.Load(),
		Errors:      l.failed.Load(),
		Wagered:     w.String(),
		PaidOut:     p.String(),
		Closed:      l.Closed(),
		CloseReason: l.ClosedReason(),
	}
}

// decimalCounter 累計總投注與總派彩。
type decimalCounter struct {
	mu      sync.Mutex
	wagered decimal.Decimal
	paidOut decimal.Decimal
}

func (c *decimalCounter) add(bet, payout decimal.Decimal) {
	c.mu.Lock()
	c.wagered = c.wagered.Add(bet)
	c.paidOut = c.paidOut.Add(payout)
	c.mu.Unlock()
}

func (c *decimalCounter) load() (decimal.Decimal, decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wagered, c.paidOut
}
