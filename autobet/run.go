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


// Package autobet 在無人操作下連續下注：依策略決定下一注、依停止條件結束。
//
// 每位使用者同時最多一個執行中的 run；run 期間該使用者的手動下注會被拒絕。
// 取消只會阻止下一局，已送出的那一局一定會結算完。
package autobet

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/dicelab/ledger"
)

// Session 使用者在 run 期間持有的下注權；Release 之後手動下注才會恢復。
type Session interface {
	Place(ctx context.Context, req ledger.Request) (ledger.Settlement, error)
	Release()
}

// Venue 排程器需要的下注場所。
type Venue interface {
	// Reserve 取得使用者的獨占下注權；已被占用時回 errs.ErrBusy。
	Reserve(userID string) (Session, error)
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
	ClientSeed() (string, error)
}

// run 一次自動下注的執行個體。
type run struct {
	userID  string
	tracker *Tracker
	session Session
	venue   Venue
	cancel  context.CancelFunc
	done    chan struct{}
	sleep   func(ctx context.Context, d time.Duration) error
	emit    func(Event)
	log     *slog.Logger
	now     func() time.Time
}

func (r *run) loop(ctx context.Context) {
	defer close(r.done)
	defer r.session.Release()

	cfg := r.tracker.Config()
	delay := time.Duration(cfg.DelayMs) * time.Millisecond

	for {
		if ctx.Err() != nil {
			r.finish(ReasonCancelled, nil)
			return
		}
		seed := cfg.ClientSeed
		if seed == "" {
			s, err := r.venue.ClientSeed()
			if err != nil {
				r.finish(ReasonError, err)
				return
			}
			seed = s
		}
		req := ledger.Request{
			UserID:     r.userID,
			BetAmount:  r.tracker.CurrentBet(),
			Target:     cfg.Target,
			Direction:  cfg.Direction,
			ClientSeed: seed,
		}
		// 已送出的局不受取消影響
		res, err := r.session.Place(context.WithoutCancel(ctx), req)
		if err != nil {
			r.finish(ReasonError, err)
			return
		}
		r.tracker.Record(res.Round)
		reason, stop := r.tracker.Observe(res.Round.Won, res.NewBalance)
		r.emit(Event{Type: EventRound, UserID: r.userID, State: r.tracker.State(), Round: &res.Round, At: r.now()})
		if stop {
			r.finish(reason, nil)
			return
		}
		if err := r.sleep(ctx, delay); err != nil {
			r.finish(ReasonCancelled, nil)
			return
		}
	}
}

func (r *run) finish(reason StopReason, cause error) {
	r.tracker.Stop(reason, cause, r.now())
	st := r.tracker.State()
	if cause != nil {
		r.log.Warn("autobet stopped on error", "user", r.userID, "bets", st.BetsPlaced, "err", cause)
	} else {
		r.log.Info("autobet stopped", "user", r.userID, "reason", string(reason), "bets", st.BetsPlaced, "profit", st.CumulativeProfit.String())
	}
	r.emit(Event{Type: EventStopped, UserID: r.userID, State: st, At: r.now()})
}

func (r *run) active() bool {
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
