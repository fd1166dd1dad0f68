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


package autobet

import (
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/dicelab/errs"
	"github.com/zintix-labs/dicelab/ledger"
	"github.com/zintix-labs/dicelab/strategy"
)

type Status uint8

const (
	Idle Status = iota
	Running
	Stopped
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "idle"
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*s = Idle
	case "running":
		*s = Running
	case "stopped":
		*s = Stopped
	default:
		return errs.Invalidf("unknown status %q", b)
	}
	return nil
}

// StopReason 停止原因。
type StopReason string

const (
	ReasonNone      StopReason = ""
	ReasonProfit    StopReason = "profit"
	ReasonLoss      StopReason = "loss"
	ReasonCount     StopReason = "count"
	ReasonMaxBet    StopReason = "max_bet"
	ReasonBalance   StopReason = "balance"
	ReasonCancelled StopReason = "cancelled"
	ReasonError     StopReason = "error"
)

// RunState 一次自動下注的執行狀態快照。
type RunState struct {
	Status           Status          `json:"status"`
	BetsPlaced       int             `json:"bets_placed"`
	StartingBalance  decimal.Decimal `json:"starting_balance"`
	Balance          decimal.Decimal `json:"balance"`
	CumulativeProfit decimal.Decimal `json:"cumulative_profit"`
	CurrentBet       decimal.Decimal `json:"current_bet"`
	Strategy         strategy.State  `json:"strategy_state"`
	StopReason       StopReason      `json:"stop_reason,omitempty"`
	LastError        string          `json:"last_error,omitempty"`
	LastRound        *ledger.Round   `json:"last_round,omitempty"`
	StartedAt        *time.Time      `json:"started_at,omitempty"`
	StoppedAt        *time.Time      `json:"stopped_at,omitempty"`
}

func (s RunState) clone() RunState {
	s.Strategy.Sequence = slices.Clone(s.Strategy.Sequence)
	if s.LastRound != nil {
		r := *s.LastRound
		s.LastRound = &r
	}
	return s
}

// Tracker 自動下注的狀態機：Idle -> Running -> Stopped。
//
// 它不碰 I/O：排程器與模擬器都透過它決定下一注與是否停止。
type Tracker struct {
	mu  sync.Mutex
	cfg Config
	st  RunState
}

func NewTracker(cfg Config) *Tracker {
	return &Tracker{cfg: cfg}
}

func (t *Tracker) Config() Config { return t.cfg }

// Start 需 0 < baseBet <= balance；重設策略狀態並把第一注設為 baseBet。
func (t *Tracker) Start(balance decimal.Decimal, now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.st.Status != Idle {
		return errs.Busyf("run already %s", t.st.Status)
	}
	if !t.cfg.BaseBet.IsPositive() {
		return errs.Invalidf("base bet must be positive, got %s", t.cfg.BaseBet)
	}
	if t.cfg.BaseBet.GreaterThan(balance) {
		return errs.Insufficientf("base bet %s exceeds balance %s", t.cfg.BaseBet, balance)
	}
	t.st = RunState{
		Status:           Running,
		StartingBalance:  balance,
		Balance:          balance,
		CumulativeProfit: decimal.Zero,
		CurrentBet:       t.cfg.BaseBet,
		Strategy:         strategy.Initial(),
		StartedAt:        &now,
	}
	return nil
}

// CurrentBet 下一局要下的注額。
func (t *Tracker) CurrentBet() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st.CurrentBet
}

// Observe 吃進一局結算結果，回傳是否應停止與原因。
//
// 停止條件依序：獲利達標、虧損達標、局數達標、下一注超過 maxBet、下一注超過餘額。
func (t *Tracker) Observe(won bool, newBalance decimal.Decimal) (StopReason, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.st.Status != Running {
		return ReasonNone, false
	}
	s := &t.st
	s.BetsPlaced++
	s.Balance = newBalance
	s.CumulativeProfit = newBalance.Sub(s.StartingBalance)
	next, ns := strategy.Next(t.cfg.Config, s.CurrentBet, won, s.Strategy)
	s.Strategy = ns

	reason := ReasonNone
	switch {
	case t.cfg.StopOnProfit != nil && s.CumulativeProfit.GreaterThanOrEqual(*t.cfg.StopOnProfit):
		reason = ReasonProfit
	case t.cfg.StopOnLoss != nil && s.CumulativeProfit.LessThanOrEqual(t.cfg.StopOnLoss.Neg()):
		reason = ReasonLoss
	case t.cfg.NumberOfBets > 0 && s.BetsPlaced >= t.cfg.NumberOfBets:
		reason = ReasonCount
	case next.GreaterThan(t.cfg.MaxBet):
		reason = ReasonMaxBet
	case next.GreaterThan(newBalance):
		reason = ReasonBalance
	}
	if reason != ReasonNone {
		return reason, true
	}
	s.CurrentBet = next
	return ReasonNone, false
}

// Record 記下最後一局，供狀態查詢與事件推送。
func (t *Tracker) Record(r ledger.Round) {
	t.mu.Lock()
	t.st.LastRound = &r
	t.mu.Unlock()
}

// Stop 轉為 Stopped；已停止時不再覆寫原因。
func (t *Tracker) Stop(reason StopReason, cause error, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.st.Status == Stopped {
		return
	}
	t.st.Status = Stopped
	t.st.StopReason = reason
	t.st.StoppedAt = &now
	if cause != nil {
		t.st.LastError = cause.Error()
	}
}

func (t *Tracker) State() RunState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st.clone()
}
