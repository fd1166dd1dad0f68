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

package recorder

import (
	"github.com/shopspring/decimal"
	"github.com/zintix-labs/dicelab/errs"
	"github.com/zintix-labs/dicelab/fairness"
	"github.com/zintix-labs/dicelab/odds"
	"github.com/zintix-labs/dicelab/stats"
	"github.com/zintix-labs/dicelab/strategy"
)

// LeaveMultiple 玩家資產達到初始餘額的幾倍時視為贏滿離場。
const LeaveMultiple = 3

// RoundRecorder 局紀錄員
//
// RoundRecorder 負責紀錄每局結果，並透過 Done 輸出統計報表。
// 一個 RoundRecorder 只屬於一個 goroutine；跨 worker 的結果用 MergeRoundRecorder 合併。
type RoundRecorder struct {
	Strategy   strategy.Kind
	Target     decimal.Decimal
	Direction  fairness.Direction
	Quote      odds.Quote
	Basic      *BasicRecord
	Dist       *DistRecord
	Player     *PlayerRecord
	withPlayer bool
}

// BasicRecord 基本下注資料紀錄
type BasicRecord struct {
	TotalBet    decimal.Decimal
	TotalWin    decimal.Decimal
	MaxBet      decimal.Decimal
	ReturnSum   float64
	ReturnSqSum float64 // 平方和
	Wins        int
	Rounds      int
	LongestLoss int
	lossRun     int
}

// DistRecord roll 落點計數
type DistRecord struct {
	RollCollect []int
}

// PlayerRecord 玩家統計
type PlayerRecord struct {
	leaveLine   decimal.Decimal
	InitBalance decimal.Decimal
	Balance     decimal.Decimal
	MaxBalance  decimal.Decimal
	MinBalance  decimal.Decimal
	Bets        int
	StopReason  string
	Bust        bool
	Cashout     bool
}

// NewRoundRecorder 建立紀錄員；initBalance 為零表示不追蹤玩家資產（純機率基準）。
func NewRoundRecorder(kind strategy.Kind, target decimal.Decimal, dir fairness.Direction, initBalance decimal.Decimal) (*RoundRecorder, error) {
	q, err := odds.QuoteOf(target, dir)
	if err != nil {
		return nil, err
	}
	if initBalance.IsNegative() {
		return nil, errs.Invalidf("initial balance must not be negative, got %s", initBalance)
	}
	r := &RoundRecorder{
		Strategy:   kind,
		Target:     target,
		Direction:  dir,
		Quote:      q,
		Basic:      newBasicRecord(),
		Dist:       &DistRecord{RollCollect: make([]int, stats.RollBuckets)},
		Player:     newPlayerRecord(initBalance),
		withPlayer: initBalance.IsPositive(),
	}
	return r, nil
}

// MergeRoundRecorder 合併多個紀錄員的基本與分布資料；玩家資料不合併。
func MergeRoundRecorder(r []*RoundRecorder) (*RoundRecorder, error) {
	if len(r) == 0 {
		return nil, errs.Invalidf("merge round record err : empty")
	}
	r0 := r[0]
	s, err := NewRoundRecorder(r0.Strategy, r0.Target, r0.Direction, decimal.Zero)
	if err != nil {
		return nil, err
	}
	for _, v := range r {
		if v.Strategy != r0.Strategy {
			return nil, errs.NewFatal("merge round record err : different strategy")
		}
		if !v.Target.Equal(r0.Target) || v.Direction != r0.Direction {
			return nil, errs.NewFatal("merge round record err : different target")
		}
		s.Basic.TotalBet = s.Basic.TotalBet.Add(v.Basic.TotalBet)
		s.Basic.TotalWin = s.Basic.TotalWin.Add(v.Basic.TotalWin)
		if v.Basic.MaxBet.GreaterThan(s.Basic.MaxBet) {
			s.Basic.MaxBet = v.Basic.MaxBet
		}
		s.Basic.ReturnSum += v.Basic.ReturnSum
		s.Basic.ReturnSqSum += v.Basic.ReturnSqSum
		s.Basic.Wins += v.Basic.Wins
		s.Basic.Rounds += v.Basic.Rounds
		s.Basic.LongestLoss = max(s.Basic.LongestLoss, v.Basic.LongestLoss)

		for i, c := range v.Dist.RollCollect {
			s.Dist.RollCollect[i] += c
		}
	}
	return s, nil
}

// Record 以單局結果更新基本與分布統計（不含玩家）
func (s *RoundRecorder) Record(bet decimal.Decimal, out fairness.Outcome, payout decimal.Decimal) {
	s.recordBasic(bet, out, payout)
	s.Dist.RollCollect[stats.RollIndex(out.Roll)]++
}

// RecordWithPlayer 在 Record 的基礎上更新玩家資產，回傳新餘額以及玩家是否已贏滿離場。
func (s *RoundRecorder) RecordWithPlayer(bet decimal.Decimal, out fairness.Outcome, payout decimal.Decimal) (decimal.Decimal, bool) {
	s.Record(bet, out, payout)
	return s.recordPlayer(bet, payout)
}

// Finish 記下玩家離場原因。bust 表示餘額撐不起下一注；cashout 表示達到停利。
func (s *RoundRecorder) Finish(reason string, bust, cashout bool) {
	p := s.Player
	if p.StopReason == "" {
		p.StopReason = reason
	}
	p.Bust = p.Bust || bust
	p.Cashout = p.Cashout || cashout
}

func (s *RoundRecorder) Done() *stats.StatReport {
	report := &stats.StatReport{
		Summary: &stats.SummaryReport{
			Strategy:          s.Strategy.String(),
			Target:            s.Target,
			Direction:         s.Direction.String(),
			WinChance:         s.Quote.WinChance,
			Multiplier:        s.Quote.Multiplier,
			TotalBet:          s.Basic.TotalBet,
			TotalWin:          s.Basic.TotalWin,
			MaxBet:            s.Basic.MaxBet,
			Wins:              s.Basic.Wins,
			LongestLossStreak: s.Basic.LongestLoss,
			Rounds:            s.Basic.Rounds,
		},
		Return: &stats.ReturnReport{
			ReturnSum:   s.Basic.ReturnSum,
			ReturnSqSum: s.Basic.ReturnSqSum,
		},
		Dist: &stats.DistReport{
			RollBucket:  stats.RollBucketStr(),
			RollCollect: append([]int(nil), s.Dist.RollCollect...),
		},
	}
	if s.withPlayer {
		p := s.Player
		report.Player = &stats.PlayerReport{
			InitBalance: p.InitBalance,
			Balance:     p.Balance,
			MaxBalance:  p.MaxBalance,
			MinBalance:  p.MinBalance,
			Bets:        p.Bets,
			StopReason:  p.StopReason,
			Bust:        p.Bust,
			Cashout:     p.Cashout,
		}
	}
	return report
}

func (s *RoundRecorder) recordBasic(bet decimal.Decimal, out fairness.Outcome, payout decimal.Decimal) {
	b := s.Basic
	b.TotalBet = b.TotalBet.Add(bet)
	b.TotalWin = b.TotalWin.Add(payout)
	if bet.GreaterThan(b.MaxBet) {
		b.MaxBet = bet
	}
	b.Rounds++
	if out.Won {
		x := s.Quote.Multiplier.InexactFloat64()
		b.ReturnSum += x
		b.ReturnSqSum += x * x
		b.Wins++
		b.lossRun = 0
		return
	}
	b.lossRun++
	if b.lossRun > b.LongestLoss {
		b.LongestLoss = b.lossRun
	}
}

func (s *RoundRecorder) recordPlayer(bet, payout decimal.Decimal) (decimal.Decimal, bool) {
	p := s.Player

	// 更新資金
	p.Balance = p.Balance.Sub(bet).Add(payout)
	p.Bets++

	// 更新歷史最高資產
	if p.Balance.GreaterThan(p.MaxBalance) {
		p.MaxBalance = p.Balance
	}
	// 更新歷史最低資產
	if p.Balance.LessThan(p.MinBalance) {
		p.MinBalance = p.Balance
	}

	if p.Balance.GreaterThanOrEqual(p.leaveLine) {
		p.Cashout = true
		return p.Balance, true
	}
	return p.Balance, false
}

func newBasicRecord() *BasicRecord {
	return &BasicRecord{
		TotalBet: decimal.Zero,
		TotalWin: decimal.Zero,
		MaxBet:   decimal.Zero,
	}
}

func newPlayerRecord(initBalance decimal.Decimal) *PlayerRecord {
	return &PlayerRecord{
		InitBalance: initBalance,
		Balance:     initBalance,
		MaxBalance:  initBalance,
		MinBalance:  initBalance,
		leaveLine:   initBalance.Mul(decimal.NewFromInt(LeaveMultiple)), // 離場條件(3倍本金)
	}
}
