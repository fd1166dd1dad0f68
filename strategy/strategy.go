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


// Package strategy 自動下注的下注金額演算法。
//
// Next 為純函數：輸入上一注與結果，回傳下一注與新狀態，不修改傳入的 State。
// 所有策略的下一注都會被夾在 MaxBet 以內。
package strategy

import (
	"slices"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/dicelab/errs"
)

const (
	DefaultStageLimit = 1
	DefaultStreakGoal = 3
)

var (
	one                     = decimal.NewFromInt(1)
	two                     = decimal.NewFromInt(2)
	DefaultCustomMultiplier = two
)

// Config 一次自動下注期間固定不變的策略參數。
type Config struct {
	Kind             Kind            `json:"strategy" yaml:"strategy"`
	BaseBet          decimal.Decimal `json:"base_bet" yaml:"base_bet"`
	MaxBet           decimal.Decimal `json:"max_bet" yaml:"max_bet"`
	CustomMultiplier decimal.Decimal `json:"custom_multiplier" yaml:"custom_multiplier"`
	StageLimit       int             `json:"stage_limit" yaml:"stage_limit"`
	StreakGoal       int             `json:"streak_goal" yaml:"streak_goal"`
}

// Normalize 補上預設值（custom 倍數 2、Oscar 的 stage/streak 預設）。
func (c Config) Normalize() Config {
	if c.CustomMultiplier.IsZero() {
		c.CustomMultiplier = DefaultCustomMultiplier
	}
	if c.StageLimit <= 0 {
		c.StageLimit = DefaultStageLimit
	}
	if c.StreakGoal <= 0 {
		c.StreakGoal = DefaultStreakGoal
	}
	return c
}

// Validate 檢查設定；呼叫前應先 Normalize。
func (c Config) Validate() error {
	if !c.Kind.Valid() {
		return errs.Invalidf("unknown strategy")
	}
	if !c.BaseBet.IsPositive() {
		return errs.Invalidf("base bet must be positive, got %s", c.BaseBet)
	}
	if c.MaxBet.LessThan(c.BaseBet) {
		return errs.Invalidf("max bet %s must not be below base bet %s", c.MaxBet, c.BaseBet)
	}
	if c.CustomMultiplier.LessThan(one) {
		return errs.Invalidf("custom multiplier must be >= 1, got %s", c.CustomMultiplier)
	}
	return nil
}

// State 策略在一次執行中的記憶。每次開始新的執行都從 Initial 重設。
type State struct {
	// Sequence Fibonacci 序列；以 decimal 保存，連輸再久也不會溢位。
	Sequence  []decimal.Decimal `json:"sequence,omitempty"`
	Stage     int               `json:"stage"`
	WinStreak int               `json:"win_streak"`
}

// Initial 回傳初始狀態：Fibonacci 序列為 [1]，其餘歸零。
func Initial() State {
	return State{Sequence: []decimal.Decimal{one}}
}

func (s State) clone() State {
	s.Sequence = slices.Clone(s.Sequence)
	return s
}

// Next 依策略計算下一注。回傳值 = min(MaxBet, 計算值)。
func Next(cfg Config, current decimal.Decimal, won bool, st State) (decimal.Decimal, State) {
	cfg = cfg.Normalize()
	ns := st.clone()
	var next decimal.Decimal

	switch cfg.Kind {
	case Martingale:
		if won {
			next = cfg.BaseBet
		} else {
			next = current.Mul(two)
		}
	case ReverseMartingale:
		if won {
			next = current.Mul(two)
		} else {
			next = cfg.BaseBet
		}
	case DAlembert:
		if won {
			next = decimal.Max(cfg.BaseBet, current.Sub(cfg.BaseBet))
		} else {
			next = current.Add(cfg.BaseBet)
		}
	case Fibonacci:
		ns.Sequence = fibStep(ns.Sequence, won)
		next = cfg.BaseBet.Mul(ns.Sequence[len(ns.Sequence)-1])
	case OscarsGrind:
		next = oscarStep(cfg, current, won, &ns)
	case Custom:
		if won {
			next = cfg.BaseBet
		} else {
			next = current.Mul(cfg.CustomMultiplier)
		}
	default:
		next = cfg.BaseBet
	}

	if next.GreaterThan(cfg.MaxBet) {
		next = cfg.MaxBet
	}
	return next, ns
}

// fibStep 輸：補上最後兩項之和（不足兩項補 1）；贏：去掉最後兩項，清空則回到 [1]。
func fibStep(seq []decimal.Decimal, won bool) []decimal.Decimal {
	if len(seq) == 0 {
		seq = []decimal.Decimal{one}
	}
	if won {
		if len(seq) >= 2 {
			seq = seq[:len(seq)-2]
		} else {
			seq = seq[:0]
		}
		if len(seq) == 0 {
			seq = append(seq, one)
		}
		return seq
	}
	n := len(seq)
	if n < 2 {
		return append(seq, one)
	}
	return append(seq, seq[n-1].Add(seq[n-2]))
}

func oscarStep(cfg Config, current decimal.Decimal, won bool, st *State) decimal.Decimal {
	if !won {
		st.WinStreak = 0
		if st.Stage < cfg.StageLimit {
			st.Stage++
			return current
		}
		st.Stage = 0
		return cfg.BaseBet
	}
	st.WinStreak++
	if st.WinStreak >= cfg.StreakGoal {
		st.Stage = 0
		st.WinStreak = 0
		return cfg.BaseBet
	}
	return current.Add(cfg.BaseBet)
}
