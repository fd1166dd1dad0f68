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


// Package odds 計算勝率、賠率倍數與派彩。全程使用 decimal，不經過浮點數。
package odds

import (
	"github.com/shopspring/decimal"
	"github.com/zintix-labs/dicelab/errs"
	"github.com/zintix-labs/dicelab/fairness"
)

// Places 倍數與派彩保留的小數位數。
const Places = 8

var (
	hundred = decimal.NewFromInt(100)
	// rtpNumerator = 100 × 0.99，即 1% 莊家優勢。
	rtpNumerator = decimal.NewFromInt(99)
)

// Quote 一組 (target, direction) 的報價。
type Quote struct {
	WinChance  decimal.Decimal `json:"win_chance"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

// WinChance Over 為 100 − target，Under 為 target（百分比）。
func WinChance(target decimal.Decimal, dir fairness.Direction) (decimal.Decimal, error) {
	if !dir.Valid() {
		return decimal.Zero, errs.Invalidf("invalid direction")
	}
	if err := fairness.ValidateTarget(target); err != nil {
		return decimal.Zero, err
	}
	if dir == fairness.Over {
		return hundred.Sub(target), nil
	}
	return target, nil
}

// QuoteOf 回傳 multiplier = (100 / winChance) × 0.99，四捨五入至 8 位小數。
func QuoteOf(target decimal.Decimal, dir fairness.Direction) (Quote, error) {
	wc, err := WinChance(target, dir)
	if err != nil {
		return Quote{}, err
	}
	return Quote{WinChance: wc, Multiplier: rtpNumerator.DivRound(wc, Places)}, nil
}

// Multiplier QuoteOf 的簡寫。
func Multiplier(target decimal.Decimal, dir fairness.Direction) (decimal.Decimal, error) {
	q, err := QuoteOf(target, dir)
	if err != nil {
		return decimal.Zero, err
	}
	return q.Multiplier, nil
}

// Payout 贏時為 bet × multiplier（8 位小數），輸時為 0。
func Payout(bet, multiplier decimal.Decimal, won bool) decimal.Decimal {
	if !won {
		return decimal.Zero
	}
	return bet.Mul(multiplier).Round(Places)
}

// ProfitOnWin 贏時的淨利（派彩扣掉本金）。
func ProfitOnWin(bet, multiplier decimal.Decimal) decimal.Decimal {
	return Payout(bet, multiplier, true).Sub(bet)
}
