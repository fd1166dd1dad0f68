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


package ledger

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/dicelab/errs"
	"github.com/zintix-labs/dicelab/fairness"
	"github.com/zintix-labs/dicelab/odds"
)

// Round 一局已結算的紀錄，建立後不可變。
//
// 兩個 seed、承諾雜湊、target 與 direction 都一併保存，任何人拿到這筆紀錄都能獨立重算結果。
type Round struct {
	ID             string             `json:"id"`
	UserID         string             `json:"user_id"`
	BetAmount      decimal.Decimal    `json:"bet_amount"`
	Target         decimal.Decimal    `json:"target"`
	Direction      fairness.Direction `json:"direction"`
	Multiplier     decimal.Decimal    `json:"multiplier"`
	ClientSeed     string             `json:"client_seed"`
	ServerSeed     string             `json:"server_seed"`
	ServerSeedHash string             `json:"server_seed_hash"`
	Roll           decimal.Decimal    `json:"roll"`
	Won            bool               `json:"won"`
	Payout         decimal.Decimal    `json:"payout"`
	CreatedAt      time.Time          `json:"created_at"`
}

// Profit 該局淨損益（payout − bet）。
func (r Round) Profit() decimal.Decimal {
	return r.Payout.Sub(r.BetAmount)
}

// Verify 以紀錄上的資料重算整局：承諾雜湊、roll、勝負、倍數、派彩。
// 任一項與紀錄不符都回 ErrVerificationMismatch。
func (r Round) Verify() (fairness.Outcome, error) {
	if err := fairness.CheckCommitment(r.ServerSeed, r.ServerSeedHash); err != nil {
		return fairness.Outcome{}, err
	}
	out, err := fairness.Verify(r.ClientSeed, r.ServerSeed, r.Target, r.Direction)
	if err != nil {
		return fairness.Outcome{}, errs.Mismatchf("round %s cannot be re-derived: %v", r.ID, err)
	}
	if !out.Roll.Equal(r.Roll) || out.Won != r.Won {
		return out, errs.Mismatchf("round %s: recorded roll %s won=%t, derived roll %s won=%t",
			r.ID, r.Roll, r.Won, out.Roll, out.Won)
	}
	mult, err := odds.Multiplier(r.Target, r.Direction)
	if err != nil {
		return out, errs.Mismatchf("round %s: %v", r.ID, err)
	}
	if !mult.Equal(r.Multiplier) {
		return out, errs.Mismatchf("round %s: recorded multiplier %s, derived %s", r.ID, r.Multiplier, mult)
	}
	if p := odds.Payout(r.BetAmount, mult, out.Won); !p.Equal(r.Payout) {
		return out, errs.Mismatchf("round %s: recorded payout %s, derived %s", r.ID, r.Payout, p)
	}
	return out, nil
}
