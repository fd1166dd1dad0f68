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

package dicelab

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/dicelab/autobet"
	"github.com/zintix-labs/dicelab/corefmt"
	"github.com/zintix-labs/dicelab/errs"
	"github.com/zintix-labs/dicelab/fairness"
	"github.com/zintix-labs/dicelab/odds"
	"github.com/zintix-labs/dicelab/sdk/core"
)

// MaxDevRounds 單次預覽的局數上限
const MaxDevRounds = 5000

// DevSimulator
//
// 只提供給 Dev 模式使用的預覽器：單線、逐局回傳、可由快照重播。
// server seed 來自可還原的 PRNG，不是正式下注的 crypto/rand。
type DevSimulator struct {
	cfg  autobet.Config
	mult decimal.Decimal
	rng  core.PRNG
	cm   *fairness.Committer
	seed int64
}

// DevRoll 預覽中的一局。
type DevRoll struct {
	Index          int             `json:"index"`
	Bet            decimal.Decimal `json:"bet"`
	ClientSeed     string          `json:"client_seed"`
	ServerSeed     string          `json:"server_seed"`
	ServerSeedHash string          `json:"server_seed_hash"`
	Roll           decimal.Decimal `json:"roll"`
	Won            bool            `json:"won"`
	Payout         decimal.Decimal `json:"payout"`
	Balance        decimal.Decimal `json:"balance"`
}

type DevRollReport struct {
	Seed       int64              `json:"seed"`
	Before     string             `json:"before_hex"` // 第一局前的 PRNG 快照
	After      string             `json:"after_hex"`
	Target     decimal.Decimal    `json:"target"`
	Direction  fairness.Direction `json:"direction"`
	Multiplier decimal.Decimal    `json:"multiplier"`
	Rounds     int                `json:"rounds"`
	StopReason string             `json:"stop_reason"`
	TotalBet   decimal.Decimal    `json:"total_bet"`
	TotalWin   decimal.Decimal    `json:"total_win"`
	Rtp        float64            `json:"rtp"`
	Rolls      []DevRoll          `json:"rolls"`
}

// NewDevSimulator seed < 0 時隨機。cfg 依 house 規則補預設值並檢查。
func (e *Engine) NewDevSimulator(cfg autobet.Config, seed int64) (*DevSimulator, error) {
	cfg, err := cfg.Prepare(e.house)
	if err != nil {
		return nil, err
	}
	mult, err := odds.Multiplier(cfg.Target, cfg.Direction)
	if err != nil {
		return nil, err
	}
	if seed < 0 {
		if seed, err = core.RandomSeed(); err != nil {
			return nil, err
		}
	}
	rng := core.Default().New(seed)
	return &DevSimulator{cfg: cfg, mult: mult, rng: rng, cm: fairness.NewCommitter(rng), seed: seed}, nil
}

func (d *DevSimulator) Seed() int64 { return d.seed }

// Rolls 從目前的 PRNG 狀態跑最多 rounds 局，停止條件與線上自動下注相同。
func (d *DevSimulator) Rolls(initBalance decimal.Decimal, rounds int) (DevRollReport, error) {
	if rounds < 1 || rounds > MaxDevRounds {
		return DevRollReport{}, errs.Invalidf("rounds must be between 1 and %d", MaxDevRounds)
	}
	before, err := d.rng.Snapshot()
	if err != nil {
		return DevRollReport{}, errs.Wrap(err, "snapshot prng")
	}
	clientSeed := d.cfg.ClientSeed
	if clientSeed == "" {
		if clientSeed, err = d.cm.ClientSeed(); err != nil {
			return DevRollReport{}, err
		}
	}
	tr := autobet.NewTracker(d.cfg)
	if err := tr.Start(initBalance, time.Time{}); err != nil {
		return DevRollReport{}, err
	}

	rep := DevRollReport{
		Seed:       d.seed,
		Before:     corefmt.EncodeHex(before),
		Target:     d.cfg.Target,
		Direction:  d.cfg.Direction,
		Multiplier: d.mult,
		StopReason: "rounds",
		TotalBet:   decimal.Zero,
		TotalWin:   decimal.Zero,
		Rolls:      make([]DevRoll, 0, min(rounds, 256)),
	}
	bal := initBalance
	for i := range rounds {
		bet := tr.CurrentBet()
		c, err := d.cm.Commit()
		if err != nil {
			return DevRollReport{}, err
		}
		out, err := fairness.Derive(clientSeed, c.ServerSeed, d.cfg.Target, d.cfg.Direction)
		if err != nil {
			return DevRollReport{}, err
		}
		payout := odds.Payout(bet, d.mult, out.Won)
		bal = bal.Sub(bet).Add(payout)
		rep.TotalBet = rep.TotalBet.Add(bet)
		rep.TotalWin = rep.TotalWin.Add(payout)
		rep.Rolls = append(rep.Rolls, DevRoll{
			Index:          i,
			Bet:            bet,
			ClientSeed:     clientSeed,
			ServerSeed:     c.ServerSeed,
			ServerSeedHash: c.ServerSeedHash,
			Roll:           out.Roll,
			Won:            out.Won,
			Payout:         payout,
			Balance:        bal,
		})
		if reason, stop := tr.Observe(out.Won, bal); stop {
			rep.StopReason = string(reason)
			break
		}
	}
	after, err := d.rng.Snapshot()
	if err != nil {
		return DevRollReport{}, errs.Wrap(err, "snapshot prng")
	}
	rep.After = corefmt.EncodeHex(after)
	rep.Rounds = len(rep.Rolls)
	if rep.TotalBet.IsPositive() {
		rep.Rtp = rep.TotalWin.Div(rep.TotalBet).InexactFloat64()
	}
	return rep, nil
}

// RestoreRolls 先還原 before 快照（hex）再跑 Rolls，用來重播某段預覽。
func (d *DevSimulator) RestoreRolls(beforeHex string, initBalance decimal.Decimal, rounds int) (DevRollReport, error) {
	b, err := corefmt.DecodeHex(corefmt.NormalizeHex(beforeHex))
	if err != nil {
		return DevRollReport{}, err
	}
	if err := d.rng.Restore(b); err != nil {
		return DevRollReport{}, errs.Invalidf("restore prng failed: %v", err)
	}
	return d.Rolls(initBalance, rounds)
}
