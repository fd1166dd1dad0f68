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

package dto

import (
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/dicelab/autobet"
	"github.com/zintix-labs/dicelab/errs"
	"github.com/zintix-labs/dicelab/house"
	"github.com/zintix-labs/dicelab/strategy"
)

// 模擬請求上限，避免單一 HTTP 請求吃滿 CPU
const (
	MaxSimRounds      = 2_000_000 // players * rounds
	MaxSimWorkers     = 16
	DefaultSimPlayers = 100
	DefaultSimRounds  = 1000
)

// AutoBetRequest 自動下注設定。
//
// preset 指定時以該 preset 為底，其餘有出現的欄位覆寫之；未指定 preset 時所有必要欄位都要給。
type AutoBetRequest struct {
	Preset           string           `json:"preset,omitempty"`
	Strategy         *strategy.Kind   `json:"strategy,omitempty"`
	BaseBet          *decimal.Decimal `json:"base_bet,omitempty"`
	MaxBet           *decimal.Decimal `json:"max_bet,omitempty"`
	CustomMultiplier *decimal.Decimal `json:"custom_multiplier,omitempty"`
	StageLimit       *int             `json:"stage_limit,omitempty"`
	StreakGoal       *int             `json:"streak_goal,omitempty"`
	Target           *decimal.Decimal `json:"target,omitempty"`
	Direction        string           `json:"direction,omitempty"`
	IsOver           *bool            `json:"is_over,omitempty"`
	StopOnProfit     *decimal.Decimal `json:"stop_on_profit,omitempty"`
	StopOnLoss       *decimal.Decimal `json:"stop_on_loss,omitempty"`
	NumberOfBets     *int             `json:"number_of_bets,omitempty"`
	DelayMs          *int             `json:"delay_ms,omitempty"`
	ClientSeed       string           `json:"client_seed,omitempty"`
}

// DecodeAutoBetRequest 只接受 POST JSON。
func DecodeAutoBetRequest(r *http.Request, presets *house.Presets) (autobet.Config, error) {
	if r.Method != http.MethodPost {
		return autobet.Config{}, errs.Invalidf("method not allowed")
	}
	req := new(AutoBetRequest)
	if err := decodeJSON(r, req); err != nil {
		return autobet.Config{}, err
	}
	return req.Config(presets)
}

// Config 合併 preset 與覆寫欄位；數值檢查留給 autobet.Config.Prepare。
func (req *AutoBetRequest) Config(presets *house.Presets) (autobet.Config, error) {
	var cfg autobet.Config
	if req.Preset != "" {
		if presets == nil {
			return cfg, errs.NotFoundf("preset %q not found", req.Preset)
		}
		p, err := presets.Get(req.Preset)
		if err != nil {
			return cfg, err
		}
		cfg = autobet.FromPreset(p)
	}
	if req.Strategy != nil {
		cfg.Kind = *req.Strategy
	}
	setDecimal(&cfg.BaseBet, req.BaseBet)
	setDecimal(&cfg.MaxBet, req.MaxBet)
	setDecimal(&cfg.CustomMultiplier, req.CustomMultiplier)
	setDecimal(&cfg.Target, req.Target)
	setInt(&cfg.StageLimit, req.StageLimit)
	setInt(&cfg.StreakGoal, req.StreakGoal)
	setInt(&cfg.NumberOfBets, req.NumberOfBets)
	setInt(&cfg.DelayMs, req.DelayMs)
	if req.Direction != "" || req.IsOver != nil {
		dir, err := ResolveDirection(req.Direction, req.IsOver)
		if err != nil {
			return cfg, err
		}
		cfg.Direction = dir
	}
	if req.StopOnProfit != nil {
		cfg.StopOnProfit = req.StopOnProfit
	}
	if req.StopOnLoss != nil {
		cfg.StopOnLoss = req.StopOnLoss
	}
	if req.ClientSeed != "" {
		cfg.ClientSeed = req.ClientSeed
	}
	return cfg, nil
}

// SimRequest 策略模擬請求。
type SimRequest struct {
	AutoBetRequest
	Players        int              `json:"players,omitempty"`
	Rounds         int              `json:"rounds,omitempty"`
	InitialBalance *decimal.Decimal `json:"initial_balance,omitempty"`
	Workers        int              `json:"workers,omitempty"`
	Seed           *int64           `json:"seed,omitempty"`
}

// Sim 解碼並補齊預設值後的模擬參數。Seed < 0 表示隨機。
type Sim struct {
	Config         autobet.Config
	Players        int
	Rounds         int
	Workers        int
	InitialBalance decimal.Decimal
	Seed           int64
}

// DecodeSimRequest 只接受 POST JSON；initial_balance 缺省時使用 house 的開戶餘額。
func DecodeSimRequest(r *http.Request, s *house.Setting, presets *house.Presets) (Sim, error) {
	if r.Method != http.MethodPost {
		return Sim{}, errs.Invalidf("method not allowed")
	}
	req := new(SimRequest)
	if err := decodeJSON(r, req); err != nil {
		return Sim{}, err
	}
	cfg, err := req.Config(presets)
	if err != nil {
		return Sim{}, err
	}
	out := Sim{
		Config:         cfg,
		Players:        req.Players,
		Rounds:         req.Rounds,
		Workers:        req.Workers,
		InitialBalance: s.InitialBalance,
		Seed:           -1,
	}
	if out.Players == 0 {
		out.Players = DefaultSimPlayers
	}
	if out.Rounds == 0 {
		out.Rounds = DefaultSimRounds
	}
	if out.Workers == 0 {
		out.Workers = 1
	}
	if req.InitialBalance != nil {
		out.InitialBalance = *req.InitialBalance
	}
	if req.Seed != nil {
		if *req.Seed < 0 {
			return Sim{}, errs.Invalidf("seed must not be negative")
		}
		out.Seed = *req.Seed
	}
	switch {
	case out.Players < 1 || out.Rounds < 1:
		return Sim{}, errs.Invalidf("players and rounds must be positive")
	case out.Players*out.Rounds > MaxSimRounds:
		return Sim{}, errs.Invalidf("players*rounds must not exceed %d", MaxSimRounds)
	case out.Workers < 1 || out.Workers > MaxSimWorkers:
		return Sim{}, errs.Invalidf("workers must be in [1, %d]", MaxSimWorkers)
	case !out.InitialBalance.IsPositive():
		return Sim{}, errs.Invalidf("initial_balance must be positive")
	}
	return out, nil
}

func setDecimal(dst *decimal.Decimal, v *decimal.Decimal) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
