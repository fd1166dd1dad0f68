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
	"github.com/shopspring/decimal"
	"github.com/zintix-labs/dicelab/errs"
	"github.com/zintix-labs/dicelab/fairness"
	"github.com/zintix-labs/dicelab/house"
	"github.com/zintix-labs/dicelab/strategy"
)

// Config 一次自動下注的設定；開始時檢查一次，執行期間不可變。
type Config struct {
	strategy.Config

	Target       decimal.Decimal    `json:"target"`
	Direction    fairness.Direction `json:"direction"`
	StopOnProfit *decimal.Decimal   `json:"stop_on_profit,omitempty"`
	StopOnLoss   *decimal.Decimal   `json:"stop_on_loss,omitempty"`
	NumberOfBets int                `json:"number_of_bets,omitempty"` // 0 表示不限
	DelayMs      int                `json:"delay_ms"`
	// ClientSeed 非空時每局固定使用；空字串表示每局產生新的 client seed。
	ClientSeed string `json:"client_seed,omitempty"`
}

// FromPreset 將具名 preset 轉成執行設定。
func FromPreset(p house.Preset) Config {
	return Config{
		Config:       p.Config,
		Target:       p.Target,
		Direction:    p.Direction,
		StopOnProfit: p.StopOnProfit,
		StopOnLoss:   p.StopOnLoss,
		NumberOfBets: p.NumberOfBets,
		DelayMs:      p.DelayMs,
	}
}

// Prepare 套用 house 預設值並檢查；回傳可直接執行的設定。
func (c Config) Prepare(s *house.Setting) (Config, error) {
	c.Config = s.StrategyDefaults(c.Config).Normalize()
	if c.DelayMs == 0 {
		c.DelayMs = s.AutoBet.DefaultDelayMs
	}
	if err := c.Config.Validate(); err != nil {
		return c, err
	}
	if err := s.CheckBet(c.BaseBet); err != nil {
		return c, err
	}
	if !c.Direction.Valid() {
		return c, errs.Invalidf("direction is required")
	}
	if err := fairness.ValidateTarget(c.Target); err != nil {
		return c, err
	}
	if err := s.CheckDelay(c.DelayMs); err != nil {
		return c, err
	}
	if c.StopOnProfit != nil && !c.StopOnProfit.IsPositive() {
		return c, errs.Invalidf("stop_on_profit must be positive")
	}
	if c.StopOnLoss != nil && !c.StopOnLoss.IsPositive() {
		return c, errs.Invalidf("stop_on_loss must be positive")
	}
	if c.NumberOfBets < 0 {
		return c, errs.Invalidf("number_of_bets must not be negative")
	}
	return c, nil
}
