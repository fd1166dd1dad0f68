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


// Package house 莊家規則：開戶餘額、注額上下限、歷史筆數與自動下注的節奏限制。
//
// 設定可由 YAML（嚴格檢查欄位）或 JSON 載入；未提供時使用 configs 內嵌的預設值。
package house

import (
	"github.com/shopspring/decimal"
	"github.com/zintix-labs/dicelab/configs"
	"github.com/zintix-labs/dicelab/errs"
	"github.com/zintix-labs/dicelab/strategy"
)

type Setting struct {
	InitialBalance  decimal.Decimal `yaml:"initial_balance" json:"initial_balance"`
	DefaultUser     string          `yaml:"default_user" json:"default_user"`
	MinBet          decimal.Decimal `yaml:"min_bet" json:"min_bet"`
	MaxBet          decimal.Decimal `yaml:"max_bet" json:"max_bet"` // 0 表示不設上限
	HistoryLimit    int             `yaml:"history_limit" json:"history_limit"`
	MaxHistoryLimit int             `yaml:"max_history_limit" json:"max_history_limit"`
	AutoBet         AutoBetRules    `yaml:"autobet" json:"autobet"`
}

// AutoBetRules 自動下注的節奏與策略預設值。
type AutoBetRules struct {
	MinDelayMs       int             `yaml:"min_delay_ms" json:"min_delay_ms"`
	MaxDelayMs       int             `yaml:"max_delay_ms" json:"max_delay_ms"`
	DelayStepMs      int             `yaml:"delay_step_ms" json:"delay_step_ms"`
	DefaultDelayMs   int             `yaml:"default_delay_ms" json:"default_delay_ms"`
	StageLimit       int             `yaml:"stage_limit" json:"stage_limit"`
	StreakGoal       int             `yaml:"streak_goal" json:"streak_goal"`
	CustomMultiplier decimal.Decimal `yaml:"custom_multiplier" json:"custom_multiplier"`
}

const (
	MinDelayMs = 500
	MaxDelayMs = 10000
)

// init 補預設值並檢查。
func (s *Setting) init() error {
	if s.DefaultUser == "" {
		s.DefaultUser = "1"
	}
	if s.HistoryLimit <= 0 {
		s.HistoryLimit = 50
	}
	if s.MaxHistoryLimit <= 0 {
		s.MaxHistoryLimit = 500
	}
	a := &s.AutoBet
	if a.MinDelayMs == 0 {
		a.MinDelayMs = MinDelayMs
	}
	if a.MaxDelayMs == 0 {
		a.MaxDelayMs = MaxDelayMs
	}
	if a.DelayStepMs <= 0 {
		a.DelayStepMs = 1
	}
	if a.DefaultDelayMs == 0 {
		a.DefaultDelayMs = a.MinDelayMs
	}
	if a.StageLimit <= 0 {
		a.StageLimit = strategy.DefaultStageLimit
	}
	if a.StreakGoal <= 0 {
		a.StreakGoal = strategy.DefaultStreakGoal
	}
	if a.CustomMultiplier.IsZero() {
		a.CustomMultiplier = strategy.DefaultCustomMultiplier
	}

	switch {
	case s.InitialBalance.IsNegative():
		return errs.Invalidf("initial_balance must not be negative")
	case s.MinBet.IsNegative():
		return errs.Invalidf("min_bet must not be negative")
	case s.MaxBet.IsNegative():
		return errs.Invalidf("max_bet must not be negative")
	case s.MaxBet.IsPositive() && s.MaxBet.LessThan(s.MinBet):
		return errs.Invalidf("max_bet %s below min_bet %s", s.MaxBet, s.MinBet)
	case s.HistoryLimit > s.MaxHistoryLimit:
		return errs.Invalidf("history_limit %d above max_history_limit %d", s.HistoryLimit, s.MaxHistoryLimit)
	case a.MinDelayMs < MinDelayMs || a.MaxDelayMs > MaxDelayMs || a.MinDelayMs > a.MaxDelayMs:
		return errs.Invalidf("autobet delay bounds must lie within [%d, %d]", MinDelayMs, MaxDelayMs)
	case a.DefaultDelayMs < a.MinDelayMs || a.DefaultDelayMs > a.MaxDelayMs:
		return errs.Invalidf("default_delay_ms %d outside [%d, %d]", a.DefaultDelayMs, a.MinDelayMs, a.MaxDelayMs)
	case a.CustomMultiplier.LessThan(decimal.NewFromInt(1)):
		return errs.Invalidf("custom_multiplier must be >= 1")
	}
	return nil
}

// CheckBet 注額需 > 0 且落在 [min_bet, max_bet]。
func (s *Setting) CheckBet(bet decimal.Decimal) error {
	if !bet.IsPositive() {
		return errs.Invalidf("bet amount must be positive, got %s", bet)
	}
	if bet.LessThan(s.MinBet) {
		return errs.Invalidf("bet amount %s below minimum %s", bet, s.MinBet)
	}
	if s.MaxBet.IsPositive() && bet.GreaterThan(s.MaxBet) {
		return errs.Invalidf("bet amount %s above maximum %s", bet, s.MaxBet)
	}
	return nil
}

// CheckDelay 延遲需在範圍內且為 step 的倍數。
func (s *Setting) CheckDelay(ms int) error {
	a := s.AutoBet
	if ms < a.MinDelayMs || ms > a.MaxDelayMs {
		return errs.Invalidf("delay %dms outside [%d, %d]", ms, a.MinDelayMs, a.MaxDelayMs)
	}
	if ms%a.DelayStepMs != 0 {
		return errs.Invalidf("delay %dms must be a multiple of %dms", ms, a.DelayStepMs)
	}
	return nil
}

// ClampLimit 將列表筆數限制在 (0, max_history_limit]；<= 0 回傳預設值。
func (s *Setting) ClampLimit(limit int) int {
	if limit <= 0 {
		return s.HistoryLimit
	}
	return min(limit, s.MaxHistoryLimit)
}

// StrategyDefaults 將 house 的策略預設值套到 cfg 未設定的欄位上。
func (s *Setting) StrategyDefaults(cfg strategy.Config) strategy.Config {
	if cfg.CustomMultiplier.IsZero() {
		cfg.CustomMultiplier = s.AutoBet.CustomMultiplier
	}
	if cfg.StageLimit <= 0 {
		cfg.StageLimit = s.AutoBet.StageLimit
	}
	if cfg.StreakGoal <= 0 {
		cfg.StreakGoal = s.AutoBet.StreakGoal
	}
	return cfg
}

// Default 讀取內嵌的 house.yaml。
func Default() (*Setting, error) {
	b, err := configs.FS.ReadFile(configs.HouseFile)
	if err != nil {
		return nil, errs.Wrap(err, "read embedded house setting")
	}
	return SettingByYAML(b)
}

// MustDefault 內嵌設定一定合法，失敗代表建置錯誤。
func MustDefault() *Setting {
	s, err := Default()
	if err != nil {
		panic(err)
	}
	return s
}
