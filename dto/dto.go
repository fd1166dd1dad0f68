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
	"time"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/dicelab/autobet"
	"github.com/zintix-labs/dicelab/fairness"
	"github.com/zintix-labs/dicelab/house"
	"github.com/zintix-labs/dicelab/ledger"
	"github.com/zintix-labs/dicelab/stats"
	"github.com/zintix-labs/dicelab/strategy"
)

// 金額一律以 decimal 字串輸出（decimal.Decimal 的 JSON 編碼即為字串）。

type BalanceResponse struct {
	UserID  string          `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
}

type CommitmentResponse struct {
	UserID         string `json:"user_id"`
	ServerSeedHash string `json:"server_seed_hash"`
}

type RoundsResponse struct {
	UserID string         `json:"user_id"`
	Count  int            `json:"count"`
	Rounds []ledger.Round `json:"rounds"`
}

func NewRoundsResponse(userID string, rounds []ledger.Round) RoundsResponse {
	if rounds == nil {
		rounds = []ledger.Round{}
	}
	return RoundsResponse{UserID: userID, Count: len(rounds), Rounds: rounds}
}

// VerifyRoundResponse 重算結果與紀錄一致時才會回傳；不一致走錯誤路徑。
type VerifyRoundResponse struct {
	Verified bool             `json:"verified"`
	Round    ledger.Round     `json:"round"`
	Outcome  fairness.Outcome `json:"outcome"`
}

// StrategyView 策略清單項目
type StrategyView struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

var strategyDesc = map[strategy.Kind]string{
	strategy.Martingale:        "double the bet after a loss, reset to base bet after a win",
	strategy.ReverseMartingale: "double the bet after a win, reset to base bet after a loss",
	strategy.DAlembert:         "add one base bet after a loss, remove one after a win",
	strategy.Fibonacci:         "walk the Fibonacci sequence: one step forward on a loss, two back on a win",
	strategy.OscarsGrind:       "add one base bet per win, reset after streak_goal wins or stage_limit losses",
	strategy.Custom:            "multiply the bet by custom_multiplier after a loss, reset after a win",
}

// Strategies 依宣告順序列出所有策略。
func Strategies() []StrategyView {
	ks := strategy.Kinds()
	out := make([]StrategyView, 0, len(ks))
	for _, k := range ks {
		out = append(out, StrategyView{Name: k.String(), Description: strategyDesc[k]})
	}
	return out
}

type PresetsResponse struct {
	Presets []house.Preset `json:"presets"`
}

type AutoBetResponse struct {
	UserID string           `json:"user_id"`
	Active bool             `json:"active"`
	State  autobet.RunState `json:"state"`
}

// SimResponse 模擬結果；Players 為玩家體驗評估。
type SimResponse struct {
	Seed    int64                   `json:"seed"`
	UsedMs  int64                   `json:"used_ms"`
	Report  *stats.StatReport       `json:"report"`
	Players *stats.EstimatorPlayers `json:"players,omitempty"`
}

func NewSimResponse(seed int64, used time.Duration, rep *stats.StatReport, est *stats.EstimatorPlayers) SimResponse {
	return SimResponse{Seed: seed, UsedMs: used.Milliseconds(), Report: rep, Players: est}
}

type ClientSeedResponse struct {
	ClientSeed string `json:"client_seed"`
}
