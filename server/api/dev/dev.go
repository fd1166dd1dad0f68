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

package dev

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/dicelab"
	"github.com/zintix-labs/dicelab/dto"
	"github.com/zintix-labs/dicelab/errs"
	"github.com/zintix-labs/dicelab/house"
	"github.com/zintix-labs/dicelab/ledger"
	"github.com/zintix-labs/dicelab/server/httperr"
	"github.com/zintix-labs/dicelab/server/netsvr"
	"github.com/zintix-labs/dicelab/server/svrcfg"
)

// devRequest 是 /dev/rolls 的輸入。
//
// 策略欄位與 POST /v1/autobet 相同（可帶 preset 再覆寫）。
// Seed 為 int64 字串，空字串自動產生；Snap 為 before_hex 快照，非空時以 Snap 為準。
type devRequest struct {
	dto.AutoBetRequest
	Rounds         int              `json:"rounds"`
	InitialBalance *decimal.Decimal `json:"initial_balance,omitempty"`
	Seed           string           `json:"seed"`
	Snap           string           `json:"snap"`
}

// Register 註冊 Dev 工具路由（只在 dev 模式掛載）。
//
//   - GET  /dev         ：路由清單
//   - GET  /dev/meta    ：house 設定、preset、策略、承諾與引擎狀態
//   - GET  /dev/metrics ：ledger 計數與 runtime 資訊
//   - POST /dev/rolls   ：以可重播的 PRNG 逐局預覽一段策略執行
func Register(svr netsvr.NetRouter, cfg *svrcfg.SvrCfg) {
	svr.Get("/dev", devIndex)
	svr.Get("/dev/meta", devMeta(cfg))
	svr.Get("/dev/metrics", devMetrics(cfg))
	svr.Post("/dev/rolls", devRolls(cfg))
}

func devIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string][]string{
		"routes": {"GET /dev/meta", "GET /dev/metrics", "POST /dev/rolls"},
	})
}

type devMetaResponse struct {
	House              *house.Setting     `json:"house"`
	Presets            []house.Preset     `json:"presets"`
	Strategies         []dto.StrategyView `json:"strategies"`
	PendingCommitments int                `json:"pending_commitments"`
	Closed             bool               `json:"closed"`
	ClosedReason       string             `json:"closed_reason,omitempty"`
	MaxDevRounds       int                `json:"max_dev_rounds"`
}

func devMeta(cfg *svrcfg.SvrCfg) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e := cfg.Engine
		writeJSON(w, devMetaResponse{
			House:              e.House(),
			Presets:            e.Presets().All(),
			Strategies:         dto.Strategies(),
			PendingCommitments: e.PendingCommitments(),
			Closed:             e.Closed(),
			ClosedReason:       e.ClosedReason(),
			MaxDevRounds:       dicelab.MaxDevRounds,
		})
	}
}

type devMetricsResponse struct {
	Ledger     ledger.Metrics `json:"ledger"`
	Goroutines int            `json:"goroutines"`
	HeapAlloc  uint64         `json:"heap_alloc"`
	At         time.Time      `json:"at"`
}

func devMetrics(cfg *svrcfg.SvrCfg) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		writeJSON(w, devMetricsResponse{
			Ledger:     cfg.Engine.Metrics(),
			Goroutines: runtime.NumGoroutine(),
			HeapAlloc:  ms.HeapAlloc,
			At:         time.Now().UTC(),
		})
	}
}

// devRolls 流程：
//  1. decode devRequest，合併 preset
//  2. resolve seed（空字串 = 自動）
//  3. 建立 DevSimulator → Rolls() 或 RestoreRolls()
func devRolls(cfg *svrcfg.SvrCfg) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e := cfg.Engine
		req := new(devRequest)
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
		dec.DisallowUnknownFields()
		if err := dec.Decode(req); err != nil {
			httperr.Errs(w, errs.Invalidf("invalid json: %v", err))
			return
		}
		if req.Rounds < 1 {
			httperr.Errs(w, errs.Invalidf("rounds is required"))
			return
		}
		acfg, err := req.Config(e.Presets())
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		seed, err := resolveSeed(req.Seed)
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		sim, err := e.NewDevSimulator(acfg, seed)
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		bal := e.House().InitialBalance
		if req.InitialBalance != nil {
			bal = *req.InitialBalance
		}
		snap := strings.TrimSpace(req.Snap)
		var rep dicelab.DevRollReport
		if snap != "" {
			rep, err = sim.RestoreRolls(snap, bal, req.Rounds)
		} else {
			rep, err = sim.Rolls(bal, req.Rounds)
		}
		if err != nil {
			httperr.Fail(w, cfg.Log, "dev rolls failed", err)
			return
		}
		writeJSON(w, rep)
	}
}

// resolveSeed 空字串回 -1（交給 DevSimulator 隨機產生）；非空必須是非負 int64。
func resolveSeed(seed string) (int64, error) {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return -1, nil
	}
	v, err := strconv.ParseInt(seed, 10, 64)
	if err != nil || v < 0 {
		return 0, errs.Invalidf("seed must be a non-negative int64")
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
