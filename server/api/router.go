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

package api

import (
	"encoding/json"
	"net/http"

	"github.com/zintix-labs/dicelab/server/api/dev"
	v1 "github.com/zintix-labs/dicelab/server/api/v1"
	"github.com/zintix-labs/dicelab/server/netsvr"
	"github.com/zintix-labs/dicelab/server/netsvr/middleware"
	"github.com/zintix-labs/dicelab/server/svrcfg"
)

// RegisterRoutes 註冊 middleware、主頁、dev 工具（dev 模式）與 v1 api。
func RegisterRoutes(svr netsvr.NetRouter, sCfg *svrcfg.SvrCfg) error {
	registerMiddleware(svr, sCfg) // 1. middleware
	registerIndex(svr)            // 2. 主頁
	if sCfg.Dev {
		dev.Register(svr, sCfg) // 3. 開發者工具
	}
	return registerV1API(svr, sCfg) // 4. v1 api
}

func registerMiddleware(svr netsvr.NetRouter, sCfg *svrcfg.SvrCfg) {
	svr.Use(middleware.RequestID)
	svr.Use(middleware.AccessLog(sCfg.Log))
	svr.Use(middleware.Recover(sCfg.Log))
	svr.Use(middleware.Compression)
	svr.Use(middleware.User(sCfg.Engine.House().DefaultUser))
}

var v1Routes = []string{
	"GET    /v1/commitment",
	"GET    /v1/client-seed",
	"POST   /v1/rounds",
	"POST   /v1/bet",
	"GET    /v1/rounds",
	"GET    /v1/rounds/{id}",
	"GET    /v1/rounds/{id}/verify",
	"POST   /v1/verify",
	"GET    /v1/balance",
	"GET    /v1/quote",
	"POST   /v1/autobet",
	"DELETE /v1/autobet",
	"GET    /v1/autobet",
	"GET    /v1/autobet/stream",
	"GET    /v1/strategies",
	"GET    /v1/presets",
	"POST   /v1/sim",
}

func registerIndex(svr netsvr.NetRouter) {
	svr.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"service": "dicelab",
			"routes":  v1Routes,
		})
	})
	svr.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func registerV1API(svr netsvr.NetRouter, sCfg *svrcfg.SvrCfg) error {
	rh, err := v1.NewRoundHandler(sCfg)
	if err != nil {
		return err
	}
	ah, err := v1.NewAutoBetHandler(sCfg)
	if err != nil {
		return err
	}
	sh, err := v1.NewSimHandler(sCfg)
	if err != nil {
		return err
	}
	svr.Group("/v1", func(vOne netsvr.NetRouter) {
		vOne.Get("/commitment", rh.Commitment)
		vOne.Get("/client-seed", rh.ClientSeed)
		vOne.Post("/rounds", rh.Place)
		vOne.Post("/bet", rh.Place)
		vOne.Get("/rounds", rh.Rounds)
		vOne.Get("/rounds/{id}", rh.Round)
		vOne.Get("/rounds/{id}/verify", rh.VerifyRound)
		vOne.Post("/verify", rh.Verify)
		vOne.Get("/balance", rh.Balance)
		vOne.Get("/quote", rh.Quote)

		vOne.Post("/autobet", ah.Start)
		vOne.Delete("/autobet", ah.Stop)
		vOne.Get("/autobet", ah.Status)
		vOne.Get("/autobet/stream", ah.Stream)
		vOne.Get("/strategies", ah.Strategies)
		vOne.Get("/presets", ah.Presets)

		vOne.Post("/sim", sh.Sim)
	})
	return nil
}
