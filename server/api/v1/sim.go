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

package v1

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/zintix-labs/dicelab"
	"github.com/zintix-labs/dicelab/dto"
	"github.com/zintix-labs/dicelab/errs"
	"github.com/zintix-labs/dicelab/server/httperr"
	"github.com/zintix-labs/dicelab/server/svrcfg"
	"github.com/zintix-labs/dicelab/stats"
)

// SimHandler 策略模擬：不碰帳本，只跑模擬器。
type SimHandler struct {
	engine  *dicelab.Engine
	workers int
	log     *slog.Logger
}

func NewSimHandler(sCfg *svrcfg.SvrCfg) (*SimHandler, error) {
	if sCfg == nil || sCfg.Engine == nil {
		return nil, errs.NewFatal("build sim handler error: engine is required")
	}
	return &SimHandler{engine: sCfg.Engine, workers: max(1, sCfg.SimWorkers), log: sCfg.Log}, nil
}

// Sim POST /v1/sim[?format=json|yaml|table]
//
// json（預設）回傳 dto.SimResponse；yaml 只回整體報表；table 回整體報表加玩家評估的純文字表格。
func (h *SimHandler) Sim(w http.ResponseWriter, r *http.Request) {
	format := stats.FormatJSON
	if f := r.URL.Query().Get("format"); f != "" {
		var err error
		if format, err = stats.ParseFormat(f); err != nil {
			httperr.Errs(w, err)
			return
		}
	}
	req, err := dto.DecodeSimRequest(r, h.engine.House(), h.engine.Presets())
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	sim, err := h.engine.Simulator(req.Seed)
	if err != nil {
		httperr.Fail(w, h.log, "build simulator failed", err)
		return
	}
	workers := min(req.Workers, h.workers)
	rep, est, used, err := sim.SimPlayers(req.Config, workers, req.Players, req.InitialBalance, req.Rounds, false)
	if err != nil {
		httperr.Fail(w, h.log, "simulate failed", errs.Wrap(err, "simulate err"))
		return
	}
	h.log.Info("sim done",
		slog.String("strategy", req.Config.Kind.String()),
		slog.Int("players", req.Players),
		slog.Int("rounds", req.Rounds),
		slog.Int64("seed", sim.Seed()),
		slog.Duration("used", used),
	)

	switch format {
	case stats.FormatYAML:
		rr, _ := format.Renders()
		var b bytes.Buffer
		if err := rep.WriteWith(&b, rr); err != nil {
			httperr.Errs(w, errs.Wrap(err, "render yaml"))
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(b.Bytes())
	case stats.FormatTable:
		var b bytes.Buffer
		rep.Fprint(&b, used)
		est.Fprint(&b)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write(b.Bytes())
	default:
		writeJSON(w, http.StatusOK, dto.NewSimResponse(sim.Seed(), used, rep, est))
	}
}
