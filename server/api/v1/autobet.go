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
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/zintix-labs/dicelab"
	"github.com/zintix-labs/dicelab/autobet"
	"github.com/zintix-labs/dicelab/dto"
	"github.com/zintix-labs/dicelab/errs"
	"github.com/zintix-labs/dicelab/server/httperr"
	"github.com/zintix-labs/dicelab/server/netsvr/middleware"
	"github.com/zintix-labs/dicelab/server/svrcfg"
)

const (
	streamWriteTimeout = 3 * time.Second
	streamPingEvery    = 30 * time.Second
)

// AutoBetHandler 自動下注的啟停、狀態、事件串流，以及策略與預設組合清單。
type AutoBetHandler struct {
	engine  *dicelab.Engine
	mgr     *autobet.Manager
	log     *slog.Logger
	origins []string
}

func NewAutoBetHandler(sCfg *svrcfg.SvrCfg) (*AutoBetHandler, error) {
	if sCfg == nil || sCfg.Engine == nil || sCfg.AutoBet == nil {
		return nil, errs.NewFatal("build autobet handler error: engine and manager are required")
	}
	h := &AutoBetHandler{engine: sCfg.Engine, mgr: sCfg.AutoBet, log: sCfg.Log}
	if sCfg.Dev {
		h.origins = []string{"localhost:*", "127.0.0.1:*"}
	}
	return h, nil
}

// Start POST /v1/autobet
func (h *AutoBetHandler) Start(w http.ResponseWriter, r *http.Request) {
	cfg, err := dto.DecodeAutoBetRequest(r, h.engine.Presets())
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), reqTimeout)
	defer cancel()

	uid := middleware.UserID(r)
	st, err := h.mgr.Start(ctx, uid, cfg)
	if err != nil {
		httperr.Fail(w, h.log, "autobet start failed", err)
		return
	}
	writeJSON(w, http.StatusAccepted, dto.AutoBetResponse{UserID: uid, Active: true, State: st})
}

// Stop DELETE /v1/autobet：等進行中的那一局結算後回傳最終狀態。
func (h *AutoBetHandler) Stop(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), reqTimeout)
	defer cancel()

	uid := middleware.UserID(r)
	st, err := h.mgr.Stop(ctx, uid)
	if err != nil {
		httperr.Fail(w, h.log, "autobet stop failed", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.AutoBetResponse{UserID: uid, Active: h.mgr.Active(uid), State: st})
}

// Status GET /v1/autobet
func (h *AutoBetHandler) Status(w http.ResponseWriter, r *http.Request) {
	uid := middleware.UserID(r)
	writeJSON(w, http.StatusOK, dto.AutoBetResponse{UserID: uid, Active: h.mgr.Active(uid), State: h.mgr.Status(uid)})
}

// Stream GET /v1/autobet/stream（websocket）
//
// 連線後先送一筆 snapshot，之後轉送 started/round/stopped 事件，直到任一方關閉。
// 伺服器不讀取 client 訊息。
func (h *AutoBetHandler) Stream(w http.ResponseWriter, r *http.Request) {
	uid := middleware.UserID(r)
	events, unsubscribe := h.mgr.Subscribe(uid)
	defer unsubscribe()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.log.Warn("autobet stream: accept failed", slog.String("user", uid), slog.Any("err", err))
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())
	snap := autobet.Event{Type: autobet.EventSnapshot, UserID: uid, State: h.mgr.Status(uid), At: time.Now()}
	if err := writeEvent(ctx, conn, snap); err != nil {
		return
	}

	ping := time.NewTicker(streamPingEvery)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := writeEvent(ctx, conn, ev); err != nil {
				return
			}
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev autobet.Event) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}

// Strategies GET /v1/strategies
func (h *AutoBetHandler) Strategies(w http.ResponseWriter, r *http.Request) {
	type strategiesResponse struct {
		Strategies []dto.StrategyView `json:"strategies"`
	}
	writeJSON(w, http.StatusOK, strategiesResponse{Strategies: dto.Strategies()})
}

// Presets GET /v1/presets
func (h *AutoBetHandler) Presets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.PresetsResponse{Presets: h.engine.Presets().All()})
}
