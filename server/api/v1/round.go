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

	"github.com/zintix-labs/dicelab"
	"github.com/zintix-labs/dicelab/dto"
	"github.com/zintix-labs/dicelab/errs"
	"github.com/zintix-labs/dicelab/server/httperr"
	"github.com/zintix-labs/dicelab/server/netsvr"
	"github.com/zintix-labs/dicelab/server/netsvr/middleware"
	"github.com/zintix-labs/dicelab/server/svrcfg"
)

// RoundHandler 手動下注、歷史與驗證。
type RoundHandler struct {
	engine *dicelab.Engine
	log    *slog.Logger
}

func NewRoundHandler(sCfg *svrcfg.SvrCfg) (*RoundHandler, error) {
	if sCfg == nil || sCfg.Engine == nil {
		return nil, errs.NewFatal("build round handler error: engine is required")
	}
	return &RoundHandler{engine: sCfg.Engine, log: sCfg.Log}, nil
}

// Commitment GET /v1/commitment
func (h *RoundHandler) Commitment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), reqTimeout)
	defer cancel()

	uid := middleware.UserID(r)
	hash, err := h.engine.Commit(ctx, uid)
	if err != nil {
		httperr.Fail(w, h.log, "commitment failed", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.CommitmentResponse{UserID: uid, ServerSeedHash: hash})
}

// ClientSeed GET /v1/client-seed：給前端用的隨機 client seed。
func (h *RoundHandler) ClientSeed(w http.ResponseWriter, r *http.Request) {
	seed, err := h.engine.ClientSeed()
	if err != nil {
		httperr.Fail(w, h.log, "client seed failed", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ClientSeedResponse{ClientSeed: seed})
}

// Place POST /v1/rounds（別名 POST /v1/bet）
func (h *RoundHandler) Place(w http.ResponseWriter, r *http.Request) {
	req, err := dto.DecodeRoundRequest(r, middleware.UserID(r))
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), reqTimeout)
	defer cancel()

	res, err := h.engine.Place(ctx, req)
	if err != nil {
		httperr.Fail(w, h.log, "place round failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Rounds GET /v1/rounds?limit=
func (h *RoundHandler) Rounds(w http.ResponseWriter, r *http.Request) {
	limit, err := dto.DecodeLimit(r)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), reqTimeout)
	defer cancel()

	uid := middleware.UserID(r)
	rounds, err := h.engine.Rounds(ctx, uid, limit)
	if err != nil {
		httperr.Fail(w, h.log, "list rounds failed", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewRoundsResponse(uid, rounds))
}

// Round GET /v1/rounds/{id}；只回傳呼叫者自己的局。
func (h *RoundHandler) Round(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), reqTimeout)
	defer cancel()

	id := netsvr.Param(r, "id")
	round, err := h.engine.Round(ctx, id)
	if err == nil && round.UserID != middleware.UserID(r) {
		err = errs.NotFoundf("round %s not found", id)
	}
	if err != nil {
		httperr.Fail(w, h.log, "get round failed", err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

// VerifyRound GET /v1/rounds/{id}/verify
//
// 任何人都能驗證任何一局；重算不一致時回 500 verification_mismatch。
func (h *RoundHandler) VerifyRound(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), reqTimeout)
	defer cancel()

	round, out, err := h.engine.VerifyRound(ctx, netsvr.Param(r, "id"))
	if err != nil {
		httperr.Fail(w, h.log, "verify round failed", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.VerifyRoundResponse{Verified: true, Round: round, Outcome: out})
}

// Verify POST /v1/verify：對任意 seeds 重算。
func (h *RoundHandler) Verify(w http.ResponseWriter, r *http.Request) {
	v, err := dto.DecodeVerifyRequest(r)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	res, err := h.engine.Verify(v.ClientSeed, v.ServerSeed, v.ServerSeedHash, v.Target, v.Direction)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Balance GET /v1/balance
func (h *RoundHandler) Balance(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), reqTimeout)
	defer cancel()

	uid := middleware.UserID(r)
	bal, err := h.engine.Balance(ctx, uid)
	if err != nil {
		httperr.Fail(w, h.log, "balance failed", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.BalanceResponse{UserID: uid, Balance: bal})
}

// Quote GET /v1/quote?target=&direction=&bet_amount=
func (h *RoundHandler) Quote(w http.ResponseWriter, r *http.Request) {
	q, err := dto.DecodeQuoteRequest(r)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	view, err := h.engine.Quote(q.Target, q.Direction, q.BetAmount)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
