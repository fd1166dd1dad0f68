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
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/dicelab/autobet"
	"github.com/zintix-labs/dicelab/errs"
	"github.com/zintix-labs/dicelab/fairness"
	"github.com/zintix-labs/dicelab/ledger"
	"github.com/zintix-labs/dicelab/odds"
)

// PlaceRequest 手動下注。ServerSeedHash 非空時必須等於使用者的待用承諾。
type PlaceRequest struct {
	ledger.Request
	ServerSeedHash string
}

// PlaceResult 結算結果；ServerSeed 一律揭露。
type PlaceResult struct {
	Round              ledger.Round    `json:"round"`
	NewBalance         decimal.Decimal `json:"new_balance"`
	ServerSeed         string          `json:"server_seed"`
	ServerSeedHash     string          `json:"server_seed_hash"`
	NextServerSeedHash string          `json:"next_server_seed_hash"`
}

// Place 手動下注一局。下注期間占用使用者的下注權：自動下注中或已有一局進行中時回 ErrBusy。
func (e *Engine) Place(ctx context.Context, req PlaceRequest) (PlaceResult, error) {
	req.UserID = e.user(req.UserID)
	if err := e.checkOpen(); err != nil {
		return PlaceResult{}, err
	}
	if !e.tryReserve(req.UserID) {
		return PlaceResult{}, errs.Busyf("user %s has a round in flight or autobet running", req.UserID)
	}
	defer e.unreserve(req.UserID)
	return e.place(ctx, req)
}

// place 流程：
//  1. 檢查請求與 house 注額限制（不消耗承諾）
//  2. 取出待用承諾，推導結果與倍數
//  3. ledger 結算；失敗時把未揭露的承諾放回
//  4. 鑄造下一個承諾，回傳時揭露本局 server seed
func (e *Engine) place(ctx context.Context, req PlaceRequest) (PlaceResult, error) {
	if err := e.checkOpen(); err != nil {
		return PlaceResult{}, err
	}
	if err := req.Validate(); err != nil {
		return PlaceResult{}, err
	}
	if err := e.house.CheckBet(req.BetAmount); err != nil {
		return PlaceResult{}, err
	}

	cm, err := e.book.Take(req.UserID, req.ServerSeedHash)
	if err != nil {
		return PlaceResult{}, err
	}
	out, err := fairness.Derive(req.ClientSeed, cm.ServerSeed, req.Target, req.Direction)
	if err != nil {
		e.book.Restore(req.UserID, cm)
		return PlaceResult{}, err
	}
	mult, err := odds.Multiplier(req.Target, req.Direction)
	if err != nil {
		e.book.Restore(req.UserID, cm)
		return PlaceResult{}, err
	}
	st, err := e.ledger.Settle(ctx, req.Request, cm, out, mult)
	if err != nil {
		e.book.Restore(req.UserID, cm)
		return PlaceResult{}, err
	}

	res := PlaceResult{
		Round:          st.Round,
		NewBalance:     st.NewBalance,
		ServerSeed:     cm.ServerSeed,
		ServerSeedHash: cm.ServerSeedHash,
	}
	next, err := e.book.Pending(req.UserID)
	if err != nil {
		// 本局已結算；下一個承諾可稍後由 Commit 取得
		e.log.Error("mint next commitment", "user", req.UserID, "err", err)
	}
	res.NextServerSeedHash = next

	e.log.Debug("round settled",
		"user", req.UserID,
		"round", st.Round.ID,
		"bet", req.BetAmount.String(),
		"target", req.Target.String(),
		"direction", req.Direction.String(),
		"roll", out.Roll.StringFixed(2),
		"won", out.Won,
		"payout", st.Round.Payout.String(),
		"balance", st.NewBalance.String(),
	)
	return res, nil
}

func (e *Engine) tryReserve(userID string) bool {
	e.resMu.Lock()
	defer e.resMu.Unlock()
	if _, ok := e.reserved[userID]; ok {
		return false
	}
	e.reserved[userID] = struct{}{}
	return true
}

func (e *Engine) unreserve(userID string) {
	e.resMu.Lock()
	delete(e.reserved, userID)
	e.resMu.Unlock()
}

// Reservation 使用者的獨占下注權（自動下注整段期間，或手動下注的單局期間）。
type Reservation struct {
	e      *Engine
	userID string
	once   sync.Once
}

// Reserve 取得使用者的獨占下注權；已被占用時回 ErrBusy。
func (e *Engine) Reserve(userID string) (*Reservation, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	userID = e.user(userID)
	if !e.tryReserve(userID) {
		return nil, errs.Busyf("user %s already reserved", userID)
	}
	return &Reservation{e: e, userID: userID}, nil
}

// Place 在保留期間下注。承諾由引擎自行管理，每局都會鑄造新的承諾。
func (r *Reservation) Place(ctx context.Context, req ledger.Request) (ledger.Settlement, error) {
	req.UserID = r.userID
	if _, err := r.e.book.Pending(r.userID); err != nil {
		return ledger.Settlement{}, err
	}
	res, err := r.e.place(ctx, PlaceRequest{Request: req})
	if err != nil {
		return ledger.Settlement{}, err
	}
	return ledger.Settlement{NewBalance: res.NewBalance, Round: res.Round}, nil
}

func (r *Reservation) Release() {
	r.once.Do(func() { r.e.unreserve(r.userID) })
}

// AutoBetVenue 讓 autobet.Manager 透過 Engine 下注。
func (e *Engine) AutoBetVenue() autobet.Venue {
	return venue{e}
}

type venue struct{ e *Engine }

func (v venue) Reserve(userID string) (autobet.Session, error) {
	r, err := v.e.Reserve(userID)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (v venue) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	return v.e.Balance(ctx, userID)
}

func (v venue) ClientSeed() (string, error) {
	return v.e.ClientSeed()
}
