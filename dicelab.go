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


// Package dicelab 是 provably-fair 擲骰引擎的組裝入口。
//
// Engine 把下列元件組在一起，對外提供 Commit / Place / Rounds / VerifyRound 等操作：
//  1. fairness.Book：每位使用者的待用承諾（先公開雜湊、結算後揭露 seed）。
//  2. odds：倍數與派彩。
//  3. ledger.Ledger：唯一的餘額寫入者，單局結算為一個交易。
//  4. house.Setting：開戶餘額、注額限制、歷史筆數等規則。
//
// 一局的流程：
//
//	hash, _ := eng.Commit(ctx, "u1")          // 下注前先拿到 serverSeedHash
//	res, _ := eng.Place(ctx, dicelab.PlaceRequest{...})
//	// res.ServerSeed 已揭露；res.NextServerSeedHash 是下一局的承諾
//
// Engine 不綁定任何持久層，Store 由呼叫端注入（memstore / sqlstore）。
package dicelab

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/dicelab/errs"
	"github.com/zintix-labs/dicelab/fairness"
	"github.com/zintix-labs/dicelab/house"
	"github.com/zintix-labs/dicelab/ledger"
	"github.com/zintix-labs/dicelab/odds"
)

type Engine struct {
	house   *house.Setting
	presets *house.Presets
	book    *fairness.Book
	ledger  *ledger.Ledger
	store   ledger.Store
	log     *slog.Logger

	resMu    sync.Mutex
	reserved map[string]struct{} // 自動下注中的使用者

	done      chan struct{}
	closeOnce sync.Once
	reason    atomic.Value // string
}

type options struct {
	house   *house.Setting
	presets *house.Presets
	rand    io.Reader
	log     *slog.Logger
	shards  int
}

type Option func(*options)

func WithHouse(s *house.Setting) Option   { return func(o *options) { o.house = s } }
func WithPresets(p *house.Presets) Option { return func(o *options) { o.presets = p } }

// WithRand 替換 CSPRNG 來源（測試用）。
func WithRand(r io.Reader) Option      { return func(o *options) { o.rand = r } }
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.log = l } }
func WithShards(n int) Option          { return func(o *options) { o.shards = n } }

// New 組裝 Engine。未指定 house / presets 時使用內嵌預設值。
func New(store ledger.Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errs.NewFatal("store required")
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.house == nil {
		s, err := house.Default()
		if err != nil {
			return nil, err
		}
		o.house = s
	}
	if o.presets == nil {
		p, err := house.DefaultPresets(o.house)
		if err != nil {
			return nil, err
		}
		o.presets = p
	}
	if o.log == nil {
		o.log = slog.New(slog.DiscardHandler)
	}
	e := &Engine{
		house:    o.house,
		presets:  o.presets,
		book:     fairness.NewBook(fairness.NewCommitter(o.rand)),
		ledger:   ledger.New(store, o.shards),
		store:    store,
		log:      o.log,
		reserved: make(map[string]struct{}),
		done:     make(chan struct{}),
	}
	e.reason.Store("")
	return e, nil
}

func (e *Engine) House() *house.Setting   { return e.house }
func (e *Engine) Presets() *house.Presets { return e.presets }
func (e *Engine) Store() ledger.Store     { return e.store }
func (e *Engine) Metrics() ledger.Metrics { return e.ledger.Metrics() }

// PendingCommitments 目前尚未使用的承諾數量。
func (e *Engine) PendingCommitments() int { return e.book.Len() }

func (e *Engine) user(userID string) string {
	if userID == "" {
		return e.house.DefaultUser
	}
	return userID
}

func (e *Engine) checkOpen() error {
	select {
	case <-e.done:
		return errs.Closedf("engine closed: %s", e.ClosedReason())
	default:
		return nil
	}
}

// OpenAccount 以 house 的初始餘額開戶（冪等）。
func (e *Engine) OpenAccount(ctx context.Context, userID string) (decimal.Decimal, bool, error) {
	if err := e.checkOpen(); err != nil {
		return decimal.Zero, false, err
	}
	userID = e.user(userID)
	bal, created, err := e.ledger.Open(ctx, userID, e.house.InitialBalance)
	if err == nil && created {
		e.log.Info("account opened", "user", userID, "balance", bal.String())
	}
	return bal, created, err
}

// Balance 回傳餘額；帳戶不存在時自動開戶。
func (e *Engine) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	bal, _, err := e.OpenAccount(ctx, userID)
	return bal, err
}

// Commit 回傳使用者待用承諾的雜湊，必要時先鑄造。第一次呼叫也會開戶。
func (e *Engine) Commit(ctx context.Context, userID string) (string, error) {
	userID = e.user(userID)
	if _, _, err := e.OpenAccount(ctx, userID); err != nil {
		return "", err
	}
	return e.book.Pending(userID)
}

// ClientSeed 產生一個新的 client seed（16 bytes hex）。
func (e *Engine) ClientSeed() (string, error) {
	return e.book.Committer().ClientSeed()
}

// Rounds 新到舊列出使用者的局；limit 會被限制在 house 的上限內。
func (e *Engine) Rounds(ctx context.Context, userID string, limit int) ([]ledger.Round, error) {
	return e.store.ListRounds(ctx, e.user(userID), e.house.ClampLimit(limit))
}

func (e *Engine) Round(ctx context.Context, id string) (ledger.Round, error) {
	if id == "" {
		return ledger.Round{}, errs.Invalidf("round id is required")
	}
	return e.store.GetRound(ctx, id)
}

// VerifyRound 取出已保存的局並完整重算；不一致時回 ErrVerificationMismatch。
func (e *Engine) VerifyRound(ctx context.Context, id string) (ledger.Round, fairness.Outcome, error) {
	r, err := e.Round(ctx, id)
	if err != nil {
		return ledger.Round{}, fairness.Outcome{}, err
	}
	out, err := r.Verify()
	if err != nil {
		e.log.Error("round verification mismatch", "round", id, "err", err)
	}
	return r, out, err
}

// Verification 對任意輸入重算的結果。
type Verification struct {
	Outcome    fairness.Outcome `json:"outcome"`
	Multiplier decimal.Decimal  `json:"multiplier"`
	HashOK     *bool            `json:"hash_ok,omitempty"`
}

// Verify 無狀態驗證：任何人提供 seeds、target、direction 都能重算。
// serverSeedHash 非空時一併檢查承諾。
func (e *Engine) Verify(clientSeed, serverSeed, serverSeedHash string, target decimal.Decimal, dir fairness.Direction) (Verification, error) {
	out, err := fairness.Verify(clientSeed, serverSeed, target, dir)
	if err != nil {
		return Verification{}, err
	}
	mult, err := odds.Multiplier(target, dir)
	if err != nil {
		return Verification{}, err
	}
	v := Verification{Outcome: out, Multiplier: mult}
	if serverSeedHash != "" {
		ok := fairness.HashSeed(serverSeed) == serverSeedHash
		v.HashOK = &ok
		if !ok {
			return v, errs.Mismatchf("server seed does not match commitment %s", serverSeedHash)
		}
	}
	return v, nil
}

// QuoteView 下注前顯示的報價。
type QuoteView struct {
	Target      decimal.Decimal    `json:"target"`
	Direction   fairness.Direction `json:"direction"`
	WinChance   decimal.Decimal    `json:"win_chance"`
	Multiplier  decimal.Decimal    `json:"multiplier"`
	BetAmount   decimal.Decimal    `json:"bet_amount"`
	PayoutOnWin decimal.Decimal    `json:"payout_on_win"`
	ProfitOnWin decimal.Decimal    `json:"profit_on_win"`
}

// Quote bet 為零時只回傳勝率與倍數。
func (e *Engine) Quote(target decimal.Decimal, dir fairness.Direction, bet decimal.Decimal) (QuoteView, error) {
	q, err := odds.QuoteOf(target, dir)
	if err != nil {
		return QuoteView{}, err
	}
	if bet.IsNegative() {
		return QuoteView{}, errs.Invalidf("bet amount must not be negative")
	}
	return QuoteView{
		Target:      target,
		Direction:   dir,
		WinChance:   q.WinChance,
		Multiplier:  q.Multiplier,
		BetAmount:   bet,
		PayoutOnWin: odds.Payout(bet, q.Multiplier, true),
		ProfitOnWin: odds.ProfitOnWin(bet, q.Multiplier),
	}, nil
}

// Close 進入關閉狀態並記錄原因（只寫入一次）；之後的寫入操作回 ErrClosed。
func (e *Engine) Close(reason string) {
	e.closeOnce.Do(func() {
		if reason == "" {
			reason = "closed"
		}
		e.reason.Store(reason)
		close(e.done)
		e.ledger.Close(reason)
		e.log.Info("engine closed", "reason", reason)
	})
}

func (e *Engine) Closed() bool {
	return e.checkOpen() != nil
}

func (e *Engine) ClosedReason() string {
	if s, ok := e.reason.Load().(string); ok {
		return s
	}
	return ""
}
