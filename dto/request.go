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
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/dicelab"
	"github.com/zintix-labs/dicelab/errs"
	"github.com/zintix-labs/dicelab/fairness"
	"github.com/zintix-labs/dicelab/ledger"
)

// 防止 body 過大（預設 1MiB）
const maxBody = 1 << 20

// RoundRequest 下注請求的線上格式。
//
// 同時接受舊版 /api/bet 的 camelCase 欄位（betAmount / targetValue / isOver / clientSeed）；
// 同一欄位兩種寫法都出現且值不同時視為格式錯誤。
type RoundRequest struct {
	BetAmount      *decimal.Decimal `json:"bet_amount,omitempty"`
	Target         *decimal.Decimal `json:"target,omitempty"`
	Direction      string           `json:"direction,omitempty"`
	IsOver         *bool            `json:"is_over,omitempty"`
	ClientSeed     string           `json:"client_seed,omitempty"`
	ServerSeedHash string           `json:"server_seed_hash,omitempty"`

	LegacyBetAmount  *decimal.Decimal `json:"betAmount,omitempty"`
	LegacyTarget     *decimal.Decimal `json:"targetValue,omitempty"`
	LegacyIsOver     *bool            `json:"isOver,omitempty"`
	LegacyClientSeed string           `json:"clientSeed,omitempty"`
}

// DecodeRoundRequest 會把 HTTP 請求解碼成 dicelab.PlaceRequest。
//
// 支援：
//   - GET：從 query string 讀取（bet_amount/target/direction/is_over/client_seed/server_seed_hash）。
//   - POST：從 JSON body 反序列化，未知欄位一律拒絕。
//
// 這裡只做解碼與欄位合併；數值範圍由 engine 檢查。
func DecodeRoundRequest(r *http.Request, userID string) (dicelab.PlaceRequest, error) {
	req := new(RoundRequest)
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		var err error
		if req.BetAmount, err = queryDecimal(q, "bet_amount"); err != nil {
			return dicelab.PlaceRequest{}, err
		}
		if req.Target, err = queryDecimal(q, "target"); err != nil {
			return dicelab.PlaceRequest{}, err
		}
		if req.IsOver, err = queryBool(q, "is_over"); err != nil {
			return dicelab.PlaceRequest{}, err
		}
		req.Direction = q.Get("direction")
		req.ClientSeed = q.Get("client_seed")
		req.ServerSeedHash = q.Get("server_seed_hash")
	case http.MethodPost:
		if err := decodeJSON(r, req); err != nil {
			return dicelab.PlaceRequest{}, err
		}
	default:
		return dicelab.PlaceRequest{}, errs.Invalidf("method not allowed")
	}
	return req.toPlace(userID)
}

func (req *RoundRequest) toPlace(userID string) (dicelab.PlaceRequest, error) {
	bet, err := pickDecimal("bet_amount", req.BetAmount, req.LegacyBetAmount)
	if err != nil {
		return dicelab.PlaceRequest{}, err
	}
	target, err := pickDecimal("target", req.Target, req.LegacyTarget)
	if err != nil {
		return dicelab.PlaceRequest{}, err
	}
	isOver, err := pickBool("is_over", req.IsOver, req.LegacyIsOver)
	if err != nil {
		return dicelab.PlaceRequest{}, err
	}
	dir, err := ResolveDirection(req.Direction, isOver)
	if err != nil {
		return dicelab.PlaceRequest{}, err
	}
	seed, err := pickString("client_seed", req.ClientSeed, req.LegacyClientSeed)
	if err != nil {
		return dicelab.PlaceRequest{}, err
	}
	return dicelab.PlaceRequest{
		Request: ledger.Request{
			UserID:     userID,
			BetAmount:  bet,
			Target:     target,
			Direction:  dir,
			ClientSeed: seed,
		},
		ServerSeedHash: req.ServerSeedHash,
	}, nil
}

// VerifyRequest 任意 (client seed, server seed) 的重算請求。
type VerifyRequest struct {
	ClientSeed     string           `json:"client_seed"`
	ServerSeed     string           `json:"server_seed"`
	ServerSeedHash string           `json:"server_seed_hash,omitempty"`
	Target         *decimal.Decimal `json:"target"`
	Direction      string           `json:"direction,omitempty"`
	IsOver         *bool            `json:"is_over,omitempty"`
}

// Verify 解碼後的重算參數。
type Verify struct {
	ClientSeed     string
	ServerSeed     string
	ServerSeedHash string
	Target         decimal.Decimal
	Direction      fairness.Direction
}

// DecodeVerifyRequest 支援 GET（query）與 POST（JSON）。
func DecodeVerifyRequest(r *http.Request) (Verify, error) {
	req := new(VerifyRequest)
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		var err error
		if req.Target, err = queryDecimal(q, "target"); err != nil {
			return Verify{}, err
		}
		if req.IsOver, err = queryBool(q, "is_over"); err != nil {
			return Verify{}, err
		}
		req.ClientSeed = q.Get("client_seed")
		req.ServerSeed = q.Get("server_seed")
		req.ServerSeedHash = q.Get("server_seed_hash")
		req.Direction = q.Get("direction")
	case http.MethodPost:
		if err := decodeJSON(r, req); err != nil {
			return Verify{}, err
		}
	default:
		return Verify{}, errs.Invalidf("method not allowed")
	}
	if req.Target == nil {
		return Verify{}, errs.Invalidf("target is required")
	}
	dir, err := ResolveDirection(req.Direction, req.IsOver)
	if err != nil {
		return Verify{}, err
	}
	return Verify{
		ClientSeed:     req.ClientSeed,
		ServerSeed:     req.ServerSeed,
		ServerSeedHash: req.ServerSeedHash,
		Target:         *req.Target,
		Direction:      dir,
	}, nil
}

// Quote 報價查詢參數；BetAmount 省略時為 0。
type Quote struct {
	Target    decimal.Decimal
	Direction fairness.Direction
	BetAmount decimal.Decimal
}

// DecodeQuoteRequest 只從 query string 讀取（target/direction/is_over/bet_amount）。
func DecodeQuoteRequest(r *http.Request) (Quote, error) {
	q := r.URL.Query()
	target, err := queryDecimal(q, "target")
	if err != nil {
		return Quote{}, err
	}
	if target == nil {
		return Quote{}, errs.Invalidf("target is required")
	}
	isOver, err := queryBool(q, "is_over")
	if err != nil {
		return Quote{}, err
	}
	dir, err := ResolveDirection(q.Get("direction"), isOver)
	if err != nil {
		return Quote{}, err
	}
	bet, err := queryDecimal(q, "bet_amount")
	if err != nil {
		return Quote{}, err
	}
	out := Quote{Target: *target, Direction: dir, BetAmount: decimal.Zero}
	if bet != nil {
		out.BetAmount = *bet
	}
	return out, nil
}

// DecodeLimit 讀取 ?limit=；缺省回傳 0（交給 house 預設值）。
func DecodeLimit(r *http.Request) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errs.Invalidf("invalid limit %q", s)
	}
	return n, nil
}

// ResolveDirection 合併 direction 字串與 is_over 布林；兩者皆缺省或互相矛盾時回傳錯誤。
func ResolveDirection(direction string, isOver *bool) (fairness.Direction, error) {
	if direction == "" {
		if isOver == nil {
			return 0, errs.Invalidf("direction or is_over is required")
		}
		return fairness.DirectionOf(*isOver), nil
	}
	dir, err := fairness.ParseDirection(direction)
	if err != nil {
		return 0, err
	}
	if isOver != nil && fairness.DirectionOf(*isOver) != dir {
		return 0, errs.Invalidf("direction %s conflicts with is_over=%t", dir, *isOver)
	}
	return dir, nil
}

// ============================================================
// ** 內部方法 **
// ============================================================

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errs.Invalidf("empty body")
		}
		return errs.Invalidf("invalid json: %v", err)
	}
	return nil
}

func queryDecimal(q url.Values, key string) (*decimal.Decimal, error) {
	s := strings.TrimSpace(q.Get(key))
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, errs.Invalidf("invalid %s: %q", key, s)
	}
	return &d, nil
}

func queryBool(q url.Values, key string) (*bool, error) {
	s := q.Get(key)
	if s == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, errs.Invalidf("invalid %s: %q", key, s)
	}
	return &b, nil
}

func pickDecimal(name string, a, legacy *decimal.Decimal) (decimal.Decimal, error) {
	switch {
	case a != nil && legacy != nil && !a.Equal(*legacy):
		return decimal.Zero, errs.Invalidf("%s given twice with different values", name)
	case a != nil:
		return *a, nil
	case legacy != nil:
		return *legacy, nil
	}
	return decimal.Zero, errs.Invalidf("%s is required", name)
}

func pickBool(name string, a, legacy *bool) (*bool, error) {
	if a != nil && legacy != nil && *a != *legacy {
		return nil, errs.Invalidf("%s given twice with different values", name)
	}
	if a != nil {
		return a, nil
	}
	return legacy, nil
}

func pickString(name, a, legacy string) (string, error) {
	if a != "" && legacy != "" && a != legacy {
		return "", errs.Invalidf("%s given twice with different values", name)
	}
	if a != "" {
		return a, nil
	}
	return legacy, nil
}
