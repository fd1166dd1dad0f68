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

package api_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/shopspring/decimal"
	"github.com/zintix-labs/dicelab"
	"github.com/zintix-labs/dicelab/autobet"
	"github.com/zintix-labs/dicelab/fairness"
	"github.com/zintix-labs/dicelab/server"
	"github.com/zintix-labs/dicelab/server/svrcfg"
	"github.com/zintix-labs/dicelab/store/memstore"
)

type fixture struct {
	h   http.Handler
	e   *dicelab.Engine
	mgr *autobet.Manager
}

// blockSleep 讓自動下注在第一局之後停住，直到被取消。
func blockSleep(ctx context.Context, _ time.Duration) error {
	<-ctx.Done()
	return ctx.Err()
}

func newFixture(t *testing.T, dev bool) *fixture {
	t.Helper()
	e, err := dicelab.New(memstore.New())
	if err != nil {
		t.Fatalf("dicelab.New error = %v", err)
	}
	mgr := autobet.NewManager(e.AutoBetVenue(), e.House(), nil, autobet.WithSleep(blockSleep))
	cfg := &svrcfg.SvrCfg{
		Log:     slog.New(slog.DiscardHandler),
		Engine:  e,
		AutoBet: mgr,
		Dev:     dev,
	}
	svr, err := server.Build(cfg, nil)
	if err != nil {
		t.Fatalf("server.Build error = %v", err)
	}
	t.Cleanup(func() {
		mgr.Close()
		e.Close("test done")
	})
	return &fixture{h: svr.Handler(), e: e, mgr: mgr}
}

func (f *fixture) do(t *testing.T, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != "" {
		req.Header.Set("X-User-Id", user)
	}
	rr := httptest.NewRecorder()
	f.h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q error = %v", rr.Body.String(), err)
	}
	return v
}

type errBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func expectErr(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("status = %d, want %d, body = %s", rr.Code, status, rr.Body.String())
	}
	if got := decode[errBody](t, rr); got.Code != code {
		t.Fatalf("code = %q, want %q (error %q)", got.Code, code, got.Error)
	}
}

type placeResp struct {
	Round struct {
		ID     string          `json:"id"`
		UserID string          `json:"user_id"`
		Payout decimal.Decimal `json:"payout"`
		Won    bool            `json:"won"`
	} `json:"round"`
	NewBalance         decimal.Decimal `json:"new_balance"`
	ServerSeed         string          `json:"server_seed"`
	ServerSeedHash     string          `json:"server_seed_hash"`
	NextServerSeedHash string          `json:"next_server_seed_hash"`
}

func TestIndexAndHealth(t *testing.T) {
	f := newFixture(t, false)
	rr := f.do(t, http.MethodGet, "/", "", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "/v1/rounds") {
		t.Fatalf("index = %d %s", rr.Code, rr.Body.String())
	}
	if rr := f.do(t, http.MethodGet, "/healthz", "", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("healthz = %d", rr.Code)
	}
	if rr.Header().Get("X-Request-Id") == "" {
		t.Fatalf("missing X-Request-Id header")
	}
}

func TestCommitPlaceVerifyFlow(t *testing.T) {
	f := newFixture(t, false)

	rr := f.do(t, http.MethodGet, "/v1/commitment", "alice", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("commitment = %d %s", rr.Code, rr.Body.String())
	}
	cm := decode[struct {
		UserID         string `json:"user_id"`
		ServerSeedHash string `json:"server_seed_hash"`
	}](t, rr)
	if cm.UserID != "alice" || len(cm.ServerSeedHash) != 64 {
		t.Fatalf("commitment = %+v", cm)
	}

	body := `{"bet_amount":"10","target":"50","direction":"under","client_seed":"abc","server_seed_hash":"` + cm.ServerSeedHash + `"}`
	rr = f.do(t, http.MethodPost, "/v1/rounds", "alice", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("place = %d %s", rr.Code, rr.Body.String())
	}
	res := decode[placeResp](t, rr)
	if res.ServerSeedHash != cm.ServerSeedHash || fairness.HashSeed(res.ServerSeed) != cm.ServerSeedHash {
		t.Fatalf("revealed seed does not match commitment: %+v", res)
	}
	if res.NextServerSeedHash == "" || res.NextServerSeedHash == cm.ServerSeedHash {
		t.Fatalf("next hash = %q", res.NextServerSeedHash)
	}
	want := decimal.NewFromInt(990).Add(res.Round.Payout)
	if !res.NewBalance.Equal(want) {
		t.Fatalf("new balance = %s, want %s", res.NewBalance, want)
	}

	// 舊的承諾已用掉
	rr = f.do(t, http.MethodPost, "/v1/bet", "alice", body)
	expectErr(t, rr, http.StatusBadRequest, "invalid_input")

	rr = f.do(t, http.MethodGet, "/v1/rounds?limit=10", "alice", "")
	list := decode[struct {
		Count  int `json:"count"`
		Rounds []struct {
			ID string `json:"id"`
		} `json:"rounds"`
	}](t, rr)
	if list.Count != 1 || list.Rounds[0].ID != res.Round.ID {
		t.Fatalf("rounds = %+v", list)
	}

	if rr := f.do(t, http.MethodGet, "/v1/rounds/"+res.Round.ID, "alice", ""); rr.Code != http.StatusOK {
		t.Fatalf("own round = %d", rr.Code)
	}
	expectErr(t, f.do(t, http.MethodGet, "/v1/rounds/"+res.Round.ID, "bob", ""), http.StatusNotFound, "not_found")

	rr = f.do(t, http.MethodGet, "/v1/rounds/"+res.Round.ID+"/verify", "bob", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("verify round = %d %s", rr.Code, rr.Body.String())
	}
	if v := decode[struct {
		Verified bool `json:"verified"`
	}](t, rr); !v.Verified {
		t.Fatalf("verified = false")
	}

	rr = f.do(t, http.MethodGet, "/v1/balance", "alice", "")
	bal := decode[struct {
		Balance decimal.Decimal `json:"balance"`
	}](t, rr)
	if !bal.Balance.Equal(res.NewBalance) {
		t.Fatalf("balance = %s, want %s", bal.Balance, res.NewBalance)
	}
}

func TestLegacyBetShapeUsesDefaultUser(t *testing.T) {
	f := newFixture(t, false)
	if rr := f.do(t, http.MethodGet, "/v1/commitment", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("commitment = %d", rr.Code)
	}
	rr := f.do(t, http.MethodPost, "/v1/bet", "", `{"betAmount":"1","targetValue":"50","isOver":true,"clientSeed":"legacy"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("legacy bet = %d %s", rr.Code, rr.Body.String())
	}
	if res := decode[placeResp](t, rr); res.Round.UserID != f.e.House().DefaultUser {
		t.Fatalf("user = %q, want default user", res.Round.UserID)
	}
}

func TestPlaceRequiresCommitment(t *testing.T) {
	f := newFixture(t, false)
	rr := f.do(t, http.MethodPost, "/v1/rounds", "eve", `{"bet_amount":"1","target":"50","direction":"over","client_seed":"x"}`)
	expectErr(t, rr, http.StatusBadRequest, "invalid_input")
}

func TestErrorMapping(t *testing.T) {
	f := newFixture(t, false)
	if rr := f.do(t, http.MethodGet, "/v1/commitment", "err-user", ""); rr.Code != http.StatusOK {
		t.Fatalf("commitment = %d", rr.Code)
	}
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"insufficient", http.MethodPost, "/v1/rounds", `{"bet_amount":"5000","target":"50","direction":"over","client_seed":"x"}`, http.StatusUnprocessableEntity, "insufficient_balance"},
		{"target out of range", http.MethodPost, "/v1/rounds", `{"bet_amount":"1","target":"99","direction":"over","client_seed":"x"}`, http.StatusBadRequest, "invalid_input"},
		{"unknown field", http.MethodPost, "/v1/rounds", `{"bet":"1"}`, http.StatusBadRequest, "invalid_input"},
		{"unknown round", http.MethodGet, "/v1/rounds/nope", "", http.StatusNotFound, "not_found"},
		{"bad limit", http.MethodGet, "/v1/rounds?limit=-1", "", http.StatusBadRequest, "invalid_input"},
		{"stop without run", http.MethodDelete, "/v1/autobet", "", http.StatusNotFound, "not_found"},
		{"unknown preset", http.MethodPost, "/v1/autobet", `{"preset":"nope"}`, http.StatusNotFound, "not_found"},
		{"quote without target", http.MethodGet, "/v1/quote?direction=over", "", http.StatusBadRequest, "invalid_input"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			expectErr(t, f.do(t, tc.method, tc.path, "err-user", tc.body), tc.status, tc.code)
		})
	}

	rr := f.do(t, http.MethodGet, "/v1/balance", strings.Repeat("u", 65), "")
	expectErr(t, rr, http.StatusBadRequest, "invalid_input")
}

func TestQuoteAndVerify(t *testing.T) {
	f := newFixture(t, false)
	rr := f.do(t, http.MethodGet, "/v1/quote?target=50&direction=under&bet_amount=10", "", "")
	q := decode[struct {
		WinChance   decimal.Decimal `json:"win_chance"`
		Multiplier  decimal.Decimal `json:"multiplier"`
		ProfitOnWin decimal.Decimal `json:"profit_on_win"`
	}](t, rr)
	if !q.WinChance.Equal(decimal.NewFromInt(50)) || !q.Multiplier.Equal(decimal.RequireFromString("1.98")) {
		t.Fatalf("quote = %+v", q)
	}
	if !q.ProfitOnWin.Equal(decimal.RequireFromString("9.8")) {
		t.Fatalf("profit on win = %s", q.ProfitOnWin)
	}

	server := strings.Repeat("b", 64)
	want, err := fairness.Derive("client", server, decimal.NewFromInt(50), fairness.Over)
	if err != nil {
		t.Fatalf("Derive error = %v", err)
	}
	body := `{"client_seed":"client","server_seed":"` + server + `","server_seed_hash":"` + fairness.HashSeed(server) + `","target":"50","direction":"over"}`
	rr = f.do(t, http.MethodPost, "/v1/verify", "", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("verify = %d %s", rr.Code, rr.Body.String())
	}
	got := decode[struct {
		Outcome struct {
			Roll decimal.Decimal `json:"roll"`
			Won  bool            `json:"won"`
		} `json:"outcome"`
	}](t, rr)
	if !got.Outcome.Roll.Equal(want.Roll) || got.Outcome.Won != want.Won {
		t.Fatalf("outcome = %+v, want %+v", got.Outcome, want)
	}

	bad := strings.Replace(body, fairness.HashSeed(server), strings.Repeat("0", 64), 1)
	expectErr(t, f.do(t, http.MethodPost, "/v1/verify", "", bad), http.StatusInternalServerError, "verification_mismatch")
}

type autoBetResp struct {
	Active bool `json:"active"`
	State  struct {
		Status     string `json:"status"`
		BetsPlaced int    `json:"bets_placed"`
		StopReason string `json:"stop_reason"`
	} `json:"state"`
}

func TestAutoBetLifecycle(t *testing.T) {
	f := newFixture(t, false)
	body := `{"strategy":"martingale","base_bet":"1","max_bet":"64","target":"50","direction":"over","delay_ms":500}`
	rr := f.do(t, http.MethodPost, "/v1/autobet", "carol", body)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("start = %d %s", rr.Code, rr.Body.String())
	}
	expectErr(t, f.do(t, http.MethodPost, "/v1/autobet", "carol", body), http.StatusConflict, "busy")
	expectErr(t, f.do(t, http.MethodPost, "/v1/rounds", "carol", `{"bet_amount":"1","target":"50","direction":"over","client_seed":"x"}`), http.StatusConflict, "busy")

	if st := decode[autoBetResp](t, f.do(t, http.MethodGet, "/v1/autobet", "carol", "")); !st.Active || st.State.Status != "running" {
		t.Fatalf("status = %+v", st)
	}

	rr = f.do(t, http.MethodDelete, "/v1/autobet", "carol", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("stop = %d %s", rr.Code, rr.Body.String())
	}
	st := decode[autoBetResp](t, rr)
	if st.Active || st.State.Status != "stopped" || st.State.StopReason != string(autobet.ReasonCancelled) {
		t.Fatalf("stopped state = %+v", st)
	}
	if st.State.BetsPlaced != 1 {
		t.Fatalf("bets placed = %d, want 1", st.State.BetsPlaced)
	}

	// 停止後可以手動下注
	rr = f.do(t, http.MethodGet, "/v1/commitment", "carol", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("commitment = %d", rr.Code)
	}
	if rr := f.do(t, http.MethodPost, "/v1/rounds", "carol", `{"bet_amount":"1","target":"50","direction":"over","client_seed":"x"}`); rr.Code != http.StatusOK {
		t.Fatalf("manual bet after stop = %d %s", rr.Code, rr.Body.String())
	}
}

func TestAutoBetStream(t *testing.T) {
	f := newFixture(t, false)
	srv := httptest.NewServer(f.h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/autobet/stream?user_id=dave", nil)
	if err != nil {
		t.Fatalf("Dial error = %v", err)
	}
	defer conn.CloseNow()

	type event struct {
		Type   string `json:"type"`
		UserID string `json:"user_id"`
	}
	var ev event
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatalf("read snapshot error = %v", err)
	}
	if ev.Type != string(autobet.EventSnapshot) || ev.UserID != "dave" {
		t.Fatalf("first event = %+v", ev)
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/autobet", strings.NewReader(`{"preset":"classic-martingale"}`))
	req.Header.Set("X-User-Id", "dave")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("start error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("start status = %d", resp.StatusCode)
	}

	seen := map[string]bool{}
	for !seen[string(autobet.EventRound)] {
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			t.Fatalf("read event error = %v (seen %v)", err, seen)
		}
		seen[ev.Type] = true
	}
	if !seen[string(autobet.EventStarted)] {
		t.Fatalf("round before started: %v", seen)
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func TestCatalogs(t *testing.T) {
	f := newFixture(t, false)
	st := decode[struct {
		Strategies []struct {
			Name string `json:"name"`
		} `json:"strategies"`
	}](t, f.do(t, http.MethodGet, "/v1/strategies", "", ""))
	if len(st.Strategies) != 6 || st.Strategies[0].Name != "martingale" {
		t.Fatalf("strategies = %+v", st)
	}
	ps := decode[struct {
		Presets []struct {
			Name string `json:"name"`
		} `json:"presets"`
	}](t, f.do(t, http.MethodGet, "/v1/presets", "", ""))
	if len(ps.Presets) != f.e.Presets().Len() {
		t.Fatalf("presets = %d, want %d", len(ps.Presets), f.e.Presets().Len())
	}
	rr := f.do(t, http.MethodGet, "/v1/client-seed", "", "")
	if cs := decode[struct {
		ClientSeed string `json:"client_seed"`
	}](t, rr); len(cs.ClientSeed) != 32 {
		t.Fatalf("client seed = %q", cs.ClientSeed)
	}
}

func TestSimEndpoint(t *testing.T) {
	f := newFixture(t, false)
	body := `{"preset":"fibonacci-ladder","players":20,"rounds":50,"workers":2,"seed":7}`

	type simResp struct {
		Seed   int64           `json:"seed"`
		Report json.RawMessage `json:"report"`
	}
	first := f.do(t, http.MethodPost, "/v1/sim", "", body)
	if first.Code != http.StatusOK {
		t.Fatalf("sim = %d %s", first.Code, first.Body.String())
	}
	a := decode[simResp](t, first)
	b := decode[simResp](t, f.do(t, http.MethodPost, "/v1/sim", "", body))
	if a.Seed != 7 || string(a.Report) != string(b.Report) {
		t.Fatalf("sim with the same seed differs")
	}

	rr := f.do(t, http.MethodPost, "/v1/sim?format=table", "", body)
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") || !strings.Contains(rr.Body.String(), "Total RTP") {
		t.Fatalf("table = %s %q", ct, rr.Body.String())
	}
	expectErr(t, f.do(t, http.MethodPost, "/v1/sim?format=xml", "", body), http.StatusBadRequest, "invalid_input")
	expectErr(t, f.do(t, http.MethodPost, "/v1/sim", "", `{"preset":"fibonacci-ladder","workers":17}`), http.StatusBadRequest, "invalid_input")
}

func TestDevRoutes(t *testing.T) {
	if rr := newFixture(t, false).do(t, http.MethodGet, "/dev/meta", "", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("dev route without dev mode = %d", rr.Code)
	}

	f := newFixture(t, true)
	if rr := f.do(t, http.MethodGet, "/dev/meta", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("dev meta = %d", rr.Code)
	}
	if rr := f.do(t, http.MethodGet, "/dev/metrics", "", ""); rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"settled"`) {
		t.Fatalf("dev metrics = %d %s", rr.Code, rr.Body.String())
	}

	type rolls struct {
		Before string `json:"before_hex"`
		Rolls  []struct {
			ServerSeed string          `json:"server_seed"`
			Roll       decimal.Decimal `json:"roll"`
		} `json:"rolls"`
	}
	body := `{"preset":"classic-martingale","rounds":5,"seed":"42"}`
	a := decode[rolls](t, f.do(t, http.MethodPost, "/dev/rolls", "", body))
	b := decode[rolls](t, f.do(t, http.MethodPost, "/dev/rolls", "", body))
	if len(a.Rolls) == 0 || len(a.Rolls) != len(b.Rolls) {
		t.Fatalf("rolls = %d / %d", len(a.Rolls), len(b.Rolls))
	}
	replay := decode[rolls](t, f.do(t, http.MethodPost, "/dev/rolls", "", `{"preset":"classic-martingale","rounds":5,"snap":"`+a.Before+`"}`))
	for i := range a.Rolls {
		if a.Rolls[i].ServerSeed != b.Rolls[i].ServerSeed || a.Rolls[i].ServerSeed != replay.Rolls[i].ServerSeed {
			t.Fatalf("roll %d not reproducible", i)
		}
	}
	expectErr(t, f.do(t, http.MethodPost, "/dev/rolls", "", `{"preset":"classic-martingale","rounds":5001}`), http.StatusBadRequest, "invalid_input")
}
