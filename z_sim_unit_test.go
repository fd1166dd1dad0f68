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
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/dicelab/autobet"
	"github.com/zintix-labs/dicelab/errs"
	"github.com/zintix-labs/dicelab/fairness"
	"github.com/zintix-labs/dicelab/strategy"
)

func simCfg(kind strategy.Kind, base, maxBet string) autobet.Config {
	return autobet.Config{
		Config: strategy.Config{
			Kind:    kind,
			BaseBet: decimal.RequireFromString(base),
			MaxBet:  decimal.RequireFromString(maxBet),
		},
		Target:    decimal.NewFromInt(50),
		Direction: fairness.Under,
	}
}

func TestSeedMakerUniqueConcurrent(t *testing.T) {
	sm := newSeedMaker(42)
	const workers, each = 8, 1000
	out := make([][]int64, workers)
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for range each {
				out[w] = append(out[w], sm.next())
			}
		}(w)
	}
	wg.Wait()
	seen := make(map[int64]bool, workers*each)
	for _, o := range out {
		for _, v := range o {
			if v < 0 {
				t.Fatalf("seed must be non-negative, got %d", v)
			}
			if seen[v] {
				t.Fatalf("duplicate seed %d", v)
			}
			seen[v] = true
		}
	}
}

func TestSimDeterministic(t *testing.T) {
	cfg := simCfg(strategy.Martingale, "1", "1024")
	a, _, err := NewSimulatorWithSeed(nil, 7).Sim(cfg, 2000, false)
	if err != nil {
		t.Fatalf("sim: %v", err)
	}
	b, _, err := NewSimulatorWithSeed(nil, 7).Sim(cfg, 2000, false)
	if err != nil {
		t.Fatalf("sim: %v", err)
	}
	if a.Summary.Rounds != 2000 {
		t.Fatalf("rounds got %d", a.Summary.Rounds)
	}
	if !a.Summary.TotalBet.Equal(b.Summary.TotalBet) || !a.Summary.TotalWin.Equal(b.Summary.TotalWin) {
		t.Fatalf("same seed must reproduce: %s/%s vs %s/%s", a.Summary.TotalBet, a.Summary.TotalWin, b.Summary.TotalBet, b.Summary.TotalWin)
	}
	sum := 0
	for i, c := range a.Dist.RollCollect {
		if c != b.Dist.RollCollect[i] {
			t.Fatalf("roll bucket %d differs", i)
		}
		sum += c
	}
	if sum != 2000 {
		t.Fatalf("roll buckets sum %d want 2000", sum)
	}
	if a.Summary.MaxBet.GreaterThan(decimal.NewFromInt(1024)) {
		t.Fatalf("bet exceeded max bet: %s", a.Summary.MaxBet)
	}
	if a.Player != nil {
		t.Fatalf("endless sim must not carry a player report")
	}
}

func TestSimMPFlatBetRtp(t *testing.T) {
	// max_bet == base_bet 讓任何策略都變成固定注額
	cfg := simCfg(strategy.Martingale, "1", "1")
	rep, _, err := NewSimulatorWithSeed(nil, 2025).SimMP(cfg, 50000, 4, false)
	if err != nil {
		t.Fatalf("sim: %v", err)
	}
	if rep.Summary.Rounds != 200000 {
		t.Fatalf("rounds got %d", rep.Summary.Rounds)
	}
	if !rep.Summary.TotalBet.Equal(decimal.NewFromInt(200000)) {
		t.Fatalf("flat betting total bet got %s", rep.Summary.TotalBet)
	}
	if math.Abs(rep.Summary.RTP-0.99) > 0.02 {
		t.Fatalf("rtp should be near 0.99, got %.4f", rep.Summary.RTP)
	}
	if math.Abs(rep.Summary.HitRate-0.50) > 0.01 {
		t.Fatalf("hit rate should be near 0.50, got %.4f", rep.Summary.HitRate)
	}
	if rep.Summary.RtpCI.Lo > rep.Summary.RTP || rep.Summary.RtpCI.Hi < rep.Summary.RTP {
		t.Fatalf("ci %+v must contain rtp %.4f", rep.Summary.RtpCI, rep.Summary.RTP)
	}
	if rep.Dist.DoF != 99 || rep.Dist.PValue <= 0 || rep.Dist.PValue > 1 {
		t.Fatalf("chi-square dof=%d p=%f", rep.Dist.DoF, rep.Dist.PValue)
	}
}

func TestSimPlayersIndependentOfWorkers(t *testing.T) {
	cfg := simCfg(strategy.Martingale, "1", "1000")
	start := decimal.NewFromInt(10)
	a, estA, _, err := NewSimulatorWithSeed(nil, 99).SimPlayers(cfg, 1, 40, start, 300, false)
	if err != nil {
		t.Fatalf("sim players: %v", err)
	}
	b, estB, _, err := NewSimulatorWithSeed(nil, 99).SimPlayers(cfg, 4, 40, start, 300, false)
	if err != nil {
		t.Fatalf("sim players: %v", err)
	}
	if !a.Summary.TotalBet.Equal(b.Summary.TotalBet) || a.Summary.Rounds != b.Summary.Rounds {
		t.Fatalf("worker count changed results: %s/%d vs %s/%d", a.Summary.TotalBet, a.Summary.Rounds, b.Summary.TotalBet, b.Summary.Rounds)
	}
	if estA.SessionStat.Bust.Hat != estB.SessionStat.Bust.Hat {
		t.Fatalf("bust rate differs: %f vs %f", estA.SessionStat.Bust.Hat, estB.SessionStat.Bust.Hat)
	}
	s := estA.SessionStat
	if total := s.Bust.Hat + s.Cashout.Hat + s.Alive.Hat; math.Abs(total-1) > 1e-9 {
		t.Fatalf("session outcomes must partition players, got %f", total)
	}
	// 10 元本金跑 martingale，連輸 3 局後就撐不起下一注
	if s.Bust.Hat == 0 {
		t.Fatalf("expected some busted players")
	}
}

func TestSimPlayersStopOnCount(t *testing.T) {
	cfg := simCfg(strategy.DAlembert, "1", "10")
	cfg.NumberOfBets = 5
	rep, est, _, err := NewSimulatorWithSeed(nil, 5).SimPlayers(cfg, 2, 10, decimal.NewFromInt(1000), 100, false)
	if err != nil {
		t.Fatalf("sim players: %v", err)
	}
	if rep.Summary.Rounds != 50 {
		t.Fatalf("each player should stop at 5 bets, total rounds %d", rep.Summary.Rounds)
	}
	if est.SessionStat.Alive.Hat != 1 {
		t.Fatalf("count stop is neither bust nor cashout, alive=%f", est.SessionStat.Alive.Hat)
	}
	if est.EventStat.Bets.Hat != 5 {
		t.Fatalf("median bets got %f want 5", est.EventStat.Bets.Hat)
	}
}

func TestSimRejects(t *testing.T) {
	s := NewSimulatorWithSeed(nil, 1)
	cfg := simCfg(strategy.Fibonacci, "1", "100")
	if _, _, err := s.Sim(cfg, 0, false); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("rounds 0 want invalid, got %v", err)
	}
	if _, _, err := s.SimMP(cfg, 10, 0, false); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("mp 0 want invalid, got %v", err)
	}
	bad := cfg
	bad.Direction = 0
	if _, _, err := s.Sim(bad, 10, false); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("missing direction want invalid, got %v", err)
	}
	if _, _, _, err := s.SimPlayers(cfg, 1, 1, decimal.RequireFromString("0.5"), 10, false); !errors.Is(err, errs.ErrInsufficientBalance) {
		t.Fatalf("base bet above balance want insufficient, got %v", err)
	}
}
