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

package stats_test

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/dicelab/errs"
	"github.com/zintix-labs/dicelab/stats"
)

// buildStatReport 以每局回報倍數（payout / bet）與固定注額建立報表。
func buildStatReport(bet decimal.Decimal, returns []float64) *stats.StatReport {
	var sum, sq float64
	win := decimal.Zero
	wins := 0
	for _, x := range returns {
		sum += x
		sq += x * x
		win = win.Add(bet.Mul(decimal.NewFromFloat(x)))
		if x > 0 {
			wins++
		}
	}
	collect := make([]int, stats.RollBuckets)
	collect[0] = len(returns)
	report := &stats.StatReport{
		Summary: &stats.SummaryReport{
			Strategy: "martingale",
			TotalBet: bet.Mul(decimal.NewFromInt(int64(len(returns)))),
			TotalWin: win,
			Wins:     wins,
			Rounds:   len(returns),
		},
		Return: &stats.ReturnReport{ReturnSum: sum, ReturnSqSum: sq},
		Dist: &stats.DistReport{
			RollBucket:  stats.RollBucketStr(),
			RollCollect: collect,
		},
		Player: &stats.PlayerReport{},
	}
	return report
}

func TestStatReportCoreMetrics(t *testing.T) {
	rep := buildStatReport(decimal.NewFromInt(1), []float64{0, 1.98})
	rep.Done()

	if got := rep.Rtp(); math.Abs(got-0.99) > 1e-12 {
		t.Fatalf("RTP got %.12f want 0.99", got)
	}
	variance := (1.98*1.98 - 1.98*1.98/2) / (2 - 1)
	wantStd := math.Sqrt(variance)
	if got := rep.Std(); math.Abs(got-wantStd) > 1e-12 {
		t.Fatalf("Std got %.12f want %.12f", got, wantStd)
	}
	if got := rep.Cv(); math.Abs(got-wantStd/0.99) > 1e-12 {
		t.Fatalf("CV got %.12f want %.12f", got, wantStd/0.99)
	}
	if rep.Summary.HitRate != 0.5 {
		t.Fatalf("hit rate got %f", rep.Summary.HitRate)
	}
	if len(rep.Dist.RollDist) != stats.RollBuckets || rep.Dist.RollDist[0] != 1 {
		t.Fatalf("roll dist not normalised: %v", rep.Dist.RollDist[:2])
	}
	if !rep.Player.Alive {
		t.Fatalf("player neither bust nor cashout must be alive")
	}

	rep.Summary.TotalWin = decimal.Zero
	rep.Done() // idempotent
	if rep.Summary.RTP != 0.99 {
		t.Fatalf("RTP changed after second Done")
	}
}

func TestStatReportEmpty(t *testing.T) {
	rep := &stats.StatReport{Summary: &stats.SummaryReport{}}
	rep.Done()
	if rep.Rtp() != 0 || rep.Std() != 0 || rep.Cv() != 0 {
		t.Fatalf("empty report should yield zeros")
	}
}

func TestRollIndex(t *testing.T) {
	cases := map[string]int{"0": 0, "0.99": 0, "25.00": 25, "99.99": 99, "150": 99, "-1": 0}
	for in, want := range cases {
		if got := stats.RollIndex(decimal.RequireFromString(in)); got != want {
			t.Fatalf("RollIndex(%s) got %d want %d", in, got, want)
		}
	}
	if l := stats.RollBucketStr(); len(l) != stats.RollBuckets || l[0] != "[0,1)" || l[99] != "[99,100)" {
		t.Fatalf("unexpected labels %v ... %v", l[0], l[len(l)-1])
	}
}

func TestChiSquareUniform(t *testing.T) {
	chi, dof, p := stats.ChiSquareUniform([]int{10, 10, 10, 10})
	if chi != 0 || dof != 3 || math.Abs(p-1) > 1e-12 {
		t.Fatalf("flat counts: chi=%f dof=%d p=%f", chi, dof, p)
	}
	chi, dof, p = stats.ChiSquareUniform([]int{20, 0, 0, 0})
	if math.Abs(chi-60) > 1e-9 || dof != 3 {
		t.Fatalf("skewed counts: chi=%f dof=%d", chi, dof)
	}
	if p > 1e-6 {
		t.Fatalf("skewed counts should reject uniformity, p=%g", p)
	}
	if _, dof, p := stats.ChiSquareUniform(nil); dof != 0 || p != 1 {
		t.Fatalf("empty input dof=%d p=%f", dof, p)
	}
}

func TestEstimatorRtpAndSession(t *testing.T) {
	// 100 位玩家，RTP 由 0.00 到 0.99
	reports := make([]*stats.StatReport, 0, 100)
	for i := 0; i < 100; i++ {
		r := buildStatReport(decimal.NewFromInt(1), []float64{float64(i) / 100})
		r.Done()
		reports = append(reports, r)
	}
	est := stats.EstimatorPlayerExp(reports)
	if math.Abs(est.RtpStat.ExpMedian.Hat-0.5) > 0.05 {
		t.Fatalf("median RTP expected ~0.5, got %.3f", est.RtpStat.ExpMedian.Hat)
	}
	if math.Abs(est.RtpStat.ExpPerc.ExpP90.Hat-0.9) > 0.05 {
		t.Fatalf("P90 RTP expected ~0.9, got %.3f", est.RtpStat.ExpPerc.ExpP90.Hat)
	}

	// 3 破產、2 贏滿、5 存活；前 4 位最長連輸 12 局
	samples := make([]*stats.StatReport, 10)
	for i := 0; i < 10; i++ {
		r := buildStatReport(decimal.NewFromInt(1), []float64{0})
		switch {
		case i < 3:
			r.Player.Bust = true
		case i < 5:
			r.Player.Cashout = true
		}
		if i < 4 {
			r.Summary.LongestLossStreak = 12
		}
		r.Player.Bets = i + 1
		r.Done()
		samples[i] = r
	}
	est2 := stats.EstimatorPlayerExp(samples)
	if est2.SessionStat.Bust.Hat != 0.3 {
		t.Fatalf("Bust rate got %.2f want 0.30", est2.SessionStat.Bust.Hat)
	}
	if est2.SessionStat.Cashout.Hat != 0.2 {
		t.Fatalf("Cashout rate got %.2f want 0.20", est2.SessionStat.Cashout.Hat)
	}
	if est2.SessionStat.Alive.Hat != 0.5 {
		t.Fatalf("Alive rate got %.2f want 0.50", est2.SessionStat.Alive.Hat)
	}
	ls := est2.EventStat.LossStreak
	if ls.Over5.Hat != 0.4 || ls.Over10.Hat != 0.4 || ls.Over20.Hat != 0 {
		t.Fatalf("loss streak rates got %.2f %.2f %.2f", ls.Over5.Hat, ls.Over10.Hat, ls.Over20.Hat)
	}
	if ls.Over20.CI.Lo != 0 || ls.Over20.CI.Hi <= 0 {
		t.Fatalf("zero-count Clopper-Pearson interval must start at 0, got %+v", ls.Over20.CI)
	}
	if est2.EventStat.Bets.Hat != 6 {
		t.Fatalf("median bets got %.0f want 6", est2.EventStat.Bets.Hat)
	}
}

func TestEstimatorSinglePlayer(t *testing.T) {
	r := buildStatReport(decimal.NewFromInt(1), []float64{1.98})
	r.Done()
	est := stats.EstimatorPlayerExp([]*stats.StatReport{r})
	if est.RtpStat.ExpMedian.Hat != 1.98 {
		t.Fatalf("median got %f", est.RtpStat.ExpMedian.Hat)
	}
	if stats.EstimatorPlayerExp(nil) == nil {
		t.Fatalf("empty input should still return an estimator")
	}
}

func TestRenders(t *testing.T) {
	rep := buildStatReport(decimal.NewFromInt(1), []float64{0, 1.98})

	f, err := stats.ParseFormat("YML")
	if err != nil || f != stats.FormatYAML {
		t.Fatalf("parse yml: %v %v", f, err)
	}
	if _, err := stats.ParseFormat("xml"); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("unknown format want invalid, got %v", err)
	}
	if sr, er := stats.FormatTable.Renders(); sr != nil || er != nil {
		t.Fatalf("table format has no renderer")
	}

	sr, _ := stats.FormatJSON.Renders()
	var buf bytes.Buffer
	if err := rep.WriteWith(&buf, sr); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !strings.Contains(buf.String(), `"TotalBet": "2"`) || !strings.Contains(buf.String(), `"RTP": 0.99`) {
		t.Fatalf("json output unexpected:\n%s", buf.String())
	}

	sr, _ = stats.FormatYAML.Renders()
	buf.Reset()
	if err := rep.WriteWith(&buf, sr); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if !strings.Contains(buf.String(), "RollCollect: [2, 0,") {
		t.Fatalf("inner list should use flow style:\n%s", buf.String())
	}

	buf.Reset()
	rep.Fprint(&buf, 0)
	if !strings.Contains(buf.String(), "Total RTP") || !strings.Contains(buf.String(), "99.00 %") {
		t.Fatalf("table output unexpected:\n%s", buf.String())
	}
}

func TestEstimatorFprint(t *testing.T) {
	reps := make([]*stats.StatReport, 0, 4)
	for _, wins := range [][]float64{{0, 0}, {1.98, 0}, {1.98, 1.98}, {0, 1.98}} {
		r := buildStatReport(decimal.NewFromInt(1), wins)
		r.Done()
		reps = append(reps, r)
	}
	var buf bytes.Buffer
	stats.EstimatorPlayerExp(reps).Fprint(&buf)
	out := buf.String()
	for _, want := range []string{"RTP (Player Experience)", "Median RTP", "Longest Loss Streak", "Session Outcome", "Bust"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}
