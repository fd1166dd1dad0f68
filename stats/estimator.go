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

package stats

import (
	"fmt"
	"io"
	"os"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// ============================================================
// ** 結構宣告 **
// ============================================================

// 用戶體驗評估
type EstimatorPlayers struct {
	RtpStat     RtpStat
	EventStat   EventStat
	SessionStat SessionStat
}

// Rtp敘事
type RtpStat struct {
	ExpMedian PointStat // 描述體驗的中位數
	ExpPerc   ExpPerc   // 描述玩家的分布(對應RTP)
	RtpPerc   RtpPerc   // 描述Rtp的分布(對應多少比例的玩家)
}

// 用玩家體驗分位數視角看: 最差10％玩家的RTP 最差33%玩家的RTP ...
type ExpPerc struct {
	ExpP10 PointStat
	ExpP33 PointStat
	ExpP67 PointStat
	ExpP90 PointStat
}

// 用Rtp分位數視角看玩家: 有多少玩家體驗到了30%RTP 有多少玩家體驗到了50%RTP ...
type RtpPerc struct {
	Rtp30  PointStat
	Rtp50  PointStat
	Rtp70  PointStat
	Rtp100 PointStat
}

// PointStat 點估計 回傳 估計值 以及信賴區間
type PointStat struct {
	Hat float64
	CI  CI
}

// 事件敘事
type EventStat struct {
	LossStreak StreakEvent // 最長連輸
	Bets       PointStat   // 每位玩家實際下注局數的中位數
}

// StreakEvent 最長連輸達到門檻的玩家比例
type StreakEvent struct {
	Over5  PointStat
	Over10 PointStat
	Over20 PointStat
}

// 對應結果敘事
type SessionStat struct {
	Bust    PointStat // 破產
	Cashout PointStat // 贏滿離場
	Alive   PointStat // 活到最後
}

// ============================================================
// ** 對外 : 用戶體驗評估 **
// ============================================================

// EstimatorPlayerExp 用戶體驗評估
//
// 1. RTP 敘事 : 描述用戶大致的RTP分布
//
// 2. Event 敘事 : 描述用戶遇到長連輸的機率，以及一般能撐幾局
//
// 3. Session 敘事 : 描述用戶最終達標離場、破產離場、跑滿局數離場的機率
func EstimatorPlayerExp(sts []*StatReport) *EstimatorPlayers {
	n := len(sts)
	out := &EstimatorPlayers{}
	if n == 0 {
		return out
	}

	// 1) RTP：每位玩家一個樣本
	rtp := make([]float64, n)
	for i, s := range sts {
		rtp[i] = s.Rtp()
	}
	out.RtpStat = RtpStat{
		ExpMedian: quantileStat(rtp, 0.5),
		ExpPerc: ExpPerc{
			ExpP10: quantileStat(rtp, 0.10),
			ExpP33: quantileStat(rtp, 1.0/3.0),
			ExpP67: quantileStat(rtp, 2.0/3.0),
			ExpP90: quantileStat(rtp, 0.90),
		},
		RtpPerc: RtpPerc{
			Rtp30:  shareAtMost(rtp, 0.30),
			Rtp50:  shareAtMost(rtp, 0.50),
			Rtp70:  shareAtMost(rtp, 0.70),
			Rtp100: shareAtMost(rtp, 1.00),
		},
	}

	// 2) 最長連輸與實際下注局數；3) 離場方式
	var s5, s10, s20, bust, cash, alive int
	bets := make([]float64, n)
	for i, s := range sts {
		switch l := s.Summary.LongestLossStreak; {
		case l >= 20:
			s20++
			fallthrough
		case l >= 10:
			s10++
			fallthrough
		case l >= 5:
			s5++
		}
		if s.Player == nil {
			continue
		}
		bets[i] = float64(s.Player.Bets)
		if s.Player.Bust {
			bust++
		}
		if s.Player.Cashout {
			cash++
		}
		if s.Player.Alive {
			alive++
		}
	}
	out.EventStat = EventStat{
		LossStreak: StreakEvent{
			Over5:  share(s5, n),
			Over10: share(s10, n),
			Over20: share(s20, n),
		},
		Bets: quantileStat(bets, 0.5),
	}
	out.SessionStat = SessionStat{
		Bust:    share(bust, n),
		Cashout: share(cash, n),
		Alive:   share(alive, n),
	}
	return out
}

// estConfidence 玩家評估一律使用 95% 信賴區間
const estConfidence = 0.95

func quantileStat(data []float64, q float64) PointStat {
	lo, hi := quantileCI(data, q, estConfidence)
	return PointStat{Hat: quantilePoint(data, q), CI: CI{Lo: lo, Hi: hi}}
}

func shareAtMost(data []float64, x float64) PointStat {
	hat, ci := percentileCIForValue(data, x, estConfidence)
	return PointStat{Hat: hat, CI: ci}
}

func share(k, n int) PointStat {
	hat, ci := proportionCICP(k, n, estConfidence)
	return PointStat{Hat: hat, CI: ci}
}

// ============================================================
// ** 內部統計函數 **
// ============================================================

// Clopper–Pearson exact CI for binomial proportion (k successes out of n)
func proportionCICP(k int, n int, confidence float64) (pHat float64, ci CI) {
	if n == 0 {
		return 0, CI{0, 1}
	}
	alpha := 1 - confidence
	pHat = float64(k) / float64(n)

	// Beta PPF 映射，處理邊界
	if k == 0 {
		ci.Lo = 0
	} else {
		b := distuv.Beta{Alpha: float64(k), Beta: float64(n - k + 1)}
		ci.Lo = b.Quantile(alpha / 2)
	}
	if k == n {
		ci.Hi = 1
	} else {
		b := distuv.Beta{Alpha: float64(k + 1), Beta: float64(n - k)}
		ci.Hi = b.Quantile(1 - alpha/2)
	}
	return
}

// 問題：給定樣本 data 與門檻 x0，估計 p = P(X ≤ x0) 的點估計與 CI 區間
// 回傳 (pHat, CI)
func percentileCIForValue(data []float64, x0 float64, confidence float64) (pHat float64, ci CI) {
	n := len(data)
	if n == 0 {
		return 0, CI{Lo: 0, Hi: 0}
	}
	// k = 數到 <= x0 的個數
	k := 0
	for _, v := range data {
		if v <= x0 {
			k++
		}
	}
	return proportionCICP(k, n, confidence)
}

// 想估「第 q 分位」的上下界。做法：把 order statistic 的秩視為二項→Beta 反推 p 範圍，再把 p 轉回樣本索引。
// 回傳 (loValue, hiValue)
func quantileCI(data []float64, q, confidence float64) (float64, float64) {
	n := len(data)
	if n == 0 {
		return 0, 0
	}
	cp := make([]float64, n)
	copy(cp, data)
	sort.Float64s(cp)
	if n < 2 {
		return cp[0], cp[0]
	}

	alpha := 1 - confidence
	k := int(q * float64(n))
	if k < 1 {
		k = 1
	} else if k > n-1 {
		k = n - 1
	}

	// 以 CP 思想反推 p 範圍
	bLo := distuv.Beta{Alpha: float64(k), Beta: float64(n - k + 1)}
	bHi := distuv.Beta{Alpha: float64(k + 1), Beta: float64(n - k)}
	pLo := bLo.Quantile(alpha / 2)
	pHi := bHi.Quantile(1 - alpha/2)

	li := int(pLo * float64(n))
	ui := int(pHi * float64(n))
	if ui > 0 {
		ui -= 1
	}
	if li < 0 {
		li = 0
	}
	if li > n-1 {
		li = n - 1
	}
	if ui < 0 {
		ui = 0
	}
	if ui > n-1 {
		ui = n - 1
	}
	return cp[li], cp[ui]
}

// quantilePoint returns the empirical quantile point estimate at q.
func quantilePoint(data []float64, q float64) float64 {
	n := len(data)
	if n == 0 {
		return 0
	}
	cp := make([]float64, n)
	copy(cp, data)
	sort.Float64s(cp)
	// 最近秩法
	idx := int(q * float64(n))
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return cp[idx]
}

// ============================================================
// ** 輸出函數 **
// ============================================================

// Out 輸出到標準輸出
func (est *EstimatorPlayers) Out() { est.Fprint(os.Stdout) }

// Fprint 以三張表輸出：RTP 分布、最長連輸、離場方式。數值皆為點估計 [95% CI]。
func (est *EstimatorPlayers) Fprint(w io.Writer) {
	r := est.RtpStat
	sections := []struct {
		title string
		rows  []estRow
	}{
		{"RTP (Player Experience)", []estRow{
			{"Median RTP", pctCI(r.ExpMedian)},
			{"P10 RTP", pctCI(r.ExpPerc.ExpP10)},
			{"P33 RTP", pctCI(r.ExpPerc.ExpP33)},
			{"P67 RTP", pctCI(r.ExpPerc.ExpP67)},
			{"P90 RTP", pctCI(r.ExpPerc.ExpP90)},
			{"≤30% RTP (players)", pctCI(r.RtpPerc.Rtp30)},
			{"≤50% RTP (players)", pctCI(r.RtpPerc.Rtp50)},
			{"≤70% RTP (players)", pctCI(r.RtpPerc.Rtp70)},
			{"≤100% RTP (players)", pctCI(r.RtpPerc.Rtp100)},
		}},
		{"Longest Loss Streak", []estRow{
			{">= 5 losses", pctCI(est.EventStat.LossStreak.Over5)},
			{">= 10 losses", pctCI(est.EventStat.LossStreak.Over10)},
			{">= 20 losses", pctCI(est.EventStat.LossStreak.Over20)},
			{"Median bets", countCI(est.EventStat.Bets)},
		}},
		{"Session Outcome", []estRow{
			{"Bust", pctCI(est.SessionStat.Bust)},
			{"Cashout", pctCI(est.SessionStat.Cashout)},
			{"Alive", pctCI(est.SessionStat.Alive)},
		}},
	}
	for _, sec := range sections {
		keys := make([]string, len(sec.rows))
		msg := make(map[string]string, len(sec.rows))
		for i, row := range sec.rows {
			keys[i] = row.key
			msg[row.key] = row.val
		}
		fmt.Fprint(w, fmtTable(sec.title, keys, msg))
	}
}

type estRow struct{ key, val string }

func pctCI(ps PointStat) string {
	return fmt.Sprintf("%.2f%% [%.2f%%, %.2f%%]", ps.Hat*100, ps.CI.Lo*100, ps.CI.Hi*100)
}

func countCI(ps PointStat) string {
	return fmt.Sprintf("%.0f [%.0f, %.0f]", ps.Hat, ps.CI.Lo, ps.CI.Hi)
}
