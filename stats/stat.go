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
	"math"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var lang language.Tag = language.English

// 信賴區間
type CI struct {
	Lo float64 `json:"Lo"`
	Hi float64 `json:"Hi"`
}

// StatReport 策略模擬統計報告
type StatReport struct {
	Summary *SummaryReport `json:"Summary"`
	Return  *ReturnReport  `json:"Return"`
	Dist    *DistReport    `json:"Dist"`
	Player  *PlayerReport  `json:"Player,omitzero"`
	isDone  bool
}

type SummaryReport struct {
	Strategy          string          `json:"Strategy"`
	Target            decimal.Decimal `json:"Target"`
	Direction         string          `json:"Direction"`
	WinChance         decimal.Decimal `json:"WinChance"`
	Multiplier        decimal.Decimal `json:"Multiplier"`
	TotalBet          decimal.Decimal `json:"TotalBet"`
	TotalWin          decimal.Decimal `json:"TotalWin"`
	MaxBet            decimal.Decimal `json:"MaxBet"`
	RTP               float64         `json:"RTP"`
	RtpCI             CI              `json:"RtpCI"`
	Std               float64         `json:"Std"`
	Cv                float64         `json:"Cv"`
	Wins              int             `json:"Wins"`
	HitRate           float64         `json:"HitRate"`
	LongestLossStreak int             `json:"LongestLossStreak"`
	Rounds            int             `json:"Rounds"`
}

// ReturnReport 單局回報倍數（payout / bet）的一階與二階和
//
// 贏局為 multiplier，輸局為 0；Std 與 CI 以此計算。
type ReturnReport struct {
	ReturnSum   float64 `json:"ReturnSum"`
	ReturnSqSum float64 `json:"ReturnSqSum"` // 平方和
}

// DistReport roll 落點分布與均勻性檢定
type DistReport struct {
	RollBucket  []string  `json:"RollBucket"`
	RollCollect []int     `json:"RollCollect"`
	RollDist    []float64 `json:"RollDist"`
	ChiSquare   float64   `json:"ChiSquare"`
	DoF         int       `json:"DoF"`
	PValue      float64   `json:"PValue"`
	Uniform     bool      `json:"Uniform"`
}

// PlayerReport 玩家統計
//
// 只有 SimPlayers 才會填入
type PlayerReport struct {
	InitBalance decimal.Decimal `json:"InitBalance"`
	Balance     decimal.Decimal `json:"Balance"`
	MaxBalance  decimal.Decimal `json:"MaxBalance"`
	MinBalance  decimal.Decimal `json:"MinBalance"`
	Bets        int             `json:"Bets"`
	StopReason  string          `json:"StopReason,omitempty"`
	Bust        bool            `json:"Bust"`
	Cashout     bool            `json:"Cashout"`
	Alive       bool            `json:"Alive"`
}

// ============================================================
// ** 公開方法 **
// ============================================================

// Done 將累積計數轉換為最終統計結果並鎖定 isDone 標記。
//
// 紀錄過程只累加原始計數，所有衍生指標在這裡一次算完。
func (s *StatReport) Done() {
	if s.isDone {
		return
	}
	// Summary
	s.Summary.RTP = s.Rtp()
	s.Summary.RtpCI = s.Ci()
	s.Summary.Std = s.Std()
	s.Summary.Cv = s.Cv()
	if s.Summary.Rounds > 0 {
		s.Summary.HitRate = float64(s.Summary.Wins) / float64(s.Summary.Rounds)
	}

	// Dist
	if s.Dist != nil {
		n := float64(s.Summary.Rounds)
		s.Dist.RollDist = make([]float64, len(s.Dist.RollCollect))
		for i, c := range s.Dist.RollCollect {
			if n > 0 {
				s.Dist.RollDist[i] = float64(c) / n
			}
		}
		s.Dist.ChiSquare, s.Dist.DoF, s.Dist.PValue = ChiSquareUniform(s.Dist.RollCollect)
		s.Dist.Uniform = s.Dist.PValue >= UniformAlpha
	}

	// Player
	if s.Player != nil {
		s.Player.Alive = !(s.Player.Bust || s.Player.Cashout)
	}

	s.isDone = true
}

// Rtp 回傳整體 RTP（總派彩 / 總押注）
func (s *StatReport) Rtp() float64 {
	if s.Summary.Rounds == 0 || !s.Summary.TotalBet.IsPositive() {
		return 0
	}
	return s.Summary.TotalWin.Div(s.Summary.TotalBet).InexactFloat64()
}

// Std 回傳單局回報倍數的樣本標準差
func (s *StatReport) Std() float64 {
	if s.Summary.Rounds < 2 || s.Return == nil {
		return 0
	}
	rounds := float64(s.Summary.Rounds)

	sumPow := s.Return.ReturnSum * s.Return.ReturnSum
	variance := (s.Return.ReturnSqSum - sumPow/rounds) / (rounds - 1)

	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// Cv 回傳單局回報的變異係數
func (s *StatReport) Cv() float64 {
	rtp := s.Rtp()
	if rtp <= 0 {
		return 0
	}
	return s.Std() / rtp
}

// Ci 回傳(95% Rtp)信賴區間
func (s *StatReport) Ci() CI {
	rtp := s.Rtp()
	std := s.Std()
	rtpSe := float64(0)
	if s.Summary.Rounds > 1 {
		rtpSe = std / math.Sqrt(float64(s.Summary.Rounds))
	}
	return CI{
		Lo: max(rtp-1.96*rtpSe, 0.0),
		Hi: rtp + 1.96*rtpSe,
	}
}

func (s *StatReport) WriteWith(w io.Writer, rep StatReportRender) error {
	s.Done()
	return rep.Write(w, s)
}

// StdOut 以表格輸出摘要與用時
func (s *StatReport) StdOut(ut time.Duration) {
	s.Fprint(nil, ut)
}

// Fprint 同 StdOut，但寫入 w；w 為 nil 時寫到標準輸出。
func (s *StatReport) Fprint(w io.Writer, ut time.Duration) {
	s.Done()
	p := message.NewPrinter(lang)
	out := formatDuration(ut, s.Summary.Rounds)
	sk, sm := s.fmtBasic()
	out += fmtTable(s.Summary.Strategy, sk, sm)
	if w == nil {
		p.Println(out)
		return
	}
	p.Fprintln(w, out)
}

// ============================================================
// ** 內部方法 **
// ============================================================

func formatDuration(d time.Duration, rounds int) string {
	p := message.NewPrinter(lang)
	if d < 0 {
		d = -d
	}
	sec := d.Seconds()
	if sec <= 0 {
		sec = 1e-9
	}
	rps := int(float64(rounds) / sec)
	if sec < 60.0 {
		return p.Sprintf("used: %.2f seconds\nrps : %d rounds/sec\n", sec, rps)
	}
	s := int(d.Seconds()) % 60
	m := int(d.Minutes()) % 60
	h := int(d.Hours())
	if h == 0 {
		return p.Sprintf("used: %dm %ds\nrps : %d rounds/sec\n", m, s, rps)
	}
	return p.Sprintf("used: %dh:%dm:%ds\nrps : %d rounds/sec\n", h, m, s, rps)
}

func (s *StatReport) fmtBasic() ([]string, map[string]string) {
	p := message.NewPrinter(lang)
	basic := map[string]string{
		"Strategy":     s.Summary.Strategy,
		"Target":       fmt.Sprintf("%s %s", s.Summary.Direction, s.Summary.Target),
		"Multiplier":   s.Summary.Multiplier.String() + "x",
		"Win Chance":   s.Summary.WinChance.String() + " %",
		"Total Rounds": p.Sprintf("%d", s.Summary.Rounds),
		"Total RTP":    p.Sprintf("%.2f %%", 100.0*s.Summary.RTP),
		"RTP 95% CI":   p.Sprintf("[%.2f%%,%.2f%%]", 100.0*s.Summary.RtpCI.Lo, 100.0*s.Summary.RtpCI.Hi),
		"Total Bet":    s.Summary.TotalBet.String(),
		"Total Win":    s.Summary.TotalWin.String(),
		"Max Bet":      s.Summary.MaxBet.String(),
		"Hit Rate":     p.Sprintf("%.2f %%", 100.0*s.Summary.HitRate),
		"Longest Loss": p.Sprintf("%d", s.Summary.LongestLossStreak),
		"STD":          p.Sprintf("%.3f", s.Summary.Std),
		"CV":           p.Sprintf("%.3f", s.Summary.Cv),
	}
	keys := []string{"Strategy", "Target", "Multiplier", "Win Chance", "Total Rounds", "Total RTP", "RTP 95% CI", "Total Bet", "Total Win", "Max Bet", "Hit Rate", "Longest Loss", "STD", "CV"}
	if s.Dist != nil {
		basic["Roll χ²"] = p.Sprintf("%.2f (dof %d, p=%.4f)", s.Dist.ChiSquare, s.Dist.DoF, s.Dist.PValue)
		keys = append(keys, "Roll χ²")
	}
	return keys, basic
}

func fmtTable(title string, keys []string, msg map[string]string) string {
	p := message.NewPrinter(lang)
	maxKeyLen := 0
	maxValLen := 0
	for k, m := range msg {
		if w := runewidth.StringWidth(k); w > maxKeyLen {
			maxKeyLen = w
		}
		if w := runewidth.StringWidth(m); w > maxValLen {
			maxValLen = w
		}
	}
	maxKeyLen += 2
	maxValLen += 2

	divider := "+" + strings.Repeat("-", maxKeyLen) + "+" + strings.Repeat("-", maxValLen) + "+\n"
	top := "+" + strings.Repeat("-", maxKeyLen+1+maxValLen) + "+\n"

	totalInner := maxKeyLen + maxValLen + 1
	titleW := runewidth.StringWidth(title)

	left := (totalInner - titleW) / 2
	right := totalInner - titleW - left

	var sb strings.Builder
	sb.WriteString(top)
	sb.WriteString(p.Sprintf("|%s%s%s|\n", blank(left), title, blank(right)))
	sb.WriteString(divider)
	for _, k := range keys {
		sb.WriteString(p.Sprintf("| %s%s | %s%s |\n", k, blank(maxKeyLen-2-runewidth.StringWidth(k)), msg[k], blank(maxValLen-2-runewidth.StringWidth(msg[k]))))
	}
	sb.WriteString(divider)
	return sb.String()
}

func blank(w int) string {
	if w < 1 {
		return ""
	}
	return strings.Repeat(" ", w)
}
