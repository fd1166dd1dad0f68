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
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/shopspring/decimal"
	"github.com/zintix-labs/dicelab/autobet"
	"github.com/zintix-labs/dicelab/errs"
	"github.com/zintix-labs/dicelab/fairness"
	"github.com/zintix-labs/dicelab/house"
	"github.com/zintix-labs/dicelab/odds"
	"github.com/zintix-labs/dicelab/recorder"
	"github.com/zintix-labs/dicelab/sdk/core"
	"github.com/zintix-labs/dicelab/stats"
	"github.com/zintix-labs/dicelab/strategy"
)

const capPrepare int = 100

// 玩家離場原因（除了 autobet 的停止原因之外）
const (
	leaveCashout = "cashout"
	leaveRounds  = "rounds"
)

// Simulator 以 Monte-Carlo 方式評估自動下注策略。
//
// 每個 worker 擁有獨立的決定性亂數來源，server seed 與 client seed 都走正式的
// fairness.Committer / fairness.Derive 路徑，只是不經過 ledger 與 store。
// 每張桌與每位玩家的亂數 seed 都在派工前由 seedMaker 依序派生，
// 相同的起始 seed 與相同參數必定得到相同的統計結果，與 worker 數量無關（SimMP 除外，其總局數隨 mp 改變）。
type Simulator struct {
	house     *house.Setting
	pf        core.PRNGFactory
	initSeed  int64
	seedmaker *seedMaker
	rBuf      []*recorder.RoundRecorder
	sBuf      []*stats.StatReport
}

// NewSimulator 以隨機起始 seed 建立模擬器。
func NewSimulator(h *house.Setting) (*Simulator, error) {
	seed, err := core.RandomSeed()
	if err != nil {
		return nil, err
	}
	return NewSimulatorWithSeed(h, seed), nil
}

// NewSimulatorWithSeed 以指定 seed 建立模擬器；h 為 nil 時使用內嵌 house 設定。
func NewSimulatorWithSeed(h *house.Setting, seed int64) *Simulator {
	if h == nil {
		h = house.MustDefault()
	}
	return &Simulator{
		house:     h,
		pf:        core.Default(),
		initSeed:  seed,
		seedmaker: newSeedMaker(seed),
		rBuf:      make([]*recorder.RoundRecorder, 0, capPrepare),
		sBuf:      make([]*stats.StatReport, 0, capPrepare),
	}
}

// Simulator 以 Engine 的 house 設定建立模擬器；seed < 0 表示隨機。
func (e *Engine) Simulator(seed int64) (*Simulator, error) {
	if seed < 0 {
		return NewSimulator(e.house)
	}
	return NewSimulatorWithSeed(e.house, seed), nil
}

func (s *Simulator) Seed() int64 { return s.initSeed }

// Sim 單線模擬器：以無限資金連續跑策略 rounds 局（忽略停止條件），回傳統計結果與用時
func (s *Simulator) Sim(cfg autobet.Config, rounds int, showpb bool) (*stats.StatReport, time.Duration, error) {
	return s.SimMP(cfg, rounds, 1, showpb)
}

// SimMP 平行執行 mp 張桌，總計 rounds*mp 局，合併統計結果後回傳統計結果與用時
func (s *Simulator) SimMP(cfg autobet.Config, rounds int, mp int, showpb bool) (*stats.StatReport, time.Duration, error) {
	defer s.reset()
	if mp <= 0 {
		return nil, 0, errs.Invalidf("workers must > 0")
	}
	if rounds < 1 {
		return nil, 0, errs.Invalidf("round must > 0")
	}
	cfg, err := cfg.Prepare(s.house)
	if err != nil {
		return nil, 0, err
	}
	tables := make([]*table, mp)
	for i := range tables {
		if tables[i], err = s.newTable(cfg); err != nil {
			return nil, 0, err
		}
		r, err := recorder.NewRoundRecorder(cfg.Kind, cfg.Target, cfg.Direction, decimal.Zero)
		if err != nil {
			return nil, 0, err
		}
		s.rBuf = append(s.rBuf, r)
	}

	fail := new(firstErr)
	wg := new(sync.WaitGroup)
	wg.Add(mp)
	bar := pb.StartNew(rounds * mp)
	if !showpb {
		bar.SetWriter(io.Discard)
	}
	for i := 0; i < mp; i++ {
		go func(i int) {
			defer wg.Done()
			if err := tables[i].endless(s.rBuf[i], rounds, bar); err != nil {
				fail.set(err)
			}
		}(i)
	}
	wg.Wait()
	used := time.Since(bar.StartTime())
	bar.Finish()
	if err := fail.get(); err != nil {
		return nil, used, err
	}

	st, err := recorder.MergeRoundRecorder(s.rBuf)
	if err != nil {
		return nil, used, err
	}
	result := st.Done()
	result.Done()
	return result, used, nil
}

// SimPlayers 模擬 players 位玩家各自帶 initBalance 進場，依策略與停止條件下注，最多 rounds 局。
//
// 回傳所有局合併的基準報表、玩家體驗評估與用時。
func (s *Simulator) SimPlayers(cfg autobet.Config, mp int, players int, initBalance decimal.Decimal, rounds int, showpb bool) (*stats.StatReport, *stats.EstimatorPlayers, time.Duration, error) {
	defer s.reset()
	if players < 1 || rounds < 1 || mp < 1 || !initBalance.IsPositive() {
		return nil, nil, 0, errs.Invalidf("invalid param")
	}
	cfg, err := cfg.Prepare(s.house)
	if err != nil {
		return nil, nil, 0, err
	}
	if cfg.BaseBet.GreaterThan(initBalance) {
		return nil, nil, 0, errs.Insufficientf("base bet %s exceeds initial balance %s", cfg.BaseBet, initBalance)
	}

	// 準備玩家：每位玩家自帶 seed，不論被哪張桌接手結果都相同
	s.sBuf = make([]*stats.StatReport, players)
	seeds := make([]int64, players)
	for i := range players {
		r, err := recorder.NewRoundRecorder(cfg.Kind, cfg.Target, cfg.Direction, initBalance)
		if err != nil {
			return nil, nil, 0, err
		}
		s.rBuf = append(s.rBuf, r)
		seeds[i] = s.seedmaker.next()
	}

	// 準備並行桌（玩家 seed 已先派生，桌的 seed 不影響結果）
	tables := make([]*table, mp)
	for i := range tables {
		if tables[i], err = s.newTable(cfg); err != nil {
			return nil, nil, 0, err
		}
	}
	jobs := make(chan playerJob, 2048)

	fail := new(firstErr)
	wg := new(sync.WaitGroup)
	wg.Add(mp)

	bar := pb.StartNew(players)
	if !showpb {
		bar.SetWriter(io.Discard)
	}
	for w := 0; w < mp; w++ {
		go func(t *table) {
			defer wg.Done()
			for j := range jobs {
				t.reseed(j.seed)
				if err := t.session(j.rec, initBalance, rounds); err != nil {
					fail.set(err)
				}
				bar.Increment()
			}
		}(tables[w])
	}

	for i, r := range s.rBuf {
		jobs <- playerJob{rec: r, seed: seeds[i]}
	}
	close(jobs)
	wg.Wait()
	used := time.Since(bar.StartTime())
	bar.Finish()
	if err := fail.get(); err != nil {
		return nil, nil, used, err
	}

	// 基準報表
	record, err := recorder.MergeRoundRecorder(s.rBuf)
	if err != nil {
		return nil, nil, used, err
	}
	st := record.Done()
	st.Done()

	// 玩家分析報表
	for i, r := range s.rBuf {
		s.sBuf[i] = r.Done()
		s.sBuf[i].Done()
	}
	est := stats.EstimatorPlayerExp(s.sBuf)
	return st, est, used, nil
}

func (s *Simulator) reset() {
	s.rBuf = s.rBuf[:0]
	s.sBuf = s.sBuf[:0]
}

// ============================================================
// ** 模擬桌 **
// ============================================================

type playerJob struct {
	rec  *recorder.RoundRecorder
	seed int64
}

// table 一個 worker 的下注環境：自己的亂數來源與承諾器，不跨 goroutine 共用。
type table struct {
	cfg  autobet.Config
	mult decimal.Decimal
	pf   core.PRNGFactory
	cm   *fairness.Committer
}

func (s *Simulator) newTable(cfg autobet.Config) (*table, error) {
	mult, err := odds.Multiplier(cfg.Target, cfg.Direction)
	if err != nil {
		return nil, err
	}
	t := &table{cfg: cfg, mult: mult, pf: s.pf}
	t.reseed(s.seedmaker.next())
	return t, nil
}

func (t *table) reseed(seed int64) {
	t.cm = fairness.NewCommitter(t.pf.New(seed))
}

func (t *table) clientSeed() (string, error) {
	if t.cfg.ClientSeed != "" {
		return t.cfg.ClientSeed, nil
	}
	return t.cm.ClientSeed()
}

// roll 每局都承諾一個新的 server seed，與正式流程相同。
func (t *table) roll(clientSeed string, bet decimal.Decimal) (fairness.Outcome, decimal.Decimal, error) {
	c, err := t.cm.Commit()
	if err != nil {
		return fairness.Outcome{}, decimal.Zero, err
	}
	out, err := fairness.Derive(clientSeed, c.ServerSeed, t.cfg.Target, t.cfg.Direction)
	if err != nil {
		return fairness.Outcome{}, decimal.Zero, err
	}
	return out, odds.Payout(bet, t.mult, out.Won), nil
}

// endless 無限資金下連續跑 rounds 局，只依策略調整注額。
func (t *table) endless(r *recorder.RoundRecorder, rounds int, bar *pb.ProgressBar) error {
	seed, err := t.clientSeed()
	if err != nil {
		return err
	}
	bet := t.cfg.BaseBet
	st := strategy.Initial()
	for range rounds {
		out, payout, err := t.roll(seed, bet)
		if err != nil {
			return err
		}
		r.Record(bet, out, payout)
		bet, st = strategy.Next(t.cfg.Config, bet, out.Won, st)
		bar.Increment()
	}
	return nil
}

// session 一位玩家的完整歷程：停止條件交給 autobet.Tracker 判斷，與線上自動下注一致。
func (t *table) session(r *recorder.RoundRecorder, initBalance decimal.Decimal, rounds int) error {
	seed, err := t.clientSeed()
	if err != nil {
		return err
	}
	tr := autobet.NewTracker(t.cfg)
	if err := tr.Start(initBalance, time.Time{}); err != nil {
		return err
	}
	for range rounds {
		bet := tr.CurrentBet()
		out, payout, err := t.roll(seed, bet)
		if err != nil {
			return err
		}
		bal, leave := r.RecordWithPlayer(bet, out, payout)
		if leave {
			r.Finish(leaveCashout, false, true)
			return nil
		}
		if reason, stop := tr.Observe(out.Won, bal); stop {
			r.Finish(string(reason), reason == autobet.ReasonBalance, reason == autobet.ReasonProfit)
			return nil
		}
	}
	r.Finish(leaveRounds, false, false)
	return nil
}

// firstErr 保存 worker 回報的第一個錯誤。
type firstErr struct {
	once sync.Once
	err  error
}

func (f *firstErr) set(err error) { f.once.Do(func() { f.err = err }) }

func (f *firstErr) get() error { return f.err }

// ============================================================
// ** 種子派生 **
// ============================================================

const mask63 = uint64(1<<63) - 1

type seedMaker struct {
	state atomic.Uint64 // always in [0, 2^63)
}

func newSeedMaker(seed int64) *seedMaker {
	s := &seedMaker{}
	s.state.Store(uint64(seed) & mask63)
	return s
}

// next 以全週期 LCG 推進 state，再用可逆 mix63 打散。
//
// 可能被多個 goroutine 同時呼叫，state 以 CAS 迴圈推進，每次呼叫都拿到唯一的下一個值。
func (s *seedMaker) next() int64 {
	for {
		old := s.state.Load()
		next := (old*6364136223846793005 + 1442695040888963407) & mask63 // full-period LCG mod 2^63
		if s.state.CompareAndSwap(old, next) {
			return int64(mix63(next))
		}
	}
}

// mix63：只用「可逆」的 bit 操作 + 乘奇數（mod 2^63）
func mix63(x uint64) uint64 {
	x &= mask63
	x ^= x >> 30
	x = (x * 0xBF58476D1CE4E5B9) & mask63
	x ^= x >> 27
	x = (x * 0x94D049BB133111EB) & mask63
	x ^= x >> 31
	return x & mask63
}
