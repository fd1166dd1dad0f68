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


package autobet

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zintix-labs/dicelab/errs"
	"github.com/zintix-labs/dicelab/house"
	"github.com/zintix-labs/dicelab/ledger"
)

type EventType string

const (
	EventSnapshot EventType = "snapshot" // 訂閱當下的狀態
	EventStarted  EventType = "started"
	EventRound    EventType = "round"
	EventStopped  EventType = "stopped"
)

// Event 推送給訂閱者（websocket）的事件。
type Event struct {
	Type   EventType     `json:"type"`
	UserID string        `json:"user_id"`
	State  RunState      `json:"state"`
	Round  *ledger.Round `json:"round,omitempty"`
	At     time.Time     `json:"at"`
}

// subBuffer 訂閱者 channel 容量；滿了就丟棄事件，不阻塞排程器。
const subBuffer = 64

type Manager struct {
	venue Venue
	house *house.Setting
	log   *slog.Logger
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	mu      sync.Mutex
	runs    map[string]*run
	subs    map[string]map[int]chan Event
	nextSub int
	closed  bool
	wg      sync.WaitGroup
}

type ManagerOption func(*Manager)

// WithSleep 替換局與局之間的等待（測試用）；fn 必須在 ctx 取消時返回錯誤。
func WithSleep(fn func(ctx context.Context, d time.Duration) error) ManagerOption {
	return func(m *Manager) { m.sleep = fn }
}

func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

func NewManager(v Venue, s *house.Setting, log *slog.Logger, opts ...ManagerOption) *Manager {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	m := &Manager{
		venue: v,
		house: s,
		log:   log,
		sleep: sleepCtx,
		now:   time.Now,
		runs:  make(map[string]*run),
		subs:  make(map[string]map[int]chan Event),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start 檢查設定、取得使用者的下注權並啟動 run。
//
// ctx 只用於啟動期間（查餘額）；run 的生命週期與請求無關，由 Stop 或 Close 結束。
func (m *Manager) Start(ctx context.Context, userID string, cfg Config) (RunState, error) {
	cfg, err := cfg.Prepare(m.house)
	if err != nil {
		return RunState{}, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return RunState{}, errs.Closedf("autobet manager closed")
	}
	if r, ok := m.runs[userID]; ok && r.active() {
		m.mu.Unlock()
		return RunState{}, errs.Busyf("autobet already running for user %s", userID)
	}
	session, err := m.venue.Reserve(userID)
	m.mu.Unlock()
	if err != nil {
		return RunState{}, err
	}

	// 查餘額會排進帳本 shard，不持有 m.mu；下注權已在手，期間不會有其他下注
	bal, err := m.venue.Balance(ctx, userID)
	if err != nil {
		session.Release()
		return RunState{}, err
	}
	tr := NewTracker(cfg)
	if err := tr.Start(bal, m.now()); err != nil {
		session.Release()
		return RunState{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		session.Release()
		return RunState{}, errs.Closedf("autobet manager closed")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r := &run{
		userID:  userID,
		tracker: tr,
		session: session,
		venue:   m.venue,
		cancel:  cancel,
		done:    make(chan struct{}),
		sleep:   m.sleep,
		emit:    m.publish,
		log:     m.log,
		now:     m.now,
	}
	m.runs[userID] = r
	st := tr.State()
	m.log.Info("autobet started", "user", userID, "strategy", cfg.Kind.String(),
		"base_bet", cfg.BaseBet.String(), "max_bet", cfg.MaxBet.String(), "delay_ms", cfg.DelayMs)
	m.publishLocked(Event{Type: EventStarted, UserID: userID, State: st, At: m.now()})

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		r.loop(runCtx)
	}()
	return st, nil
}

// Stop 要求停止並等待 run 結束（進行中的那一局會先結算）。
func (m *Manager) Stop(ctx context.Context, userID string) (RunState, error) {
	m.mu.Lock()
	r, ok := m.runs[userID]
	m.mu.Unlock()
	if !ok {
		return RunState{}, errs.NotFoundf("no autobet run for user %s", userID)
	}
	r.cancel()
	select {
	case <-r.done:
	case <-ctx.Done():
		return r.tracker.State(), errs.Wrap(ctx.Err(), "wait autobet stop")
	}
	return r.tracker.State(), nil
}

// Status 回傳最近一次 run 的狀態；從未啟動過時回 Idle。
func (m *Manager) Status(userID string) RunState {
	m.mu.Lock()
	r, ok := m.runs[userID]
	m.mu.Unlock()
	if !ok {
		return RunState{Status: Idle}
	}
	return r.tracker.State()
}

// Active 使用者是否有執行中的 run。
func (m *Manager) Active(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[userID]
	return ok && r.active()
}

// Wait 等待使用者目前的 run 結束；沒有 run 時立即返回。
func (m *Manager) Wait(ctx context.Context, userID string) error {
	m.mu.Lock()
	r, ok := m.runs[userID]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe 訂閱使用者的事件；回傳的 cancel 必須呼叫以釋放資源。
func (m *Manager) Subscribe(userID string) (<-chan Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan Event, subBuffer)
	id := m.nextSub
	m.nextSub++
	if m.subs[userID] == nil {
		m.subs[userID] = make(map[int]chan Event)
	}
	m.subs[userID][id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if s, ok := m.subs[userID]; ok {
				if c, ok := s[id]; ok {
					delete(s, id)
					close(c)
				}
				if len(s) == 0 {
					delete(m.subs, userID)
				}
			}
		})
	}
}

func (m *Manager) publish(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishLocked(ev)
}

func (m *Manager) publishLocked(ev Event) {
	for _, ch := range m.subs[ev.UserID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close 取消所有 run 並等待結束；之後 Start 回 ErrClosed。
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	for _, r := range m.runs {
		r.cancel()
	}
	m.mu.Unlock()
	m.wg.Wait()

	m.mu.Lock()
	for uid, s := range m.subs {
		for id, c := range s {
			close(c)
			delete(s, id)
		}
		delete(m.subs, uid)
	}
	m.mu.Unlock()
}
