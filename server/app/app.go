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

// Package app 提供應用程式生命週期管理（App），負責統一啟動與關閉多個 Component。
package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const DefaultShutdownTimeout = 5 * time.Second

// App 啟動所有註冊的 Component，並在收到 OS 信號、ctx 結束或任一 Component 返回時依註冊順序關閉。
type App struct {
	comps   []Component
	log     *slog.Logger
	timeout time.Duration
}

func New(log *slog.Logger) *App {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &App{log: log, timeout: DefaultShutdownTimeout}
}

// NewWith 建立並註冊多個 Component。
func NewWith(log *slog.Logger, comps ...Component) *App {
	app := New(log)
	for _, c := range comps {
		app.Register(c)
	}
	return app
}

func (a *App) Register(c Component) {
	a.comps = append(a.comps, c)
}

// Run 等同 RunContext(context.Background())，另外監聽 SIGINT/SIGTERM。
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext 並行執行所有 Component.Run，阻塞直到 ctx 結束（回 nil）或任一 Component 返回（回其錯誤）。
func (a *App) RunContext(ctx context.Context) error {
	errCh := make(chan error, len(a.comps))
	for _, c := range a.comps {
		go func(c Component) {
			errCh <- c.Run()
		}(c)
	}
	select {
	case <-ctx.Done():
		a.log.Info("app: shutting down", slog.String("cause", context.Cause(ctx).Error()))
		a.gracefulShutdown(a.timeout)
		return nil
	case err := <-errCh:
		a.gracefulShutdown(a.timeout)
		return err
	}
}

// gracefulShutdown 在 timeout 內依序呼叫所有 Component.Shutdown。
func (a *App) gracefulShutdown(td time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), td)
	defer cancel()
	for _, c := range a.comps {
		if err := c.Shutdown(ctx); err != nil {
			a.log.Error("app: shutdown error", slog.Any("err", err))
		}
	}
}
