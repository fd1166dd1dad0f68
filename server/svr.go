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

package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/zintix-labs/dicelab/errs"
	"github.com/zintix-labs/dicelab/server/api"
	"github.com/zintix-labs/dicelab/server/app"
	"github.com/zintix-labs/dicelab/server/netsvr"
	"github.com/zintix-labs/dicelab/server/svrcfg"
)

// Run 是 server 套件的組裝器與啟動入口：
//  1. 驗證 SvrCfg（engine、logger、autobet manager）
//  2. 建立 HTTP server 並註冊路由
//  3. 交給 app.App 管理生命週期；關機順序為 HTTP → 自動下注 → engine
//
// Run 不讀檔案也不讀環境變數，所有依賴都由 SvrCfg 注入（見 cmd/svr）。
func Run(sCfg *svrcfg.SvrCfg) error {
	return RunWithSvr(sCfg, nil)
}

// RunWithSvr 同 Run，但可注入自訂的 NetSvr；svr 為 nil 時用 ChiAdapter 監聽 sCfg.Addr。
func RunWithSvr(sCfg *svrcfg.SvrCfg, svr netsvr.NetSvr) error {
	return RunContext(context.Background(), sCfg, svr)
}

// RunContext ctx 結束或收到 SIGINT/SIGTERM 時優雅關閉。
func RunContext(ctx context.Context, sCfg *svrcfg.SvrCfg, svr netsvr.NetSvr) error {
	svr, err := Build(sCfg, svr)
	if err != nil {
		// logger 可能就是出問題的依賴
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	a := app.NewWith(sCfg.Log, append([]app.Component{svr}, Closers(sCfg)...)...)
	if c, ok := svr.(*netsvr.ChiAdapter); ok {
		sCfg.Log.Info("[dicelab] listening on http://localhost"+c.Address(), slog.Bool("dev", sCfg.Dev))
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := a.RunContext(ctx); err != nil {
		sCfg.Log.Error("app stopped", slog.Any("err", err))
		return err
	}
	return nil
}

// Build 驗證設定並把路由註冊到 svr（nil 時新建 ChiAdapter）。
func Build(sCfg *svrcfg.SvrCfg, svr netsvr.NetSvr) (netsvr.NetSvr, error) {
	if sCfg == nil {
		return nil, errs.NewFatal("server config is required")
	}
	if err := sCfg.Vaild(); err != nil {
		return nil, err
	}
	if svr == nil {
		svr = netsvr.NewChiServer(sCfg.Addr)
	}
	if s, ok := svr.(*netsvr.ChiAdapter); ok && !s.Ready() {
		return nil, errs.NewFatal("default server is not ready")
	}
	if err := api.RegisterRoutes(svr, sCfg); err != nil {
		return nil, errs.Wrap(err, "register routes")
	}
	return svr, nil
}

// Closers 自動下注排程器與 engine 的收尾元件，依此順序關閉。
func Closers(sCfg *svrcfg.SvrCfg) []app.Component {
	return []app.Component{
		app.NewCloser(func(context.Context) error {
			sCfg.AutoBet.Close()
			return nil
		}),
		app.NewCloser(func(context.Context) error {
			sCfg.Engine.Close("server shutdown")
			return nil
		}),
	}
}
