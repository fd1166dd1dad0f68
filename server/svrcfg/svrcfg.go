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

package svrcfg

import (
	"log/slog"

	"github.com/zintix-labs/dicelab"
	"github.com/zintix-labs/dicelab/autobet"
	"github.com/zintix-labs/dicelab/errs"
	"github.com/zintix-labs/dicelab/server/logger"
)

const (
	DefaultAddr       = ":5808"
	DefaultSimWorkers = 4
)

type SvrCfg struct {
	Log     *slog.Logger
	Addr    string
	Dev     bool // 開啟 /dev 工具路由
	Engine  *dicelab.Engine
	AutoBet *autobet.Manager
	// SimWorkers 單一 /v1/sim 請求可用的 worker 上限
	SimWorkers int
}

func (sc *SvrCfg) Vaild() error {
	if sc.Log != nil {
		if ah, ok := sc.Log.Handler().(*logger.AsyncHandler); ok && !ah.Ready() {
			return errs.NewFatal("nil default log handler: async handler is nil")
		}
	} else {
		sc.Log, _ = logger.NewAsync(1024, logger.ModeDev)
	}
	if sc.Addr == "" {
		sc.Addr = DefaultAddr
	}
	if sc.SimWorkers <= 0 {
		sc.SimWorkers = DefaultSimWorkers
	}
	sc.SimWorkers = min(sc.SimWorkers, 16)
	if sc.Engine == nil {
		return errs.NewFatal("engine is required")
	}
	if sc.AutoBet == nil {
		sc.AutoBet = autobet.NewManager(sc.Engine.AutoBetVenue(), sc.Engine.House(), sc.Log)
	}
	return nil
}
