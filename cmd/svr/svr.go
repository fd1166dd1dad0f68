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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/zintix-labs/dicelab"
	"github.com/zintix-labs/dicelab/house"
	"github.com/zintix-labs/dicelab/ledger"
	"github.com/zintix-labs/dicelab/server"
	"github.com/zintix-labs/dicelab/server/logger"
	"github.com/zintix-labs/dicelab/server/svrcfg"
	"github.com/zintix-labs/dicelab/store/memstore"
	"github.com/zintix-labs/dicelab/store/sqlstore"
)

// 服務入口。設定來源優先序：flag > 環境變數 > .env 檔 > 預設值。
func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "dicelab:", err)
		os.Exit(1)
	}
}

type config struct {
	Addr        string `env:"DICELAB_ADDR"         envDefault:":5808"`
	LogMode     string `env:"DICELAB_LOG_MODE"     envDefault:"prod"`
	LogBuf      int    `env:"DICELAB_LOG_BUF"      envDefault:"4096"`
	Dev         bool   `env:"DICELAB_DEV"`
	DBURL       string `env:"DICELAB_DB_URL"`
	HouseFile   string `env:"DICELAB_HOUSE_FILE"`
	PresetsFile string `env:"DICELAB_PRESETS_FILE"`
	Shards      int    `env:"DICELAB_SHARDS"       envDefault:"64"`
	SimWorkers  int    `env:"DICELAB_SIM_WORKERS"  envDefault:"4"`
}

// parseConfig envFile 為空字串時不讀 .env；檔案不存在不算錯誤。
func parseConfig(fs *flag.FlagSet, args []string, envFile string) (config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return config{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	fs.StringVar(&cfg.LogMode, "log-mode", cfg.LogMode, "log mode: dev|prod|silence")
	fs.IntVar(&cfg.LogBuf, "log-buf", cfg.LogBuf, "async log queue size")
	fs.BoolVar(&cfg.Dev, "dev", cfg.Dev, "enable /dev endpoints")
	fs.StringVar(&cfg.DBURL, "db", cfg.DBURL, "database url: sqlite:<path>|postgres://... (empty = in-memory)")
	fs.StringVar(&cfg.HouseFile, "house", cfg.HouseFile, "house setting file (.yaml|.json)")
	fs.StringVar(&cfg.PresetsFile, "presets", cfg.PresetsFile, "auto-bet presets file (.yaml|.json)")
	fs.IntVar(&cfg.Shards, "shards", cfg.Shards, "number of account lock shards")
	fs.IntVar(&cfg.SimWorkers, "sim-workers", cfg.SimWorkers, "max workers per /v1/sim request")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	if cfg.LogBuf < 1 {
		return config{}, fmt.Errorf("log-buf must be > 0, got %d", cfg.LogBuf)
	}
	return cfg, nil
}

func run(args []string) error {
	cfg, err := parseConfig(flag.NewFlagSet("dicelab", flag.ContinueOnError), args, ".env")
	if err != nil {
		return err
	}
	mode, err := logger.ParseMode(cfg.LogMode)
	if err != nil {
		return err
	}
	log, ah := logger.NewAsync(cfg.LogBuf, mode)
	defer ah.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	st, err := openStore(ctx, cfg.DBURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error("store close", slog.Any("err", err))
		}
	}()

	opts, err := houseOptions(cfg)
	if err != nil {
		return err
	}
	opts = append(opts, dicelab.WithLogger(log), dicelab.WithShards(cfg.Shards))
	eng, err := dicelab.New(st, opts...)
	if err != nil {
		return err
	}

	log.Info("dicelab starting",
		slog.String("addr", cfg.Addr),
		slog.String("log_mode", mode.String()),
		slog.Bool("dev", cfg.Dev),
		slog.String("store", storeName(cfg.DBURL)),
	)
	return server.Run(&svrcfg.SvrCfg{
		Log:        log,
		Addr:       cfg.Addr,
		Dev:        cfg.Dev,
		Engine:     eng,
		SimWorkers: cfg.SimWorkers,
	})
}

func openStore(ctx context.Context, url string) (ledger.Store, error) {
	if url == "" {
		return memstore.New(), nil
	}
	return sqlstore.OpenURL(ctx, url)
}

func storeName(url string) string {
	if url == "" {
		return "memory"
	}
	d, _, err := sqlstore.DialectOf(url)
	if err != nil {
		return "unknown"
	}
	return d.Name
}

func houseOptions(cfg config) ([]dicelab.Option, error) {
	var opts []dicelab.Option
	s, err := house.Default()
	if cfg.HouseFile != "" {
		s, err = house.LoadSetting(cfg.HouseFile)
	}
	if err != nil {
		return nil, err
	}
	opts = append(opts, dicelab.WithHouse(s))
	if cfg.PresetsFile != "" {
		p, err := house.LoadPresets(cfg.PresetsFile, s)
		if err != nil {
			return nil, err
		}
		opts = append(opts, dicelab.WithPresets(p))
	}
	return opts, nil
}
