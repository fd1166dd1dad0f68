package main

import (
	"flag"
	"log"
	"os"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/dicelab"
	"github.com/zintix-labs/dicelab/autobet"
	"github.com/zintix-labs/dicelab/dto"
	"github.com/zintix-labs/dicelab/house"
	"github.com/zintix-labs/dicelab/stats"
	"github.com/zintix-labs/dicelab/strategy"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var cfg *config = new(config)

type config struct {
	preset    string
	strategy  string
	bet       string
	target    string
	dir       string
	worker    int
	player    int
	balance   string
	rounds    int
	seed      int64
	format    string
	houseFile string
	presets   string
	pprofmode string
}

func bindVar() {
	flag.StringVar(&cfg.preset, "preset", "classic-martingale", "auto-bet preset name ('' = none)")
	flag.StringVar(&cfg.strategy, "strategy", "", "override strategy: martingale|reverseMartingale|dAlembert|fibonacci|oscarsGrind|custom")
	flag.StringVar(&cfg.bet, "bet", "", "override base bet")
	flag.StringVar(&cfg.target, "target", "", "override target (2.00-98.00)")
	flag.StringVar(&cfg.dir, "dir", "", "override direction: over|under")
	flag.IntVar(&cfg.worker, "worker", 1, "number of workers")
	flag.IntVar(&cfg.player, "player", 1, "number of players (1 = endless bankroll)")
	flag.StringVar(&cfg.balance, "balance", "1000", "initial balance per player")
	flag.IntVar(&cfg.rounds, "rounds", 1000000, "rounds per worker (player=1) or per player")
	flag.Int64Var(&cfg.seed, "seed", -1, "int64 seed for random number generator (<0 = random)")
	flag.StringVar(&cfg.format, "format", "table", "report format: table|json|yaml")
	flag.StringVar(&cfg.houseFile, "house", "", "house setting file")
	flag.StringVar(&cfg.presets, "presets", "", "presets file")
	flag.StringVar(&cfg.pprofmode, "p", "", "pprof: '', cpu, heap, allocs")

	flag.Parse()
}

// 這裡解析並分支要執行的模擬器
func executeSimulator() {
	cfg.valid()

	h, presets := cfg.loadHouse()
	bc, err := cfg.autoBet(presets)
	if err != nil {
		log.Fatal(err)
	}
	format, err := stats.ParseFormat(cfg.format)
	if err != nil {
		log.Fatal(err)
	}
	var s *dicelab.Simulator
	if cfg.seed < 0 {
		if s, err = dicelab.NewSimulator(h); err != nil {
			log.Fatal(err)
		}
	} else {
		s = dicelab.NewSimulatorWithSeed(h, cfg.seed)
	}

	// 至此確保可執行；json / yaml 輸出時不印標頭與進度條
	showpb := format == stats.FormatTable
	green := "\033[1;32m"
	reset := "\033[0m"
	p := message.NewPrinter(language.English)
	if showpb {
		p.Printf("%s[SEED:%d] [STRATEGY:%s] [BET:%s] [TARGET:%s %s]%s\n",
			green, s.Seed(), bc.Kind, bc.BaseBet, bc.Direction, bc.Target, reset)
	}
	rr, er := format.Renders()

	if cfg.player == 1 {
		if showpb {
			p.Printf("%s[WORKERS:%d] [ROUNDS:%d]%s\n", green, cfg.worker, cfg.worker*cfg.rounds, reset)
		}
		st, used, err := s.SimMP(bc, cfg.rounds, cfg.worker, showpb)
		if err != nil {
			log.Fatal(err)
		}
		if rr == nil {
			st.StdOut(used)
			return
		}
		if err := st.WriteWith(os.Stdout, rr); err != nil {
			log.Fatal(err)
		}
		return
	}

	balance := decimal.RequireFromString(cfg.balance)
	if showpb {
		p.Printf("%s[WORKERS:%d] [PLAYERS:%d BALANCE:%s ROUNDS:%d]%s\n", green, cfg.worker, cfg.player, balance, cfg.rounds, reset)
	}
	st, est, used, err := s.SimPlayers(bc, cfg.worker, cfg.player, balance, cfg.rounds, showpb)
	if err != nil {
		log.Fatal(err)
	}
	if rr == nil {
		st.StdOut(used)
		est.Out()
		return
	}
	if err := st.WriteWith(os.Stdout, rr); err != nil {
		log.Fatal(err)
	}
	if err := er.Write(os.Stdout, est); err != nil {
		log.Fatal(err)
	}
}

func (cfg *config) loadHouse() (*house.Setting, *house.Presets) {
	h := house.MustDefault()
	if cfg.houseFile != "" {
		s, err := house.LoadSetting(cfg.houseFile)
		if err != nil {
			log.Fatal(err)
		}
		h = s
	}
	var (
		presets *house.Presets
		err     error
	)
	if cfg.presets != "" {
		presets, err = house.LoadPresets(cfg.presets, h)
	} else {
		presets, err = house.DefaultPresets(h)
	}
	if err != nil {
		log.Fatal(err)
	}
	return h, presets
}

// autoBet 以 preset 為底，再套用有給的覆寫旗標；與 POST /v1/sim 走同一條合併規則。
func (cfg *config) autoBet(presets *house.Presets) (autobet.Config, error) {
	req := dto.AutoBetRequest{Preset: cfg.preset, Direction: cfg.dir}
	if cfg.strategy != "" {
		k, err := strategy.ParseKind(cfg.strategy)
		if err != nil {
			return autobet.Config{}, err
		}
		req.Strategy = &k
	}
	var err error
	if req.BaseBet, err = optDecimal(cfg.bet); err != nil {
		return autobet.Config{}, err
	}
	if req.Target, err = optDecimal(cfg.target); err != nil {
		return autobet.Config{}, err
	}
	return req.Config(presets)
}

func optDecimal(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (cfg *config) valid() {
	p := message.NewPrinter(language.English)

	// 工作協程檢查(併發數)
	if cfg.worker < 1 {
		log.Fatal("value err : workers must > 0")
	}
	if cfg.worker > dto.MaxSimWorkers*4 {
		p.Printf("too many workers: %d resized to %d\n", cfg.worker, dto.MaxSimWorkers*4)
		cfg.worker = dto.MaxSimWorkers * 4
	}

	if cfg.player < 1 {
		log.Fatal("value err : player must > 0")
	}
	if cfg.player > 100000 {
		p.Printf("too much players: %d resized to 100k players\n", cfg.player)
		cfg.player = 100000
	}

	if cfg.player > 1 {
		b, err := decimal.NewFromString(cfg.balance)
		if err != nil || !b.IsPositive() {
			log.Fatal("value err : balance must be a positive number")
		}
	}

	if cfg.rounds < 1 {
		log.Fatal("value err : rounds must > 0")
	}
	// 玩家模擬時每人最多 15000 局，更長的體驗直接跑 player=1 即可
	if cfg.player > 1 && cfg.rounds > 15000 {
		p.Printf("too much rounds for each players : %d resized to 15k rounds for each player\n", cfg.rounds)
		cfg.rounds = 15000
	}
}
