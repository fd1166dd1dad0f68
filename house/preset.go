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


package house

import (
	"github.com/shopspring/decimal"
	"github.com/zintix-labs/dicelab/configs"
	"github.com/zintix-labs/dicelab/errs"
	"github.com/zintix-labs/dicelab/fairness"
	"github.com/zintix-labs/dicelab/strategy"
)

// Preset 一組具名的自動下注設定。
type Preset struct {
	Name            string `yaml:"name" json:"name"`
	Description     string `yaml:"description" json:"description"`
	strategy.Config `yaml:",inline"`

	Target       decimal.Decimal    `yaml:"target" json:"target"`
	Direction    fairness.Direction `yaml:"direction" json:"direction"`
	StopOnProfit *decimal.Decimal   `yaml:"stop_on_profit,omitempty" json:"stop_on_profit,omitempty"`
	StopOnLoss   *decimal.Decimal   `yaml:"stop_on_loss,omitempty" json:"stop_on_loss,omitempty"`
	NumberOfBets int                `yaml:"number_of_bets,omitempty" json:"number_of_bets,omitempty"`
	DelayMs      int                `yaml:"delay_ms" json:"delay_ms"`
}

type presetFile struct {
	Presets []Preset `yaml:"presets" json:"presets"`
}

// Presets 依名稱查詢，保留檔案中的順序。
type Presets struct {
	list   []Preset
	byName map[string]int
}

func (p *Presets) All() []Preset {
	out := make([]Preset, len(p.list))
	copy(out, p.list)
	return out
}

func (p *Presets) Get(name string) (Preset, error) {
	i, ok := p.byName[name]
	if !ok {
		return Preset{}, errs.NotFoundf("preset %q not found", name)
	}
	return p.list[i], nil
}

func (p *Presets) Len() int { return len(p.list) }

func (p *Preset) validate(s *Setting) error {
	if p.Name == "" {
		return errs.Invalidf("preset name is required")
	}
	p.Config = s.StrategyDefaults(p.Config).Normalize()
	if err := p.Config.Validate(); err != nil {
		return errs.Wrap(err, "preset "+p.Name)
	}
	if err := fairness.ValidateTarget(p.Target); err != nil {
		return errs.Wrap(err, "preset "+p.Name)
	}
	if !p.Direction.Valid() {
		return errs.Invalidf("preset %s: direction is required", p.Name)
	}
	if p.DelayMs == 0 {
		p.DelayMs = s.AutoBet.DefaultDelayMs
	}
	if err := s.CheckDelay(p.DelayMs); err != nil {
		return errs.Wrap(err, "preset "+p.Name)
	}
	if p.NumberOfBets < 0 {
		return errs.Invalidf("preset %s: number_of_bets must not be negative", p.Name)
	}
	return nil
}

func newPresets(f presetFile, s *Setting) (*Presets, error) {
	ps := &Presets{byName: make(map[string]int, len(f.Presets))}
	for _, p := range f.Presets {
		if err := p.validate(s); err != nil {
			return nil, err
		}
		if _, dup := ps.byName[p.Name]; dup {
			return nil, errs.Invalidf("duplicate preset %q", p.Name)
		}
		ps.byName[p.Name] = len(ps.list)
		ps.list = append(ps.list, p)
	}
	return ps, nil
}

// DefaultPresets 讀取內嵌的 presets.yaml。
func DefaultPresets(s *Setting) (*Presets, error) {
	b, err := configs.FS.ReadFile(configs.PresetsFile)
	if err != nil {
		return nil, errs.Wrap(err, "read embedded presets")
	}
	return PresetsByYAML(b, s)
}
