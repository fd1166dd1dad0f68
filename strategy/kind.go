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


package strategy

import (
	"strings"

	"github.com/zintix-labs/dicelab/errs"
)

// Kind 下注策略種類。
type Kind uint8

const (
	KindUnknown Kind = iota
	Martingale
	ReverseMartingale
	DAlembert
	Fibonacci
	OscarsGrind
	Custom
)

var kindNames = map[Kind]string{
	Martingale:        "martingale",
	ReverseMartingale: "reverseMartingale",
	DAlembert:         "dAlembert",
	Fibonacci:         "fibonacci",
	OscarsGrind:       "oscarsGrind",
	Custom:            "custom",
}

// Kinds 依宣告順序列出所有策略。
func Kinds() []Kind {
	return []Kind{Martingale, ReverseMartingale, DAlembert, Fibonacci, OscarsGrind, Custom}
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind 名稱比對不分大小寫，"d_alembert" / "oscars_grind" 這類底線寫法也接受。
func ParseKind(s string) (Kind, error) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
	for k, name := range kindNames {
		if strings.ToLower(name) == norm {
			return k, nil
		}
	}
	return KindUnknown, errs.Invalidf("unknown strategy %q", s)
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, errs.Invalidf("unknown strategy %d", uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}
