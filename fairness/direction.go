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


package fairness

import (
	"strings"

	"github.com/zintix-labs/dicelab/errs"
)

// Direction 下注方向：Over 表示 roll > target 才贏，Under 表示 roll < target 才贏。
type Direction uint8

const (
	Over Direction = iota + 1
	Under
)

var directionName = map[Direction]string{
	Over:  "over",
	Under: "under",
}

func (d Direction) String() string {
	if s, ok := directionName[d]; ok {
		return s
	}
	return "unknown"
}

func (d Direction) Valid() bool {
	return d == Over || d == Under
}

// ParseDirection 接受 "over"/"under"（不分大小寫）。
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "over":
		return Over, nil
	case "under":
		return Under, nil
	default:
		return 0, errs.Invalidf("direction must be over or under, got %q", s)
	}
}

// DirectionOf 將舊版介面的 isOver 布林轉成 Direction。
func DirectionOf(isOver bool) Direction {
	if isOver {
		return Over
	}
	return Under
}

func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, errs.Invalidf("invalid direction %d", uint8(d))
	}
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
