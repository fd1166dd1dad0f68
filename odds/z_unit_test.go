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


package odds_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/dicelab/errs"
	"github.com/zintix-labs/dicelab/fairness"
	"github.com/zintix-labs/dicelab/odds"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestQuoteKnownValues(t *testing.T) {
	cases := []struct {
		target string
		dir    fairness.Direction
		chance string
		mult   string
	}{
		{"50", fairness.Under, "50", "1.98"},
		{"50", fairness.Over, "50", "1.98"},
		{"1", fairness.Under, "1", "99"},
		{"98", fairness.Over, "2", "49.5"},
		{"33", fairness.Under, "33", "3"},
		{"70", fairness.Under, "70", "1.41428571"},
		{"2.5", fairness.Over, "97.5", "1.01538462"},
	}
	for _, c := range cases {
		q, err := odds.QuoteOf(dec(c.target), c.dir)
		if err != nil {
			t.Fatalf("QuoteOf(%s,%s) error = %v", c.target, c.dir, err)
		}
		if !q.WinChance.Equal(dec(c.chance)) {
			t.Fatalf("WinChance(%s,%s) = %s, want %s", c.target, c.dir, q.WinChance, c.chance)
		}
		if !q.Multiplier.Equal(dec(c.mult)) {
			t.Fatalf("Multiplier(%s,%s) = %s, want %s", c.target, c.dir, q.Multiplier, c.mult)
		}
	}
}

func TestMultiplierStrictlyDecreasingInWinChance(t *testing.T) {
	prev := decimal.Zero
	for i := 1; i <= 98; i++ {
		m, err := odds.Multiplier(decimal.NewFromInt(int64(i)), fairness.Under)
		if err != nil {
			t.Fatalf("Multiplier error = %v", err)
		}
		if !m.IsPositive() {
			t.Fatalf("multiplier at %d must be positive, got %s", i, m)
		}
		if i > 1 && !m.LessThan(prev) {
			t.Fatalf("multiplier not decreasing at %d: %s >= %s", i, m, prev)
		}
		prev = m
	}
}

func TestQuoteRejectsOutOfRange(t *testing.T) {
	for _, s := range []string{"0", "0.5", "98.01", "99", "-3"} {
		if _, err := odds.QuoteOf(dec(s), fairness.Over); !errors.Is(err, errs.ErrInvalidInput) {
			t.Fatalf("QuoteOf(%s) error = %v, want invalid input", s, err)
		}
	}
	if _, err := odds.QuoteOf(dec("50"), fairness.Direction(9)); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("invalid direction must be rejected, got %v", err)
	}
}

func TestPayout(t *testing.T) {
	if got := odds.Payout(dec("10"), dec("1.98"), true); !got.Equal(dec("19.8")) {
		t.Fatalf("Payout win = %s", got)
	}
	if got := odds.Payout(dec("10"), dec("1.98"), false); !got.IsZero() {
		t.Fatalf("Payout loss = %s", got)
	}
	if got := odds.Payout(dec("0.00000003"), dec("1.41428571"), true); !got.Equal(dec("0.00000004")) {
		t.Fatalf("Payout rounding = %s", got)
	}
	if got := odds.ProfitOnWin(dec("10"), dec("1.98")); !got.Equal(dec("9.8")) {
		t.Fatalf("ProfitOnWin = %s", got)
	}
}
