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


// Package fairness 實作 provably-fair 的承諾 / 揭露流程與結果推導。
//
// 結算與驗證共用同一個 Derive：任何一方只要拿到已揭露的 server seed 與該局 client seed，
// 就能重算出與結算當下位元完全相同的 roll / won。
package fairness

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/dicelab/errs"
)

const rollSpace = 10000

var (
	MinTarget = decimal.NewFromInt(1)
	MaxTarget = decimal.NewFromInt(98)
)

// Outcome 一局的推導結果。Roll 落在 [0.00, 99.99]，精度 0.01。
type Outcome struct {
	Roll decimal.Decimal `json:"roll"`
	Won  bool            `json:"won"`
}

// Entropy 對 clientSeed||serverSeed 做 SHA-256，取摘要前 4 bytes 視為 big-endian uint32。
func Entropy(clientSeed, serverSeed string) uint32 {
	h := sha256.New()
	h.Write([]byte(clientSeed))
	h.Write([]byte(serverSeed))
	var sum [sha256.Size]byte
	h.Sum(sum[:0])
	return binary.BigEndian.Uint32(sum[:4])
}

// RollOf 回傳 (entropy mod 10000) / 100，以精確十進位表示。
func RollOf(clientSeed, serverSeed string) decimal.Decimal {
	e := Entropy(clientSeed, serverSeed)
	return decimal.New(int64(e%rollSpace), -2)
}

// ValidateTarget target 必須在 [1,98] 且最多兩位小數。
func ValidateTarget(target decimal.Decimal) error {
	if target.LessThan(MinTarget) || target.GreaterThan(MaxTarget) {
		return errs.Invalidf("target must be between %s and %s, got %s", MinTarget, MaxTarget, target)
	}
	if !target.Equal(target.Round(2)) {
		return errs.Invalidf("target supports at most 2 decimal places, got %s", target)
	}
	return nil
}

// Derive 由 (clientSeed, serverSeed, target, direction) 推導該局結果。
//
// 勝負規則只用嚴格不等式：Over 需 roll > target，Under 需 roll < target；
// roll == target 兩個方向都算輸。
func Derive(clientSeed, serverSeed string, target decimal.Decimal, dir Direction) (Outcome, error) {
	if clientSeed == "" {
		return Outcome{}, errs.Invalidf("client seed is required")
	}
	if serverSeed == "" {
		return Outcome{}, errs.Invalidf("server seed is required")
	}
	if !dir.Valid() {
		return Outcome{}, errs.Invalidf("invalid direction")
	}
	if err := ValidateTarget(target); err != nil {
		return Outcome{}, err
	}
	roll := RollOf(clientSeed, serverSeed)
	won := false
	switch dir {
	case Over:
		won = roll.GreaterThan(target)
	case Under:
		won = roll.LessThan(target)
	}
	return Outcome{Roll: roll, Won: won}, nil
}

// Verify 供第三方重算已結算的局；與 Derive 是同一條路徑。
func Verify(clientSeed, serverSeed string, target decimal.Decimal, dir Direction) (Outcome, error) {
	return Derive(clientSeed, serverSeed, target, dir)
}

// CheckCommitment 確認揭露的 server seed 與先前公開的承諾相符。
func CheckCommitment(serverSeed, serverSeedHash string) error {
	if HashSeed(serverSeed) != serverSeedHash {
		return errs.Mismatchf("server seed does not match commitment %s", serverSeedHash)
	}
	return nil
}
