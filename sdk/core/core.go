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

package core

import (
	"crypto/rand"
	"io"
	"math"
	"math/big"

	"github.com/zintix-labs/dicelab/errs"
)

// PRNG 模擬用亂數來源：可取樣、可當作 io.Reader 餵給 fairness.Committer，並可快照還原。
//
// 它只用於離線模擬與開發預覽；正式下注的 server seed 一律來自 crypto/rand。
type PRNG interface {
	io.Reader
	Uint64() uint64
	IntN(int) int
	Restorable
}

// Restorable 定義可快照與還原的狀態介面。
type Restorable interface {
	// Snapshot 回傳可用於還原的序列化狀態。
	Snapshot() ([]byte, error)
	// Restore 依序列化狀態還原 PRNG 內部狀態。
	Restore([]byte) error
}

// PRNGFactory 以 seed 建立 PRNG。
//
// 合約：相同實作、相同 seed 必須得到相同輸出序列，模擬結果才能重現。
type PRNGFactory interface {
	New(int64) PRNG
}

// DefaultPRNG 預設工廠，產生 PCG64。
type DefaultPRNG struct{}

func (d *DefaultPRNG) New(seed int64) PRNG {
	return NewPCG64WithSeed(seed)
}

func Default() *DefaultPRNG {
	return &DefaultPRNG{}
}

// RandomSeed 由 crypto/rand 取一個非負 int64 作為模擬起始種子。
func RandomSeed() (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return 0, errs.Entropy(err)
	}
	return n.Int64(), nil
}
