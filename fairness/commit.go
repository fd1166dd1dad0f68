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
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/zintix-labs/dicelab/corefmt"
)

const (
	// SeedBytes server seed 的原始位元組長度（hex 後為 64 字元）。
	SeedBytes = 32
	// ClientSeedBytes 自動產生 client seed 時使用的位元組長度。
	ClientSeedBytes = 16
)

// Commitment 一局的秘密材料與其公開承諾。
//
// ServerSeedHash 在 ServerSeed 被揭露之前就已計算並可公開；
// ServerSeed 只能在該局結算之後揭露，且一個 Commitment 只綁定一局。
type Commitment struct {
	ServerSeed     string `json:"server_seed"`
	ServerSeedHash string `json:"server_seed_hash"`
}

// Committer 從 CSPRNG 產生 Commitment。
//
// rand 讀取失敗一律回 ErrEntropyUnavailable；不存在任何退回弱亂數的路徑。
type Committer struct {
	rand io.Reader
}

// NewCommitter 建立 Committer；r 為 nil 時使用 crypto/rand.Reader。
func NewCommitter(r io.Reader) *Committer {
	if r == nil {
		r = rand.Reader
	}
	return &Committer{rand: r}
}

// Commit 產生 32 bytes 的 server seed（hex）與其 SHA-256 承諾。
func (c *Committer) Commit() (Commitment, error) {
	seed, err := corefmt.RandomHex(c.rand, SeedBytes)
	if err != nil {
		return Commitment{}, err
	}
	return Commitment{ServerSeed: seed, ServerSeedHash: HashSeed(seed)}, nil
}

// ClientSeed 產生一個新的 client seed（16 bytes hex），供自動下注每局輪替使用。
func (c *Committer) ClientSeed() (string, error) {
	return corefmt.RandomHex(c.rand, ClientSeedBytes)
}

// HashSeed 回傳 seed 字串（非解碼後位元組）的 SHA-256 hex。
func HashSeed(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return corefmt.EncodeHex(sum[:])
}
