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
	"sync"

	"github.com/zintix-labs/dicelab/errs"
)

// Book 保存每位使用者「已公開雜湊、尚未使用」的承諾。
//
// 流程：
//  1. Pending(user) 先鑄造承諾並回傳雜湊，玩家在下注前就拿到 serverSeedHash。
//  2. 下注時 Take(user) 取出並移除該承諾（一次性），結算後再由 Rotate 鑄造下一個。
//
// 每位使用者同時最多只有一個待用承諾。
type Book struct {
	mu      sync.Mutex
	c       *Committer
	pending map[string]Commitment
}

func NewBook(c *Committer) *Book {
	if c == nil {
		c = NewCommitter(nil)
	}
	return &Book{c: c, pending: make(map[string]Commitment)}
}

// Pending 回傳使用者待用承諾的雜湊；尚無承諾時先鑄造一個。
func (b *Book) Pending(userID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cm, ok := b.pending[userID]; ok {
		return cm.ServerSeedHash, nil
	}
	cm, err := b.c.Commit()
	if err != nil {
		return "", err
	}
	b.pending[userID] = cm
	return cm.ServerSeedHash, nil
}

// Take 取出並移除使用者的待用承諾。沒有待用承諾時回 ErrInvalidInput。
//
// expectHash 非空時必須等於待用承諾的雜湊，否則回 ErrInvalidInput 且承諾保持不動，
// 讓客戶端確認自己下注的對象正是先前看到的那個承諾。
func (b *Book) Take(userID, expectHash string) (Commitment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cm, ok := b.pending[userID]
	if !ok {
		return Commitment{}, errs.Invalidf("no pending commitment for user %s: request one first", userID)
	}
	if expectHash != "" && expectHash != cm.ServerSeedHash {
		return Commitment{}, errs.Invalidf("stale commitment %s: pending commitment is %s", expectHash, cm.ServerSeedHash)
	}
	delete(b.pending, userID)
	return cm, nil
}

// Restore 將未曾揭露、也未綁定任何一局的承諾放回；使用者已有待用承諾時不動作。
func (b *Book) Restore(userID string, cm Commitment) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.pending[userID]; !ok {
		b.pending[userID] = cm
	}
}

// Rotate 捨棄使用者既有的待用承諾（若有）並鑄造新的一個。
func (b *Book) Rotate(userID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, userID)
	cm, err := b.c.Commit()
	if err != nil {
		return "", err
	}
	b.pending[userID] = cm
	return cm.ServerSeedHash, nil
}

// Len 目前待用承諾數量。
func (b *Book) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Committer 回傳 Book 使用的 Committer，讓呼叫端共用同一個亂數來源產生 client seed。
func (b *Book) Committer() *Committer {
	return b.c
}
