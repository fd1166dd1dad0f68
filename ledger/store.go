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


package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// AccountStore 帳戶餘額存取。找不到帳戶時回 errs.ErrNotFound。
type AccountStore interface {
	GetBalance(ctx context.Context, userID string) (decimal.Decimal, error)
	SetBalance(ctx context.Context, userID string, balance decimal.Decimal) error
	// OpenAccount 冪等：帳戶已存在時回傳現有餘額與 created=false。
	OpenAccount(ctx context.Context, userID string, initial decimal.Decimal) (balance decimal.Decimal, created bool, err error)
}

// HistoryStore 只允許追加的局紀錄。
type HistoryStore interface {
	// AppendRound 指派 ID（UUID）與 CreatedAt 後寫入，回傳寫入後的紀錄。
	AppendRound(ctx context.Context, r Round) (Round, error)
	// ListRounds 新到舊；limit <= 0 表示全部。
	ListRounds(ctx context.Context, userID string, limit int) ([]Round, error)
	GetRound(ctx context.Context, id string) (Round, error)
}

// Tx 交易內可用的操作；所有寫入在 WithinTx 回傳 nil 時一起生效。
type Tx interface {
	AccountStore
	HistoryStore
}

// Store 持久層契約。交易外的呼叫各自獨立生效。
type Store interface {
	Tx
	// WithinTx fn 回傳錯誤時，交易內所有寫入都不生效。
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close() error
}
