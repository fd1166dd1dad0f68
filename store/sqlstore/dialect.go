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


// Package sqlstore 以 database/sql 實作 ledger.Store，支援 SQLite（modernc，純 Go）與 PostgreSQL（lib/pq）。
//
// 金額欄位在 SQLite 存為 TEXT、在 PostgreSQL 存為 NUMERIC，兩者都不經過浮點數。
package sqlstore

import (
	"context"
	"database/sql"
	_ "embed"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/zintix-labs/dicelab/errs"
)

var (
	//go:embed schema_sqlite.sql
	schemaSQLite string
	//go:embed schema_postgres.sql
	schemaPostgres string
)

// Dialect 驅動差異：placeholder、schema、交易內的鎖定語法。
type Dialect struct {
	Name       string
	Driver     string
	schema     string
	numbered   bool   // placeholder 使用 $1, $2 ...
	lockSuffix string // 交易內讀餘額時附加
}

var (
	SQLite   = Dialect{Name: "sqlite", Driver: "sqlite", schema: schemaSQLite}
	Postgres = Dialect{Name: "postgres", Driver: "postgres", schema: schemaPostgres, numbered: true, lockSuffix: " FOR UPDATE"}
)

// Rebind 將 ? placeholder 轉成方言的寫法。
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// DialectOf 由 URL 前綴判斷方言並回傳驅動可接受的 DSN。
//
//	sqlite::memory:            -> SQLite, ":memory:"
//	sqlite:/var/lib/dice.db    -> SQLite, "/var/lib/dice.db"
//	postgres://user@host/db    -> Postgres, 原字串
func DialectOf(url string) (Dialect, string, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return Postgres, url, nil
	case strings.HasPrefix(url, "sqlite://"):
		return SQLite, strings.TrimPrefix(url, "sqlite://"), nil
	case strings.HasPrefix(url, "sqlite:"):
		return SQLite, strings.TrimPrefix(url, "sqlite:"), nil
	}
	return Dialect{}, "", errs.Invalidf("unsupported database url %q (want sqlite:... or postgres://...)", url)
}

func (d Dialect) migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(d.schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errs.Wrap(err, "apply "+d.Name+" schema")
		}
	}
	return nil
}
