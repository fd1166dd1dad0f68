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


package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zintix-labs/dicelab/errs"
	"github.com/zintix-labs/dicelab/fairness"
	"github.com/zintix-labs/dicelab/ledger"
)

// querier *sql.DB 與 *sql.Tx 共同的介面。
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	queries
	db *sql.DB
}

var _ ledger.Store = (*Store)(nil)

// OpenURL 依 URL 前綴選擇驅動後呼叫 Open。
func OpenURL(ctx context.Context, url string) (*Store, error) {
	d, dsn, err := DialectOf(url)
	if err != nil {
		return nil, err
	}
	return Open(ctx, d, dsn)
}

// Open 連線、確認可用並建立資料表。SQLite 限制為單一連線。
func Open(ctx context.Context, d Dialect, dsn string) (*Store, error) {
	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, errs.Wrap(err, "open "+d.Name+" db")
	}
	if d.Driver == SQLite.Driver {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(err, "ping "+d.Name+" db")
	}
	if err := d.migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db, d), nil
}

// New 包裝既有連線；不做 migration。
func New(db *sql.DB, d Dialect) *Store {
	return &Store{queries: queries{q: db, d: d, now: defaultNow}, db: db}
}

func defaultNow() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(err, "begin tx")
	}
	q := queries{q: sqlTx, d: s.d, now: s.now, inTx: true}
	if err := fn(ctx, q); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return errs.Wrap(err, "commit tx")
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// queries 實作 ledger.Tx；交易內外共用。
type queries struct {
	q    querier
	d    Dialect
	now  func() time.Time
	inTx bool
}

func (q queries) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	query := "SELECT balance FROM accounts WHERE id = ?"
	if q.inTx {
		query += q.d.lockSuffix
	}
	var bal decimal.Decimal
	err := q.q.QueryRowContext(ctx, q.d.Rebind(query), userID).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, errs.NotFoundf("account %s not found", userID)
	}
	if err != nil {
		return decimal.Zero, errs.Wrap(err, "get balance")
	}
	return bal, nil
}

func (q queries) SetBalance(ctx context.Context, userID string, balance decimal.Decimal) error {
	res, err := q.q.ExecContext(ctx, q.d.Rebind("UPDATE accounts SET balance = ? WHERE id = ?"), balance.String(), userID)
	if err != nil {
		return errs.Wrap(err, "set balance")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Wrap(err, "set balance")
	}
	if n == 0 {
		return errs.NotFoundf("account %s not found", userID)
	}
	return nil
}

func (q queries) OpenAccount(ctx context.Context, userID string, initial decimal.Decimal) (decimal.Decimal, bool, error) {
	res, err := q.q.ExecContext(ctx,
		q.d.Rebind("INSERT INTO accounts (id, balance) VALUES (?, ?) ON CONFLICT (id) DO NOTHING"),
		userID, initial.String())
	if err != nil {
		return decimal.Zero, false, errs.Wrap(err, "open account")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return decimal.Zero, false, errs.Wrap(err, "open account")
	}
	if n == 1 {
		return initial, true, nil
	}
	bal, err := q.GetBalance(ctx, userID)
	return bal, false, err
}

const roundColumns = "id, user_id, bet_amount, target, direction, multiplier, client_seed, server_seed, server_seed_hash, roll, won, payout, created_at"

func (q queries) AppendRound(ctx context.Context, r ledger.Round) (ledger.Round, error) {
	r.ID = uuid.NewString()
	r.CreatedAt = q.now()
	_, err := q.q.ExecContext(ctx,
		q.d.Rebind("INSERT INTO rounds ("+roundColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"),
		r.ID, r.UserID, r.BetAmount.String(), r.Target.String(), r.Direction.String(), r.Multiplier.String(),
		r.ClientSeed, r.ServerSeed, r.ServerSeedHash, r.Roll.String(), r.Won, r.Payout.String(),
		r.CreatedAt.UnixMicro())
	if err != nil {
		return ledger.Round{}, errs.Wrap(err, "append round")
	}
	return r, nil
}

func (q queries) ListRounds(ctx context.Context, userID string, limit int) ([]ledger.Round, error) {
	query := "SELECT " + roundColumns + " FROM rounds WHERE user_id = ? ORDER BY seq DESC"
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := q.q.QueryContext(ctx, q.d.Rebind(query), args...)
	if err != nil {
		return nil, errs.Wrap(err, "list rounds")
	}
	defer rows.Close()

	out := []ledger.Round{}
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(err, "list rounds")
	}
	return out, nil
}

func (q queries) GetRound(ctx context.Context, id string) (ledger.Round, error) {
	row := q.q.QueryRowContext(ctx, q.d.Rebind("SELECT "+roundColumns+" FROM rounds WHERE id = ?"), id)
	r, err := scanRound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Round{}, errs.NotFoundf("round %s not found", id)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRound(s scanner) (ledger.Round, error) {
	var (
		r       ledger.Round
		dir     string
		created int64
	)
	err := s.Scan(&r.ID, &r.UserID, &r.BetAmount, &r.Target, &dir, &r.Multiplier,
		&r.ClientSeed, &r.ServerSeed, &r.ServerSeedHash, &r.Roll, &r.Won, &r.Payout, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return r, err
	}
	if err != nil {
		return r, errs.Wrap(err, "scan round")
	}
	if r.Direction, err = fairness.ParseDirection(dir); err != nil {
		return r, errs.Wrap(err, "scan round direction")
	}
	r.CreatedAt = time.UnixMicro(created).UTC()
	return r, nil
}
