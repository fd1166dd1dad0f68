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

package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/dicelab/errs"
	"github.com/zintix-labs/dicelab/fairness"
	"github.com/zintix-labs/dicelab/ledger"
	"github.com/zintix-labs/dicelab/odds"
)

// 離線驗證一局：不需連線服務，只依揭露的 seeds 重算。
//
//	verify -client abc -server 9f.. -hash 3a.. -target 50 -dir under
//	curl .../v1/rounds/<id> | verify -round -
func main() {
	code, err := run(os.Args[1:], os.Stdin, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "verify:", err)
	}
	os.Exit(code)
}

const (
	exitOK       = 0
	exitMismatch = 1
	exitUsage    = 2
)

type result struct {
	Roll       decimal.Decimal    `json:"roll"`
	Won        bool               `json:"won"`
	Target     decimal.Decimal    `json:"target"`
	Direction  fairness.Direction `json:"direction"`
	Multiplier decimal.Decimal    `json:"multiplier"`
	HashOK     *bool              `json:"hash_ok,omitempty"`
	Match      bool               `json:"match"`
	Reason     string             `json:"reason,omitempty"`
}

func run(args []string, stdin io.Reader, stdout io.Writer) (int, error) {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		roundFile = fs.String("round", "", "round record json file ('-' = stdin)")
		client    = fs.String("client", "", "client seed")
		server    = fs.String("server", "", "revealed server seed")
		hash      = fs.String("hash", "", "server seed hash committed before the bet")
		target    = fs.String("target", "", "target (1.00-98.00)")
		dir       = fs.String("dir", "", "direction: over|under")
		asJSON    = fs.Bool("json", false, "print result as json")
	)
	if err := fs.Parse(args); err != nil {
		return exitUsage, err
	}

	var (
		res result
		err error
	)
	if *roundFile != "" {
		res, err = verifyRoundFile(*roundFile, stdin)
	} else {
		res, err = verifySeeds(*client, *server, *hash, *target, *dir)
	}
	if err != nil && !errors.Is(err, errs.ErrVerificationMismatch) {
		return exitUsage, err
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return exitUsage, err
		}
	} else {
		printText(stdout, res)
	}
	if !res.Match {
		return exitMismatch, nil
	}
	return exitOK, nil
}

func verifySeeds(client, server, hash, target, dir string) (result, error) {
	if server == "" || target == "" || dir == "" {
		return result{}, errs.Invalidf("-server, -target and -dir are required (or use -round)")
	}
	t, err := decimal.NewFromString(target)
	if err != nil {
		return result{}, errs.Invalidf("target %q is not a number", target)
	}
	d, err := fairness.ParseDirection(dir)
	if err != nil {
		return result{}, err
	}
	out, err := fairness.Verify(client, server, t, d)
	if err != nil {
		return result{}, err
	}
	mult, err := odds.Multiplier(t, d)
	if err != nil {
		return result{}, err
	}
	res := result{Roll: out.Roll, Won: out.Won, Target: t, Direction: d, Multiplier: mult, Match: true}
	if hash != "" {
		err := fairness.CheckCommitment(server, hash)
		ok := err == nil
		res.HashOK = &ok
		if !ok {
			res.Match = false
			res.Reason = err.Error()
			return res, err
		}
	}
	return res, nil
}

func verifyRoundFile(path string, stdin io.Reader) (result, error) {
	var src io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return result{}, errs.Wrap(err, "open round file")
		}
		defer f.Close()
		src = f
	}
	var r ledger.Round
	if err := json.NewDecoder(src).Decode(&r); err != nil {
		return result{}, errs.Invalidf("decode round: %v", err)
	}
	out, err := r.Verify()
	res := result{
		Roll:       out.Roll,
		Won:        out.Won,
		Target:     r.Target,
		Direction:  r.Direction,
		Multiplier: r.Multiplier,
		Match:      err == nil,
	}
	ok := fairness.HashSeed(r.ServerSeed) == r.ServerSeedHash
	res.HashOK = &ok
	if err != nil {
		res.Reason = err.Error()
	}
	return res, err
}

func printText(w io.Writer, r result) {
	fmt.Fprintf(w, "roll       : %s\n", r.Roll.StringFixed(2))
	fmt.Fprintf(w, "target     : %s %s\n", r.Direction, r.Target.StringFixed(2))
	fmt.Fprintf(w, "won        : %t\n", r.Won)
	fmt.Fprintf(w, "multiplier : %s\n", r.Multiplier.String())
	if r.HashOK != nil {
		fmt.Fprintf(w, "hash ok    : %t\n", *r.HashOK)
	}
	if r.Match {
		fmt.Fprintln(w, "result     : OK")
		return
	}
	fmt.Fprintf(w, "result     : MISMATCH (%s)\n", r.Reason)
}
